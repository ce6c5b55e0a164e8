package current

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Arrow is one overlay vector for a plot sink: where it sits, which way it
// points and how strong it is.
type Arrow struct {
	Pos       r3.Vec
	Dir       r3.Vec // unit length, or zero for an idle site
	Magnitude float64
}

// Directions splits current vectors into unit directions and magnitudes.
func Directions(positions, vectors []r3.Vec) ([]Arrow, error) {
	if len(positions) != len(vectors) {
		return nil, fmt.Errorf("%w: %d positions, %d current vectors", ErrDimensionMismatch, len(positions), len(vectors))
	}
	arrows := make([]Arrow, len(positions))
	for i := range positions {
		arrows[i].Pos = positions[i]
		arrows[i].Magnitude = r3.Norm(vectors[i])
		if arrows[i].Magnitude > 0 {
			arrows[i].Dir = r3.Scale(1/arrows[i].Magnitude, vectors[i])
		}
	}
	return arrows, nil
}

// NormalizeElectrodeCurrents scales electrode currents by the largest
// magnitude among them, keeping their signs.
func NormalizeElectrodeCurrents(currents []float64) ([]float64, error) {
	if len(currents) == 0 {
		return nil, ErrEmptyField
	}
	m := floats.Norm(currents, math.Inf(1))
	if m == 0 {
		return nil, ErrEmptyField
	}
	out := make([]float64, len(currents))
	for i := range currents {
		out[i] = currents[i] / m
	}
	return out, nil
}

// Snapshot is the read-only simulator state a reconstruction needs.
type Snapshot struct {
	Acceptors  []r3.Vec
	Electrodes []r3.Vec
	Traffic    mat.Matrix
}

// Reconstruction is everything a renderer needs for a current density figure.
type Reconstruction struct {
	Vectors    []r3.Vec // acceptors first, then electrodes
	Grid       *Grid
	Acceptors  []Arrow
	Electrodes []Arrow
}

// Reconstruct runs the full pipeline on a snapshot. ErrEmptyField from the
// normalization step is returned alongside a complete, unnormalized result.
func Reconstruct(s Snapshot, domain Domain, cellSize float64, normalize bool) (*Reconstruction, error) {
	field, err := BuildVectorField(Sites(s.Acceptors, s.Electrodes))
	if err != nil {
		return nil, err
	}
	vectors, err := AggregateCurrentVectors(s.Traffic, field)
	if err != nil {
		return nil, err
	}
	n := len(s.Acceptors)
	rec := &Reconstruction{Vectors: vectors}
	if rec.Acceptors, err = Directions(s.Acceptors, vectors[:n]); err != nil {
		return nil, err
	}
	if rec.Electrodes, err = Directions(s.Electrodes, vectors[n:]); err != nil {
		return nil, err
	}
	rec.Grid, err = Rasterize(s.Acceptors, vectors[:n], domain, cellSize, normalize)
	if rec.Grid == nil {
		return nil, err
	}
	return rec, err
}
