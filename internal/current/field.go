// Package current reconstructs a spatial current field from the hop traffic
// recorded by a hopping simulation.
package current

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	ErrDimensionMismatch  = errors.New("dimension mismatch")
)

// Field holds the unit vector and the distance for every ordered pair of sites.
// The diagonal is the zero vector at distance zero.
type Field struct {
	n        int
	units    []r3.Vec
	distance []float64
}

// BuildVectorField computes the pairwise unit vectors of positions.
// Two distinct sites at the same point yield ErrDegenerateGeometry.
func BuildVectorField(positions []r3.Vec) (*Field, error) {
	n := len(positions)
	f := &Field{
		n:        n,
		units:    make([]r3.Vec, n*n),
		distance: make([]float64, n*n),
	}
	for i := range positions {
		for j := i + 1; j < n; j++ {
			d := r3.Sub(positions[j], positions[i])
			norm := r3.Norm(d)
			if norm == 0 {
				return nil, fmt.Errorf("%w: sites %d and %d coincide at %v", ErrDegenerateGeometry, i, j, positions[i])
			}
			u := r3.Scale(1/norm, d)
			f.units[i*n+j] = u
			f.units[j*n+i] = r3.Scale(-1, u)
			f.distance[i*n+j] = norm
			f.distance[j*n+i] = norm
		}
	}
	return f, nil
}

func (f *Field) Len() int {
	return f.n
}

// Unit is the unit vector pointing from site i to site j.
func (f *Field) Unit(i, j int) r3.Vec {
	return f.units[i*f.n+j]
}

func (f *Field) Distance(i, j int) float64 {
	return f.distance[i*f.n+j]
}

// Sites concatenates acceptors and electrodes in the index order used by the
// traffic matrix: acceptors first.
func Sites(acceptors, electrodes []r3.Vec) []r3.Vec {
	sites := make([]r3.Vec, 0, len(acceptors)+len(electrodes))
	sites = append(sites, acceptors...)
	return append(sites, electrodes...)
}

// AggregateCurrentVectors sums, for every site, the traffic weighted unit
// vectors of all hops arriving at and departing from it. Every hop pushes in
// its direction of travel.
func AggregateCurrentVectors(traffic mat.Matrix, field *Field) ([]r3.Vec, error) {
	r, c := traffic.Dims()
	if r != c || r != field.Len() {
		return nil, fmt.Errorf("%w: traffic is %dx%d, vector field has %d sites", ErrDimensionMismatch, r, c, field.Len())
	}
	vectors := make([]r3.Vec, r)
	for i := range vectors {
		for j := 0; j < r; j++ {
			if j == i {
				continue
			}
			// arriving
			vectors[i] = r3.Add(vectors[i], r3.Scale(traffic.At(j, i), field.Unit(j, i)))
			// departing
			vectors[i] = r3.Add(vectors[i], r3.Scale(traffic.At(i, j), field.Unit(i, j)))
		}
	}
	return vectors, nil
}
