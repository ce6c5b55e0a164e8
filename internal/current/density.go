package current

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrEmptyField  = errors.New("empty current field")
	ErrInvalidGrid = errors.New("invalid grid")
)

// Domain is the rectangular extent [0, XDim] x [0, YDim] of a network.
type Domain struct {
	XDim, YDim float64
}

// Grid is a current density map. Values are stored with the x index major:
// Values[i*Ny+j] is the cell spanning XEdges[i]..XEdges[i+1] and
// YEdges[j]..YEdges[j+1].
type Grid struct {
	Nx, Ny         int
	XEdges, YEdges []float64
	Values         []float64
}

func (g *Grid) At(i, j int) float64 {
	return g.Values[i*g.Ny+j]
}

func (g *Grid) Max() float64 {
	if len(g.Values) == 0 {
		return 0
	}
	return floats.Max(g.Values)
}

// edges returns floor(extent/cellSize)+1 evenly spaced break points over [0, extent].
func edges(extent, cellSize float64) ([]float64, error) {
	if !(extent > 0) || !(cellSize > 0) {
		return nil, fmt.Errorf("%w: extent %v, cell size %v", ErrInvalidGrid, extent, cellSize)
	}
	count := int(math.Floor(extent/cellSize)) + 1
	if count < 2 {
		return nil, fmt.Errorf("%w: cell size %v exceeds extent %v", ErrInvalidGrid, cellSize, extent)
	}
	e := make([]float64, count)
	floats.Span(e, 0, extent)
	return e, nil
}

// containing lists the cells whose closed interval [e[k], e[k+1]] holds v.
// A value on a shared edge belongs to both neighbours.
func containing(e []float64, v float64) (cells []int) {
	for k := 0; k+1 < len(e); k++ {
		if e[k] <= v && v <= e[k+1] {
			cells = append(cells, k)
		}
	}
	return
}

// Rasterize bins the acceptor current vectors onto a regular grid over domain
// and stores the magnitude of each cell's net vector. Cell bounds are closed
// on both sides, so an acceptor exactly on a cell edge contributes to every
// cell sharing that edge.
//
// With normalize set every cell is divided by the largest one. If all cells
// are zero the unnormalized grid is returned together with ErrEmptyField.
func Rasterize(positions, vectors []r3.Vec, domain Domain, cellSize float64, normalize bool) (*Grid, error) {
	if len(positions) != len(vectors) {
		return nil, fmt.Errorf("%w: %d positions, %d current vectors", ErrDimensionMismatch, len(positions), len(vectors))
	}
	xEdges, err := edges(domain.XDim, cellSize)
	if err != nil {
		return nil, fmt.Errorf("x axis: %w", err)
	}
	yEdges, err := edges(domain.YDim, cellSize)
	if err != nil {
		return nil, fmt.Errorf("y axis: %w", err)
	}
	g := &Grid{
		Nx:     len(xEdges) - 1,
		Ny:     len(yEdges) - 1,
		XEdges: xEdges,
		YEdges: yEdges,
	}
	g.Values = make([]float64, g.Nx*g.Ny)

	net := make([]r3.Vec, g.Nx*g.Ny)
	for k, p := range positions {
		ys := containing(yEdges, p.Y)
		for _, i := range containing(xEdges, p.X) {
			for _, j := range ys {
				net[i*g.Ny+j] = r3.Add(net[i*g.Ny+j], vectors[k])
			}
		}
	}
	for c := range net {
		g.Values[c] = r3.Norm(net[c])
	}

	if normalize {
		m := g.Max()
		if m == 0 {
			return g, ErrEmptyField
		}
		for c := range g.Values {
			g.Values[c] /= m
		}
	}
	return g, nil
}
