package model

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/brambozz/kmcdn/internal/config"
	"github.com/brambozz/kmcdn/internal/utils"
)

// PlaceUniform draws count points uniformly from the box [0,dims]. A zero
// dimension keeps every point in that plane.
func PlaceUniform(rng *rand.Rand, count int, dims r3.Vec) []r3.Vec {
	points := make([]r3.Vec, count)
	for i := range points {
		points[i] = r3.Vec{
			X: dims.X * rng.Float64(),
			Y: dims.Y * rng.Float64(),
			Z: dims.Z * rng.Float64(),
		}
	}
	return points
}

// FromParameters builds the network described by a unified configuration.
// Acceptors come from PositionsFile when set; dopants are otherwise placed at
// random using Seed.
func FromParameters(p config.NetworkParameters) (*Network, error) {
	rng := rand.New(rand.NewSource(p.Seed))
	dims := r3.Vec{X: p.XDim, Y: p.YDim, Z: p.ZDim}

	var acceptors []r3.Vec
	if p.PositionsFile != "" {
		rows, err := utils.ReadFloatRows(p.PositionsFile, 2, 3)
		if err != nil {
			return nil, fmt.Errorf("acceptor positions: %w", err)
		}
		acceptors = make([]r3.Vec, len(rows))
		for i, row := range rows {
			acceptors[i] = r3.Vec{X: row[0], Y: row[1]}
			if len(row) == 3 {
				acceptors[i].Z = row[2]
			}
		}
	} else {
		acceptors = PlaceUniform(rng, p.Acceptors, dims)
	}
	donors := PlaceUniform(rng, p.Donors, dims)

	electrodes := make([]Electrode, len(p.Electrodes))
	for i, e := range p.Electrodes {
		electrodes[i] = Electrode{Pos: r3.Vec{X: e.X, Y: e.Y, Z: e.Z}, Potential: e.Potential}
	}

	return NewNetwork(acceptors, donors, electrodes, Parameters{
		KT:                  p.KT,
		Mu:                  p.Mu,
		InteractionStrength: p.InteractionStrength,
		LocalizationRadius:  p.LocalizationRadius,
		AttemptFrequency:    p.AttemptFrequency,
		Seed:                p.Seed,
	})
}
