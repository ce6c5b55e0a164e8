package boltzmann

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var ErrInvalidTemperature = errors.New("invalid temperature")

// Theory returns the Boltzmann distribution exp(-E/kT)/Z over energies.
// Energies are shifted by their minimum before exponentiating so the largest
// weight is exactly one.
func Theory(energies []float64, kT float64) ([]float64, error) {
	if !(kT > 0) || math.IsInf(kT, 1) {
		return nil, fmt.Errorf("%w: kT = %v", ErrInvalidTemperature, kT)
	}
	if len(energies) == 0 {
		return []float64{}, nil
	}
	eMin := floats.Min(energies)
	p := make([]float64, len(energies))
	for i, e := range energies {
		p[i] = math.Exp(-(e - eMin) / kT)
	}
	z := floats.Sum(p)
	for i := range p {
		p[i] /= z
	}
	return p, nil
}

// Convergence is the relative L2 distance |empirical - theory| / |theory|.
func Convergence(empirical, theory []float64) float64 {
	return floats.Distance(empirical, theory, 2) / floats.Norm(theory, 2)
}
