// Package model is a small kinetic Monte Carlo hopping network: acceptors
// exchange carriers with each other and with electrodes at Miller-Abrahams
// rates. It exports the state the current and boltzmann packages consume.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/brambozz/kmcdn/internal/current"
	"github.com/brambozz/kmcdn/internal/utils"
)

var ErrFrozen = errors.New("no hop has a positive rate")

type Electrode struct {
	Pos       r3.Vec
	Potential float64 // carrier energy level inside the contact
}

type Parameters struct {
	KT                  float64
	Mu                  float64
	InteractionStrength float64 // I0
	LocalizationRadius  float64
	AttemptFrequency    float64
	Seed                int64
}

type event struct {
	from, to int // acceptors first, then electrodes
}

type Network struct {
	Parameters

	acceptors  []r3.Vec
	donors     []r3.Vec
	electrodes []Electrode

	field    *current.Field
	constant []float64 // -Mu - I0*sum_d 1/r_id per acceptor

	occupation       []bool
	traffic          *mat.Dense
	electrodeCurrent []float64 // carriers absorbed minus carriers emitted
	time             float64
	rng              *rand.Rand

	addition   []float64
	events     []event
	cumulative []float64
}

func NewNetwork(acceptors, donors []r3.Vec, electrodes []Electrode, p Parameters) (*Network, error) {
	if len(acceptors) == 0 {
		return nil, fmt.Errorf("network without acceptors")
	}
	if !(p.KT > 0) || !(p.LocalizationRadius > 0) || !(p.AttemptFrequency > 0) {
		return nil, fmt.Errorf("kT, localization radius and attempt frequency must be positive: %+v", p)
	}
	electrodePositions := make([]r3.Vec, len(electrodes))
	for i := range electrodes {
		electrodePositions[i] = electrodes[i].Pos
	}
	field, err := current.BuildVectorField(current.Sites(acceptors, electrodePositions))
	if err != nil {
		return nil, err
	}

	n := len(acceptors)
	m := n + len(electrodes)
	s := &Network{
		Parameters:       p,
		acceptors:        slices.Clone(acceptors),
		donors:           slices.Clone(donors),
		electrodes:       slices.Clone(electrodes),
		field:            field,
		constant:         make([]float64, n),
		occupation:       make([]bool, n),
		traffic:          mat.NewDense(m, m, nil),
		electrodeCurrent: make([]float64, len(electrodes)),
		rng:              rand.New(rand.NewSource(p.Seed)),
		addition:         make([]float64, n),
	}
	for i, a := range acceptors {
		s.constant[i] = -p.Mu
		for j, d := range donors {
			r := r3.Norm(r3.Sub(d, a))
			if r == 0 {
				return nil, fmt.Errorf("%w: acceptor %d and donor %d coincide at %v", current.ErrDegenerateGeometry, i, j, a)
			}
			s.constant[i] -= p.InteractionStrength / r
		}
	}
	return s, nil
}

// WithoutElectrodes returns a closed copy of the network: same dopants and
// parameters, no contacts, so the carrier count is conserved.
func (s *Network) WithoutElectrodes() (*Network, error) {
	return NewNetwork(s.acceptors, s.donors, nil, s.Parameters)
}

func (s *Network) N() int {
	return len(s.acceptors)
}

func (s *Network) P() int {
	return len(s.electrodes)
}

func (s *Network) KT() float64 {
	return s.Parameters.KT
}

func (s *Network) Time() float64 {
	return s.time
}

func (s *Network) ResetTime() {
	s.time = 0
}

// Reset clears the clock, the traffic and the electrode counters. The
// occupation is kept.
func (s *Network) Reset() {
	s.time = 0
	s.traffic.Zero()
	clear(s.electrodeCurrent)
}

func (s *Network) Occupation() []bool {
	return slices.Clone(s.occupation)
}

func (s *Network) SetOccupation(occupation []bool) {
	copy(s.occupation, occupation)
}

// Occupy places carriers on randomly chosen empty acceptors.
func (s *Network) Occupy(carriers int) error {
	var empty []int
	for i, o := range s.occupation {
		if !o {
			empty = append(empty, i)
		}
	}
	if carriers < 0 || carriers > len(empty) {
		return fmt.Errorf("cannot place %d carriers on %d empty acceptors", carriers, len(empty))
	}
	s.rng.Shuffle(len(empty), func(i, j int) { empty[i], empty[j] = empty[j], empty[i] })
	for _, i := range empty[:carriers] {
		s.occupation[i] = true
	}
	return nil
}

func (s *Network) interaction(i, j int) float64 {
	return s.InteractionStrength / s.field.Distance(i, j)
}

// Energy of an occupation: site energies of the occupied acceptors plus the
// Coulomb repulsion of every occupied pair.
func (s *Network) Energy(occupation []bool) float64 {
	e := 0.
	for i := range occupation {
		if !occupation[i] {
			continue
		}
		e += s.constant[i]
		for j := i + 1; j < len(occupation); j++ {
			if occupation[j] {
				e += s.interaction(i, j)
			}
		}
	}
	return e
}

// energy needed to add a carrier at every acceptor given the current occupation
func (s *Network) updateAddition() {
	for i := range s.addition {
		s.addition[i] = s.constant[i]
		for k, o := range s.occupation {
			if o && k != i {
				s.addition[i] += s.interaction(i, k)
			}
		}
	}
}

func (s *Network) rate(from, to int, deltaE float64) float64 {
	r := s.AttemptFrequency * math.Exp(-2*s.field.Distance(from, to)/s.LocalizationRadius)
	if deltaE > 0 {
		r *= math.Exp(-deltaE / s.Parameters.KT)
	}
	return r
}

func (s *Network) collectEvents() []float64 {
	s.events = s.events[:0]
	var rates []float64
	add := func(from, to int, deltaE float64) {
		if r := s.rate(from, to, deltaE); r > 0 {
			s.events = append(s.events, event{from, to})
			rates = append(rates, r)
		}
	}
	n := s.N()
	s.updateAddition()
	for i, o := range s.occupation {
		if !o {
			continue
		}
		for j, oj := range s.occupation {
			if !oj {
				add(i, j, s.addition[j]-s.addition[i]-s.interaction(i, j))
			}
		}
		for e := range s.electrodes {
			add(i, n+e, s.electrodes[e].Potential-s.addition[i])
		}
	}
	for e := range s.electrodes {
		for j, oj := range s.occupation {
			if !oj {
				add(n+e, j, s.addition[j]-s.electrodes[e].Potential)
			}
		}
	}
	return rates
}

// Hop performs one hop chosen with probability proportional to its rate and
// advances the clock by an exponential waiting time.
func (s *Network) Hop() (float64, error) {
	rates := s.collectEvents()
	if len(rates) == 0 {
		return 0, ErrFrozen
	}
	s.cumulative = slices.Grow(s.cumulative[:0], len(rates))[:len(rates)]
	total := utils.Cumulate(s.cumulative, rates)
	ev := s.events[utils.SelectCumulative(s.cumulative, s.rng.Float64()*total)]

	n := s.N()
	if ev.from < n {
		s.occupation[ev.from] = false
	} else {
		s.electrodeCurrent[ev.from-n]--
	}
	if ev.to < n {
		s.occupation[ev.to] = true
	} else {
		s.electrodeCurrent[ev.to-n]++
	}
	s.traffic.Set(ev.from, ev.to, s.traffic.At(ev.from, ev.to)+1)

	dt := utils.R(s.rng) / total
	s.time += dt
	return dt, nil
}

// Simulate performs hops hops, checking ctx between them.
func (s *Network) Simulate(ctx context.Context, hops int) error {
	for h := range hops {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.Hop(); err != nil {
			return fmt.Errorf("hop %d: %w", h+1, err)
		}
	}
	return nil
}

func (s *Network) Acceptors() []r3.Vec {
	return slices.Clone(s.acceptors)
}

func (s *Network) ElectrodePositions() []r3.Vec {
	positions := make([]r3.Vec, len(s.electrodes))
	for i := range s.electrodes {
		positions[i] = s.electrodes[i].Pos
	}
	return positions
}

// Traffic is a copy of the hop counts, indexed acceptors first.
func (s *Network) Traffic() *mat.Dense {
	return mat.DenseCopyOf(s.traffic)
}

func (s *Network) ElectrodeCurrents() []float64 {
	return slices.Clone(s.electrodeCurrent)
}

// Snapshot exports the state a current reconstruction needs.
func (s *Network) Snapshot() current.Snapshot {
	return current.Snapshot{
		Acceptors:  s.Acceptors(),
		Electrodes: s.ElectrodePositions(),
		Traffic:    s.Traffic(),
	}
}
