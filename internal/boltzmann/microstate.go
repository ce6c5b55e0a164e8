// Package boltzmann checks whether a hopping engine samples microstates with
// Boltzmann statistics.
package boltzmann

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	ErrInvalidSiteCount    = errors.New("invalid site count")
	ErrInvalidCarrierCount = errors.New("invalid carrier count")
	ErrTooManyMicrostates  = errors.New("too many microstates")
)

// MaxSites bounds the network size a microstate can describe.
const MaxSites = 63

// MaxMicrostates bounds the size of an enumeration.
const MaxMicrostates = 1 << 22

// Microstate is an occupation packed into a bit set: bit i is acceptor i.
type Microstate uint64

func FromOccupation(occupation []bool) Microstate {
	var m Microstate
	for i, occupied := range occupation {
		if occupied {
			m |= 1 << i
		}
	}
	return m
}

// Occupation unpacks m onto sites acceptors.
func (m Microstate) Occupation(sites int) []bool {
	occupation := make([]bool, sites)
	for i := range occupation {
		occupation[i] = m&(1<<i) != 0
	}
	return occupation
}

func (m Microstate) Carriers() int {
	return bits.OnesCount64(uint64(m))
}

// Microstates is the set of all occupations of a fixed number of sites with a
// fixed number of carriers.
type Microstates struct {
	sites    int
	carriers int
	states   []Microstate
	index    map[Microstate]int
}

func binomial(n, k int) int {
	if k > n-k {
		k = n - k
	}
	c := 1
	for i := 0; i < k; i++ {
		c = c * (n - i) / (i + 1)
		if c > MaxMicrostates {
			return c
		}
	}
	return c
}

// Enumerate lists every occupation of sites acceptors holding exactly
// carriers carriers, in increasing bit-set order.
func Enumerate(sites, carriers int) (*Microstates, error) {
	if sites < 0 {
		return nil, fmt.Errorf("%w: %d sites", ErrInvalidSiteCount, sites)
	}
	if sites > MaxSites {
		return nil, fmt.Errorf("%w: %d sites, at most %d supported", ErrTooManyMicrostates, sites, MaxSites)
	}
	if carriers < 0 || carriers > sites {
		return nil, fmt.Errorf("%w: %d carriers on %d sites", ErrInvalidCarrierCount, carriers, sites)
	}
	count := binomial(sites, carriers)
	if count > MaxMicrostates {
		return nil, fmt.Errorf("%w: C(%d,%d) exceeds %d", ErrTooManyMicrostates, sites, carriers, MaxMicrostates)
	}

	ms := &Microstates{
		sites:    sites,
		carriers: carriers,
		states:   make([]Microstate, 0, count),
		index:    make(map[Microstate]int, count),
	}
	add := func(m Microstate) {
		if _, seen := ms.index[m]; !seen {
			ms.index[m] = len(ms.states)
			ms.states = append(ms.states, m)
		}
	}
	if carriers == 0 {
		add(0)
		return ms, nil
	}
	limit := uint64(1) << sites
	// Gosper's hack: next larger integer with the same popcount
	for v := uint64(1)<<carriers - 1; v < limit; {
		add(Microstate(v))
		c := v & -v
		r := v + c
		v = (((r ^ v) >> 2) / c) | r
	}
	return ms, nil
}

func (ms *Microstates) Len() int {
	return len(ms.states)
}

func (ms *Microstates) Sites() int {
	return ms.sites
}

func (ms *Microstates) Carriers() int {
	return ms.carriers
}

// At returns the occupation of microstate i as a fresh slice.
func (ms *Microstates) At(i int) []bool {
	return ms.states[i].Occupation(ms.sites)
}

// Index finds the microstate matching occupation.
func (ms *Microstates) Index(occupation []bool) (int, bool) {
	if len(occupation) != ms.sites {
		return 0, false
	}
	i, ok := ms.index[FromOccupation(occupation)]
	return i, ok
}
