package boltzmann

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/brambozz/kmcdn/internal/logging"
)

// swapEngine moves the carriers one site to the right, cyclically, on every
// hop. The hop time may depend on the occupation before the hop.
type swapEngine struct {
	occupation []bool
	energy     func([]bool) float64
	hopTime    func([]bool) float64
	kT         float64
	time       float64
	energyHits int
	clockReset int
}

func newSwapEngine(sites int) *swapEngine {
	return &swapEngine{
		occupation: make([]bool, sites),
		energy:     func([]bool) float64 { return 0 },
		hopTime:    func([]bool) float64 { return 1 },
		kT:         1,
	}
}

func (e *swapEngine) Occupation() []bool { return e.occupation }

func (e *swapEngine) SetOccupation(o []bool) { e.occupation = slices.Clone(o) }

func (e *swapEngine) Energy(o []bool) float64 {
	e.energyHits++
	return e.energy(o)
}

func (e *swapEngine) Hop() (float64, error) {
	dt := e.hopTime(e.occupation)
	n := len(e.occupation)
	next := make([]bool, n)
	for i, o := range e.occupation {
		next[(i+1)%n] = o
	}
	e.occupation = next
	e.time += dt
	return dt, nil
}

func (e *swapEngine) ResetTime() {
	e.time = 0
	e.clockReset++
}

func (e *swapEngine) KT() float64 { return e.kT }

// leakyEngine gains a carrier on its third hop.
type leakyEngine struct {
	swapEngine
	hops int
}

func (e *leakyEngine) Hop() (float64, error) {
	e.hops++
	dt, err := e.swapEngine.Hop()
	if e.hops == 3 {
		for i := range e.occupation {
			e.occupation[i] = true
		}
	}
	return dt, err
}

func TestValidatorTwoSitesAlternating(t *testing.T) {
	engine := newSwapEngine(2)
	v, err := NewValidator(engine, Options{Hops: 1000, Checkpoints: 10, Carriers: 1, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	if engine.energyHits != 2 {
		t.Errorf("energy oracle called %d times, want 2", engine.energyHits)
	}
	if engine.clockReset != 1 || engine.time != 0 {
		t.Errorf("engine clock not reset before the run")
	}
	if !slices.Equal(v.Theory(), []float64{0.5, 0.5}) {
		t.Fatalf("theory = %v, want [0.5 0.5]", v.Theory())
	}

	res, err := v.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(res.Empirical, []float64{0.5, 0.5}) {
		t.Errorf("empirical = %v, want [0.5 0.5]", res.Empirical)
	}
	if res.Convergence != 0 {
		t.Errorf("convergence = %v, want 0", res.Convergence)
	}
	if res.Hops != 1000 || res.Elapsed != 1000 {
		t.Errorf("hops = %d, elapsed = %v", res.Hops, res.Elapsed)
	}
}

func TestValidatorConvergesWithHops(t *testing.T) {
	// an odd hop count leaves one extra unit of time in one microstate
	var previous float64 = math.Inf(1)
	for _, hops := range []int{11, 101, 1001, 10001} {
		v, err := NewValidator(newSwapEngine(2), Options{Hops: hops, Checkpoints: 1, Carriers: 1, Seed: 1})
		if err != nil {
			t.Fatal(err)
		}
		res, err := v.Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if res.Convergence >= previous {
			t.Errorf("convergence %v at %d hops did not improve on %v", res.Convergence, hops, previous)
		}
		previous = res.Convergence
	}
	if previous > 1e-3 {
		t.Errorf("final convergence %v, want below 1e-3", previous)
	}
}

func TestValidatorCreditsTimeBeforeHop(t *testing.T) {
	engine := newSwapEngine(2)
	// three time units are spent with site 0 occupied, one otherwise
	engine.hopTime = func(o []bool) float64 {
		if o[0] {
			return 3
		}
		return 1
	}
	v, err := NewValidator(engine, Options{Hops: 100, Carriers: 1, Seed: 3})
	if err != nil {
		t.Fatal(err)
	}
	res, err := v.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	first, _ := v.Microstates().Index([]bool{true, false})
	if got := res.Empirical[first]; math.Abs(got-0.75) > 1e-12 {
		t.Errorf("p(site 0 occupied) = %v, want 0.75", got)
	}
}

func TestValidatorCheckpoints(t *testing.T) {
	v, err := NewValidator(newSwapEngine(3), Options{Hops: 10, Checkpoints: 5, Carriers: 1, Seed: 2})
	if err != nil {
		t.Fatal(err)
	}
	res, err := v.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var hops []int
	for _, c := range res.Checkpoints {
		hops = append(hops, c.Hop)
		if s := floats.Sum(c.Probabilities); math.Abs(s-1) > 1e-9 {
			t.Errorf("checkpoint at hop %d sums to %v", c.Hop, s)
		}
	}
	if !slices.Equal(hops, []int{2, 4, 6, 8, 10}) {
		t.Errorf("checkpoint hops = %v, want [2 4 6 8 10]", hops)
	}
}

func TestValidatorCheckpointsUnevenBudget(t *testing.T) {
	tests := []struct {
		hops, checkpoints int
	}{
		{25, 11},
		{29, 7},
		{10, 3},
		{7, 7},
		{400, 399},
		{1, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_hops_%d_checkpoints", tt.hops, tt.checkpoints), func(t *testing.T) {
			v, err := NewValidator(newSwapEngine(3), Options{Hops: tt.hops, Checkpoints: tt.checkpoints, Carriers: 1})
			if err != nil {
				t.Fatal(err)
			}
			res, err := v.Run(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Checkpoints) != tt.checkpoints {
				t.Fatalf("got %d checkpoints, want %d", len(res.Checkpoints), tt.checkpoints)
			}
			if last := res.Checkpoints[len(res.Checkpoints)-1].Hop; last != tt.hops {
				t.Errorf("last checkpoint at hop %d, want %d", last, tt.hops)
			}
			for c, cp := range res.Checkpoints {
				// first hop h with h*K >= (c+1)*H
				want := ((c+1)*tt.hops + tt.checkpoints - 1) / tt.checkpoints
				if cp.Hop != want {
					t.Errorf("checkpoint %d at hop %d, want %d", c, cp.Hop, want)
				}
			}
		})
	}
}

func TestValidatorStepByStep(t *testing.T) {
	v, err := NewValidator(newSwapEngine(2), Options{Hops: 3, Carriers: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Result(); !errors.Is(err, ErrUnfinished) {
		t.Fatalf("expected ErrUnfinished before stepping, got %v", err)
	}
	for i := 1; i <= 3; i++ {
		more, err := v.Step()
		if err != nil {
			t.Fatal(err)
		}
		if more != (i < 3) {
			t.Errorf("step %d reported more = %v", i, more)
		}
		if v.Hop() != i {
			t.Errorf("hop = %d, want %d", v.Hop(), i)
		}
	}
	if more, err := v.Step(); more || err != nil {
		t.Errorf("step after the budget: %v, %v", more, err)
	}
	if _, err := v.Result(); err != nil {
		t.Fatal(err)
	}
}

func TestValidatorMicrostateNotFound(t *testing.T) {
	engine := &leakyEngine{swapEngine: *newSwapEngine(4)}
	v, err := NewValidator(engine, Options{Hops: 10, Checkpoints: 10, Carriers: 2})
	if err != nil {
		t.Fatal(err)
	}
	_, err = v.Run(context.Background())
	if !errors.Is(err, ErrMicrostateNotFound) {
		t.Fatalf("expected ErrMicrostateNotFound, got %v", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Hop != 3 {
		t.Fatalf("expected NotFoundError at hop 3, got %v", err)
	}
	if len(v.Checkpoints()) != 2 {
		t.Errorf("partial checkpoints = %d, want 2", len(v.Checkpoints()))
	}
	if _, err := v.Result(); !errors.Is(err, ErrMicrostateNotFound) {
		t.Errorf("result after failure: %v", err)
	}
	if _, err := v.Step(); !errors.Is(err, ErrMicrostateNotFound) {
		t.Errorf("step after failure: %v", err)
	}
}

func TestValidatorDeterministic(t *testing.T) {
	run := func() *Result {
		engine := newSwapEngine(4)
		engine.hopTime = func(o []bool) float64 {
			if o[1] {
				return 2
			}
			return 0.5
		}
		v, err := NewValidator(engine, Options{Hops: 37, Checkpoints: 4, Carriers: 2, Seed: 11})
		if err != nil {
			t.Fatal(err)
		}
		res, err := v.Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return res
	}
	a, b := run(), run()
	if !slices.Equal(a.Empirical, b.Empirical) || a.Convergence != b.Convergence {
		t.Errorf("runs differ: %v vs %v", a.Empirical, b.Empirical)
	}
}

func TestValidatorCancel(t *testing.T) {
	v, err := NewValidator(newSwapEngine(2), Options{Hops: 100, Carriers: 1})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := v.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if v.Hop() != 0 {
		t.Errorf("hops after cancel = %d, want 0", v.Hop())
	}
}

func TestNewValidatorRejects(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"no hops", Options{Hops: 0, Carriers: 1}, ErrInvalidOptions},
		{"too many checkpoints", Options{Hops: 5, Checkpoints: 6, Carriers: 1}, ErrInvalidOptions},
		{"bad carriers", Options{Hops: 5, Carriers: 3}, ErrInvalidCarrierCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewValidator(newSwapEngine(2), tt.opts); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidatorTracesHops(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"trace", 4},
		{"debug", 0},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			v, err := NewValidator(newSwapEngine(2), Options{Hops: 4, Carriers: 1, Logger: logging.NewLogger(tt.level, &buf)})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := v.Run(context.Background()); err != nil {
				t.Fatal(err)
			}
			if got := strings.Count(buf.String(), "level=TRACE msg=hop"); got != tt.want {
				t.Errorf("traced %d hops, want %d", got, tt.want)
			}
		})
	}
}
