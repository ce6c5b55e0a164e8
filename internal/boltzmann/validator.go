package boltzmann

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/brambozz/kmcdn/internal/logging"
)

var (
	ErrMicrostateNotFound = errors.New("microstate not found")
	ErrInvalidOptions     = errors.New("invalid validation options")
	ErrUnfinished         = errors.New("validation unfinished")
	ErrNoElapsedTime      = errors.New("no simulated time elapsed")
)

// Engine is the slice of a hopping simulator the validator drives. The
// validator is its only user while a run is in progress.
type Engine interface {
	// Occupation reports which acceptors currently hold a carrier.
	Occupation() []bool
	SetOccupation(occupation []bool)
	// Energy of an occupation; must not touch the engine clock.
	Energy(occupation []bool) float64
	// Hop performs exactly one hop and returns the simulated time it took.
	Hop() (float64, error)
	ResetTime()
	KT() float64
}

// NotFoundError reports an occupation outside the enumerated set, which means
// the engine did not conserve the carrier count.
type NotFoundError struct {
	Hop        int
	Occupation []bool
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v after hop %d: occupation %v holds %d carriers",
		ErrMicrostateNotFound, e.Hop, e.Occupation, FromOccupation(e.Occupation).Carriers())
}

func (e *NotFoundError) Unwrap() error {
	return ErrMicrostateNotFound
}

type Options struct {
	Hops        int
	Checkpoints int
	Carriers    int
	Seed        int64
	Logger      *slog.Logger
}

// Checkpoint is the empirical distribution after Hop hops.
type Checkpoint struct {
	Hop           int
	Probabilities []float64
}

type Result struct {
	Microstates [][]bool
	Energies    []float64
	Theory      []float64
	Empirical   []float64
	Checkpoints []Checkpoint
	Convergence float64
	Hops        int
	Elapsed     float64
}

// Validator accumulates the time an engine spends in every microstate. It is
// advanced one hop at a time with Step, or driven to the end with Run.
type Validator struct {
	engine Engine
	opts   Options
	logger *slog.Logger

	states   *Microstates
	energies []float64
	theory   []float64

	accum   []float64
	elapsed float64
	current int
	hop     int

	checkpoints []Checkpoint
	err         error
}

// NewValidator enumerates the microstates of engine, computes their energies
// and theoretical probabilities and puts the engine in a random microstate
// with its clock reset.
func NewValidator(engine Engine, opts Options) (*Validator, error) {
	if opts.Hops < 1 {
		return nil, fmt.Errorf("%w: %d hops", ErrInvalidOptions, opts.Hops)
	}
	if opts.Checkpoints < 0 || opts.Checkpoints > opts.Hops {
		return nil, fmt.Errorf("%w: %d checkpoints for %d hops", ErrInvalidOptions, opts.Checkpoints, opts.Hops)
	}
	states, err := Enumerate(len(engine.Occupation()), opts.Carriers)
	if err != nil {
		return nil, err
	}

	v := &Validator{
		engine:   engine,
		opts:     opts,
		logger:   logging.OrDiscard(opts.Logger),
		states:   states,
		energies: make([]float64, states.Len()),
		accum:    make([]float64, states.Len()),
	}

	for i := range v.energies {
		occupation := states.At(i)
		engine.SetOccupation(occupation)
		v.energies[i] = engine.Energy(occupation)
	}
	if v.theory, err = Theory(v.energies, engine.KT()); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	v.current = rng.Intn(states.Len())
	engine.SetOccupation(states.At(v.current))
	engine.ResetTime()

	v.logger.Debug("validator ready",
		"microstates", states.Len(),
		"sites", states.Sites(),
		"carriers", states.Carriers(),
		"initial", v.current)
	return v, nil
}

func (v *Validator) Microstates() *Microstates {
	return v.states
}

func (v *Validator) Energies() []float64 {
	return v.energies
}

func (v *Validator) Theory() []float64 {
	return v.theory
}

// Hop is the number of hops performed so far.
func (v *Validator) Hop() int {
	return v.hop
}

func (v *Validator) Done() bool {
	return v.err != nil || v.hop >= v.opts.Hops
}

// Checkpoints recorded so far. They stay available after a failed step.
func (v *Validator) Checkpoints() []Checkpoint {
	return v.checkpoints
}

// Empirical is the current time-weighted occupation probability.
func (v *Validator) Empirical() []float64 {
	p := make([]float64, len(v.accum))
	if v.elapsed == 0 {
		return p
	}
	for i := range v.accum {
		p[i] = v.accum[i] / v.elapsed
	}
	return p
}

// Step performs one hop. The hop time is credited to the microstate occupied
// before the hop. It reports whether more hops remain; after an error the
// validator is unusable.
func (v *Validator) Step() (bool, error) {
	if v.err != nil {
		return false, v.err
	}
	if v.hop >= v.opts.Hops {
		return false, nil
	}

	dt, err := v.engine.Hop()
	if err != nil {
		v.err = fmt.Errorf("hop %d: %w", v.hop+1, err)
		return false, v.err
	}
	v.accum[v.current] += dt
	v.elapsed += dt

	occupation := v.engine.Occupation()
	next, ok := v.states.Index(occupation)
	if !ok {
		v.err = &NotFoundError{Hop: v.hop + 1, Occupation: append([]bool(nil), occupation...)}
		return false, v.err
	}
	v.current = next

	v.logger.Log(context.Background(), logging.LevelTrace, "hop",
		"hop", v.hop+1, "dt", dt, "microstate", next)

	// checkpoint c of K falls on the first hop h with h*K >= c*H
	if len(v.checkpoints) < v.opts.Checkpoints &&
		(v.hop+1)*v.opts.Checkpoints >= (len(v.checkpoints)+1)*v.opts.Hops {
		v.checkpoints = append(v.checkpoints, Checkpoint{
			Hop:           v.hop + 1,
			Probabilities: v.Empirical(),
		})
		v.logger.Debug("checkpoint",
			"hop", v.hop+1,
			"convergence", Convergence(v.checkpoints[len(v.checkpoints)-1].Probabilities, v.theory))
	}
	v.hop++
	return v.hop < v.opts.Hops, nil
}

// Run steps until the hop budget is spent or ctx is done.
func (v *Validator) Run(ctx context.Context) (*Result, error) {
	for !v.Done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := v.Step(); err != nil {
			return nil, err
		}
	}
	return v.Result()
}

// Result summarizes a finished run.
func (v *Validator) Result() (*Result, error) {
	if v.err != nil {
		return nil, v.err
	}
	if v.hop < v.opts.Hops {
		return nil, fmt.Errorf("%w: %d of %d hops", ErrUnfinished, v.hop, v.opts.Hops)
	}
	if v.elapsed == 0 {
		return nil, ErrNoElapsedTime
	}
	res := &Result{
		Microstates: make([][]bool, v.states.Len()),
		Energies:    v.energies,
		Theory:      v.theory,
		Empirical:   v.Empirical(),
		Checkpoints: v.checkpoints,
		Hops:        v.hop,
		Elapsed:     v.elapsed,
	}
	for i := range res.Microstates {
		res.Microstates[i] = v.states.At(i)
	}
	res.Convergence = Convergence(res.Empirical, res.Theory)
	v.logger.Info("boltzmann validation finished", "hops", v.hop, "norm_of_difference", res.Convergence)
	return res, nil
}
