package fds

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/interp"
)

// InterpMethod is the interpolation method of an ephemeris.
type InterpMethod uint8

const (
	// Lagrange interpolates with a Lagrange polynomial over Order samples around the epoch.
	Lagrange InterpMethod = iota
	// Linear interpolates between the two samples around the epoch.
	Linear
)

func (m InterpMethod) String() string {
	if m == Linear {
		return "linear"
	}
	return "lagrange"
}

// EphemerisOptions tunes the interpolation of an ephemeris. Zero values take the configured
// defaults (ephemeris.order and ephemeris.tolerance).
type EphemerisOptions struct {
	Method    InterpMethod
	Order     int           // Number of samples of the Lagrange polynomial.
	Tolerance time.Duration // How far beyond the first and last samples extrapolation is allowed.
}

// Ephemeris is an ordered list of states sharing the same frame and form, interpolated in
// cartesian coordinates. It is a Propagator.
type Ephemeris struct {
	states []StateVector
	cart   [][]float64
	opts   EphemerisOptions
	ts     []float64 // seconds since the first sample
	lin    [6]interp.PiecewiseLinear
}

// NewEphemeris sorts the states by epoch and expresses them all in the frame and form of the
// first one.
func NewEphemeris(states []StateVector, opts EphemerisOptions) (*Ephemeris, error) {
	if len(states) == 0 {
		return nil, &ConfigError{Key: "ephemeris", Msg: "no state"}
	}
	env := states[0].env
	if opts.Order == 0 {
		opts.Order = 8
		if env != nil && env.Config.Ephemeris.Order > 0 {
			opts.Order = env.Config.Ephemeris.Order
		}
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = time.Second
		if env != nil && env.Config.Ephemeris.Tolerance > 0 {
			opts.Tolerance = env.Config.Ephemeris.Tolerance
		}
	}
	if opts.Order < 2 {
		return nil, &ConfigError{Key: "ephemeris.order", Msg: fmt.Sprintf("interpolation order must be at least 2, got %d", opts.Order)}
	}
	need := opts.Order
	if opts.Method == Linear {
		need = 2
	}
	if len(states) < need {
		return nil, &ConfigError{Key: "ephemeris", Msg: fmt.Sprintf("%s interpolation needs %d states, got %d", opts.Method, need, len(states))}
	}

	frame, form := states[0].frame, states[0].form
	sorted := append([]StateVector(nil), states...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].epoch.Before(sorted[j].epoch) })
	batch := NewTransformBatch()
	eph := &Ephemeris{opts: opts, states: make([]StateVector, len(sorted)), cart: make([][]float64, len(sorted)), ts: make([]float64, len(sorted))}
	for i, sv := range sorted {
		if i > 0 && sv.epoch.Equal(sorted[i-1].epoch) {
			return nil, propagationErrorf(sv.epoch, "duplicate epoch in ephemeris")
		}
		sv, err := sv.inFrame(frame, batch)
		if err != nil {
			return nil, err
		}
		if sv, err = sv.InForm(form); err != nil {
			return nil, err
		}
		eph.states[i] = sv
		eph.cart[i] = sv.Cartesian()
		eph.ts[i] = sv.epoch.SecondsSince(sorted[0].epoch)
	}
	if opts.Method == Linear {
		ys := make([]float64, len(sorted))
		for k := range eph.lin {
			for i := range ys {
				ys[i] = eph.cart[i][k]
			}
			if err := eph.lin[k].Fit(eph.ts, ys); err != nil {
				return nil, err
			}
		}
	}
	return eph, nil
}

// Name implements the metrics label of propagators.
func (eph *Ephemeris) Name() string { return "ephemeris" }

// Propagator returns the ephemeris as a propagator.
func (eph *Ephemeris) Propagator() Propagator { return eph }

// Options returns the interpolation settings.
func (eph *Ephemeris) Options() EphemerisOptions { return eph.opts }

// Len returns the number of samples.
func (eph *Ephemeris) Len() int { return len(eph.states) }

// Start returns the epoch of the first sample.
func (eph *Ephemeris) Start() Epoch { return eph.states[0].epoch }

// Stop returns the epoch of the last sample.
func (eph *Ephemeris) Stop() Epoch { return eph.states[len(eph.states)-1].epoch }

// States returns a copy of the samples.
func (eph *Ephemeris) States() []StateVector {
	return append([]StateVector(nil), eph.states...)
}

// Propagate interpolates the state at e. At the epoch of a sample, the sample itself is
// returned.
func (eph *Ephemeris) Propagate(e Epoch) (StateVector, error) {
	n := len(eph.states)
	i := sort.Search(n, func(i int) bool { return !eph.states[i].epoch.Before(e) })
	if i < n && eph.states[i].epoch.Equal(e) {
		sv := eph.states[i]
		sv.event = nil
		return sv, nil
	}
	if e.Before(eph.Start().Add(-eph.opts.Tolerance)) || e.After(eph.Stop().Add(eph.opts.Tolerance)) {
		return StateVector{}, &PropagationError{Epoch: e, Err: ErrOutOfRange}
	}
	prev := i - 1
	var c []float64
	if eph.opts.Method == Linear {
		c = eph.linear(e)
	} else {
		c = eph.lagrange(prev, e)
	}
	return eph.states[max(prev, 0)].withCartesian(c, e)
}

// linear interpolates between the samples around e, and extrapolates the first or last
// segment within the tolerance.
func (eph *Ephemeris) linear(e Epoch) []float64 {
	x := e.SecondsSince(eph.states[0].epoch)
	last := len(eph.ts) - 1
	out := make([]float64, 6)
	for k := range out {
		switch {
		case x < 0:
			out[k] = eph.cart[0][k] + x*(eph.cart[1][k]-eph.cart[0][k])/eph.ts[1]
		case x > eph.ts[last]:
			slope := (eph.cart[last][k] - eph.cart[last-1][k]) / (eph.ts[last] - eph.ts[last-1])
			out[k] = eph.cart[last][k] + (x-eph.ts[last])*slope
		default:
			out[k] = eph.lin[k].Predict(x)
		}
	}
	return out
}

// lagrange interpolates on the Order samples centred on the interval starting at sample prev.
func (eph *Ephemeris) lagrange(prev int, e Epoch) []float64 {
	n, order := len(eph.states), eph.opts.Order
	start := prev - order/2 + 1
	stop := prev + 1 + order/2 + order%2
	if start < 0 {
		stop -= start
		start = 0
	}
	if stop > n {
		start -= stop - n
		stop = n
	}
	start = max(start, 0)

	ts := make([]float64, stop-start)
	for j := range ts {
		ts[j] = eph.states[start+j].epoch.SecondsSince(e)
	}
	out := make([]float64, 6)
	for j := range ts {
		w := 1.0
		for k := range ts {
			if k != j {
				w *= ts[k] / (ts[k] - ts[j])
			}
		}
		for c := range out {
			out[c] += w * eph.cart[start+j][c]
		}
	}
	return out
}

// Copy returns the ephemeris with all its samples in another frame and/or form (empty strings
// keep the current ones).
func (eph *Ephemeris) Copy(frame, form string) (*Ephemeris, error) {
	env := eph.states[0].env
	f := eph.states[0].frame
	if frame != "" {
		var err error
		if f, err = env.Frames.Get(frame); err != nil {
			return nil, err
		}
	}
	fm := eph.states[0].form
	if form != "" {
		var err error
		if fm, err = env.Forms.Get(form); err != nil {
			return nil, err
		}
	}
	batch := NewTransformBatch()
	states := make([]StateVector, len(eph.states))
	for i, sv := range eph.states {
		sv, err := sv.inFrame(f, batch)
		if err != nil {
			return nil, err
		}
		if states[i], err = sv.InForm(fm); err != nil {
			return nil, err
		}
	}
	return NewEphemeris(states, eph.opts)
}

// AsFrame returns the ephemeris expressed in another frame.
func (eph *Ephemeris) AsFrame(name string) (*Ephemeris, error) { return eph.Copy(name, "") }

// AsForm returns the ephemeris expressed in another form.
func (eph *Ephemeris) AsForm(name string) (*Ephemeris, error) { return eph.Copy("", name) }
