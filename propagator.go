package fds

import (
	"errors"
	"iter"
	"time"
)

// Propagator computes the state of an object at any epoch. Analytical propagators do so in
// constant time, independently of previous calls.
type Propagator interface {
	Propagate(e Epoch) (StateVector, error)
}

// Model creates a propagator initialised with a state.
type Model interface {
	Bind(sv StateVector) (Propagator, error)
}

// stepper is implemented by propagators which are more efficient stepping forward than
// jumping to arbitrary epochs, i.e. numerical propagators.
type stepper interface {
	Iter(start, stop Epoch, step time.Duration) iter.Seq2[StateVector, error]
}

// rebinder is implemented by propagators which can restart from one of their own states,
// e.g. to bisect between two steps without integrating from the initial state.
type rebinder interface {
	Rebind(sv StateVector) (Propagator, error)
}

// namer gives the label used in the metrics.
type namer interface {
	Name() string
}

func propagatorName(p Propagator) string {
	if n, ok := p.(namer); ok {
		return n.Name()
	}
	return "unknown"
}

var errNullStep = errors.New("null step")

// Iter returns the states of the propagator from start to stop (included if reached) by step.
// A negative step propagates backward. The sequence is lazy and can be ranged over again to
// restart from start.
func Iter(p Propagator, start, stop Epoch, step time.Duration) iter.Seq2[StateVector, error] {
	if s, ok := p.(stepper); ok {
		return s.Iter(start, stop, step)
	}
	name := propagatorName(p)
	return func(yield func(StateVector, error) bool) {
		if step == 0 {
			yield(StateVector{}, &PropagationError{Epoch: start, Err: errNullStep})
			return
		}
		for _, e := range Range(start, stop, step) {
			sv, err := p.Propagate(e)
			if err != nil {
				yield(StateVector{}, err)
				return
			}
			sv.env.metrics().step(name)
			if !yield(sv, nil) {
				return
			}
		}
	}
}

// Collect propagates over the range and returns all the states, stopping at the first error.
func Collect(seq iter.Seq2[StateVector, error]) ([]StateVector, error) {
	var out []StateVector
	for sv, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, sv)
	}
	return out, nil
}

// restartFrom returns a propagator equivalent to p which starts at sv, if p supports it.
func restartFrom(p Propagator, sv StateVector) Propagator {
	if r, ok := p.(rebinder); ok {
		if q, err := r.Rebind(sv); err == nil {
			return q
		}
	}
	return p
}
