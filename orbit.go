package fds

import (
	"iter"
	"time"
)

// Orbit is a state vector bound to a propagator, hence extrapolable.
type Orbit struct {
	StateVector
	prop Propagator
}

// NewOrbit binds a state to an existing propagator.
func NewOrbit(sv StateVector, p Propagator) Orbit {
	return Orbit{StateVector: sv, prop: p}
}

// Propagator returns the propagator of the orbit.
func (o Orbit) Propagator() Propagator { return o.prop }

// Propagate returns the state at the provided epoch, in the output frame and form of the
// propagator, even at the epoch of the orbit.
func (o Orbit) Propagate(e Epoch) (StateVector, error) {
	return o.prop.Propagate(e)
}

// PropagateBy returns the state after the provided duration.
func (o Orbit) PropagateBy(d time.Duration) (StateVector, error) {
	return o.Propagate(o.epoch.Add(d))
}

// Iter returns the lazy sequence of states between start and stop.
func (o Orbit) Iter(start, stop Epoch, step time.Duration) iter.Seq2[StateVector, error] {
	return Iter(o.prop, start, stop, step)
}

// Ephem propagates between start and stop and returns the states as an ephemeris.
func (o Orbit) Ephem(start, stop Epoch, step time.Duration) (*Ephemeris, error) {
	states, err := Collect(o.Iter(start, stop, step))
	if err != nil {
		return nil, err
	}
	return NewEphemeris(states, EphemerisOptions{})
}

// Listen propagates between start and stop and returns the states interleaved with the
// states of the events detected by the listeners, using the configured event tolerance.
func (o Orbit) Listen(start, stop Epoch, step time.Duration, listeners ...Listener) iter.Seq2[StateVector, error] {
	d := NewEventDetector(o.env, listeners...)
	return d.Listen(o.prop, start, stop, step)
}

// Events is like Listen but only returns the events.
func (o Orbit) Events(start, stop Epoch, step time.Duration, listeners ...Listener) iter.Seq2[Event, error] {
	d := NewEventDetector(o.env, listeners...)
	return d.Events(o.prop, start, stop, step)
}
