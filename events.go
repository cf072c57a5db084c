package fds

import (
	"errors"
	"iter"
	"sort"
	"time"

	"github.com/go-kit/log/level"
)

// Event is the occurrence of a listener condition.
type Event struct {
	Epoch    Epoch
	Label    string
	Listener Listener
	State    StateVector // State at the event, within the detector tolerance after the crossing.
}

func (ev Event) String() string { return ev.Label + " @ " + ev.Epoch.String() }

// ErrNoEvent is returned by FindEvent when no matching event is found.
var ErrNoEvent = errors.New("no such event")

// EventDetector samples listeners along the steps of a propagation and locates the events by
// bisection. Each range over its sequences is an independent run.
type EventDetector struct {
	Listeners []Listener
	// Tolerance is the width of the bisection bracket at which an event is located.
	Tolerance time.Duration
	env       *Env
}

// NewEventDetector returns a detector with the configured event tolerance.
func NewEventDetector(env *Env, listeners ...Listener) *EventDetector {
	tol := 10 * time.Microsecond
	if env != nil && env.Config.Events.Tolerance > 0 {
		tol = env.Config.Events.Tolerance
	}
	return &EventDetector{Listeners: listeners, Tolerance: tol, env: env}
}

// Listen propagates from start to stop by step and returns the states with the states of the
// events interleaved. The event states carry their Event. Events detected within the same step
// come in chronological order.
func (d *EventDetector) Listen(p Propagator, start, stop Epoch, step time.Duration) iter.Seq2[StateVector, error] {
	return func(yield func(StateVector, error) bool) {
		logger := d.env.logger("events")
		backward := step < 0
		var (
			prev    []float64
			prevSV  StateVector
			started bool
		)
		for sv, err := range Iter(p, start, stop, step) {
			if err != nil {
				yield(StateVector{}, err)
				return
			}
			cur := make([]float64, len(d.Listeners))
			for i, l := range d.Listeners {
				if cur[i], err = l.Value(sv); err != nil {
					yield(StateVector{}, &PropagationError{Epoch: sv.epoch, Err: err})
					return
				}
			}
			if started {
				var found []StateVector
				for i, l := range d.Listeners {
					if !chronoCheck(l, backward, prev[i], cur[i]) {
						continue
					}
					ev, err := d.bisect(p, l, backward, prevSV, prev[i], sv, cur[i])
					if err != nil {
						yield(StateVector{}, err)
						return
					}
					d.env.metrics().event(l.Name())
					level.Debug(logger).Log("msg", "event", "label", ev.event.Label, "epoch", ev.epoch)
					found = append(found, ev)
				}
				sort.SliceStable(found, func(i, j int) bool {
					if backward {
						return found[i].epoch.After(found[j].epoch)
					}
					return found[i].epoch.Before(found[j].epoch)
				})
				for _, ev := range found {
					if !yield(ev, nil) {
						return
					}
				}
			}
			if !yield(sv, nil) {
				return
			}
			prev, prevSV, started = cur, sv, true
		}
	}
}

// Events is like Listen but only returns the events.
func (d *EventDetector) Events(p Propagator, start, stop Epoch, step time.Duration) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for sv, err := range d.Listen(p, start, stop, step) {
			if err != nil {
				yield(Event{}, err)
				return
			}
			if sv.event == nil {
				continue
			}
			if !yield(*sv.event, nil) {
				return
			}
		}
	}
}

// chronoCheck checks the values in chronological order.
func chronoCheck(l Listener, backward bool, prev, cur float64) bool {
	if backward {
		return l.Check(cur, prev)
	}
	return l.Check(prev, cur)
}

// bisect locates the crossing of l between lo and hi, and returns the state just after it in
// the direction of propagation.
func (d *EventDetector) bisect(p Propagator, l Listener, backward bool, lo StateVector, vLo float64, hi StateVector, vHi float64) (StateVector, error) {
	q := restartFrom(p, lo)
	for {
		half := hi.epoch.Sub(lo.epoch) / 2
		if half == 0 || absDuration(2*half) <= d.Tolerance {
			break
		}
		sv, err := q.Propagate(lo.epoch.Add(half))
		if err != nil {
			return StateVector{}, err
		}
		v, err := l.Value(sv)
		if err != nil {
			return StateVector{}, &PropagationError{Epoch: sv.epoch, Err: err}
		}
		if chronoCheck(l, backward, vLo, v) {
			hi, vHi = sv, v
		} else {
			lo, vLo = sv, v
		}
	}
	label := l.Label(vLo, vHi)
	if backward {
		label = l.Label(vHi, vLo)
	}
	ev := &Event{Epoch: hi.epoch, Label: label, Listener: l}
	out := hi.WithEvent(ev)
	ev.State = out
	return out, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// FindEvent returns the n-th (starting at zero) event of the sequence with that label.
func FindEvent(events iter.Seq2[Event, error], label string, n int) (Event, error) {
	for ev, err := range events {
		if err != nil {
			return Event{}, err
		}
		if ev.Label != label {
			continue
		}
		if n == 0 {
			return ev, nil
		}
		n--
	}
	return Event{}, ErrNoEvent
}
