package fds

import (
	"iter"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// SOIBody is a secondary body and the model used within its sphere of influence.
type SOIBody struct {
	Body  CelestialObject
	Frame string // Frame centred on the body, defaults to the body frame of the graph (e.g. Moon).
	Model Model
}

// SOI propagates with the model of the body whose sphere of influence contains the object:
// the first of Bodies whose SOI radius is larger than the distance, the central model
// otherwise. The state is re-expressed in the frame of the new body at each switch.
type SOI struct {
	Central      Model
	CentralFrame string // Defaults to EME2000.
	Bodies       []SOIBody
	// OutFrame is the frame of the returned states. If empty, states come in the frame of the
	// active body.
	OutFrame string
	// Step is the step used to check the sphere of influence by Propagate, one minute if zero.
	Step time.Duration
}

// Bind returns the propagator, with the model of the sphere of influence the state is in.
func (m SOI) Bind(sv StateVector) (Propagator, error) {
	if m.CentralFrame == "" {
		m.CentralFrame = EME2000
	}
	if m.Step == 0 {
		m.Step = time.Minute
	}
	p := &soi{model: m, orig: sv, frames: make([]*Frame, len(m.Bodies))}
	var err error
	if p.central, err = sv.env.Frames.Get(m.CentralFrame); err != nil {
		return nil, err
	}
	for i, b := range m.Bodies {
		name := b.Frame
		if name == "" {
			var ok bool
			if name, ok = bodyFrames[b.Body.Name]; !ok {
				return nil, &FrameError{Frame: b.Body.Name, Msg: "no frame centred on this body"}
			}
		}
		if p.frames[i], err = sv.env.Frames.Get(name); err != nil {
			return nil, err
		}
	}
	if m.OutFrame != "" {
		if p.out, err = sv.env.Frames.Get(m.OutFrame); err != nil {
			return nil, err
		}
	}
	p.active, p.start, err = p.locate(sv)
	if err != nil {
		return nil, err
	}
	if p.delegate, err = p.modelOf(p.active).Bind(p.start); err != nil {
		return nil, err
	}
	return p, nil
}

type soi struct {
	model    SOI
	orig     StateVector
	central  *Frame
	frames   []*Frame
	out      *Frame
	active   int // Index in Bodies, -1 for the central body.
	start    StateVector
	delegate Propagator
}

func (p *soi) Name() string { return "soi" }

func (p *soi) Rebind(sv StateVector) (Propagator, error) { return p.model.Bind(sv) }

func (p *soi) modelOf(i int) Model {
	if i < 0 {
		return p.model.Central
	}
	return p.model.Bodies[i].Model
}

func (p *soi) bodyName(i int) string {
	if i < 0 {
		return p.central.center.Name
	}
	return p.model.Bodies[i].Body.Name
}

// locate returns the sphere of influence containing the state, and the state in its frame.
func (p *soi) locate(sv StateVector) (int, StateVector, error) {
	for i, b := range p.model.Bodies {
		local, err := sv.InFrame(p.frames[i])
		if err != nil {
			return 0, StateVector{}, err
		}
		if norm(local.R()) < b.Body.SOI {
			return i, local, nil
		}
	}
	local, err := sv.InFrame(p.central)
	return -1, local, err
}

func (p *soi) output(sv StateVector) (StateVector, error) {
	if p.out == nil {
		return sv, nil
	}
	return sv.InFrame(p.out)
}

// soiRun tracks the active sphere of influence during one run.
type soiRun struct {
	p        *soi
	active   int
	delegate Propagator
}

// update switches the delegate if the state left the active sphere of influence, and returns
// the state in the frame of the delegate now active.
func (r *soiRun) update(logger kitlog.Logger, sv StateVector) (StateVector, bool, error) {
	active, local, err := r.p.locate(sv)
	if err != nil {
		return StateVector{}, false, &PropagationError{Epoch: sv.epoch, Err: err}
	}
	if active == r.active {
		return sv, false, nil
	}
	level.Info(logger).Log("msg", "SOI change", "from", r.p.bodyName(r.active), "to", r.p.bodyName(active), "epoch", sv.epoch)
	r.p.orig.env.metrics().soiSwitch()
	if r.delegate, err = r.p.modelOf(active).Bind(local); err != nil {
		return StateVector{}, false, &PropagationError{Epoch: sv.epoch, Err: err}
	}
	r.active = active
	return local, true, nil
}

// walk iterates the delegates from start to stop, switching delegate when the state leaves the
// active sphere of influence. fn receives every state, in the frame of its delegate.
func (r *soiRun) walk(start, stop Epoch, step time.Duration, fn func(StateVector) bool) error {
	logger := r.p.orig.env.logger("soi")
	epochs := Range(start, stop, step)
	for i := 0; i < len(epochs); {
		switched := false
		for sv, err := range Iter(r.delegate, epochs[i], stop, step) {
			if err != nil {
				return err
			}
			i++
			if !fn(sv) {
				return nil
			}
			if _, switched, err = r.update(logger, sv); err != nil {
				return err
			}
			if switched {
				break
			}
		}
		if !switched {
			return nil
		}
	}
	return nil
}

// Propagate walks from the initial state to e by Step, to catch the switches on the way,
// including on the last partial step.
func (p *soi) Propagate(e Epoch) (StateVector, error) {
	r := &soiRun{p: p, active: p.active, delegate: p.delegate}
	step := p.model.Step
	if e.Before(p.start.epoch) {
		step = -step
	}
	if err := r.walk(p.start.epoch, e, step, func(StateVector) bool { return true }); err != nil {
		return StateVector{}, err
	}
	sv, err := r.delegate.Propagate(e)
	if err != nil {
		return StateVector{}, err
	}
	if sv, _, err = r.update(p.orig.env.logger("soi"), sv); err != nil {
		return StateVector{}, err
	}
	return p.output(sv)
}

// Iter returns the states from start to stop by step, switching delegate on the way.
func (p *soi) Iter(start, stop Epoch, step time.Duration) iter.Seq2[StateVector, error] {
	return func(yield func(StateVector, error) bool) {
		if step == 0 {
			yield(StateVector{}, &PropagationError{Epoch: start, Err: errNullStep})
			return
		}
		r := &soiRun{p: p, active: p.active, delegate: p.delegate}
		var stopped bool
		err := r.walk(start, stop, step, func(sv StateVector) bool {
			out, err := p.output(sv)
			if err != nil {
				stopped = true
				yield(StateVector{}, &PropagationError{Epoch: sv.epoch, Err: err})
				return false
			}
			if !yield(out, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield(StateVector{}, err)
		}
	}
}
