package fds

import (
	"errors"
	"iter"
	"math"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/ChristopherRabotin/fds/integrator"
)

// Cowell is the numerical propagator: it integrates the cartesian equations of motion in the
// frame of the state, under the attraction of the center of that frame, the perturbations
// and the maneuvers attached to the state.
type Cowell struct {
	Step          time.Duration      // Integration step, maximum step of adaptive methods.
	Method        integrator.Tableau // RK4 if unset.
	Tolerance     float64            // Error tolerance of adaptive methods, 1e-10 if unset.
	Perturbations Perturbations
}

// Bind returns the numerical propagator of the state.
func (c Cowell) Bind(sv StateVector) (Propagator, error) {
	if c.Step <= 0 {
		return nil, &ConfigError{Key: "step", Msg: "integration step must be positive"}
	}
	if c.Method.Stages() == 0 {
		c.Method = integrator.RK4
	}
	if c.Method.Adaptive() && c.Tolerance <= 0 {
		c.Tolerance = 1e-10
	}
	cart, err := sv.AsForm(Cartesian)
	if err != nil {
		return nil, err
	}
	cart.maneuvers, cart.cov, cart.event = nil, nil, nil
	return &cowell{model: c, orig: sv, tpl: cart}, nil
}

type cowell struct {
	model Cowell
	orig  StateVector
	tpl   StateVector // Cartesian copy of orig, without maneuvers.
}

func (p *cowell) Name() string { return "cowell" }

func (p *cowell) Rebind(sv StateVector) (Propagator, error) { return p.model.Bind(sv) }

// Propagate integrates from the initial state to e.
func (p *cowell) Propagate(e Epoch) (StateVector, error) {
	r := p.newRun()
	if err := r.advance(e.SecondsSince(r.t0)); err != nil {
		return StateVector{}, err
	}
	return r.output(e)
}

// Iter integrates from the initial state to start, then step by step to stop.
func (p *cowell) Iter(start, stop Epoch, step time.Duration) iter.Seq2[StateVector, error] {
	return func(yield func(StateVector, error) bool) {
		if step == 0 {
			yield(StateVector{}, &PropagationError{Epoch: start, Err: errNullStep})
			return
		}
		r := p.newRun()
		for _, e := range Range(start, stop, step) {
			if err := r.advance(e.SecondsSince(r.t0)); err != nil {
				yield(StateVector{}, err)
				return
			}
			sv, err := r.output(e)
			if err != nil {
				yield(StateVector{}, err)
				return
			}
			p.orig.env.metrics().step(p.Name())
			if !yield(sv, nil) {
				return
			}
		}
	}
}

// impulse is the state of an impulsive maneuver during a run.
type impulse struct {
	m       *ImpulsiveManeuver
	atEpoch bool
	at      float64 // Seconds since the initial epoch, for epoch triggers.
	fired   bool
	value   float64 // Trigger value at the current time.
	prev    float64 // Trigger value at the previous step.
	hit     bool
}

// cowellRun is one integration from the initial state. It implements integrator.Integrable.
type cowellRun struct {
	p          *cowell
	frame      *Frame
	t0         Epoch
	t          float64
	y          []float64
	prevT      float64
	prevY      []float64
	dir        float64 // Direction of the current leg, zero before the first one.
	solver     *integrator.Solver
	impulses   []*impulse
	continuous []*ContinuousManeuver
	thrusting  []*ContinuousManeuver
	triggered  bool
	err        error
	logger     kitlog.Logger
}

func (p *cowell) newRun() *cowellRun {
	env := p.orig.env
	r := &cowellRun{
		p:      p,
		frame:  p.tpl.frame,
		t0:     p.tpl.epoch,
		y:      append([]float64(nil), p.tpl.coords[:]...),
		logger: env.logger("cowell"),
	}
	for _, m := range p.orig.maneuvers {
		switch m := m.(type) {
		case *ImpulsiveManeuver:
			imp := &impulse{m: m}
			if e, ok := m.Epoch(); ok {
				imp.atEpoch, imp.at = true, e.SecondsSince(r.t0)
			}
			r.impulses = append(r.impulses, imp)
		case *ContinuousManeuver:
			r.continuous = append(r.continuous, m)
		}
	}
	r.solver = integrator.NewSolver(p.model.Method, p.model.Step.Seconds(), p.model.Tolerance, r)
	r.solver.OnReject = func(t, h, errEst float64) {
		level.Debug(r.logger).Log("msg", "step rejected", "epoch", r.t0.AddSeconds(t), "step", h, "error", errEst)
	}
	return r
}

// GetState implements integrator.Integrable.
func (r *cowellRun) GetState() []float64 { return r.y }

// SetState implements integrator.Integrable and checks the maneuver triggers.
func (r *cowellRun) SetState(t float64, s []float64) {
	r.prevT, r.prevY = r.t, r.y
	r.t, r.y = t, s
	if r.err != nil || !r.listening() {
		return
	}
	sv, err := r.stateAt(t, s)
	if err != nil {
		r.err = err
		return
	}
	for _, imp := range r.impulses {
		if imp.fired || imp.atEpoch {
			continue
		}
		v, err := imp.m.Trigger.Value(sv)
		if err != nil {
			r.err = err
			return
		}
		imp.prev, imp.value = imp.value, v
		if chronoCheck(imp.m.Trigger, r.dir < 0, imp.prev, v) {
			imp.hit, r.triggered = true, true
		}
	}
}

// Stop implements integrator.Integrable.
func (r *cowellRun) Stop(t float64) bool { return r.triggered || r.err != nil }

// Func implements integrator.Integrable.
func (r *cowellRun) Func(t float64, s []float64) []float64 {
	e := r.t0.AddSeconds(t)
	rn := norm(s[:3])
	bodyAcc := -r.frame.center.GM() / (rn * rn * rn)
	acc := []float64{bodyAcc * s[0], bodyAcc * s[1], bodyAcc * s[2]}
	pert, err := r.p.model.Perturbations.Perturb(r.p.orig.env.Frames, r.frame, e, s)
	if err != nil {
		if r.err == nil {
			r.err = err
		}
		return []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()}
	}
	add3(acc, pert)
	for _, m := range r.thrusting {
		add3(acc, m.Acceleration(s))
	}
	return []float64{s[3], s[4], s[5], acc[0], acc[1], acc[2]}
}

func (r *cowellRun) listening() bool {
	for _, imp := range r.impulses {
		if !imp.fired && !imp.atEpoch {
			return true
		}
	}
	return false
}

func (r *cowellRun) stateAt(t float64, y []float64) (StateVector, error) {
	return r.p.tpl.withCartesian(y, r.t0.AddSeconds(t))
}

// output returns the current state in the form of the initial state, with the maneuvers not
// applied yet.
func (r *cowellRun) output(e Epoch) (StateVector, error) {
	sv, err := r.p.orig.withCartesian(r.y, e)
	if err != nil {
		return StateVector{}, err
	}
	sv.maneuvers = nil
	for _, imp := range r.impulses {
		if !imp.fired {
			sv.maneuvers = append(sv.maneuvers, imp.m)
		}
	}
	for _, m := range r.continuous {
		sv.maneuvers = append(sv.maneuvers, m)
	}
	return sv, nil
}

func (r *cowellRun) fail(err error) error {
	var perr *PropagationError
	if errors.As(err, &perr) {
		return err
	}
	return &PropagationError{Epoch: r.t0.AddSeconds(r.t), Err: err}
}

// advance integrates up to tf (seconds since the initial epoch), applying the maneuvers on the
// way. A change of direction starts a new pass in which the maneuvers may be applied again.
func (r *cowellRun) advance(tf float64) error {
	if tf == r.t {
		return nil
	}
	dir := 1.0
	if tf < r.t {
		dir = -1
	}
	if dir != r.dir {
		first := r.dir == 0
		for _, imp := range r.impulses {
			imp.fired = false
		}
		r.dir = dir
		if first && dir > 0 {
			r.applyAtEpoch()
		}
		if err := r.resetValues(); err != nil {
			return r.fail(err)
		}
	}
	for r.t != tf {
		target := tf
		for _, τ := range r.splits() {
			if dir*(τ-r.t) > 0 && dir*(target-τ) > 0 {
				target = τ
			}
		}
		r.setThrust((r.t + target) / 2)
		if _, _, err := r.solver.Solve(r.t, target); err != nil {
			if r.err != nil {
				return r.fail(r.err)
			}
			return r.fail(err)
		}
		if r.err != nil {
			return r.fail(r.err)
		}
		if r.triggered {
			if err := r.locate(); err != nil {
				return r.fail(err)
			}
			continue
		}
		r.applyAtEpoch()
	}
	return nil
}

// splits returns the times at which the integration must stop: epochs of maneuvers and
// boundaries of the continuous maneuvers.
func (r *cowellRun) splits() []float64 {
	var out []float64
	for _, imp := range r.impulses {
		if imp.atEpoch && !imp.fired {
			out = append(out, imp.at)
		}
	}
	for _, m := range r.continuous {
		out = append(out, m.Start.SecondsSince(r.t0), m.Stop().SecondsSince(r.t0))
	}
	return out
}

func (r *cowellRun) setThrust(t float64) {
	r.thrusting = r.thrusting[:0]
	e := r.t0.AddSeconds(t)
	for _, m := range r.continuous {
		if m.Active(e) {
			r.thrusting = append(r.thrusting, m)
		}
	}
}

func (r *cowellRun) applyAtEpoch() {
	for _, imp := range r.impulses {
		if imp.atEpoch && !imp.fired && imp.at == r.t {
			r.apply(imp)
		}
	}
}

func (r *cowellRun) apply(imp *impulse) {
	imp.fired = true
	dv := imp.m.DeltaV(r.y)
	y := append([]float64(nil), r.y...)
	for i := 0; i < 3; i++ {
		y[3+i] += r.dir * dv[i]
	}
	r.y = y
	r.p.orig.env.metrics().maneuver()
	level.Info(r.logger).Log("msg", "maneuver applied", "maneuver", imp.m.Name, "epoch", r.t0.AddSeconds(r.t), "Δv(km/s)", norm(dv), "direction", r.dir)
}

// resetValues evaluates the triggers at the current state.
func (r *cowellRun) resetValues() error {
	r.triggered = false
	if !r.listening() {
		return nil
	}
	sv, err := r.stateAt(r.t, r.y)
	if err != nil {
		return err
	}
	for _, imp := range r.impulses {
		imp.hit = false
		if imp.fired || imp.atEpoch {
			continue
		}
		if imp.value, err = imp.m.Trigger.Value(sv); err != nil {
			return err
		}
	}
	return nil
}

// integrate returns the state at tf from the state y at t, without checking the triggers.
func (r *cowellRun) integrate(t float64, y []float64, tf float64) ([]float64, error) {
	for t != tf {
		rem := tf - t
		h := math.Copysign(math.Min(r.solver.Next(), math.Abs(rem)), rem)
		next, used, err := r.solver.Step(t, y, h)
		if err != nil {
			return nil, err
		}
		if used == rem {
			t = tf
		} else {
			t += used
		}
		y = next
	}
	return y, nil
}

// locate bisects the last step to find the earliest trigger crossing, restarts from there and
// applies the maneuver.
func (r *cowellRun) locate() error {
	tol := r.p.orig.env.Config.Events.Tolerance.Seconds()
	if tol <= 0 {
		tol = 1e-5
	}
	backward := r.dir < 0
	var (
		best  *impulse
		bestT float64
		bestY []float64
	)
	for _, imp := range r.impulses {
		if !imp.hit {
			continue
		}
		lo, yLo, vLo := r.prevT, r.prevY, imp.prev
		hi, yHi := r.t, r.y
		for math.Abs(hi-lo) > tol {
			mid := (lo + hi) / 2
			yMid, err := r.integrate(lo, yLo, mid)
			if err != nil {
				return err
			}
			sv, err := r.stateAt(mid, yMid)
			if err != nil {
				return err
			}
			v, err := imp.m.Trigger.Value(sv)
			if err != nil {
				return err
			}
			if chronoCheck(imp.m.Trigger, backward, vLo, v) {
				hi, yHi = mid, yMid
			} else {
				lo, yLo, vLo = mid, yMid, v
			}
		}
		if best == nil || r.dir*(hi-bestT) < 0 {
			best, bestT, bestY = imp, hi, yHi
		}
	}
	r.t, r.y = bestT, bestY
	r.apply(best)
	return r.resetValues()
}
