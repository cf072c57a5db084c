package fds

import (
	"fmt"
	"math"
	"strings"
)

// StateVector is six coordinates with their epoch, frame and form, and optionally a covariance.
// Frame and form changes return new values; the receiver is never modified.
type StateVector struct {
	coords    Coords
	epoch     Epoch
	frame     *Frame
	form      *Form
	env       *Env
	cov       *Covariance
	maneuvers []Maneuver
	event     *Event
	// Name and ID identify the object (e.g. COSPAR or NORAD identifiers).
	Name, ID string

	infos   Infos
	infosOK bool
}

// NewStateVector returns a state vector, checking that the frame and form exist and that the
// coordinates can be expressed in cartesian form.
func (env *Env) NewStateVector(c Coords, e Epoch, frame, form string) (StateVector, error) {
	f, err := env.Frames.Get(frame)
	if err != nil {
		return StateVector{}, err
	}
	fm, err := env.Forms.Get(form)
	if err != nil {
		return StateVector{}, err
	}
	sv := StateVector{coords: c, epoch: e, frame: f, form: fm, env: env}
	if _, err := sv.cartesian(); err != nil {
		return StateVector{}, err
	}
	return sv, nil
}

// NewCartesian is a shortcut for a cartesian state vector from its position and velocity.
func (env *Env) NewCartesian(r, v []float64, e Epoch, frame string) (StateVector, error) {
	return env.NewStateVector(Coords{r[0], r[1], r[2], v[0], v[1], v[2]}, e, frame, Cartesian)
}

// Coords returns the coordinates.
func (sv StateVector) Coords() Coords { return sv.coords }

// Epoch returns the epoch.
func (sv StateVector) Epoch() Epoch { return sv.epoch }

// Frame returns the frame.
func (sv StateVector) Frame() *Frame { return sv.frame }

// Form returns the form.
func (sv StateVector) Form() *Form { return sv.form }

// Env returns the environment the state was created in.
func (sv StateVector) Env() *Env { return sv.env }

// Center returns the central body.
func (sv StateVector) Center() CelestialObject { return sv.frame.center }

// GM returns the gravitational parameter of the central body.
func (sv StateVector) GM() float64 { return sv.frame.center.GM() }

// Get returns a coordinate by name or alias.
func (sv StateVector) Get(name string) (float64, error) {
	i, err := sv.form.Index(name)
	if err != nil {
		return 0, err
	}
	return sv.coords[i], nil
}

// Set changes one coordinate in place and invalidates the cached information. The change is
// refused if the resulting coordinates do not describe a valid state.
func (sv *StateVector) Set(name string, value float64) error {
	i, err := sv.form.Index(name)
	if err != nil {
		return err
	}
	prev := sv.coords[i]
	sv.coords[i] = value
	if _, err := sv.cartesian(); err != nil {
		sv.coords[i] = prev
		return err
	}
	sv.infosOK = false
	return nil
}

func (sv StateVector) cartesian() (Coords, error) {
	if sv.form.Name == Cartesian {
		return sv.coords, nil
	}
	return sv.env.Forms.ConvertForms(sv.coords, sv.form, mustForm(sv.env, Cartesian), sv.GM())
}

// Cartesian returns the position and velocity. Every state vector has a valid cartesian
// representation, checked at creation and on Set.
func (sv StateVector) Cartesian() []float64 {
	c, err := sv.cartesian()
	if err != nil {
		return []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()}
	}
	return c[:]
}

// R returns the position vector (km).
func (sv StateVector) R() []float64 { return sv.Cartesian()[:3] }

// V returns the velocity vector (km/s).
func (sv StateVector) V() []float64 { return sv.Cartesian()[3:] }

func mustForm(env *Env, name string) *Form {
	f, err := env.Forms.Get(name)
	if err != nil {
		panic(err)
	}
	return f
}

// AsForm returns the state expressed in another form.
func (sv StateVector) AsForm(name string) (StateVector, error) {
	f, err := sv.env.Forms.Get(name)
	if err != nil {
		return StateVector{}, err
	}
	return sv.InForm(f)
}

// InForm returns the state expressed in another form.
func (sv StateVector) InForm(f *Form) (StateVector, error) {
	if f.Name == sv.form.Name {
		return sv, nil
	}
	c, err := sv.env.Forms.ConvertForms(sv.coords, sv.form, f, sv.GM())
	if err != nil {
		return StateVector{}, err
	}
	out := sv
	out.coords = c
	out.form = f
	out.infosOK = false
	if sv.cov != nil && sv.cov.local == "" {
		J, err := formJacobian(sv.env.Forms, sv.coords, sv.form, f, sv.GM())
		if err != nil {
			return StateVector{}, err
		}
		out.cov = sv.cov.transformed(J, "")
	}
	return out, nil
}

// AsFrame returns the state expressed in another frame.
func (sv StateVector) AsFrame(name string) (StateVector, error) {
	f, err := sv.env.Frames.Get(name)
	if err != nil {
		return StateVector{}, err
	}
	return sv.InFrame(f)
}

// InFrame returns the state expressed in another frame, keeping its form.
func (sv StateVector) InFrame(f *Frame) (StateVector, error) {
	return sv.inFrame(f, nil)
}

func (sv StateVector) inFrame(f *Frame, batch *TransformBatch) (StateVector, error) {
	if f == sv.frame {
		return sv, nil
	}
	t, err := TransformFrames(sv.frame, f, sv.epoch, batch)
	if err != nil {
		return StateVector{}, err
	}
	cartForm := mustForm(sv.env, Cartesian)
	cart, err := sv.cartesian()
	if err != nil {
		return StateVector{}, err
	}
	var newCart Coords
	copy(newCart[:], t.Apply(cart[:]))
	c, err := sv.env.Forms.ConvertForms(newCart, cartForm, sv.form, f.center.GM())
	if err != nil {
		return StateVector{}, err
	}
	out := sv
	out.coords = c
	out.frame = f
	out.infosOK = false
	if sv.cov != nil && sv.cov.local == "" {
		J1, err := formJacobian(sv.env.Forms, sv.coords, sv.form, cartForm, sv.GM())
		if err != nil {
			return StateVector{}, err
		}
		J2, err := formJacobian(sv.env.Forms, newCart, cartForm, sv.form, f.center.GM())
		if err != nil {
			return StateVector{}, err
		}
		out.cov = sv.cov.transformed(chainJacobians(J1, t.M, J2), "")
	}
	return out, nil
}

// Copy returns an independent state vector, optionally in another frame and/or form (empty
// strings keep the current ones).
func (sv StateVector) Copy(frame, form string) (StateVector, error) {
	out := sv
	out.maneuvers = append([]Maneuver(nil), sv.maneuvers...)
	if sv.cov != nil {
		out.cov = sv.cov.clone()
	}
	var err error
	if frame != "" {
		if out, err = out.AsFrame(frame); err != nil {
			return StateVector{}, err
		}
	}
	if form != "" {
		if out, err = out.AsForm(form); err != nil {
			return StateVector{}, err
		}
	}
	return out, nil
}

// withCartesian returns a state at another epoch from cartesian coordinates in the same frame,
// expressed in the same form as sv.
func (sv StateVector) withCartesian(c []float64, e Epoch) (StateVector, error) {
	out := sv
	out.epoch = e
	out.event = nil
	out.infosOK = false
	out.cov = nil
	var cc Coords
	copy(cc[:], c)
	cf, err := sv.env.Forms.ConvertForms(cc, mustForm(sv.env, Cartesian), sv.form, sv.GM())
	if err != nil {
		return StateVector{}, &PropagationError{Epoch: e, Err: err}
	}
	out.coords = cf
	return out, nil
}

// withCoords returns a state at another epoch with coordinates in the form f.
func (sv StateVector) withCoords(c Coords, f *Form, e Epoch) (StateVector, error) {
	tmp := sv
	tmp.coords, tmp.form, tmp.epoch = c, f, e
	tmp.event, tmp.cov, tmp.infosOK = nil, nil, false
	if _, err := tmp.cartesian(); err != nil {
		return StateVector{}, &PropagationError{Epoch: e, Err: err}
	}
	out, err := tmp.InForm(sv.form)
	if err != nil {
		return StateVector{}, &PropagationError{Epoch: e, Err: err}
	}
	return out, nil
}

// Cov returns the covariance, nil if none is attached.
func (sv StateVector) Cov() *Covariance { return sv.cov }

// WithCov returns the state with the covariance attached.
func (sv StateVector) WithCov(c *Covariance) StateVector {
	sv.cov = c
	return sv
}

// Maneuvers returns the maneuvers attached to the state.
func (sv StateVector) Maneuvers() []Maneuver { return sv.maneuvers }

// WithManeuvers returns the state with the maneuvers attached.
func (sv StateVector) WithManeuvers(m ...Maneuver) StateVector {
	sv.maneuvers = append(append([]Maneuver(nil), sv.maneuvers...), m...)
	return sv
}

// Event returns the event this state was produced for, nil if none.
func (sv StateVector) Event() *Event { return sv.event }

// WithEvent returns the state tagged with the event.
func (sv StateVector) WithEvent(ev *Event) StateVector {
	sv.event = ev
	return sv
}

// Infos returns the derived orbital quantities, computed once until a coordinate is set.
func (sv *StateVector) Infos() Infos {
	if !sv.infosOK {
		sv.infos = newInfos(sv.Cartesian(), sv.GM(), sv.Center().Radius)
		sv.infosOK = true
	}
	return sv.infos
}

// Orbit returns an orbit bound to the propagator created by the model from this state.
func (sv StateVector) Orbit(m Model) (Orbit, error) {
	p, err := m.Bind(sv)
	if err != nil {
		return Orbit{}, err
	}
	return Orbit{StateVector: sv, prop: p}, nil
}

func (sv StateVector) String() string {
	var b strings.Builder
	name := sv.Name
	if name == "" {
		name = "StateVector"
	}
	fmt.Fprintf(&b, "%s =\n  date = %s\n  form = %s\n  frame = %s\n  center = %s\n  coord =", name, sv.epoch, sv.form.Name, sv.frame.name, sv.frame.center.Name)
	for i, p := range sv.form.Params {
		fmt.Fprintf(&b, "\n    %s = %g", p, sv.coords[i])
	}
	return b.String()
}
