package fds

import (
	"fmt"
	"math"
)

// ClohessyWiltshire is the linear relative motion model about a target on a circular orbit
// (Hill's equations). The bound state is the chaser; the target follows the two body motion
// and its mean motion drives the relative dynamics. Propagated states are those of the chaser,
// in the frame and form it was bound with.
type ClohessyWiltshire struct {
	Target StateVector
	// MaxEccentricity of the target orbit, 0.01 if zero.
	MaxEccentricity float64
}

// Bind returns the relative motion propagator of the chaser sv.
func (m ClohessyWiltshire) Bind(sv StateVector) (Propagator, error) {
	maxE := m.MaxEccentricity
	if maxE == 0 {
		maxE = 0.01
	}
	infos := m.Target.Infos()
	if infos.Kind != Elliptic || infos.E > maxE {
		return nil, &ConfigError{Key: "cw", Msg: fmt.Sprintf("target orbit is not circular (e=%f)", infos.E)}
	}
	target, err := m.Target.Orbit(Kepler{})
	if err != nil {
		return nil, err
	}
	tgt, err := target.Propagate(sv.epoch)
	if err != nil {
		return nil, err
	}
	ρ, err := RelativeState(tgt, sv)
	if err != nil {
		return nil, err
	}
	return &cw{model: m, orig: sv, target: target, n: infos.N, ρ: ρ}, nil
}

type cw struct {
	model  ClohessyWiltshire
	orig   StateVector
	target Orbit
	n      float64
	ρ      [6]float64 // QSW relative state at the epoch of orig
}

func (p *cw) Name() string { return "cw" }

func (p *cw) Propagate(e Epoch) (StateVector, error) {
	tgt, err := p.target.Propagate(e)
	if err != nil {
		return StateVector{}, err
	}
	if tgt, err = tgt.InFrame(p.orig.frame); err != nil {
		return StateVector{}, err
	}
	ρ := cwState(p.ρ, p.n, e.SecondsSince(p.orig.epoch))
	return p.orig.withCartesian(fromRelative(tgt.Cartesian(), ρ, tgt.GM()), e)
}

func (p *cw) Rebind(sv StateVector) (Propagator, error) {
	return p.model.Bind(sv)
}

// RelativeState returns the position (km) and velocity (km/s) of the chaser with respect to
// the target, in the rotating QSW frame of the target. Both states must share their epoch.
func RelativeState(target, chaser StateVector) ([6]float64, error) {
	if !target.epoch.Equal(chaser.epoch) {
		return [6]float64{}, &PropagationError{Epoch: chaser.epoch, Err: fmt.Errorf("target state at %s", target.epoch)}
	}
	c, err := chaser.InFrame(target.frame)
	if err != nil {
		return [6]float64{}, err
	}
	t, cc := target.Cartesian(), c.Cartesian()
	m := LocalMatrix(QSW, t)
	dr, dv := make([]float64, 3), make([]float64, 3)
	for i := range dr {
		dr[i] = cc[i] - t[i]
		dv[i] = cc[3+i] - t[3+i]
	}
	r, v := MxV33(m, dr), MxV33(m, dv)
	ωxr := cross(localRotationRate(QSW, t, target.GM()), r)
	return [6]float64{r[0], r[1], r[2], v[0] - ωxr[0], v[1] - ωxr[1], v[2] - ωxr[2]}, nil
}

// fromRelative returns the inertial state of the chaser from the target state and the QSW
// relative state.
func fromRelative(target []float64, ρ [6]float64, gm float64) []float64 {
	m := LocalMatrix(QSW, target)
	ωxr := cross(localRotationRate(QSW, target, gm), ρ[:3])
	v := []float64{ρ[3] + ωxr[0], ρ[4] + ωxr[1], ρ[5] + ωxr[2]}
	dr, dv := MxV33(m.T(), ρ[:3]), MxV33(m.T(), v)
	out := make([]float64, 6)
	for i := 0; i < 3; i++ {
		out[i] = target[i] + dr[i]
		out[3+i] = target[3+i] + dv[i]
	}
	return out
}

// cwState is the closed form solution of Hill's equations after dt seconds: x radial, y along
// track and z along the angular momentum.
func cwState(ρ0 [6]float64, n, dt float64) [6]float64 {
	x0, y0, z0, vx0, vy0, vz0 := ρ0[0], ρ0[1], ρ0[2], ρ0[3], ρ0[4], ρ0[5]
	nt := n * dt
	s, c := math.Sincos(nt)
	return [6]float64{
		(4-3*c)*x0 + s/n*vx0 + 2/n*(1-c)*vy0,
		6*(s-nt)*x0 + y0 - 2/n*(1-c)*vx0 + (4*s-3*nt)/n*vy0,
		c*z0 + s/n*vz0,
		3*n*s*x0 + c*vx0 + 2*s*vy0,
		-6*n*(1-c)*x0 - 2*s*vx0 + (4*c-3)*vy0,
		-n*s*z0 + c*vz0,
	}
}
