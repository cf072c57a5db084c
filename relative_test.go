package fds

import (
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats"
)

// nearCircular returns a target on a near circular 7000 km orbit, and a chaser on a closed
// relative ellipse of 1 km by 2 km about it.
func nearCircular(t *testing.T, env *Env) (target, chaser StateVector) {
	t.Helper()
	target, err := env.NewStateVector(Coords{7000, 1e-4, Deg2rad(51.6), Deg2rad(30), 0, 0}, testEpoch, EME2000, Keplerian)
	if err != nil {
		t.Fatal(err)
	}
	if target, err = target.AsForm(Cartesian); err != nil {
		t.Fatal(err)
	}
	n := target.Infos().N
	c := fromRelative(target.Cartesian(), [6]float64{0.5, 0, 0.3, 0, -2 * n * 0.5, 0}, target.GM())
	if chaser, err = env.NewCartesian(c[:3], c[3:], testEpoch, EME2000); err != nil {
		t.Fatal(err)
	}
	return target, chaser
}

func TestRelativeState(t *testing.T) {
	env := DefaultEnv()
	target, chaser := nearCircular(t, env)
	ρ, err := RelativeState(target, chaser)
	if err != nil {
		t.Fatal(err)
	}
	n := target.Infos().N
	if !floats.EqualApprox(ρ[:], []float64{0.5, 0, 0.3, 0, -n, 0}, 1e-9) {
		t.Fatalf("relative state %v", ρ)
	}
	if back := fromRelative(target.Cartesian(), ρ, target.GM()); !vectorsEqual(back, chaser.Cartesian()) {
		t.Fatalf("back to inertial %v, expected %v", back, chaser.Cartesian())
	}
	later, _ := chaser.Orbit(Kepler{})
	sv, _ := later.PropagateBy(time.Minute)
	if _, err := RelativeState(target, sv); err == nil {
		t.Fatal("states at different epochs")
	}
}

func TestClohessyWiltshire(t *testing.T) {
	env := DefaultEnv()
	target, chaser := nearCircular(t, env)
	o, err := chaser.Orbit(ClohessyWiltshire{Target: target})
	if err != nil {
		t.Fatal(err)
	}
	if name := propagatorName(o.Propagator()); name != "cw" {
		t.Fatalf("name %q", name)
	}
	ref, _ := chaser.Orbit(Kepler{})
	for _, dt := range []time.Duration{0, 10 * time.Minute, 45 * time.Minute, 97 * time.Minute} {
		got, err := o.PropagateBy(dt)
		if err != nil {
			t.Fatal(err)
		}
		want, _ := ref.PropagateBy(dt)
		if !floats.EqualApprox(got.R(), want.R(), 0.05) || !floats.EqualApprox(got.V(), want.V(), 5e-5) {
			t.Fatalf("+%s:\n%v\nexpected\n%v", dt, got.Cartesian(), want.Cartesian())
		}
		if got.Frame() != chaser.Frame() || got.Form() != chaser.Form() {
			t.Fatalf("+%s: state in %s/%s", dt, got.Frame().Name(), got.Form().Name)
		}
	}

	eccentric, err := env.NewStateVector(Coords{7000, 0.1, Deg2rad(51.6), Deg2rad(30), 0, 0}, testEpoch, EME2000, Keplerian)
	if err != nil {
		t.Fatal(err)
	}
	var cerr *ConfigError
	if _, err := chaser.Orbit(ClohessyWiltshire{Target: eccentric}); !errors.As(err, &cerr) {
		t.Fatalf("eccentric target: %v", err)
	}
}

func TestCWState(t *testing.T) {
	n := 2 * math.Pi / 5400
	ρ0 := [6]float64{1, 2, 3, 1e-3, -2e-3, 3e-3}
	if got := cwState(ρ0, n, 0); got != ρ0 {
		t.Fatalf("at dt=0: %v", got)
	}
	// The out of plane motion is periodic, the radial offset drifts along track.
	got := cwState([6]float64{1, 0, 1, 0, 0, 0}, n, 5400)
	if !floats.EqualApprox(got[:], []float64{1, -12 * math.Pi, 1, 0, 0, 0}, 1e-9) {
		t.Fatalf("after one period: %v", got)
	}
	// vy0 = -2n·x0 closes the relative orbit.
	closed := [6]float64{1, 0, 0, 0, -2 * n, 0}
	if got := cwState(closed, n, 5400); !floats.EqualApprox(got[:], closed[:], 1e-9) {
		t.Fatalf("closed relative orbit: %v", got)
	}
}
