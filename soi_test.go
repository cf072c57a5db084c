package fds

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func lunarModel() SOI {
	return SOI{
		Central: Kepler{},
		Bodies:  []SOIBody{{Body: Moon, Model: Kepler{}}},
	}
}

func TestSOIInside(t *testing.T) {
	env := DefaultEnv()
	sv, err := env.NewStateVector(Coords{5000, 0.05, 0.5, 0, 0, 0}, testEpoch, MoonFrame, Keplerian)
	if err != nil {
		t.Fatal(err)
	}
	o, err := sv.Orbit(lunarModel())
	if err != nil {
		t.Fatal(err)
	}
	if name := propagatorName(o.Propagator()); name != "soi" {
		t.Fatalf("name %q", name)
	}
	ref, _ := sv.Orbit(Kepler{})
	e := testEpoch.Add(2 * time.Hour)
	got, err := o.Propagate(e)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := ref.Propagate(e)
	if got.Frame().Name() != MoonFrame || !vectorsEqual(got.Cartesian(), want.Cartesian()) {
		t.Fatalf("lunar orbit not propagated about the Moon:\n%s", got)
	}

	m := lunarModel()
	m.OutFrame = EME2000
	o, err = sv.Orbit(m)
	if err != nil {
		t.Fatal(err)
	}
	out, err := o.Propagate(e)
	if err != nil {
		t.Fatal(err)
	}
	if out.Frame().Name() != EME2000 {
		t.Fatalf("output in %s", out.Frame().Name())
	}
	back, err := out.AsFrame(MoonFrame)
	if err != nil {
		t.Fatal(err)
	}
	if !vectorsEqual(back.Cartesian(), want.Cartesian()) {
		t.Fatalf("output frame conversion:\n%v\n%v", back.Cartesian(), want.Cartesian())
	}
}

func TestSOIEscape(t *testing.T) {
	env := DefaultEnv()
	env.Metrics = NewMetrics(prometheus.NewRegistry())
	sv, err := env.NewCartesian([]float64{60000, 0, 0}, []float64{2, 0.5, 0.1}, testEpoch, MoonFrame)
	if err != nil {
		t.Fatal(err)
	}
	o, err := sv.Orbit(lunarModel())
	if err != nil {
		t.Fatal(err)
	}
	states, err := Collect(o.Iter(testEpoch, testEpoch.Add(3*time.Hour), 5*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 37 {
		t.Fatalf("%d states", len(states))
	}
	switches := 0
	for i, s := range states {
		if i > 0 && s.Frame() != states[i-1].Frame() {
			switches++
		}
		if s.Frame().Name() == MoonFrame && norm(s.R()) > Moon.SOI+15*60*2.1 {
			t.Fatalf("%s: still about the Moon at %f km", s.Epoch(), norm(s.R()))
		}
	}
	if switches != 1 || states[0].Frame().Name() != MoonFrame || states[36].Frame().Name() != EME2000 {
		t.Fatalf("%d switches, from %s to %s", switches, states[0].Frame().Name(), states[36].Frame().Name())
	}
	if n := testutil.ToFloat64(env.Metrics.SOISwitches); n != 1 {
		t.Fatalf("%f switches counted", n)
	}
	lunar, _ := states[36].AsFrame(MoonFrame)
	if norm(lunar.R()) < Moon.SOI {
		t.Fatalf("back in the sphere of influence: %f km", norm(lunar.R()))
	}

	last, err := o.Propagate(testEpoch.Add(3 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if last.Frame().Name() != EME2000 {
		t.Fatalf("propagated state in %s", last.Frame().Name())
	}

	if _, err := Collect(o.Iter(testEpoch, testEpoch.Add(time.Hour), 0)); !errors.Is(err, errNullStep) {
		t.Fatalf("expected a null step error, got %v", err)
	}
}

func TestSOIPartialStep(t *testing.T) {
	env := DefaultEnv()
	env.Metrics = NewMetrics(prometheus.NewRegistry())
	sv, err := env.NewCartesian([]float64{60000, 0, 0}, []float64{2, 0.5, 0.1}, testEpoch, MoonFrame)
	if err != nil {
		t.Fatal(err)
	}
	m := lunarModel()
	m.Step = time.Hour
	o, err := sv.Orbit(m)
	if err != nil {
		t.Fatal(err)
	}
	// The exit happens between 50 and 55 minutes, within the first step.
	in, err := o.Propagate(testEpoch.Add(50 * time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if in.Frame().Name() != MoonFrame || norm(in.R()) > Moon.SOI {
		t.Fatalf("left the Moon early: %f km in %s", norm(in.R()), in.Frame().Name())
	}
	out, err := o.Propagate(testEpoch.Add(55 * time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if out.Frame().Name() != EME2000 {
		t.Fatalf("outside the sphere of influence, propagated state in %s", out.Frame().Name())
	}
	lunar, err := out.AsFrame(MoonFrame)
	if err != nil {
		t.Fatal(err)
	}
	if norm(lunar.R()) < Moon.SOI {
		t.Fatalf("%f km from the Moon", norm(lunar.R()))
	}
	if n := testutil.ToFloat64(env.Metrics.SOISwitches); n != 1 {
		t.Fatalf("%f switches counted", n)
	}
}

func TestSOIErrors(t *testing.T) {
	env := DefaultEnv()
	sv := leo(t, env)
	o, err := sv.Orbit(lunarModel())
	if err != nil {
		t.Fatal(err)
	}
	out, err := o.PropagateBy(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if out.Frame().Name() != EME2000 {
		t.Fatalf("low Earth orbit in %s", out.Frame().Name())
	}

	m := lunarModel()
	m.Bodies = append(m.Bodies, SOIBody{Body: Mars, Model: Kepler{}})
	var ferr *FrameError
	if _, err := sv.Orbit(m); !errors.As(err, &ferr) {
		t.Fatalf("expected a frame error, got %v", err)
	}
	m = lunarModel()
	m.CentralFrame = "Pluto"
	if _, err := sv.Orbit(m); !errors.Is(err, ErrUnknownFrame) {
		t.Fatalf("expected an unknown frame, got %v", err)
	}
	m = lunarModel()
	m.OutFrame = "Pluto"
	if _, err := sv.Orbit(m); !errors.Is(err, ErrUnknownFrame) {
		t.Fatalf("expected an unknown frame, got %v", err)
	}
}
