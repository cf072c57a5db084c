package fds

import (
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// toulouseEnv returns an environment whose EOP are constant around 2016-02-07.
func toulouseEnv() *Env {
	rec := EOP{
		X: -0.00951054166666622, Y: 0.31093590624999734,
		DX: -0.06829513888889051, DY: -0.10067361111115315,
		DPsi: -94.19544791666682, DEps: -10.295645833333051,
		LOD:    1.6242802083331438,
		UT1UTC: 0.01756018472222477,
		TAIUTC: 36,
	}
	eop := NewEOPProvider(NewMemoryEOP(map[int]EOP{57425: rec, 57426: rec}), PolicyError, nil, nil)
	return NewEnv(DefaultConfig(), eop, nil, nil)
}

func TestFrameRoundTrips(t *testing.T) {
	env := toulouseEnv()
	sv, err := env.NewCartesian(
		[]float64{4225.67911976, 2789.52713836, 4497.18271156},
		[]float64{-5.88793077439, 3.74850929999, 3.19445322378},
		NewEpoch(2016, 2, 7, 16, 55, 0, UTC), TEME)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range env.Frames.Names() {
		there, err := sv.AsFrame(name)
		if err != nil {
			t.Fatalf("%s: %s", name, err)
		}
		if there.Frame().Name() != name {
			t.Fatalf("frame not changed to %s", name)
		}
		back, err := there.AsFrame(TEME)
		if err != nil {
			t.Fatalf("%s: %s", name, err)
		}
		if !floats.EqualApprox(back.R(), sv.R(), 1e-8) || !floats.EqualApprox(back.V(), sv.V(), 1e-10) {
			t.Fatalf("TEME -> %s -> TEME\n%v\n%v", name, sv.Cartesian(), back.Cartesian())
		}
	}
}

func TestFrameEarthFixed(t *testing.T) {
	env := toulouseEnv()
	e := NewEpoch(2016, 2, 7, 16, 55, 0, UTC)
	// A point fixed on the ground is at rest in ITRF and in PEF.
	ground := []float64{Earth.Radius, 0, 0, 0, 0, 0}
	for _, fixed := range []string{ITRF, PEF, TIRF} {
		inertial, err := env.Frames.Convert(ground, fixed, EME2000, e)
		if err != nil {
			t.Fatal(err)
		}
		if !scalar.EqualWithinAbs(norm(inertial[:3]), Earth.Radius, 1e-8) {
			t.Fatalf("%s: the norm of the position changed", fixed)
		}
		exp := EarthRotationRate * Earth.Radius
		if !scalar.EqualWithinRel(norm(inertial[3:]), exp, 1e-6) {
			t.Fatalf("%s: ground speed %f instead of %f", fixed, norm(inertial[3:]), exp)
		}
	}
	// The equinox and CIO based chains agree.
	pef, err := env.Frames.Convert(ground, PEF, GCRF, e)
	if err != nil {
		t.Fatal(err)
	}
	tirf, err := env.Frames.Convert(ground, TIRF, GCRF, e)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(pef[:3], tirf[:3], 1e-9) {
		t.Fatalf("PEF and TIRF differ\n%v\n%v", pef, tirf)
	}
}

func TestFrameStation(t *testing.T) {
	env := toulouseEnv()
	tls, err := NewStation(env.Frames, "Toulouse", 43.604482, 1.443962, 172, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewStation(env.Frames, "Toulouse", 0, 0, 0, false); err == nil {
		t.Fatal("registering a station twice should fail")
	}
	sv, err := env.NewCartesian(
		[]float64{4225.67911976, 2789.52713836, 4497.18271156},
		[]float64{-5.88793077439, 3.74850929999, 3.19445322378},
		NewEpoch(2016, 2, 7, 16, 55, 0, UTC), TEME)
	if err != nil {
		t.Fatal(err)
	}
	az, el, ρ, err := tls.AzElRange(sv)
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(az*r2d, 157.913470813252, 1e-2) {
		t.Fatalf("azimuth %f", az*r2d)
	}
	if !scalar.EqualWithinAbs(el*r2d, 59.99310662752075, 1e-2) {
		t.Fatalf("elevation %f", el*r2d)
	}
	if !scalar.EqualWithinAbs(ρ, 461.22080468740925, 5e-2) {
		t.Fatalf("range %f", ρ)
	}

	local, err := sv.AsFrame("Toulouse")
	if err != nil {
		t.Fatal(err)
	}
	sph, err := local.AsForm(Spherical)
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := anglesEqual(sph.Coords()[1], -az); !ok {
		t.Fatalf("spherical longitude is not the opposite of the azimuth: %s", err)
	}
	back, err := sph.AsFrame(TEME)
	if err != nil {
		t.Fatal(err)
	}
	back, err = back.AsForm(Cartesian)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(back.Cartesian(), sv.Cartesian(), 1e-9) {
		t.Fatalf("station round trip\n%v\n%v", sv.Cartesian(), back.Cartesian())
	}
}

func TestGEO2ECEF(t *testing.T) {
	// Vallado, examples 3-2 and 7-1.
	r := GEO2ECEF(56, Deg2rad(-7-54/60.-23.886/3600), Deg2rad(345+35/60.+51/3600.))
	if !floats.EqualApprox(r, []float64{6119.40027666, -1571.47955734, -871.56112598}, 3e-7) {
		t.Fatalf("3-2: %v", r)
	}
	r = GEO2ECEF(2187, Deg2rad(39.007), Deg2rad(-104.883))
	if !floats.EqualApprox(r, []float64{-1275.1219, -4797.9890, 3994.2975}, 3e-7) {
		t.Fatalf("7-1: %v", r)
	}
}

func TestStationMask(t *testing.T) {
	env := DefaultEnv()
	s, err := NewStation(env.Frames, "masked", 0, 0, 0, false, WithMask([]MaskPoint{
		{Az: Deg2rad(270), El: Deg2rad(30)},
		{Az: Deg2rad(90), El: Deg2rad(10)},
		{Az: Deg2rad(180), El: Deg2rad(20)},
	}))
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct{ az, el float64 }{
		{90, 10}, {135, 15}, {180, 20}, {225, 25}, {270, 30}, {0, 20}, {45, 15}, {315, 25},
	} {
		if got := s.MaskElevation(Deg2rad(tc.az)) * r2d; !scalar.EqualWithinAbs(got, tc.el, 1e-9) {
			t.Fatalf("mask at %f: %f instead of %f", tc.az, got, tc.el)
		}
	}
	free, err := NewStation(env.Frames, "free", 0, 0, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if free.MaskElevation(1) != 0 {
		t.Fatal("a station without mask should have a zero mask")
	}
}

func TestStationMeasure(t *testing.T) {
	env := DefaultEnv()
	s, err := NewStation(env.Frames, "noisy", 0, 0, 0, false, WithNoise(1e-6, 1e-10, 42))
	if err != nil {
		t.Fatal(err)
	}
	// Straight above the station, climbing.
	sv, err := env.NewCartesian([]float64{Earth.Radius + 1000, 0, 0}, []float64{1, 0, 0}, testEpoch, ITRF)
	if err != nil {
		t.Fatal(err)
	}
	m, err := s.Measure(sv)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Visible || !scalar.EqualWithinAbs(m.El, math.Pi/2, 1e-9) {
		t.Fatalf("the spacecraft should be at the zenith: %+v", m)
	}
	if !scalar.EqualWithinAbs(m.TrueRange, 1000, 1e-9) || !scalar.EqualWithinAbs(m.TrueRangeRate, 1, 1e-12) {
		t.Fatalf("true range %f, rate %f", m.TrueRange, m.TrueRangeRate)
	}
	if m.Range == m.TrueRange || math.Abs(m.Range-m.TrueRange) > 1e-2 {
		t.Fatalf("noisy range %f", m.Range)
	}
	if _, err := NewStation(env.Frames, "bad", 0, 0, 0, false, WithNoise(-1, 1, 0)); err == nil {
		t.Fatal("a negative variance should fail")
	}
}

func TestFrameGraph(t *testing.T) {
	env := DefaultEnv()
	if _, err := env.Frames.Get("Pluto"); !errors.Is(err, ErrUnknownFrame) {
		t.Fatalf("expected an unknown frame, got %v", err)
	}
	eme, err := env.Frames.Get(EME2000)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Frames.Register(NewFixedFrame(EME2000, nil, Earth, IdentityTransform()), false); err == nil {
		t.Fatal("registering an existing name should fail")
	}
	orphan := NewFixedFrame("orphan", nil, Earth, IdentityTransform())
	if err := env.Frames.Register(orphan, false); err != nil {
		t.Fatal(err)
	}
	var ferr *FrameError
	if _, err := TransformFrames(eme, orphan, testEpoch, nil); !errors.As(err, &ferr) {
		t.Fatalf("disconnected frames should fail, got %v", err)
	}

	// A frame shifted by 100 km along x and rotated by 90° about z.
	shifted := NewFixedFrame("shifted", eme, Earth, RotationTransform(R3(-math.Pi/2), nil).Translate([]float64{100, 0, 0}))
	if err := env.Frames.Register(shifted, false); err != nil {
		t.Fatal(err)
	}
	out, err := env.Frames.Convert([]float64{0, 10, 0, 1, 0, 0}, "shifted", EME2000, testEpoch)
	if err != nil {
		t.Fatal(err)
	}
	if !vectorsEqual(out, []float64{90, 0, 0, 0, 1, 0}) {
		t.Fatalf("fixed transform: %v", out)
	}
	back, err := env.Frames.Convert(out, EME2000, "shifted", testEpoch)
	if err != nil {
		t.Fatal(err)
	}
	if !vectorsEqual(back, []float64{0, 10, 0, 1, 0, 0}) {
		t.Fatalf("inverse transform: %v", back)
	}

	batch := NewTransformBatch()
	for i := 0; i < 3; i++ {
		if _, err := TransformFrames(shifted, eme, testEpoch, batch); err != nil {
			t.Fatal(err)
		}
	}
	if batch.Len() != 1 {
		t.Fatalf("expected one cached transform, got %d", batch.Len())
	}
}

func TestTransformInverse(t *testing.T) {
	tr := RotationTransform(R3R1R3(0.3, -1.1, 2), []float64{1e-3, -2e-4, 7e-5}).Translate([]float64{7, -3, 2, 0.1, 0.2, -0.3})
	s := []float64{6524.834, 6862.875, 6448.296, 4.901327, 5.533756, -1.976341}
	if !floats.EqualApprox(tr.Inverse().Apply(tr.Apply(s)), s, 1e-12) {
		t.Fatal("inverse does not undo the transform")
	}
	id := tr.Then(tr.Inverse())
	if !mat.EqualApprox(id.M, IdentityTransform().M, 1e-12) {
		t.Fatalf("t·t⁻¹ != I\n%v", mat.Formatted(id.M))
	}
	if !floats.EqualApprox(tr.Translation(), []float64{7, -3, 2}, 1e-15) || !floats.EqualApprox(tr.TranslationRate(), []float64{0.1, 0.2, -0.3}, 1e-15) {
		t.Fatal("invalid translation")
	}
}

func TestFrameCelestial(t *testing.T) {
	env := DefaultEnv()
	e := NewEpoch(2018, 4, 5, 16, 50, 0, TDB)
	moon, err := env.NewCartesian([]float64{0, 0, 0}, []float64{0, 0, 0}, e, MoonFrame)
	if err != nil {
		t.Fatal(err)
	}
	inEME, err := moon.AsFrame(EME2000)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(inEME.Cartesian(), MoonState(e), 1e-12) {
		t.Fatal("the origin of the Moon frame is not the Moon")
	}
	if d := norm(inEME.R()); d < 356000 || d > 407000 {
		t.Fatalf("Earth-Moon distance %f km", d)
	}
	if moon.Center().Name != "Moon" || moon.GM() != Moon.GM() {
		t.Fatal("the Moon frame is not centred on the Moon")
	}
}

func TestLocalFrame(t *testing.T) {
	env := DefaultEnv()
	sv := leo(t, env)
	orb, err := sv.Orbit(Kepler{})
	if err != nil {
		t.Fatal(err)
	}
	for _, kind := range []LocalKind{QSW, TNW} {
		f, err := env.Frames.LocalFrame("local"+string(kind), kind, orb, false)
		if err != nil {
			t.Fatal(err)
		}
		later, err := orb.PropagateBy(600e9)
		if err != nil {
			t.Fatal(err)
		}
		local, err := later.InFrame(f)
		if err != nil {
			t.Fatal(err)
		}
		if norm(local.R()) > 1e-8 || norm(local.V()) > 1e-8 {
			t.Fatalf("%s: the object is not at the origin of its local frame: %v", kind, local.Cartesian())
		}
	}
	m := LocalMatrix(QSW, sv.Cartesian())
	q := MxV33(m, sv.R())
	if !scalar.EqualWithinAbs(q[0], norm(sv.R()), 1e-9) || math.Abs(q[1]) > 1e-9 || math.Abs(q[2]) > 1e-9 {
		t.Fatalf("QSW x is not radial: %v", q)
	}
	if _, err := ParseLocalKind("LVLH"); err == nil {
		t.Fatal("LVLH is not a local kind")
	}
}

func TestLocalFrameVelocity(t *testing.T) {
	env := DefaultEnv()
	sv, err := env.NewStateVector(Coords{14000, 0.5, Deg2rad(51.6), Deg2rad(30), Deg2rad(45), Deg2rad(10)}, testEpoch, EME2000, Keplerian)
	if err != nil {
		t.Fatal(err)
	}
	orb, err := sv.Orbit(Kepler{})
	if err != nil {
		t.Fatal(err)
	}
	// A point fixed 10 km along the first local axis: its velocity in the parent frame must
	// be the derivative of its position.
	inParent := func(name string, e Epoch) []float64 {
		pt, err := env.NewCartesian([]float64{10, 0, 0}, []float64{0, 0, 0}, e, name)
		if err != nil {
			t.Fatal(err)
		}
		pt, err = pt.InFrame(orb.Frame())
		if err != nil {
			t.Fatal(err)
		}
		return pt.Cartesian()
	}
	const dt = 1.0
	for _, kind := range []LocalKind{QSW, TNW} {
		name := "eccentric" + string(kind)
		if _, err := env.Frames.LocalFrame(name, kind, orb, false); err != nil {
			t.Fatal(err)
		}
		for _, after := range []time.Duration{0, 20 * time.Minute, 70 * time.Minute} {
			e := testEpoch.Add(after)
			c := inParent(name, e)
			before, next := inParent(name, e.Add(-time.Second)), inParent(name, e.Add(time.Second))
			for i := 0; i < 3; i++ {
				fd := (next[i] - before[i]) / (2 * dt)
				if !scalar.EqualWithinAbs(c[3+i], fd, 1e-5) {
					t.Fatalf("%s +%s: v[%d]=%f km/s, finite difference %f km/s", kind, after, i, c[3+i], fd)
				}
			}
		}
	}
}
