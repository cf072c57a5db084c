package fds

import (
	"errors"
	"iter"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	eventStart = NewEpoch(2018, 4, 5, 16, 50, 0, UTC)
	eventStop  = eventStart.Add(100 * time.Minute)
	eventStep  = 3 * time.Minute
)

// issPropagators returns the ISS on SGP4 and the same trajectory as an ephemeris.
func issPropagators(t *testing.T, env *Env) map[string]Propagator {
	t.Helper()
	o, err := issTLE(t, env).Orbit(SGP4{BStar: issBStar})
	if err != nil {
		t.Fatal(err)
	}
	eph, err := o.Ephem(eventStart, eventStart.Add(103*time.Minute), 15*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Propagator{"sgp4": o.Propagator(), "ephemeris": eph}
}

func toulouse(t *testing.T, env *Env) *Station {
	t.Helper()
	s, err := NewStation(env.Frames, "Toulouse", 43.604482, 1.443962, 172, false)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

type refEvent struct {
	label string
	epoch Epoch
}

func at(h, m int, s float64) Epoch { return NewEpoch(2018, 4, 5, h, m, s, UTC) }

func checkEvents(t *testing.T, events iter.Seq2[Event, error], want []refEvent, tol time.Duration, all bool) {
	t.Helper()
	var got []Event
	for ev, err := range events {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, ev)
	}
	if len(got) < len(want) || (all && len(got) != len(want)) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].Label != w.label {
			t.Fatalf("event #%d: expected %q, got %q", i, w.label, got[i].Label)
		}
		if d := absDuration(got[i].Epoch.Sub(w.epoch)); d > tol {
			t.Fatalf("%s: %s instead of %s (%s)", w.label, got[i].Epoch, w.epoch, d)
		}
		if !got[i].State.Epoch().Equal(got[i].Epoch) || got[i].State.Event() == nil {
			t.Fatalf("%s: state not tagged with the event", w.label)
		}
	}
}

func TestEventsLight(t *testing.T) {
	env := DefaultEnv()
	want := []refEvent{
		{"Umbra exit", at(17, 5, 57.756975)},
		{"Penumbra exit", at(17, 6, 6.100362)},
		{"Penumbra entry", at(18, 2, 37.487921)},
		{"Umbra entry", at(18, 2, 45.818272)},
	}
	for name, p := range issPropagators(t, env) {
		t.Run(name, func(t *testing.T) {
			d := NewEventDetector(env, LightListener{Kind: Umbra}, LightListener{Kind: Penumbra})
			checkEvents(t, d.Events(p, eventStart, eventStop, eventStep), want, 2*time.Second, true)
		})
	}
}

// The nodes are those of the TEME equator, in which SGP4 states are expressed.
var (
	issAscNode  = at(17, 33, 59.49)
	issDescNode = at(18, 20, 17.235221)
)

func TestEventsNodesApsides(t *testing.T) {
	env := DefaultEnv()
	nodes := []refEvent{
		{"Asc Node", issAscNode},
		{"Desc Node", issDescNode},
	}
	apsides := []refEvent{
		{"Apoapsis", at(16, 58, 54.546919)},
		{"Periapsis", at(17, 54, 54.087860)},
	}
	for name, p := range issPropagators(t, env) {
		t.Run(name, func(t *testing.T) {
			d := NewEventDetector(env, NodeListener{})
			checkEvents(t, d.Events(p, eventStart, eventStop, eventStep), nodes, 3*time.Second, true)
			for ev, err := range d.Events(p, eventStart, eventStop, eventStep) {
				if err != nil {
					t.Fatal(err)
				}
				if z := ev.State.R()[2]; math.Abs(z) > 1e-3 || ev.State.Frame().Name() != TEME {
					t.Fatalf("%s: z = %f km in %s", ev.Label, z, ev.State.Frame().Name())
				}
			}
			d = NewEventDetector(env, ApsideListener{})
			checkEvents(t, d.Events(p, eventStart, eventStop, eventStep), apsides, time.Second, true)
			for ev, err := range d.Events(p, eventStart, eventStop, eventStep) {
				if err != nil {
					t.Fatal(err)
				}
				c := ev.State.Cartesian()
				if ṙ := dot(c[:3], c[3:]) / norm(c[:3]); math.Abs(ṙ) > 1e-6 {
					t.Fatalf("%s: radial velocity %g km/s", ev.Label, ṙ)
				}
			}
		})
	}
}

func TestEventsStation(t *testing.T) {
	env := DefaultEnv()
	station := toulouse(t, env)
	want := []refEvent{
		{"AOS", at(17, 51, 6.475978)},
		{"MAX", at(17, 56, 5.542270)},
		{"LOS", at(18, 1, 4.828355)},
	}
	for name, p := range issPropagators(t, env) {
		t.Run(name, func(t *testing.T) {
			d := NewEventDetector(env, StationListeners(station)...)
			checkEvents(t, d.Events(p, eventStart, eventStop, eventStep), want, time.Second, false)

			az, el, _, err := station.AzElRange(mustPropagate(t, p, at(17, 56, 5.542270)))
			if err != nil {
				t.Fatal(err)
			}
			if el < Deg2rad(10) || math.IsNaN(az) {
				t.Fatalf("elevation at MAX %f°", Rad2deg(el))
			}

			d = NewEventDetector(env, RadialVelocityListener{Frame: station.Frame(), Sight: true})
			checkEvents(t, d.Events(p, eventStart, eventStop, eventStep), []refEvent{{"Zero Doppler", at(17, 56, 5.3)}}, 2*time.Second, true)
		})
	}
}

func TestEventsStationDay(t *testing.T) {
	env := DefaultEnv()
	station := toulouse(t, env)
	p := issPropagators(t, env)["sgp4"]
	stop := eventStart.Add(24 * time.Hour)
	d := NewEventDetector(env, StationSignalListener{Station: station})
	var aos *Event
	passes := 0
	for ev, err := range d.Events(p, eventStart, stop, time.Minute) {
		if err != nil {
			t.Fatal(err)
		}
		// The event state and an independent propagation agree on the direction.
		az, el, _, err := station.AzElRange(ev.State)
		if err != nil {
			t.Fatal(err)
		}
		az2, el2, _, err := station.AzElRange(mustPropagate(t, p, ev.Epoch))
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(el) > Deg2rad(0.1) {
			t.Fatalf("%s at %s: elevation %f°", ev.Label, ev.Epoch, Rad2deg(el))
		}
		if math.Abs(math.Remainder(az-az2, 2*math.Pi)) > Deg2rad(0.1) || math.Abs(el-el2) > Deg2rad(0.1) {
			t.Fatalf("%s at %s: az/el %f/%f° vs %f/%f°", ev.Label, ev.Epoch, Rad2deg(az), Rad2deg(el), Rad2deg(az2), Rad2deg(el2))
		}
		switch ev.Label {
		case "AOS":
			aos = &ev
		case "LOS":
			if aos == nil {
				t.Fatalf("LOS at %s without AOS", ev.Epoch)
			}
			// Always in view between both.
			for e := aos.Epoch.Add(time.Second); e.Before(ev.Epoch.Add(-time.Second)); e = e.Add(20 * time.Second) {
				if _, el, _, _ := station.AzElRange(mustPropagate(t, p, e)); el < 0 {
					t.Fatalf("elevation %f° at %s, during the pass %s - %s", Rad2deg(el), e, aos.Epoch, ev.Epoch)
				}
			}
			aos = nil
			passes++
		}
	}
	if passes < 3 {
		t.Fatalf("only %d passes over Toulouse in a day", passes)
	}
}

func TestEventsStationMask(t *testing.T) {
	env := DefaultEnv()
	mask := []MaskPoint{{Az: 0, El: Deg2rad(5)}, {Az: math.Pi, El: Deg2rad(10)}}
	station, err := NewStation(env.Frames, "Toulouse", 43.604482, 1.443962, 172, false, WithMask(mask))
	if err != nil {
		t.Fatal(err)
	}
	listeners := StationListeners(station)
	if len(listeners) != 3 {
		t.Fatalf("expected 3 listeners with a mask, got %d", len(listeners))
	}
	p := issPropagators(t, env)["sgp4"]
	events := NewEventDetector(env, listeners...).Events(p, eventStart, eventStop, eventStep)
	aos, err := FindEvent(events, "AOS", 0)
	if err != nil {
		t.Fatal(err)
	}
	aosMask, err := FindEvent(events, "AOS Mask", 0)
	if err != nil {
		t.Fatal(err)
	}
	losMask, err := FindEvent(events, "LOS Mask", 0)
	if err != nil {
		t.Fatal(err)
	}
	los, err := FindEvent(events, "LOS", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !aos.Epoch.Before(aosMask.Epoch) || !aosMask.Epoch.Before(losMask.Epoch) || !losMask.Epoch.Before(los.Epoch) {
		t.Fatalf("unordered pass: %s %s %s %s", aos.Epoch, aosMask.Epoch, losMask.Epoch, los.Epoch)
	}
	az, el, _, err := station.AzElRange(aosMask.State)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(el-station.MaskElevation(az)) > 1e-6 {
		t.Fatalf("AOS Mask at elevation %f°, mask is %f°", Rad2deg(el), Rad2deg(station.MaskElevation(az)))
	}
}

func TestEventsBackward(t *testing.T) {
	env := DefaultEnv()
	for name, p := range issPropagators(t, env) {
		t.Run(name, func(t *testing.T) {
			d := NewEventDetector(env, NodeListener{}, ApsideListener{})
			var events []Event
			for ev, err := range d.Events(p, eventStop, eventStart, -eventStep) {
				if err != nil {
					t.Fatal(err)
				}
				events = append(events, ev)
			}
			if len(events) != 4 {
				t.Fatalf("expected 4 events, got %v", events)
			}
			for i := 1; i < len(events); i++ {
				if !events[i].Epoch.Before(events[i-1].Epoch) {
					t.Fatalf("events not in backward order: %v", events)
				}
			}
			// Labels keep their chronological meaning.
			want := map[string]Epoch{
				"Desc Node": issDescNode,
				"Periapsis": at(17, 54, 54.087860),
				"Asc Node":  issAscNode,
				"Apoapsis":  at(16, 58, 54.546919),
			}
			for _, ev := range events {
				if d := absDuration(ev.Epoch.Sub(want[ev.Label])); d > 3*time.Second {
					t.Fatalf("%s at %s", ev.Label, ev.Epoch)
				}
			}
		})
	}
}

func TestEventsListen(t *testing.T) {
	env := DefaultEnv()
	reg := prometheus.NewRegistry()
	env.Metrics = NewMetrics(reg)
	p := issPropagators(t, env)["sgp4"]
	d := NewEventDetector(env, TerminatorListener{}, NodeListener{})
	var (
		steps, events int
		prev          Epoch
	)
	for sv, err := range d.Listen(p, eventStart, eventStop, eventStep) {
		if err != nil {
			t.Fatal(err)
		}
		if steps+events > 0 && sv.Epoch().Before(prev) {
			t.Fatalf("%s after %s", sv.Epoch(), prev)
		}
		prev = sv.Epoch()
		if sv.Event() == nil {
			steps++
			continue
		}
		events++
		if sv.Event().Listener == nil {
			t.Fatal("event without listener")
		}
	}
	if steps != 34 {
		t.Fatalf("expected 34 steps, got %d", steps)
	}
	if events != 4 {
		t.Fatalf("expected 4 events, got %d", events)
	}
	if n := testutil.ToFloat64(env.Metrics.Events.WithLabelValues("terminator")); n != 2 {
		t.Fatalf("terminator events counted %f", n)
	}
	if n := testutil.ToFloat64(env.Metrics.PropagationSteps.WithLabelValues("sgp4")); n < 34 {
		t.Fatalf("steps counted %f", n)
	}

	day, err := FindEvent(d.Events(p, eventStart, eventStop, eventStep), "Day Terminator", 0)
	if err != nil {
		t.Fatal(err)
	}
	night, err := FindEvent(d.Events(p, eventStart, eventStop, eventStep), "Night Terminator", 0)
	if err != nil {
		t.Fatal(err)
	}
	// The terminator is crossed between the shadow exit and the shadow entry.
	if !day.Epoch.After(at(17, 5, 57)) || !night.Epoch.Before(at(18, 2, 46)) {
		t.Fatalf("terminators at %s and %s", day.Epoch, night.Epoch)
	}
}

func TestEventsAnomaly(t *testing.T) {
	env := DefaultEnv()
	sv := leo(t, env)
	o, err := sv.Orbit(Kepler{})
	if err != nil {
		t.Fatal(err)
	}
	// Expected epoch from the mean anomalies at 10° and 90° of true anomaly.
	kep, _ := sv.AsForm(Keplerian)
	c := kep.Coords()
	c[5] = Deg2rad(90)
	at90, err := env.NewStateVector(c, testEpoch, EME2000, Keplerian)
	if err != nil {
		t.Fatal(err)
	}
	m0, _ := sv.AsForm(KeplerianMean)
	m1, _ := at90.AsForm(KeplerianMean)
	dt := (m1.Coords()[5] - m0.Coords()[5]) / sv.Infos().N
	want := testEpoch.AddSeconds(dt)

	ev, err := FindEvent(o.Events(testEpoch, testEpoch.Add(2*time.Hour), 5*time.Minute, AnomalyListener{Kind: TrueAnomaly, Angle: Deg2rad(90)}), "True Anomaly = 90.00", 0)
	if err != nil {
		t.Fatal(err)
	}
	if d := absDuration(ev.Epoch.Sub(want)); d > time.Millisecond {
		t.Fatalf("true anomaly event at %s instead of %s", ev.Epoch, want)
	}
	// Only once per orbit: the opposite angle is not an event.
	_, err = FindEvent(o.Events(testEpoch, testEpoch.Add(sv.Infos().Period-time.Minute), 5*time.Minute, AnomalyListener{Kind: TrueAnomaly, Angle: Deg2rad(90)}), "True Anomaly = 90.00", 1)
	if !errors.Is(err, ErrNoEvent) {
		t.Fatalf("expected ErrNoEvent, got %v", err)
	}

	_, err = FindEvent(o.Events(testEpoch, testEpoch.Add(time.Hour), 5*time.Minute, AnomalyListener{Kind: "hyperbolic"}), "", 0)
	var perr *PropagationError
	if !errors.As(err, &perr) || !errors.Is(err, ErrUnknownForm) {
		t.Fatalf("expected a propagation error, got %v", err)
	}
}

func TestEventDetectorTolerance(t *testing.T) {
	env := DefaultEnv()
	env.Config.Events.Tolerance = time.Second
	d := NewEventDetector(env, NodeListener{})
	if d.Tolerance != time.Second {
		t.Fatalf("tolerance %s", d.Tolerance)
	}
	p := issPropagators(t, env)["sgp4"]
	ev, err := FindEvent(d.Events(p, eventStart, eventStop, eventStep), "Asc Node", 0)
	if err != nil {
		t.Fatal(err)
	}
	if dt := ev.Epoch.Sub(issAscNode); dt < -time.Second || dt > 2*time.Second {
		t.Fatalf("coarse event at %s", ev.Epoch)
	}
	if NewEventDetector(nil).Tolerance != 10*time.Microsecond {
		t.Fatal("default tolerance")
	}
}

func mustPropagate(t *testing.T, p Propagator, e Epoch) StateVector {
	t.Helper()
	sv, err := p.Propagate(e)
	if err != nil {
		t.Fatal(err)
	}
	return sv
}
