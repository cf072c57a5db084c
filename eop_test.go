package fds

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/floats/scalar"
)

func eopRecords() *MemoryEOP {
	return NewMemoryEOP(map[int]EOP{
		58212: {X: 0.0566, Y: 0.3454, UT1UTC: 0.1396, TAIUTC: 37},
		58213: {X: 0.0581, Y: 0.3443, LOD: 1.1112, UT1UTC: 0.1385, TAIUTC: 37},
		58215: {X: 0.0611, Y: 0.3421, UT1UTC: 0.1361, TAIUTC: 37},
	})
}

func TestMemoryEOP(t *testing.T) {
	m := eopRecords()
	rec, err := m.Lookup(58213)
	if err != nil {
		t.Fatal(err)
	}
	if rec.X != 0.0581 || rec.LOD != 1.1112 {
		t.Fatalf("exact day: %+v", rec)
	}
	rec, err = m.Lookup(58212.25)
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(rec.X, 0.0566+0.25*0.0015, 1e-12) || !scalar.EqualWithinAbs(rec.UT1UTC, 0.1396-0.25*0.0011, 1e-12) {
		t.Fatalf("interpolated: %+v", rec)
	}
	// 58214 is missing: no interpolation over a two day gap.
	if _, err := m.Lookup(58213.5); !errors.Is(err, ErrEOPMiss) {
		t.Fatalf("expected a miss over the gap, got %v", err)
	}
	// The last record covers its whole day.
	if _, err := m.Lookup(58215.99); err != nil {
		t.Fatal(err)
	}
	for _, mjd := range []float64{58211.9, 58216} {
		if _, err := m.Lookup(mjd); !errors.Is(err, ErrEOPMiss) {
			t.Fatalf("%f: expected a miss, got %v", mjd, err)
		}
	}
}

func TestEOPLeapSecond(t *testing.T) {
	// UT1-UTC jumps by one second with the leap second at the end of 2016.
	m := NewMemoryEOP(map[int]EOP{
		57753: {UT1UTC: -0.4087, TAIUTC: 36},
		57754: {UT1UTC: 0.5925, TAIUTC: 37},
	})
	rec, err := m.Lookup(57753.5)
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(rec.UT1UTC, (-0.4087-0.4075)/2, 1e-12) || rec.TAIUTC != 36 {
		t.Fatalf("interpolation across the leap second: %+v", rec)
	}
}

func TestEOPProviderPolicies(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug")

	pass := NewEOPProvider(eopRecords(), PolicyPass, logger, metrics)
	rec, err := pass.Get(60000)
	if err != nil {
		t.Fatal(err)
	}
	if rec.X != 0 || rec.UT1UTC != 0 || rec.TAIUTC != 37 {
		t.Fatalf("pass should give zeros and the leap seconds: %+v", rec)
	}
	if buf.Len() != 0 {
		t.Fatalf("pass should not log: %s", buf.String())
	}

	warn := NewEOPProvider(eopRecords(), PolicyWarning, logger, metrics)
	if _, err := warn.Get(60000); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "level=warn") || !strings.Contains(buf.String(), `msg="missing EOP data"`) {
		t.Fatalf("warning policy should log: %s", buf.String())
	}

	strict := NewEOPProvider(eopRecords(), PolicyError, logger, metrics)
	_, err = strict.Get(60000)
	var eerr *EOPError
	if !errors.As(err, &eerr) || eerr.MJD != 60000 || !errors.Is(err, ErrEOPMiss) {
		t.Fatalf("expected an EOPError, got %v", err)
	}
	if _, err := strict.Get(58213); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(metrics.EOPMisses.WithLabelValues("pass")); got != 1 {
		t.Fatalf("%f pass misses", got)
	}
	if got := testutil.ToFloat64(metrics.EOPMisses.WithLabelValues("warning")); got != 1 {
		t.Fatalf("%f warning misses", got)
	}
	if got := testutil.ToFloat64(metrics.EOPMisses.WithLabelValues("error")); got != 0 {
		t.Fatalf("%f error misses", got)
	}

	// Without a backend, every lookup misses.
	if _, err := NewEOPProvider(nil, PolicyError, nil, nil).Get(58213); !errors.Is(err, ErrEOPMiss) {
		t.Fatalf("expected a miss, got %v", err)
	}
	var nilProvider *EOPProvider
	if rec, err := nilProvider.Get(58213); err != nil || rec.TAIUTC != 37 {
		t.Fatalf("nil provider: %+v %v", rec, err)
	}

	ut1, err := strict.UT1(EpochFromMJDSeconds(58213, 0, UTC))
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(ut1, 58213+0.1385/SecondsPerDay, 1e-9) {
		t.Fatalf("UT1 %f", ut1)
	}
	// And back, half way between two records.
	utc := EpochFromMJDSeconds(58212, 43200, UTC)
	ut1, err = strict.UT1(utc)
	if err != nil {
		t.Fatal(err)
	}
	back, err := strict.EpochFromUT1(ut1)
	if err != nil {
		t.Fatal(err)
	}
	if d := back.Sub(utc); absDuration(d) > 10*time.Microsecond {
		t.Fatalf("UT1 round trip off by %s", d)
	}
	if _, err := strict.EpochFromUT1(50000); !errors.Is(err, ErrEOPMiss) {
		t.Fatalf("expected a miss, got %v", err)
	}
}

type failingEOP struct{}

func (failingEOP) Lookup(float64) (EOP, error) { return EOP{}, errors.New("disk on fire") }

func TestEOPProviderBackendFailure(t *testing.T) {
	p := NewEOPProvider(failingEOP{}, PolicyPass, nil, nil)
	if _, err := p.Get(58213); err == nil || errors.Is(err, ErrEOPMiss) {
		t.Fatalf("a backend failure is not a miss: %v", err)
	}
}

func TestEOPRegistry(t *testing.T) {
	reg := NewEOPRegistry()
	calls := 0
	if err := reg.Register("iers", func() (EOPBackend, error) {
		calls++
		return eopRecords(), nil
	}, false); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatal("the factory should only be called on first use")
	}
	if err := reg.Register("iers", nil, false); err == nil {
		t.Fatal("registering twice without override should fail")
	}
	for i := 0; i < 3; i++ {
		if _, err := reg.Get("iers"); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Fatalf("the factory was called %d times", calls)
	}

	fails := 0
	if err := reg.Register("broken", func() (EOPBackend, error) {
		fails++
		return nil, errors.New("no such file")
	}, false); err != nil {
		t.Fatal(err)
	}
	var cerr *ConfigError
	for i := 0; i < 2; i++ {
		if _, err := reg.Get("broken"); !errors.As(err, &cerr) {
			t.Fatalf("expected a ConfigError, got %v", err)
		}
	}
	if fails != 1 {
		t.Fatal("a failed factory should not be retried")
	}
	if err := reg.Register("broken", func() (EOPBackend, error) { return eopRecords(), nil }, true); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Get("broken"); err != nil {
		t.Fatalf("overriding should clear the failure: %v", err)
	}
	if _, err := reg.Get("missing"); !errors.As(err, &cerr) {
		t.Fatalf("expected a ConfigError, got %v", err)
	}
	if names := reg.Names(); len(names) != 2 || names[0] != "broken" || names[1] != "iers" {
		t.Fatalf("names %v", names)
	}

	cfg := DefaultConfig()
	cfg.EOP.DBName = "iers"
	cfg.EOP.MissingPolicy = "error"
	env, err := EnvFromConfig(cfg, reg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if env.EOP.Policy != PolicyError || env.Frames.EOP() != env.EOP {
		t.Fatal("the environment does not use the configured provider")
	}
	cfg.EOP.MissingPolicy = "ignore"
	if _, err := EnvFromConfig(cfg, reg, nil, nil); !errors.As(err, &cerr) {
		t.Fatalf("expected a ConfigError, got %v", err)
	}
}
