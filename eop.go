package fds

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/interp"
)

// EOP is one Earth orientation parameter record.
type EOP struct {
	X, Y       float64 // polar motion, arcsec
	DX, DY     float64 // celestial pole offsets (IAU 2000), milliarcsec
	DPsi, DEps float64 // nutation corrections (IAU 1980), milliarcsec
	LOD        float64 // excess length of day, milliseconds
	UT1UTC     float64 // seconds
	TAIUTC     float64 // seconds
}

// EOPBackend is a database of EOP records. Lookup returns ErrEOPMiss when it has no data.
type EOPBackend interface {
	Lookup(mjd float64) (EOP, error)
}

// EOPFactory creates a backend. It is only called when the backend is first requested.
type EOPFactory func() (EOPBackend, error)

// MissingPolicy defines what to do when an EOP record is missing.
type MissingPolicy string

// The missing policies.
const (
	PolicyPass    MissingPolicy = "pass"
	PolicyWarning MissingPolicy = "warning"
	PolicyError   MissingPolicy = "error"
)

// ParseMissingPolicy validates a policy name.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch p := MissingPolicy(strings.ToLower(s)); p {
	case PolicyPass, PolicyWarning, PolicyError:
		return p, nil
	default:
		return "", &ConfigError{Key: "eop.missing_policy", Msg: "unknown policy '" + s + "'"}
	}
}

// EOPRegistry maps backend names to factories and instantiates them lazily.
type EOPRegistry struct {
	mu        sync.Mutex
	factories map[string]EOPFactory
	backends  map[string]EOPBackend
	failures  map[string]error
}

// NewEOPRegistry returns an empty registry.
func NewEOPRegistry() *EOPRegistry {
	return &EOPRegistry{
		factories: make(map[string]EOPFactory),
		backends:  make(map[string]EOPBackend),
		failures:  make(map[string]error),
	}
}

// Register adds a factory. Registering an existing name requires override.
func (r *EOPRegistry) Register(name string, f EOPFactory, override bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists && !override {
		return &ConfigError{Key: "eop.dbname", Msg: "EOP database '" + name + "' already registered"}
	}
	r.factories[name] = f
	delete(r.backends, name)
	delete(r.failures, name)
	return nil
}

// Get returns the backend of that name, creating it on first use. A factory failure is
// remembered and returned on every subsequent call.
func (r *EOPRegistry) Get(name string) (EOPBackend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.backends[name]; ok {
		return b, nil
	}
	if err, ok := r.failures[name]; ok {
		return nil, err
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, &ConfigError{Key: "eop.dbname", Msg: "unknown EOP database '" + name + "'"}
	}
	b, err := f()
	if err != nil {
		err = &ConfigError{Key: "eop.dbname", Msg: "could not open EOP database '" + name + "'", Err: err}
		r.failures[name] = err
		return nil, err
	}
	r.backends[name] = b
	return b, nil
}

// Names returns the registered backend names, sorted.
func (r *EOPRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EOPProvider applies a missing policy on top of a backend.
type EOPProvider struct {
	Backend EOPBackend
	Policy  MissingPolicy
	Logger  kitlog.Logger
	Metrics *Metrics
}

// NewEOPProvider returns a provider. A nil backend always misses.
func NewEOPProvider(b EOPBackend, policy MissingPolicy, logger kitlog.Logger, m *Metrics) *EOPProvider {
	return &EOPProvider{Backend: b, Policy: policy, Logger: kitlog.With(orNop(logger), "subsys", "eop"), Metrics: m}
}

// Get returns the EOP record at the provided UTC modified Julian date. On a miss, the record
// is zero (pass), zero with a warning (warning) or an *EOPError (error). The TAI-UTC field is
// always filled from the leap second table when the backend does not provide it.
func (p *EOPProvider) Get(mjd float64) (EOP, error) {
	if p == nil {
		return EOP{TAIUTC: TAIMinusUTC(mjd)}, nil
	}
	var rec EOP
	err := ErrEOPMiss
	if p.Backend != nil {
		rec, err = p.Backend.Lookup(mjd)
	}
	if err != nil {
		if !errors.Is(err, ErrEOPMiss) {
			return EOP{}, err
		}
		switch p.Policy {
		case PolicyError:
			return EOP{}, &EOPError{MJD: mjd}
		case PolicyWarning:
			level.Warn(orNop(p.Logger)).Log("msg", "missing EOP data", "mjd", mjd)
		}
		p.Metrics.eopMiss(string(p.policy()))
		rec = EOP{}
	}
	if rec.TAIUTC == 0 {
		rec.TAIUTC = TAIMinusUTC(mjd)
	}
	return rec, nil
}

func (p *EOPProvider) policy() MissingPolicy {
	if p.Policy == "" {
		return PolicyPass
	}
	return p.Policy
}

// At returns the EOP record applicable at the provided epoch.
func (p *EOPProvider) At(e Epoch) (EOP, error) {
	return p.Get(e.MJD(UTC))
}

// UT1 returns the UT1 modified Julian date of the provided epoch.
func (p *EOPProvider) UT1(e Epoch) (float64, error) {
	rec, err := p.At(e)
	if err != nil {
		return 0, err
	}
	return e.MJD(UTC) + rec.UT1UTC/SecondsPerDay, nil
}

// EpochFromUT1 returns the epoch of the provided UT1 modified Julian date.
func (p *EOPProvider) EpochFromUT1(mjdUT1 float64) (Epoch, error) {
	e := EpochFromMJD(mjdUT1, UTC)
	// UT1-UTC changes by a few ms per day: two passes settle it.
	for i := 0; i < 2; i++ {
		rec, err := p.At(e)
		if err != nil {
			return Epoch{}, err
		}
		e = EpochFromMJD(mjdUT1-rec.UT1UTC/SecondsPerDay, UTC)
	}
	return e, nil
}

// MemoryEOP is an in-memory backend holding daily records, linearly interpolated.
type MemoryEOP struct {
	mjds    []float64
	records []EOP
}

// NewMemoryEOP returns a backend from records keyed by integer UTC modified Julian date.
func NewMemoryEOP(records map[int]EOP) *MemoryEOP {
	m := &MemoryEOP{}
	days := make([]int, 0, len(records))
	for d := range records {
		days = append(days, d)
	}
	sort.Ints(days)
	for _, d := range days {
		m.mjds = append(m.mjds, float64(d))
		m.records = append(m.records, records[d])
	}
	return m
}

// Lookup implements EOPBackend.
func (m *MemoryEOP) Lookup(mjd float64) (EOP, error) {
	return InterpolateEOP(m.mjds, m.records, mjd)
}

// InterpolateEOP linearly interpolates sorted daily records. A date matching a record exactly
// needs no neighbour; otherwise both bracketing records must exist.
func InterpolateEOP(mjds []float64, records []EOP, mjd float64) (EOP, error) {
	idx := sort.SearchFloat64s(mjds, mjd)
	if idx < len(mjds) && mjds[idx] == mjd {
		return records[idx], nil
	}
	if idx == 0 || idx >= len(mjds) || mjds[idx]-mjds[idx-1] > 1.5 {
		if idx > 0 && math.Floor(mjd) == mjds[idx-1] && idx == len(mjds) {
			return records[idx-1], nil
		}
		return EOP{}, ErrEOPMiss
	}
	a, b := records[idx-1], records[idx]
	xs := mjds[idx-1 : idx+1]
	// UT1-TAI is continuous across leap seconds, UT1-UTC is not.
	lerp := func(y0, y1 float64) float64 {
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, []float64{y0, y1}); err != nil {
			panic(err)
		}
		return pl.Predict(mjd)
	}
	return EOP{
		X: lerp(a.X, b.X), Y: lerp(a.Y, b.Y),
		DX: lerp(a.DX, b.DX), DY: lerp(a.DY, b.DY),
		DPsi: lerp(a.DPsi, b.DPsi), DEps: lerp(a.DEps, b.DEps),
		LOD:    lerp(a.LOD, b.LOD),
		UT1UTC: lerp(a.UT1UTC-a.TAIUTC, b.UT1UTC-b.TAIUTC) + a.TAIUTC,
		TAIUTC: a.TAIUTC,
	}, nil
}
