package fds

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Names of the forms registered by NewFormRegistry.
const (
	Cartesian             = "cartesian"
	Keplerian             = "keplerian"
	KeplerianEccentric    = "keplerian_eccentric"
	KeplerianMean         = "keplerian_mean"
	KeplerianCircular     = "keplerian_circular"
	KeplerianMeanCircular = "keplerian_mean_circular"
	TLEForm               = "tle"
	Spherical             = "spherical"
	Equinoctial           = "equinoctial"
	Cylindrical           = "cylindrical"
)

const (
	// Below these thresholds, the eccentricity is zero and the orbit is equatorial.
	circularThreshold   = 1e-12
	equatorialThreshold = 1e-12
	parabolicThreshold  = 1e-12
)

// Coords are the six coordinates of a state in a given form.
type Coords [6]float64

// ConvertFunc converts coordinates given the gravitational parameter of the central body.
type ConvertFunc func(c Coords, μ float64) (Coords, error)

// parameterAliases lists, for each alias, the canonical parameter names it may refer to.
// The first one present in a form wins.
var parameterAliases = map[string][]string{
	"theta":     {"θ"},
	"phi":       {"φ"},
	"raan":      {"Ω"},
	"Omega":     {"Ω"},
	"omega":     {"ω"},
	"nu":        {"ν"},
	"aol":       {"u"},
	"H":         {"E"},
	"alpha":     {"α"},
	"maol":      {"α"},
	"lambda":    {"l"},
	"rho":       {"ρ"},
	"x_dot":     {"vx"},
	"y_dot":     {"vy"},
	"z_dot":     {"vz", "ż"},
	"r_dot":     {"ṙ"},
	"theta_dot": {"θ̇"},
	"phi_dot":   {"φ̇"},
	"rho_dot":   {"ρ̇"},
}

// angleParams are the parameters wrapping around 2π.
var angleParams = map[string]bool{
	"i": true, "Ω": true, "ω": true, "ν": true, "E": true, "M": true,
	"u": true, "α": true, "θ": true, "φ": true, "l": true,
}

// Form is a coordinate representation with six ordered parameters.
type Form struct {
	Name     string
	Params   [6]string
	index    map[string]int
	angles   [6]bool
	toCart   ConvertFunc
	fromCart ConvertFunc
}

// NewForm returns a form converting to and from cartesian with the provided functions.
// The alias table is resolved once, here.
func NewForm(name string, params [6]string, toCart, fromCart ConvertFunc) *Form {
	f := &Form{Name: name, Params: params, index: make(map[string]int), toCart: toCart, fromCart: fromCart}
	for i, p := range params {
		f.index[p] = i
		f.angles[i] = angleParams[p]
	}
	for alias, targets := range parameterAliases {
		for _, t := range targets {
			if i, ok := f.index[t]; ok {
				if _, taken := f.index[alias]; !taken {
					f.index[alias] = i
				}
				break
			}
		}
	}
	return f
}

// Index returns the position of the parameter (or alias) in the form.
func (f *Form) Index(name string) (int, error) {
	if i, ok := f.index[name]; ok {
		return i, nil
	}
	return -1, &FormError{Form: f.Name, Msg: fmt.Sprintf("unknown parameter '%s'", name)}
}

func (f *Form) String() string { return f.Name }

type formPair struct{ from, to string }

// FormRegistry holds the forms and their conversions. Like the frame graph, it is populated
// at setup and only read afterwards.
type FormRegistry struct {
	mu      sync.RWMutex
	forms   map[string]*Form
	aliases map[string]string
	direct  map[formPair]ConvertFunc
}

// NewEmptyFormRegistry returns a registry with only the cartesian form.
func NewEmptyFormRegistry() *FormRegistry {
	r := &FormRegistry{forms: make(map[string]*Form), aliases: make(map[string]string), direct: make(map[formPair]ConvertFunc)}
	ident := func(c Coords, _ float64) (Coords, error) { return c, nil }
	r.forms[Cartesian] = NewForm(Cartesian, [6]string{"x", "y", "z", "vx", "vy", "vz"}, ident, ident)
	return r
}

// Register adds a form. Registering an existing name fails unless override is set.
func (r *FormRegistry) Register(f *Form, override bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.forms[f.Name]; exists && !override {
		return &FormError{Form: f.Name, Msg: "already registered"}
	}
	r.forms[f.Name] = f
	return nil
}

// RegisterAlias makes alias refer to the form name.
func (r *FormRegistry) RegisterAlias(alias, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = name
}

// RegisterDirect registers an optimized conversion between two forms, skipping cartesian.
func (r *FormRegistry) RegisterDirect(from, to string, fn ConvertFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct[formPair{from, to}] = fn
}

// Get returns the form of that name or alias.
func (r *FormRegistry) Get(name string) (*Form, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canon, ok := r.aliases[name]; ok {
		name = canon
	}
	f, ok := r.forms[name]
	if !ok {
		return nil, &FormError{Form: name, Err: ErrUnknownForm}
	}
	return f, nil
}

// Names returns the registered form names, sorted.
func (r *FormRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.forms))
	for n := range r.forms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Convert converts coordinates between two forms by name.
func (r *FormRegistry) Convert(c Coords, from, to string, μ float64) (Coords, error) {
	src, err := r.Get(from)
	if err != nil {
		return c, err
	}
	dst, err := r.Get(to)
	if err != nil {
		return c, err
	}
	return r.ConvertForms(c, src, dst, μ)
}

// ConvertForms converts coordinates between two forms, through cartesian unless a direct
// conversion is registered.
func (r *FormRegistry) ConvertForms(c Coords, src, dst *Form, μ float64) (Coords, error) {
	if src.Name == dst.Name {
		return c, nil
	}
	r.mu.RLock()
	fn, ok := r.direct[formPair{src.Name, dst.Name}]
	r.mu.RUnlock()
	var out Coords
	var err error
	if ok {
		out, err = fn(c, μ)
	} else {
		var cart Coords
		if cart, err = src.toCart(c, μ); err == nil {
			out, err = dst.fromCart(cart, μ)
		}
	}
	if err != nil {
		return c, err
	}
	if !allFinite(out[:]) {
		return c, &FormError{Form: dst.Name, Msg: fmt.Sprintf("non finite conversion from %s", src.Name)}
	}
	return out, nil
}

// NewFormRegistry returns a registry with all the orbital forms and their aliases.
func NewFormRegistry() *FormRegistry {
	r := NewEmptyFormRegistry()
	kep := NewForm(Keplerian, [6]string{"a", "e", "i", "Ω", "ω", "ν"}, kepToCart, cartToKep)
	ecc := NewForm(KeplerianEccentric, [6]string{"a", "e", "i", "Ω", "ω", "E"},
		chain(eccToKep, kepToCart), chain(cartToKep, kepToEcc))
	mean := NewForm(KeplerianMean, [6]string{"a", "e", "i", "Ω", "ω", "M"},
		chain(meanToEcc, eccToKep, kepToCart), chain(cartToKep, kepToEcc, eccToMean))
	circ := NewForm(KeplerianCircular, [6]string{"a", "ex", "ey", "i", "Ω", "u"},
		chain(circToKep, kepToCart), chain(cartToKep, kepToCirc))
	meanCirc := NewForm(KeplerianMeanCircular, [6]string{"a", "ex", "ey", "i", "Ω", "α"},
		chain(circToKep, meanToEcc, eccToKep, kepToCart), chain(cartToKep, kepToEcc, eccToMean, meanToCirc))
	tle := NewForm(TLEForm, [6]string{"i", "Ω", "e", "ω", "M", "n"},
		chain(tleToMean, meanToEcc, eccToKep, kepToCart), chain(cartToKep, kepToEcc, eccToMean, meanToTLE))
	equi := NewForm(Equinoctial, [6]string{"a", "ex", "ey", "ix", "iy", "l"},
		chain(equiToKep, kepToCart), chain(cartToKep, kepToEqui))
	sphe := NewForm(Spherical, [6]string{"r", "θ", "φ", "ṙ", "θ̇", "φ̇"}, spheToCart, cartToSphe)
	cyl := NewForm(Cylindrical, [6]string{"ρ", "θ", "z", "ρ̇", "θ̇", "ż"}, cylToCart, cartToCyl)
	for _, f := range []*Form{kep, ecc, mean, circ, meanCirc, tle, equi, sphe, cyl} {
		_ = r.Register(f, false)
	}
	r.RegisterAlias("circular", KeplerianCircular)
	r.RegisterAlias("mean", KeplerianMean)
	r.RegisterAlias("mean_circular", KeplerianMeanCircular)
	r.RegisterAlias("eccentric", KeplerianEccentric)

	r.RegisterDirect(Keplerian, KeplerianEccentric, kepToEcc)
	r.RegisterDirect(KeplerianEccentric, Keplerian, eccToKep)
	r.RegisterDirect(KeplerianEccentric, KeplerianMean, eccToMean)
	r.RegisterDirect(KeplerianMean, KeplerianEccentric, meanToEcc)
	r.RegisterDirect(Keplerian, KeplerianMean, chain(kepToEcc, eccToMean))
	r.RegisterDirect(KeplerianMean, Keplerian, chain(meanToEcc, eccToKep))
	r.RegisterDirect(KeplerianMean, TLEForm, meanToTLE)
	r.RegisterDirect(TLEForm, KeplerianMean, tleToMean)
	r.RegisterDirect(Keplerian, KeplerianCircular, kepToCirc)
	r.RegisterDirect(KeplerianCircular, Keplerian, circToKep)
	r.RegisterDirect(KeplerianMean, KeplerianMeanCircular, meanToCirc)
	r.RegisterDirect(KeplerianMeanCircular, KeplerianMean, circToKep)
	r.RegisterDirect(Keplerian, Equinoctial, kepToEqui)
	r.RegisterDirect(Equinoctial, Keplerian, equiToKep)
	return r
}

// chain composes conversions.
func chain(fns ...ConvertFunc) ConvertFunc {
	return func(c Coords, μ float64) (Coords, error) {
		var err error
		for _, fn := range fns {
			if c, err = fn(c, μ); err != nil {
				return c, err
			}
		}
		return c, nil
	}
}

func cartToKep(c Coords, μ float64) (Coords, error) {
	r, v := c[:3], c[3:]
	h := cross(r, v)
	hNorm := norm(h)
	rNorm := norm(r)
	if hNorm == 0 || rNorm == 0 {
		return c, &FormError{Form: Keplerian, Msg: "rectilinear or null state"}
	}
	v2 := dot(v, v)
	rv := dot(r, v)
	eVec := make([]float64, 3)
	for j := 0; j < 3; j++ {
		eVec[j] = ((v2-μ/rNorm)*r[j] - rv*v[j]) / μ
	}
	e := norm(eVec)
	if math.Abs(e-1) < parabolicThreshold {
		return c, &FormError{Form: Keplerian, Msg: "parabolic orbit"}
	}
	a := 1 / (2/rNorm - v2/μ)
	i := math.Acos(math.Max(-1, math.Min(1, h[2]/hNorm)))

	// In-plane reference direction: the ascending node, or X for equatorial orbits.
	n := []float64{-h[1], h[0], 0}
	var Ω float64
	p := []float64{1, 0, 0}
	if norm(n) > equatorialThreshold*hNorm {
		p = unitVec(n)
		Ω = math.Atan2(n[1], n[0])
	}
	q := cross(unitVec(h), p)
	u := math.Atan2(dot(r, q), dot(r, p))
	var ω float64
	if e > circularThreshold {
		ω = math.Atan2(dot(eVec, q), dot(eVec, p))
	}
	return Coords{a, e, i, normAngle(Ω), normAngle(ω), normAngle(u - ω)}, nil
}

func kepToCart(c Coords, μ float64) (Coords, error) {
	a, e, i, Ω, ω, ν := c[0], c[1], c[2], c[3], c[4], c[5]
	p := a * (1 - e*e)
	if p <= 0 || e < 0 {
		return c, &FormError{Form: Keplerian, Msg: fmt.Sprintf("invalid a=%f e=%f", a, e)}
	}
	sν, cν := math.Sincos(ν)
	den := 1 + e*cν
	if den <= 0 {
		return c, &FormError{Form: Keplerian, Msg: "true anomaly beyond the hyperbolic asymptote"}
	}
	r := p / den
	sqrtμp := math.Sqrt(μ / p)
	R := Rot313Vec(-ω, -i, -Ω, []float64{r * cν, r * sν, 0})
	V := Rot313Vec(-ω, -i, -Ω, []float64{-sqrtμp * sν, sqrtμp * (e + cν), 0})
	return Coords{R[0], R[1], R[2], V[0], V[1], V[2]}, nil
}

func kepToEcc(c Coords, _ float64) (Coords, error) {
	c[5] = EccentricFromTrue(c[5], c[1])
	return c, nil
}

func eccToKep(c Coords, _ float64) (Coords, error) {
	c[5] = TrueFromEccentric(c[5], c[1])
	return c, nil
}

func eccToMean(c Coords, _ float64) (Coords, error) {
	c[5] = MeanFromEccentric(c[5], c[1])
	return c, nil
}

func meanToEcc(c Coords, _ float64) (Coords, error) {
	c[5] = EccentricFromMean(c[5], c[1])
	return c, nil
}

// kepToCirc works on both the true and mean anomaly variants.
func kepToCirc(c Coords, _ float64) (Coords, error) {
	a, e, i, Ω, ω, anom := c[0], c[1], c[2], c[3], c[4], c[5]
	sω, cω := math.Sincos(ω)
	return Coords{a, e * cω, e * sω, i, Ω, normAngle(ω + anom)}, nil
}

// meanToCirc is kepToCirc restricted to elliptic orbits, the hyperbolic mean anomaly not
// being an angle.
func meanToCirc(c Coords, μ float64) (Coords, error) {
	if c[1] >= 1 {
		return c, &FormError{Form: KeplerianMeanCircular, Msg: "non elliptic orbit"}
	}
	return kepToCirc(c, μ)
}

func circToKep(c Coords, _ float64) (Coords, error) {
	a, ex, ey, i, Ω, lat := c[0], c[1], c[2], c[3], c[4], c[5]
	ω := normAngle(math.Atan2(ey, ex))
	return Coords{a, math.Hypot(ex, ey), i, Ω, ω, normAngle(lat - ω)}, nil
}

func meanToTLE(c Coords, μ float64) (Coords, error) {
	a, e, i, Ω, ω, M := c[0], c[1], c[2], c[3], c[4], c[5]
	if e >= 1 || a <= 0 {
		return c, &FormError{Form: TLEForm, Msg: "mean motion undefined for non elliptic orbits"}
	}
	return Coords{i, Ω, e, ω, M, math.Sqrt(μ / (a * a * a))}, nil
}

func tleToMean(c Coords, μ float64) (Coords, error) {
	i, Ω, e, ω, M, n := c[0], c[1], c[2], c[3], c[4], c[5]
	if n <= 0 {
		return c, &FormError{Form: TLEForm, Msg: "mean motion must be positive"}
	}
	return Coords{math.Cbrt(μ / (n * n)), e, i, Ω, ω, M}, nil
}

func kepToEqui(c Coords, _ float64) (Coords, error) {
	a, e, i, Ω, ω, ν := c[0], c[1], c[2], c[3], c[4], c[5]
	if math.Abs(i-math.Pi) < equatorialThreshold {
		return c, &FormError{Form: Equinoctial, Msg: "retrograde equatorial orbit"}
	}
	sϖ, cϖ := math.Sincos(ω + Ω)
	sΩ, cΩ := math.Sincos(Ω)
	t := math.Tan(i / 2)
	return Coords{a, e * cϖ, e * sϖ, t * cΩ, t * sΩ, normAngle(ν + ω + Ω)}, nil
}

func equiToKep(c Coords, _ float64) (Coords, error) {
	a, ex, ey, ix, iy, l := c[0], c[1], c[2], c[3], c[4], c[5]
	Ω := normAngle(math.Atan2(iy, ix))
	ϖ := math.Atan2(ey, ex)
	ω := normAngle(ϖ - Ω)
	return Coords{a, math.Hypot(ex, ey), 2 * math.Atan(math.Hypot(ix, iy)), Ω, ω, normAngle(l - ϖ)}, nil
}

func cartToSphe(c Coords, _ float64) (Coords, error) {
	x, y, z, vx, vy, vz := c[0], c[1], c[2], c[3], c[4], c[5]
	r := norm(c[:3])
	ρ := math.Hypot(x, y)
	if r == 0 || ρ == 0 {
		return c, &FormError{Form: Spherical, Msg: "undefined longitude on the polar axis"}
	}
	rDot := (x*vx + y*vy + z*vz) / r
	return Coords{
		r,
		normAngle(math.Atan2(y, x)),
		math.Asin(z / r),
		rDot,
		(x*vy - y*vx) / (ρ * ρ),
		(vz*r - z*rDot) / (r * ρ),
	}, nil
}

func spheToCart(c Coords, _ float64) (Coords, error) {
	r, θ, φ, rDot, θDot, φDot := c[0], c[1], c[2], c[3], c[4], c[5]
	sθ, cθ := math.Sincos(θ)
	sφ, cφ := math.Sincos(φ)
	return Coords{
		r * cφ * cθ,
		r * cφ * sθ,
		r * sφ,
		rDot*cφ*cθ - r*φDot*sφ*cθ - r*θDot*cφ*sθ,
		rDot*cφ*sθ - r*φDot*sφ*sθ + r*θDot*cφ*cθ,
		rDot*sφ + r*φDot*cφ,
	}, nil
}

func cartToCyl(c Coords, _ float64) (Coords, error) {
	x, y, z, vx, vy, vz := c[0], c[1], c[2], c[3], c[4], c[5]
	ρ := math.Hypot(x, y)
	if ρ == 0 {
		return c, &FormError{Form: Cylindrical, Msg: "undefined azimuth on the axis"}
	}
	return Coords{ρ, normAngle(math.Atan2(y, x)), z, (x*vx + y*vy) / ρ, (x*vy - y*vx) / (ρ * ρ), vz}, nil
}

func cylToCart(c Coords, _ float64) (Coords, error) {
	ρ, θ, z, ρDot, θDot, zDot := c[0], c[1], c[2], c[3], c[4], c[5]
	sθ, cθ := math.Sincos(θ)
	return Coords{ρ * cθ, ρ * sθ, z, ρDot*cθ - ρ*θDot*sθ, ρDot*sθ + ρ*θDot*cθ, zDot}, nil
}
