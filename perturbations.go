package fds

import (
	"fmt"
	"math"
	"sort"
)

// SolarPressure is the solar radiation pressure at 1 AU, N/m².
const SolarPressure = 4.56e-6

// Perturbations defines the accelerations added to the central body attraction during a
// numerical propagation.
type Perturbations struct {
	Jn        uint8             // Zonal harmonics to be used (J2 up to J4), ignored about the Sun.
	ThirdBody []CelestialObject // Perturbing bodies (Earth, Moon or Sun), the central body is skipped.
	Drag      *Drag             // Atmospheric drag, about the Earth only.
	SRP       *SRP              // Solar radiation pressure, with the central body shadow.
	// Arbitrary is an additional acceleration (km/s²) from the epoch and the cartesian state.
	Arbitrary func(e Epoch, state []float64) []float64
}

// Drag is the atmospheric drag with an exponential atmosphere model.
type Drag struct {
	Cd       float64 // Drag coefficient.
	AreaMass float64 // Area to mass ratio, m²/kg.
}

// SRP is the solar radiation pressure on a cannonball.
type SRP struct {
	Cr       float64 // Reflectivity coefficient.
	AreaMass float64 // Area to mass ratio, m²/kg.
}

func (p Perturbations) isEmpty() bool {
	return p.Jn <= 1 && len(p.ThirdBody) == 0 && p.Drag == nil && p.SRP == nil && p.Arbitrary == nil
}

// Perturb returns the perturbing acceleration (km/s²) on the cartesian state expressed in
// frame at the given epoch. The positions of the perturbing bodies come from the frames of g.
// The zonal terms assume that the frame z axis is the pole of the central body.
func (p Perturbations) Perturb(g *FrameGraph, frame *Frame, e Epoch, state []float64) ([]float64, error) {
	pert := make([]float64, 3)
	if p.isEmpty() {
		return pert, nil
	}
	center := frame.center
	if p.Jn > 1 && !center.Equals(Sun) {
		add3(pert, zonal(center, p.Jn, state))
	}
	for _, body := range p.ThirdBody {
		if body.Equals(center) {
			continue
		}
		rb, err := bodyPosition(g, frame, body, e)
		if err != nil {
			return nil, err
		}
		add3(pert, thirdBody(body.GM(), state[:3], rb))
	}
	if p.Drag != nil && center.Equals(Earth) {
		add3(pert, p.Drag.accel(state))
	}
	if p.SRP != nil {
		var sun []float64
		if center.Equals(Sun) {
			sun = []float64{0, 0, 0}
		} else {
			var err error
			if sun, err = bodyPosition(g, frame, Sun, e); err != nil {
				return nil, err
			}
		}
		add3(pert, p.SRP.accel(state[:3], sun, center))
	}
	if p.Arbitrary != nil {
		add3(pert, p.Arbitrary(e, state))
	}
	return pert, nil
}

func add3(a, b []float64) {
	for i := 0; i < 3; i++ {
		a[i] += b[i]
	}
}

// zonal returns the acceleration of the J2 to Jn zonal harmonics.
func zonal(body CelestialObject, n uint8, state []float64) []float64 {
	x, y, z := state[0], state[1], state[2]
	z2 := z * z
	r2 := x*x + y*y + z2
	r := math.Sqrt(r2)
	r5 := r2 * r2 * r
	r7 := r5 * r2
	μ := body.GM()
	R := body.Radius
	acc := make([]float64, 3)
	// J2
	accJ2 := (3 / 2.) * body.J(2) * R * R * μ
	acc[0] += accJ2 * (5*x*z2/r7 - x/r5)
	acc[1] += accJ2 * (5*y*z2/r7 - y/r5)
	acc[2] += accJ2 * (5*z2*z/r7 - 3*z/r5)
	if n >= 3 {
		r9 := r7 * r2
		accJ3 := body.J(3) * R * R * R * μ
		acc[0] += (5 / 2.) * accJ3 * (7*x*z2*z/r9 - 3*x*z/r7)
		acc[1] += (5 / 2.) * accJ3 * (7*y*z2*z/r9 - 3*y*z/r7)
		acc[2] += 0.5 * accJ3 * (35*z2*z2/r9 - 30*z2/r7 + 3/r5)
	}
	if n >= 4 {
		accJ4 := body.J(4) * R * R * R * R * μ / (8 * r7)
		s2 := z2 / r2
		s4 := s2 * s2
		acc[0] += 15 * accJ4 * x * (1 - 14*s2 + 21*s4)
		acc[1] += 15 * accJ4 * y * (1 - 14*s2 + 21*s4)
		acc[2] += 5 * accJ4 * z * (15 - 70*s2 + 63*s4)
	}
	return acc
}

// thirdBody returns the perturbation of a body at rb (relative to the central body) on an
// object at r.
func thirdBody(μ float64, r, rb []float64) []float64 {
	d := sub3(rb, r)
	dn3 := math.Pow(norm(d), 3)
	rbn3 := math.Pow(norm(rb), 3)
	acc := make([]float64, 3)
	for i := 0; i < 3; i++ {
		acc[i] = μ * (d[i]/dn3 - rb[i]/rbn3)
	}
	return acc
}

// bodyFrames lists the frames centred on each body, as registered by NewFrameGraph.
var bodyFrames = map[string]string{
	Earth.Name: EME2000,
	Moon.Name:  MoonFrame,
	Sun.Name:   SunFrame,
}

// bodyPosition returns the position of the body in the provided frame at epoch e.
func bodyPosition(g *FrameGraph, frame *Frame, body CelestialObject, e Epoch) ([]float64, error) {
	name, ok := bodyFrames[body.Name]
	if !ok {
		return nil, &FrameError{Frame: body.Name, Msg: "no frame centred on this body"}
	}
	bf, err := g.Get(name)
	if err != nil {
		return nil, err
	}
	t, err := TransformFrames(bf, frame, e, nil)
	if err != nil {
		return nil, err
	}
	return t.Offset[:3], nil
}

// atmosphere is the exponential atmosphere model: base altitude (km), density (kg/m³) and
// scale height (km).
var atmosphere = [][3]float64{
	{0, 1.225, 7.249},
	{25, 3.899e-2, 6.349},
	{30, 1.774e-2, 6.682},
	{40, 3.972e-3, 7.554},
	{50, 1.057e-3, 8.382},
	{60, 3.206e-4, 7.714},
	{70, 8.770e-5, 6.549},
	{80, 1.905e-5, 5.799},
	{90, 3.396e-6, 5.382},
	{100, 5.297e-7, 5.877},
	{110, 9.661e-8, 7.263},
	{120, 2.438e-8, 9.473},
	{130, 8.484e-9, 12.636},
	{140, 3.845e-9, 16.149},
	{150, 2.070e-9, 22.523},
	{180, 5.464e-10, 29.740},
	{200, 2.789e-10, 37.105},
	{250, 7.248e-11, 45.546},
	{300, 2.418e-11, 53.628},
	{350, 9.518e-12, 53.298},
	{400, 3.725e-12, 58.515},
	{450, 1.585e-12, 60.828},
	{500, 6.967e-13, 63.822},
	{600, 1.454e-13, 71.835},
	{700, 3.614e-14, 88.667},
	{800, 1.170e-14, 124.64},
	{900, 5.245e-15, 181.05},
	{1000, 3.019e-15, 268.00},
}

// AtmosphericDensity returns the density (kg/m³) of the exponential atmosphere at the
// provided altitude (km).
func AtmosphericDensity(alt float64) float64 {
	if alt < 0 {
		alt = 0
	}
	i := sort.Search(len(atmosphere), func(i int) bool { return atmosphere[i][0] > alt }) - 1
	row := atmosphere[i]
	return row[1] * math.Exp(-(alt-row[0])/row[2])
}

func (d *Drag) accel(state []float64) []float64 {
	r := state[:3]
	vRel := []float64{
		state[3] + EarthRotationRate*r[1],
		state[4] - EarthRotationRate*r[0],
		state[5],
	}
	ρ := AtmosphericDensity(norm(r) - Earth.Radius)
	// m/s² to km/s² with velocities in km/s.
	f := -0.5 * d.Cd * d.AreaMass * ρ * norm(vRel) * 1e3
	return []float64{f * vRel[0], f * vRel[1], f * vRel[2]}
}

func (s *SRP) accel(r, sun []float64, occulting CelestialObject) []float64 {
	d := sub3(sun, r)
	dn := norm(d)
	ν := 1.0
	if !occulting.Equals(Sun) {
		ν = shadowFraction(r, sun, occulting.Radius)
	}
	f := -ν * SolarPressure * s.Cr * s.AreaMass * (AU / dn) * (AU / dn) / 1e3 / dn
	return []float64{f * d[0], f * d[1], f * d[2]}
}

// shadowGeometry returns the apparent radius of the Sun (a) and of the occulting body (b) as
// seen from r, and their apparent separation (c), all in radians. r and sun are relative to
// the occulting body.
func shadowGeometry(r, sun []float64, radius float64) (a, b, c float64) {
	d := sub3(sun, r)
	dn, rn := norm(d), norm(r)
	a = math.Asin(Sun.Radius / dn)
	b = math.Asin(math.Min(1, radius/rn))
	c = math.Acos(math.Max(-1, math.Min(1, -dot(r, d)/(rn*dn))))
	return
}

// shadowFraction returns the fraction of the solar disk visible from r (1 in full light, 0 in
// the umbra), with the conical shadow model.
func shadowFraction(r, sun []float64, radius float64) float64 {
	a, b, c := shadowGeometry(r, sun, radius)
	switch {
	case c >= a+b:
		return 1
	case c < b-a:
		return 0
	case c < a-b:
		// Annular eclipse.
		return 1 - (b*b)/(a*a)
	}
	x := (c*c + a*a - b*b) / (2 * c)
	y := math.Sqrt(math.Max(0, a*a-x*x))
	area := a*a*math.Acos(x/a) + b*b*math.Acos((c-x)/b) - c*y
	return 1 - area/(math.Pi*a*a)
}

func (p Perturbations) String() string {
	var bodies []string
	for _, b := range p.ThirdBody {
		bodies = append(bodies, b.Name)
	}
	return fmt.Sprintf("Jn=%d third=%v drag=%t srp=%t", p.Jn, bodies, p.Drag != nil, p.SRP != nil)
}
