package fds

import (
	"math"
	"time"
)

// OrbitKind is the conic section of an orbit.
type OrbitKind string

// Conic kinds.
const (
	Elliptic   OrbitKind = "elliptic"
	Parabolic  OrbitKind = "parabolic"
	Hyperbolic OrbitKind = "hyperbolic"
)

const parabolicε = 1e-12

// Infos holds the quantities derived from a state. Fields which do not apply to the kind of
// orbit (e.g. the apocenter of an hyperbola) are NaN.
type Infos struct {
	Kind       OrbitKind
	Energy     float64       // specific mechanical energy, km²/s²
	N          float64       // mean motion, rad/s
	Period     time.Duration // zero if not elliptic
	A, E       float64       // semi major axis (km) and eccentricity
	P          float64       // semi-latus rectum, km
	H          []float64     // angular momentum vector
	Apocenter  float64       // km
	Pericenter float64       // km
	R, V       float64       // radius (km) and velocity (km/s)
	Va, Vp     float64       // velocity at apocenter and pericenter, km/s
	VInf       float64       // hyperbolic excess velocity, km/s
	DInf       float64       // impact parameter (asymptote distance), km
	FPA        float64       // flight path angle, rad
	LightDelay time.Duration // light time from the center of the frame
	// PericenterAlt and ApocenterAlt are altitudes above the mean radius of the central body.
	PericenterAlt, ApocenterAlt float64
}

// PeriodSeconds returns the period in seconds, NaN if not elliptic.
func (i Infos) PeriodSeconds() float64 {
	if i.Kind != Elliptic {
		return math.NaN()
	}
	return twoPi / i.N
}

func newInfos(cart []float64, μ, radius float64) Infos {
	r, v := cart[:3], cart[3:6]
	rn, vn := norm(r), norm(v)
	h := cross(r, v)
	hn := norm(h)
	energy := vn*vn/2 - μ/rn

	// Eccentricity vector.
	rv := dot(r, v)
	ev := make([]float64, 3)
	for k := 0; k < 3; k++ {
		ev[k] = ((vn*vn-μ/rn)*r[k] - rv*v[k]) / μ
	}
	e := norm(ev)
	p := hn * hn / μ

	nan := math.NaN()
	in := Infos{
		Energy: energy, E: e, P: p, H: h, R: rn, V: vn,
		FPA:        math.Atan2(rv, hn),
		LightDelay: time.Duration(rn / SpeedOfLight * float64(time.Second)),
		A:          nan, N: nan, Apocenter: nan, Va: nan, VInf: nan, DInf: nan,
		ApocenterAlt: nan,
	}
	in.Pericenter = p / (1 + e)
	in.Vp = hn / in.Pericenter
	in.PericenterAlt = in.Pericenter - radius

	switch {
	case math.Abs(e-1) < parabolicε:
		in.Kind = Parabolic
		in.N = 2 * math.Sqrt(μ/(p*p*p))
	case e < 1:
		in.Kind = Elliptic
		in.A = -μ / (2 * energy)
		in.N = math.Sqrt(μ / (in.A * in.A * in.A))
		in.Period = time.Duration(twoPi / in.N * float64(time.Second))
		in.Apocenter = in.A * (1 + e)
		in.ApocenterAlt = in.Apocenter - radius
		in.Va = hn / in.Apocenter
	default:
		in.Kind = Hyperbolic
		in.A = -μ / (2 * energy)
		in.N = math.Sqrt(μ / -(in.A * in.A * in.A))
		in.VInf = math.Sqrt(2 * energy)
		in.DInf = -in.A * math.Sqrt(e*e-1)
	}
	return in
}
