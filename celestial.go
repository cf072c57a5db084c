package fds

import (
	"fmt"
	"math"
	"strings"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/solar"
)

const (
	// AU is one astronomical unit in kilometers.
	AU = 1.49597870700e8
	// SpeedOfLight in km/s.
	SpeedOfLight = 299792.458
)

// CelestialObject defines a celestial object.
type CelestialObject struct {
	Name       string
	Radius     float64 // equatorial radius, km
	Flattening float64
	μ          float64
	SOI        float64 // sphere of influence radius with respect to its primary, km
	J2         float64
	J3         float64
	J4         float64
}

// GM returns μ (which is unexported because it's a lowercase letter)
func (c CelestialObject) GM() float64 {
	return c.μ
}

// J returns the perturbing J_n factor for the provided n.
// Currently only J2 to J4 are supported.
func (c CelestialObject) J(n uint8) float64 {
	switch n {
	case 2:
		return c.J2
	case 3:
		return c.J3
	case 4:
		return c.J4
	default:
		return 0.0
	}
}

// String implements the Stringer interface.
func (c CelestialObject) String() string {
	return c.Name + " body"
}

// Equals returns whether the provided celestial object is the same.
func (c CelestialObject) Equals(b CelestialObject) bool {
	return c.Name == b.Name && c.Radius == b.Radius && c.μ == b.μ
}

// CelestialObjectFromString returns the object from its name
func CelestialObjectFromString(name string) (CelestialObject, error) {
	switch strings.ToLower(name) {
	case "earth":
		return Earth, nil
	case "moon":
		return Moon, nil
	case "sun":
		return Sun, nil
	case "venus":
		return Venus, nil
	case "mars":
		return Mars, nil
	case "jupiter":
		return Jupiter, nil
	default:
		return CelestialObject{}, fmt.Errorf("undefined body '%s'", name)
	}
}

/* Definitions */

// Sun is our closest star.
var Sun = CelestialObject{"Sun", 695700, 0, 1.32712440018e11, -1, 0, 0, 0}

// Earth is home (WGS84 shape, EGM gravity).
var Earth = CelestialObject{"Earth", 6378.1363, 1 / 298.257223563, 3.986004418e5, 924642, 1.08262668355315e-3, -2.53265648533224e-6, -1.619621591367e-6}

// Moon is our only natural satellite.
var Moon = CelestialObject{"Moon", 1737.4, 0.0012, 4.902800066e3, 66168, 2.033e-4, 0, 0}

// Venus is poisonous.
var Venus = CelestialObject{"Venus", 6051.8, 0, 3.24858599e5, 616000, 0.000027, 0, 0}

// Mars is the vacation place.
var Mars = CelestialObject{"Mars", 3396.19, 0.00589, 4.28283100e4, 577223, 1964e-6, 36e-6, -18e-6}

// Jupiter is big.
var Jupiter = CelestialObject{"Jupiter", 71492.0, 0.06487, 1.266865361e8, 48.2e6, 0.01475, 0, -0.00058}

// eclipticToEME2000 converts an ecliptic position of date (mean equinox) to EME2000.
func eclipticToEME2000(e Epoch, λ, β, r float64) []float64 {
	sλ, cλ := math.Sincos(λ)
	sβ, cβ := math.Sincos(β)
	ecl := []float64{r * cβ * cλ, r * cβ * sλ, r * sβ}
	T := e.Centuries(TT)
	εbar := meanObliquity(e)
	return MxV33(mul33(precession(T), R1(-εbar)), ecl)
}

// moonPosition returns the geocentric position of the Moon in EME2000, km.
func moonPosition(e Epoch) []float64 {
	λ, β, Δ := moonposition.Position(e.JD(TT))
	return eclipticToEME2000(e, float64(λ), float64(β), Δ)
}

// sunPosition returns the geocentric position of the Sun in EME2000, km.
func sunPosition(e Epoch) []float64 {
	T := base.J2000Century(e.JD(TT))
	s, _ := solar.True(T)
	return eclipticToEME2000(e, float64(s), 0, solar.Radius(T)*AU)
}

// bodyState returns the position and velocity (by central differences) of a body.
func bodyState(pos func(Epoch) []float64, e Epoch) []float64 {
	const h = 30.0
	r := pos(e)
	before := pos(e.AddSeconds(-h))
	after := pos(e.AddSeconds(h))
	return []float64{r[0], r[1], r[2],
		(after[0] - before[0]) / (2 * h),
		(after[1] - before[1]) / (2 * h),
		(after[2] - before[2]) / (2 * h)}
}

// MoonState returns the geocentric state of the Moon in EME2000 (km, km/s).
func MoonState(e Epoch) []float64 { return bodyState(moonPosition, e) }

// SunState returns the geocentric state of the Sun in EME2000 (km, km/s).
func SunState(e Epoch) []float64 { return bodyState(sunPosition, e) }
