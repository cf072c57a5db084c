package fds

import (
	"math"

	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/sidereal"
	"gonum.org/v1/gonum/mat"
)

// Frame bias between GCRF and EME2000 (IERS 2010, eq. 5.21), in arcsec.
const (
	biasξ0  = -0.0166170
	biasη0  = -0.0068192
	biasdα0 = -0.01460
)

// mjdKinematic is the date after which the equation of the equinoxes includes its kinematic terms.
const mjdKinematic = 50506

// frameBias returns B such that v_EME2000 = B·v_GCRF.
func frameBias() *mat.Dense {
	return mul33(R1(-biasη0*arcsec2rad), R2(biasξ0*arcsec2rad), R3(biasdα0*arcsec2rad))
}

// precession returns the IAU 1976 precession matrix P such that v_EME2000 = P·v_MOD,
// T in Julian centuries TT since J2000.
func precession(T float64) *mat.Dense {
	T2 := T * T
	T3 := T2 * T
	ζ := (2306.2181*T + 0.30188*T2 + 0.017998*T3) * arcsec2rad
	θ := (2004.3109*T - 0.42665*T2 - 0.041833*T3) * arcsec2rad
	z := (2306.2181*T + 1.09468*T2 + 0.018203*T3) * arcsec2rad
	return mul33(R3(ζ), R2(-θ), R3(z))
}

// meanObliquity returns the IAU 1980 mean obliquity of the ecliptic.
func meanObliquity(e Epoch) float64 {
	return float64(nutation.MeanObliquity(e.JD(TT)))
}

// nutationAngles holds the IAU 1980 nutation at an epoch, including the EOP corrections.
type nutationAngles struct {
	εbar, Δψ, Δε float64
}

func (n nutationAngles) ε() float64 { return n.εbar + n.Δε }

func nutationAt(e Epoch, rec EOP) nutationAngles {
	Δψ, Δε := nutation.Nutation(e.JD(TT))
	const mas2rad = arcsec2rad / 1000
	return nutationAngles{
		εbar: meanObliquity(e),
		Δψ:   float64(Δψ) + rec.DPsi*mas2rad,
		Δε:   float64(Δε) + rec.DEps*mas2rad,
	}
}

// matrix returns N such that v_MOD = N·v_TOD.
func (n nutationAngles) matrix() *mat.Dense {
	return mul33(R1(-n.εbar), R3(n.Δψ), R1(n.ε()))
}

// moonNode returns the longitude of the ascending node of the Moon's mean orbit.
func moonNode(T float64) float64 {
	return (125.04452222 - (5*360+134.1362608)*T + 0.0020708*T*T + 2.2e-6*T*T*T) * deg2rad
}

// equinoxEquation returns the equation of the equinoxes, with the kinematic terms if requested
// and the epoch is after 1997-02-27.
func (n nutationAngles) equinoxEquation(e Epoch, kinematic bool) float64 {
	eq := n.Δψ * math.Cos(n.εbar)
	if kinematic && e.MJD(TT) > mjdKinematic {
		Ω := moonNode(e.Centuries(TT))
		eq += (0.00264*math.Sin(Ω) + 0.000063*math.Sin(2*Ω)) * arcsec2rad
	}
	return eq
}

// gmst returns the IAU 1982 Greenwich mean sidereal time from the UT1 modified Julian date.
func gmst(mjdUT1 float64) float64 {
	st := sidereal.Mean(mjdUT1 + JDMJD)
	return normAngle(float64(st) / SecondsPerDay * twoPi)
}

// earthRotation returns the rotation vector of the Earth accounting for the length of day.
func earthRotation(rec EOP) []float64 {
	return []float64{0, 0, EarthRotationRate * (1 - rec.LOD*1e-3/SecondsPerDay)}
}

// siderealState gathers the values needed by the equinox based Earth frames at one epoch.
type siderealState struct {
	nut  nutationAngles
	gast float64
	rec  EOP
}

func siderealAt(eop *EOPProvider, e Epoch) (siderealState, error) {
	rec, err := eop.At(e)
	if err != nil {
		return siderealState{}, &FrameError{Frame: PEF, Msg: "no Earth orientation", Err: err}
	}
	nut := nutationAt(e, rec)
	mjdUT1 := e.MJD(UTC) + rec.UT1UTC/SecondsPerDay
	return siderealState{
		nut:  nut,
		gast: normAngle(gmst(mjdUT1) + nut.equinoxEquation(e, true)),
		rec:  rec,
	}, nil
}
