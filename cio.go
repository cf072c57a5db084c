package fds

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// era returns the Earth rotation angle (IERS 2010, eq. 5.15) from the UT1 modified Julian date.
func era(mjdUT1 float64) float64 {
	// Split the date to keep the precision of the fractional day.
	day := math.Floor(mjdUT1)
	tu := (day - MJDJ2000) + (mjdUT1 - day)
	frac := mjdUT1 - day + 0.5
	return normAngle(twoPi * (frac + 0.7790572732640 + 0.00273781191135448*tu))
}

// polarMotion returns W such that v_TIRF = W·v_ITRF, x and y in arcsec.
func polarMotion(x, y, T float64) *mat.Dense {
	sp := -47e-6 * T * arcsec2rad
	return mul33(R3(-sp), R2(x*arcsec2rad), R1(y*arcsec2rad))
}

// celestialToIntermediate returns Q such that v_GCRF = Q·v_CIRF. It is built from the equinox
// based chain and the equation of the origins (GAST - ERA) so that both chains agree.
func celestialToIntermediate(e Epoch, st siderealState, mjdUT1 float64) *mat.Dense {
	T := e.Centuries(TT)
	eo := st.gast - era(mjdUT1)
	return mul33(frameBias().T(), precession(T), st.nut.matrix(), R3(-eo))
}
