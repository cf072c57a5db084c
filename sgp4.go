package fds

import (
	"fmt"
	"math"
)

// WGS-72 constants, as used by SGP4.
const (
	wgs72μ  = 398600.8
	wgs72Re = 6378.135
	wgs72J2 = 0.001082616
	wgs72J3 = -0.00000253881
	wgs72J4 = -0.00000165597
)

var (
	wgs72xke   = 60 / math.Sqrt(wgs72Re*wgs72Re*wgs72Re/wgs72μ)
	wgs72j3oj2 = wgs72J3 / wgs72J2
)

const (
	x2o3 = 2.0 / 3
	// jd1950 is the Julian date of 1949-12-31 00:00 UT, origin of the SGP4 epoch.
	jd1950 = 2433281.5
	// deepSpacePeriod is the period (minutes) above which the deep space model is used.
	deepSpacePeriod = 225
)

// SGP4ErrorCode identifies the failures of the SGP4 model.
type SGP4ErrorCode int

// SGP4 error codes.
const (
	SGP4MeanEccentricity      SGP4ErrorCode = 1
	SGP4MeanMotion            SGP4ErrorCode = 2
	SGP4PerturbedEccentricity SGP4ErrorCode = 3
	SGP4SemiLatusRectum       SGP4ErrorCode = 4
	SGP4Decayed               SGP4ErrorCode = 6
)

func (c SGP4ErrorCode) String() string {
	switch c {
	case SGP4MeanEccentricity:
		return "mean eccentricity out of range"
	case SGP4MeanMotion:
		return "mean motion not positive"
	case SGP4PerturbedEccentricity:
		return "perturbed eccentricity out of range"
	case SGP4SemiLatusRectum:
		return "semi-latus rectum negative"
	case SGP4Decayed:
		return "satellite decayed"
	default:
		return fmt.Sprintf("code %d", int(c))
	}
}

// SGP4Error is the cause of the PropagationError returned by SGP4 on invalid elements.
type SGP4Error struct {
	Code    SGP4ErrorCode
	Minutes float64 // time since the elements epoch
}

func (e *SGP4Error) Error() string {
	return fmt.Sprintf("sgp4: %s at %+.3f min", e.Code, e.Minutes)
}

// Is makes errors.Is(err, ErrDecayed) hold for decayed satellites.
func (e *SGP4Error) Is(target error) bool {
	return target == ErrDecayed && e.Code == SGP4Decayed
}

// SGP4 is the model of the two line element sets: SGP4 for near Earth orbits and SDP4 for
// periods of 225 minutes or more. States must be mean elements in the TEME frame (they are
// converted otherwise); propagated states are cartesian in TEME.
type SGP4 struct {
	BStar float64 // drag term, in inverse Earth radii
}

// Bind initialises the model with the mean elements of the state.
func (m SGP4) Bind(sv StateVector) (Propagator, error) {
	if sv.frame.name != TEME {
		teme, err := sv.env.Frames.Get(TEME)
		if err != nil {
			return nil, err
		}
		if sv, err = sv.InFrame(teme); err != nil {
			return nil, err
		}
	}
	tle, err := sv.AsForm(TLEForm)
	if err != nil {
		return nil, err
	}
	c := tle.coords
	sat, err := newSGP4Sat(sv.epoch.JD(UTC)-jd1950, m.BStar, c[2], c[3], c[0], c[4], c[5]*60, c[1])
	if err != nil {
		return nil, &PropagationError{Epoch: sv.epoch, Err: err}
	}
	return &sgp4Propagator{orig: tle, sat: sat, cart: mustForm(sv.env, Cartesian)}, nil
}

type sgp4Propagator struct {
	orig StateVector
	sat  *sgp4Sat
	cart *Form
}

func (p *sgp4Propagator) Name() string {
	if p.sat.deep {
		return "sdp4"
	}
	return "sgp4"
}

func (p *sgp4Propagator) Propagate(e Epoch) (StateVector, error) {
	r, v, err := p.sat.propagate(e.SecondsSince(p.orig.epoch) / 60)
	if err != nil {
		return StateVector{}, &PropagationError{Epoch: e, Err: err}
	}
	out := p.orig
	out.coords = Coords{r[0], r[1], r[2], v[0], v[1], v[2]}
	out.form = p.cart
	out.epoch = e
	out.cov, out.event, out.maneuvers, out.infosOK = nil, nil, nil, false
	return out, nil
}

// sgp4Sat holds the initialised model. Units are Earth radii and minutes.
type sgp4Sat struct {
	deep bool
	simp bool

	bstar                               float64
	ecco, argpo, inclo, mo, no, nodeo   float64
	ao, con41, cosio, sinio, x1mth2     float64
	cc1, cc4, cc5, d2, d3, d4           float64
	delmo, eta, argpdot, omgcof, sinmao float64
	t2cof, t3cof, t4cof, t5cof          float64
	x7thm1, mdot, nodedot, xlcof        float64
	xmcof, nodecf, aycof                float64
	gsto                                float64

	ds *deepSpace
}

// newSGP4Sat initialises the model (sgp4init). Angles in radians, no in rad/min, epoch in
// days since 1950.
func newSGP4Sat(epoch, bstar, ecco, argpo, inclo, mo, no, nodeo float64) (*sgp4Sat, error) {
	s := &sgp4Sat{bstar: bstar, ecco: ecco, argpo: argpo, inclo: inclo, mo: mo, nodeo: nodeo}
	if ecco < 0 || ecco >= 1 {
		return nil, &SGP4Error{Code: SGP4MeanEccentricity}
	}
	if no <= 0 {
		return nil, &SGP4Error{Code: SGP4MeanMotion}
	}

	ss := 78/wgs72Re + 1
	qzms2t := math.Pow((120-78)/wgs72Re, 4)

	// Recover the original mean motion and semi major axis from the Kozai elements.
	eccsq := ecco * ecco
	omeosq := 1 - eccsq
	rteosq := math.Sqrt(omeosq)
	s.cosio = math.Cos(inclo)
	cosio2 := s.cosio * s.cosio
	ak := math.Pow(wgs72xke/no, x2o3)
	d1 := 0.75 * wgs72J2 * (3*cosio2 - 1) / (rteosq * omeosq)
	del := d1 / (ak * ak)
	adel := ak * (1 - del*del - del*(1.0/3+134*del*del/81))
	del = d1 / (adel * adel)
	s.no = no / (1 + del)
	s.ao = math.Pow(wgs72xke/s.no, x2o3)
	s.sinio = math.Sin(inclo)
	po := s.ao * omeosq
	con42 := 1 - 5*cosio2
	s.con41 = -con42 - cosio2 - cosio2
	posq := po * po
	rp := s.ao * (1 - ecco)
	s.gsto = gstime(epoch + jd1950)

	if rp < 220/wgs72Re+1 {
		s.simp = true
	}
	sfour := ss
	qzms24 := qzms2t
	perige := (rp - 1) * wgs72Re
	if perige < 156 {
		sfour = perige - 78
		if perige < 98 {
			sfour = 20
		}
		qzms24 = math.Pow((120-sfour)/wgs72Re, 4)
		sfour = sfour/wgs72Re + 1
	}
	pinvsq := 1 / posq
	tsi := 1 / (s.ao - sfour)
	s.eta = s.ao * ecco * tsi
	etasq := s.eta * s.eta
	eeta := ecco * s.eta
	psisq := math.Abs(1 - etasq)
	coef := qzms24 * math.Pow(tsi, 4)
	coef1 := coef / math.Pow(psisq, 3.5)
	cc2 := coef1 * s.no * (s.ao*(1+1.5*etasq+eeta*(4+etasq)) +
		0.375*wgs72J2*tsi/psisq*s.con41*(8+3*etasq*(8+etasq)))
	s.cc1 = bstar * cc2
	var cc3 float64
	if ecco > 1e-4 {
		cc3 = -2 * coef * tsi * wgs72j3oj2 * s.no * s.sinio / ecco
	}
	s.x1mth2 = 1 - cosio2
	s.cc4 = 2 * s.no * coef1 * s.ao * omeosq * (s.eta*(2+0.5*etasq) + ecco*(0.5+2*etasq) -
		wgs72J2*tsi/(s.ao*psisq)*(-3*s.con41*(1-2*eeta+etasq*(1.5-0.5*eeta))+
			0.75*s.x1mth2*(2*etasq-eeta*(1+etasq))*math.Cos(2*argpo)))
	s.cc5 = 2 * coef1 * s.ao * omeosq * (1 + 2.75*(etasq+eeta) + eeta*etasq)
	cosio4 := cosio2 * cosio2
	temp1 := 1.5 * wgs72J2 * pinvsq * s.no
	temp2 := 0.5 * temp1 * wgs72J2 * pinvsq
	temp3 := -0.46875 * wgs72J4 * pinvsq * pinvsq * s.no
	s.mdot = s.no + 0.5*temp1*rteosq*s.con41 + 0.0625*temp2*rteosq*(13-78*cosio2+137*cosio4)
	s.argpdot = -0.5*temp1*con42 + 0.0625*temp2*(7-114*cosio2+395*cosio4) +
		temp3*(3-36*cosio2+49*cosio4)
	xhdot1 := -temp1 * s.cosio
	s.nodedot = xhdot1 + (0.5*temp2*(4-19*cosio2)+2*temp3*(3-7*cosio2))*s.cosio
	xpidot := s.argpdot + s.nodedot
	s.omgcof = bstar * cc3 * math.Cos(argpo)
	if ecco > 1e-4 {
		s.xmcof = -x2o3 * coef * bstar / eeta
	}
	s.nodecf = 3.5 * omeosq * xhdot1 * s.cc1
	s.t2cof = 1.5 * s.cc1
	s.xlcof = lcof(s.sinio, s.cosio)
	s.aycof = -0.5 * wgs72j3oj2 * s.sinio
	s.delmo = math.Pow(1+s.eta*math.Cos(mo), 3)
	s.sinmao = math.Sin(mo)
	s.x7thm1 = 7*cosio2 - 1

	if 2*math.Pi/s.no >= deepSpacePeriod {
		s.deep = true
		s.simp = true
		s.ds = newDeepSpace(s, epoch, eccsq, xpidot)
	}

	if !s.simp {
		cc1sq := s.cc1 * s.cc1
		s.d2 = 4 * s.ao * tsi * cc1sq
		temp := s.d2 * tsi * s.cc1 / 3
		s.d3 = (17*s.ao + sfour) * temp
		s.d4 = 0.5 * temp * s.ao * tsi * (221*s.ao + 31*sfour) * s.cc1
		s.t3cof = s.d2 + 2*cc1sq
		s.t4cof = 0.25 * (3*s.d3 + s.cc1*(12*s.d2+10*cc1sq))
		s.t5cof = 0.2 * (3*s.d4 + 12*s.cc1*s.d3 + 6*s.d2*s.d2 + 15*cc1sq*(2*s.d2+cc1sq))
	}

	if _, _, err := s.propagate(0); err != nil {
		return nil, err
	}
	return s, nil
}

func lcof(sinio, cosio float64) float64 {
	den := 1 + cosio
	if math.Abs(den) <= 1.5e-12 {
		den = 1.5e-12
	}
	return -0.25 * wgs72j3oj2 * sinio * (3 + 5*cosio) / den
}

// gstime returns the Greenwich mean sidereal time (IAU-82) used by SGP4.
func gstime(jdut1 float64) float64 {
	tut1 := (jdut1 - 2451545) / 36525
	temp := -6.2e-6*tut1*tut1*tut1 + 0.093104*tut1*tut1 +
		(876600*3600+8640184.812866)*tut1 + 67310.54841
	return normAngle(math.Mod(temp*deg2rad/240, twoPi))
}

// propagate returns the TEME position (km) and velocity (km/s) at tsince minutes from the
// epoch of the elements.
func (s *sgp4Sat) propagate(t float64) (r, v []float64, err error) {
	// Secular gravity and atmospheric drag.
	xmdf := s.mo + s.mdot*t
	argpdf := s.argpo + s.argpdot*t
	nodedf := s.nodeo + s.nodedot*t
	argpm := argpdf
	mm := xmdf
	t2 := t * t
	nodem := nodedf + s.nodecf*t2
	tempa := 1 - s.cc1*t
	tempe := s.bstar * s.cc4 * t
	templ := s.t2cof * t2

	if !s.simp {
		delomg := s.omgcof * t
		delm := s.xmcof * (math.Pow(1+s.eta*math.Cos(xmdf), 3) - s.delmo)
		temp := delomg + delm
		mm = xmdf + temp
		argpm = argpdf - temp
		t3 := t2 * t
		t4 := t3 * t
		tempa = tempa - s.d2*t2 - s.d3*t3 - s.d4*t4
		tempe += s.bstar * s.cc5 * (math.Sin(mm) - s.sinmao)
		templ += s.t3cof*t3 + t4*(s.t4cof+t*s.t5cof)
	}

	nm := s.no
	em := s.ecco
	inclm := s.inclo
	if s.deep {
		em, argpm, inclm, mm, nodem, nm = s.ds.secular(s, t, em, argpm, inclm, mm, nodem)
	}
	if nm <= 0 {
		return nil, nil, &SGP4Error{Code: SGP4MeanMotion, Minutes: t}
	}
	am := math.Pow(wgs72xke/nm, x2o3) * tempa * tempa
	nm = wgs72xke / math.Pow(am, 1.5)
	em -= tempe
	if em >= 1 || em < -0.001 {
		return nil, nil, &SGP4Error{Code: SGP4MeanEccentricity, Minutes: t}
	}
	if em < 1e-6 {
		em = 1e-6
	}
	mm += s.no * templ
	xlm := mm + argpm + nodem
	nodem = math.Mod(nodem, twoPi)
	argpm = math.Mod(argpm, twoPi)
	xlm = math.Mod(xlm, twoPi)
	mm = math.Mod(xlm-argpm-nodem, twoPi)

	// Lunar-solar periodics.
	ep, xincp, argpp, nodep, mp := em, inclm, argpm, nodem, mm
	sinip, cosip := math.Sin(inclm), math.Cos(inclm)
	aycof, xlcof := s.aycof, s.xlcof
	con41, x1mth2, x7thm1 := s.con41, s.x1mth2, s.x7thm1
	if s.deep {
		ep, xincp, nodep, argpp, mp = s.ds.periodics(t, ep, xincp, nodep, argpp, mp)
		if xincp < 0 {
			xincp = -xincp
			nodep += math.Pi
			argpp -= math.Pi
		}
		if ep < 0 || ep > 1 {
			return nil, nil, &SGP4Error{Code: SGP4PerturbedEccentricity, Minutes: t}
		}
		sinip, cosip = math.Sin(xincp), math.Cos(xincp)
		aycof = -0.5 * wgs72j3oj2 * sinip
		xlcof = lcof(sinip, cosip)
		cosisq := cosip * cosip
		con41 = 3*cosisq - 1
		x1mth2 = 1 - cosisq
		x7thm1 = 7*cosisq - 1
	}

	// Long period periodics.
	axnl := ep * math.Cos(argpp)
	temp := 1 / (am * (1 - ep*ep))
	aynl := ep*math.Sin(argpp) + temp*aycof
	xl := mp + argpp + nodep + temp*xlcof*axnl

	// Kepler's equation.
	u := math.Mod(xl-nodep, twoPi)
	eo1 := u
	tem5 := 9999.9
	var sineo1, coseo1 float64
	for ktr := 1; math.Abs(tem5) >= 1e-12 && ktr <= 10; ktr++ {
		sineo1, coseo1 = math.Sincos(eo1)
		tem5 = 1 - coseo1*axnl - sineo1*aynl
		tem5 = (u - aynl*coseo1 + axnl*sineo1 - eo1) / tem5
		if math.Abs(tem5) >= 0.95 {
			tem5 = math.Copysign(0.95, tem5)
		}
		eo1 += tem5
	}

	// Short period preliminary quantities.
	ecose := axnl*coseo1 + aynl*sineo1
	esine := axnl*sineo1 - aynl*coseo1
	el2 := axnl*axnl + aynl*aynl
	pl := am * (1 - el2)
	if pl < 0 {
		return nil, nil, &SGP4Error{Code: SGP4SemiLatusRectum, Minutes: t}
	}
	rl := am * (1 - ecose)
	rdotl := math.Sqrt(am) * esine / rl
	rvdotl := math.Sqrt(pl) / rl
	betal := math.Sqrt(1 - el2)
	temp = esine / (1 + betal)
	sinu := am / rl * (sineo1 - aynl - axnl*temp)
	cosu := am / rl * (coseo1 - axnl + aynl*temp)
	su := math.Atan2(sinu, cosu)
	sin2u := (cosu + cosu) * sinu
	cos2u := 1 - 2*sinu*sinu
	temp = 1 / pl
	temp1 := 0.5 * wgs72J2 * temp
	temp2 := temp1 * temp

	// Short period periodics.
	mrt := rl*(1-1.5*temp2*betal*con41) + 0.5*temp1*x1mth2*cos2u
	su -= 0.25 * temp2 * x7thm1 * sin2u
	xnode := nodep + 1.5*temp2*cosip*sin2u
	xinc := xincp + 1.5*temp2*cosip*sinip*cos2u
	mvt := rdotl - nm*temp1*x1mth2*sin2u/wgs72xke
	rvdot := rvdotl + nm*temp1*(x1mth2*cos2u+1.5*con41)/wgs72xke

	// Orientation vectors.
	sinsu, cossu := math.Sincos(su)
	snod, cnod := math.Sincos(xnode)
	sini, cosi := math.Sincos(xinc)
	xmx := -snod * cosi
	xmy := cnod * cosi
	ux := xmx*sinsu + cnod*cossu
	uy := xmy*sinsu + snod*cossu
	uz := sini * sinsu
	vx := xmx*cossu - cnod*sinsu
	vy := xmy*cossu - snod*sinsu
	vz := sini * cossu

	vkmpersec := wgs72Re * wgs72xke / 60
	r = []float64{mrt * ux * wgs72Re, mrt * uy * wgs72Re, mrt * uz * wgs72Re}
	v = []float64{
		(mvt*ux + rvdot*vx) * vkmpersec,
		(mvt*uy + rvdot*vy) * vkmpersec,
		(mvt*uz + rvdot*vz) * vkmpersec,
	}
	if mrt < 1 {
		return r, v, &SGP4Error{Code: SGP4Decayed, Minutes: t}
	}
	return r, v, nil
}
