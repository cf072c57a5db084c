package fds

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Scale is a time scale.
type Scale string

// Supported time scales. UT1 depends on Earth orientation data and is only
// available through an EOPProvider: epoch constructors, In and MJD panic on UT1.
const (
	UTC Scale = "UTC"
	TAI Scale = "TAI"
	TT  Scale = "TT"
	GPS Scale = "GPS"
	TDB Scale = "TDB"
	UT1 Scale = "UT1"
)

const (
	ttMinusTAI  = 32.184
	taiMinusGPS = 19.0
	// MJDJ2000 is the modified Julian date of J2000.0 (TT).
	MJDJ2000 = 51544.5
	// JDMJD is the offset between Julian dates and modified Julian dates.
	JDMJD = 2400000.5
	// SecondsPerDay is the length of a day in SI seconds.
	SecondsPerDay = 86400.0
)

// ParseScale returns the scale from its name.
func ParseScale(name string) (Scale, error) {
	switch s := Scale(strings.ToUpper(name)); s {
	case UTC, TAI, TT, GPS, TDB:
		return s, nil
	case UT1:
		return "", ErrUT1Scale
	default:
		return "", fmt.Errorf("unknown time scale '%s'", name)
	}
}

// leapSecond is the TAI-UTC offset applicable from the UTC day MJD onward.
type leapSecond struct {
	mjd    int
	offset float64
}

var leapSeconds = []leapSecond{
	{41317, 10}, {41499, 11}, {41683, 12}, {42048, 13}, {42413, 14}, {42778, 15},
	{43144, 16}, {43509, 17}, {43874, 18}, {44239, 19}, {44786, 20}, {45151, 21},
	{45516, 22}, {46247, 23}, {47161, 24}, {47892, 25}, {48257, 26}, {48804, 27},
	{49169, 28}, {49534, 29}, {50083, 30}, {50630, 31}, {51179, 32}, {53736, 33},
	{54832, 34}, {56109, 35}, {57204, 36}, {57754, 37},
}

// TAIMinusUTC returns the number of leap seconds at the provided UTC modified Julian date.
func TAIMinusUTC(mjdUTC float64) float64 {
	day := int(math.Floor(mjdUTC))
	idx := sort.Search(len(leapSeconds), func(i int) bool { return leapSeconds[i].mjd > day })
	if idx == 0 {
		return leapSeconds[0].offset
	}
	return leapSeconds[idx-1].offset
}

// tdbMinusTT returns TDB-TT in seconds, from the TT modified Julian date.
func tdbMinusTT(mjdTT float64) float64 {
	jd := mjdTT + JDMJD
	T := (mjdTT - MJDJ2000) / 36525
	m := (357.5277233 + 35999.05034*T) * deg2rad
	Δλ := (246.11 + 0.90251792*(jd-2451545)) * deg2rad
	return 0.001657*math.Sin(m) + 0.000022*math.Sin(Δλ)
}

// offsetFromTAI returns (scale - TAI) in seconds at the provided TAI date.
func offsetFromTAI(scale Scale, mjdTAI float64) float64 {
	switch scale {
	case UTC:
		guess := mjdTAI - 37/SecondsPerDay
		off := TAIMinusUTC(guess)
		return -TAIMinusUTC(mjdTAI - off/SecondsPerDay)
	case TT:
		return ttMinusTAI
	case GPS:
		return -taiMinusGPS
	case TDB:
		return ttMinusTAI + tdbMinusTT(mjdTAI+ttMinusTAI/SecondsPerDay)
	case UT1:
		panic(ErrUT1Scale)
	default:
		return 0
	}
}

// offsetToTAI returns (TAI - scale) in seconds for a date expressed in that scale.
func offsetToTAI(scale Scale, mjd float64) float64 {
	switch scale {
	case UTC:
		return TAIMinusUTC(mjd)
	case TT:
		return -ttMinusTAI
	case GPS:
		return taiMinusGPS
	case TDB:
		return -ttMinusTAI - tdbMinusTT(mjd)
	case UT1:
		panic(ErrUT1Scale)
	default:
		return 0
	}
}
