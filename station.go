package fds

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/soniakeys/meeus/v3/globe"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// MaskPoint is one point of a station elevation mask, angles in radians.
type MaskPoint struct {
	Az, El float64
}

// Station is a ground station. Its topocentric frame (named after the station) has its
// x axis pointing North, y West and z to the zenith, and is a child of WGS84.
type Station struct {
	Name                  string
	Latitude, Longitude   float64 // geodetic, radians
	Altitude              float64 // km
	Mask                  []MaskPoint
	R                     []float64 // position in ITRF, km
	RangeNoise, RateNoise *distmv.Normal
	frame                 *Frame
	toLocal               *mat.Dense
}

// StationOption configures a station.
type StationOption func(*Station) error

// WithMask sets the elevation mask (azimuth, elevation pairs in radians).
func WithMask(mask []MaskPoint) StationOption {
	return func(s *Station) error {
		m := append([]MaskPoint(nil), mask...)
		sort.Slice(m, func(i, j int) bool { return m[i].Az < m[j].Az })
		s.Mask = m
		return nil
	}
}

// WithNoise sets the variance of the range (km²) and range rate ((km/s)²) measurements.
func WithNoise(σρ2, σρDot2 float64, seed uint64) StationOption {
	return func(s *Station) error {
		src := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		ρNoise, ok := distmv.NewNormal([]float64{0}, mat.NewSymDense(1, []float64{σρ2}), src)
		if !ok {
			return fmt.Errorf("invalid range variance %f", σρ2)
		}
		ρDotNoise, ok := distmv.NewNormal([]float64{0}, mat.NewSymDense(1, []float64{σρDot2}), src)
		if !ok {
			return fmt.Errorf("invalid range rate variance %f", σρDot2)
		}
		s.RangeNoise, s.RateNoise = ρNoise, ρDotNoise
		return nil
	}
}

// NewStation creates a station at the provided geodetic location (degrees and meters) and
// registers its frame in the graph.
func NewStation(g *FrameGraph, name string, latDeg, lonDeg, altM float64, override bool, opts ...StationOption) (*Station, error) {
	wgs, err := g.Get(WGS84)
	if err != nil {
		return nil, err
	}
	s := &Station{Name: name, Latitude: latDeg * deg2rad, Longitude: lonDeg * deg2rad, Altitude: altM / 1e3}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, &FrameError{Frame: name, Msg: "invalid station", Err: err}
		}
	}
	s.R = GEO2ECEF(altM, s.Latitude, s.Longitude)

	sφ, cφ := math.Sincos(s.Latitude)
	sλ, cλ := math.Sincos(s.Longitude)
	// Rows are the North, West and Zenith directions in ITRF.
	s.toLocal = mat.NewDense(3, 3, []float64{
		-sφ * cλ, -sφ * sλ, cφ,
		sλ, -cλ, 0,
		cφ * cλ, cφ * sλ, sφ})
	toParent := RotationTransform(s.toLocal.T(), nil).Translate(s.R)
	s.frame = NewFixedFrame(name, wgs, Earth, toParent)
	if err := g.Register(s.frame, override); err != nil {
		return nil, err
	}
	return s, nil
}

// GEO2ECEF converts a geodetic location on the WGS84 ellipsoid (altitude in meters, angles in
// radians) to an Earth fixed position in km.
func GEO2ECEF(altitude, latitude, longitude float64) []float64 {
	ell := globe.Ellipsoid{Er: Earth.Radius, Fl: Earth.Flattening}
	s, c := ell.ParallaxConstants(unit.Angle(latitude), altitude)
	sλ, cλ := math.Sincos(longitude)
	return []float64{Earth.Radius * c * cλ, Earth.Radius * c * sλ, Earth.Radius * s}
}

// Frame returns the topocentric frame of the station.
func (s *Station) Frame() *Frame { return s.frame }

// MaskElevation returns the minimum elevation at the provided azimuth (zero without a mask).
func (s *Station) MaskElevation(az float64) float64 {
	n := len(s.Mask)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return s.Mask[0].El
	}
	az = normAngle(az)
	idx := sort.Search(n, func(i int) bool { return s.Mask[i].Az > az })
	var lo, hi MaskPoint
	switch idx {
	case 0, n:
		lo, hi = s.Mask[n-1], s.Mask[0]
		hi.Az += twoPi
		if idx == 0 {
			az += twoPi
		}
	default:
		lo, hi = s.Mask[idx-1], s.Mask[idx]
	}
	if hi.Az == lo.Az {
		return lo.El
	}
	return lo.El + (hi.El-lo.El)*(az-lo.Az)/(hi.Az-lo.Az)
}

// Topocentric returns the position and velocity of the state in the station frame.
func (s *Station) Topocentric(sv StateVector) ([]float64, error) {
	local, err := sv.InFrame(s.frame)
	if err != nil {
		return nil, err
	}
	return local.Cartesian(), nil
}

// AzElRange returns the azimuth (clockwise from North), elevation and range of the state.
func (s *Station) AzElRange(sv StateVector) (az, el, ρ float64, err error) {
	st, err := s.Topocentric(sv)
	if err != nil {
		return 0, 0, 0, err
	}
	az, el, ρ = azElRange(st)
	return
}

func azElRange(st []float64) (az, el, ρ float64) {
	ρ = norm(st)
	az = normAngle(math.Atan2(-st[1], st[0]))
	el = math.Asin(st[2] / ρ)
	return
}

// Measurement stores a measurement of a station.
type Measurement struct {
	Visible                  bool    // Whether the spacecraft is above the mask.
	Range, RangeRate         float64 // Noisy range and range rate, km and km/s.
	TrueRange, TrueRangeRate float64
	Az, El                   float64
	Epoch                    Epoch
	Station                  *Station
}

// Measure returns the range and range rate of the state seen from the station. The noisy
// values equal the true ones if the station has no noise model.
func (s *Station) Measure(sv StateVector) (Measurement, error) {
	st, err := s.Topocentric(sv)
	if err != nil {
		return Measurement{}, err
	}
	az, el, ρ := azElRange(st)
	ρDot := dot(st[:3], st[3:]) / ρ
	m := Measurement{
		Visible: el >= s.MaskElevation(az),
		Range:   ρ, RangeRate: ρDot,
		TrueRange: ρ, TrueRangeRate: ρDot,
		Az: az, El: el, Epoch: sv.Epoch(), Station: s,
	}
	if s.RangeNoise != nil {
		m.Range += s.RangeNoise.Rand(nil)[0]
		m.RangeRate += s.RateNoise.Rand(nil)[0]
	}
	return m, nil
}

func (s *Station) String() string {
	return fmt.Sprintf("%s (%f,%f); alt = %f km", s.Name, s.Latitude*r2d, s.Longitude*r2d, s.Altitude)
}
