package fds

import (
	"fmt"
	"math"
)

// Listener monitors a scalar function of the state during a propagation. An event occurs
// between two consecutive steps when Check holds for their values. Listeners are stateless:
// the previous values are held by the detector for the duration of a run. A NaN value
// disables the detection, e.g. when the object is not in sight.
type Listener interface {
	// Name is the kind of listener, used as metrics label.
	Name() string
	// Value returns the monitored value.
	Value(sv StateVector) (float64, error)
	// Check returns whether an event occurred between two values.
	Check(prev, cur float64) bool
	// Label describes the event which occurred between the two values.
	Label(prev, cur float64) string
}

// signChange returns whether the two values have different signs, zero being positive.
func signChange(prev, cur float64) bool {
	if math.IsNaN(prev) || math.IsNaN(cur) {
		return false
	}
	return (prev < 0) != (cur < 0)
}

// EpochListener triggers when the provided epoch is passed.
type EpochListener struct {
	Epoch Epoch
}

func (l EpochListener) Name() string { return "epoch" }

func (l EpochListener) Value(sv StateVector) (float64, error) {
	return sv.epoch.SecondsSince(l.Epoch), nil
}

func (l EpochListener) Check(prev, cur float64) bool { return signChange(prev, cur) }

func (l EpochListener) Label(prev, cur float64) string { return l.Epoch.String() }

// LightKind selects the shadow boundary monitored by a LightListener.
type LightKind uint8

const (
	// Umbra is the boundary between umbra and penumbra.
	Umbra LightKind = iota
	// Penumbra is the boundary between penumbra and full light.
	Penumbra
)

// LightListener detects the umbra or penumbra entries and exits, with the central body of the
// state as occulting body.
type LightListener struct {
	Kind LightKind
}

func (l LightListener) Name() string { return "light" }

// Value is positive when the object is out of the monitored shadow region.
func (l LightListener) Value(sv StateVector) (float64, error) {
	center := sv.Center()
	if center.Equals(Sun) {
		return 1, nil
	}
	sun, err := bodyPosition(sv.env.Frames, sv.frame, Sun, sv.epoch)
	if err != nil {
		return 0, err
	}
	a, b, c := shadowGeometry(sv.R(), sun, center.Radius)
	if l.Kind == Penumbra {
		return c - (a + b), nil
	}
	return c - (b - a), nil
}

func (l LightListener) Check(prev, cur float64) bool { return signChange(prev, cur) }

func (l LightListener) Label(prev, cur float64) string {
	name := "Umbra"
	if l.Kind == Penumbra {
		name = "Penumbra"
	}
	if cur < 0 {
		return name + " entry"
	}
	return name + " exit"
}

// TerminatorListener detects the day/night transitions at the nadir of the object.
type TerminatorListener struct{}

func (TerminatorListener) Name() string { return "terminator" }

// Value is the cosine of the angle between the object and the Sun seen from the central body.
func (TerminatorListener) Value(sv StateVector) (float64, error) {
	sun, err := bodyPosition(sv.env.Frames, sv.frame, Sun, sv.epoch)
	if err != nil {
		return 0, err
	}
	r := sv.R()
	return dot(r, sun) / (norm(r) * norm(sun)), nil
}

func (TerminatorListener) Check(prev, cur float64) bool { return signChange(prev, cur) }

func (TerminatorListener) Label(prev, cur float64) string {
	if cur < prev {
		return "Night Terminator"
	}
	return "Day Terminator"
}

// NodeListener detects the crossings of the equatorial plane of the frame of the state.
type NodeListener struct{}

func (NodeListener) Name() string { return "node" }

// Value is the latitude.
func (NodeListener) Value(sv StateVector) (float64, error) {
	r := sv.R()
	return math.Asin(r[2] / norm(r)), nil
}

func (NodeListener) Check(prev, cur float64) bool { return signChange(prev, cur) }

func (NodeListener) Label(prev, cur float64) string {
	if cur > prev {
		return "Asc Node"
	}
	return "Desc Node"
}

// ApsideListener detects the periapsis and apoapsis passages.
type ApsideListener struct{}

func (ApsideListener) Name() string { return "apside" }

// Value is the radial velocity.
func (ApsideListener) Value(sv StateVector) (float64, error) {
	c := sv.Cartesian()
	return dot(c[:3], c[3:]) / norm(c[:3]), nil
}

func (ApsideListener) Check(prev, cur float64) bool { return signChange(prev, cur) }

func (ApsideListener) Label(prev, cur float64) string {
	if cur > prev {
		return "Periapsis"
	}
	return "Apoapsis"
}

// AnomalyKind is the anomaly monitored by an AnomalyListener.
type AnomalyKind string

// Anomalies.
const (
	TrueAnomaly       AnomalyKind = "true"
	MeanAnomaly       AnomalyKind = "mean"
	EccentricAnomaly  AnomalyKind = "eccentric"
	ArgOfLatitude     AnomalyKind = "aol"
	MeanArgOfLatitude AnomalyKind = "maol"
)

var anomalyForms = map[AnomalyKind]struct {
	form  string
	index int
	label string
}{
	TrueAnomaly:       {Keplerian, 5, "True Anomaly"},
	MeanAnomaly:       {KeplerianMean, 5, "Mean Anomaly"},
	EccentricAnomaly:  {KeplerianEccentric, 5, "Eccentric Anomaly"},
	ArgOfLatitude:     {KeplerianCircular, 5, "Argument of Latitude"},
	MeanArgOfLatitude: {KeplerianMeanCircular, 5, "Mean Argument of Latitude"},
}

// AnomalyListener detects the passage at a given anomaly (radians).
type AnomalyListener struct {
	Kind  AnomalyKind
	Angle float64
}

func (l AnomalyListener) Name() string { return "anomaly" }

// Value is the difference between the anomaly of the state and the monitored one, in [-π, π).
func (l AnomalyListener) Value(sv StateVector) (float64, error) {
	a, ok := anomalyForms[l.Kind]
	if !ok {
		return 0, &FormError{Form: string(l.Kind), Msg: "unknown anomaly", Err: ErrUnknownForm}
	}
	c, err := sv.AsForm(a.form)
	if err != nil {
		return 0, err
	}
	return normAngleCentered(c.coords[a.index] - l.Angle), nil
}

// Check ignores the wrap around at the opposite angle.
func (l AnomalyListener) Check(prev, cur float64) bool {
	return math.Abs(cur) < 2 && math.Abs(prev) < 2 && signChange(prev, cur)
}

func (l AnomalyListener) Label(prev, cur float64) string {
	return fmt.Sprintf("%s = %.2f", anomalyForms[l.Kind].label, Rad2deg(l.Angle))
}

// topocentric returns the elevation, elevation rate, azimuth and range rate of the state seen
// from the station frame f.
func topocentric(sv StateVector, f *Frame) (el, elDot, az, ρDot float64, err error) {
	local, err := sv.InFrame(f)
	if err != nil {
		return
	}
	st := local.Cartesian()
	var ρ float64
	az, el, ρ = azElRange(st)
	ρDot = dot(st[:3], st[3:]) / ρ
	h := math.Hypot(st[0], st[1])
	elDot = (st[5]*ρ - st[2]*ρDot) / (ρ * h)
	return
}

// StationSignalListener detects the AOS and LOS of a station, at a given elevation (radians).
type StationSignalListener struct {
	Station   *Station
	Elevation float64
}

func (l StationSignalListener) Name() string { return "signal" }

func (l StationSignalListener) Value(sv StateVector) (float64, error) {
	el, _, _, _, err := topocentric(sv, l.Station.frame)
	return el - l.Elevation, err
}

func (l StationSignalListener) Check(prev, cur float64) bool { return signChange(prev, cur) }

func (l StationSignalListener) Label(prev, cur float64) string {
	if cur > prev {
		return "AOS"
	}
	return "LOS"
}

// StationMaskListener detects the passages above and below the elevation mask of a station.
// Below the horizon, the horizon is the limit.
type StationMaskListener struct {
	Station *Station
}

func (l StationMaskListener) Name() string { return "mask" }

func (l StationMaskListener) Value(sv StateVector) (float64, error) {
	el, _, az, _, err := topocentric(sv, l.Station.frame)
	return math.Min(el-l.Station.MaskElevation(az), el), err
}

func (l StationMaskListener) Check(prev, cur float64) bool { return signChange(prev, cur) }

func (l StationMaskListener) Label(prev, cur float64) string {
	if cur > prev {
		return "AOS Mask"
	}
	return "LOS Mask"
}

// StationMaxListener detects the maximum elevation of each pass over a station.
type StationMaxListener struct {
	Station *Station
}

func (l StationMaxListener) Name() string { return "max" }

// Value is the elevation rate, infinite below the horizon.
func (l StationMaxListener) Value(sv StateVector) (float64, error) {
	el, elDot, _, _, err := topocentric(sv, l.Station.frame)
	if el <= 0 {
		return math.Inf(1), err
	}
	return elDot, err
}

func (l StationMaxListener) Check(prev, cur float64) bool { return prev > 0 && cur <= 0 }

func (l StationMaxListener) Label(prev, cur float64) string { return "MAX" }

// RadialVelocityListener detects the zero radial velocity (zero Doppler) in a frame, usually a
// station frame. If Sight is set, only the crossings above the horizon are detected.
type RadialVelocityListener struct {
	Frame *Frame
	Sight bool
}

func (l RadialVelocityListener) Name() string { return "radial_velocity" }

func (l RadialVelocityListener) Value(sv StateVector) (float64, error) {
	el, _, _, ρDot, err := topocentric(sv, l.Frame)
	if l.Sight && el <= 0 {
		return math.NaN(), err
	}
	return ρDot, err
}

func (l RadialVelocityListener) Check(prev, cur float64) bool { return signChange(prev, cur) }

func (l RadialVelocityListener) Label(prev, cur float64) string { return "Zero Doppler" }

// StationListeners returns the listeners of AOS/LOS, maximum elevation and, if the station
// has a mask, of the mask crossings.
func StationListeners(stations ...*Station) []Listener {
	var out []Listener
	for _, s := range stations {
		out = append(out, StationSignalListener{Station: s}, StationMaxListener{Station: s})
		if len(s.Mask) > 0 {
			out = append(out, StationMaskListener{Station: s})
		}
	}
	return out
}
