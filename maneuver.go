package fds

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Maneuver is a change of trajectory applied by numerical propagators. Maneuvers are attached
// to the state to propagate (see StateVector.WithManeuvers).
type Maneuver interface {
	fmt.Stringer
	isManeuver()
}

// ImpulsiveManeuver is an instantaneous velocity increment, applied the first time the
// trigger condition occurs during a propagation. When propagating backward, the increment is
// removed.
type ImpulsiveManeuver struct {
	Name    string
	Trigger Listener
	DV      [3]float64 // km/s
	Frame   LocalKind  // Local orbital frame of DV, empty for the frame of the state.
}

// AtEpoch returns the trigger of a maneuver at a given epoch.
func AtEpoch(e Epoch) Listener { return EpochListener{Epoch: e} }

// AtAnomaly returns the trigger of a maneuver at a given anomaly.
func AtAnomaly(kind AnomalyKind, angle float64) Listener {
	return AnomalyListener{Kind: kind, Angle: angle}
}

// AtApside returns the trigger of a maneuver at the periapsis (or apoapsis if peri is false).
func AtApside(peri bool) Listener { return apsideTrigger{peri: peri} }

// AtNode returns the trigger of a maneuver at the ascending (or descending if asc is false) node.
func AtNode(asc bool) Listener { return nodeTrigger{asc: asc} }

type apsideTrigger struct {
	ApsideListener
	peri bool
}

func (t apsideTrigger) Check(prev, cur float64) bool {
	if t.peri {
		return prev < 0 && cur >= 0
	}
	return prev > 0 && cur <= 0
}

type nodeTrigger struct {
	NodeListener
	asc bool
}

func (t nodeTrigger) Check(prev, cur float64) bool {
	if t.asc {
		return prev < 0 && cur >= 0
	}
	return prev > 0 && cur <= 0
}

func (*ImpulsiveManeuver) isManeuver() {}

func (m *ImpulsiveManeuver) String() string {
	frame := string(m.Frame)
	if frame == "" {
		frame = "inertial"
	}
	return fmt.Sprintf("Maneuver %s ΔV=%v km/s (%s)", m.Name, m.DV, frame)
}

// Epoch returns the epoch of the maneuver if it is triggered by an epoch.
func (m *ImpulsiveManeuver) Epoch() (Epoch, bool) {
	if l, ok := m.Trigger.(EpochListener); ok {
		return l.Epoch, true
	}
	return Epoch{}, false
}

// DeltaV returns the velocity increment expressed in the frame of the cartesian state.
func (m *ImpulsiveManeuver) DeltaV(state []float64) []float64 {
	return toStateFrame(m.Frame, state, m.DV)
}

// ContinuousManeuver is a constant acceleration over a time span.
type ContinuousManeuver struct {
	Name     string
	Start    Epoch
	Duration time.Duration
	Accel    [3]float64 // km/s²
	Frame    LocalKind  // Local orbital frame of Accel, empty for the frame of the state.
}

func (*ContinuousManeuver) isManeuver() {}

func (m *ContinuousManeuver) String() string {
	return fmt.Sprintf("Maneuver %s a=%v km/s² from %s for %s", m.Name, m.Accel, m.Start, m.Duration)
}

// Stop returns the end of the maneuver.
func (m *ContinuousManeuver) Stop() Epoch { return m.Start.Add(m.Duration) }

// Active returns whether the maneuver thrusts at the epoch.
func (m *ContinuousManeuver) Active(e Epoch) bool {
	return !e.Before(m.Start) && e.Before(m.Stop())
}

// Acceleration returns the acceleration expressed in the frame of the cartesian state.
func (m *ContinuousManeuver) Acceleration(state []float64) []float64 {
	return toStateFrame(m.Frame, state, m.Accel)
}

// toStateFrame rotates a local vector into the frame of the state.
func toStateFrame(kind LocalKind, state []float64, local [3]float64) []float64 {
	if kind == "" {
		return []float64{local[0], local[1], local[2]}
	}
	var out mat.VecDense
	out.MulVec(LocalMatrix(kind, state).T(), mat.NewVecDense(3, []float64{local[0], local[1], local[2]}))
	return []float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}
