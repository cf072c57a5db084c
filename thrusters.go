package fds

import (
	"fmt"
	"math"
	"time"
)

// g0 is the standard gravity, km/s².
const g0 = 9.80665e-3

// Thruster is an engine of constant thrust and specific impulse.
type Thruster struct {
	Name   string
	Thrust float64 // N
	Isp    float64 // s
}

// Electric thrusters at their nominal operating point.
var (
	// PPS1350 is the Snecma Hall thruster used on SMART-1, at 350 V and 2.5 kW.
	PPS1350 = Thruster{"PPS1350", 89e-3, 1650}
	// HERMeS is based on the NASA & Rocketdyne 12.5 kW demonstrator, at 800 V.
	HERMeS = Thruster{"HERMeS", 0.680, 2960}
)

// MassFlow returns the propellant consumption, kg/s.
func (t Thruster) MassFlow() float64 {
	return t.Thrust / (t.Isp * g0 * 1e3)
}

// DeltaV returns the velocity increment (km/s) given by burning prop kg of propellant from a
// spacecraft of mass kg.
func (t Thruster) DeltaV(mass, prop float64) float64 {
	return t.Isp * g0 * math.Log(mass/(mass-prop))
}

// Burn returns the continuous maneuver of n thrusters firing along dir (in the local frame,
// or in the frame of the state if frame is empty) during d, and the propellant it uses. The
// acceleration is computed with the mean mass of the spacecraft over the burn.
func (t Thruster) Burn(name string, start Epoch, d time.Duration, mass float64, n int, dir [3]float64, frame LocalKind) (*ContinuousManeuver, float64, error) {
	if t.Thrust <= 0 || t.Isp <= 0 || n <= 0 {
		return nil, 0, &ConfigError{Key: "thruster", Msg: fmt.Sprintf("invalid thruster %s×%d (%g N, %g s)", t.Name, n, t.Thrust, t.Isp)}
	}
	dn := norm(dir[:])
	if dn == 0 {
		return nil, 0, &ConfigError{Key: "thruster", Msg: "null thrust direction"}
	}
	prop := float64(n) * t.MassFlow() * math.Abs(d.Seconds())
	if mass <= 0 || prop >= mass {
		return nil, 0, &ConfigError{Key: "mass", Msg: fmt.Sprintf("%g kg cannot burn %g kg of propellant", mass, prop)}
	}
	acc := float64(n) * t.Thrust / (mass - prop/2) / 1e3
	m := &ContinuousManeuver{Name: name, Start: start, Duration: d, Frame: frame}
	for i := range dir {
		m.Accel[i] = acc * dir[i] / dn
	}
	return m, prop, nil
}
