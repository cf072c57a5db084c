package fds

import (
	"fmt"
	"math"
	"time"

	"github.com/ChristopherRabotin/fds/integrator"
)

const (
	lambertTimeTol = 1e-6                   // s
	lambertAngTol  = (5e-5 / 180) * math.Pi // rad
	lambertψTol    = 1e-6
	lambertMaxIter = 1000
)

// Lambert solves the Lambert boundary problem with universal variables (single revolution).
// Given the initial and final positions (km) about body and the time of flight, it returns
// the initial and final velocities (km/s). dm is the direction of motion: 1 for the short
// way, -1 for the long way and 0 to pick the prograde one.
func Lambert(ri, rf []float64, tof time.Duration, dm int, body CelestialObject) (vi, vf []float64, err error) {
	if len(ri) != 3 || len(rf) != 3 {
		return nil, nil, &ConfigError{Key: "lambert", Msg: "initial and final positions must be 3-vectors"}
	}
	rI, rF := norm(ri), norm(rf)
	cosΔν := dot(ri, rf) / (rI * rF)
	switch dm {
	case 0:
		dm = 1
		if cross(ri, rf)[2] < 0 {
			dm = -1
		}
	case 1, -1:
	default:
		return nil, nil, &ConfigError{Key: "lambert", Msg: fmt.Sprintf("direction of motion must be 0, -1 or 1, not %d", dm)}
	}
	A := float64(dm) * math.Sqrt(rI*rF*(1+cosΔν))
	if math.Acos(math.Max(-1, math.Min(1, cosΔν))) < lambertAngTol || math.Abs(A) < lambertψTol {
		return nil, nil, &ConfigError{Key: "lambert", Msg: "transfer angle is 0 or π, the plane is undefined"}
	}
	Δt0 := tof.Seconds()
	sμ := math.Sqrt(body.GM())

	ψ, ψup, ψlow := 0.0, 4*math.Pi*math.Pi, -4*math.Pi
	c2, c3 := stumpff(ψ)
	var y float64
	for i := 0; ; i++ {
		if i == lambertMaxIter {
			return nil, nil, fmt.Errorf("lambert after %d iterations: %w", i, integrator.ErrNotConverged)
		}
		y = rI + rF + A*(ψ*c3-1)/math.Sqrt(c2)
		if A > 0 && y < 0 {
			// Move ψ up until y is positive.
			for y < 0 {
				ψlow = ψ
				ψ += 0.1
				c2, c3 = stumpff(ψ)
				y = rI + rF + A*(ψ*c3-1)/math.Sqrt(c2)
			}
		}
		χ := math.Sqrt(y / c2)
		Δt := (χ*χ*χ*c3 + A*math.Sqrt(y)) / sμ
		if math.Abs(Δt-Δt0) < lambertTimeTol {
			break
		}
		if Δt < Δt0 {
			ψlow = ψ
		} else {
			ψup = ψ
		}
		ψ = (ψup + ψlow) / 2
		c2, c3 = stumpff(ψ)
	}
	f := 1 - y/rI
	g := A * math.Sqrt(y/body.GM())
	gDot := 1 - y/rF
	vi, vf = make([]float64, 3), make([]float64, 3)
	for i := 0; i < 3; i++ {
		vi[i] = (rf[i] - f*ri[i]) / g
		vf[i] = (gDot*rf[i] - ri[i]) / g
	}
	return vi, vf, nil
}

// stumpff returns the c2 and c3 Stumpff functions of ψ.
func stumpff(ψ float64) (c2, c3 float64) {
	switch {
	case ψ > lambertψTol:
		s := math.Sqrt(ψ)
		sin, cos := math.Sincos(s)
		return (1 - cos) / ψ, (s - sin) / (s * s * s)
	case ψ < -lambertψTol:
		s := math.Sqrt(-ψ)
		return (1 - math.Cosh(s)) / ψ, (math.Sinh(s) - s) / (s * s * s)
	default:
		return 1 / 2., 1 / 6.
	}
}
