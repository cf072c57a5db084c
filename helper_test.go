package fds

import (
	"fmt"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

const angleε = 1e-10

func assertPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("code did not panic")
		}
	}()
	f()
}

func vectorsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := len(a) - 1; i >= 0; i-- {
		if !scalar.EqualWithinAbsOrRel(a[i], b[i], 1e-9, 1e-6) {
			return false
		}
	}
	return true
}

//anglesEqual returns whether two angles in Radians are equal.
func anglesEqual(a, b float64) (bool, error) {
	diff := math.Mod(math.Abs(a-b), 2*math.Pi)
	if diff < angleε || 2*math.Pi-diff < angleε {
		return true, nil
	}
	return false, fmt.Errorf("difference of %3.10f degrees", math.Abs(Rad2deg(diff)))
}

// testEpoch is the epoch of most tests.
var testEpoch = NewEpoch(2018, 4, 5, 16, 50, 0, UTC)

// leo returns an inclined, slightly eccentric low Earth orbit in EME2000.
func leo(t *testing.T, env *Env) StateVector {
	t.Helper()
	sv, err := env.NewStateVector(Coords{7000, 0.01, Deg2rad(51.6), Deg2rad(30), Deg2rad(45), Deg2rad(10)}, testEpoch, EME2000, Keplerian)
	if err != nil {
		t.Fatal(err)
	}
	if sv, err = sv.AsForm(Cartesian); err != nil {
		t.Fatal(err)
	}
	return sv
}

// issTLE returns the mean elements of the ISS element set of 2018-05-04, in TEME.
func issTLE(t *testing.T, env *Env) StateVector {
	t.Helper()
	// 1 25544U 98067A   18124.55610684  .00001524  00000-0  30197-4 0  9997
	// 2 25544  51.6421 236.2139 0003381  47.8509  47.6767 15.54198229111731
	e := EpochFromMJDSeconds(58242, 0.55610684*SecondsPerDay, UTC)
	n := 15.54198229 * 2 * math.Pi / SecondsPerDay
	sv, err := env.NewStateVector(Coords{Deg2rad(51.6421), Deg2rad(236.2139), 0.0003381, Deg2rad(47.8509), Deg2rad(47.6767), n}, e, TEME, TLEForm)
	if err != nil {
		t.Fatal(err)
	}
	sv.Name, sv.ID = "ISS (ZARYA)", "25544"
	return sv
}

// issBStar is the drag term of the ISS element set.
const issBStar = 0.30197e-4
