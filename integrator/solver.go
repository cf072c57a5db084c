package integrator

import (
	"math"

	"github.com/pkg/errors"
)

// MaxIter is the maximum number of step size reductions of an adaptive step.
const MaxIter = 10

// Bounds of the step size change after an accepted adaptive step.
const (
	minGrowth = 0.2
	maxGrowth = 5.0
	safety    = 0.9
)

var (
	// ErrNonFinite is returned when the derivative or the new state is not finite.
	ErrNonFinite = errors.New("non finite state")
	// ErrNotConverged is returned when an adaptive step cannot reach the tolerance.
	ErrNotConverged = errors.New("step size did not converge")
)

// Solver integrates an Integrable with an explicit Runge-Kutta method.
type Solver struct {
	Tableau    Tableau
	StepSize   float64    // The (maximum, for adaptive methods) step size.
	Tolerance  float64    // Error tolerance of adaptive methods.
	Integrator Integrable // What is to be integrated.
	// OnReject, if set, is called when an adaptive step of size h is rejected.
	OnReject func(t, h, errEst float64)
	h        float64 // step size proposed by the last accepted adaptive step
}

// NewSolver returns a new solver instance.
func NewSolver(tab Tableau, stepSize, tolerance float64, inte Integrable) *Solver {
	if stepSize <= 0 {
		panic("config StepSize must be positive")
	}
	if tab.Adaptive() && tolerance <= 0 {
		panic("config Tolerance must be positive for adaptive methods")
	}
	return &Solver{Tableau: tab, StepSize: stepSize, Tolerance: tolerance, Integrator: inte}
}

// Step computes one step of size h (negative to integrate backward) from state y at t. For
// adaptive methods the step is shrunk until the estimated error is below the tolerance; the
// step actually used is returned, and the next one is proposed by Next.
func (s *Solver) Step(t float64, y []float64, h float64) ([]float64, float64, error) {
	// A step shorter than proposed, to land on a given time, says nothing of the step size
	// unless it is rejected.
	short := math.Abs(h) < s.Next()
	for iter := 0; ; iter++ {
		next, errEst, err := s.step(t, y, h)
		if err != nil {
			return nil, 0, err
		}
		if !s.Tableau.Adaptive() {
			return next, h, nil
		}
		if errEst <= s.Tolerance {
			if short && iter == 0 {
				return next, h, nil
			}
			growth := maxGrowth
			if errEst > 0 {
				growth = math.Max(minGrowth, math.Min(maxGrowth, safety*math.Pow(s.Tolerance/errEst, 1/float64(s.Tableau.Order))))
			}
			s.h = math.Min(s.StepSize, math.Abs(h)*growth)
			return next, h, nil
		}
		if s.OnReject != nil {
			s.OnReject(t, h, errEst)
		}
		if iter+1 >= MaxIter {
			return nil, 0, errors.Wrapf(ErrNotConverged, "t=%f error=%e tolerance=%e", t, errEst, s.Tolerance)
		}
		h = math.Copysign(math.Min(math.Abs(h), math.Abs(h)*math.Pow(s.Tolerance/(2*errEst), 1/float64(s.Tableau.Order))), h)
	}
}

// Next returns the size of the next step: StepSize for fixed step methods, and the size
// proposed by the last accepted step (at most StepSize) for adaptive ones.
func (s *Solver) Next() float64 {
	if !s.Tableau.Adaptive() || s.h <= 0 {
		return s.StepSize
	}
	return math.Min(s.h, s.StepSize)
}

func (s *Solver) step(t float64, y []float64, h float64) ([]float64, float64, error) {
	tab := s.Tableau
	n := len(y)
	k := make([][]float64, tab.Stages())
	tState := make([]float64, n)
	for i := range k {
		copy(tState, y)
		for j, a := range tab.A[i] {
			if a == 0 {
				continue
			}
			for l := 0; l < n; l++ {
				tState[l] += h * a * k[j][l]
			}
		}
		k[i] = s.Integrator.Func(t+tab.C[i]*h, tState)
		if !finite(k[i]) {
			return nil, 0, errors.Wrapf(ErrNonFinite, "derivative at t=%f", t+tab.C[i]*h)
		}
	}
	next := make([]float64, n)
	var errEst float64
	for l := 0; l < n; l++ {
		var δ, δErr float64
		for i := range k {
			δ += tab.B[i] * k[i][l]
			if tab.Adaptive() {
				δErr += tab.BErr[i] * k[i][l]
			}
		}
		next[l] = y[l] + h*δ
		if tab.Adaptive() {
			// Mixed absolute and relative error.
			errEst = math.Max(errEst, math.Abs(h*(δ-δErr))/(1+math.Abs(next[l])))
		}
	}
	if !finite(next) {
		return nil, 0, errors.Wrapf(ErrNonFinite, "state at t=%f", t+h)
	}
	return next, errEst, nil
}

// Solve integrates from t0 to tf (which may be before t0), landing exactly on tf, unless the
// integrable requests to stop earlier. Returns the number of iterations performed and the
// last time reached, or an error.
func (s *Solver) Solve(t0, tf float64) (uint64, float64, error) {
	dir := 1.0
	if tf < t0 {
		dir = -1
	}
	iterNum := uint64(0)
	t := t0
	for dir*(tf-t) > 0 && !s.Integrator.Stop(t) {
		remaining := tf - t
		h := dir * math.Min(s.Next(), math.Abs(remaining))
		next, used, err := s.Step(t, s.Integrator.GetState(), h)
		if err != nil {
			return iterNum, t, err
		}
		if used == remaining {
			t = tf
		} else {
			t += used
		}
		s.Integrator.SetState(t, next)
		iterNum++ // Don't forget to increment the number of iterations.
	}
	return iterNum, t, nil
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
