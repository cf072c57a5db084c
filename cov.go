package fds

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Covariance is the 6x6 covariance of a state vector. If Local is empty, it is expressed in
// the frame and form of the state it is attached to; otherwise it is cartesian in the local
// orbital frame of that state.
type Covariance struct {
	matrix *mat.SymDense
	local  LocalKind
}

// NewCovariance returns a covariance, checking its dimensions.
func NewCovariance(m mat.Symmetric, local LocalKind) (*Covariance, error) {
	if m.SymmetricDim() != 6 {
		return nil, &FormError{Form: "covariance", Msg: fmt.Sprintf("expected 6x6 matrix, got %d", m.SymmetricDim())}
	}
	if local != "" {
		if _, err := ParseLocalKind(string(local)); err != nil {
			return nil, err
		}
	}
	c := mat.NewSymDense(6, nil)
	c.CopySym(m)
	return &Covariance{matrix: c, local: local}, nil
}

// Matrix returns a copy of the covariance matrix.
func (c *Covariance) Matrix() *mat.SymDense {
	out := mat.NewSymDense(6, nil)
	out.CopySym(c.matrix)
	return out
}

// Local returns the local orbital frame of the covariance, empty if it follows its state.
func (c *Covariance) Local() LocalKind { return c.local }

func (c *Covariance) clone() *Covariance {
	return &Covariance{matrix: c.Matrix(), local: c.local}
}

// transformed returns J·C·Jᵀ.
func (c *Covariance) transformed(J mat.Matrix, local LocalKind) *Covariance {
	var tmp, full mat.Dense
	tmp.Mul(J, c.matrix)
	full.Mul(&tmp, J.T())
	out := mat.NewSymDense(6, nil)
	for i := 0; i < 6; i++ {
		for j := i; j < 6; j++ {
			out.SetSym(i, j, (full.At(i, j)+full.At(j, i))/2)
		}
	}
	return &Covariance{matrix: out, local: local}
}

// chainJacobians returns the Jacobian of the successive transforms, i.e. Jn·...·J2·J1.
func chainJacobians(js ...mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(js[0])
	for _, j := range js[1:] {
		out.Mul(j, out)
	}
	return out
}

func blockDiag(m mat.Matrix) *mat.Dense {
	out := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Set(i, j, m.At(i, j))
			out.Set(i+3, j+3, m.At(i, j))
		}
	}
	return out
}

// formJacobian returns the Jacobian of the form conversion at c, computed by central finite
// differences on coordinates scaled to unity.
func formJacobian(reg *FormRegistry, c Coords, from, to *Form, μ float64) (*mat.Dense, error) {
	J := mat.NewDense(6, 6, nil)
	if from.Name == to.Name {
		for i := 0; i < 6; i++ {
			J.Set(i, i, 1)
		}
		return J, nil
	}
	y0, err := reg.ConvertForms(c, from, to, μ)
	if err != nil {
		return nil, err
	}
	var scale Coords
	x0 := make([]float64, 6)
	for i := range c {
		scale[i] = math.Max(math.Abs(c[i]), 1)
		x0[i] = c[i] / scale[i]
	}
	var convErr error
	fn := func(y, x []float64) {
		var in Coords
		for i := range in {
			in[i] = x[i] * scale[i]
		}
		out, err := reg.ConvertForms(in, from, to, μ)
		if err != nil {
			convErr = err
		}
		for i := range y {
			if to.angles[i] {
				y[i] = y0[i] + normAngleCentered(out[i]-y0[i])
			} else {
				y[i] = out[i]
			}
		}
	}
	fd.Jacobian(J, fn, x0, &fd.JacobianSettings{Formula: fd.Central, Step: 1e-7})
	if convErr != nil {
		return nil, convErr
	}
	for j := 0; j < 6; j++ {
		for i := 0; i < 6; i++ {
			J.Set(i, j, J.At(i, j)/scale[j])
		}
	}
	return J, nil
}

// CovIn returns the covariance of the state expressed in the local orbital frame kind, or in
// the frame and form of the state if kind is empty.
func (sv StateVector) CovIn(kind LocalKind) (*Covariance, error) {
	if sv.cov == nil {
		return nil, &FormError{Form: sv.form.Name, Msg: "no covariance"}
	}
	if sv.cov.local == kind {
		return sv.cov.clone(), nil
	}
	cartForm := mustForm(sv.env, Cartesian)
	cart, err := sv.cartesian()
	if err != nil {
		return nil, err
	}
	// To the cartesian state frame first.
	cov := sv.cov
	if cov.local != "" {
		L := LocalMatrix(cov.local, cart[:])
		cov = cov.transformed(blockDiag(L.T()), "")
	} else {
		J, err := formJacobian(sv.env.Forms, sv.coords, sv.form, cartForm, sv.GM())
		if err != nil {
			return nil, err
		}
		cov = cov.transformed(J, "")
	}
	if kind == "" {
		J, err := formJacobian(sv.env.Forms, cart, cartForm, sv.form, sv.GM())
		if err != nil {
			return nil, err
		}
		return cov.transformed(J, ""), nil
	}
	if _, err := ParseLocalKind(string(kind)); err != nil {
		return nil, err
	}
	return cov.transformed(blockDiag(LocalMatrix(kind, cart[:])), kind), nil
}

// Disperse draws n states from the normal distribution defined by the state and its covariance.
func (sv StateVector) Disperse(n int, src rand.Source) ([]StateVector, error) {
	cov, err := sv.CovIn("")
	if err != nil {
		return nil, err
	}
	normal, ok := distmv.NewNormal(sv.coords[:], cov.matrix, src)
	if !ok {
		return nil, &FormError{Form: sv.form.Name, Msg: "covariance is not positive definite"}
	}
	out := make([]StateVector, 0, n)
	for tries := 0; len(out) < n; tries++ {
		if tries > 100*n {
			return out, &FormError{Form: sv.form.Name, Msg: "too many draws outside the domain of the form"}
		}
		var c Coords
		copy(c[:], normal.Rand(nil))
		s := sv
		s.coords, s.cov, s.infosOK = c, nil, false
		if _, err := s.cartesian(); err != nil {
			// Draws outside the domain of the form (e.g. negative eccentricity) are discarded.
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
