package fds

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LocalKind is a local orbital frame convention.
type LocalKind string

// Local orbital frames.
const (
	// QSW has x along the position, z along the angular momentum (a.k.a. RSW, LVLH).
	QSW LocalKind = "QSW"
	// TNW has x along the velocity, z along the angular momentum.
	TNW LocalKind = "TNW"
)

// ParseLocalKind validates a local frame name.
func ParseLocalKind(name string) (LocalKind, error) {
	switch k := LocalKind(name); k {
	case QSW, TNW:
		return k, nil
	default:
		return "", &FrameError{Frame: name, Msg: "unknown local orbital frame"}
	}
}

// LocalMatrix returns the matrix whose rows are the local axes expressed in the frame of the
// provided cartesian state, i.e. v_local = M·v.
func LocalMatrix(kind LocalKind, state []float64) *mat.Dense {
	r, v := state[:3], state[3:6]
	w := unitVec(cross(r, v))
	var x []float64
	switch kind {
	case TNW:
		x = unitVec(v)
	default:
		x = unitVec(r)
	}
	y := cross(w, x)
	return mat.NewDense(3, 3, []float64{
		x[0], x[1], x[2],
		y[0], y[1], y[2],
		w[0], w[1], w[2]})
}

// localRotationRate returns the angular velocity of the local frame, in local coordinates.
// QSW turns with the position, h/r², and TNW with the velocity, whose direction turns at
// μh/(r³v²) under the central attraction.
func localRotationRate(kind LocalKind, state []float64, gm float64) []float64 {
	r := norm(state[:3])
	h := norm(cross(state[:3], state[3:6]))
	if kind == TNW {
		v2 := dot(state[3:6], state[3:6])
		return []float64{0, 0, gm * h / (r * r * r * v2)}
	}
	return []float64{0, 0, h / (r * r)}
}

// NewLocalOrbitalFrame returns a frame centred on a moving object. The generator returns the
// cartesian state of the object in the parent frame at any epoch.
func NewLocalOrbitalFrame(name string, kind LocalKind, parent *Frame, generator func(Epoch) ([]float64, error)) *Frame {
	return NewGeneratorFrame(name, parent, parent.center, func(e Epoch) (Transform, error) {
		state, err := generator(e)
		if err != nil {
			return Transform{}, &FrameError{Frame: name, Msg: fmt.Sprintf("generator failed at %s", e), Err: err}
		}
		m := LocalMatrix(kind, state)
		return RotationTransform(m.T(), localRotationRate(kind, state, parent.center.GM())).Translate(state[:6]), nil
	})
}

// LocalFrame registers a local orbital frame following the provided orbit in the graph.
func (g *FrameGraph) LocalFrame(name string, kind LocalKind, orb Orbit, override bool) (*Frame, error) {
	parent := orb.Frame()
	f := NewLocalOrbitalFrame(name, kind, parent, func(e Epoch) ([]float64, error) {
		sv, err := orb.Propagate(e)
		if err != nil {
			return nil, err
		}
		sv, err = sv.InFrame(parent)
		if err != nil {
			return nil, err
		}
		return sv.Cartesian(), nil
	})
	if err := g.Register(f, override); err != nil {
		return nil, err
	}
	return f, nil
}
