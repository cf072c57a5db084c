package fds

import "math"

// Kepler is the two body model: only the mean anomaly evolves, at the mean motion.
type Kepler struct{}

// Bind returns the two body propagator of the state.
func (Kepler) Bind(sv StateVector) (Propagator, error) {
	mean, err := sv.AsForm(KeplerianMean)
	if err != nil {
		return nil, err
	}
	a := mean.coords[0]
	return &kepler{orig: sv, mean: mean.coords, meanForm: mean.form, n: math.Sqrt(sv.GM() / math.Abs(a*a*a))}, nil
}

type kepler struct {
	orig     StateVector
	mean     Coords
	meanForm *Form
	n        float64
}

func (k *kepler) Name() string { return "kepler" }

func (k *kepler) Propagate(e Epoch) (StateVector, error) {
	c := k.mean
	c[5] += k.n * e.SecondsSince(k.orig.epoch)
	if c[1] < 1 {
		c[5] = normAngle(c[5])
	}
	return k.orig.withCoords(c, k.meanForm, e)
}

func (k *kepler) Rebind(sv StateVector) (Propagator, error) { return Kepler{}.Bind(sv) }
