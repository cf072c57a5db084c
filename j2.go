package fds

import "math"

// J2 is the analytical model of the secular effects of the central body oblateness on the
// node, argument of pericenter and mean anomaly. The J2 of the central body of the state is
// used.
type J2 struct{}

// J2Rates returns the secular drift rates (rad/s) of the node, argument of pericenter and mean
// anomaly (the latter including the mean motion) of an elliptic orbit.
func J2Rates(a, e, i float64, body CelestialObject) (dΩ, dω, dM float64) {
	n := math.Sqrt(body.GM() / (a * a * a))
	p := 1 - e*e
	com := n * body.Radius * body.Radius * body.J(2) / (a * a * p * p)
	ci, si := math.Cos(i), math.Sin(i)
	dΩ = -1.5 * com * ci
	dω = 0.75 * com * (4 - 5*si*si)
	dM = 0.75*com*math.Sqrt(p)*(2-3*si*si) + n
	return
}

// Bind returns the J2 propagator of the state, which must be elliptic.
func (J2) Bind(sv StateVector) (Propagator, error) {
	mean, err := sv.AsForm(KeplerianMean)
	if err != nil {
		return nil, err
	}
	c := mean.coords
	if c[1] >= 1 {
		return nil, &FormError{Form: KeplerianMean, Msg: "J2 model requires an elliptic orbit"}
	}
	dΩ, dω, dM := J2Rates(c[0], c[1], c[2], sv.Center())
	return &j2{orig: sv, mean: c, meanForm: mean.form, rates: [3]float64{dΩ, dω, dM}}, nil
}

type j2 struct {
	orig     StateVector
	mean     Coords
	meanForm *Form
	rates    [3]float64
}

func (p *j2) Name() string { return "j2" }

func (p *j2) Propagate(e Epoch) (StateVector, error) {
	dt := e.SecondsSince(p.orig.epoch)
	c := p.mean
	for k := 0; k < 3; k++ {
		c[3+k] = normAngle(c[3+k] + p.rates[k]*dt)
	}
	return p.orig.withCoords(c, p.meanForm, e)
}

func (p *j2) Rebind(sv StateVector) (Propagator, error) { return J2{}.Bind(sv) }
