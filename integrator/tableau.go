package integrator

// Tableau is the Butcher tableau of an explicit Runge-Kutta method. If BErr is set, the
// method is embedded: BErr are the weights of the lower order solution used to estimate the
// error, and the step size is adapted.
type Tableau struct {
	Name  string
	Order int
	C     []float64
	A     [][]float64
	B     []float64
	BErr  []float64
}

// Adaptive returns whether the tableau embeds an error estimate.
func (t Tableau) Adaptive() bool { return len(t.BErr) > 0 }

// Stages returns the number of stages.
func (t Tableau) Stages() int { return len(t.B) }

// Euler is the explicit Euler method.
var Euler = Tableau{
	Name:  "euler",
	Order: 1,
	C:     []float64{0},
	A:     [][]float64{{}},
	B:     []float64{1},
}

// RK4 is the classical fourth order Runge-Kutta method.
var RK4 = Tableau{
	Name:  "rk4",
	Order: 4,
	C:     []float64{0, 1 / 2., 1 / 2., 1},
	A: [][]float64{
		{},
		{1 / 2.},
		{0, 1 / 2.},
		{0, 0, 1},
	},
	B: []float64{1 / 6., 1 / 3., 1 / 3., 1 / 6.},
}

// RKF45 is the Runge-Kutta-Fehlberg method, propagating the fifth order solution.
var RKF45 = Tableau{
	Name:  "rkf45",
	Order: 5,
	C:     []float64{0, 1 / 4., 3 / 8., 12 / 13., 1, 1 / 2.},
	A: [][]float64{
		{},
		{1 / 4.},
		{3 / 32., 9 / 32.},
		{1932 / 2197., -7200 / 2197., 7296 / 2197.},
		{439 / 216., -8, 3680 / 513., -845 / 4104.},
		{-8 / 27., 2, -3544 / 2565., 1859 / 4104., -11 / 40.},
	},
	B:    []float64{16 / 135., 0, 6656 / 12825., 28561 / 56430., -9 / 50., 2 / 55.},
	BErr: []float64{25 / 216., 0, 1408 / 2565., 2197 / 4104., -1 / 5., 0},
}

// DOPRI54 is the Dormand-Prince method, propagating the fifth order solution.
var DOPRI54 = Tableau{
	Name:  "dopri54",
	Order: 5,
	C:     []float64{0, 1 / 5., 3 / 10., 4 / 5., 8 / 9., 1, 1},
	A: [][]float64{
		{},
		{1 / 5.},
		{3 / 40., 9 / 40.},
		{44 / 45., -56 / 15., 32 / 9.},
		{19372 / 6561., -25360 / 2187., 64448 / 6561., -212 / 729.},
		{9017 / 3168., -355 / 33., 46732 / 5247., 49 / 176., -5103 / 18656.},
		{35 / 384., 0, 500 / 1113., 125 / 192., -2187 / 6784., 11 / 84.},
	},
	B:    []float64{35 / 384., 0, 500 / 1113., 125 / 192., -2187 / 6784., 11 / 84., 0},
	BErr: []float64{5179 / 57600., 0, 7571 / 16695., 393 / 640., -92097 / 339200., 187 / 2100., 1 / 40.},
}

// ByName returns the tableau of that name (euler, rk4, rkf45, dopri54).
func ByName(name string) (Tableau, bool) {
	for _, t := range []Tableau{Euler, RK4, RKF45, DOPRI54} {
		if t.Name == name {
			return t, true
		}
	}
	return Tableau{}, false
}
