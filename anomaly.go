package fds

import "math"

const keplerMaxIter = 100

// EccentricFromMean solves Kepler's equation M = E - e·sin(E) for elliptic orbits, or
// M = e·sinh(H) - H for hyperbolic ones.
func EccentricFromMean(M, e float64) float64 {
	if e < 1 {
		M = normAngleCentered(M)
		E := M
		if e > 0.8 {
			E = math.Pi * sign(M)
		}
		for i := 0; i < keplerMaxIter; i++ {
			sE, cE := math.Sincos(E)
			δ := (E - e*sE - M) / (1 - e*cE)
			E -= δ
			if math.Abs(δ) < 1e-15 {
				break
			}
		}
		return normAngle(E)
	}
	H := math.Asinh(M / e)
	for i := 0; i < keplerMaxIter; i++ {
		δ := (e*math.Sinh(H) - H - M) / (e*math.Cosh(H) - 1)
		H -= δ
		if math.Abs(δ) < 1e-15*math.Max(1, math.Abs(H)) {
			break
		}
	}
	return H
}

// MeanFromEccentric returns the mean anomaly from the eccentric (or hyperbolic) anomaly.
func MeanFromEccentric(E, e float64) float64 {
	if e < 1 {
		return normAngle(E - e*math.Sin(E))
	}
	return e*math.Sinh(E) - E
}

// TrueFromEccentric returns the true anomaly from the eccentric (or hyperbolic) anomaly.
func TrueFromEccentric(E, e float64) float64 {
	if e < 1 {
		sE, cE := math.Sincos(E / 2)
		return normAngle(2 * math.Atan2(math.Sqrt(1+e)*sE, math.Sqrt(1-e)*cE))
	}
	return normAngle(2 * math.Atan(math.Sqrt((e+1)/(e-1))*math.Tanh(E/2)))
}

// EccentricFromTrue returns the eccentric (or hyperbolic) anomaly from the true anomaly.
func EccentricFromTrue(ν, e float64) float64 {
	if e < 1 {
		sν, cν := math.Sincos(ν / 2)
		return normAngle(2 * math.Atan2(math.Sqrt(1-e)*sν, math.Sqrt(1+e)*cν))
	}
	return 2 * math.Atanh(math.Sqrt((e-1)/(e+1))*math.Tan(normAngleCentered(ν)/2))
}

// MeanFromTrue returns the mean anomaly from the true anomaly.
func MeanFromTrue(ν, e float64) float64 {
	return MeanFromEccentric(EccentricFromTrue(ν, e), e)
}

// TrueFromMean returns the true anomaly from the mean anomaly.
func TrueFromMean(M, e float64) float64 {
	return TrueFromEccentric(EccentricFromMean(M, e), e)
}
