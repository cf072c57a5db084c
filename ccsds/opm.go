package ccsds

import (
	"io"
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/ChristopherRabotin/fds"
)

// WriteOPM writes the state as an orbit parameter message: its cartesian coordinates, its
// Keplerian elements if defined, its covariance and its maneuvers at fixed epochs.
func WriteOPM(w io.Writer, sv fds.StateVector, opts Options) error {
	cart, err := sv.AsForm(fds.Cartesian)
	if err != nil {
		return err
	}
	k := &kvnWriter{w: w}
	k.header("OPM", opts)
	k.meta(sv)
	c := cart.Coords()
	k.printf("COMMENT  State Vector\n")
	k.kv("EPOCH", sv.Epoch().ISO())
	for i, key := range covKeys {
		if i < 3 {
			k.kvUnit(key, c[i], 6, "km")
		} else {
			k.kvUnit(key, c[i], 9, "km/s")
		}
	}
	if kep, err := sv.AsForm(fds.Keplerian); err == nil {
		kc := kep.Coords()
		k.printf("\nCOMMENT  Keplerian elements\n")
		k.kvUnit("SEMI_MAJOR_AXIS", kc[0], 6, "km")
		k.printf("%-20s = % .9f\n", "ECCENTRICITY", kc[1])
		for i, key := range []string{"INCLINATION", "RA_OF_ASC_NODE", "ARG_OF_PERICENTER", "TRUE_ANOMALY"} {
			k.kvUnit(key, fds.Rad2deg(kc[2+i]), 6, "deg")
		}
		k.kvUnit("GM", sv.GM(), 4, "km**3/s**2")
	}
	if cov := cart.Cov(); cov != nil {
		k.printf("\n")
		if name, ok := localNames[cov.Local()]; ok {
			k.kv("COV_REF_FRAME", name)
		}
		writeCov(k, cov.Matrix(), func(i, j int) string { return "C" + covKeys[i] + "_" + covKeys[j] })
	}
	for _, m := range sv.Maneuvers() {
		writeManeuver(k, m, sv.Frame().Name())
	}
	return errors.Wrap(k.err, "writing OPM")
}

func writeCov(k *kvnWriter, m mat.Symmetric, key func(i, j int) string) {
	for i := 0; i < 6; i++ {
		for j := 0; j <= i; j++ {
			k.printf("%-20s = % .16e\n", key(i, j), m.At(i, j))
		}
	}
}

// writeManeuver writes the maneuvers whose epoch is known; the others are skipped.
func writeManeuver(k *kvnWriter, m fds.Maneuver, frame string) {
	var (
		start    fds.Epoch
		duration time.Duration
		dv       [3]float64
		local    fds.LocalKind
		name     string
	)
	switch m := m.(type) {
	case *fds.ImpulsiveManeuver:
		e, ok := m.Epoch()
		if !ok {
			return
		}
		start, dv, local, name = e, m.DV, m.Frame, m.Name
	case *fds.ContinuousManeuver:
		start, duration, local, name = m.Start, m.Duration, m.Frame, m.Name
		for i := range dv {
			dv[i] = m.Accel[i] * duration.Seconds()
		}
	default:
		return
	}
	if n, ok := localNames[local]; ok {
		frame = n
	}
	k.printf("\n")
	if name != "" {
		k.printf("COMMENT  %s\n", name)
	}
	k.kv("MAN_EPOCH_IGNITION", start.ISO())
	k.printf("%-20s = %.3f [s]\n", "MAN_DURATION", duration.Seconds())
	k.printf("%-20s = %.3f [kg]\n", "MAN_DELTA_MASS", 0.)
	k.kv("MAN_REF_FRAME", frame)
	for i, v := range dv {
		k.kvUnit("MAN_DV_"+string(rune('1'+i)), v, 9, "km/s")
	}
}

// ReadOPM reads an orbit parameter message. The state is cartesian, with the covariance and
// the maneuvers of the message attached.
func ReadOPM(r io.Reader, env *fds.Env) (fds.StateVector, error) {
	fields, err := readKVN(r)
	if err != nil {
		return fds.StateVector{}, err
	}
	sv, err := parseOPM(fields, env)
	return sv, errors.Wrap(err, "OPM")
}

func parseOPM(fields []field, env *fds.Env) (fds.StateVector, error) {
	var (
		h       header
		values  = map[string]field{}
		mans    []map[string]field
		comment string
	)
	for _, f := range fields {
		if ok, err := h.set(f); err != nil {
			return fds.StateVector{}, err
		} else if ok {
			continue
		}
		switch {
		case f.key == "COMMENT":
			comment = f.value
		case f.key == "MAN_EPOCH_IGNITION":
			m := map[string]field{f.key: f}
			if comment != "" {
				m["COMMENT"] = field{value: comment}
			}
			mans = append(mans, m)
		case len(f.key) > 4 && f.key[:4] == "MAN_":
			if len(mans) == 0 {
				return fds.StateVector{}, &ParseError{Line: f.line, Key: f.key, Msg: "maneuver parameter before MAN_EPOCH_IGNITION"}
			}
			mans[len(mans)-1][f.key] = f
		case f.key != "":
			values[f.key] = f
		}
		if f.key != "COMMENT" {
			comment = ""
		}
	}
	frame, err := h.frameName()
	if err != nil {
		return fds.StateVector{}, err
	}
	ef, ok := values["EPOCH"]
	if !ok {
		return fds.StateVector{}, &ParseError{Key: "EPOCH", Msg: "missing mandatory parameter"}
	}
	epoch, err := h.epoch(ef)
	if err != nil {
		return fds.StateVector{}, err
	}
	var c fds.Coords
	for i, key := range covKeys {
		f, ok := values[key]
		if !ok {
			return fds.StateVector{}, &ParseError{Key: key, Msg: "missing mandatory parameter"}
		}
		if c[i], err = f.float(); err != nil {
			return fds.StateVector{}, err
		}
	}
	sv, err := env.NewStateVector(c, epoch, frame, fds.Cartesian)
	if err != nil {
		return fds.StateVector{}, err
	}
	h.apply(&sv)

	if _, ok := values["CX_X"]; ok {
		cov, err := parseCov(values, func(i, j int) string { return "C" + covKeys[i] + "_" + covKeys[j] })
		if err != nil {
			return fds.StateVector{}, err
		}
		sv = sv.WithCov(cov)
	}
	for _, m := range mans {
		man, err := parseManeuver(m, &h)
		if err != nil {
			return fds.StateVector{}, err
		}
		sv = sv.WithManeuvers(man)
	}
	return sv, nil
}

func parseCov(values map[string]field, key func(i, j int) string) (*fds.Covariance, error) {
	var local fds.LocalKind
	if f, ok := values["COV_REF_FRAME"]; ok {
		if local, ok = parseLocal(f.value); !ok {
			return nil, &ParseError{Line: f.line, Key: f.key, Msg: "only RSW and TNW covariance frames are supported"}
		}
	}
	m := mat.NewSymDense(6, nil)
	for i := 0; i < 6; i++ {
		for j := 0; j <= i; j++ {
			f, ok := values[key(i, j)]
			if !ok {
				return nil, &ParseError{Key: key(i, j), Msg: "missing covariance term"}
			}
			v, err := f.float()
			if err != nil {
				return nil, err
			}
			m.SetSym(i, j, v)
		}
	}
	return fds.NewCovariance(m, local)
}

func parseManeuver(m map[string]field, h *header) (fds.Maneuver, error) {
	start, err := h.epoch(m["MAN_EPOCH_IGNITION"])
	if err != nil {
		return nil, err
	}
	var duration float64
	if f, ok := m["MAN_DURATION"]; ok {
		if duration, err = f.float(); err != nil {
			return nil, err
		}
	}
	var local fds.LocalKind
	if f, ok := m["MAN_REF_FRAME"]; ok {
		local, _ = parseLocal(f.value)
	}
	var dv [3]float64
	for i := range dv {
		key := "MAN_DV_" + string(rune('1'+i))
		f, ok := m[key]
		if !ok {
			return nil, &ParseError{Key: key, Msg: "missing maneuver parameter"}
		}
		if dv[i], err = f.float(); err != nil {
			return nil, err
		}
	}
	name := m["COMMENT"].value
	if duration == 0 {
		return &fds.ImpulsiveManeuver{Name: name, Trigger: fds.AtEpoch(start), DV: dv, Frame: local}, nil
	}
	d := time.Duration(math.Round(duration * float64(time.Second)))
	var acc [3]float64
	for i := range dv {
		acc[i] = dv[i] / duration
	}
	return &fds.ContinuousManeuver{Name: name, Start: start, Duration: d, Accel: acc, Frame: local}, nil
}
