package ccsds

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ChristopherRabotin/fds"
)

// WriteOEM writes the ephemerides as the segments of an orbit ephemeris message, with the
// covariances of the states which have one.
func WriteOEM(w io.Writer, opts Options, ephems ...*fds.Ephemeris) error {
	if len(ephems) == 0 {
		return errors.New("no ephemeris to write")
	}
	k := &kvnWriter{w: w}
	k.header("OEM", opts)
	for _, eph := range ephems {
		cart, err := eph.AsForm(fds.Cartesian)
		if err != nil {
			return err
		}
		states := cart.States()
		o := eph.Options()
		k.meta(states[0],
			[2]string{"START_TIME", eph.Start().ISO()},
			[2]string{"STOP_TIME", eph.Stop().ISO()},
			[2]string{"INTERPOLATION", strings.ToUpper(o.Method.String())},
			[2]string{"INTERPOLATION_DEGREE", strconv.Itoa(o.Order - 1)},
		)
		var withCov []fds.StateVector
		for _, sv := range states {
			c := sv.Coords()
			k.printf("%s % .6f % .6f % .6f % .9f % .9f % .9f\n", sv.Epoch().ISO(), c[0], c[1], c[2], c[3], c[4], c[5])
			if sv.Cov() != nil {
				withCov = append(withCov, sv)
			}
		}
		k.printf("\n")
		if len(withCov) == 0 {
			continue
		}
		k.printf("COVARIANCE_START\n")
		for _, sv := range withCov {
			k.kv("EPOCH", sv.Epoch().ISO())
			if name, ok := localNames[sv.Cov().Local()]; ok {
				k.kv("COV_REF_FRAME", name)
			}
			m := sv.Cov().Matrix()
			for i := 0; i < 6; i++ {
				row := make([]string, i+1)
				for j := range row {
					row[j] = fmt.Sprintf("% .16e", m.At(i, j))
				}
				k.printf("%s\n", strings.Join(row, " "))
			}
		}
		k.printf("COVARIANCE_STOP\n\n")
	}
	return errors.Wrap(k.err, "writing OEM")
}

// segment is an OEM segment being read.
type segment struct {
	h      header
	meta   map[string]field
	states []fds.StateVector
	index  map[string]int // Epoch (ISO) to index in states.
}

// ReadOEM reads the segments of an orbit ephemeris message, each one as an ephemeris using the
// interpolation method and degree of its metadata (Lagrange of degree 7 if absent).
func ReadOEM(r io.Reader, env *fds.Env) ([]*fds.Ephemeris, error) {
	fields, err := readKVN(r)
	if err != nil {
		return nil, err
	}
	out, err := parseOEM(fields, env)
	return out, errors.Wrap(err, "OEM")
}

func parseOEM(fields []field, env *fds.Env) ([]*fds.Ephemeris, error) {
	var (
		segs  []*segment
		cur   *segment
		mode  string
		frame string
		cov   map[string]field
		row   int
		covAt fds.Epoch
	)
	for _, f := range fields {
		if f.key == "COMMENT" {
			continue
		}
		switch {
		case f.key == "" && f.value == "META_START":
			cur = &segment{meta: map[string]field{}, index: map[string]int{}}
			segs = append(segs, cur)
			mode = "meta"
			continue
		case f.key == "" && f.value == "META_STOP":
			if cur == nil {
				return nil, &ParseError{Line: f.line, Msg: "META_STOP without META_START"}
			}
			var err error
			if frame, err = cur.h.frameName(); err != nil {
				return nil, err
			}
			mode = "data"
			continue
		case f.key == "" && f.value == "COVARIANCE_START":
			if cur == nil {
				return nil, &ParseError{Line: f.line, Msg: "COVARIANCE_START outside of a segment"}
			}
			mode = "covariance"
			continue
		case f.key == "" && f.value == "COVARIANCE_STOP":
			mode = ""
			continue
		}
		switch mode {
		case "meta":
			if ok, err := cur.h.set(f); err != nil {
				return nil, err
			} else if !ok {
				cur.meta[f.key] = f
			}
		case "data":
			if f.key != "" {
				continue
			}
			sv, err := parseDataLine(f, &cur.h, frame, env)
			if err != nil {
				return nil, err
			}
			cur.index[sv.Epoch().ISO()] = len(cur.states)
			cur.states = append(cur.states, sv)
		case "covariance":
			switch f.key {
			case "EPOCH":
				var err error
				if covAt, err = cur.h.epoch(f); err != nil {
					return nil, err
				}
				cov, row = map[string]field{}, 0
			case "COV_REF_FRAME":
				if cov == nil {
					return nil, &ParseError{Line: f.line, Msg: "covariance without EPOCH"}
				}
				cov[f.key] = f
			case "":
				if cov == nil {
					return nil, &ParseError{Line: f.line, Msg: "covariance without EPOCH"}
				}
				vals := strings.Fields(f.value)
				if len(vals) != row+1 {
					return nil, &ParseError{Line: f.line, Msg: fmt.Sprintf("expected %d covariance terms, got %d", row+1, len(vals))}
				}
				for j, v := range vals {
					cov[covKey(row, j)] = field{line: f.line, key: covKey(row, j), value: v}
				}
				if row++; row == 6 {
					i, ok := cur.index[covAt.ISO()]
					if !ok {
						return nil, &ParseError{Line: f.line, Msg: "covariance epoch matches no state"}
					}
					c, err := parseCov(cov, covKey)
					if err != nil {
						return nil, err
					}
					cur.states[i] = cur.states[i].WithCov(c)
					cov = nil
				}
			}
		}
	}
	if len(segs) == 0 {
		return nil, &ParseError{Msg: "no segment"}
	}
	out := make([]*fds.Ephemeris, len(segs))
	for i, s := range segs {
		opts, err := s.options()
		if err != nil {
			return nil, err
		}
		if out[i], err = fds.NewEphemeris(s.states, opts); err != nil {
			return nil, errors.Wrapf(err, "segment %d", i+1)
		}
	}
	return out, nil
}

func covKey(i, j int) string { return "C" + covKeys[i] + "_" + covKeys[j] }

func (s *segment) options() (fds.EphemerisOptions, error) {
	var opts fds.EphemerisOptions
	if f, ok := s.meta["INTERPOLATION"]; ok && strings.EqualFold(f.value, "linear") {
		opts.Method = fds.Linear
	}
	opts.Order = 8
	if f, ok := s.meta["INTERPOLATION_DEGREE"]; ok {
		deg, err := strconv.Atoi(f.value)
		if err != nil {
			return opts, &ParseError{Line: f.line, Key: f.key, Msg: "invalid degree", Err: err}
		}
		opts.Order = deg + 1
	}
	return opts, nil
}

func parseDataLine(f field, h *header, frame string, env *fds.Env) (fds.StateVector, error) {
	vals := strings.Fields(f.value)
	if len(vals) != 7 && len(vals) != 10 {
		return fds.StateVector{}, &ParseError{Line: f.line, Msg: fmt.Sprintf("expected an epoch and 6 or 9 values, got %d fields", len(vals))}
	}
	e, err := h.epoch(field{line: f.line, key: "EPOCH", value: vals[0]})
	if err != nil {
		return fds.StateVector{}, err
	}
	var c fds.Coords
	for i := range c {
		if c[i], err = strconv.ParseFloat(vals[i+1], 64); err != nil {
			return fds.StateVector{}, &ParseError{Line: f.line, Msg: "invalid number", Err: err}
		}
	}
	sv, err := env.NewStateVector(c, e, frame, fds.Cartesian)
	if err != nil {
		return fds.StateVector{}, err
	}
	h.apply(&sv)
	return sv, nil
}
