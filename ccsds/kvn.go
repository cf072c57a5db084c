// Package ccsds reads and writes the orbit parameter (OPM) and orbit ephemeris (OEM) messages
// of the CCSDS, in the key-value notation:
//
//	KEY = value [unit]
package ccsds

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ChristopherRabotin/fds"
)

// Options of the written messages.
type Options struct {
	Originator string
	// Created is the creation date of the message, now if zero.
	Created time.Time
}

// ParseError is returned for malformed messages.
type ParseError struct {
	Line int
	Key  string
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	msg := e.Msg
	if e.Key != "" {
		msg = e.Key + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Line > 0 {
		return fmt.Sprintf("ccsds: line %d: %s", e.Line, msg)
	}
	return "ccsds: " + msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// field is one line of a message. Lines without "=" (data lines, block markers) have an empty
// key and their content as value.
type field struct {
	line  int
	key   string
	value string
	unit  string
}

func readKVN(r io.Reader) ([]field, error) {
	scanner := bufio.NewScanner(r)
	var (
		out []field
		num int
	)
	for scanner.Scan() {
		num++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "COMMENT"):
			out = append(out, field{line: num, key: "COMMENT", value: strings.TrimSpace(line[len("COMMENT"):])})
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			out = append(out, field{line: num, value: line})
			continue
		}
		f := field{line: num, key: strings.TrimSpace(key), value: strings.TrimSpace(value)}
		if v, unit, ok := strings.Cut(f.value, "["); ok {
			f.value = strings.TrimSpace(v)
			f.unit = strings.TrimSpace(strings.TrimSuffix(unit, "]"))
		}
		out = append(out, f)
	}
	return out, errors.Wrap(scanner.Err(), "reading message")
}

// units maps the accepted units to the library units (km, km/s, s, radians).
var units = map[string]float64{
	"":           1,
	"km":         1,
	"km/s":       1,
	"km**2":      1,
	"km**2/s":    1,
	"km**2/s**2": 1,
	"km**3/s**2": 1,
	"s":          1,
	"kg":         1,
	"m":          1e-3,
	"m/s":        1e-3,
	"deg":        fds.Deg2rad(1),
}

func (f field) float() (float64, error) {
	v, err := strconv.ParseFloat(f.value, 64)
	if err != nil {
		return 0, &ParseError{Line: f.line, Key: f.key, Msg: "invalid number", Err: err}
	}
	factor, ok := units[f.unit]
	if !ok {
		return 0, &ParseError{Line: f.line, Key: f.key, Msg: fmt.Sprintf("unknown unit %q", f.unit)}
	}
	return v * factor, nil
}

// header is the metadata common to both messages.
type header struct {
	name, id, center, frame string
	scale                   fds.Scale
}

func (h *header) set(f field) (bool, error) {
	switch f.key {
	case "OBJECT_NAME":
		h.name = f.value
	case "OBJECT_ID":
		h.id = f.value
	case "CENTER_NAME":
		h.center = f.value
	case "REF_FRAME":
		h.frame = f.value
	case "TIME_SYSTEM":
		s, err := fds.ParseScale(f.value)
		if err != nil {
			return true, &ParseError{Line: f.line, Key: f.key, Msg: "unknown time system", Err: err}
		}
		h.scale = s
	default:
		return false, nil
	}
	return true, nil
}

// frameName returns the library frame: the body frame for centers other than the Earth.
func (h *header) frameName() (string, error) {
	for k, v := range map[string]string{"OBJECT_NAME": h.name, "CENTER_NAME": h.center, "REF_FRAME": h.frame, "TIME_SYSTEM": string(h.scale)} {
		if v == "" {
			return "", &ParseError{Key: k, Msg: "missing mandatory parameter"}
		}
	}
	if strings.EqualFold(h.center, "EARTH") {
		return h.frame, nil
	}
	return strings.ToUpper(h.center[:1]) + strings.ToLower(h.center[1:]), nil
}

func (h *header) epoch(f field) (fds.Epoch, error) {
	e, err := fds.ParseEpoch(f.value, h.scale)
	if err != nil {
		return e, &ParseError{Line: f.line, Key: f.key, Msg: "invalid epoch", Err: err}
	}
	return e, nil
}

func (h *header) apply(sv *fds.StateVector) {
	if h.name != "N/A" {
		sv.Name = h.name
	}
	if h.id != "N/A" {
		sv.ID = h.id
	}
}

// kvnWriter writes aligned key-value lines, keeping the first error.
type kvnWriter struct {
	w   io.Writer
	err error
}

func (k *kvnWriter) printf(format string, args ...interface{}) {
	if k.err == nil {
		_, k.err = fmt.Fprintf(k.w, format, args...)
	}
}

func (k *kvnWriter) kv(key string, value interface{}) {
	k.printf("%-20s = %v\n", key, value)
}

func (k *kvnWriter) kvUnit(key string, value float64, prec int, unit string) {
	k.printf("%-20s = % .*f [%s]\n", key, prec, value, unit)
}

func (k *kvnWriter) header(kind string, opts Options) {
	created := opts.Created
	if created.IsZero() {
		created = time.Now()
	}
	originator := opts.Originator
	if originator == "" {
		originator = "N/A"
	}
	k.kv("CCSDS_"+kind+"_VERS", "2.0")
	k.kv("CREATION_DATE", fds.EpochFromTime(created).ISO())
	k.kv("ORIGINATOR", originator)
	k.printf("\n")
}

func (k *kvnWriter) meta(sv fds.StateVector, extra ...[2]string) {
	name, id := sv.Name, sv.ID
	if name == "" {
		name = "N/A"
	}
	if id == "" {
		id = "N/A"
	}
	frame := sv.Frame()
	ref := frame.Name()
	if !sv.Center().Equals(fds.Earth) {
		ref = fds.EME2000
	}
	k.printf("META_START\n")
	k.kv("OBJECT_NAME", name)
	k.kv("OBJECT_ID", id)
	k.kv("CENTER_NAME", strings.ToUpper(sv.Center().Name))
	k.kv("REF_FRAME", ref)
	k.kv("TIME_SYSTEM", sv.Epoch().Scale())
	for _, kv := range extra {
		k.kv(kv[0], kv[1])
	}
	k.printf("META_STOP\n\n")
}

var covKeys = [6]string{"X", "Y", "Z", "X_DOT", "Y_DOT", "Z_DOT"}

// localNames maps the local orbital frames to their CCSDS names.
var localNames = map[fds.LocalKind]string{fds.QSW: "RSW", fds.TNW: "TNW"}

func parseLocal(name string) (fds.LocalKind, bool) {
	switch strings.ToUpper(name) {
	case "RSW", "RTN", "QSW":
		return fds.QSW, true
	case "TNW":
		return fds.TNW, true
	}
	return "", false
}
