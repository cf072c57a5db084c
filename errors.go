package fds

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFrame is returned (wrapped in a FrameError) when a frame name is not registered.
	ErrUnknownFrame = errors.New("unknown frame")
	// ErrUnknownForm is returned (wrapped in a FormError) when a form name is not registered.
	ErrUnknownForm = errors.New("unknown form")
	// ErrEOPMiss is returned by EOP backends which have no data for the requested date.
	ErrEOPMiss = errors.New("no EOP data")
	// ErrDecayed is the cause of a PropagationError when the orbit decayed.
	ErrDecayed = errors.New("satellite decayed")
	// ErrOutOfRange is the cause of a PropagationError when an epoch is outside the domain of
	// an ephemeris.
	ErrOutOfRange = errors.New("epoch out of range")
	// ErrUT1Scale is returned when UT1 is used as a plain time scale: UT1 dates only convert
	// through an EOPProvider.
	ErrUT1Scale = errors.New("UT1 epochs must be converted through an EOP provider")
)

// ConfigError is returned for malformed or missing configuration.
type ConfigError struct {
	Key string
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	msg := "config"
	if e.Key != "" {
		msg += " '" + e.Key + "'"
	}
	msg += ": " + e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// FrameError is returned for unknown frames, disconnected graphs and name collisions.
type FrameError struct {
	Frame string
	Msg   string
	Err   error
}

func (e *FrameError) Error() string {
	msg := fmt.Sprintf("frame '%s': %s", e.Frame, e.Msg)
	if e.Err != nil && e.Msg == "" {
		msg = fmt.Sprintf("frame '%s': %s", e.Frame, e.Err)
	}
	return msg
}

func (e *FrameError) Unwrap() error { return e.Err }

// FormError is returned for unknown forms, unknown parameters and degenerate conversions.
type FormError struct {
	Form string
	Msg  string
	Err  error
}

func (e *FormError) Error() string {
	if e.Msg == "" && e.Err != nil {
		return fmt.Sprintf("form '%s': %s", e.Form, e.Err)
	}
	return fmt.Sprintf("form '%s': %s", e.Form, e.Msg)
}

func (e *FormError) Unwrap() error { return e.Err }

// PropagationError carries the epoch at which a propagation failed.
type PropagationError struct {
	Epoch Epoch
	Err   error
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("propagation failed at %s: %s", e.Epoch, e.Err)
}

func (e *PropagationError) Unwrap() error { return e.Err }

// EOPError is returned by an EOPProvider with the "error" policy on a missing date.
type EOPError struct {
	MJD float64
}

func (e *EOPError) Error() string {
	return fmt.Sprintf("missing EOP data for mjd=%f", e.MJD)
}

// Is makes errors.Is(err, ErrEOPMiss) hold for any EOPError.
func (e *EOPError) Is(target error) bool { return target == ErrEOPMiss }

func propagationErrorf(e Epoch, format string, args ...interface{}) error {
	return &PropagationError{Epoch: e, Err: fmt.Errorf(format, args...)}
}
