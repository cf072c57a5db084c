package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ChristopherRabotin/fds"
	"github.com/ChristopherRabotin/fds/ccsds"
	"github.com/ChristopherRabotin/fds/tle"
)

func readTLEs(path string) ([]tle.TLE, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tles, err := tle.Parse(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	if len(tles) == 0 {
		return nil, errors.Errorf("%s: no element set", path)
	}
	return tles, nil
}

// span is the propagation interval of the commands, defaulting to the day following the
// epoch of the element set.
type span struct {
	start, stop string
	step        time.Duration
}

func (s *span) flags(cmd *cobra.Command, step time.Duration) {
	cmd.Flags().StringVar(&s.start, "start", "", "start epoch, UTC (default the element set epoch)")
	cmd.Flags().StringVar(&s.stop, "stop", "", "stop epoch, UTC (default one day after start)")
	cmd.Flags().DurationVar(&s.step, "step", step, "propagation step")
}

func (s *span) epochs(ref fds.Epoch) (start, stop fds.Epoch, err error) {
	start, stop = ref, ref.Add(24*time.Hour)
	if s.start != "" {
		if start, err = fds.ParseEpoch(s.start, fds.UTC); err != nil {
			return start, stop, errors.Wrap(err, "--start")
		}
		stop = start.Add(24 * time.Hour)
	}
	if s.stop != "" {
		if stop, err = fds.ParseEpoch(s.stop, fds.UTC); err != nil {
			return start, stop, errors.Wrap(err, "--stop")
		}
	}
	if s.step <= 0 {
		return start, stop, errors.New("--step must be positive")
	}
	return start, stop, nil
}

type tleOptions struct {
	span
	frame, form, ccsds string
}

func newTLECmd(a *app) *cobra.Command {
	o := &tleOptions{}
	cmd := &cobra.Command{
		Use:   "tle <file>",
		Short: "Propagate element sets with SGP4",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTLE(cmd.OutOrStdout(), args[0], o)
		},
	}
	o.flags(cmd, time.Minute)
	cmd.Flags().StringVar(&o.frame, "frame", fds.TEME, "output frame")
	cmd.Flags().StringVar(&o.form, "form", fds.Cartesian, "output form")
	cmd.Flags().StringVar(&o.ccsds, "ccsds", "", "write the states as an OEM to this file instead")
	return cmd
}

func (a *app) runTLE(w io.Writer, path string, o *tleOptions) error {
	tles, err := readTLEs(path)
	if err != nil {
		return err
	}
	var ephems []*fds.Ephemeris
	for _, t := range tles {
		orbit, err := t.Orbit(a.env)
		if err != nil {
			return err
		}
		start, stop, err := o.epochs(t.Epoch)
		if err != nil {
			return err
		}
		level.Info(a.logger).Log("msg", "propagating", "norad", t.NoradID, "start", start, "stop", stop, "step", o.step)
		if o.ccsds != "" {
			eph, err := orbit.Ephem(start, stop, o.step)
			if err != nil {
				return err
			}
			if eph, err = eph.AsFrame(o.frame); err != nil {
				return err
			}
			ephems = append(ephems, eph)
			continue
		}
		fmt.Fprintf(w, "# %s (%d)\n", t.Name, t.NoradID)
		for sv, err := range orbit.Iter(start, stop, o.step) {
			if err != nil {
				return err
			}
			if sv, err = sv.Copy(o.frame, o.form); err != nil {
				return err
			}
			writeState(w, sv)
		}
	}
	if o.ccsds == "" {
		return nil
	}
	f, err := os.Create(o.ccsds)
	if err != nil {
		return err
	}
	if err := ccsds.WriteOEM(f, ccsds.Options{Originator: "fds"}, ephems...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeState(w io.Writer, sv fds.StateVector) {
	c := sv.Coords()
	vals := make([]string, len(c))
	for i, v := range c {
		vals[i] = fmt.Sprintf("% .9e", v)
	}
	fmt.Fprintf(w, "%s %s\n", sv.Epoch().ISO(), strings.Join(vals, " "))
}
