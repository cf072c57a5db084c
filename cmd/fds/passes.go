package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ChristopherRabotin/fds"
)

type passesOptions struct {
	span
	stations  []string
	elevation float64
}

func newPassesCmd(a *app) *cobra.Command {
	o := &passesOptions{}
	cmd := &cobra.Command{
		Use:   "passes <file>",
		Short: "List the passes of element sets over ground stations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPasses(cmd.OutOrStdout(), args[0], o)
		},
	}
	o.flags(cmd, 30*time.Second)
	cmd.Flags().StringArrayVar(&o.stations, "station", nil, "station as name,latitude,longitude,altitude (degrees and meters), repeatable")
	cmd.Flags().Float64Var(&o.elevation, "elevation", 0, "minimum elevation of AOS and LOS, degrees")
	cmd.MarkFlagRequired("station")
	return cmd
}

// parseStation parses name,lat,lon,alt.
func parseStation(g *fds.FrameGraph, s string) (*fds.Station, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, errors.Errorf("station %q: expected name,latitude,longitude,altitude", s)
	}
	var vals [3]float64
	for i, p := range parts[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "station %q", s)
		}
		vals[i] = v
	}
	return fds.NewStation(g, strings.TrimSpace(parts[0]), vals[0], vals[1], vals[2], true)
}

func (a *app) runPasses(w io.Writer, path string, o *passesOptions) error {
	var stations []*fds.Station
	for _, s := range o.stations {
		st, err := parseStation(a.env.Frames, s)
		if err != nil {
			return err
		}
		stations = append(stations, st)
	}
	tles, err := readTLEs(path)
	if err != nil {
		return err
	}
	for _, t := range tles {
		orbit, err := t.Orbit(a.env)
		if err != nil {
			return err
		}
		start, stop, err := o.epochs(t.Epoch)
		if err != nil {
			return err
		}
		for _, st := range stations {
			listeners := []fds.Listener{
				fds.StationSignalListener{Station: st, Elevation: fds.Deg2rad(o.elevation)},
				fds.StationMaxListener{Station: st},
			}
			for ev, err := range orbit.Events(start, stop, o.step, listeners...) {
				if err != nil {
					return err
				}
				az, el, rng, err := st.AzElRange(ev.State)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%-8s %-12s %-4s %s az=%7.3f el=%6.3f range=%9.3f\n", strconv.Itoa(t.NoradID), st.Name, ev.Label,
					ev.Epoch.ISO(), fds.Rad2deg(az), fds.Rad2deg(el), rng)
			}
		}
	}
	return nil
}
