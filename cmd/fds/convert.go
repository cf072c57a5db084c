package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ChristopherRabotin/fds"
)

type convertOptions struct {
	epoch            string
	frame, toFrame   string
	fromForm, toForm string
}

func newConvertCmd(a *app) *cobra.Command {
	o := &convertOptions{}
	cmd := &cobra.Command{
		Use:   "convert <c1> <c2> <c3> <c4> <c5> <c6>",
		Short: "Convert a state to another form or frame (km, km/s, radians)",
		Args:  cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConvert(cmd.OutOrStdout(), args, o)
		},
	}
	cmd.Flags().StringVar(&o.epoch, "epoch", "2000-01-01T12:00:00", "epoch of the state, UTC")
	cmd.Flags().StringVar(&o.frame, "frame", fds.EME2000, "frame of the state")
	cmd.Flags().StringVar(&o.toFrame, "to-frame", "", "output frame (default the input frame)")
	cmd.Flags().StringVar(&o.fromForm, "from", fds.Cartesian, "form of the state")
	cmd.Flags().StringVar(&o.toForm, "form", fds.Keplerian, "output form")
	return cmd
}

func (a *app) runConvert(w io.Writer, args []string, o *convertOptions) error {
	var c fds.Coords
	for i, s := range args {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return errors.Wrapf(err, "coordinate %d", i+1)
		}
		c[i] = v
	}
	e, err := fds.ParseEpoch(o.epoch, fds.UTC)
	if err != nil {
		return errors.Wrap(err, "--epoch")
	}
	sv, err := a.env.NewStateVector(c, e, o.frame, o.fromForm)
	if err != nil {
		return err
	}
	if sv, err = sv.Copy(o.toFrame, o.toForm); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s %s\n", sv.Epoch().ISO(), sv.Frame().Name(), sv.Form().Name)
	for i, p := range sv.Form().Params {
		fmt.Fprintf(w, "%-8s = % .12g\n", p, sv.Coords()[i])
	}
	return nil
}
