package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ChristopherRabotin/fds"
	"github.com/ChristopherRabotin/fds/eopdb"
)

func newEOPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eop",
		Short: "Manage the Earth orientation parameters",
	}
	var db string
	imp := &cobra.Command{
		Use:   "import <toml>...",
		Short: "Import TOML records into a pebble store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.importEOP(cmd.OutOrStdout(), db, args)
		},
	}
	imp.Flags().StringVar(&db, "db", "", "folder of the pebble store (default eop.folder)")

	get := &cobra.Command{
		Use:   "get <mjd>",
		Short: "Print the record of the configured database at a UTC modified Julian date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mjd, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return err
			}
			rec, err := a.env.EOP.Get(mjd)
			if err != nil {
				return err
			}
			writeEOP(cmd.OutOrStdout(), mjd, rec)
			return nil
		},
	}
	cmd.AddCommand(imp, get)
	return cmd
}

func (a *app) importEOP(w io.Writer, db string, paths []string) error {
	if db == "" {
		db = a.cfg.EOP.Folder
	}
	if db == "" {
		return &fds.ConfigError{Key: "eop.folder", Msg: "no pebble store, use --db"}
	}
	store, err := eopdb.OpenPebble(db, eopdb.PebbleOptions{Logger: a.logger})
	if err != nil {
		return err
	}
	defer store.Close()
	for _, p := range paths {
		recs, err := eopdb.ReadTOMLFile(p)
		if err != nil {
			return err
		}
		if err := store.Import(recs); err != nil {
			return err
		}
	}
	first, last, ok, err := store.Range()
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(w, "%s: MJD %d to %d\n", db, first, last)
	}
	return nil
}

func writeEOP(w io.Writer, mjd float64, rec fds.EOP) {
	fmt.Fprintf(w, "mjd     = %.5f\n", mjd)
	fmt.Fprintf(w, "x       = %.6f\n", rec.X)
	fmt.Fprintf(w, "y       = %.6f\n", rec.Y)
	fmt.Fprintf(w, "dx      = %.6f\n", rec.DX)
	fmt.Fprintf(w, "dy      = %.6f\n", rec.DY)
	fmt.Fprintf(w, "dpsi    = %.6f\n", rec.DPsi)
	fmt.Fprintf(w, "deps    = %.6f\n", rec.DEps)
	fmt.Fprintf(w, "lod     = %.6f\n", rec.LOD)
	fmt.Fprintf(w, "ut1_utc = %.7f\n", rec.UT1UTC)
	fmt.Fprintf(w, "tai_utc = %.1f\n", rec.TAIUTC)
}
