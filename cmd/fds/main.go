// Command fds propagates orbits and converts their states and element sets.
//
//	fds tle iss.txt --step 1m --frame EME2000 --ccsds iss.oem
//	fds passes iss.txt --station TLS,43.604482,1.443962,172
//	fds eop import finals.toml --db eop.db
//	fds convert --form keplerian 6678 0 0 0 7.7 0
package main

import (
	"fmt"
	"io"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ChristopherRabotin/fds"
	"github.com/ChristopherRabotin/fds/eopdb"
)

// app holds what the sub-commands share once the configuration is loaded.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     fds.Config
	logger  kitlog.Logger
	env     *fds.Env
	closers []io.Closer
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	v, err := fds.NewViper(a.cfgFile)
	if err != nil {
		return err
	}
	cfg, err := fds.LoadConfig(v)
	if err != nil {
		return err
	}
	a.v, a.cfg = v, cfg
	a.logger = fds.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level)

	reg := fds.NewEOPRegistry()
	if err := eopdb.Register(reg, cfg, a.logger); err != nil {
		return err
	}
	if a.env, err = fds.EnvFromConfig(cfg, reg, a.logger, nil); err != nil {
		return err
	}
	if c, ok := a.env.EOP.Backend.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	level.Debug(a.logger).Log("msg", "configuration loaded", "file", v.ConfigFileUsed(), "eop", cfg.EOP.DBName, "eop_type", cfg.EOP.Type)
	return nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			level.Warn(a.logger).Log("msg", "close failed", "err", err)
		}
	}
	a.closers = nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "fds",
		Short:             "Flight dynamics toolbox",
		Long:              "fds propagates two line element sets, finds station passes and converts orbital states.",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "TOML configuration file or folder (default $"+fds.ConfigEnv+")")
	root.AddCommand(newTLECmd(a), newPassesCmd(a), newEOPCmd(a), newConvertCmd(a))
	return root
}

// run executes the command line args and releases the opened databases.
func run(args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer a.close()
	return root.Execute()
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
