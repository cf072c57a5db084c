package fds

import (
	"time"

	kitlog "github.com/go-kit/log"
)

// Env groups the registries and services shared by states, orbits and propagators. It is built
// once at startup and passed by reference; it is read-only during propagation.
type Env struct {
	Frames  *FrameGraph
	Forms   *FormRegistry
	EOP     *EOPProvider
	Config  Config
	Logger  kitlog.Logger
	Metrics *Metrics
}

// NewEnv returns an environment with the default frames and forms.
func NewEnv(cfg Config, eop *EOPProvider, logger kitlog.Logger, m *Metrics) *Env {
	logger = orNop(logger)
	if eop == nil {
		policy, err := cfg.Policy()
		if err != nil {
			policy = PolicyPass
		}
		eop = NewEOPProvider(nil, policy, logger, m)
	}
	return &Env{
		Frames:  NewFrameGraph(eop),
		Forms:   NewFormRegistry(),
		EOP:     eop,
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
	}
}

// DefaultConfig returns the configuration holding the default values.
func DefaultConfig() Config {
	var c Config
	c.EOP.DBName = "default"
	c.EOP.MissingPolicy = string(PolicyPass)
	c.EOP.Type = "memory"
	c.Ephemeris.Order = 8
	c.Ephemeris.Tolerance = time.Second
	c.Events.Tolerance = 10 * time.Microsecond
	c.Log.Level = "info"
	return c
}

// DefaultEnv returns an environment with the default configuration and no EOP data.
func DefaultEnv() *Env {
	return NewEnv(DefaultConfig(), nil, nil, nil)
}

// EnvFromConfig returns an environment whose EOP provider uses the backend named in the
// configuration, looked up in reg.
func EnvFromConfig(cfg Config, reg *EOPRegistry, logger kitlog.Logger, m *Metrics) (*Env, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	backend, err := reg.Get(cfg.EOP.DBName)
	if err != nil {
		return nil, err
	}
	return NewEnv(cfg, NewEOPProvider(backend, policy, logger, m), logger, m), nil
}

// logger returns the logger of the environment, with the subsystem key set.
func (env *Env) logger(subsys string) kitlog.Logger {
	if env == nil {
		return kitlog.NewNopLogger()
	}
	return kitlog.With(orNop(env.Logger), "subsys", subsys)
}

func (env *Env) metrics() *Metrics {
	if env == nil {
		return nil
	}
	return env.Metrics
}
