package fds

import (
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ConfigEnv is the environment variable pointing to the configuration file or to its folder.
const ConfigEnv = "FDS_CONFIG"

// Config is the flat key-path configuration of the library.
type Config struct {
	EOP struct {
		DBName        string `mapstructure:"dbname"`
		MissingPolicy string `mapstructure:"missing_policy"`
		Type          string `mapstructure:"type"`
		Folder        string `mapstructure:"folder"`
	} `mapstructure:"eop"`
	JPL struct {
		Files []string `mapstructure:"files"`
	} `mapstructure:"jpl"`
	Ephemeris struct {
		Order     int           `mapstructure:"order"`
		Tolerance time.Duration `mapstructure:"tolerance"`
	} `mapstructure:"ephemeris"`
	Events struct {
		Tolerance time.Duration `mapstructure:"tolerance"`
	} `mapstructure:"events"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// Policy returns the parsed EOP missing policy.
func (c Config) Policy() (MissingPolicy, error) {
	return ParseMissingPolicy(c.EOP.MissingPolicy)
}

// SetDefaults sets the default value of every known key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("eop.dbname", "default")
	v.SetDefault("eop.missing_policy", string(PolicyPass))
	v.SetDefault("eop.type", "memory")
	v.SetDefault("eop.folder", "")
	v.SetDefault("jpl.files", []string{})
	v.SetDefault("ephemeris.order", 8)
	v.SetDefault("ephemeris.tolerance", "1s")
	v.SetDefault("events.tolerance", "10us")
	v.SetDefault("log.level", "info")
}

// NewViper returns a viper instance with the defaults set, reading the TOML file at path.
// If path is empty, the FDS_CONFIG environment variable is used. If both are empty, only
// the defaults (and FDS_* environment variables) are used.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("fds")
	v.AutomaticEnv()
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path == "" {
		return v, nil
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		v.SetConfigName("fds")
		v.SetConfigType("toml")
		v.AddConfigPath(path)
	} else {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Key: ConfigEnv, Msg: "could not read " + path, Err: err}
	}
	return v, nil
}

// LoadConfig unmarshals and validates the configuration held by v.
func LoadConfig(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, &ConfigError{Msg: "could not decode", Err: err}
	}
	if _, err := c.Policy(); err != nil {
		return c, err
	}
	if c.EOP.DBName == "" {
		return c, &ConfigError{Key: "eop.dbname", Msg: "empty database name"}
	}
	if c.Ephemeris.Order < 2 {
		return c, &ConfigError{Key: "ephemeris.order", Msg: "interpolation order must be at least 2"}
	}
	if c.Events.Tolerance <= 0 {
		return c, &ConfigError{Key: "events.tolerance", Msg: "must be positive"}
	}
	return c, nil
}

// WatchConfig reloads the configuration every time its file changes and calls fn with the result.
func WatchConfig(v *viper.Viper, fn func(Config, error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(LoadConfig(v))
	})
	v.WatchConfig()
}
