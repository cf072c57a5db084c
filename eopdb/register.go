package eopdb

import (
	kitlog "github.com/go-kit/log"
	"github.com/pkg/errors"

	"github.com/ChristopherRabotin/fds"
)

// The backend types of the eop.type configuration key.
const (
	TypeMemory = "memory"
	TypeTOML   = "toml"
	TypePebble = "pebble"
)

// Register registers, under eop.dbname, the backend described by the configuration: an
// empty memory backend, the TOML files of eop.folder, or the pebble store at eop.folder
// (opened read-only). The backend is only opened when first requested from the registry.
func Register(reg *fds.EOPRegistry, cfg fds.Config, logger kitlog.Logger) error {
	var factory fds.EOPFactory
	folder := cfg.EOP.Folder
	switch cfg.EOP.Type {
	case TypeMemory, "":
		factory = func() (fds.EOPBackend, error) { return fds.NewMemoryEOP(nil), nil }
	case TypeTOML:
		factory = func() (fds.EOPBackend, error) { return NewTOMLFolderBackend(folder) }
	case TypePebble:
		factory = func() (fds.EOPBackend, error) {
			return OpenPebble(folder, PebbleOptions{ReadOnly: true, Logger: logger})
		}
	default:
		return &fds.ConfigError{Key: "eop.type", Msg: "unknown EOP database type '" + cfg.EOP.Type + "'"}
	}
	if cfg.EOP.Type != TypeMemory && cfg.EOP.Type != "" && folder == "" {
		return &fds.ConfigError{Key: "eop.folder", Msg: "required by type " + cfg.EOP.Type}
	}
	return errors.Wrap(reg.Register(cfg.EOP.DBName, factory, true), "registering EOP database")
}
