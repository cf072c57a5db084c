// Package eopdb provides Earth orientation parameter databases: TOML files and a pebble store,
// and their registration in an fds.EOPRegistry.
package eopdb

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/ChristopherRabotin/fds"
)

// Record is an EOP record of a UTC day, as stored in the databases.
type Record struct {
	MJD    int     `toml:"mjd" json:"mjd"`
	X      float64 `toml:"x" json:"x"`
	Y      float64 `toml:"y" json:"y"`
	DX     float64 `toml:"dx" json:"dx"`
	DY     float64 `toml:"dy" json:"dy"`
	DPsi   float64 `toml:"dpsi" json:"dpsi"`
	DEps   float64 `toml:"deps" json:"deps"`
	LOD    float64 `toml:"lod" json:"lod"`
	UT1UTC float64 `toml:"ut1_utc" json:"ut1_utc"`
	TAIUTC float64 `toml:"tai_utc" json:"tai_utc"`
}

// EOP returns the library record.
func (r Record) EOP() fds.EOP {
	return fds.EOP{
		X: r.X, Y: r.Y,
		DX: r.DX, DY: r.DY,
		DPsi: r.DPsi, DEps: r.DEps,
		LOD:    r.LOD,
		UT1UTC: r.UT1UTC,
		TAIUTC: r.TAIUTC,
	}
}

type tomlFile struct {
	EOP []Record `toml:"eop"`
}

// ReadTOML reads the records of a TOML document made of [[eop]] tables:
//
//	[[eop]]
//	mjd = 58213
//	x = 0.0581
//	ut1_utc = 0.1385
func ReadTOML(r io.Reader) ([]Record, error) {
	var f tomlFile
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decoding EOP records")
	}
	sort.Slice(f.EOP, func(i, j int) bool { return f.EOP[i].MJD < f.EOP[j].MJD })
	for i := 1; i < len(f.EOP); i++ {
		if f.EOP[i].MJD == f.EOP[i-1].MJD {
			return nil, errors.Errorf("duplicate EOP record for MJD %d", f.EOP[i].MJD)
		}
	}
	return f.EOP, nil
}

// ReadTOMLFile reads the records of a TOML file.
func ReadTOMLFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening EOP file")
	}
	defer f.Close()
	recs, err := ReadTOML(f)
	return recs, errors.Wrap(err, path)
}

// TOMLBackend is an in-memory backend loaded from TOML files.
type TOMLBackend struct {
	*fds.MemoryEOP
	count int
}

// NewTOMLBackend reads all the provided files. A day present in several files keeps the
// record of the last one.
func NewTOMLBackend(paths ...string) (*TOMLBackend, error) {
	byDay := make(map[int]fds.EOP)
	for _, p := range paths {
		recs, err := ReadTOMLFile(p)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			byDay[r.MJD] = r.EOP()
		}
	}
	return &TOMLBackend{MemoryEOP: fds.NewMemoryEOP(byDay), count: len(byDay)}, nil
}

// NewTOMLFolderBackend reads the *.toml files of a folder, in lexical order.
func NewTOMLFolderBackend(folder string) (*TOMLBackend, error) {
	paths, err := filepath.Glob(filepath.Join(folder, "*.toml"))
	if err != nil {
		return nil, errors.Wrap(err, "listing EOP files")
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no EOP file in %s", folder)
	}
	sort.Strings(paths)
	return NewTOMLBackend(paths...)
}

// Len returns the number of daily records.
func (b *TOMLBackend) Len() int { return b.count }
