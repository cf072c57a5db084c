package eopdb

import (
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/ChristopherRabotin/fds"
)

// PebbleBackend stores one JSON record per UTC day in a pebble database, keyed by the
// big-endian MJD.
type PebbleBackend struct {
	db     *pebble.DB
	logger kitlog.Logger
}

// PebbleOptions are the options of OpenPebble.
type PebbleOptions struct {
	// FS is the file system of the store, the disk if nil.
	FS       vfs.FS
	ReadOnly bool
	Logger   kitlog.Logger
}

// OpenPebble opens (or creates unless read-only) the store of the folder.
func OpenPebble(dir string, opts PebbleOptions) (*PebbleBackend, error) {
	po := &pebble.Options{FS: opts.FS, ReadOnly: opts.ReadOnly}
	if po.FS == nil {
		po.FS = vfs.Default
	}
	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, errors.Wrapf(err, "opening EOP store %s", dir)
	}
	logger := opts.Logger
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &PebbleBackend{db: db, logger: kitlog.With(logger, "subsys", "eopdb")}, nil
}

// Close closes the store.
func (b *PebbleBackend) Close() error {
	return b.db.Close()
}

func key(mjd int) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(mjd))
	return k[:]
}

// Import writes the records in a single batch, replacing the existing days.
func (b *PebbleBackend) Import(records []Record) error {
	batch := b.db.NewBatch()
	defer batch.Close()
	for _, r := range records {
		if r.MJD <= 0 {
			return errors.Errorf("invalid MJD %d", r.MJD)
		}
		val, err := json.Marshal(r)
		if err != nil {
			return errors.Wrapf(err, "encoding record of MJD %d", r.MJD)
		}
		if err := batch.Set(key(r.MJD), val, nil); err != nil {
			return errors.Wrap(err, "batching records")
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return errors.Wrap(err, "committing records")
	}
	level.Info(b.logger).Log("msg", "imported EOP records", "count", len(records))
	return nil
}

// record returns the record of the day, false if absent.
func (b *PebbleBackend) record(mjd int) (fds.EOP, bool, error) {
	val, closer, err := b.db.Get(key(mjd))
	if errors.Is(err, pebble.ErrNotFound) {
		return fds.EOP{}, false, nil
	}
	if err != nil {
		return fds.EOP{}, false, errors.Wrapf(err, "reading record of MJD %d", mjd)
	}
	defer closer.Close()
	res := gjson.ParseBytes(val)
	return fds.EOP{
		X:      res.Get("x").Float(),
		Y:      res.Get("y").Float(),
		DX:     res.Get("dx").Float(),
		DY:     res.Get("dy").Float(),
		DPsi:   res.Get("dpsi").Float(),
		DEps:   res.Get("deps").Float(),
		LOD:    res.Get("lod").Float(),
		UT1UTC: res.Get("ut1_utc").Float(),
		TAIUTC: res.Get("tai_utc").Float(),
	}, true, nil
}

// Lookup implements fds.EOPBackend, interpolating between the records of the day and of the
// next one.
func (b *PebbleBackend) Lookup(mjd float64) (fds.EOP, error) {
	day := int(math.Floor(mjd))
	var (
		mjds    []float64
		records []fds.EOP
	)
	for _, d := range []int{day, day + 1} {
		rec, ok, err := b.record(d)
		if err != nil {
			return fds.EOP{}, err
		}
		if ok {
			mjds = append(mjds, float64(d))
			records = append(records, rec)
		}
	}
	return fds.InterpolateEOP(mjds, records, mjd)
}

// Range returns the first and last days of the store, false if it is empty.
func (b *PebbleBackend) Range() (first, last int, ok bool, err error) {
	it, err := b.db.NewIter(nil)
	if err != nil {
		return 0, 0, false, errors.Wrap(err, "iterating EOP store")
	}
	defer it.Close()
	if !it.First() {
		return 0, 0, false, it.Error()
	}
	first = int(binary.BigEndian.Uint64(it.Key()))
	it.Last()
	last = int(binary.BigEndian.Uint64(it.Key()))
	return first, last, true, it.Error()
}
