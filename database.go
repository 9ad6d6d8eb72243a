// Package tcd is a read-only decoder for Tidal Constituent Database (TCD)
// v2 files: bit-packed databases of tide and current stations together
// with the harmonic constituents (speeds, per-year equilibrium arguments
// and node factors) that drive tidal predictions.
package tcd

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Database is one open TCD file. The header, lookup tables and constituent
// table load eagerly at open; station records load on the first whole-file
// enumeration and are cached. A Database holds mutable cursor state, so
// concurrent use of one instance is undefined; open one instance per
// goroutine instead.
type Database struct {
	f io.Closer // owned file handle; nil for OpenReader sources
	s *bitStream
	h *headerParams

	hdr          Header
	tables       *lookupTables
	constituents []Constituent

	stations []*Station // populated by the first Stations() call

	log logrus.FieldLogger
}

// Option configures a Database at open time.
type Option func(*Database)

// WithLogger routes the decoder's debug tracing to l. The default logger
// discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(db *Database) { db.log = l }
}

// Open opens and decodes the TCD file at path. The file is closed again on
// any decode failure.
func Open(path string, opts ...Option) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	db, err := OpenReader(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	db.f = f
	return db, nil
}

// OpenReader decodes a TCD database from an arbitrary byte-seekable
// source. The caller retains ownership of r; Close does not close it.
func OpenReader(r io.ReadSeeker, opts ...Option) (*Database, error) {
	db := &Database{s: newBitStream(r)}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	db.log = discard
	for _, opt := range opts {
		opt(db)
	}

	if err := db.s.seek(0); err != nil {
		return nil, err
	}
	h, err := parseHeaderParams(db.s)
	if err != nil {
		return nil, err
	}
	db.h = h
	db.hdr = h.info()
	if db.hdr.MajorRev < 2 {
		// v1 station records use a different field order; parsing them
		// with the v2 layout would silently misalign every record.
		return nil, errors.Wrapf(ErrFormat, "TCD v%d file not supported (v2 required)", db.hdr.MajorRev)
	}
	db.log.WithFields(logrus.Fields{
		"records":      db.hdr.NumberOfRecords,
		"constituents": db.hdr.Constituents,
		"start_year":   db.hdr.StartYear,
		"years":        db.hdr.NumberOfYears,
	}).Debug("parsed TCD header")

	tables, checksum, err := readLookupTables(db.s, h)
	if err != nil {
		return nil, err
	}
	db.tables = tables
	db.hdr.Checksum = checksum
	db.log.WithFields(logrus.Fields{
		"timezones":       len(tables.timezones),
		"countries":       len(tables.countries),
		"station_records": tables.stationRecordsOffset,
	}).Debug("loaded lookup tables")

	cs, err := readConstituents(db.s, h, tables.constituentDataOffset, tables.constituentNames)
	if err != nil {
		return nil, err
	}
	db.constituents = cs
	db.log.WithField("constituents", len(cs)).Debug("loaded constituent table")

	return db, nil
}

// Close releases the underlying file. It is a no-op for databases opened
// with OpenReader and safe to call more than once.
func (db *Database) Close() error {
	if db.f == nil {
		return nil
	}
	f := db.f
	db.f = nil
	return f.Close()
}

// Header returns the summary metadata from the ASCII preamble.
func (db *Database) Header() Header { return db.hdr }

// Constituents returns all constituents in on-disk index order. The slice
// is owned by the database and must not be modified.
func (db *Database) Constituents() []Constituent { return db.constituents }

// Constituent returns the named constituent, or nil when the database does
// not carry it. Names match exactly ("M2", "K1", ...).
func (db *Database) Constituent(name string) *Constituent {
	i := findConstituent(db.constituents, name)
	if i < 0 {
		return nil
	}
	return &db.constituents[i]
}

// Stations returns every station record, loading and caching them on the
// first call.
func (db *Database) Stations() ([]*Station, error) {
	if db.stations != nil {
		return db.stations, nil
	}
	stations := make([]*Station, 0, db.hdr.NumberOfRecords)
	err := db.EachStation(func(st *Station) error {
		stations = append(stations, st)
		return nil
	})
	if err != nil {
		return nil, err
	}
	db.stations = stations
	db.log.WithField("stations", len(stations)).Debug("cached station records")
	return stations, nil
}

// EachStation decodes station records one at a time without populating the
// cache. fn returning a non-nil error stops the enumeration and propagates
// the error. Starting a second enumeration while one is in flight on the
// same Database is undefined: both would share the cursor.
func (db *Database) EachStation(fn func(*Station) error) error {
	if err := db.s.seek(db.tables.stationRecordsOffset); err != nil {
		return err
	}
	r := &stationReader{s: db.s, h: db.h, t: db.tables}
	for i := 0; i < db.hdr.NumberOfRecords; i++ {
		st, err := r.readStation(i)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
	}
	return nil
}

// StationByName returns the first station whose name matches exactly, or
// nil when no station matches.
func (db *Database) StationByName(name string) (*Station, error) {
	stations, err := db.Stations()
	if err != nil {
		return nil, err
	}
	for _, st := range stations {
		if st.Name == name {
			return st, nil
		}
	}
	return nil, nil
}

// ReferenceStations returns all stations carrying their own harmonic data.
func (db *Database) ReferenceStations() ([]*Station, error) {
	return db.filterStations((*Station).IsReference)
}

// SubordinateStations returns all stations derived from a reference.
func (db *Database) SubordinateStations() ([]*Station, error) {
	return db.filterStations((*Station).IsSubordinate)
}

func (db *Database) filterStations(keep func(*Station) bool) ([]*Station, error) {
	stations, err := db.Stations()
	if err != nil {
		return nil, err
	}
	var out []*Station
	for _, st := range stations {
		if keep(st) {
			out = append(out, st)
		}
	}
	return out, nil
}

// FindStations returns stations whose name contains substr,
// case-insensitively, in record order.
func (db *Database) FindStations(substr string) ([]*Station, error) {
	needle := strings.ToLower(substr)
	return db.filterStations(func(st *Station) bool {
		return strings.Contains(strings.ToLower(st.Name), needle)
	})
}

// InferConstituents derives missing semidiurnal and diurnal constituents
// on a reference station from its M2, S2, K1 and O1 amplitudes and
// epochs, mutating the station in place. It reports whether inference was
// performed; a false return is not an error. See inferConstituents for
// the eligibility rules and the epoch convention.
func (db *Database) InferConstituents(st *Station) bool {
	return inferConstituents(st, db.constituents)
}

// Lookup table accessors. Slices are owned by the database.

func (db *Database) LevelUnits() []string       { return db.tables.levelUnits }
func (db *Database) DirectionUnits() []string   { return db.tables.dirUnits }
func (db *Database) Restrictions() []string     { return db.tables.restrictions }
func (db *Database) Timezones() []string        { return db.tables.timezones }
func (db *Database) Countries() []string        { return db.tables.countries }
func (db *Database) Datums() []string           { return db.tables.datums }
func (db *Database) Legaleses() []string        { return db.tables.legaleses }
func (db *Database) ConstituentNames() []string { return db.tables.constituentNames }
