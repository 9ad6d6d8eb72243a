package tcd

import "github.com/pkg/errors"

// Record types stored in the first field after the record size.
const (
	recordTypeReference   = 1
	recordTypeSubordinate = 2
)

// On-disk sentinels. These are spec-defined in-band markers, not errors;
// the decoder converts them to explicit absence at the boundary and they
// never appear in a decoded Station.
const (
	nullDirection   = 361   // direction fields: no direction recorded
	nullSlackOffset = 0xA00 // flood/ebb fields: no slack offset recorded
)

// Station is one decoded station record. Common and extended-metadata
// fields are shared by both record types; exactly one of Reference or
// Subordinate is non-nil, matching the record type. Optional fields decode
// their on-disk sentinel to a nil pointer. Strings are resolved lookup
// table values, so a Station is self-contained.
type Station struct {
	Index      int
	RecordSize int
	RecordType int

	Latitude  float64
	Longitude float64
	Timezone  string
	Name      string

	// ReferenceIndex is the record index of the station's reference
	// station; nil for a station that is its own reference.
	ReferenceIndex *int

	Country          string
	Source           string
	Restriction      string
	Comments         string
	Notes            string
	Legalese         string
	StationIDContext string
	StationID        string
	DateImported     int // YYYYMMDD, 0 when unknown
	XFields          string
	DirectionUnits   string
	MinDirection     *int // degrees
	MaxDirection     *int // degrees
	LevelUnits       string

	Reference   *ReferenceData
	Subordinate *SubordinateData
}

// ReferenceData is the type-specific body of a reference station: the
// datum plus a full amplitude/epoch pair per constituent.
type ReferenceData struct {
	DatumOffset       float64 // Z0, in the station's level units
	Datum             string
	ZoneOffset        int // ±HHMM as stored; minutes are not decoded
	ExpirationDate    int // YYYYMMDD
	MonthsOnStation   int
	LastDateOnStation int // YYYYMMDD
	Confidence        int // 0..15

	// Amplitudes and Epochs have one entry per database constituent.
	// Constituents absent from the on-disk sparse list stay 0.
	Amplitudes []float64
	Epochs     []float64
}

// SubordinateData is the type-specific body of a subordinate station:
// offsets applied to the reference station's predictions. Time fields are
// decoded from the on-disk ±HHMM encoding to signed minutes.
type SubordinateData struct {
	MinTimeAdd       int // minutes
	MinLevelAdd      float64
	MinLevelMultiply float64
	MaxTimeAdd       int // minutes
	MaxLevelAdd      float64
	MaxLevelMultiply float64

	FloodBegins *int // minutes; nil when the station records no slack
	EbbBegins   *int // minutes
}

// IsReference reports whether the station carries its own harmonic data.
func (st *Station) IsReference() bool { return st.RecordType == recordTypeReference }

// IsSubordinate reports whether the station derives from a reference station.
func (st *Station) IsSubordinate() bool { return st.RecordType == recordTypeSubordinate }

// IsSimple reports whether a subordinate's min and max offsets coincide and
// it has no direction or slack data.
func (st *Station) IsSimple() bool {
	sub := st.Subordinate
	if sub == nil {
		return false
	}
	return sub.MaxTimeAdd == sub.MinTimeAdd &&
		sub.MaxLevelAdd == sub.MinLevelAdd &&
		sub.MaxLevelMultiply == sub.MinLevelMultiply &&
		st.MinDirection == nil && st.MaxDirection == nil &&
		sub.FloodBegins == nil && sub.EbbBegins == nil
}

// IsCurrent reports whether the station predicts current velocities: a
// subordinate carrying any direction or slack-offset data. A subordinate
// with none of those fields is a tide station no matter how its offsets
// differ.
func (st *Station) IsCurrent() bool {
	if !st.IsSubordinate() {
		return false
	}
	sub := st.Subordinate
	return st.MinDirection != nil || st.MaxDirection != nil ||
		(sub != nil && (sub.FloodBegins != nil || sub.EbbBegins != nil))
}

// IsTide reports whether the station predicts water levels. Every station
// is exactly one of tide or current.
func (st *Station) IsTide() bool { return !st.IsCurrent() }

// ActiveConstituents counts the amplitudes strictly greater than zero.
// Zero for subordinate stations, which carry no harmonic data.
func (st *Station) ActiveConstituents() int {
	if st.Reference == nil {
		return 0
	}
	n := 0
	for _, a := range st.Reference.Amplitudes {
		if a > 0 {
			n++
		}
	}
	return n
}

// stationReader decodes station records sequentially. Field order,
// conditional branches and sign conventions below follow the on-disk v2
// layout bit-for-bit; reordering any read corrupts every later field.
type stationReader struct {
	s *bitStream
	h *headerParams
	t *lookupTables
}

// readStation parses the record at the current (byte-aligned) position.
// The embedded record size is the authoritative record length: after the
// type-specific body the reader seeks absolutely to start+size, absorbing
// trailing padding and restoring byte alignment for the next record.
func (r *stationReader) readStation(index int) (*Station, error) {
	start := r.s.pos()

	st := &Station{Index: index}
	if err := r.readCommon(st); err != nil {
		return nil, errors.Wrapf(err, "station %d", index)
	}
	if r.h.majorRev() >= 2 {
		if err := r.readMetadata(st); err != nil {
			return nil, errors.Wrapf(err, "station %d (%s)", index, st.Name)
		}
		switch st.RecordType {
		case recordTypeReference:
			if err := r.readReferenceBody(st); err != nil {
				return nil, errors.Wrapf(err, "station %d (%s)", index, st.Name)
			}
		case recordTypeSubordinate:
			if err := r.readSubordinateBody(st); err != nil {
				return nil, errors.Wrapf(err, "station %d (%s)", index, st.Name)
			}
		default:
			return nil, errors.Wrapf(ErrFormat, "station %d (%s): record type %d",
				index, st.Name, st.RecordType)
		}
	}

	if err := r.s.seek(start + int64(st.RecordSize)); err != nil {
		return nil, errors.Wrapf(err, "station %d", index)
	}
	return st, nil
}

func (r *stationReader) readCommon(st *Station) error {
	h, s := r.h, r.s

	recordSizeBits, err := h.bits("record_size")
	if err != nil {
		return err
	}
	size, err := s.readUint(recordSizeBits)
	if err != nil {
		return errors.Wrap(err, "record size")
	}
	st.RecordSize = int(size)

	recordTypeBits, err := h.bits("record_type")
	if err != nil {
		return err
	}
	typ, err := s.readUint(recordTypeBits)
	if err != nil {
		return errors.Wrap(err, "record type")
	}
	st.RecordType = int(typ)

	latBits, err := h.bits("latitude")
	if err != nil {
		return err
	}
	if st.Latitude, err = s.readScaled(latBits, h.scale("latitude")); err != nil {
		return errors.Wrap(err, "latitude")
	}
	lonBits, err := h.bits("longitude")
	if err != nil {
		return err
	}
	if st.Longitude, err = s.readScaled(lonBits, h.scale("longitude")); err != nil {
		return errors.Wrap(err, "longitude")
	}

	if st.Timezone, err = r.readIndexed("tzfile", r.t.timezones); err != nil {
		return errors.Wrap(err, "timezone")
	}
	if st.Name, err = s.readCString(); err != nil {
		return errors.Wrap(err, "name")
	}

	stationBits, err := h.bits("station")
	if err != nil {
		return err
	}
	ref, err := s.readInt(stationBits)
	if err != nil {
		return errors.Wrap(err, "reference station")
	}
	if ref >= 0 {
		idx := int(ref)
		st.ReferenceIndex = &idx
	}
	return nil
}

func (r *stationReader) readMetadata(st *Station) error {
	s := r.s

	var err error
	if st.Country, err = r.readIndexed("country", r.t.countries); err != nil {
		return errors.Wrap(err, "country")
	}
	if st.Source, err = s.readCString(); err != nil {
		return errors.Wrap(err, "source")
	}
	if st.Restriction, err = r.readIndexed("restriction", r.t.restrictions); err != nil {
		return errors.Wrap(err, "restriction")
	}
	if st.Comments, err = s.readCString(); err != nil {
		return errors.Wrap(err, "comments")
	}
	if st.Notes, err = s.readCString(); err != nil {
		return errors.Wrap(err, "notes")
	}
	if st.Legalese, err = r.readIndexed("legalese", r.t.legaleses); err != nil {
		return errors.Wrap(err, "legalese")
	}
	if st.StationIDContext, err = s.readCString(); err != nil {
		return errors.Wrap(err, "station id context")
	}
	if st.StationID, err = s.readCString(); err != nil {
		return errors.Wrap(err, "station id")
	}

	dateBits, err := r.h.bits("date")
	if err != nil {
		return err
	}
	imported, err := s.readUint(dateBits)
	if err != nil {
		return errors.Wrap(err, "date imported")
	}
	st.DateImported = int(imported)

	if st.XFields, err = s.readCString(); err != nil {
		return errors.Wrap(err, "xfields")
	}
	if st.DirectionUnits, err = r.readIndexed("direction_unit", r.t.dirUnits); err != nil {
		return errors.Wrap(err, "direction units")
	}

	if st.MinDirection, err = r.readDirection(); err != nil {
		return errors.Wrap(err, "min direction")
	}
	if st.MaxDirection, err = r.readDirection(); err != nil {
		return errors.Wrap(err, "max direction")
	}

	if st.LevelUnits, err = r.readIndexed("level_unit", r.t.levelUnits); err != nil {
		return errors.Wrap(err, "level units")
	}
	return nil
}

func (r *stationReader) readReferenceBody(st *Station) error {
	h, s := r.h, r.s
	ref := &ReferenceData{}

	datumOffsetBits, err := h.bits("datum_offset")
	if err != nil {
		return err
	}
	if ref.DatumOffset, err = s.readScaled(datumOffsetBits, h.scale("datum_offset")); err != nil {
		return errors.Wrap(err, "datum offset")
	}
	if ref.Datum, err = r.readIndexed("datum", r.t.datums); err != nil {
		return errors.Wrap(err, "datum")
	}

	timeBits, err := h.bits("time")
	if err != nil {
		return err
	}
	zone, err := s.readInt(timeBits)
	if err != nil {
		return errors.Wrap(err, "zone offset")
	}
	ref.ZoneOffset = int(zone)

	dateBits, err := h.bits("date")
	if err != nil {
		return err
	}
	expiration, err := s.readUint(dateBits)
	if err != nil {
		return errors.Wrap(err, "expiration date")
	}
	ref.ExpirationDate = int(expiration)

	monthsBits, err := h.bits("months_on_station")
	if err != nil {
		return err
	}
	months, err := s.readUint(monthsBits)
	if err != nil {
		return errors.Wrap(err, "months on station")
	}
	ref.MonthsOnStation = int(months)

	lastDate, err := s.readUint(dateBits)
	if err != nil {
		return errors.Wrap(err, "last date on station")
	}
	ref.LastDateOnStation = int(lastDate)

	confidenceBits, err := h.bits("confidence_value")
	if err != nil {
		return err
	}
	confidence, err := s.readUint(confidenceBits)
	if err != nil {
		return errors.Wrap(err, "confidence")
	}
	ref.Confidence = int(confidence)

	// Amplitude/epoch pairs arrive as a sparse list over the full
	// constituent range; unlisted constituents stay zero.
	nc := h.mustInt("constituents")
	ref.Amplitudes = make([]float64, nc)
	ref.Epochs = make([]float64, nc)

	constituentBits, err := h.bits("constituent")
	if err != nil {
		return err
	}
	amplitudeBits, err := h.bits("amplitude")
	if err != nil {
		return err
	}
	epochBits, err := h.bits("epoch")
	if err != nil {
		return err
	}

	count, err := s.readUint(constituentBits)
	if err != nil {
		return errors.Wrap(err, "constituent count")
	}
	for i := 0; i < int(count); i++ {
		idx, err := s.readUint(constituentBits)
		if err != nil {
			return errors.Wrapf(err, "constituent index %d", i)
		}
		amp, err := s.readUintScaled(amplitudeBits, h.scale("amplitude"))
		if err != nil {
			return errors.Wrapf(err, "amplitude %d", i)
		}
		epoch, err := s.readUintScaled(epochBits, h.scale("epoch"))
		if err != nil {
			return errors.Wrapf(err, "epoch %d", i)
		}
		if int(idx) >= nc {
			continue // out-of-range entries consume bits but carry no data
		}
		ref.Amplitudes[idx] = amp
		ref.Epochs[idx] = epoch
	}

	st.Reference = ref
	return nil
}

func (r *stationReader) readSubordinateBody(st *Station) error {
	h, s := r.h, r.s
	sub := &SubordinateData{}

	timeBits, err := h.bits("time")
	if err != nil {
		return err
	}
	levelAddBits, err := h.bits("level_add")
	if err != nil {
		return err
	}
	levelMultiplyBits, err := h.bits("level_multiply")
	if err != nil {
		return err
	}

	if sub.MinTimeAdd, err = r.readTimeOffset(timeBits); err != nil {
		return errors.Wrap(err, "min time add")
	}
	if sub.MinLevelAdd, err = s.readScaled(levelAddBits, h.scale("level_add")); err != nil {
		return errors.Wrap(err, "min level add")
	}
	if sub.MinLevelMultiply, err = r.readLevelMultiply(levelMultiplyBits); err != nil {
		return errors.Wrap(err, "min level multiply")
	}
	if sub.MaxTimeAdd, err = r.readTimeOffset(timeBits); err != nil {
		return errors.Wrap(err, "max time add")
	}
	if sub.MaxLevelAdd, err = s.readScaled(levelAddBits, h.scale("level_add")); err != nil {
		return errors.Wrap(err, "max level add")
	}
	if sub.MaxLevelMultiply, err = r.readLevelMultiply(levelMultiplyBits); err != nil {
		return errors.Wrap(err, "max level multiply")
	}

	if sub.FloodBegins, err = r.readSlackOffset(timeBits); err != nil {
		return errors.Wrap(err, "flood begins")
	}
	if sub.EbbBegins, err = r.readSlackOffset(timeBits); err != nil {
		return errors.Wrap(err, "ebb begins")
	}

	st.Subordinate = sub
	return nil
}

// readIndexed reads a table index of the field's declared width and
// resolves it against the table. An index past the populated slots of a
// sentinel-shaped table resolves to "".
func (r *stationReader) readIndexed(field string, table []string) (string, error) {
	bits, err := r.h.bits(field)
	if err != nil {
		return "", err
	}
	idx, err := r.s.readUint(bits)
	if err != nil {
		return "", err
	}
	if int(idx) >= len(table) {
		return "", nil
	}
	return table[idx], nil
}

// readDirection reads a direction field, mapping the 361 sentinel to nil.
func (r *stationReader) readDirection() (*int, error) {
	bits, err := r.h.bits("direction")
	if err != nil {
		return nil, err
	}
	raw, err := r.s.readUint(bits)
	if err != nil {
		return nil, err
	}
	if raw == nullDirection {
		return nil, nil
	}
	deg := int(raw)
	return &deg, nil
}

// readTimeOffset reads a signed ±HHMM field and decodes it to minutes.
func (r *stationReader) readTimeOffset(timeBits int) (int, error) {
	raw, err := r.s.readInt(timeBits)
	if err != nil {
		return 0, err
	}
	return hhmmToMinutes(raw), nil
}

// readSlackOffset reads a flood/ebb field, mapping the raw 0xA00 sentinel
// to nil before any ±HHMM decoding.
func (r *stationReader) readSlackOffset(timeBits int) (*int, error) {
	raw, err := r.s.readInt(timeBits)
	if err != nil {
		return nil, err
	}
	if raw == nullSlackOffset {
		return nil, nil
	}
	m := hhmmToMinutes(raw)
	return &m, nil
}

// readLevelMultiply reads an unsigned scaled multiplier; a raw zero means
// "no multiplier" and decodes to the identity 1.0.
func (r *stationReader) readLevelMultiply(bits int) (float64, error) {
	raw, err := r.s.readUint(bits)
	if err != nil {
		return 0, err
	}
	if raw == 0 {
		return 1.0, nil
	}
	return float64(raw) / r.h.scale("level_multiply"), nil
}

// hhmmToMinutes decodes a signed ±HHMM integer: the low two decimal digits
// hold minutes, the rest hours. -130 → -90 minutes.
func hhmmToMinutes(raw int32) int {
	if raw == 0 {
		return 0
	}
	sign := 1
	if raw < 0 {
		sign = -1
		raw = -raw
	}
	return sign * (int(raw)/100*60 + int(raw)%100)
}
