package tcd_test

import (
	"fmt"
	"strings"
)

// This file builds a small synthetic TCD v2 file in memory, in the same
// spirit as a committed harmonics fixture but fully self-describing: the
// encoding parameters below drive both the generated ASCII header and the
// bit packing, so the two cannot drift apart.

// Fixture encoding parameters.
const (
	fxHeaderSize = 2048
	fxRecords    = 5
	fxNumConsts  = 6
	fxStartYear  = 2000
	fxYears      = 3

	fxConstituentBits = 8
	fxConstituentSize = 10
	fxSpeedBits       = 31
	fxSpeedScale      = 10000000
	fxEqBits          = 16
	fxEqScale         = 100
	fxNodeBits        = 15
	fxNodeScale       = 10000
	fxAmpBits         = 19
	fxAmpScale        = 10000
	fxEpochBits       = 16
	fxEpochScale      = 100

	fxRecordTypeBits  = 4
	fxRecordSizeBits  = 16
	fxStationBits     = 18
	fxLatBits         = 25
	fxLonBits         = 26
	fxLatLonScale     = 100000
	fxDatumOffBits    = 28
	fxDatumOffScale   = 10000
	fxDateBits        = 27
	fxMonthsBits      = 10
	fxConfidenceBits  = 4
	fxTimeBits        = 13
	fxLevelAddBits    = 16
	fxLevelAddScale   = 1000
	fxLevelMultBits   = 16
	fxLevelMultScale  = 1000
	fxDirectionBits   = 9
	fxLevelUnitBits   = 3
	fxLevelUnitSize   = 15
	fxDirUnitBits     = 2
	fxDirUnitSize     = 15
	fxRestrictionBits = 2
	fxRestrictionSize = 30
	fxTzfileBits      = 4
	fxTzfileSize      = 30
	fxCountryBits     = 4
	fxCountrySize     = 20
	fxDatumBits       = 4
	fxDatumSize       = 28
	fxLegaleseBits    = 2
	fxLegaleseSize    = 30
)

var (
	fxLevelUnits   = []string{"feet", "meters"}
	fxDirUnits     = []string{"degrees true", "knots"}
	fxRestrictions = []string{"Public Domain", "Non-commercial use only"}
	fxTimezones    = []string{":America/New_York", ":America/Los_Angeles", ":Etc/GMT"}
	fxCountries    = []string{"Unknown", "United States"}
	fxDatums       = []string{"Mean Lower Low Water", "Mean Sea Level"}
	fxLegaleses    = []string{"NULL"}
	fxConstNames   = []string{"M2", "S2", "N2", "K1", "O1", "Q1"}

	// Raw speeds at scale 1e7: M2 28.9841042°/h and friends.
	fxSpeedRaws = []uint64{289841042, 300000000, 284397295, 150410686, 139430356, 133986609}
)

// fxEqRaw and fxNodeRaw generate deterministic per-cell matrix values.
func fxEqRaw(c, y int) uint64   { return uint64(((c*40 + y*10) % 360) * fxEqScale) }
func fxNodeRaw(c, y int) uint64 { return uint64(9000 + 100*(c+y)) }

// fxWriter packs values MSB-first, mirroring the decoder's bit order.
type fxWriter struct {
	buf   []byte
	acc   uint64
	nbits uint
}

func (w *fxWriter) bits(v uint64, n int) {
	v &= 1<<uint(n) - 1
	w.acc = w.acc<<uint(n) | v
	w.nbits += uint(n)
	for w.nbits >= 8 {
		w.nbits -= 8
		w.buf = append(w.buf, byte(w.acc>>w.nbits))
	}
	w.acc &= 1<<w.nbits - 1
}

func (w *fxWriter) align() {
	if w.nbits > 0 {
		w.bits(0, int(8-w.nbits))
	}
}

// latin1 encodes a string as ISO-8859-1 bytes; fixture strings stay in
// the U+00FF range.
func latin1(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		out = append(out, byte(r))
	}
	return out
}

// fxRecord accumulates (value, width) operations so a station record can
// be measured before its size field is emitted.
type fxRecord struct {
	ops  []func(w *fxWriter)
	nbit int
}

func (r *fxRecord) uint(v uint64, n int) {
	r.ops = append(r.ops, func(w *fxWriter) { w.bits(v, n) })
	r.nbit += n
}

func (r *fxRecord) int(v int64, n int) { r.uint(uint64(v), n) }

func (r *fxRecord) cstring(s string) {
	raw := latin1(s)
	r.ops = append(r.ops, func(w *fxWriter) {
		for _, b := range raw {
			w.bits(uint64(b), 8)
		}
		w.bits(0, 8)
	})
	r.nbit += (len(raw) + 1) * 8
}

// emit writes the record's size field, replays the body, and pads to the
// declared byte length. padBytes > 0 exercises the decoder's rule that
// the embedded record size, not the field widths, is authoritative.
func (r *fxRecord) emit(w *fxWriter, padBytes int) {
	size := (fxRecordSizeBits+r.nbit+7)/8 + padBytes
	w.bits(uint64(size), fxRecordSizeBits)
	for _, op := range r.ops {
		op(w)
	}
	w.align()
	for i := 0; i < padBytes; i++ {
		w.buf = append(w.buf, 0)
	}
}

// fxSlot is one NUL-padded fixed-size table slot.
func fxSlot(buf []byte, s string, size int) []byte {
	raw := latin1(s)
	if len(raw) >= size {
		panic(fmt.Sprintf("fixture slot %q overflows %d", s, size))
	}
	slot := make([]byte, size)
	copy(slot, raw)
	return append(buf, slot...)
}

// fxSentinelTable writes entries, the __END__ marker, and zero fill out
// to the table's full 2^bits extent.
func fxSentinelTable(buf []byte, entries []string, bits, size int) []byte {
	for _, e := range entries {
		buf = fxSlot(buf, e, size)
	}
	buf = fxSlot(buf, "__END__", size)
	for i := len(entries) + 1; i < 1<<bits; i++ {
		buf = fxSlot(buf, "", size)
	}
	return buf
}

type fxStationSpec struct {
	name     string
	typ      int
	lat, lon int64 // raw, at fxLatLonScale
	tz       int
	refIdx   int64 // -1 for reference stations

	country    int
	source     string
	comments   string
	levelUnit  int
	dirUnit    int
	minDir     uint64 // raw; 361 = absent
	maxDir     uint64

	// reference body
	datumOffRaw int64
	datum       int
	zoneOffset  int64
	months      uint64
	lastDate    uint64
	confidence  uint64
	harmonics   [][3]uint64 // constituent index, amplitude raw, epoch raw

	// subordinate body
	minTimeRaw, maxTimeRaw   int64
	minLevelAdd, maxLevelAdd int64
	minMultRaw, maxMultRaw   uint64
	floodRaw, ebbRaw         int64
}

// fxStations is the fixture's station set: two references around San
// Francisco and Florida, then a simple subordinate, a current, and a
// subordinate with diverging offsets but no direction data.
var fxStations = []fxStationSpec{
	{
		name: "San Francisco, San Francisco Bay, California",
		typ:  1, lat: 3780670, lon: -12246500, tz: 1, refIdx: -1,
		country: 1, source: "NOS", comments: "", levelUnit: 0, dirUnit: 0,
		minDir: 361, maxDir: 361,
		datumOffRaw: 28000, datum: 0, zoneOffset: -800,
		months: 12, lastDate: 20031231, confidence: 9,
		harmonics: [][3]uint64{
			{0, 18000, 19000}, // M2 1.8 ft, 190°
			{1, 4500, 21000},  // S2 0.45 ft, 210°
			{3, 12000, 10500}, // K1 1.2 ft, 105°
			{4, 7500, 9000},   // O1 0.75 ft, 90°
		},
	},
	{
		name: "Hillsboro Inlet, Florida",
		typ:  1, lat: 2625830, lon: -8008000, tz: 0, refIdx: -1,
		country: 1, source: "NOS", comments: "Año Nuevo survey set",
		levelUnit: 0, dirUnit: 0, minDir: 361, maxDir: 361,
		datumOffRaw: 11000, datum: 1, zoneOffset: -500,
		months: 6, lastDate: 20021130, confidence: 7,
		harmonics: [][3]uint64{
			{0, 9000, 19500}, {1, 2200, 21500}, {2, 2500, 18500},
			{3, 3100, 10000}, {4, 1600, 9500}, {5, 300, 8000},
		},
	},
	{
		name: "Oyster Point Marina, San Francisco Bay, California",
		typ:  2, lat: 3766500, lon: -12238300, tz: 1, refIdx: 0,
		country: 1, source: "NOS", levelUnit: 0, dirUnit: 0,
		minDir: 361, maxDir: 361,
		minTimeRaw: 25, maxTimeRaw: 25,
		minLevelAdd: 100, maxLevelAdd: 100,
		minMultRaw: 0, maxMultRaw: 0,
		floodRaw: 0xA00, ebbRaw: 0xA00,
	},
	{
		name: "Golden Gate Bridge, California Current",
		typ:  2, lat: 3781970, lon: -12247860, tz: 1, refIdx: 0,
		country: 1, source: "NOS", levelUnit: 0, dirUnit: 0,
		minDir: 120, maxDir: 300,
		minTimeRaw: -130, maxTimeRaw: 115,
		minLevelAdd: 0, maxLevelAdd: 0,
		minMultRaw: 1200, maxMultRaw: 1200,
		floodRaw: 35, ebbRaw: -45,
	},
	{
		name: "Redwood City, San Francisco Bay, California",
		typ:  2, lat: 3750670, lon: -12221000, tz: 1, refIdx: 0,
		country: 1, source: "NOS", levelUnit: 0, dirUnit: 0,
		minDir: 361, maxDir: 361,
		minTimeRaw: 30, maxTimeRaw: 105,
		minLevelAdd: 200, maxLevelAdd: -300,
		minMultRaw: 900, maxMultRaw: 1100,
		floodRaw: 0xA00, ebbRaw: 0xA00,
	},
}

func (sp *fxStationSpec) build() *fxRecord {
	r := &fxRecord{}
	r.uint(uint64(sp.typ), fxRecordTypeBits)
	r.int(sp.lat, fxLatBits)
	r.int(sp.lon, fxLonBits)
	r.uint(uint64(sp.tz), fxTzfileBits)
	r.cstring(sp.name)
	r.int(sp.refIdx, fxStationBits)

	r.uint(uint64(sp.country), fxCountryBits)
	r.cstring(sp.source)
	r.uint(0, fxRestrictionBits) // Public Domain
	r.cstring(sp.comments)
	r.cstring("") // notes
	r.uint(0, fxLegaleseBits)
	r.cstring("NOS")          // station id context
	r.cstring("fixture")      // station id
	r.uint(20040101, fxDateBits) // date imported
	r.cstring("")             // xfields
	r.uint(uint64(sp.dirUnit), fxDirUnitBits)
	r.uint(sp.minDir, fxDirectionBits)
	r.uint(sp.maxDir, fxDirectionBits)
	r.uint(uint64(sp.levelUnit), fxLevelUnitBits)

	if sp.typ == 1 {
		r.int(sp.datumOffRaw, fxDatumOffBits)
		r.uint(uint64(sp.datum), fxDatumBits)
		r.int(sp.zoneOffset, fxTimeBits)
		r.uint(0, fxDateBits) // expiration date
		r.uint(sp.months, fxMonthsBits)
		r.uint(sp.lastDate, fxDateBits)
		r.uint(sp.confidence, fxConfidenceBits)
		r.uint(uint64(len(sp.harmonics)), fxConstituentBits)
		for _, h := range sp.harmonics {
			r.uint(h[0], fxConstituentBits)
			r.uint(h[1], fxAmpBits)
			r.uint(h[2], fxEpochBits)
		}
	} else {
		r.int(sp.minTimeRaw, fxTimeBits)
		r.int(sp.minLevelAdd, fxLevelAddBits)
		r.uint(sp.minMultRaw, fxLevelMultBits)
		r.int(sp.maxTimeRaw, fxTimeBits)
		r.int(sp.maxLevelAdd, fxLevelAddBits)
		r.uint(sp.maxMultRaw, fxLevelMultBits)
		r.int(sp.floodRaw, fxTimeBits)
		r.int(sp.ebbRaw, fxTimeBits)
	}
	return r
}

// buildFixtureTCD assembles the whole file: ASCII header padded to
// fxHeaderSize, checksum, string tables, the three packed constituent
// sections (each byte-aligned), and the station records. Record 1 gets
// three bytes of trailing padding.
func buildFixtureTCD() []byte {
	var body []byte
	body = append(body, 0x12, 0x34, 0xAB, 0xCD) // checksum placeholder

	for _, u := range fxLevelUnits {
		body = fxSlot(body, u, fxLevelUnitSize)
	}
	for _, u := range fxDirUnits {
		body = fxSlot(body, u, fxDirUnitSize)
	}
	body = fxSentinelTable(body, fxRestrictions, fxRestrictionBits, fxRestrictionSize)
	body = fxSentinelTable(body, fxTimezones, fxTzfileBits, fxTzfileSize)
	body = fxSentinelTable(body, fxCountries, fxCountryBits, fxCountrySize)
	body = fxSentinelTable(body, fxDatums, fxDatumBits, fxDatumSize)
	body = fxSentinelTable(body, fxLegaleses, fxLegaleseBits, fxLegaleseSize)
	for _, n := range fxConstNames {
		body = fxSlot(body, n, fxConstituentSize)
	}

	// Speeds, equilibrium matrix, node-factor matrix: three independently
	// byte-aligned sections.
	w := &fxWriter{}
	for _, raw := range fxSpeedRaws {
		w.bits(raw, fxSpeedBits)
	}
	w.align()
	for c := 0; c < fxNumConsts; c++ {
		for y := 0; y < fxYears; y++ {
			w.bits(fxEqRaw(c, y), fxEqBits)
		}
	}
	w.align()
	for c := 0; c < fxNumConsts; c++ {
		for y := 0; y < fxYears; y++ {
			w.bits(fxNodeRaw(c, y), fxNodeBits)
		}
	}
	w.align()

	for i := range fxStations {
		pad := 0
		if i == 1 {
			pad = 3
		}
		fxStations[i].build().emit(w, pad)
	}
	body = append(body, w.buf...)

	header := fxHeaderText(fxHeaderSize + len(body))
	if len(header) > fxHeaderSize {
		panic("fixture ASCII header overflows declared size")
	}

	file := make([]byte, 0, fxHeaderSize+len(body))
	file = append(file, header...)
	file = append(file, make([]byte, fxHeaderSize-len(header))...)
	return append(file, body...)
}

func fxHeaderText(endOfFile int) string {
	lines := []string{
		"[VERSION] = harmonics-fixture 1.0",
		"[MAJOR REV] = 2",
		"[MINOR REV] = 2",
		"[LAST MODIFIED] = 2004-12-01 00:00:00",
		fmt.Sprintf("[HEADER SIZE] = %d", fxHeaderSize),
		fmt.Sprintf("[END OF FILE] = %d", endOfFile),
		fmt.Sprintf("[NUMBER OF RECORDS] = %d", fxRecords),
		fmt.Sprintf("[START YEAR] = %d", fxStartYear),
		fmt.Sprintf("[NUMBER OF YEARS] = %d", fxYears),
		fmt.Sprintf("[CONSTITUENTS] = %d", fxNumConsts),
		fmt.Sprintf("[CONSTITUENT BITS] = %d", fxConstituentBits),
		fmt.Sprintf("[CONSTITUENT SIZE] = %d", fxConstituentSize),
		fmt.Sprintf("[SPEED BITS] = %d", fxSpeedBits),
		fmt.Sprintf("[SPEED SCALE] = %d", fxSpeedScale),
		"[SPEED OFFSET] = 0",
		fmt.Sprintf("[EQUILIBRIUM BITS] = %d", fxEqBits),
		fmt.Sprintf("[EQUILIBRIUM SCALE] = %d", fxEqScale),
		"[EQUILIBRIUM OFFSET] = 0",
		fmt.Sprintf("[NODE BITS] = %d", fxNodeBits),
		fmt.Sprintf("[NODE SCALE] = %d", fxNodeScale),
		"[NODE OFFSET] = 0",
		fmt.Sprintf("[AMPLITUDE BITS] = %d", fxAmpBits),
		fmt.Sprintf("[AMPLITUDE SCALE] = %d", fxAmpScale),
		fmt.Sprintf("[EPOCH BITS] = %d", fxEpochBits),
		fmt.Sprintf("[EPOCH SCALE] = %d", fxEpochScale),
		fmt.Sprintf("[RECORD TYPE BITS] = %d", fxRecordTypeBits),
		fmt.Sprintf("[RECORD SIZE BITS] = %d", fxRecordSizeBits),
		fmt.Sprintf("[STATION BITS] = %d", fxStationBits),
		fmt.Sprintf("[LATITUDE BITS] = %d", fxLatBits),
		fmt.Sprintf("[LATITUDE SCALE] = %d", fxLatLonScale),
		fmt.Sprintf("[LONGITUDE BITS] = %d", fxLonBits),
		fmt.Sprintf("[LONGITUDE SCALE] = %d", fxLatLonScale),
		fmt.Sprintf("[DATUM OFFSET BITS] = %d", fxDatumOffBits),
		fmt.Sprintf("[DATUM OFFSET SCALE] = %d", fxDatumOffScale),
		fmt.Sprintf("[DATE BITS] = %d", fxDateBits),
		fmt.Sprintf("[MONTHS ON STATION BITS] = %d", fxMonthsBits),
		fmt.Sprintf("[CONFIDENCE VALUE BITS] = %d", fxConfidenceBits),
		fmt.Sprintf("[TIME BITS] = %d", fxTimeBits),
		fmt.Sprintf("[LEVEL ADD BITS] = %d", fxLevelAddBits),
		fmt.Sprintf("[LEVEL ADD SCALE] = %d", fxLevelAddScale),
		fmt.Sprintf("[LEVEL MULTIPLY BITS] = %d", fxLevelMultBits),
		fmt.Sprintf("[LEVEL MULTIPLY SCALE] = %d", fxLevelMultScale),
		fmt.Sprintf("[DIRECTION BITS] = %d", fxDirectionBits),
		fmt.Sprintf("[LEVEL UNIT BITS] = %d", fxLevelUnitBits),
		fmt.Sprintf("[LEVEL UNIT TYPES] = %d", len(fxLevelUnits)),
		fmt.Sprintf("[LEVEL UNIT SIZE] = %d", fxLevelUnitSize),
		fmt.Sprintf("[DIRECTION UNIT BITS] = %d", fxDirUnitBits),
		fmt.Sprintf("[DIRECTION UNIT TYPES] = %d", len(fxDirUnits)),
		fmt.Sprintf("[DIRECTION UNIT SIZE] = %d", fxDirUnitSize),
		fmt.Sprintf("[RESTRICTION BITS] = %d", fxRestrictionBits),
		fmt.Sprintf("[RESTRICTION SIZE] = %d", fxRestrictionSize),
		fmt.Sprintf("[TZFILE BITS] = %d", fxTzfileBits),
		fmt.Sprintf("[TZFILE SIZE] = %d", fxTzfileSize),
		fmt.Sprintf("[COUNTRY BITS] = %d", fxCountryBits),
		fmt.Sprintf("[COUNTRY SIZE] = %d", fxCountrySize),
		fmt.Sprintf("[DATUM BITS] = %d", fxDatumBits),
		fmt.Sprintf("[DATUM SIZE] = %d", fxDatumSize),
		fmt.Sprintf("[LEGALESE BITS] = %d", fxLegaleseBits),
		fmt.Sprintf("[LEGALESE SIZE] = %d", fxLegaleseSize),
		"[END OF ASCII HEADER DATA]",
	}
	return strings.Join(lines, "\n") + "\n"
}
