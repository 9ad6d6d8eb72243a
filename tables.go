package tcd

import (
	"strings"

	"github.com/pkg/errors"
)

// endOfTable marks the first unused slot of a sentinel-shaped table.
const endOfTable = "__END__"

// lookupTables holds every fixed-size string table of a TCD file, in the
// order they appear on disk, plus the byte offsets of the bit-packed
// regions that follow them.
type lookupTables struct {
	levelUnits       []string
	dirUnits         []string
	restrictions     []string
	timezones        []string
	countries        []string
	datums           []string
	legaleses        []string
	constituentNames []string

	constituentDataOffset int64
	stationRecordsOffset  int64
}

// readLookupTables seeks past the ASCII header, reads the 4-byte checksum
// placeholder, and walks the string tables in their fixed on-disk order.
// It then computes the byte extents of the three bit-packed constituent
// matrices to locate the first station record. Getting these offsets exact
// is critical: station records are byte-addressed by the record size
// embedded in each record.
func readLookupTables(s *bitStream, h *headerParams) (*lookupTables, uint32, error) {
	if err := s.seek(int64(h.mustInt("header_size"))); err != nil {
		return nil, 0, err
	}
	checksum, err := s.readUint(32)
	if err != nil {
		return nil, 0, errors.Wrap(err, "checksum")
	}

	t := &lookupTables{}

	// 1: level units (exact count)
	t.levelUnits, err = readTableExact(s, h.intOr("level_unit_types", 0), h.intOr("level_unit_size", 0))
	if err != nil {
		return nil, 0, errors.Wrap(err, "level units")
	}

	// 2: direction units (exact count)
	t.dirUnits, err = readTableExact(s, h.intOr("direction_unit_types", 0), h.intOr("direction_unit_size", 0))
	if err != nil {
		return nil, 0, errors.Wrap(err, "direction units")
	}

	// 3: restrictions (sentinel)
	t.restrictions, err = readTableSentinel(s, h, "restriction")
	if err != nil {
		return nil, 0, errors.Wrap(err, "restrictions")
	}

	// 4: pedigrees exist only in v1 files; the slots are skipped, never parsed.
	if h.majorRev() < 2 {
		if bits, ok := h.int("pedigree_bits"); ok {
			skip := int64(1<<bits) * int64(h.intOr("pedigree_size", 0))
			if err := s.seek(s.pos() + skip); err != nil {
				return nil, 0, errors.Wrap(err, "pedigrees")
			}
		}
	}

	// 5: timezones (sentinel); a leading ':' on a slot is an artifact of the
	// TZ database convention and is stripped at load.
	t.timezones, err = readTableSentinel(s, h, "tzfile")
	if err != nil {
		return nil, 0, errors.Wrap(err, "timezones")
	}
	for i, tz := range t.timezones {
		t.timezones[i] = strings.TrimPrefix(tz, ":")
	}

	// 6: countries (sentinel)
	t.countries, err = readTableSentinel(s, h, "country")
	if err != nil {
		return nil, 0, errors.Wrap(err, "countries")
	}

	// 7: datums (sentinel)
	t.datums, err = readTableSentinel(s, h, "datum")
	if err != nil {
		return nil, 0, errors.Wrap(err, "datums")
	}

	// 8: legalese exists only in v2 files. When a v2 file omits the table
	// parameters, index 0 must still resolve, so a literal "NULL" slot is
	// synthesized.
	if h.majorRev() >= 2 {
		if _, ok := h.int("legalese_bits"); ok {
			t.legaleses, err = readTableSentinel(s, h, "legalese")
			if err != nil {
				return nil, 0, errors.Wrap(err, "legalese")
			}
		} else {
			t.legaleses = []string{"NULL"}
		}
	}

	// 9: constituent names (exact count)
	t.constituentNames, err = readTableExact(s, h.mustInt("constituents"), h.intOr("constituent_size", 0))
	if err != nil {
		return nil, 0, errors.Wrap(err, "constituent names")
	}

	t.constituentDataOffset = s.pos()

	off, err := constituentMatrixBytes(h)
	if err != nil {
		return nil, 0, err
	}
	t.stationRecordsOffset = t.constituentDataOffset + off
	return t, checksum, nil
}

// constituentSectionBytes returns the byte extents of the speed table and
// the two constituents×years matrices. Each section starts on its own byte
// boundary, so the three are rounded up independently; v1 files carry an
// extra wasted byte per section.
func constituentSectionBytes(h *headerParams) (speed, eq, node int64, err error) {
	nc := int64(h.mustInt("constituents"))
	ny := int64(h.mustInt("number_of_years"))

	speedBits, err := h.bits("speed")
	if err != nil {
		return 0, 0, 0, err
	}
	eqBits, err := h.bits("equilibrium")
	if err != nil {
		return 0, 0, 0, err
	}
	nodeBits, err := h.bits("node")
	if err != nil {
		return 0, 0, 0, err
	}

	round := func(bits int64) int64 { return (bits + 7) / 8 }
	if h.majorRev() < 2 {
		round = func(bits int64) int64 { return bits/8 + 1 }
	}
	return round(nc * int64(speedBits)),
		round(nc * ny * int64(eqBits)),
		round(nc * ny * int64(nodeBits)),
		nil
}

// constituentMatrixBytes is the combined extent of all three sections.
func constituentMatrixBytes(h *headerParams) (int64, error) {
	speed, eq, node, err := constituentSectionBytes(h)
	if err != nil {
		return 0, err
	}
	return speed + eq + node, nil
}

// readTableExact reads exactly count slots of slotSize bytes each.
func readTableExact(s *bitStream, count, slotSize int) ([]string, error) {
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		v, err := readTableSlot(s, slotSize)
		if err != nil {
			return nil, errors.Wrapf(err, "slot %d", i)
		}
		out = append(out, v)
	}
	return out, nil
}

// readTableSentinel reads up to 2^bits slots and stops collecting at the
// first slot equal to the __END__ marker. Slots past the sentinel are
// unused but still occupy file space, so the cursor always advances the
// table's full allocated extent.
func readTableSentinel(s *bitStream, h *headerParams, field string) ([]string, error) {
	bits, err := h.bits(field)
	if err != nil {
		return nil, err
	}
	slotSize := h.intOr(field+"_size", 0)
	if slotSize == 0 {
		return nil, nil // zero-width slots occupy no file space
	}
	maxSlots := 1 << bits

	start := s.pos()
	var out []string
	for i := 0; i < maxSlots; i++ {
		v, err := readTableSlot(s, slotSize)
		if err != nil {
			return nil, errors.Wrapf(err, "slot %d", i)
		}
		if strings.TrimSpace(v) == endOfTable {
			break
		}
		out = append(out, v)
	}
	if err := s.seek(start + int64(maxSlots)*int64(slotSize)); err != nil {
		return nil, err
	}
	return out, nil
}

// readTableSlot reads one fixed-size slot: slotSize raw bytes, truncated at
// the first NUL, decoded as ISO-8859-1.
func readTableSlot(s *bitStream, slotSize int) (string, error) {
	raw := make([]byte, slotSize)
	for i := range raw {
		b, err := s.readUint(8)
		if err != nil {
			return "", err
		}
		raw[i] = byte(b)
	}
	if i := indexNul(raw); i >= 0 {
		raw = raw[:i]
	}
	return decodeLatin1(raw)
}

func indexNul(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}
