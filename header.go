package tcd

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// asciiHeaderEnd terminates the leading ASCII region of every TCD file.
const asciiHeaderEnd = "[END OF ASCII HEADER DATA]"

// Header is the summary metadata decoded from the ASCII preamble, plus the
// 4-byte value that follows it on disk. The checksum is exposed read-only
// and is never verified.
type Header struct {
	Version      string
	LastModified string
	MajorRev     int
	MinorRev     int

	HeaderSize      int
	NumberOfRecords int
	Constituents    int
	StartYear       int
	NumberOfYears   int
	EndOfFile       int

	Checksum uint32
}

// paramValue is one typed header value. Integers also populate f so the
// scale/offset accessors need no kind switch.
type paramValue struct {
	isNum bool
	i     int
	f     float64
	s     string
}

// headerParams is the decoded `[KEY] = VALUE` block. The TCD format is
// self-describing: every field width, scale and offset used by the later
// stages comes from here, never from constants. Recognized keys live in
// params; anything else is kept in unknown and never read by the decoder.
type headerParams struct {
	params  map[string]paramValue
	unknown map[string]string
}

// textKeys hold free text and are stored verbatim even when the value
// happens to look numeric (a version of "2.0", a date-only last-modified).
var textKeys = map[string]bool{
	"version":       true,
	"last_modified": true,
}

// requiredKeys must be present before any later stage may run.
var requiredKeys = []string{
	"header_size",
	"number_of_records",
	"constituents",
	"start_year",
	"number_of_years",
}

// recognizedKeys is the closed set of parameters the decoder consumes.
var recognizedKeys = map[string]bool{
	"version": true, "major_rev": true, "minor_rev": true,
	"last_modified": true, "header_size": true, "end_of_file": true,

	"number_of_records": true, "start_year": true, "number_of_years": true,

	"constituents": true, "constituent_bits": true, "constituent_size": true,
	"speed_bits": true, "speed_scale": true, "speed_offset": true,
	"equilibrium_bits": true, "equilibrium_scale": true, "equilibrium_offset": true,
	"node_bits": true, "node_scale": true, "node_offset": true,
	"amplitude_bits": true, "amplitude_scale": true,
	"epoch_bits": true, "epoch_scale": true,

	"record_type_bits": true, "record_size_bits": true, "station_bits": true,
	"latitude_bits": true, "latitude_scale": true,
	"longitude_bits": true, "longitude_scale": true,
	"datum_offset_bits": true, "datum_offset_scale": true,
	"date_bits": true, "months_on_station_bits": true,
	"confidence_value_bits": true, "time_bits": true,
	"level_add_bits": true, "level_add_scale": true,
	"level_multiply_bits": true, "level_multiply_scale": true,
	"direction_bits": true,

	"level_unit_bits": true, "level_unit_types": true, "level_unit_size": true,
	"direction_unit_bits": true, "direction_unit_types": true, "direction_unit_size": true,
	"restriction_bits": true, "restriction_types": true, "restriction_size": true,
	"pedigree_bits": true, "pedigree_types": true, "pedigree_size": true,
	"tzfiles": true, "tzfile_bits": true, "tzfile_size": true,
	"countries": true, "country_bits": true, "country_size": true,
	"datum_types": true, "datum_bits": true, "datum_size": true,
	"legaleses": true, "legalese_bits": true, "legalese_size": true,
}

// Input sanity limits, all far above any real harmonics file. The header
// is attacker-controlled, and every count below sizes an allocation or a
// loop, so each one is bounded before use.
const (
	maxHeaderSize       = 1 << 24
	maxRecordCount      = 1 << 24
	maxConstituentCount = 1 << 16
	maxYearCount        = 1 << 12
	maxTableSlotSize    = 1 << 20
	maxTableTypes       = 1 << 16
)

var (
	headerLineRe = regexp.MustCompile(`^\[([^\]]+)\]\s*=\s*(.*)$`)
	intValueRe   = regexp.MustCompile(`^[+-]?[0-9]+$`)
	wsRunRe      = regexp.MustCompile(`\s+`)
)

// normalizeKey lowercases a bracketed key and folds whitespace runs to '_':
// "LEVEL UNIT  BITS" → "level_unit_bits".
func normalizeKey(raw string) string {
	return wsRunRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), "_")
}

// parseValue types a raw VALUE string: integer if it is an optionally signed
// digit run, float if it contains a decimal point and parses, text otherwise.
func parseValue(raw string) paramValue {
	raw = strings.TrimSpace(raw)
	if intValueRe.MatchString(raw) {
		i, err := strconv.Atoi(raw)
		if err == nil {
			return paramValue{isNum: true, i: i, f: float64(i)}
		}
	}
	if strings.Contains(raw, ".") {
		f, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			return paramValue{isNum: true, i: int(f), f: f}
		}
	}
	return paramValue{s: raw}
}

// parseHeaderParams consumes ASCII lines from the stream up to and including
// the terminator line, then validates the required-key contract and every
// declared bit width.
func parseHeaderParams(s *bitStream) (*headerParams, error) {
	h := &headerParams{
		params:  make(map[string]paramValue),
		unknown: make(map[string]string),
	}
	for {
		line, err := readHeaderLine(s)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) == asciiHeaderEnd {
			break
		}
		m := headerLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue // blank or free-form line
		}
		key := normalizeKey(m[1])
		switch {
		case !recognizedKeys[key]:
			h.unknown[key] = strings.TrimSpace(m[2])
		case textKeys[key]:
			h.params[key] = paramValue{s: strings.TrimSpace(m[2])}
		default:
			h.params[key] = parseValue(m[2])
		}
	}

	for _, key := range requiredKeys {
		if _, ok := h.params[key]; !ok {
			return nil, errors.Wrapf(ErrFormat, "header missing required key %q", key)
		}
	}
	for key, v := range h.params {
		switch {
		case strings.HasSuffix(key, "_bits"):
			if v.i < 1 || v.i > 32 {
				return nil, errors.Wrapf(ErrFormat, "header %s=%d outside 1..32", key, v.i)
			}
		case strings.HasSuffix(key, "_size") && key != "header_size":
			if v.i < 0 || v.i > maxTableSlotSize {
				return nil, errors.Wrapf(ErrFormat, "header %s=%d out of range", key, v.i)
			}
		case strings.HasSuffix(key, "_types"):
			if v.i < 0 || v.i > maxTableTypes {
				return nil, errors.Wrapf(ErrFormat, "header %s=%d out of range", key, v.i)
			}
		}
	}
	for key, limit := range map[string]int{
		"header_size":       maxHeaderSize,
		"number_of_records": maxRecordCount,
		"constituents":      maxConstituentCount,
		"number_of_years":   maxYearCount,
	} {
		if v := h.mustInt(key); v < 0 || v > limit {
			return nil, errors.Wrapf(ErrFormat, "header %s=%d out of range", key, v)
		}
	}
	return h, nil
}

// readHeaderLine collects bytes up to a newline. The ASCII region precedes
// all bit-packed data, so byte-at-a-time reads through the bit stream keep
// its position accurate for the later header-size seek.
func readHeaderLine(s *bitStream) (string, error) {
	var raw []byte
	for {
		b, err := s.readUint(8)
		if err != nil {
			return "", errors.Wrap(err, "ASCII header")
		}
		if b == '\n' {
			break
		}
		if b != '\r' {
			raw = append(raw, byte(b))
		}
	}
	return string(raw), nil
}

// int returns the integer value of key, or (0, false) if absent.
func (h *headerParams) int(key string) (int, bool) {
	v, ok := h.params[key]
	if !ok {
		return 0, false
	}
	return v.i, true
}

// mustInt returns the integer value of a key that parseHeaderParams has
// already validated as present.
func (h *headerParams) mustInt(key string) int {
	return h.params[key].i
}

// intOr returns the integer value of key, or def if absent.
func (h *headerParams) intOr(key string, def int) int {
	if v, ok := h.int(key); ok {
		return v
	}
	return def
}

// str returns the text value of key, or "" if absent.
func (h *headerParams) str(key string) string {
	return h.params[key].s
}

// bits returns the declared width of a variable-width field, e.g.
// bits("speed") → the value of speed_bits. Missing widths are a format
// error surfaced at the point of use.
func (h *headerParams) bits(field string) (int, error) {
	v, ok := h.int(field + "_bits")
	if !ok {
		return 0, errors.Wrapf(ErrFormat, "header missing %s_bits", field)
	}
	return v, nil
}

// scale returns the divisor for a scaled field, defaulting to 1.
func (h *headerParams) scale(field string) float64 {
	if v, ok := h.params[field+"_scale"]; ok && v.f != 0 {
		return v.f
	}
	return 1
}

// offset returns the pre-divisor addend for a field, defaulting to 0.
func (h *headerParams) offset(field string) float64 {
	return h.params[field+"_offset"].f
}

// majorRev defaults to 1: files written before the revision keys existed
// are all v1.
func (h *headerParams) majorRev() int { return h.intOr("major_rev", 1) }

// info assembles the public Header from the parsed parameters.
func (h *headerParams) info() Header {
	return Header{
		Version:         h.str("version"),
		LastModified:    h.str("last_modified"),
		MajorRev:        h.majorRev(),
		MinorRev:        h.intOr("minor_rev", 0),
		HeaderSize:      h.mustInt("header_size"),
		NumberOfRecords: h.mustInt("number_of_records"),
		Constituents:    h.mustInt("constituents"),
		StartYear:       h.mustInt("start_year"),
		NumberOfYears:   h.mustInt("number_of_years"),
		EndOfFile:       h.intOr("end_of_file", 0),
	}
}
