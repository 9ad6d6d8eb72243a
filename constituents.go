package tcd

import (
	"fmt"

	"github.com/pkg/errors"
)

// Constituent is a single sinusoidal component of the tide: a fixed angular
// speed plus per-year equilibrium-argument and node-factor corrections.
// The vectors run from the database start year, one entry per year.
type Constituent struct {
	Index int
	Name  string

	// Speed is the angular speed in degrees per hour.
	Speed float64

	// Equilibrium holds the equilibrium argument (degrees) per year.
	Equilibrium []float64

	// NodeFactors holds the node factor (dimensionless, near 1.0) per year.
	NodeFactors []float64
}

// readConstituents decodes the speed table and the two constituents×years
// matrices starting at the byte offset computed by the table walk. The
// matrices are constituent-major: all years of constituent 0, then all
// years of constituent 1, and so on. Each of the three sections begins on
// its own byte boundary, so the reader re-seeks between them.
func readConstituents(s *bitStream, h *headerParams, base int64, names []string) ([]Constituent, error) {
	nc := h.mustInt("constituents")
	ny := h.mustInt("number_of_years")

	speedBits, err := h.bits("speed")
	if err != nil {
		return nil, err
	}
	eqBits, err := h.bits("equilibrium")
	if err != nil {
		return nil, err
	}
	nodeBits, err := h.bits("node")
	if err != nil {
		return nil, err
	}
	speedBytes, eqBytes, _, err := constituentSectionBytes(h)
	if err != nil {
		return nil, err
	}

	if err := s.seek(base); err != nil {
		return nil, err
	}

	out := make([]Constituent, nc)
	for i := range out {
		name := fmt.Sprintf("C%d", i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		speed, err := s.readOffsetScaled(speedBits, h.offset("speed"), h.scale("speed"))
		if err != nil {
			return nil, errors.Wrapf(err, "speed of constituent %d", i)
		}
		out[i] = Constituent{
			Index:       i,
			Name:        name,
			Speed:       speed,
			Equilibrium: make([]float64, ny),
			NodeFactors: make([]float64, ny),
		}
	}

	if err := s.seek(base + speedBytes); err != nil {
		return nil, err
	}
	for i := range out {
		for y := 0; y < ny; y++ {
			v, err := s.readOffsetScaled(eqBits, h.offset("equilibrium"), h.scale("equilibrium"))
			if err != nil {
				return nil, errors.Wrapf(err, "equilibrium of constituent %d year %d", i, y)
			}
			out[i].Equilibrium[y] = v
		}
	}
	if err := s.seek(base + speedBytes + eqBytes); err != nil {
		return nil, err
	}
	for i := range out {
		for y := 0; y < ny; y++ {
			v, err := s.readOffsetScaled(nodeBits, h.offset("node"), h.scale("node"))
			if err != nil {
				return nil, errors.Wrapf(err, "node factor of constituent %d year %d", i, y)
			}
			out[i].NodeFactors[y] = v
		}
	}
	return out, nil
}

// findConstituent returns the index of the named constituent, or -1.
// Linear search: real files top out around 170 constituents.
func findConstituent(cs []Constituent, name string) int {
	for i := range cs {
		if cs[i].Name == name {
			return i
		}
	}
	return -1
}
