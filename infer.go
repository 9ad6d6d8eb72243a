package tcd

import "math"

// Inference coefficients, Schureman (1971) article 230: each minor
// constituent's equilibrium amplitude as a fraction of its principal's.
const (
	m2Coeff = 0.9085
	o1Coeff = 0.3771
)

type inferredConstituent struct {
	name  string
	coeff float64
}

var semidiurnalInferred = []inferredConstituent{
	{"N2", 0.1759}, {"NU2", 0.0341}, {"MU2", 0.0219}, {"2N2", 0.0235},
	{"LDA2", 0.0066}, {"T2", 0.0248}, {"R2", 0.0035}, {"L2", 0.0251},
	{"K2", 0.1151}, {"KJ2", 0.0064},
}

var diurnalInferred = []inferredConstituent{
	{"OO1", 0.0163}, {"M1", 0.0209}, {"J1", 0.0297}, {"RHO1", 0.0142},
	{"Q1", 0.0730}, {"2Q1", 0.0097}, {"P1", 0.1755}, {"PI1", 0.0103},
	{"PHI1", 0.0076}, {"PSI1", 0.0042},
}

// inferConstituents fills in missing constituents on a reference station
// from the four principal ones: semidiurnal targets scale off M2 and
// interpolate epochs toward S2, diurnal targets scale off O1 and
// interpolate toward K1. Amplitudes scale linearly with the principal;
// epochs are interpolated linearly in frequency space. Only entries with
// both amplitude and epoch still zero are eligible, which makes the
// operation idempotent. Computed epochs are not reduced modulo 360.
//
// Returns false, without error, when any precondition fails: the station
// is not a reference, M2/S2/K1/O1 are not all in the constituent table, or
// any of their amplitudes on this station is zero.
func inferConstituents(st *Station, cs []Constituent) bool {
	if !st.IsReference() || st.Reference == nil {
		return false
	}
	ref := st.Reference
	if len(ref.Amplitudes) == 0 || len(ref.Epochs) == 0 {
		return false
	}

	m2 := findConstituent(cs, "M2")
	s2 := findConstituent(cs, "S2")
	k1 := findConstituent(cs, "K1")
	o1 := findConstituent(cs, "O1")
	if m2 < 0 || s2 < 0 || k1 < 0 || o1 < 0 {
		return false
	}
	for _, i := range []int{m2, s2, k1, o1} {
		if ref.Amplitudes[i] <= 0 {
			return false
		}
	}

	inferBand(ref, cs, semidiurnalInferred, m2, s2, m2Coeff)
	inferBand(ref, cs, diurnalInferred, o1, k1, o1Coeff)
	return true
}

// inferBand applies one band's recipe. lower is the principal the
// amplitude ratio is anchored to (M2 or O1); upper is the other principal
// the epoch interpolation runs toward (S2 or K1).
func inferBand(ref *ReferenceData, cs []Constituent, targets []inferredConstituent, lower, upper int, lowerCoeff float64) {
	e1, e2 := unwrapPair(ref.Epochs[lower], ref.Epochs[upper])
	for _, tgt := range targets {
		i := findConstituent(cs, tgt.name)
		if i < 0 {
			continue
		}
		if ref.Amplitudes[i] != 0 || ref.Epochs[i] != 0 {
			continue // already set, never overwritten
		}
		ref.Amplitudes[i] = tgt.coeff / lowerCoeff * ref.Amplitudes[lower]
		r := (cs[i].Speed - cs[lower].Speed) / (cs[upper].Speed - cs[lower].Speed)
		ref.Epochs[i] = e1 + r*(e2-e1)
	}
}

// unwrapPair adds 360° to whichever epoch is smaller when the pair is more
// than 180° apart, so interpolation takes the short way around the circle.
func unwrapPair(a, b float64) (float64, float64) {
	if math.Abs(b-a) > 180 {
		if a < b {
			a += 360
		} else {
			b += 360
		}
	}
	return a, b
}
