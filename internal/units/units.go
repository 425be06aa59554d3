// Package units provides the missing-aware measurement primitives shared by
// every estimator: the Number value type, missing-aware reducers, the
// gap-tolerance quality filter, unit-chain constants, and the status
// classifiers applied to raw field records.
package units

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// Number is a measurement value that may be missing. The zero value is missing.
type Number struct {
	Value float64
	Valid bool
}

// Some returns a present Number holding v.
func Some(v float64) Number { return Number{Value: v, Valid: true} }

// None returns a missing Number.
func None() Number { return Number{} }

// Scale multiplies a present value by factor; missing stays missing.
func (n Number) Scale(factor float64) Number {
	if !n.Valid {
		return Number{}
	}
	return Some(n.Value * factor)
}

// Float64 returns the held value and whether it is present.
func (n Number) Float64() (float64, bool) { return n.Value, n.Valid }

var jsonNull = []byte("null")

// MarshalJSON encodes a missing Number as null and a present one as its value.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return jsonNull, nil
	}
	return json.Marshal(n.Value)
}

// UnmarshalJSON decodes null as missing and any number as present.
func (n *Number) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*n = Number{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Some(v)
	return nil
}

// SumPresent sums the present values. The sum over zero present values is
// missing, never zero: an aggregate with no data must stay distinguishable
// from an aggregate that measured zero.
func SumPresent(values []Number) Number {
	var total float64
	present := false
	for _, v := range values {
		if v.Valid {
			total += v.Value
			present = true
		}
	}
	if !present {
		return Number{}
	}
	return Some(total)
}

// MeanPresent averages the present values; missing when none are present.
func MeanPresent(values []Number) Number {
	var total float64
	count := 0
	for _, v := range values {
		if v.Valid {
			total += v.Value
			count++
		}
	}
	if count == 0 {
		return Number{}
	}
	return Some(total / float64(count))
}

// StdDevPresent reports the sample standard deviation of the present values;
// missing when fewer than two are present.
func StdDevPresent(values []Number) Number {
	mean := MeanPresent(values)
	if !mean.Valid {
		return Number{}
	}
	var sq float64
	count := 0
	for _, v := range values {
		if v.Valid {
			d := v.Value - mean.Value
			sq += d * d
			count++
		}
	}
	if count < 2 {
		return Number{}
	}
	return Some(math.Sqrt(sq / float64(count-1)))
}

// QualityMean applies the gap-tolerance quality filter: when the fraction of
// missing values is at most gapTolerance (the boundary case is accepted), it
// returns the arithmetic mean of the present values; otherwise missing.
// Empty and all-missing inputs return missing regardless of the tolerance, so
// a tolerance of one can never force a mean over zero elements.
func QualityMean(values []Number, gapTolerance float64) Number {
	if len(values) == 0 {
		return Number{}
	}
	missing := 0
	for _, v := range values {
		if !v.Valid {
			missing++
		}
	}
	if missing == len(values) {
		return Number{}
	}
	if float64(missing)/float64(len(values)) > gapTolerance {
		return Number{}
	}
	return MeanPresent(values)
}

// Unit-chain constants. SoilColumnScale folds the cm² → m² and g → kg
// conversions of a g cm⁻² column density into one factor; it must stay this
// exact composite rather than being re-derived at call sites.
const (
	// GramsPerKilogram divides gram-denominated masses down to kilograms.
	GramsPerKilogram = 1000.0
	// SoilColumnScale converts g cm⁻² to kg m⁻².
	SoilColumnScale = 10.0
)

// GramsToKilograms converts a mass in grams to kilograms.
func GramsToKilograms(grams float64) float64 { return grams / GramsPerKilogram }

// Range bounds the physically plausible interval for a sensor variable.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies inside the closed interval.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// PlantStatus classifies the recorded condition of an inventoried stem.
type PlantStatus string

// Recognised stem conditions. Everything outside the live / standing-dead
// split (downed, removed, fate unknown) collapses to PlantOther.
const (
	PlantLive         PlantStatus = "live"
	PlantStandingDead PlantStatus = "standing-dead"
	PlantOther        PlantStatus = "other"
)

// ClassifyPlantStatus maps raw inventory status text onto a PlantStatus.
// Field crews record variants such as "Live, physically damaged" and
// "Standing dead"; matching is case-insensitive on the leading term.
func ClassifyPlantStatus(raw string) PlantStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(s, "live"):
		return PlantLive
	case strings.HasPrefix(s, "standing dead"):
		return PlantStandingDead
	default:
		return PlantOther
	}
}

// RootStatus classifies a root-mass sample. A missing status is an explicit
// RootUnknown branch, not a silent coercion to live or dead.
type RootStatus string

// Recognised root-mass classes.
const (
	RootLive    RootStatus = "live"
	RootDead    RootStatus = "dead"
	RootUnknown RootStatus = "unknown"
)

// ClassifyRootStatus maps raw root status text onto a RootStatus. Empty and
// unrecognised values both classify as unknown: either way the mass cannot be
// partitioned without the transferred live/dead ratio.
func ClassifyRootStatus(raw string) RootStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "live":
		return RootLive
	case "dead":
		return RootDead
	default:
		return RootUnknown
	}
}
