// Package allometry defines the above-ground biomass collaborator consumed by
// the tree carbon estimator. The collaborator is a pure function of stem
// diameter, taxon, and site location; implementations must tolerate unmatched
// taxa by falling back to default coefficients rather than failing, and the
// fallback is tagged so callers can distinguish a real taxon fit from the
// default branch.
package allometry

import (
	"fmt"
	"math"
	"strings"
)

// Coordinates locates the site whose allometric relationships apply.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Source tags where a prediction's coefficients came from.
type Source string

// Coefficient provenance. SourceDefault marks the explicit unmatched-taxon
// fallback branch; it is never a silent substitution.
const (
	SourceTaxon   Source = "taxon"
	SourceDefault Source = "default"
)

// Coefficients parameterize the log-log diameter model
// mass = exp(B1 + B2·ln(diameter)).
type Coefficients struct {
	B1 float64 `json:"b1"`
	B2 float64 `json:"b2"`
}

// Mass evaluates the model for a breast-height diameter in centimeters and
// returns kilograms of above-ground dry biomass.
func (c Coefficients) Mass(diameterCM float64) float64 {
	return math.Exp(c.B1 + c.B2*math.Log(diameterCM))
}

// Estimate is one above-ground biomass prediction.
type Estimate struct {
	MassKg float64
	Source Source
}

// Estimator is the biomass collaborator boundary.
type Estimator interface {
	AboveGround(diameterCM float64, genus, species string, site Coordinates) (Estimate, error)
}

// Table is a coefficient-table Estimator. Lookups try a species-level entry,
// then a genus-level entry, then the default coefficients. The table is
// calibrated to one site already, so the coordinates argument only satisfies
// the collaborator contract and does not select between equation sets.
type Table struct {
	entries  map[string]Coefficients
	fallback Coefficients
}

// NewTable constructs an empty coefficient table around the given default
// coefficients.
func NewTable(fallback Coefficients) *Table {
	return &Table{entries: make(map[string]Coefficients), fallback: fallback}
}

// Add registers coefficients for a genus, or for a (genus, species) pair when
// species is non-empty. Matching is case-insensitive.
func (t *Table) Add(genus, species string, c Coefficients) {
	t.entries[taxonKey(genus, species)] = c
}

func taxonKey(genus, species string) string {
	g := strings.ToLower(strings.TrimSpace(genus))
	s := strings.ToLower(strings.TrimSpace(species))
	if s == "" {
		return g
	}
	return g + " " + s
}

// AboveGround implements Estimator. A non-positive diameter is a caller error;
// an unmatched taxon is not, and resolves through the tagged default branch.
func (t *Table) AboveGround(diameterCM float64, genus, species string, _ Coordinates) (Estimate, error) {
	if !(diameterCM > 0) {
		return Estimate{}, fmt.Errorf("allometry: diameter must be positive, got %v", diameterCM)
	}
	if c, ok := t.entries[taxonKey(genus, species)]; ok {
		return Estimate{MassKg: c.Mass(diameterCM), Source: SourceTaxon}, nil
	}
	if c, ok := t.entries[taxonKey(genus, "")]; ok {
		return Estimate{MassKg: c.Mass(diameterCM), Source: SourceTaxon}, nil
	}
	return Estimate{MassKg: t.fallback.Mass(diameterCM), Source: SourceDefault}, nil
}

// Default returns a table preloaded with the Jenkins et al. (2003)
// national-scale species groups that dominate the monitored sandhill site:
// southern pines and the oak/hickory group, over a mixed-hardwood default.
func Default() *Table {
	t := NewTable(Coefficients{B1: -2.4800, B2: 2.4835})
	t.Add("Pinus", "", Coefficients{B1: -2.5356, B2: 2.4349})
	t.Add("Quercus", "", Coefficients{B1: -2.0127, B2: 2.4342})
	t.Add("Carya", "", Coefficients{B1: -2.0127, B2: 2.4342})
	return t
}
