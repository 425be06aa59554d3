// Package satellite reduces gridded vegetation-index composites to a site
// series. Every composite period carries one raw index value per grid cell;
// cells are screened by their reliability rank and a plausibility range, and
// the period collapses to a site mean only while the missing fraction stays
// inside the configured gap tolerance.
package satellite

import (
	"fmt"
	"sort"
	"time"

	"carboncore/internal/table"
	"carboncore/internal/units"
)

// Columns of the vegetation-index composite table.
const (
	colCompositeDate    = "compositeDate"
	colNDVI             = "ndvi"
	colPixelReliability = "pixelReliability"
)

const compositeDateLayout = "2006-01-02"

// Config screens and scales the raw composite cells.
type Config struct {
	// GapTolerance is the fraction of cells a composite may lose before the
	// whole period is reported missing.
	GapTolerance float64 `json:"gapTolerance"`
	// MaxReliability is the highest pixel reliability rank admitted.
	MaxReliability float64 `json:"maxReliability"`
	// ValueScale converts raw index counts to index units.
	ValueScale float64 `json:"valueScale"`
	// Plausible bounds the scaled index; fill sentinels land far outside it.
	Plausible units.Range `json:"plausible"`
}

// DefaultConfig admits good and marginal pixels of a 16-day NDVI composite
// stored as 1e-4 counts.
func DefaultConfig() Config {
	return Config{
		GapTolerance:   0.5,
		MaxReliability: 1,
		ValueScale:     0.0001,
		Plausible:      units.Range{Min: -0.2, Max: 1},
	}
}

// Validate reports the first unusable screening constant.
func (c Config) Validate() error {
	if !(c.GapTolerance > 0 && c.GapTolerance <= 1) {
		return fmt.Errorf("satellite: gap tolerance %v must be in (0, 1]", c.GapTolerance)
	}
	if !(c.ValueScale > 0) {
		return fmt.Errorf("satellite: value scale %v must be positive", c.ValueScale)
	}
	return nil
}

// Point is one composite period of the site series.
type Point struct {
	Date  time.Time    `json:"date"`
	Value units.Number `json:"value"`
}

// SiteSeries collapses per-cell composite values into one screened site mean
// per composite date, ordered by date. Periods that fail the gap tolerance
// stay in the series as missing.
func SiteSeries(cells *table.Table, cfg Config) ([]Point, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	groups, err := cells.GroupBy(colCompositeDate)
	if err != nil {
		return nil, err
	}
	out := make([]Point, 0, len(groups))
	for _, g := range groups {
		date, err := time.Parse(compositeDateLayout, g.Key[0])
		if err != nil {
			return nil, fmt.Errorf("satellite: composite date %q: %w", g.Key[0], err)
		}
		values := make([]units.Number, 0, len(g.Rows))
		for _, r := range g.Rows {
			values = append(values, cellValue(r, cfg))
		}
		out = append(out, Point{Date: date, Value: units.QualityMean(values, cfg.GapTolerance)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// cellValue screens one grid cell. An unranked, unreliable, or implausible
// cell is missing.
func cellValue(r table.Row, cfg Config) units.Number {
	rank := r.Number(colPixelReliability)
	if !rank.Valid || rank.Value < 0 || rank.Value > cfg.MaxReliability {
		return units.None()
	}
	v := r.Number(colNDVI).Scale(cfg.ValueScale)
	if !v.Valid || !cfg.Plausible.Contains(v.Value) {
		return units.None()
	}
	return v
}
