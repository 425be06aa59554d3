// Package carbon derives site-level carbon densities from field measurement
// tables and assembles them into an annual budget. Each estimator makes one
// pass over immutable in-memory tables and reports carbon in kg C per m².
// Missing measurements stay missing through every reducer; they are never
// coerced to zero.
package carbon

import (
	"sort"

	"carboncore/internal/units"
)

// Column names shared across measurement tables.
const (
	colPlotID   = "plotID"
	colPlotType = "plotType"
	colSampleID = "sampleID"
)

// Density is the unifying estimator output: carbon per unit ground area for
// one plot. Estimators that pool all sampling dates leave Year zero.
type Density struct {
	Plot   string       `json:"plot"`
	Year   int          `json:"year,omitempty"`
	Carbon units.Number `json:"carbon"`
}

// plotYear keys per-plot aggregation groups.
type plotYear struct {
	plot string
	year int
}

func sortDensities(out []Density) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Plot != out[j].Plot {
			return out[i].Plot < out[j].Plot
		}
		return out[i].Year < out[j].Year
	})
}

// SiteSummary collapses per-plot densities into a site mean, with the sample
// standard deviation across plots as the uncertainty measure.
type SiteSummary struct {
	Year   int          `json:"year,omitempty"`
	Plots  int          `json:"plots"`
	Mean   units.Number `json:"mean"`
	StdDev units.Number `json:"stdDev"`
}

// Summarize averages plot densities recorded for one year. Estimators that
// pool all years record their densities under year zero; pass zero to
// summarize those.
func Summarize(samples []Density, year int) SiteSummary {
	values := make([]units.Number, 0, len(samples))
	for _, s := range samples {
		if s.Year != year {
			continue
		}
		values = append(values, s.Carbon)
	}
	return SiteSummary{
		Year:   year,
		Plots:  len(values),
		Mean:   units.MeanPresent(values),
		StdDev: units.StdDevPresent(values),
	}
}
