package carbon

import (
	"errors"

	"carboncore/internal/table"
	"carboncore/internal/units"
	"carboncore/pkg/allometry"
)

// Columns of the vegetation-structure tables.
const (
	colIndividualID      = "individualID"
	colDate              = "date"
	colStemDiameter      = "stemDiameter"
	colMeasurementHeight = "measurementHeight"
	colPlantStatus       = "plantStatus"
	colGenus             = "genus"
	colSpecies           = "specificEpithet"
	colPlotArea          = "totalSampledAreaTrees"
)

// TreeEstimator converts stem inventories into per-plot, per-year carbon
// densities for one status class. Eligible stems were measured at breast
// height with a recorded diameter, inside a tower plot.
type TreeEstimator struct {
	Config  Config
	Biomass allometry.Estimator
}

// Estimate joins apparent individuals with their taxon mappings, filters to
// eligible stems of the requested status, and sums per-stem carbon densities
// within each (plot, year) group. Stems whose density cannot be derived count
// as missing inside their group, not as zero.
func (e TreeEstimator) Estimate(individuals, taxa, plots *table.Table, status units.PlantStatus) ([]Density, error) {
	if err := e.Config.Validate(); err != nil {
		return nil, err
	}
	if e.Biomass == nil {
		return nil, errors.New("carbon: tree estimator needs a biomass collaborator")
	}
	areas, err := towerPlotAreas(plots, e.Config.TowerPlotType)
	if err != nil {
		return nil, err
	}
	stems, err := individuals.Select(colIndividualID, colPlotID, colDate, colStemDiameter, colMeasurementHeight, colPlantStatus)
	if err != nil {
		return nil, err
	}
	names, err := taxa.Select(colIndividualID, colGenus, colSpecies)
	if err != nil {
		return nil, err
	}
	joined, err := stems.InnerJoin(names, colIndividualID)
	if err != nil {
		return nil, err
	}

	groups := make(map[plotYear][]units.Number)
	for i := 0; i < joined.Len(); i++ {
		r := joined.Row(i)
		height := r.Number(colMeasurementHeight)
		if !height.Valid || height.Value != e.Config.BreastHeightCM {
			continue
		}
		diameter := r.Number(colStemDiameter)
		if !diameter.Valid {
			continue
		}
		statusCell, _ := r.Cell(colPlantStatus)
		if units.ClassifyPlantStatus(statusCell) != status {
			continue
		}
		plot, ok := r.Cell(colPlotID)
		if !ok {
			continue
		}
		area, ok := areas[plot]
		if !ok {
			continue
		}
		year, ok := r.Year(colDate)
		if !ok {
			continue
		}
		key := plotYear{plot: plot, year: year}
		groups[key] = append(groups[key], e.stemDensity(r, diameter.Value, area))
	}

	out := make([]Density, 0, len(groups))
	for key, values := range groups {
		out = append(out, Density{Plot: key.plot, Year: key.year, Carbon: units.SumPresent(values)})
	}
	sortDensities(out)
	return out, nil
}

// stemDensity converts one eligible stem into a plot-area carbon density. An
// unusable area or a rejected biomass lookup degrades to missing so a single
// bad stem cannot zero out its plot.
func (e TreeEstimator) stemDensity(r table.Row, diameterCM float64, area units.Number) units.Number {
	if !area.Valid || area.Value <= 0 {
		return units.None()
	}
	genus, _ := r.Cell(colGenus)
	species, _ := r.Cell(colSpecies)
	est, err := e.Biomass.AboveGround(diameterCM, genus, species, e.Config.Location)
	if err != nil {
		return units.None()
	}
	above := est.MassKg
	below := above * e.Config.BelowgroundRatio
	return units.Some((above + below) * e.Config.CarbonFraction / area.Value)
}

// towerPlotAreas reduces plot metadata to one sampled tree area per tower
// plot, keeping the first row seen for each plot.
func towerPlotAreas(plots *table.Table, plotType string) (map[string]units.Number, error) {
	meta, err := plots.Select(colPlotID, colPlotType, colPlotArea)
	if err != nil {
		return nil, err
	}
	meta = meta.Filter(func(r table.Row) bool {
		v, ok := r.Cell(colPlotType)
		return ok && v == plotType
	})
	meta, err = meta.FirstPerKey(colPlotID)
	if err != nil {
		return nil, err
	}
	areas := make(map[string]units.Number, meta.Len())
	for i := 0; i < meta.Len(); i++ {
		r := meta.Row(i)
		plot, ok := r.Cell(colPlotID)
		if !ok {
			continue
		}
		areas[plot] = r.Number(colPlotArea)
	}
	return areas, nil
}
