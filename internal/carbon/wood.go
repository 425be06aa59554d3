package carbon

import (
	"carboncore/internal/table"
	"carboncore/internal/units"
)

// Column of the downed-wood density-disk table.
const colBulkDensDisk = "bulkDensDisk"

// WoodEstimator converts downed-wood log tallies and disk density samples
// into per-plot carbon densities. All sampling dates are pooled per plot, so
// the output rows carry no year.
type WoodEstimator struct {
	Config Config
}

// Estimate averages the disk bulk densities behind each tally sample, scales
// them to volumetric densities, and sums per tower plot. A log whose sample
// has no disks contributes a missing value; a plot whose logs are all missing
// stays in the output with a missing density.
func (e WoodEstimator) Estimate(tally, disks *table.Table) ([]Density, error) {
	if err := e.Config.Validate(); err != nil {
		return nil, err
	}
	density, err := diskDensities(disks)
	if err != nil {
		return nil, err
	}
	logs, err := tally.Select(colPlotID, colPlotType, colSampleID)
	if err != nil {
		return nil, err
	}
	logs = logs.Filter(func(r table.Row) bool {
		v, ok := r.Cell(colPlotType)
		return ok && v == e.Config.TowerPlotType
	})
	groups, err := logs.GroupBy(colPlotID)
	if err != nil {
		return nil, err
	}

	out := make([]Density, 0, len(groups))
	for _, g := range groups {
		values := make([]units.Number, 0, len(g.Rows))
		for _, r := range g.Rows {
			id, ok := r.Cell(colSampleID)
			if !ok {
				values = append(values, units.None())
				continue
			}
			values = append(values, density[id].Scale(e.Config.WoodVolumeFactor))
		}
		sum := units.SumPresent(values)
		out = append(out, Density{
			Plot:   g.Key[0],
			Carbon: sum.Scale(e.Config.CarbonFraction).Scale(e.Config.WoodLengthScale),
		})
	}
	sortDensities(out)
	return out, nil
}

// diskDensities averages the disk bulk densities measured for each sample ID.
func diskDensities(disks *table.Table) (map[string]units.Number, error) {
	cols, err := disks.Select(colSampleID, colBulkDensDisk)
	if err != nil {
		return nil, err
	}
	groups, err := cols.GroupBy(colSampleID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]units.Number, len(groups))
	for _, g := range groups {
		values := make([]units.Number, 0, len(g.Rows))
		for _, r := range g.Rows {
			values = append(values, r.Number(colBulkDensDisk))
		}
		out[g.Key[0]] = units.MeanPresent(values)
	}
	return out, nil
}
