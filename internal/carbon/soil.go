package carbon

import (
	"sort"

	"carboncore/internal/table"
	"carboncore/internal/units"
)

// Columns of the soil-pit tables.
const (
	colHorizonID       = "horizonID"
	colBulkSampleType  = "bulkDensSampleType"
	colBulkTopDepth    = "bulkDensTopDepth"
	colBulkBottomDepth = "bulkDensBottomDepth"
	colBulkDensity     = "bulkDensExclCoarseFrag"
	colBioSampleType   = "biogeoSampleType"
	colCarbonTot       = "carbonTot"
)

// regularSampleType marks the routine soil samples admitted into the depth
// integration; audit and archive duplicates are skipped.
const regularSampleType = "Regular"

// Horizon is one depth-bounded layer of the joined soil profile. Depths are
// in centimeters below the surface.
type Horizon struct {
	ID            string       `json:"id"`
	TopDepthCM    float64      `json:"topDepthCM"`
	BottomDepthCM float64      `json:"bottomDepthCM"`
	Carbon        units.Number `json:"carbon"`
}

// SoilProfile is the depth-ordered horizon series together with its
// depth-integrated carbon density.
type SoilProfile struct {
	Horizons []Horizon    `json:"horizons"`
	Total    units.Number `json:"total"`
}

// SoilEstimator integrates horizon carbon over the soil column.
type SoilEstimator struct {
	Config Config
}

// Estimate joins bulk-density and carbon-concentration samples on horizon
// identity, keeps the routine samples, and integrates carbon over depth.
// Horizons missing either depth cannot be placed in the profile and are
// dropped; horizons missing density or concentration stay in the profile
// with a missing carbon value and are skipped by the integral.
func (e SoilEstimator) Estimate(bulk, biogeo *table.Table) (SoilProfile, error) {
	if err := e.Config.Validate(); err != nil {
		return SoilProfile{}, err
	}
	left, err := regularRows(bulk, colBulkSampleType, colHorizonID, colBulkTopDepth, colBulkBottomDepth, colBulkDensity)
	if err != nil {
		return SoilProfile{}, err
	}
	right, err := regularRows(biogeo, colBioSampleType, colHorizonID, colCarbonTot)
	if err != nil {
		return SoilProfile{}, err
	}
	joined, err := left.InnerJoin(right, colHorizonID)
	if err != nil {
		return SoilProfile{}, err
	}

	horizons := make([]Horizon, 0, joined.Len())
	for i := 0; i < joined.Len(); i++ {
		r := joined.Row(i)
		top := r.Number(colBulkTopDepth)
		bottom := r.Number(colBulkBottomDepth)
		if !top.Valid || !bottom.Valid {
			continue
		}
		id, _ := r.Cell(colHorizonID)
		horizons = append(horizons, Horizon{
			ID:            id,
			TopDepthCM:    top.Value,
			BottomDepthCM: bottom.Value,
			Carbon:        horizonCarbon(bottom.Value-top.Value, r.Number(colBulkDensity), r.Number(colCarbonTot)),
		})
	}
	sort.Slice(horizons, func(i, j int) bool { return horizons[i].TopDepthCM < horizons[j].TopDepthCM })

	values := make([]units.Number, len(horizons))
	for i, h := range horizons {
		values[i] = h.Carbon
	}
	return SoilProfile{Horizons: horizons, Total: units.SumPresent(values)}, nil
}

// horizonCarbon is thickness × bulk density × concentration/1000, scaled by
// the folded cm²→m² and g→kg constant. An inverted layer is implausible and
// degrades to missing.
func horizonCarbon(thicknessCM float64, bulk, conc units.Number) units.Number {
	if thicknessCM < 0 || !bulk.Valid || !conc.Valid {
		return units.None()
	}
	return units.Some(thicknessCM * bulk.Value * (conc.Value / units.GramsPerKilogram) * units.SoilColumnScale)
}

// regularRows filters a soil table to routine samples and projects the
// requested columns, dropping the sample-type column before any join.
func regularRows(t *table.Table, typeCol string, cols ...string) (*table.Table, error) {
	selected, err := t.Select(append([]string{typeCol}, cols...)...)
	if err != nil {
		return nil, err
	}
	filtered := selected.Filter(func(r table.Row) bool {
		v, ok := r.Cell(typeCol)
		return ok && v == regularSampleType
	})
	return filtered.Select(cols...)
}
