package carbon

import (
	"errors"
	"fmt"
	"sort"

	"carboncore/internal/table"
	"carboncore/internal/units"
)

// Columns of the fine-root tables.
const (
	colCollectDate    = "collectDate"
	colDryMass        = "dryMass"
	colRootStatus     = "rootStatus"
	colRootSampleArea = "rootSampleArea"
)

// ErrUndefinedRatio reports a reference-year live/dead partition that cannot
// seed the ratio transfer.
var ErrUndefinedRatio = errors.New("carbon: undefined live/dead root ratio")

// RootDensity splits one plot-year's fine-root carbon density across the
// three status classes. A class nobody sampled is missing, not zero.
type RootDensity struct {
	Plot    string       `json:"plot"`
	Year    int          `json:"year"`
	Live    units.Number `json:"live"`
	Dead    units.Number `json:"dead"`
	Unknown units.Number `json:"unknown"`
}

// RootEstimator converts per-core root masses into live, dead, and unknown
// carbon densities per plot and year. Years whose mass was never classified
// are filled afterwards through TransferRatio and ApplyRatio.
type RootEstimator struct {
	Config Config
}

// rootCore locates one sampled core and its normalizing area.
type rootCore struct {
	plot string
	year int
	area units.Number
}

// Estimate normalizes each core's dry mass by its sampled area and sums per
// (plot, year, status class). Samples that no tower-plot core row can locate
// are excluded outright and reported in the excluded count; samples whose
// core area is present but unusable stay in their group as missing.
func (e RootEstimator) Estimate(masses, cores *table.Table) (densities []RootDensity, excluded int, err error) {
	if err := e.Config.Validate(); err != nil {
		return nil, 0, err
	}
	lookup, err := e.coreLookup(cores)
	if err != nil {
		return nil, 0, err
	}
	rows, err := masses.Select(colSampleID, colDryMass, colRootStatus)
	if err != nil {
		return nil, 0, err
	}

	type classes struct {
		live, dead, unknown []units.Number
	}
	byKey := make(map[plotYear]*classes)
	for i := 0; i < rows.Len(); i++ {
		r := rows.Row(i)
		id, ok := r.Cell(colSampleID)
		if !ok {
			excluded++
			continue
		}
		core, ok := lookup[id]
		if !ok {
			excluded++
			continue
		}
		key := plotYear{plot: core.plot, year: core.year}
		c := byKey[key]
		if c == nil {
			c = &classes{}
			byKey[key] = c
		}
		value := massPerArea(r.Number(colDryMass), core.area)
		statusCell, _ := r.Cell(colRootStatus)
		switch units.ClassifyRootStatus(statusCell) {
		case units.RootLive:
			c.live = append(c.live, value)
		case units.RootDead:
			c.dead = append(c.dead, value)
		default:
			c.unknown = append(c.unknown, value)
		}
	}

	densities = make([]RootDensity, 0, len(byKey))
	for key, c := range byKey {
		densities = append(densities, RootDensity{
			Plot:    key.plot,
			Year:    key.year,
			Live:    e.toCarbon(c.live),
			Dead:    e.toCarbon(c.dead),
			Unknown: e.toCarbon(c.unknown),
		})
	}
	sortRootDensities(densities)
	return densities, excluded, nil
}

// coreLookup indexes the per-core table by sample ID, keeping the first row
// per core and only cores inside tower plots.
func (e RootEstimator) coreLookup(cores *table.Table) (map[string]rootCore, error) {
	meta, err := cores.Select(colSampleID, colPlotID, colPlotType, colCollectDate, colRootSampleArea)
	if err != nil {
		return nil, err
	}
	meta = meta.Filter(func(r table.Row) bool {
		v, ok := r.Cell(colPlotType)
		return ok && v == e.Config.TowerPlotType
	})
	meta, err = meta.FirstPerKey(colSampleID)
	if err != nil {
		return nil, err
	}
	lookup := make(map[string]rootCore, meta.Len())
	for i := 0; i < meta.Len(); i++ {
		r := meta.Row(i)
		id, ok := r.Cell(colSampleID)
		if !ok {
			continue
		}
		plot, ok := r.Cell(colPlotID)
		if !ok {
			continue
		}
		year, ok := r.Year(colCollectDate)
		if !ok {
			continue
		}
		lookup[id] = rootCore{plot: plot, year: year, area: r.Number(colRootSampleArea)}
	}
	return lookup, nil
}

// massPerArea normalizes one core's dry mass by its sampled area. An absent
// or non-positive area cannot normalize and degrades to missing.
func massPerArea(mass, area units.Number) units.Number {
	if !mass.Valid || !area.Valid || area.Value <= 0 {
		return units.None()
	}
	return units.Some(mass.Value / area.Value)
}

// toCarbon reduces per-core mass densities to a carbon density, halving for
// carbon content and converting grams to kilograms.
func (e RootEstimator) toCarbon(values []units.Number) units.Number {
	return units.SumPresent(values).Scale(e.Config.CarbonFraction / units.GramsPerKilogram)
}

func sortRootDensities(out []RootDensity) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Plot != out[j].Plot {
			return out[i].Plot < out[j].Plot
		}
		return out[i].Year < out[j].Year
	})
}

// TransferRatio computes the site live fraction ρ from a reference year whose
// live and dead classes were measured directly: the plot densities of each
// class are averaged across the site first and ρ is the quotient of the
// means. Callers assume the fraction is stationary across years.
func (e RootEstimator) TransferRatio(densities []RootDensity, referenceYear int) (float64, error) {
	var live, dead []units.Number
	for _, d := range densities {
		if d.Year != referenceYear {
			continue
		}
		live = append(live, d.Live)
		dead = append(dead, d.Dead)
	}
	siteLive := units.MeanPresent(live)
	siteDead := units.MeanPresent(dead)
	if !siteLive.Valid || !siteDead.Valid {
		return 0, fmt.Errorf("reference year %d has no classified densities: %w", referenceYear, ErrUndefinedRatio)
	}
	total := siteLive.Value + siteDead.Value
	if total == 0 {
		return 0, fmt.Errorf("reference year %d live and dead densities sum to zero: %w", referenceYear, ErrUndefinedRatio)
	}
	return siteLive.Value / total, nil
}

// ApplyRatio estimates the live class of a density whose mass is entirely
// unclassified by transferring the site ratio onto its unknown class.
// Densities that already carry a live measurement pass through unchanged.
func ApplyRatio(d RootDensity, rho float64) RootDensity {
	if d.Live.Valid || !d.Unknown.Valid {
		return d
	}
	out := d
	out.Live = d.Unknown.Scale(rho)
	return out
}
