// Package pipeline runs one complete annual carbon budget for a site: it
// fetches the measurement tables from the archive, drives the estimators,
// folds the fine-root live carbon into the live-tree slot, assembles the
// budget, and hands the finished run to the results store and the report
// publisher. Two supplemental legs, daily air-temperature gap filling and
// the satellite greenness series, run alongside when their sensor products
// are staged in the archive.
//
// Measurement gaps flow through every stage as missing values. Only
// structural failures, an unreachable archive, an empty required table, a
// failing collaborator, abort the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carboncore/internal/archive"
	"carboncore/internal/carbon"
	"carboncore/internal/driver"
	"carboncore/internal/report"
	"carboncore/internal/results"
	"carboncore/internal/satellite"
	"carboncore/internal/table"
	"carboncore/internal/units"
	"carboncore/pkg/allometry"
	"carboncore/pkg/regression"
)

// Stage names shared by trace spans and metric labels.
const (
	stageFetch        = "fetch"
	stageLiveTrees    = "live_trees"
	stageStandingDead = "standing_dead"
	stageDownedWood   = "downed_wood"
	stageRoots        = "roots"
	stageSoil         = "soil"
	stageAssemble     = "assemble"
	stageDrivers      = "drivers"
	stageGreenness    = "greenness"
	stagePersist      = "persist"
	stagePublish      = "publish"
)

// Exclusion reasons counted on the roots and drivers stages.
const (
	reasonNoCore      = "no_core"
	reasonFlagged     = "flagged"
	reasonImplausible = "implausible"
)

// Table names within their product releases.
const (
	tableIndividuals = "vst_apparentindividual"
	tableTaxa        = "vst_mappingandtagging"
	tablePlots       = "vst_perplotperyear"
	tableWoodTally   = "cdw_fieldtally"
	tableWoodDisks   = "cdw_densitydisk"
	tableRootMass    = "bbc_rootmass"
	tableRootCores   = "bbc_percore"
	tableSoilBulk    = "mgp_perbulksample"
	tableSoilChem    = "mgp_perbiogeosample"
	tableTemperature = "SAAT_30min"
	tableGreenness   = "mod13q1_ndvi"
)

// Columns of the 30-minute air-temperature table.
const (
	colStartDateTime = "startDateTime"
	colTempMean      = "tempSingleMean"
	colFinalQF       = "finalQF"
)

// budgetTables lists the required tables in fetch order.
var budgetTables = []struct {
	product archive.Product
	name    string
}{
	{archive.ProductVegetationStructure, tableIndividuals},
	{archive.ProductVegetationStructure, tableTaxa},
	{archive.ProductVegetationStructure, tablePlots},
	{archive.ProductDownedWood, tableWoodTally},
	{archive.ProductDownedWood, tableWoodDisks},
	{archive.ProductRootSampling, tableRootMass},
	{archive.ProductRootSampling, tableRootCores},
	{archive.ProductSoilPit, tableSoilBulk},
	{archive.ProductSoilPit, tableSoilChem},
}

// Pipeline wires the estimators to their collaborators for one site.
type Pipeline struct {
	Config  carbon.Config
	Source  archive.Source
	Biomass allometry.Estimator

	// Optional collaborators. A nil Oracle falls back to interpolation on
	// the drivers leg; nil sinks skip their stage.
	Oracle  regression.Oracle
	Results results.Store
	Reports *report.Publisher
	Formats []report.Format
	Metrics *Metrics
	Tracer  Tracer

	// Satellite screens the greenness composite cells.
	Satellite satellite.Config
	// PlausibleAir bounds admissible air-temperature readings in degrees C.
	PlausibleAir units.Range
}

// New returns a pipeline over the source with default screening constants.
func New(cfg carbon.Config, source archive.Source, biomass allometry.Estimator) *Pipeline {
	return &Pipeline{
		Config:       cfg,
		Source:       source,
		Biomass:      biomass,
		Satellite:    satellite.DefaultConfig(),
		PlausibleAir: units.Range{Min: -40, Max: 55},
	}
}

// DriverFill is the daily air-temperature leg of a run: observed per-day
// extremes and their gap-filled counterparts. The filled series are absent
// when the staged table carries no usable observation at all.
type DriverFill struct {
	Min Series `json:"min"`
	Max Series `json:"max"`
}

// Series pairs one observed extreme with its fill.
type Series struct {
	Observed driver.Series  `json:"observed"`
	Filled   driver.Series  `json:"filled"`
	Variance []units.Number `json:"variance,omitempty"`
}

// Outcome is everything one run produced.
type Outcome struct {
	Run       results.Run
	Artifacts []report.Artifact
	// Drivers is nil when the temperature product is not staged.
	Drivers *DriverFill
	// Greenness is nil when the composite product is not staged.
	Greenness []satellite.Point
}

// Run executes the full batch and records the outcome on the run metrics.
func (p *Pipeline) Run(ctx context.Context) (Outcome, error) {
	started := time.Now()
	out, err := p.run(ctx)
	p.Metrics.RunObserved(err, time.Since(started))
	return out, err
}

func (p *Pipeline) run(ctx context.Context) (Outcome, error) {
	if err := p.Config.Validate(); err != nil {
		return Outcome{}, err
	}
	if p.Source == nil {
		return Outcome{}, errors.New("pipeline: archive source required")
	}
	if p.Biomass == nil {
		return Outcome{}, errors.New("pipeline: biomass estimator required")
	}

	var tables map[string]*table.Table
	err := p.stage(ctx, stageFetch, func(ctx context.Context) error {
		var err error
		tables, err = p.fetch(ctx)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	trees := carbon.TreeEstimator{Config: p.Config, Biomass: p.Biomass}
	var live, dead, wood []carbon.Density
	var roots []carbon.RootDensity
	var rootRatio units.Number
	var profile carbon.SoilProfile

	err = p.stage(ctx, stageLiveTrees, func(context.Context) error {
		var err error
		live, err = trees.Estimate(tables[tableIndividuals], tables[tableTaxa], tables[tablePlots], units.PlantLive)
		p.Metrics.MissingValues(stageLiveTrees, missingDensities(live))
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	err = p.stage(ctx, stageStandingDead, func(context.Context) error {
		var err error
		dead, err = trees.Estimate(tables[tableIndividuals], tables[tableTaxa], tables[tablePlots], units.PlantStandingDead)
		p.Metrics.MissingValues(stageStandingDead, missingDensities(dead))
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	err = p.stage(ctx, stageDownedWood, func(context.Context) error {
		var err error
		wood, err = carbon.WoodEstimator{Config: p.Config}.Estimate(tables[tableWoodTally], tables[tableWoodDisks])
		p.Metrics.MissingValues(stageDownedWood, missingDensities(wood))
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	err = p.stage(ctx, stageRoots, func(context.Context) error {
		est := carbon.RootEstimator{Config: p.Config}
		var excluded int
		var err error
		roots, excluded, err = est.Estimate(tables[tableRootMass], tables[tableRootCores])
		if err != nil {
			return err
		}
		p.Metrics.SamplesExcluded(stageRoots, reasonNoCore, excluded)
		rho, err := est.TransferRatio(roots, p.Config.RootReferenceYear)
		switch {
		case errors.Is(err, carbon.ErrUndefinedRatio):
			// Unpartitioned years keep their unknown mass and fold nothing
			// into the live slot.
		case err != nil:
			return err
		default:
			rootRatio = units.Some(rho)
			for i, d := range roots {
				roots[i] = carbon.ApplyRatio(d, rho)
			}
		}
		p.Metrics.MissingValues(stageRoots, missingRootLive(roots))
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	err = p.stage(ctx, stageSoil, func(context.Context) error {
		var err error
		profile, err = carbon.SoilEstimator{Config: p.Config}.Estimate(tables[tableSoilBulk], tables[tableSoilChem])
		p.Metrics.MissingValues(stageSoil, missingHorizons(profile))
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	var budget carbon.Budget
	err = p.stage(ctx, stageAssemble, func(context.Context) error {
		liveSlot := units.SumPresent([]units.Number{
			carbon.Summarize(live, p.Config.BudgetYear).Mean,
			rootLiveMean(roots, p.Config.BudgetYear),
		})
		budget = carbon.Assemble(
			p.Config.BudgetYear,
			liveSlot,
			carbon.Summarize(dead, p.Config.BudgetYear).Mean,
			carbon.Summarize(wood, 0).Mean,
			profile.Total,
		)
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	var fill *DriverFill
	err = p.stage(ctx, stageDrivers, func(ctx context.Context) error {
		var err error
		fill, err = p.driverLeg(ctx)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	var greenness []satellite.Point
	err = p.stage(ctx, stageGreenness, func(ctx context.Context) error {
		var err error
		greenness, err = p.greennessLeg(ctx)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	run := results.Run{
		Site:         p.Config.Site,
		Budget:       budget,
		LiveTrees:    live,
		StandingDead: dead,
		DownedWood:   wood,
		Roots:        roots,
		Soil:         profile,
		RootRatio:    rootRatio,
	}
	if p.Results != nil {
		err = p.stage(ctx, stagePersist, func(ctx context.Context) error {
			var err error
			run, err = p.Results.Save(ctx, run)
			return err
		})
		if err != nil {
			return Outcome{}, err
		}
	}

	out := Outcome{Run: run, Drivers: fill, Greenness: greenness}
	if p.Reports != nil {
		err = p.stage(ctx, stagePublish, func(ctx context.Context) error {
			artifacts, err := p.Reports.Publish(ctx, run, p.Formats...)
			if err != nil {
				return err
			}
			if fill != nil && len(fill.Min.Filled.Values) > 0 {
				png, err := p.Reports.PublishSeriesPNG(ctx, run, fill.Min.Observed, fill.Min.Filled)
				if err != nil {
					return err
				}
				artifacts = append(artifacts, png)
			}
			out.Artifacts = artifacts
			return nil
		})
		if err != nil {
			return Outcome{}, err
		}
	}
	return out, nil
}

// fetch materializes every required table. An absent or empty table is fatal.
func (p *Pipeline) fetch(ctx context.Context) (map[string]*table.Table, error) {
	out := make(map[string]*table.Table, len(budgetTables))
	for _, want := range budgetTables {
		t, err := p.Source.Table(ctx, want.product, p.Config.Site, want.name)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", want.name, err)
		}
		if t.Len() == 0 {
			return nil, fmt.Errorf("pipeline: table %s is empty", want.name)
		}
		p.Metrics.TableRead(string(want.product), want.name, t.Len())
		out[want.name] = t
	}
	return out, nil
}

// staged reports whether the product release at this site ships the table.
func (p *Pipeline) staged(ctx context.Context, product archive.Product, name string) (bool, error) {
	names, err := p.Source.Tables(ctx, product, p.Config.Site)
	if err != nil {
		return false, fmt.Errorf("list %s: %w", product, err)
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// driverLeg reduces the staged 30-minute temperatures to gap-filled daily
// extremes over the budget year. The oracle fills when configured, otherwise
// interpolation; a series with no observation at all keeps only its observed
// (all-missing) extremes.
func (p *Pipeline) driverLeg(ctx context.Context) (*DriverFill, error) {
	ok, err := p.staged(ctx, archive.ProductAirTemperature, tableTemperature)
	if err != nil || !ok {
		return nil, err
	}
	t, err := p.Source.Table(ctx, archive.ProductAirTemperature, p.Config.Site, tableTemperature)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", tableTemperature, err)
	}
	p.Metrics.TableRead(string(archive.ProductAirTemperature), tableTemperature, t.Len())

	readings, flagged, err := airReadings(t)
	if err != nil {
		return nil, err
	}
	p.Metrics.SamplesExcluded(stageDrivers, reasonFlagged, flagged)
	p.Metrics.SamplesExcluded(stageDrivers, reasonImplausible, countImplausible(readings, p.PlausibleAir))

	ix, err := driver.NewIndex(
		time.Date(p.Config.BudgetYear, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(p.Config.BudgetYear, time.December, 31, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		return nil, err
	}
	min, max := driver.DailyExtremes(readings, ix, p.PlausibleAir)
	p.Metrics.MissingValues(stageDrivers, (ix.Len()-min.Observed())+(ix.Len()-max.Observed()))

	fill := &DriverFill{Min: Series{Observed: min}, Max: Series{Observed: max}}
	if err := p.fillSeries(ctx, &fill.Min); err != nil {
		return nil, err
	}
	if err := p.fillSeries(ctx, &fill.Max); err != nil {
		return nil, err
	}
	return fill, nil
}

func (p *Pipeline) fillSeries(ctx context.Context, s *Series) error {
	var err error
	if p.Oracle != nil {
		s.Filled, s.Variance, err = driver.FillRegression(ctx, s.Observed, p.Oracle)
	} else {
		s.Filled, err = driver.FillInterpolate(s.Observed)
	}
	if errors.Is(err, driver.ErrNoObservations) {
		s.Filled, s.Variance = driver.Series{}, nil
		return nil
	}
	return err
}

// airReadings converts temperature rows into driver readings. Readings whose
// quality flag is raised are carried as missing and counted as flagged.
func airReadings(t *table.Table) ([]driver.Reading, int, error) {
	rows, err := t.Select(colStartDateTime, colTempMean, colFinalQF)
	if err != nil {
		return nil, 0, err
	}
	out := make([]driver.Reading, 0, rows.Len())
	flagged := 0
	for i := 0; i < rows.Len(); i++ {
		r := rows.Row(i)
		raw, _ := r.Cell(colStartDateTime)
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, 0, fmt.Errorf("pipeline: reading timestamp %q: %w", raw, err)
		}
		v := r.Number(colTempMean)
		if qf := r.Number(colFinalQF); qf.Valid && qf.Value != 0 {
			if v.Valid {
				flagged++
			}
			v = units.None()
		}
		out = append(out, driver.Reading{At: at, Value: v})
	}
	return out, flagged, nil
}

func countImplausible(readings []driver.Reading, plausible units.Range) int {
	n := 0
	for _, r := range readings {
		if r.Value.Valid && !plausible.Contains(r.Value.Value) {
			n++
		}
	}
	return n
}

// greennessLeg reduces the staged vegetation-index composites to the
// screened site series.
func (p *Pipeline) greennessLeg(ctx context.Context) ([]satellite.Point, error) {
	ok, err := p.staged(ctx, archive.ProductGreenness, tableGreenness)
	if err != nil || !ok {
		return nil, err
	}
	t, err := p.Source.Table(ctx, archive.ProductGreenness, p.Config.Site, tableGreenness)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", tableGreenness, err)
	}
	p.Metrics.TableRead(string(archive.ProductGreenness), tableGreenness, t.Len())

	points, err := satellite.SiteSeries(t, p.Satellite)
	if err != nil {
		return nil, err
	}
	p.Metrics.MissingValues(stageGreenness, missingPoints(points))
	return points, nil
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer().Start(ctx, name)
	err := fn(ctx)
	span.End(err)
	return err
}

func (p *Pipeline) tracer() Tracer {
	if p.Tracer != nil {
		return p.Tracer
	}
	return nopTracer{}
}

// rootLiveMean averages the live fine-root densities recorded for one year
// across plots.
func rootLiveMean(roots []carbon.RootDensity, year int) units.Number {
	var values []units.Number
	for _, d := range roots {
		if d.Year != year {
			continue
		}
		values = append(values, d.Live)
	}
	return units.MeanPresent(values)
}

func missingDensities(samples []carbon.Density) int {
	n := 0
	for _, s := range samples {
		if !s.Carbon.Valid {
			n++
		}
	}
	return n
}

func missingRootLive(roots []carbon.RootDensity) int {
	n := 0
	for _, d := range roots {
		if !d.Live.Valid {
			n++
		}
	}
	return n
}

func missingHorizons(profile carbon.SoilProfile) int {
	n := 0
	for _, h := range profile.Horizons {
		if !h.Carbon.Valid {
			n++
		}
	}
	return n
}

func missingPoints(points []satellite.Point) int {
	n := 0
	for _, pt := range points {
		if !pt.Value.Valid {
			n++
		}
	}
	return n
}
