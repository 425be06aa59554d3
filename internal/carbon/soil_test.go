package carbon

import (
	"testing"

	"carboncore/internal/table"
)

func soilFixture(t *testing.T) (bulk, biogeo *table.Table) {
	t.Helper()
	bulk = mustTable(t, "mgp_perbulksample",
		[]string{"horizonID", "bulkDensSampleType", "bulkDensTopDepth", "bulkDensBottomDepth", "bulkDensExclCoarseFrag"},
		[][]string{
			{"H2", "Regular", "10", "30", "1.2"},
			{"H1", "Regular", "0", "10", "1.0"},
			{"H3", "Audit", "30", "50", "9.9"},
			{"H4", "Regular", "50", "70", "1.1"},
		})
	biogeo = mustTable(t, "mgp_perbiogeosample",
		[]string{"horizonID", "biogeoSampleType", "carbonTot"},
		[][]string{
			{"H1", "Regular", "50"},
			{"H2", "Regular", "40"},
			{"H3", "Audit", "99"},
		})
	return bulk, biogeo
}

// Hand-computed reference: 10 cm at 1.0 g/cm³ and 50 g/kg gives 5.0, 20 cm at
// 1.2 g/cm³ and 40 g/kg gives 9.6, integrating to 14.6 kg C/m². The audit
// rows and the horizon without biogeochemistry must not contribute.
func TestSoilEstimatorReferenceProfile(t *testing.T) {
	bulk, biogeo := soilFixture(t)
	got, err := SoilEstimator{Config: DefaultConfig()}.Estimate(bulk, biogeo)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if len(got.Horizons) != 2 {
		t.Fatalf("got %d horizons, want 2: %+v", len(got.Horizons), got.Horizons)
	}
	if got.Horizons[0].ID != "H1" || got.Horizons[1].ID != "H2" {
		t.Fatalf("horizons out of depth order: %s, %s", got.Horizons[0].ID, got.Horizons[1].ID)
	}
	approx(t, "H1", got.Horizons[0].Carbon, 5.0)
	approx(t, "H2", got.Horizons[1].Carbon, 9.6)
	approx(t, "total", got.Total, 14.6)
}

func TestSoilEstimatorDepthOrdering(t *testing.T) {
	bulk, biogeo := soilFixture(t)
	got, err := SoilEstimator{Config: DefaultConfig()}.Estimate(bulk, biogeo)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	prev := -1.0
	for _, h := range got.Horizons {
		if h.TopDepthCM <= prev {
			t.Fatalf("horizon %s at %v cm not below previous top %v", h.ID, h.TopDepthCM, prev)
		}
		prev = h.TopDepthCM
	}
}

func TestSoilEstimatorMissingDensityStaysInProfile(t *testing.T) {
	bulk := mustTable(t, "mgp_perbulksample",
		[]string{"horizonID", "bulkDensSampleType", "bulkDensTopDepth", "bulkDensBottomDepth", "bulkDensExclCoarseFrag"},
		[][]string{
			{"H1", "Regular", "0", "10", "1.0"},
			{"H2", "Regular", "10", "30", ""},
		})
	biogeo := mustTable(t, "mgp_perbiogeosample",
		[]string{"horizonID", "biogeoSampleType", "carbonTot"},
		[][]string{
			{"H1", "Regular", "50"},
			{"H2", "Regular", "40"},
		})
	got, err := SoilEstimator{Config: DefaultConfig()}.Estimate(bulk, biogeo)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if len(got.Horizons) != 2 {
		t.Fatalf("got %d horizons, want 2", len(got.Horizons))
	}
	if got.Horizons[1].Carbon.Valid {
		t.Fatalf("horizon without bulk density should be missing, got %v", got.Horizons[1].Carbon.Value)
	}
	approx(t, "total skips missing horizon", got.Total, 5.0)
}

func TestSoilEstimatorInvertedHorizonIsMissing(t *testing.T) {
	bulk := mustTable(t, "mgp_perbulksample",
		[]string{"horizonID", "bulkDensSampleType", "bulkDensTopDepth", "bulkDensBottomDepth", "bulkDensExclCoarseFrag"},
		[][]string{
			{"H1", "Regular", "30", "10", "1.2"},
		})
	biogeo := mustTable(t, "mgp_perbiogeosample",
		[]string{"horizonID", "biogeoSampleType", "carbonTot"},
		[][]string{
			{"H1", "Regular", "40"},
		})
	got, err := SoilEstimator{Config: DefaultConfig()}.Estimate(bulk, biogeo)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if len(got.Horizons) != 1 || got.Horizons[0].Carbon.Valid {
		t.Fatalf("inverted horizon should be present but missing, got %+v", got.Horizons)
	}
	if got.Total.Valid {
		t.Fatalf("total over only missing horizons should be missing, got %v", got.Total.Value)
	}
}
