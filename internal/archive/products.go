package archive

// Product identifies one data-product release in the archive.
type Product string

// Products consumed by the carbon pipeline.
const (
	// ProductVegetationStructure holds the woody stem inventory.
	ProductVegetationStructure Product = "DP1.10098.001"
	// ProductDownedWood holds the coarse downed wood log survey.
	ProductDownedWood Product = "DP1.10014.001"
	// ProductRootSampling holds periodic root biomass coring.
	ProductRootSampling Product = "DP1.10067.001"
	// ProductSoilPit holds the megapit physical and chemical profiles.
	ProductSoilPit Product = "DP1.00096.001"
	// ProductAirTemperature holds single-aspirated air temperature readings.
	ProductAirTemperature Product = "DP1.00002.001"
	// ProductGreenness holds the 16-day vegetation-index composites.
	ProductGreenness Product = "MOD13Q1.061"
)

// Tables lists the table names a product release ships, empty for products
// the archive does not know.
func (p Product) Tables() []string {
	switch p {
	case ProductVegetationStructure:
		return []string{"vst_apparentindividual", "vst_mappingandtagging", "vst_perplotperyear"}
	case ProductDownedWood:
		return []string{"cdw_fieldtally", "cdw_densitydisk"}
	case ProductRootSampling:
		return []string{"bbc_rootmass", "bbc_percore"}
	case ProductSoilPit:
		return []string{"mgp_perbulksample", "mgp_perbiogeosample"}
	case ProductAirTemperature:
		return []string{"SAAT_30min"}
	case ProductGreenness:
		return []string{"mod13q1_ndvi"}
	default:
		return nil
	}
}
