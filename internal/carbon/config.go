package carbon

import (
	"fmt"

	"carboncore/pkg/allometry"
)

// Config carries the site constants every estimator shares. Estimators take
// it by value, so a parameter sweep is just a second Config.
type Config struct {
	// Site is the field-site code the measurement tables describe.
	Site string `json:"site"`
	// Location keys the allometric collaborator.
	Location allometry.Coordinates `json:"location"`

	// TowerPlotType names the plot category admitted into the estimators.
	TowerPlotType string `json:"towerPlotType"`
	// BreastHeightCM is the stem measurement height eligible for allometry.
	BreastHeightCM float64 `json:"breastHeightCM"`

	// BelowgroundRatio scales above-ground biomass to below-ground biomass.
	BelowgroundRatio float64 `json:"belowgroundRatio"`
	// CarbonFraction is the carbon share of dry biomass.
	CarbonFraction float64 `json:"carbonFraction"`

	// WoodVolumeFactor converts a disk bulk density into the volumetric
	// density implied by this site's downed-wood survey design.
	WoodVolumeFactor float64 `json:"woodVolumeFactor"`
	// WoodLengthScale converts summed volumetric densities to a per-area
	// carbon density.
	WoodLengthScale float64 `json:"woodLengthScale"`

	// RootReferenceYear is the year whose measured live/dead partition seeds
	// the root ratio transfer.
	RootReferenceYear int `json:"rootReferenceYear"`
	// BudgetYear is the year the assembled budget describes.
	BudgetYear int `json:"budgetYear"`
}

// DefaultConfig returns the constants used for the Ordway-Swisher sandhill
// site.
func DefaultConfig() Config {
	return Config{
		Site:              "OSBS",
		Location:          allometry.Coordinates{Latitude: 29.68928, Longitude: -81.99343},
		TowerPlotType:     "tower",
		BreastHeightCM:    130,
		BelowgroundRatio:  0.3,
		CarbonFraction:    0.5,
		WoodVolumeFactor:  10,
		WoodLengthScale:   0.1,
		RootReferenceYear: 2017,
		BudgetYear:        2018,
	}
}

// Validate reports the first implausible constant.
func (c Config) Validate() error {
	if c.Site == "" {
		return fmt.Errorf("carbon: config missing site code")
	}
	if c.TowerPlotType == "" {
		return fmt.Errorf("carbon: config missing tower plot type")
	}
	if !(c.BreastHeightCM > 0) {
		return fmt.Errorf("carbon: breast height %v must be positive", c.BreastHeightCM)
	}
	if c.BelowgroundRatio < 0 {
		return fmt.Errorf("carbon: below-ground ratio %v must be non-negative", c.BelowgroundRatio)
	}
	if !(c.CarbonFraction > 0 && c.CarbonFraction <= 1) {
		return fmt.Errorf("carbon: carbon fraction %v must be in (0, 1]", c.CarbonFraction)
	}
	if !(c.WoodVolumeFactor > 0) {
		return fmt.Errorf("carbon: wood volume factor %v must be positive", c.WoodVolumeFactor)
	}
	if !(c.WoodLengthScale > 0) {
		return fmt.Errorf("carbon: wood length scale %v must be positive", c.WoodLengthScale)
	}
	return nil
}
