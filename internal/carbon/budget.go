package carbon

import "carboncore/internal/units"

// Component labels the budget slots in presentation order.
type Component string

// Budget slots. The first four come from the estimators; Total is derived.
const (
	ComponentLiveTrees    Component = "live trees"
	ComponentStandingDead Component = "standing dead"
	ComponentDownedWood   Component = "downed coarse wood"
	ComponentSoil         Component = "soil"
	ComponentTotal        Component = "total"
)

// Components lists the budget slots in presentation order.
func Components() []Component {
	return []Component{
		ComponentLiveTrees,
		ComponentStandingDead,
		ComponentDownedWood,
		ComponentSoil,
		ComponentTotal,
	}
}

// Budget is the assembled site budget: four estimator scalars and their
// total, all in kg C per m².
type Budget struct {
	Year         int          `json:"year"`
	LiveTrees    units.Number `json:"liveTrees"`
	StandingDead units.Number `json:"standingDead"`
	DownedWood   units.Number `json:"downedWood"`
	Soil         units.Number `json:"soil"`
	Total        units.Number `json:"total"`
}

// Assemble builds the budget from the four estimator scalars. Total sums the
// present components, so one missing slot stays missing without invalidating
// the total; a budget with no present components has a missing total.
func Assemble(year int, liveTrees, standingDead, downedWood, soil units.Number) Budget {
	return Budget{
		Year:         year,
		LiveTrees:    liveTrees,
		StandingDead: standingDead,
		DownedWood:   downedWood,
		Soil:         soil,
		Total:        units.SumPresent([]units.Number{liveTrees, standingDead, downedWood, soil}),
	}
}

// Value returns the scalar stored in one slot.
func (b Budget) Value(c Component) units.Number {
	switch c {
	case ComponentLiveTrees:
		return b.LiveTrees
	case ComponentStandingDead:
		return b.StandingDead
	case ComponentDownedWood:
		return b.DownedWood
	case ComponentSoil:
		return b.Soil
	case ComponentTotal:
		return b.Total
	default:
		return units.None()
	}
}
