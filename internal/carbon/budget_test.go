package carbon

import (
	"testing"

	"carboncore/internal/units"
)

func TestAssembleSumsPresentComponents(t *testing.T) {
	b := Assemble(2018, units.Some(3.1), units.Some(0.4), units.Some(0.2), units.Some(14.6))
	approx(t, "total", b.Total, 18.3)
	if b.Year != 2018 {
		t.Fatalf("year = %d, want 2018", b.Year)
	}
}

func TestAssembleOneMissingComponent(t *testing.T) {
	b := Assemble(2018, units.Some(3.1), units.None(), units.Some(0.2), units.Some(14.6))
	if b.StandingDead.Valid {
		t.Fatalf("missing slot coerced to %v", b.StandingDead.Value)
	}
	approx(t, "total", b.Total, 17.9)
}

func TestAssembleAllMissing(t *testing.T) {
	b := Assemble(2018, units.None(), units.None(), units.None(), units.None())
	if b.Total.Valid {
		t.Fatalf("total over no components should be missing, got %v", b.Total.Value)
	}
}

func TestBudgetComponentsOrder(t *testing.T) {
	want := []Component{
		ComponentLiveTrees,
		ComponentStandingDead,
		ComponentDownedWood,
		ComponentSoil,
		ComponentTotal,
	}
	got := Components()
	if len(got) != len(want) {
		t.Fatalf("got %d components, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("component[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBudgetValueBySlot(t *testing.T) {
	b := Assemble(2018, units.Some(1), units.Some(2), units.Some(3), units.Some(4))
	cases := map[Component]float64{
		ComponentLiveTrees:    1,
		ComponentStandingDead: 2,
		ComponentDownedWood:   3,
		ComponentSoil:         4,
		ComponentTotal:        10,
	}
	for c, want := range cases {
		approx(t, string(c), b.Value(c), want)
	}
	if b.Value(Component("unknown")).Valid {
		t.Fatal("unknown slot should be missing")
	}
}
