package driver

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"carboncore/internal/units"
	"carboncore/pkg/regression"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02T15:04:05Z", value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func mustIndex(t *testing.T, start, end string) Index {
	t.Helper()
	ix, err := NewIndex(day(t, start+"T00:00:00Z"), day(t, end+"T00:00:00Z"))
	if err != nil {
		t.Fatalf("index %s..%s: %v", start, end, err)
	}
	return ix
}

func seriesOf(ix Index, values ...units.Number) Series {
	s := NewSeries(ix)
	copy(s.Values, values)
	return s
}

func TestIndexSpansInclusiveDays(t *testing.T) {
	ix := mustIndex(t, "2018-01-01", "2018-01-05")
	if ix.Len() != 5 {
		t.Fatalf("len = %d, want 5", ix.Len())
	}
	if got := ix.At(4); !got.Equal(day(t, "2018-01-05T00:00:00Z")) {
		t.Fatalf("At(4) = %s", got)
	}
	if _, err := NewIndex(day(t, "2018-01-05T00:00:00Z"), day(t, "2018-01-01T00:00:00Z")); err == nil {
		t.Fatal("expected error for inverted index")
	}
}

func TestDailyExtremes(t *testing.T) {
	ix := mustIndex(t, "2018-06-01", "2018-06-03")
	plausible := units.Range{Min: -30, Max: 50}
	readings := []Reading{
		{At: day(t, "2018-06-01T06:00:00Z"), Value: units.Some(14)},
		{At: day(t, "2018-06-01T14:30:00Z"), Value: units.Some(31)},
		{At: day(t, "2018-06-01T22:00:00Z"), Value: units.Some(20)},
		{At: day(t, "2018-06-02T02:00:00Z"), Value: units.Some(-9999)},
		{At: day(t, "2018-06-02T12:00:00Z"), Value: units.None()},
		{At: day(t, "2018-06-03T04:00:00Z"), Value: units.Some(17)},
		{At: day(t, "2018-07-09T04:00:00Z"), Value: units.Some(99)},
	}

	min, max := DailyExtremes(readings, ix, plausible)
	if !min.Values[0].Valid || min.Values[0].Value != 14 {
		t.Fatalf("day 1 min = %+v, want 14", min.Values[0])
	}
	if !max.Values[0].Valid || max.Values[0].Value != 31 {
		t.Fatalf("day 1 max = %+v, want 31", max.Values[0])
	}
	if min.Values[1].Valid || max.Values[1].Valid {
		t.Fatalf("day 2 should be missing after the plausibility screen, got %+v / %+v", min.Values[1], max.Values[1])
	}
	if !min.Values[2].Valid || min.Values[2].Value != 17 || max.Values[2].Value != 17 {
		t.Fatalf("single-reading day: min %+v max %+v, want 17", min.Values[2], max.Values[2])
	}
}

func TestFillInterpolateBridgesGaps(t *testing.T) {
	ix := mustIndex(t, "2018-06-01", "2018-06-04")
	s := seriesOf(ix, units.Some(10), units.None(), units.None(), units.Some(16))

	got, err := FillInterpolate(s)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	want := []float64{10, 12, 14, 16}
	for i, w := range want {
		if !got.Values[i].Valid || math.Abs(got.Values[i].Value-w) > 1e-9 {
			t.Fatalf("day %d = %+v, want %v", i, got.Values[i], w)
		}
	}
}

func TestFillInterpolateHoldsEdges(t *testing.T) {
	ix := mustIndex(t, "2018-06-01", "2018-06-03")
	s := seriesOf(ix, units.None(), units.Some(5), units.None())

	got, err := FillInterpolate(s)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	for i := range got.Values {
		if !got.Values[i].Valid || got.Values[i].Value != 5 {
			t.Fatalf("day %d = %+v, want held 5", i, got.Values[i])
		}
	}
}

func TestFillInterpolateIdentityOnFullSeries(t *testing.T) {
	ix := mustIndex(t, "2018-06-01", "2018-06-03")
	s := seriesOf(ix, units.Some(1), units.Some(2), units.Some(3))

	got, err := FillInterpolate(s)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	for i := range s.Values {
		if got.Values[i] != s.Values[i] {
			t.Fatalf("day %d changed: %+v != %+v", i, got.Values[i], s.Values[i])
		}
	}
}

func TestFillInterpolateNeedsObservations(t *testing.T) {
	ix := mustIndex(t, "2018-06-01", "2018-06-03")
	if _, err := FillInterpolate(NewSeries(ix)); !errors.Is(err, ErrNoObservations) {
		t.Fatalf("got %v, want ErrNoObservations", err)
	}
}

// flatOracle predicts a constant mean and variance everywhere.
func flatOracle(mean, variance float64) regression.Oracle {
	return regression.OracleFunc(func(context.Context, []time.Time, []float64) (regression.Model, error) {
		return regression.ModelFunc(func(time.Time) (float64, float64, error) {
			return mean, variance, nil
		}), nil
	})
}

func TestFillRegressionPredictsOnlyMissingDays(t *testing.T) {
	ix := mustIndex(t, "2018-06-01", "2018-06-04")
	s := seriesOf(ix, units.Some(10), units.None(), units.Some(12), units.None())

	got, variance, err := FillRegression(context.Background(), s, flatOracle(7, 0.25))
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	wantValues := []float64{10, 7, 12, 7}
	for i, w := range wantValues {
		if !got.Values[i].Valid || got.Values[i].Value != w {
			t.Fatalf("day %d = %+v, want %v", i, got.Values[i], w)
		}
	}
	for i, v := range variance {
		imputed := i == 1 || i == 3
		if v.Valid != imputed {
			t.Fatalf("variance day %d = %+v, imputed=%v", i, v, imputed)
		}
		if imputed && v.Value != 0.25 {
			t.Fatalf("variance day %d = %v, want 0.25", i, v.Value)
		}
	}
}

func TestFillRegressionIdentitySkipsOracle(t *testing.T) {
	ix := mustIndex(t, "2018-06-01", "2018-06-02")
	s := seriesOf(ix, units.Some(1), units.Some(2))
	oracle := regression.OracleFunc(func(context.Context, []time.Time, []float64) (regression.Model, error) {
		t.Fatal("oracle consulted for a fully observed series")
		return nil, nil
	})

	got, variance, err := FillRegression(context.Background(), s, oracle)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	for i := range s.Values {
		if got.Values[i] != s.Values[i] {
			t.Fatalf("day %d changed: %+v", i, got.Values[i])
		}
		if variance[i].Valid {
			t.Fatalf("day %d has variance on an observed value", i)
		}
	}
}

func TestFillRegressionPropagatesOracleFailure(t *testing.T) {
	ix := mustIndex(t, "2018-06-01", "2018-06-02")
	s := seriesOf(ix, units.Some(1), units.None())
	broken := regression.OracleFunc(func(context.Context, []time.Time, []float64) (regression.Model, error) {
		return nil, errors.New("no convergence")
	})

	if _, _, err := FillRegression(context.Background(), s, broken); err == nil {
		t.Fatal("expected fit error to propagate")
	}
}

func TestFillStrategiesCoverSameGappedInput(t *testing.T) {
	ix := mustIndex(t, "2018-06-01", "2018-06-05")
	s := seriesOf(ix, units.None(), units.Some(4), units.None(), units.None(), units.Some(10))

	interp, err := FillInterpolate(s)
	if err != nil {
		t.Fatalf("interpolate: %v", err)
	}
	reg, _, err := FillRegression(context.Background(), s, flatOracle(6, 1))
	if err != nil {
		t.Fatalf("regression: %v", err)
	}
	if interp.Observed() != ix.Len() || reg.Observed() != ix.Len() {
		t.Fatalf("fills incomplete: interpolate %d, regression %d, want %d", interp.Observed(), reg.Observed(), ix.Len())
	}
}
