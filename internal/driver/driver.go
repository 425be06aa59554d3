// Package driver turns sub-daily sensor readings into complete daily driver
// series. Readings are reduced to per-day extremes on a fixed daily index,
// implausible values are discarded as missing, and the remaining gaps are
// filled by one of two independent strategies: deterministic interpolation
// along the time axis, or a probabilistic regression oracle fit on the
// observed days only.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carboncore/internal/units"
	"carboncore/pkg/regression"
)

// Reading is one sub-daily sensor sample.
type Reading struct {
	At    time.Time
	Value units.Number
}

// Index is the fixed daily axis every series in a run shares. Days are UTC
// calendar days.
type Index struct {
	start time.Time
	days  int
}

// NewIndex spans the UTC days from start through end, inclusive.
func NewIndex(start, end time.Time) (Index, error) {
	s := midnightUTC(start)
	e := midnightUTC(end)
	if e.Before(s) {
		return Index{}, fmt.Errorf("driver: index end %s before start %s", e.Format("2006-01-02"), s.Format("2006-01-02"))
	}
	days := int(e.Sub(s).Hours()/24) + 1
	return Index{start: s, days: days}, nil
}

// Len is the number of days on the axis.
func (ix Index) Len() int { return ix.days }

// At returns the midnight instant of day i.
func (ix Index) At(i int) time.Time { return ix.start.AddDate(0, 0, i) }

// dayOf places an instant on the axis, reporting false outside it.
func (ix Index) dayOf(t time.Time) (int, bool) {
	d := int(midnightUTC(t).Sub(ix.start).Hours() / 24)
	if d < 0 || d >= ix.days {
		return 0, false
	}
	return d, true
}

func midnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Series is one driver variable materialized on a daily index. Values always
// has exactly Index.Len() entries.
type Series struct {
	Index  Index
	Values []units.Number
}

// NewSeries returns an all-missing series on the index.
func NewSeries(ix Index) Series {
	return Series{Index: ix, Values: make([]units.Number, ix.Len())}
}

func (s Series) clone() Series {
	out := Series{Index: s.Index, Values: make([]units.Number, len(s.Values))}
	copy(out.Values, s.Values)
	return out
}

// Observed counts the days carrying a value.
func (s Series) Observed() int {
	n := 0
	for _, v := range s.Values {
		if v.Valid {
			n++
		}
	}
	return n
}

// DailyExtremes reduces sub-daily readings to per-day minimum and maximum
// series on the index. Missing readings and readings outside the plausible
// range are discarded; a day with nothing left stays missing. Readings that
// fall outside the index are ignored.
func DailyExtremes(readings []Reading, ix Index, plausible units.Range) (min, max Series) {
	min = NewSeries(ix)
	max = NewSeries(ix)
	for _, r := range readings {
		if !r.Value.Valid || !plausible.Contains(r.Value.Value) {
			continue
		}
		day, ok := ix.dayOf(r.At)
		if !ok {
			continue
		}
		v := r.Value.Value
		if cur := min.Values[day]; !cur.Valid || v < cur.Value {
			min.Values[day] = units.Some(v)
		}
		if cur := max.Values[day]; !cur.Valid || v > cur.Value {
			max.Values[day] = units.Some(v)
		}
	}
	return min, max
}

// ErrNoObservations reports a series with nothing to fill from.
var ErrNoObservations = errors.New("driver: series has no observed days")

// FillInterpolate fills every missing day by linear interpolation between the
// neighboring observed days, holding the nearest observed value before the
// first and after the last observation. A fully observed series comes back
// unchanged.
func FillInterpolate(s Series) (Series, error) {
	obs := observedDays(s)
	if len(obs) == 0 {
		return Series{}, ErrNoObservations
	}
	out := s.clone()
	for i := 0; i < obs[0]; i++ {
		out.Values[i] = s.Values[obs[0]]
	}
	for i := obs[len(obs)-1] + 1; i < len(out.Values); i++ {
		out.Values[i] = s.Values[obs[len(obs)-1]]
	}
	for k := 0; k+1 < len(obs); k++ {
		a, b := obs[k], obs[k+1]
		va, vb := s.Values[a].Value, s.Values[b].Value
		for i := a + 1; i < b; i++ {
			frac := float64(i-a) / float64(b-a)
			out.Values[i] = units.Some(va + frac*(vb-va))
		}
	}
	return out, nil
}

// FillRegression fits the oracle on the observed days and predicts the
// missing ones. The predictive mean lands in the series; the variance is
// returned alongside, present only on the imputed days. A fully observed
// series comes back unchanged without consulting the oracle.
func FillRegression(ctx context.Context, s Series, oracle regression.Oracle) (Series, []units.Number, error) {
	obs := observedDays(s)
	if len(obs) == 0 {
		return Series{}, nil, ErrNoObservations
	}
	out := s.clone()
	variance := make([]units.Number, len(s.Values))
	if len(obs) == len(s.Values) {
		return out, variance, nil
	}

	times := make([]time.Time, len(obs))
	values := make([]float64, len(obs))
	for i, day := range obs {
		times[i] = s.Index.At(day)
		values[i] = s.Values[day].Value
	}
	model, err := oracle.Fit(ctx, times, values)
	if err != nil {
		return Series{}, nil, fmt.Errorf("driver: fit regression: %w", err)
	}
	for day := range s.Values {
		if s.Values[day].Valid {
			continue
		}
		mean, v, err := model.Predict(s.Index.At(day))
		if err != nil {
			return Series{}, nil, fmt.Errorf("driver: predict day %s: %w", s.Index.At(day).Format("2006-01-02"), err)
		}
		out.Values[day] = units.Some(mean)
		variance[day] = units.Some(v)
	}
	return out, variance, nil
}

func observedDays(s Series) []int {
	var obs []int
	for i, v := range s.Values {
		if v.Valid {
			obs = append(obs, i)
		}
	}
	return obs
}
