// Package regression declares the probabilistic regression collaborator used
// to gap-fill driver series. Fitting happens behind the Oracle boundary; this
// package deliberately carries no model implementation of its own, so callers
// depend only on the fit/predict contract.
package regression

import (
	"context"
	"time"
)

// Model is a fitted regression over time. Predict reports the posterior mean
// and variance at one instant; implementations must stay usable for any
// instant inside the fitted range, observed or not.
type Model interface {
	Predict(at time.Time) (mean, variance float64, err error)
}

// Oracle fits a Model to observed samples. The two slices are parallel and
// contain observed pairs only; missing steps are never passed in. Fit may be
// slow and must honor ctx cancellation.
type Oracle interface {
	Fit(ctx context.Context, times []time.Time, values []float64) (Model, error)
}

// ModelFunc adapts a plain prediction function to the Model interface.
type ModelFunc func(at time.Time) (mean, variance float64, err error)

// Predict implements Model.
func (f ModelFunc) Predict(at time.Time) (mean, variance float64, err error) {
	return f(at)
}

// OracleFunc adapts a plain fit function to the Oracle interface.
type OracleFunc func(ctx context.Context, times []time.Time, values []float64) (Model, error)

// Fit implements Oracle.
func (f OracleFunc) Fit(ctx context.Context, times []time.Time, values []float64) (Model, error) {
	return f(ctx, times, values)
}
