// Package results persists completed budget pipeline runs.
//
// A Run is an immutable snapshot of one pipeline execution: the assembled
// annual budget plus the per-plot densities it was summarized from. Every
// store shares create-only Save semantics, so a recorded run is never
// silently rewritten. The sqlite and postgres stores hydrate an in-memory
// copy on open and serve all reads from it, persisting each new run as a
// JSON payload in a single runs table.
package results

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"carboncore/internal/carbon"
	"carboncore/internal/units"
)

// Driver identifies a concrete run store implementation.
type Driver string

const (
	// DriverMemory keeps runs in process memory (tests / ephemeral).
	DriverMemory Driver = "memory"
	// DriverSQLite persists runs to an embedded sqlite file.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres persists runs to a PostgreSQL server.
	DriverPostgres Driver = "postgres"
)

// ErrRunExists reports a Save whose ID is already recorded.
var ErrRunExists = errors.New("results: run already exists")

// Run is one completed execution of the annual budget pipeline for a site.
type Run struct {
	ID        string    `json:"id"`
	Site      string    `json:"site"`
	CreatedAt time.Time `json:"createdAt"`

	Budget carbon.Budget `json:"budget"`

	// Per-plot densities the budget slots were summarized from.
	LiveTrees    []carbon.Density     `json:"liveTrees,omitempty"`
	StandingDead []carbon.Density     `json:"standingDead,omitempty"`
	DownedWood   []carbon.Density     `json:"downedWood,omitempty"`
	Roots        []carbon.RootDensity `json:"roots,omitempty"`
	Soil         carbon.SoilProfile   `json:"soil"`

	// RootRatio is the live fraction used to split unpartitioned root mass.
	RootRatio units.Number `json:"rootRatio"`
}

// Store records and retrieves runs. Save is create-only: a run with an
// already recorded ID is rejected with ErrRunExists.
type Store interface {
	Save(ctx context.Context, run Run) (Run, error)
	Get(ctx context.Context, id string) (Run, bool, error)
	List(ctx context.Context, site string) ([]Run, error)
	Driver() Driver
	Close() error
}

func (r Run) clone() Run {
	out := r
	out.LiveTrees = append([]carbon.Density(nil), r.LiveTrees...)
	out.StandingDead = append([]carbon.Density(nil), r.StandingDead...)
	out.DownedWood = append([]carbon.Density(nil), r.DownedWood...)
	out.Roots = append([]carbon.RootDensity(nil), r.Roots...)
	out.Soil.Horizons = append([]carbon.Horizon(nil), r.Soil.Horizons...)
	return out
}

// normalize fills identity fields ahead of a Save.
func (r Run) normalize(now func() time.Time) Run {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now()
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
