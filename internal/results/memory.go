package results

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store. It also serves as the hydrated read cache
// behind the sqlite and postgres stores.
type Memory struct {
	mu   sync.RWMutex
	runs map[string]Run
	now  func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory constructs an empty in-memory run store.
func NewMemory() *Memory {
	return &Memory{
		runs: make(map[string]Run),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Save records run, assigning ID and CreatedAt when unset.
func (m *Memory) Save(_ context.Context, run Run) (Run, error) {
	run = run.normalize(m.now)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return Run{}, fmt.Errorf("%w: %s", ErrRunExists, run.ID)
	}
	m.runs[run.ID] = run.clone()
	return run, nil
}

// Get returns the recorded run with the given ID.
func (m *Memory) Get(_ context.Context, id string) (Run, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return Run{}, false, nil
	}
	return run.clone(), true, nil
}

// List returns the runs recorded for site, newest first. An empty site
// returns every run.
func (m *Memory) List(_ context.Context, site string) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Run, 0, len(m.runs))
	for _, run := range m.runs {
		if site != "" && run.Site != site {
			continue
		}
		out = append(out, run.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Driver reports the backing driver.
func (m *Memory) Driver() Driver { return DriverMemory }

// Close releases nothing for the in-memory store.
func (m *Memory) Close() error { return nil }

// hydrate seeds the store from previously persisted runs, bypassing the
// create-only check.
func (m *Memory) hydrate(runs []Run) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range runs {
		m.runs[run.ID] = run.clone()
	}
}
