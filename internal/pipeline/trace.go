package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Tracer observes pipeline stages. The pipeline opens one span per stage and
// ends it with the stage outcome.
type Tracer interface {
	Start(ctx context.Context, stage string) (context.Context, Span)
}

// Span is one running stage.
type Span interface {
	End(err error)
}

// TraceEntry is a finished stage span as serialized by JSONTracer.
type TraceEntry struct {
	Stage      string    `json:"stage"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTracer serializes stage spans as JSON lines and retains them for
// inspection after the run.
type JSONTracer struct {
	mu      sync.Mutex
	entries []TraceEntry
	enc     *json.Encoder
}

var _ Tracer = (*JSONTracer)(nil)

// NewJSONTracer constructs a tracer that writes spans to w as they end. A nil
// writer keeps the entries in memory only.
func NewJSONTracer(w io.Writer) *JSONTracer {
	var enc *json.Encoder
	if w != nil {
		enc = json.NewEncoder(w)
	}
	return &JSONTracer{enc: enc}
}

// Entries returns a copy of all recorded spans.
func (t *JSONTracer) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, stage string) (context.Context, Span) {
	return ctx, &jsonSpan{tracer: t, stage: stage, started: time.Now().UTC()}
}

type jsonSpan struct {
	tracer  *JSONTracer
	stage   string
	started time.Time
}

func (s *jsonSpan) End(err error) {
	status := "success"
	var errMsg string
	if err != nil {
		status = "error"
		errMsg = err.Error()
	}
	ended := time.Now().UTC()
	entry := TraceEntry{
		Stage:      s.stage,
		Status:     status,
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		Error:      errMsg,
		StartedAt:  s.started,
		EndedAt:    ended,
	}

	s.tracer.mu.Lock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
	s.tracer.mu.Unlock()
}

// nopTracer drops every span.
type nopTracer struct{}

var _ Tracer = nopTracer{}

func (nopTracer) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

type nopSpan struct{}

func (nopSpan) End(error) {}
