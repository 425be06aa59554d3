// Package report renders budget run artifacts and publishes them to the
// measurement archive.
//
// Four formats are supported: the labeled budget table as CSV and JSON, a
// full-run XLSX workbook, and a PNG diagnostic of an observed-versus-filled
// driver series. Artifacts are immutable objects stored under
// reports/<site>/<run>/<name>.
package report

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"carboncore/internal/archive"
	"carboncore/internal/carbon"
	"carboncore/internal/driver"
	"carboncore/internal/results"
	"carboncore/internal/units"
)

// Format identifies a report artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPNG  Format = "png"
)

// Artifact captures a rendered report object.
type Artifact struct {
	ID          string    `json:"id"`
	Key         string    `json:"key,omitempty"`
	Format      Format    `json:"format"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAt"`
}

type renderedArtifact struct {
	Artifact Artifact
	Payload  []byte
}

// Publisher renders run artifacts and uploads them through an archive
// store. A nil store renders without uploading.
type Publisher struct {
	store archive.Store
}

// NewPublisher constructs a publisher backed by store.
func NewPublisher(store archive.Store) *Publisher {
	return &Publisher{store: store}
}

// Publish renders the requested run formats and stores each artifact.
// With no formats it renders JSON and CSV. FormatPNG is rejected here;
// the series diagnostic needs driver data and goes through
// PublishSeriesPNG.
func (p *Publisher) Publish(ctx context.Context, run results.Run, formats ...Format) ([]Artifact, error) {
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	artifacts := make([]Artifact, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, format := range formats {
		if _, duplicate := seen[format]; duplicate {
			continue
		}
		seen[format] = struct{}{}
		rendered, err := p.materialize(format, run)
		if err != nil {
			return nil, err
		}
		stored, err := p.upload(ctx, run, rendered, fileNameFor(format))
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, stored)
	}
	return artifacts, nil
}

// PublishSeriesPNG renders the driver diagnostic for run and stores it.
func (p *Publisher) PublishSeriesPNG(ctx context.Context, run results.Run, observed, filled driver.Series) (Artifact, error) {
	payload, err := RenderSeriesPNG(observed, filled)
	if err != nil {
		return Artifact{}, err
	}
	rendered := renderedArtifact{
		Artifact: Artifact{
			ID:          newID(),
			Format:      FormatPNG,
			ContentType: "image/png",
			SizeBytes:   int64(len(payload)),
			CreatedAt:   time.Now().UTC(),
		},
		Payload: payload,
	}
	return p.upload(ctx, run, rendered, fileNameFor(FormatPNG))
}

func (p *Publisher) materialize(format Format, run results.Run) (renderedArtifact, error) {
	var payload []byte
	var contentType string
	var err error
	switch format {
	case FormatJSON:
		payload, err = RenderJSON(run)
		contentType = "application/json"
	case FormatCSV:
		payload, err = RenderCSV(run.Budget)
		contentType = "text/csv"
	case FormatXLSX:
		payload, err = RenderWorkbook(run)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPNG:
		return renderedArtifact{}, fmt.Errorf("report: format %s requires a driver series", format)
	default:
		return renderedArtifact{}, fmt.Errorf("report: unsupported format %s", format)
	}
	if err != nil {
		return renderedArtifact{}, err
	}
	return renderedArtifact{
		Artifact: Artifact{
			ID:          newID(),
			Format:      format,
			ContentType: contentType,
			SizeBytes:   int64(len(payload)),
			CreatedAt:   time.Now().UTC(),
		},
		Payload: payload,
	}, nil
}

func (p *Publisher) upload(ctx context.Context, run results.Run, rendered renderedArtifact, name string) (Artifact, error) {
	if p.store == nil {
		return rendered.Artifact, nil
	}
	key := path.Join("reports", run.Site, run.ID, name)
	info, err := p.store.Put(ctx, key, bytes.NewReader(rendered.Payload), rendered.Artifact.ContentType)
	if err != nil {
		return Artifact{}, fmt.Errorf("store artifact %s: %w", name, err)
	}
	out := rendered.Artifact
	out.Key = info.Key
	if info.Size > 0 {
		out.SizeBytes = info.Size
	}
	if !info.LastModified.IsZero() {
		out.CreatedAt = info.LastModified
	}
	return out, nil
}

func fileNameFor(format Format) string {
	switch format {
	case FormatJSON:
		return "budget.json"
	case FormatCSV:
		return "budget.csv"
	case FormatXLSX:
		return "run.xlsx"
	case FormatPNG:
		return "drivers.png"
	}
	return string(format)
}

type budgetDocument struct {
	Site      string        `json:"site"`
	RunID     string        `json:"runId,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	Budget    carbon.Budget `json:"budget"`
}

// RenderJSON encodes the labeled budget table with run identity.
func RenderJSON(run results.Run) ([]byte, error) {
	doc := budgetDocument{
		Site:      run.Site,
		RunID:     run.ID,
		CreatedAt: run.CreatedAt,
		Budget:    run.Budget,
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return payload, nil
}

// RenderCSV encodes the labeled budget table. Missing slots render as NA.
func RenderCSV(budget carbon.Budget) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write([]string{"component", "kilogramsCarbonPerSquareMeter"}); err != nil {
		return nil, err
	}
	for _, component := range carbon.Components() {
		record := []string{string(component), formatNumber(budget.Value(component))}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatNumber(n units.Number) string {
	if !n.Valid {
		return "NA"
	}
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}
