package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"carboncore/internal/table"
)

const csvContentType = "text/csv"

// Source materializes the measurement tables of a product release at a site.
// The pipeline consumes tables exclusively through this boundary.
type Source interface {
	// Table fetches one named table.
	Table(ctx context.Context, product Product, site, name string) (*table.Table, error)
	// Tables discovers the table names stored for the release.
	Tables(ctx context.Context, product Product, site string) ([]string, error)
}

// StoreSource reads CSV objects laid out as product/site/table.csv from a
// Store. It also seeds releases, which is how fixtures and archive refreshes
// get written.
type StoreSource struct {
	store Store
}

var _ Source = (*StoreSource)(nil)

// NewSource wraps a Store in the table-retrieval boundary.
func NewSource(store Store) *StoreSource { return &StoreSource{store: store} }

func objectKey(product Product, site, name string) string {
	return path.Join(string(product), site, name+".csv")
}

// Table fetches and decodes one table of a release.
func (s *StoreSource) Table(ctx context.Context, product Product, site, name string) (*table.Table, error) {
	key := objectKey(product, site, name)
	_, body, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("archive: table %s: %w", key, err)
	}
	defer func() { _ = body.Close() }()
	return DecodeTable(name, body)
}

// Tables lists the table names stored under the release prefix, sorted.
func (s *StoreSource) Tables(ctx context.Context, product Product, site string) ([]string, error) {
	prefix := path.Join(string(product), site) + "/"
	infos, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("archive: list %s: %w", prefix, err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		name := strings.TrimPrefix(info.Key, prefix)
		name = strings.TrimSuffix(name, ".csv")
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// PutTable encodes and stores one table of a release. Releases are immutable;
// storing a table twice fails with ErrExists.
func (s *StoreSource) PutTable(ctx context.Context, product Product, site string, t *table.Table) (Info, error) {
	var buf bytes.Buffer
	if err := EncodeTable(t, &buf); err != nil {
		return Info{}, fmt.Errorf("archive: encode %s: %w", t.Name(), err)
	}
	return s.store.Put(ctx, objectKey(product, site, t.Name()), &buf, csvContentType)
}
