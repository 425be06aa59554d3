// Package archive materializes raw measurement tables for a (product, site)
// release out of an object store. Backends cover the local filesystem for
// development, S3-compatible services for shared archives, and process memory
// for tests; all of them expose the same thin create-only object surface, and
// the Source layered on top decodes stored CSV objects into tables.
package archive

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete archive backend implementation.
type Driver string

const (
	// DriverFilesystem is the local filesystem backend (default, dev).
	DriverFilesystem Driver = "fs"
	// DriverS3 is the S3 / MinIO compatible backend.
	DriverS3 Driver = "s3"
	// DriverMemory is the in-memory backend used in tests.
	DriverMemory Driver = "memory"
)

// Info describes one stored object.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the object surface behind the archive. Semantics mirror a minimal
// subset of S3 so the S3 adapter stays nearly 1:1 while the filesystem
// backend emulates them.
type Store interface {
	// Put stores a new object at key and fails if the key already exists.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	// Get retrieves object contents and metadata.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// Delete removes an object, reporting false when it was absent.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns objects under prefix, ordered by key ascending.
	List(ctx context.Context, prefix string) ([]Info, error)
	// Driver identifies the configured backend.
	Driver() Driver
}

// ErrExists is returned by Put when the key is already stored; releases are
// immutable once written.
var ErrExists = errors.New("archive: object already exists")
