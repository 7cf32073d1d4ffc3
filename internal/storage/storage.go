// Package storage defines the interface for object storage operations.
// Swap implementations by changing the concrete type injected at startup —
// the MinIO implementation works with any S3-compatible provider (MinIO,
// Cloudflare R2, AWS S3).
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned by Stat when no object exists at the key.
var ErrObjectNotFound = errors.New("object not found in storage")

// ObjectInfo holds the metadata the store reports for an existing object.
type ObjectInfo struct {
	SizeBytes   int64
	ContentType string
}

// Storage is the interface for issuing upload credentials and managing objects.
type Storage interface {
	// PresignPut returns a time-limited URL allowing a single PUT of the
	// given content type to exactly this key.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	// Stat reports size and content type of the object at key, or
	// ErrObjectNotFound if nothing was uploaded there.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	// Delete removes an object identified by key.
	Delete(ctx context.Context, key string) error
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
}
