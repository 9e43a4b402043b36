// Package storage provides the content-addressed artifact store.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/opencontainers/go-digest"
)

// ObjectStore stores packaged artifact bytes by their OCI content digest.
// Identical content is stored once regardless of how many runs produce it.
type ObjectStore interface {
	// Put stores data and returns its digest. Storing existing content is a no-op
	// apart from bumping its reference count.
	Put(ctx context.Context, data []byte, meta Metadata) (digest.Digest, error)

	// Get retrieves content by digest. Returns ErrNotFound if absent.
	Get(ctx context.Context, dgst digest.Digest) (*Object, error)

	Exists(ctx context.Context, dgst digest.Digest) (bool, error)
	Delete(ctx context.Context, dgst digest.Digest) error

	// List returns every digest whose metadata kind matches; empty kind lists all.
	List(ctx context.Context, kind string) ([]digest.Digest, error)

	Close() error
}

// Object is stored content plus its metadata.
type Object struct {
	Digest   digest.Digest
	Size     int64
	Data     []byte
	Metadata Metadata
}

// Metadata is persisted next to each object.
type Metadata struct {
	Kind         string            `json:"kind,omitempty"` // artifact kind: main|sources|docs|pom
	MediaType    string            `json:"media_type,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
	RefCount     int               `json:"ref_count"`
	Custom       map[string]string `json:"custom,omitempty"`
}

// ErrNotFound is returned when an object doesn't exist.
type ErrNotFound struct {
	Digest digest.Digest
}

func (e ErrNotFound) Error() string {
	return "object not found: " + e.Digest.String()
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}
