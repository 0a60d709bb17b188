// Package storage provides the backends artifacts are published to.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/bitswalk/kforge/src/common/errors"
)

// Backend defines the interface for storage backends
type Backend interface {
	// Upload stores size bytes from reader under key, replacing any existing object
	Upload(ctx context.Context, key string, reader io.ReadSeeker, size int64, contentType string) error

	// Download opens an object for reading. A missing object is
	// artifact.missing.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// GetInfo retrieves metadata for an object
	GetInfo(ctx context.Context, key string) (*ObjectInfo, error)

	// List lists objects with the given prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Delete deletes an object; deleting a missing object is not an error
	Delete(ctx context.Context, key string) error

	// Ping checks if the storage is accessible
	Ping(ctx context.Context) error

	// Type returns the storage backend type
	Type() string

	// Location returns a human-readable location description
	Location() string
}

// Presigner is implemented by backends that can hand out time-limited
// download URLs
type Presigner interface {
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// PathResolver is implemented by backends that keep objects on the local
// filesystem
type PathResolver interface {
	// ResolvePath returns the absolute filesystem path for a storage key
	ResolvePath(key string) string
}

// ObjectInfo holds metadata about a storage object
type ObjectInfo struct {
	Key          string    `json:"key" yaml:"key"`
	Size         int64     `json:"size" yaml:"size"`
	ContentType  string    `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty" yaml:"etag,omitempty"`
	LastModified time.Time `json:"last_modified" yaml:"last_modified"`
}

// Config holds the storage configuration
type Config struct {
	// Type is the storage backend type: "s3" or "local"
	Type string

	Local LocalConfig
	S3    S3Config
}

// DefaultConfig returns a default storage configuration (local filesystem)
func DefaultConfig() Config {
	return Config{
		Type: "local",
		Local: LocalConfig{
			BasePath: "~/.local/share/kforge/artifacts",
		},
	}
}

// New creates a new storage backend based on configuration
func New(cfg Config) (Backend, error) {
	switch cfg.Type {
	case "s3":
		return NewS3(cfg.S3)
	case "local", "":
		return NewLocal(cfg.Local)
	default:
		return nil, errors.ErrConfigInvalid.WithMessagef("unknown storage type %q (expected local or s3)", cfg.Type)
	}
}
