package archive

import (
	"context"
	"fmt"
	"io/fs"
)

// ErrNotExist is returned by Read when nothing is stored at the path.
// It matches fs.ErrNotExist with errors.Is.
var ErrNotExist = fs.ErrNotExist

// Storage defines the interface for document storage backends
type Storage interface {
	// Write stores data at the given path, replacing any previous content
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Config selects and configures a Storage backend
type Config struct {
	Type string // "localfs", "s3" or "memory"
	Path string
	S3   S3Config
}

// New opens the backend named by cfg.Type.
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "localfs":
		return NewLocalFS(cfg.Path)
	case "s3":
		return NewS3(cfg.S3)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive type %q", cfg.Type)
	}
}
