package store

import (
	"context"
	"errors"
	"fmt"
)

// Backend names accepted by Open
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendS3     = "s3"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name
var ErrUnknownBackend = errors.New("unknown store backend")

// Store persists question identifier to answer mappings across restarts
type Store interface {
	// Get returns the stored answer and whether it was found
	Get(ctx context.Context, identifier string) (string, bool, error)
	// Put stores an answer, replacing any previous value for the identifier
	Put(ctx context.Context, identifier, answer string) error
	// Flush makes sure every accepted write is durable
	Flush(ctx context.Context) error
	// Close releases the backend
	Close() error
}

// Lister is implemented by stores that can enumerate their contents
type Lister interface {
	All(ctx context.Context) (map[string]string, error)
}

// Options selects and configures a backend
type Options struct {
	Backend string
	// Path is the sqlite database or JSON document path
	Path string
	// Bucket and Key locate the JSON document for the s3 backend
	Bucket string
	Key    string
	Region string
}

// Open creates the store described by opts
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		return NewSQLite(opts.Path)
	case BackendFile:
		return NewFile(opts.Path)
	case BackendS3:
		return NewS3(ctx, opts.Bucket, opts.Key, opts.Region)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, opts.Backend)
	}
}

// Import copies every record into dst and returns how many were written
func Import(ctx context.Context, dst Store, records map[string]string) (int, error) {
	n := 0
	for id, answer := range records {
		if err := dst.Put(ctx, id, answer); err != nil {
			return n, fmt.Errorf("failed to import %q: %w", id, err)
		}
		n++
	}
	if err := dst.Flush(ctx); err != nil {
		return n, fmt.Errorf("failed to flush after import: %w", err)
	}
	return n, nil
}
