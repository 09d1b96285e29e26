package core

import (
	"context"
	"io"
)

// FileStore keeps uploaded files under opaque keys.
type FileStore interface {
	// Save stores the content of r under a new key prefixed with prefix and returns that key.
	// It returns a *ValidationError when the content is too large or of a disallowed type.
	Save(ctx context.Context, prefix, filename string, r io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Sheet is a single worksheet of tabular data.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]interface{}
}
