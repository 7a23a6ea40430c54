package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a content ref does not resolve to stored bytes.
var ErrNotFound = errors.New("content not found")

// ContentStore abstracts where uploaded document bytes live. The engine and
// document service only ever hold opaque refs; deleting a document must
// release its content through this interface first.
type ContentStore interface {
	// Write stores the content and returns an opaque ref for later reads.
	Write(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	// Read opens the content behind ref and reports its size in bytes.
	Read(ctx context.Context, ref string) (io.ReadCloser, int64, error)
	// Delete releases the content behind ref.
	Delete(ctx context.Context, ref string) error
}
