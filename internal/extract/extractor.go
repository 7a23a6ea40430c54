package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/docvault/docvault/internal/storage"
)

// Extractor is the pluggable text-extraction collaborator invoked by the
// ingestion worker. Implementations must treat the call as fallible; the
// engine maps any error into the process's Failed state.
type Extractor interface {
	Extract(ctx context.Context, contentRef string) (string, error)
}

// StubExtractor reads the stored content and reports its size in place of a
// real parser. Swap in a real implementation behind the same interface.
type StubExtractor struct {
	Store storage.ContentStore
}

func NewStubExtractor(store storage.ContentStore) *StubExtractor {
	return &StubExtractor{Store: store}
}

func (e *StubExtractor) Extract(ctx context.Context, contentRef string) (string, error) {
	rc, size, err := e.Store.Read(ctx, contentRef)
	if err != nil {
		return "", fmt.Errorf("read content %s: %w", contentRef, err)
	}
	rc.Close()
	return fmt.Sprintf("Extracted text from file (%d bytes). Processing completed at %s",
		size, time.Now().UTC().Format(time.RFC3339)), nil
}
