package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docvault/docvault/internal/document"
)

var (
	ErrNotFound = errors.New("document not found")
)

// MemoryRepo is an in-memory document repository used for unit tests and
// single-node runs. The Mongo-backed repository mirrors its behavior.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*document.Document
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*document.Document)}
}

func (m *MemoryRepo) Create(ctx context.Context, doc *document.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	cp := *doc
	m.store[doc.ID] = &cp
	return doc.ID, nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryRepo) List(ctx context.Context, q document.Query) ([]*document.Document, int64, error) {
	m.mu.RLock()
	matched := make([]*document.Document, 0, len(m.store))
	for _, d := range m.store {
		if q.CreatedBy != "" && d.CreatedBy != q.CreatedBy {
			continue
		}
		if q.Status != "" && d.Status != q.Status {
			continue
		}
		if q.Search != "" {
			s := strings.ToLower(q.Search)
			if !strings.Contains(strings.ToLower(d.Title), s) &&
				!strings.Contains(strings.ToLower(d.Description), s) {
				continue
			}
		}
		cp := *d
		matched = append(matched, &cp)
	}
	m.mu.RUnlock()

	sortDocs(matched, q.SortBy, q.SortOrder)
	total := int64(len(matched))

	skip := (q.Page - 1) * q.Limit
	if skip >= len(matched) {
		return []*document.Document{}, total, nil
	}
	end := skip + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[skip:end], total, nil
}

func sortDocs(docs []*document.Document, sortBy, sortOrder string) {
	desc := !strings.EqualFold(sortOrder, "asc")
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		var less bool
		switch sortBy {
		case "title":
			less = a.Title < b.Title
		case "status":
			less = a.Status < b.Status
		case "size":
			less = a.Size < b.Size
		case "updatedAt":
			less = a.UpdatedAt.Before(b.UpdatedAt)
		default: // createdAt
			less = a.CreatedAt.Before(b.CreatedAt)
		}
		if desc {
			return !less && !equalKey(a, b, sortBy)
		}
		return less
	})
}

func equalKey(a, b *document.Document, sortBy string) bool {
	switch sortBy {
	case "title":
		return a.Title == b.Title
	case "status":
		return a.Status == b.Status
	case "size":
		return a.Size == b.Size
	case "updatedAt":
		return a.UpdatedAt.Equal(b.UpdatedAt)
	default:
		return a.CreatedAt.Equal(b.CreatedAt)
	}
}

// Apply mutates only the fields present in the patch.
func (m *MemoryRepo) Apply(ctx context.Context, id string, p document.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Metadata != nil {
		d.Metadata = p.Metadata
	}
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// SetStatus writes the status field only.
func (m *MemoryRepo) SetStatus(ctx context.Context, id string, st document.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = st
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// SetExtraction writes the extraction result and status in one step.
func (m *MemoryRepo) SetExtraction(ctx context.Context, id, text string, st document.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	d.ExtractedText = text
	d.Status = st
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}
