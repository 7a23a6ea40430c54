package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docvault/docvault/internal/ingestion"
)

var (
	ErrNotFound = errors.New("ingestion process not found")
	// ErrTerminal is returned by the conditional transitions when the process
	// is not in a state the transition may leave. The worker treats it as
	// "someone else finished or cancelled this first" and skips its write.
	ErrTerminal = errors.New("ingestion process already terminal")
)

// MemoryRepo is an in-memory process repository. All transitions are
// conditional on the current status under the repository lock, which gives
// the compare-and-set semantics the engine's cancellation model needs.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*ingestion.Process
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*ingestion.Process)}
}

func (m *MemoryRepo) Create(ctx context.Context, p *ingestion.Process) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	m.store[p.ID] = &cp
	return p.ID, nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (*ingestion.Process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// FindActiveByDocument returns the Pending or Running process for the
// document, or nil when there is none.
func (m *MemoryRepo) FindActiveByDocument(ctx context.Context, documentID string) (*ingestion.Process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.DocumentID == documentID && p.Status.Active() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepo) List(ctx context.Context, q ingestion.Query) ([]*ingestion.Process, int64, error) {
	m.mu.RLock()
	matched := make([]*ingestion.Process, 0, len(m.store))
	for _, p := range m.store {
		if q.DocumentOwner != "" && p.DocumentOwner != q.DocumentOwner {
			continue
		}
		if q.DocumentID != "" && p.DocumentID != q.DocumentID {
			continue
		}
		if q.Status != "" && p.Status != q.Status {
			continue
		}
		cp := *p
		matched = append(matched, &cp)
	}
	m.mu.RUnlock()

	desc := !strings.EqualFold(q.SortOrder, "asc")
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less bool
		switch q.SortBy {
		case "status":
			less = a.Status < b.Status
		case "updatedAt":
			less = a.UpdatedAt.Before(b.UpdatedAt)
		default: // createdAt
			less = a.CreatedAt.Before(b.CreatedAt)
		}
		if desc {
			return !less && !sameSortKey(a, b, q.SortBy)
		}
		return less
	})

	total := int64(len(matched))
	skip := (q.Page - 1) * q.Limit
	if skip >= len(matched) {
		return []*ingestion.Process{}, total, nil
	}
	end := skip + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[skip:end], total, nil
}

func sameSortKey(a, b *ingestion.Process, sortBy string) bool {
	switch sortBy {
	case "status":
		return a.Status == b.Status
	case "updatedAt":
		return a.UpdatedAt.Equal(b.UpdatedAt)
	default:
		return a.CreatedAt.Equal(b.CreatedAt)
	}
}

// MarkRunning transitions Pending -> Running and stamps startedAt. Any other
// current status yields ErrTerminal (a cancelled process must not restart).
func (m *MemoryRepo) MarkRunning(ctx context.Context, id string, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status != ingestion.StatusPending {
		return ErrTerminal
	}
	p.Status = ingestion.StatusRunning
	t := startedAt
	p.StartedAt = &t
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete transitions an active process to Completed with its result.
func (m *MemoryRepo) Complete(ctx context.Context, id string, res *ingestion.Result, completedAt time.Time) error {
	return m.finish(id, func(p *ingestion.Process) {
		p.Status = ingestion.StatusCompleted
		p.Result = res
		t := completedAt
		p.CompletedAt = &t
	})
}

// Fail transitions an active process to Failed with an error message.
func (m *MemoryRepo) Fail(ctx context.Context, id, message string, completedAt time.Time) error {
	return m.finish(id, func(p *ingestion.Process) {
		p.Status = ingestion.StatusFailed
		p.ErrorMessage = message
		t := completedAt
		p.CompletedAt = &t
	})
}

func (m *MemoryRepo) finish(id string, apply func(*ingestion.Process)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status.Terminal() {
		return ErrTerminal
	}
	apply(p)
	p.UpdatedAt = time.Now().UTC()
	return nil
}
