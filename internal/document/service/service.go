package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/docvault/docvault/internal/accesscontrol"
	"github.com/docvault/docvault/internal/apperrors"
	"github.com/docvault/docvault/internal/document"
	"github.com/docvault/docvault/internal/document/repository"
	"github.com/docvault/docvault/internal/models"
	"github.com/docvault/docvault/internal/storage"
	"github.com/docvault/docvault/pkg/logger"
	"github.com/docvault/docvault/pkg/metrics"
)

// Repository is the persistence contract the document store depends on.
// Per-call atomicity is assumed; cross-call serialization is the ingestion
// engine's responsibility.
type Repository interface {
	Create(ctx context.Context, d *document.Document) (string, error)
	Get(ctx context.Context, id string) (*document.Document, error)
	List(ctx context.Context, q document.Query) ([]*document.Document, int64, error)
	Apply(ctx context.Context, id string, p document.Patch) error
	SetStatus(ctx context.Context, id string, st document.Status) error
	SetExtraction(ctx context.Context, id, text string, st document.Status) error
	Delete(ctx context.Context, id string) error
}

// Service owns document records and their status field. Every operation
// reachable from the request boundary re-validates authorization even when
// the HTTP layer already restricted the route.
type Service struct {
	repo  Repository
	store storage.ContentStore
}

func NewService(repo Repository, store storage.ContentStore) *Service {
	return &Service{repo: repo, store: store}
}

// CreateInput carries the upload fields recorded on a new document.
type CreateInput struct {
	Title       string
	Description string
	FileName    string
	MimeType    string
	Size        int64
	Metadata    map[string]interface{}
}

// Create stores the content, then persists a new document with status
// Pending owned by the actor.
func (s *Service) Create(ctx context.Context, actor *models.User, in CreateInput, content io.Reader) (*document.Document, error) {
	if err := accesscontrol.Authorize(actor, accesscontrol.ActionCreate, nil); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperrors.Invalidf("title is required")
	}
	if in.FileName == "" {
		return nil, apperrors.Invalidf("file name is required")
	}

	ref, err := s.store.Write(ctx, in.FileName, content, in.Size, in.MimeType)
	if err != nil {
		return nil, apperrors.IOf("store content: %v", err)
	}

	doc := &document.Document{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		FileName:    in.FileName,
		ContentRef:  ref,
		MimeType:    in.MimeType,
		Size:        in.Size,
		Status:      document.StatusPending,
		Metadata:    in.Metadata,
		CreatedBy:   actor.ID,
	}
	if _, err := s.repo.Create(ctx, doc); err != nil {
		// release the stored content so a failed insert leaves no orphan
		if derr := s.store.Delete(ctx, ref); derr != nil {
			logger.Warnf("orphaned content %s after failed create: %v", ref, derr)
		}
		return nil, apperrors.IOf("persist document: %v", err)
	}
	metrics.DocumentsUploaded.Inc()
	return doc, nil
}

// Get returns the document when the actor may read it. A missing document is
// NotFound; an existing but unowned one is Forbidden. The order matters: the
// two kinds must never be conflated.
func (s *Service) Get(ctx context.Context, id string, actor *models.User) (*document.Document, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundf("document %s", id)
		}
		return nil, apperrors.IOf("load document %s: %v", id, err)
	}
	if err := accesscontrol.Authorize(actor, accesscontrol.ActionRead, d); err != nil {
		return nil, err
	}
	return d, nil
}

// List returns documents visible to the actor. Non-admins are always scoped
// to their own documents; the createdBy filter is honored only for admins.
func (s *Service) List(ctx context.Context, q document.Query, actor *models.User) ([]*document.Document, int64, error) {
	if actor == nil || !actor.Active {
		return nil, 0, apperrors.Forbiddenf("no authenticated user")
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = 10
	}
	if q.Page < 1 || q.Limit < 1 {
		return nil, 0, apperrors.Invalidf("page must be >= 1 and limit > 0")
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, 0, apperrors.Invalidf("unknown status %q", q.Status)
	}
	if actor.Role != models.RoleAdmin {
		q.CreatedBy = actor.ID
	}
	docs, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, 0, apperrors.IOf("list documents: %v", err)
	}
	return docs, total, nil
}

// Update applies the non-nil patch fields. Inherits Get's authorization, then
// requires update permission on the loaded document.
func (s *Service) Update(ctx context.Context, id string, p document.Patch, actor *models.User) (*document.Document, error) {
	d, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := accesscontrol.Authorize(actor, accesscontrol.ActionUpdate, d); err != nil {
		return nil, err
	}
	if err := s.repo.Apply(ctx, id, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundf("document %s", id)
		}
		return nil, apperrors.IOf("update document %s: %v", id, err)
	}
	out, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.IOf("reload document %s: %v", id, err)
	}
	return out, nil
}

// Delete removes the stored content first, then the record. When content
// removal fails the record is kept so no reference is orphaned.
func (s *Service) Delete(ctx context.Context, id string, actor *models.User) error {
	d, err := s.Get(ctx, id, actor)
	if err != nil {
		return err
	}
	if err := accesscontrol.Authorize(actor, accesscontrol.ActionDelete, d); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, d.ContentRef); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return apperrors.IOf("delete content %s: %v", d.ContentRef, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFoundf("document %s", id)
		}
		return apperrors.IOf("delete document %s: %v", id, err)
	}
	metrics.DocumentsDeleted.Inc()
	return nil
}

// SetStatus is the privileged status write used only by the ingestion
// engine; it is not reachable from the request boundary and carries no
// actor-level authorization.
func (s *Service) SetStatus(ctx context.Context, id string, st document.Status) error {
	if err := s.repo.SetStatus(ctx, id, st); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFoundf("document %s", id)
		}
		return apperrors.IOf("set status on document %s: %v", id, err)
	}
	return nil
}

// SetExtraction writes the extraction result and the matching status in one
// field-scoped operation, also only used by the ingestion engine.
func (s *Service) SetExtraction(ctx context.Context, id, text string, st document.Status) error {
	if err := s.repo.SetExtraction(ctx, id, text, st); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFoundf("document %s", id)
		}
		return apperrors.IOf("set extraction on document %s: %v", id, err)
	}
	return nil
}
