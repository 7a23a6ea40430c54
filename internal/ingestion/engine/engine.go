package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docvault/docvault/internal/accesscontrol"
	"github.com/docvault/docvault/internal/apperrors"
	"github.com/docvault/docvault/internal/document"
	"github.com/docvault/docvault/internal/extract"
	"github.com/docvault/docvault/internal/ingestion"
	"github.com/docvault/docvault/internal/ingestion/repository"
	"github.com/docvault/docvault/internal/models"
	"github.com/docvault/docvault/pkg/logger"
	"github.com/docvault/docvault/pkg/metrics"
)

// ProcessRepository is the persistence contract for ingestion processes.
// MarkRunning/Complete/Fail are conditional on the current status and return
// repository.ErrTerminal when the transition is no longer allowed.
type ProcessRepository interface {
	Create(ctx context.Context, p *ingestion.Process) (string, error)
	Get(ctx context.Context, id string) (*ingestion.Process, error)
	List(ctx context.Context, q ingestion.Query) ([]*ingestion.Process, int64, error)
	FindActiveByDocument(ctx context.Context, documentID string) (*ingestion.Process, error)
	MarkRunning(ctx context.Context, id string, startedAt time.Time) error
	Complete(ctx context.Context, id string, res *ingestion.Result, completedAt time.Time) error
	Fail(ctx context.Context, id, message string, completedAt time.Time) error
}

// DocumentStore is the slice of the document service the engine depends on.
// Get carries the caller's authorization; SetStatus and SetExtraction are the
// privileged status writes not reachable from the request boundary.
type DocumentStore interface {
	Get(ctx context.Context, id string, actor *models.User) (*document.Document, error)
	SetStatus(ctx context.Context, id string, st document.Status) error
	SetExtraction(ctx context.Context, id, text string, st document.Status) error
}

// Engine drives the ingestion state machine. It owns the per-document
// critical section around the check-then-create sequence and the
// fire-and-forget workers; Wait lets tests and shutdown await all workers.
type Engine struct {
	procs     ProcessRepository
	docs      DocumentStore
	extractor extract.Extractor

	docLocks sync.Map // map[documentID]*sync.Mutex
	wg       sync.WaitGroup
}

func New(procs ProcessRepository, docs DocumentStore, ex extract.Extractor) *Engine {
	return &Engine{procs: procs, docs: docs, extractor: ex}
}

func (e *Engine) lockDocument(documentID string) func() {
	v, _ := e.docLocks.LoadOrStore(documentID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Create starts a new ingestion run for the document. The status check and
// the insert form one critical section serialized by document id, so two
// concurrent calls for the same document cannot both pass the check.
// The worker is scheduled without blocking; the process is returned in
// Pending state.
func (e *Engine) Create(ctx context.Context, documentID string, cfg map[string]interface{}, actor *models.User) (*ingestion.Process, error) {
	unlock := e.lockDocument(documentID)
	defer unlock()

	doc, err := e.docs.Get(ctx, documentID, actor)
	if err != nil {
		return nil, err
	}
	if err := accesscontrol.Authorize(actor, accesscontrol.ActionCreate, doc); err != nil {
		return nil, err
	}

	if doc.Status == document.StatusProcessing {
		return nil, apperrors.Conflictf("document %s is already being processed", documentID)
	}
	active, err := e.procs.FindActiveByDocument(ctx, documentID)
	if err != nil {
		return nil, apperrors.IOf("check active processes for document %s: %v", documentID, err)
	}
	if active != nil {
		return nil, apperrors.Conflictf("there is already an active ingestion process for document %s", documentID)
	}

	p := &ingestion.Process{
		ID:            uuid.NewString(),
		DocumentID:    doc.ID,
		DocumentOwner: doc.CreatedBy,
		ContentRef:    doc.ContentRef,
		Status:        ingestion.StatusPending,
		Configuration: cfg,
	}
	if _, err := e.procs.Create(ctx, p); err != nil {
		return nil, apperrors.IOf("persist ingestion process: %v", err)
	}
	if err := e.docs.SetStatus(ctx, documentID, document.StatusProcessing); err != nil {
		// leave no active process behind if the document write failed
		now := time.Now().UTC()
		if ferr := e.procs.Fail(ctx, p.ID, "failed to mark document as processing", now); ferr != nil {
			logger.Errorf("ingestion %s: could not fail process after status error: %v", p.ID, ferr)
		}
		return nil, apperrors.IOf("mark document %s as processing: %v", documentID, err)
	}

	metrics.IngestionStarted.Inc()
	logger.Infof("ingestion %s created for document %s by user %s", p.ID, documentID, actor.ID)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runProcess(p.ID)
	}()

	return p, nil
}

// runProcess is the asynchronous worker. No caller waits on it: every
// failure is captured into the process record or logged, never surfaced.
// Each persistence write is best-effort and independent; terminal writes are
// conditional so a process cancelled mid-flight is never overwritten.
func (e *Engine) runProcess(processID string) {
	ctx := context.Background()

	p, err := e.procs.Get(ctx, processID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Errorf("ingestion %s: load failed: %v", processID, err)
		}
		return
	}

	if err := e.procs.MarkRunning(ctx, processID, time.Now().UTC()); err != nil {
		// already cancelled or gone; nothing to do
		if !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, repository.ErrTerminal) {
			logger.Errorf("ingestion %s: mark running failed: %v", processID, err)
		}
		return
	}

	text, xerr := e.extractor.Extract(ctx, p.ContentRef)
	now := time.Now().UTC()

	if xerr != nil {
		logger.Warnf("ingestion %s: extraction failed: %v", processID, xerr)
		if err := e.procs.Fail(ctx, processID, xerr.Error(), now); err != nil {
			if errors.Is(err, repository.ErrTerminal) {
				// cancelled while extracting; the cancel path owns the document status
				return
			}
			logger.Errorf("ingestion %s: persist failure state: %v", processID, err)
		}
		metrics.IngestionFinished.WithLabelValues("failed").Inc()
		if err := e.docs.SetStatus(ctx, p.DocumentID, document.StatusFailed); err != nil {
			logger.Errorf("ingestion %s: set document %s failed status: %v", processID, p.DocumentID, err)
		}
		return
	}

	res := &ingestion.Result{ExtractedText: text, ProcessedAt: now}
	if err := e.procs.Complete(ctx, processID, res, now); err != nil {
		if errors.Is(err, repository.ErrTerminal) {
			return
		}
		logger.Errorf("ingestion %s: persist completed state: %v", processID, err)
	}
	metrics.IngestionFinished.WithLabelValues("completed").Inc()
	if err := e.docs.SetExtraction(ctx, p.DocumentID, text, document.StatusCompleted); err != nil {
		logger.Errorf("ingestion %s: set document %s extraction: %v", processID, p.DocumentID, err)
	}
}

// FindByID returns the process when the actor may read it, resolving
// NotFound before Forbidden like the document store does.
func (e *Engine) FindByID(ctx context.Context, id string, actor *models.User) (*ingestion.Process, error) {
	p, err := e.procs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundf("ingestion process %s", id)
		}
		return nil, apperrors.IOf("load ingestion process %s: %v", id, err)
	}
	if err := accesscontrol.Authorize(actor, accesscontrol.ActionRead, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Cancel drives an active process to Failed with the fixed cancellation
// message and makes the document eligible for re-ingestion again.
func (e *Engine) Cancel(ctx context.Context, id string, actor *models.User) (*ingestion.Process, error) {
	p, err := e.FindByID(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := accesscontrol.Authorize(actor, accesscontrol.ActionCancel, p); err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return nil, apperrors.Conflictf("cannot cancel a process that is not pending or running")
	}

	now := time.Now().UTC()
	if err := e.procs.Fail(ctx, id, ingestion.CancelledMessage, now); err != nil {
		if errors.Is(err, repository.ErrTerminal) {
			// the worker finished first
			return nil, apperrors.Conflictf("cannot cancel a process that is not pending or running")
		}
		return nil, apperrors.IOf("cancel ingestion process %s: %v", id, err)
	}
	metrics.IngestionCancelled.Inc()

	// a cancelled run leaves the document eligible for re-ingestion
	if err := e.docs.SetStatus(ctx, p.DocumentID, document.StatusPending); err != nil {
		logger.Errorf("cancel %s: reset document %s status: %v", id, p.DocumentID, err)
	}

	out, err := e.procs.Get(ctx, id)
	if err != nil {
		return nil, apperrors.IOf("reload ingestion process %s: %v", id, err)
	}
	return out, nil
}

// FindAll lists processes visible to the actor, joined through the owning
// document: non-admins only ever see processes over their own documents.
func (e *Engine) FindAll(ctx context.Context, q ingestion.Query, actor *models.User) ([]*ingestion.Process, int64, error) {
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
		q.DocumentOwner = actor.ID
	} else {
		q.DocumentOwner = ""
	}
	procs, total, err := e.procs.List(ctx, q)
	if err != nil {
		return nil, 0, apperrors.IOf("list ingestion processes: %v", err)
	}
	return procs, total, nil
}

// Wait blocks until every scheduled worker has finished. Used by tests and
// graceful shutdown.
func (e *Engine) Wait() {
	e.wg.Wait()
}
