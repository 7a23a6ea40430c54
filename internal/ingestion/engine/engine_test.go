package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/docvault/docvault/internal/apperrors"
	"github.com/docvault/docvault/internal/document"
	docrepo "github.com/docvault/docvault/internal/document/repository"
	docservice "github.com/docvault/docvault/internal/document/service"
	"github.com/docvault/docvault/internal/extract"
	"github.com/docvault/docvault/internal/ingestion"
	ingrepo "github.com/docvault/docvault/internal/ingestion/repository"
	"github.com/docvault/docvault/internal/models"
	"github.com/docvault/docvault/internal/storage"
)

// gateExtractor blocks inside Extract until released, so tests can hold a
// worker mid-flight deterministically.
type gateExtractor struct {
	started chan struct{}
	release chan struct{}
	text    string
	err     error
}

func newGateExtractor() *gateExtractor {
	return &gateExtractor{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
		text:    "gated text",
	}
}

func (g *gateExtractor) Extract(ctx context.Context, ref string) (string, error) {
	g.started <- struct{}{}
	<-g.release
	return g.text, g.err
}

// recordingExtractor notes whether it was invoked at all.
type recordingExtractor struct {
	mu     sync.Mutex
	called bool
}

func (r *recordingExtractor) Extract(ctx context.Context, ref string) (string, error) {
	r.mu.Lock()
	r.called = true
	r.mu.Unlock()
	return "recorded", nil
}

func (r *recordingExtractor) wasCalled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.called
}

type testEnv struct {
	eng     *Engine
	docSvc  *docservice.Service
	ingRepo *ingrepo.MemoryRepo
	store   storage.ContentStore
}

func newEnv(t *testing.T, ex extract.Extractor) *testEnv {
	t.Helper()
	store := storage.NewMemoryStore()
	docSvc := docservice.NewService(docrepo.NewMemoryRepo(), store)
	ir := ingrepo.NewMemoryRepo()
	if ex == nil {
		ex = extract.NewStubExtractor(store)
	}
	return &testEnv{eng: New(ir, docSvc, ex), docSvc: docSvc, ingRepo: ir, store: store}
}

func testUser(role models.Role) *models.User {
	return &models.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", Role: role, Active: true}
}

func uploadDoc(t *testing.T, env *testEnv, actor *models.User, content string) *document.Document {
	t.Helper()
	d, err := env.docSvc.Create(context.Background(), actor, docservice.CreateInput{
		Title:    "report",
		FileName: "report.txt",
		MimeType: "text/plain",
		Size:     int64(len(content)),
	}, strings.NewReader(content))
	require.NoError(t, err)
	return d
}

func TestCreateRunsToCompletion(t *testing.T) {
	env := newEnv(t, nil)
	editor := testUser(models.RoleEditor)
	doc := uploadDoc(t, env, editor, "hello")

	p, err := env.eng.Create(context.Background(), doc.ID, map[string]interface{}{"lang": "en"}, editor)
	require.NoError(t, err)
	require.Equal(t, ingestion.StatusPending, p.Status)
	require.Equal(t, doc.ID, p.DocumentID)

	env.eng.Wait()

	done, err := env.eng.FindByID(context.Background(), p.ID, editor)
	require.NoError(t, err)
	require.Equal(t, ingestion.StatusCompleted, done.Status)
	require.NotNil(t, done.Result)
	require.Contains(t, done.Result.ExtractedText, "Extracted text from file (5 bytes)")
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.CompletedAt)

	d, err := env.docSvc.Get(context.Background(), doc.ID, editor)
	require.NoError(t, err)
	require.Equal(t, document.StatusCompleted, d.Status)
	require.Equal(t, done.Result.ExtractedText, d.ExtractedText)
}

func TestCreateConflictWhileActive(t *testing.T) {
	gate := newGateExtractor()
	env := newEnv(t, gate)
	editor := testUser(models.RoleEditor)
	doc := uploadDoc(t, env, editor, "content")

	_, err := env.eng.Create(context.Background(), doc.ID, nil, editor)
	require.NoError(t, err)
	<-gate.started

	_, err = env.eng.Create(context.Background(), doc.ID, nil, editor)
	require.ErrorIs(t, err, apperrors.ErrConflict)

	close(gate.release)
	env.eng.Wait()
}

func TestConcurrentCreateExactlyOneWins(t *testing.T) {
	gate := newGateExtractor()
	env := newEnv(t, gate)
	editor := testUser(models.RoleEditor)
	doc := uploadDoc(t, env, editor, "content")

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.eng.Create(context.Background(), doc.ID, nil, editor)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, apperrors.ErrConflict)
		}
	}
	require.Equal(t, 1, won)

	close(gate.release)
	env.eng.Wait()
}

func TestCancelRunningProcess(t *testing.T) {
	gate := newGateExtractor()
	env := newEnv(t, gate)
	editor := testUser(models.RoleEditor)
	doc := uploadDoc(t, env, editor, "content")

	p, err := env.eng.Create(context.Background(), doc.ID, nil, editor)
	require.NoError(t, err)
	<-gate.started

	cancelled, err := env.eng.Cancel(context.Background(), p.ID, editor)
	require.NoError(t, err)
	require.Equal(t, ingestion.StatusFailed, cancelled.Status)
	require.Equal(t, ingestion.CancelledMessage, cancelled.ErrorMessage)
	require.NotNil(t, cancelled.CompletedAt)

	// let the worker finish extraction; its result must not overwrite the
	// cancelled state
	close(gate.release)
	env.eng.Wait()

	after, err := env.eng.FindByID(context.Background(), p.ID, editor)
	require.NoError(t, err)
	require.Equal(t, ingestion.StatusFailed, after.Status)
	require.Equal(t, ingestion.CancelledMessage, after.ErrorMessage)
	require.Nil(t, after.Result)

	d, err := env.docSvc.Get(context.Background(), doc.ID, editor)
	require.NoError(t, err)
	require.Equal(t, document.StatusPending, d.Status)
}

func TestCancelTerminalProcessConflicts(t *testing.T) {
	env := newEnv(t, nil)
	editor := testUser(models.RoleEditor)
	doc := uploadDoc(t, env, editor, "content")

	p, err := env.eng.Create(context.Background(), doc.ID, nil, editor)
	require.NoError(t, err)
	env.eng.Wait()

	_, err = env.eng.Cancel(context.Background(), p.ID, editor)
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestCancelledPendingProcessNeverRuns(t *testing.T) {
	rec := &recordingExtractor{}
	env := newEnv(t, rec)
	editor := testUser(models.RoleEditor)
	doc := uploadDoc(t, env, editor, "content")

	// seed a pending process directly so the worker has not been scheduled yet
	p := &ingestion.Process{
		ID:            uuid.NewString(),
		DocumentID:    doc.ID,
		DocumentOwner: editor.ID,
		ContentRef:    doc.ContentRef,
		Status:        ingestion.StatusPending,
	}
	_, err := env.ingRepo.Create(context.Background(), p)
	require.NoError(t, err)

	cancelled, err := env.eng.Cancel(context.Background(), p.ID, editor)
	require.NoError(t, err)
	require.Equal(t, ingestion.StatusFailed, cancelled.Status)

	// a worker waking up afterwards must observe the terminal state and bail
	// out without touching the extractor
	env.eng.runProcess(p.ID)
	require.False(t, rec.wasCalled())

	after, err := env.eng.FindByID(context.Background(), p.ID, editor)
	require.NoError(t, err)
	require.Equal(t, ingestion.StatusFailed, after.Status)
	require.Equal(t, ingestion.CancelledMessage, after.ErrorMessage)
}

func TestRecreateAfterCancel(t *testing.T) {
	gate := newGateExtractor()
	env := newEnv(t, gate)
	editor := testUser(models.RoleEditor)
	doc := uploadDoc(t, env, editor, "content")

	p1, err := env.eng.Create(context.Background(), doc.ID, nil, editor)
	require.NoError(t, err)
	<-gate.started
	_, err = env.eng.Cancel(context.Background(), p1.ID, editor)
	require.NoError(t, err)

	// the document is eligible again; a new process can start
	p2, err := env.eng.Create(context.Background(), doc.ID, nil, editor)
	require.NoError(t, err)
	require.NotEqual(t, p1.ID, p2.ID)

	close(gate.release)
	env.eng.Wait()

	done, err := env.eng.FindByID(context.Background(), p2.ID, editor)
	require.NoError(t, err)
	require.Equal(t, ingestion.StatusCompleted, done.Status)
}

func TestFailedExtractionMarksProcessAndDocument(t *testing.T) {
	gate := newGateExtractor()
	gate.err = fmt.Errorf("corrupt file")
	env := newEnv(t, gate)
	editor := testUser(models.RoleEditor)
	doc := uploadDoc(t, env, editor, "content")

	p, err := env.eng.Create(context.Background(), doc.ID, nil, editor)
	require.NoError(t, err)
	<-gate.started
	close(gate.release)
	env.eng.Wait()

	failed, err := env.eng.FindByID(context.Background(), p.ID, editor)
	require.NoError(t, err)
	require.Equal(t, ingestion.StatusFailed, failed.Status)
	require.Equal(t, "corrupt file", failed.ErrorMessage)
	require.Nil(t, failed.Result)

	d, err := env.docSvc.Get(context.Background(), doc.ID, editor)
	require.NoError(t, err)
	require.Equal(t, document.StatusFailed, d.Status)
}

func TestFindByIDResolvesNotFoundBeforeForbidden(t *testing.T) {
	env := newEnv(t, nil)
	owner := testUser(models.RoleEditor)
	other := testUser(models.RoleEditor)
	admin := testUser(models.RoleAdmin)
	doc := uploadDoc(t, env, owner, "content")

	p, err := env.eng.Create(context.Background(), doc.ID, nil, owner)
	require.NoError(t, err)
	env.eng.Wait()

	// unknown id is NotFound for everyone, ownership notwithstanding
	_, err = env.eng.FindByID(context.Background(), uuid.NewString(), other)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	// existing but unowned is Forbidden
	_, err = env.eng.FindByID(context.Background(), p.ID, other)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	// admins read everything
	got, err := env.eng.FindByID(context.Background(), p.ID, admin)
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
}

func TestViewerCannotStartIngestion(t *testing.T) {
	env := newEnv(t, nil)
	viewer := testUser(models.RoleViewer)

	// a viewer may own documents (e.g. role downgraded later) but still may
	// not start processing
	doc := &document.Document{
		ID:         uuid.NewString(),
		Title:      "owned by viewer",
		FileName:   "v.txt",
		ContentRef: "ref",
		Status:     document.StatusPending,
		CreatedBy:  viewer.ID,
	}
	_, err := env.docSvc.Create(context.Background(), viewer, docservice.CreateInput{Title: "x", FileName: "x.txt"}, strings.NewReader("x"))
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	repo := docrepo.NewMemoryRepo()
	store := storage.NewMemoryStore()
	svc := docservice.NewService(repo, store)
	_, err = repo.Create(context.Background(), doc)
	require.NoError(t, err)
	eng := New(ingrepo.NewMemoryRepo(), svc, extract.NewStubExtractor(store))

	_, err = eng.Create(context.Background(), doc.ID, nil, viewer)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestCancelRequiresOwnershipOrAdmin(t *testing.T) {
	gate := newGateExtractor()
	env := newEnv(t, gate)
	owner := testUser(models.RoleEditor)
	other := testUser(models.RoleEditor)
	admin := testUser(models.RoleAdmin)
	doc := uploadDoc(t, env, owner, "content")

	p, err := env.eng.Create(context.Background(), doc.ID, nil, owner)
	require.NoError(t, err)
	<-gate.started

	_, err = env.eng.Cancel(context.Background(), p.ID, other)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	cancelled, err := env.eng.Cancel(context.Background(), p.ID, admin)
	require.NoError(t, err)
	require.Equal(t, ingestion.StatusFailed, cancelled.Status)

	close(gate.release)
	env.eng.Wait()
}

func TestFindAllScopesToOwnDocuments(t *testing.T) {
	env := newEnv(t, nil)
	alice := testUser(models.RoleEditor)
	bob := testUser(models.RoleEditor)
	admin := testUser(models.RoleAdmin)

	docA := uploadDoc(t, env, alice, "aaa")
	docB := uploadDoc(t, env, bob, "bbb")

	_, err := env.eng.Create(context.Background(), docA.ID, nil, alice)
	require.NoError(t, err)
	_, err = env.eng.Create(context.Background(), docB.ID, nil, bob)
	require.NoError(t, err)
	env.eng.Wait()

	got, total, err := env.eng.FindAll(context.Background(), ingestion.Query{}, alice)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, got, 1)
	require.Equal(t, docA.ID, got[0].DocumentID)

	_, total, err = env.eng.FindAll(context.Background(), ingestion.Query{}, admin)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	_, _, err = env.eng.FindAll(context.Background(), ingestion.Query{Status: "bogus"}, admin)
	require.ErrorIs(t, err, apperrors.ErrInvalid)

	_, _, err = env.eng.FindAll(context.Background(), ingestion.Query{Page: -1}, admin)
	require.ErrorIs(t, err, apperrors.ErrInvalid)
}

func TestWorkerErrorNeverSurfacesToCreate(t *testing.T) {
	gate := newGateExtractor()
	gate.err = errors.New("boom")
	env := newEnv(t, gate)
	editor := testUser(models.RoleEditor)
	doc := uploadDoc(t, env, editor, "content")

	// Create returns before the worker fails
	p, err := env.eng.Create(context.Background(), doc.ID, nil, editor)
	require.NoError(t, err)
	require.Equal(t, ingestion.StatusPending, p.Status)

	<-gate.started
	close(gate.release)
	env.eng.Wait()
}
