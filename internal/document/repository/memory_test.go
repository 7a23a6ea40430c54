package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docvault/docvault/internal/document"
)

func seed(t *testing.T, m *MemoryRepo, title, owner string, st document.Status) *document.Document {
	t.Helper()
	d := &document.Document{Title: title, FileName: title + ".txt", ContentRef: "ref-" + title, Status: st, CreatedBy: owner}
	_, err := m.Create(context.Background(), d)
	require.NoError(t, err)
	return d
}

func TestCreateAndGetReturnsCopy(t *testing.T) {
	m := NewMemoryRepo()
	d := seed(t, m, "a", "u1", document.StatusPending)
	require.NotEmpty(t, d.ID)
	require.False(t, d.CreatedAt.IsZero())

	got, err := m.Get(context.Background(), d.ID)
	require.NoError(t, err)
	got.Title = "mutated"

	again, err := m.Get(context.Background(), d.ID)
	require.NoError(t, err)
	require.Equal(t, "a", again.Title)
}

func TestGetMissing(t *testing.T) {
	m := NewMemoryRepo()
	_, err := m.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListFiltersAndPaginates(t *testing.T) {
	m := NewMemoryRepo()
	seed(t, m, "alpha report", "u1", document.StatusPending)
	seed(t, m, "beta report", "u1", document.StatusCompleted)
	seed(t, m, "gamma", "u2", document.StatusPending)

	docs, total, err := m.List(context.Background(), document.Query{CreatedBy: "u1", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, docs, 2)

	docs, total, err = m.List(context.Background(), document.Query{Search: "report", Page: 1, Limit: 1})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, docs, 1)

	docs, _, err = m.List(context.Background(), document.Query{Status: document.StatusCompleted, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "beta report", docs[0].Title)

	// page past the end is empty, total preserved
	docs, total, err = m.List(context.Background(), document.Query{Page: 5, Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Empty(t, docs)
}

func TestListSortsByTitle(t *testing.T) {
	m := NewMemoryRepo()
	seed(t, m, "b", "u1", document.StatusPending)
	seed(t, m, "a", "u1", document.StatusPending)
	seed(t, m, "c", "u1", document.StatusPending)

	docs, _, err := m.List(context.Background(), document.Query{SortBy: "title", SortOrder: "asc", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, []string{docs[0].Title, docs[1].Title, docs[2].Title})

	docs, _, err = m.List(context.Background(), document.Query{SortBy: "title", SortOrder: "desc", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b", "a"}, []string{docs[0].Title, docs[1].Title, docs[2].Title})
}

func TestApplyPatchesOnlyGivenFields(t *testing.T) {
	m := NewMemoryRepo()
	d := seed(t, m, "orig", "u1", document.StatusPending)

	desc := "described"
	require.NoError(t, m.Apply(context.Background(), d.ID, document.Patch{Description: &desc}))

	got, err := m.Get(context.Background(), d.ID)
	require.NoError(t, err)
	require.Equal(t, "orig", got.Title)
	require.Equal(t, "described", got.Description)

	require.ErrorIs(t, m.Apply(context.Background(), "nope", document.Patch{Description: &desc}), ErrNotFound)
}

func TestSetStatusAndExtractionAreFieldScoped(t *testing.T) {
	m := NewMemoryRepo()
	d := seed(t, m, "doc", "u1", document.StatusPending)

	require.NoError(t, m.SetStatus(context.Background(), d.ID, document.StatusProcessing))
	got, _ := m.Get(context.Background(), d.ID)
	require.Equal(t, document.StatusProcessing, got.Status)
	require.Empty(t, got.ExtractedText)

	require.NoError(t, m.SetExtraction(context.Background(), d.ID, "text", document.StatusCompleted))
	got, _ = m.Get(context.Background(), d.ID)
	require.Equal(t, document.StatusCompleted, got.Status)
	require.Equal(t, "text", got.ExtractedText)
	require.Equal(t, "doc", got.Title)
}

func TestDelete(t *testing.T) {
	m := NewMemoryRepo()
	d := seed(t, m, "doc", "u1", document.StatusPending)

	require.NoError(t, m.Delete(context.Background(), d.ID))
	require.ErrorIs(t, m.Delete(context.Background(), d.ID), ErrNotFound)
}
