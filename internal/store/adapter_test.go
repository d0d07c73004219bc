package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"shelf/internal/blob"
	"shelf/internal/catalog"
	"shelf/internal/errs"
	"shelf/internal/pathmap"
	"shelf/internal/storage"
)

func newTestAdapter(t *testing.T) (*Adapter, *blob.Service) {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "shelf.sqlite"))
	require.NoError(t, err, "opening sqlite db")
	t.Cleanup(func() { _ = db.Close() })

	kvProvider, err := storage.NewKVProvider(storage.NewMemoryKV(), 0)
	require.NoError(t, err, "NewKVProvider error")

	sqlProvider, err := storage.NewSQLProvider(db, 0)
	require.NoError(t, err, "NewSQLProvider error")

	cat, err := catalog.New(db)
	require.NoError(t, err, "catalog.New error")

	paths, err := pathmap.New(db)
	require.NoError(t, err, "pathmap.New error")

	blobs, err := blob.NewService(kvProvider, sqlProvider, cat, blob.RoutingPolicy{})
	require.NoError(t, err, "NewService error")

	return NewAdapter(blobs, paths), blobs
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, _ := newTestAdapter(t)

	entry, err := a.Create(ctx, "/docs/note", JSONValue(json.RawMessage(`{"title":"n"}`)), "")
	require.NoError(t, err, "Create error")
	require.Equal(t, "/docs/note", entry.Path, "path")
	require.NotEmpty(t, entry.ID, "object id assigned")
	require.Equal(t, "application/json", entry.ContentType, "content type")

	got, err := a.Get(ctx, "/docs/note")
	require.NoError(t, err, "Get error")
	require.Equal(t, entry.ID, got.ID, "id")
	require.Equal(t, TypeJSON, got.Value.Type, "decoded type")
	require.JSONEq(t, `{"title":"n"}`, string(got.Value.JSON), "decoded document")
}

func TestCreateDuplicatePath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, _ := newTestAdapter(t)

	_, err := a.Create(ctx, "/dup", TextValue("first"), "")
	require.NoError(t, err, "Create error")

	_, err = a.Create(ctx, "/dup", TextValue("second"), "")
	require.Error(t, err, "creating over an existing path must fail")
	require.Equal(t, errs.KindAlreadyExists, errs.KindOf(err), "error kind")

	// The original value is untouched.
	got, err := a.Get(ctx, "/dup")
	require.NoError(t, err, "Get error")
	require.Equal(t, "first", got.Value.Text, "original value should survive the rejected create")
}

func TestCreateEmptyPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, _ := newTestAdapter(t)

	_, err := a.Create(ctx, "", TextValue("x"), "")
	require.Error(t, err, "empty path must be rejected")
	require.Equal(t, errs.KindInvalid, errs.KindOf(err), "error kind")
}

func TestUpdateRetargetsAndReclaims(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, blobs := newTestAdapter(t)

	created, err := a.Create(ctx, "/doc", TextValue("v1"), "")
	require.NoError(t, err, "Create error")

	updated, err := a.Update(ctx, "/doc", TextValue("v2"), "")
	require.NoError(t, err, "Update error")
	require.NotEqual(t, created.ID, updated.ID, "update must mint a new object id")

	got, err := a.Get(ctx, "/doc")
	require.NoError(t, err, "Get error")
	require.Equal(t, "v2", got.Value.Text, "path should resolve to the new value")

	// The old object is reclaimed, not stranded.
	exists, err := blobs.Exists(ctx, created.ID)
	require.NoError(t, err, "Exists error")
	require.False(t, exists, "old object should be deleted after update")
}

func TestUpdateMissingPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, _ := newTestAdapter(t)

	_, err := a.Update(ctx, "/nope", TextValue("x"), "")
	require.True(t, errors.Is(err, errs.ErrNotFound), "updating a missing path should be not found, got %v", err)
}

func TestDeleteIsTerminal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, blobs := newTestAdapter(t)

	entry, err := a.Create(ctx, "/tmp/x", TextValue("bye"), "")
	require.NoError(t, err, "Create error")

	require.NoError(t, a.Delete(ctx, "/tmp/x"), "Delete error")

	_, err = a.Get(ctx, "/tmp/x")
	require.True(t, errors.Is(err, errs.ErrNotFound), "deleted path should be not found, got %v", err)

	exists, err := blobs.Exists(ctx, entry.ID)
	require.NoError(t, err, "Exists error")
	require.False(t, exists, "object should be gone with its mapping")

	err = a.Delete(ctx, "/tmp/x")
	require.True(t, errors.Is(err, errs.ErrNotFound), "second delete should be not found, got %v", err)
}

func TestListPaginationIsComplete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, _ := newTestAdapter(t)

	const total = 7
	for i := 0; i < total; i++ {
		_, err := a.Create(ctx, fmt.Sprintf("/item/%d", i), TextValue(fmt.Sprintf("value %d", i)), "")
		require.NoError(t, err, "Create error")
	}

	// Walking every page must yield each path exactly once.
	seen := map[string]int{}
	for page := 1; ; page++ {
		result, err := a.List(ctx, ListOptions{Page: page, Limit: 3})
		require.NoError(t, err, "List error")
		require.Equal(t, total, result.Total, "total reflects the filtered set")

		if len(result.Items) == 0 {
			break
		}
		for _, item := range result.Items {
			seen[item.Path]++
		}
	}

	require.Len(t, seen, total, "every path should appear across the pages")
	for path, n := range seen {
		require.Equalf(t, 1, n, "path %s appeared %d times", path, n)
	}
}

func TestListSearchAndSort(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, _ := newTestAdapter(t)

	_, err := a.Create(ctx, "/fruit/apple", TextValue("red fruit"), "")
	require.NoError(t, err, "Create error")
	_, err = a.Create(ctx, "/fruit/banana", TextValue("yellow fruit"), "")
	require.NoError(t, err, "Create error")
	_, err = a.Create(ctx, "/veg/carrot", TextValue("orange root"), "")
	require.NoError(t, err, "Create error")

	// Search matches the path.
	result, err := a.List(ctx, ListOptions{Search: "fruit"})
	require.NoError(t, err, "List error")
	require.Equal(t, 2, result.Total, "path search matches")

	// Search matches the preview too.
	result, err = a.List(ctx, ListOptions{Search: "orange"})
	require.NoError(t, err, "List error")
	require.Equal(t, 1, result.Total, "preview search matches")
	require.Equal(t, "/veg/carrot", result.Items[0].Path, "matched path")

	// Sort by size ascending.
	result, err = a.List(ctx, ListOptions{Sort: "size", Order: "asc"})
	require.NoError(t, err, "List error")
	require.Len(t, result.Items, 3, "all rows")
	for i := 1; i < len(result.Items); i++ {
		require.LessOrEqual(t, result.Items[i-1].Size, result.Items[i].Size, "ascending size order")
	}
}

func TestListSkipsOrphanMapping(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, blobs := newTestAdapter(t)

	entry, err := a.Create(ctx, "/orphan", TextValue("soon gone"), "")
	require.NoError(t, err, "Create error")
	_, err = a.Create(ctx, "/healthy", TextValue("fine"), "")
	require.NoError(t, err, "Create error")

	// Remove the object behind /orphan, leaving the mapping dangling.
	require.NoError(t, blobs.Delete(ctx, entry.ID), "blob Delete error")

	result, err := a.List(ctx, ListOptions{})
	require.NoError(t, err, "List error")
	require.Equal(t, 1, result.Total, "orphan mapping should be skipped, not fatal")
	require.Equal(t, "/healthy", result.Items[0].Path, "surviving path")
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, _ := newTestAdapter(t)

	var total int64
	for i, body := range []string{"aa", "bbbb", "cccccc"} {
		entry, err := a.Create(ctx, fmt.Sprintf("/s/%d", i), TextValue(body), "")
		require.NoError(t, err, "Create error")
		total += entry.Size
	}

	stats, err := a.GetStats(ctx)
	require.NoError(t, err, "GetStats error")
	require.Equal(t, 3, stats.TotalPaths, "path count")
	require.Equal(t, total, stats.TotalSize, "aggregate size")
}
