package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"shelf/internal/errs"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "catalog.sqlite"))
	require.NoError(t, err, "opening sqlite db")
	t.Cleanup(func() { _ = db.Close() })

	c, err := New(db)
	require.NoError(t, err, "New error")
	return c
}

func testMetadata(id string) *Metadata {
	now := time.Now().UTC().Truncate(time.Second)
	return &Metadata{
		ID:             id,
		Name:           "/docs/" + id,
		ContentType:    "application/json",
		Size:           42,
		CreatedAt:      now,
		UpdatedAt:      now,
		Checksum:       "00000000deadbeef",
		ChunkCount:     1,
		ChunkSize:      1024 * 1024,
		StorageBackend: "d1",
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newCatalog(t)

	meta := testMetadata("file_1_aaaa")
	require.NoError(t, c.Save(ctx, meta), "Save error")

	got, err := c.Load(ctx, meta.ID)
	require.NoError(t, err, "Load error")
	require.Equal(t, meta.ID, got.ID, "id")
	require.Equal(t, meta.Name, got.Name, "name")
	require.Equal(t, meta.ContentType, got.ContentType, "content type")
	require.Equal(t, meta.Size, got.Size, "size")
	require.Equal(t, meta.Checksum, got.Checksum, "checksum")
	require.Equal(t, meta.ChunkCount, got.ChunkCount, "chunk count")
	require.Equal(t, meta.StorageBackend, got.StorageBackend, "backend")
	require.True(t, meta.CreatedAt.Equal(got.CreatedAt), "created at")
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newCatalog(t)

	_, err := c.Load(ctx, "missing")
	require.True(t, errors.Is(err, errs.ErrNotFound), "expected not found, got %v", err)
}

func TestUpsertPreservesCreatedAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newCatalog(t)

	meta := testMetadata("file_1_bbbb")
	require.NoError(t, c.Save(ctx, meta), "first Save error")

	updated := *meta
	updated.Size = 100
	updated.Checksum = "00000000cafebabe"
	updated.CreatedAt = meta.CreatedAt.Add(time.Hour)
	updated.UpdatedAt = meta.UpdatedAt.Add(time.Hour)
	require.NoError(t, c.Save(ctx, &updated), "second Save error")

	got, err := c.Load(ctx, meta.ID)
	require.NoError(t, err, "Load error")
	require.Equal(t, int64(100), got.Size, "size should be updated")
	require.Equal(t, "00000000cafebabe", got.Checksum, "checksum should be updated")
	require.True(t, got.CreatedAt.Equal(meta.CreatedAt), "created_at must not change on upsert")
	require.True(t, got.UpdatedAt.Equal(updated.UpdatedAt), "updated_at should change on upsert")
}

func TestDeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newCatalog(t)

	meta := testMetadata("file_1_cccc")
	require.NoError(t, c.Save(ctx, meta), "Save error")
	require.NoError(t, c.Delete(ctx, meta.ID), "Delete error")
	require.NoError(t, c.Delete(ctx, meta.ID), "second Delete should not error")

	exists, err := c.Exists(ctx, meta.ID)
	require.NoError(t, err, "Exists error")
	require.False(t, exists, "row should be gone")
}

func TestListOrderAndPrefix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newCatalog(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		meta := testMetadata(fmt.Sprintf("file_%d_x", i))
		meta.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, c.Save(ctx, meta), "Save error")
	}
	other := testMetadata("other_1_y")
	other.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, c.Save(ctx, other), "Save error")

	all, err := c.List(ctx, "", 0, 0)
	require.NoError(t, err, "List error")
	require.Len(t, all, 6, "row count")
	require.Equal(t, "other_1_y", all[0].ID, "newest updated first")

	filtered, err := c.List(ctx, "file_", 0, 0)
	require.NoError(t, err, "filtered List error")
	require.Len(t, filtered, 5, "prefix filter row count")
	require.Equal(t, "file_4_x", filtered[0].ID, "newest of the prefix first")

	page, err := c.List(ctx, "file_", 2, 2)
	require.NoError(t, err, "paged List error")
	require.Len(t, page, 2, "page size")
	require.Equal(t, "file_2_x", page[0].ID, "page offset")
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newCatalog(t)

	stats, err := c.GetStats(ctx)
	require.NoError(t, err, "GetStats error on empty catalog")
	require.Zero(t, stats.TotalFiles, "empty catalog has zero files")
	require.Zero(t, stats.TotalSize, "empty catalog has zero size")

	for i, size := range []int64{10, 20, 30} {
		meta := testMetadata(fmt.Sprintf("file_%d_s", i))
		meta.Size = size
		require.NoError(t, c.Save(ctx, meta), "Save error")
	}

	stats, err = c.GetStats(ctx)
	require.NoError(t, err, "GetStats error")
	require.Equal(t, int64(3), stats.TotalFiles, "file count")
	require.Equal(t, int64(60), stats.TotalSize, "aggregate size")
}
