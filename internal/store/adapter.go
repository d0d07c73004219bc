// Package store exposes the path-keyed CRUD surface the HTTP handlers
// call. It orchestrates the file storage service and the path mapper;
// it is the only layer permitted to mutate path mappings.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"shelf/internal/blob"
	"shelf/internal/errs"
	"shelf/internal/pathmap"
)

// Entry is a fully decoded object addressed by path.
type Entry struct {
	Path        string    `json:"path"`
	ID          string    `json:"id"`
	Value       Value     `json:"-"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ListItem is one row of a listing: metadata plus a truncated preview,
// never the full payload.
type ListItem struct {
	Path        string    `json:"path"`
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Preview     string    `json:"preview,omitempty"`
}

// ListOptions control filtering, ordering, and pagination of List.
type ListOptions struct {
	// Search filters by substring match against the path or the
	// truncated decoded value.
	Search string
	Page   int
	Limit  int
	// Sort is one of "id", "size", "updated" (default "updated").
	Sort string
	// Order is "asc" or "desc" (default "desc").
	Order string
}

// ListResult is a page of a filtered listing. Total reflects the
// post-filter set, not the raw mapping count.
type ListResult struct {
	Items []ListItem `json:"items"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}

// Stats aggregates over mapped, existing objects.
type Stats struct {
	TotalPaths int   `json:"totalPaths"`
	TotalSize  int64 `json:"totalSize"`
}

const previewLimit = 100

// Adapter binds the file storage service to the path namespace.
type Adapter struct {
	blobs *blob.Service
	paths *pathmap.Mapper
}

// NewAdapter wires the adapter.
func NewAdapter(blobs *blob.Service, paths *pathmap.Mapper) *Adapter {
	return &Adapter{blobs: blobs, paths: paths}
}

// Get resolves path to its object and decodes the payload per the
// recorded content type.
func (a *Adapter) Get(ctx context.Context, path string) (*Entry, error) {
	id, err := a.paths.FileID(ctx, path)
	if err != nil {
		return nil, err
	}

	meta, err := a.blobs.Read(ctx, id)
	if err != nil {
		return nil, errs.Wrap(err, fmt.Sprintf("get %s", path))
	}

	data, err := a.blobs.ReadData(ctx, id)
	if err != nil {
		return nil, errs.Wrap(err, fmt.Sprintf("get %s", path))
	}

	return &Entry{
		Path:        path,
		ID:          id,
		Value:       decode(data, meta.ContentType),
		ContentType: meta.ContentType,
		Size:        meta.Size,
		CreatedAt:   meta.CreatedAt,
		UpdatedAt:   meta.UpdatedAt,
	}, nil
}

// Create stores a new object and maps path to it. The mapping is
// created only after the blob write succeeds, so a failed write never
// produces a dangling mapping.
func (a *Adapter) Create(ctx context.Context, path string, value Value, contentType string) (*Entry, error) {
	if path == "" {
		return nil, errs.Invalid("path must not be empty")
	}

	if _, err := a.paths.FileID(ctx, path); err == nil {
		return nil, errs.AlreadyExists("path %s", path)
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	return a.writeAndMap(ctx, path, value, contentType)
}

// Update replaces the object at path with a new one. Implemented as
// remove-then-recreate: the mapping is removed first so a crash
// mid-update leaves the path safely unmapped instead of pointing at a
// deleted or inconsistent object.
func (a *Adapter) Update(ctx context.Context, path string, value Value, contentType string) (*Entry, error) {
	oldID, err := a.paths.FileID(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := a.paths.Delete(ctx, path); err != nil {
		return nil, errs.Wrap(err, fmt.Sprintf("update %s", path))
	}

	if err := a.blobs.Delete(ctx, oldID); err != nil && !blob.IsNotFound(err) {
		// The path is already unmapped, which is the safe partial
		// state; surface the stranded blob rather than remapping.
		return nil, errs.Internal("update %s: old object %s not reclaimed: %v", path, oldID, err)
	}

	return a.writeAndMap(ctx, path, value, contentType)
}

func (a *Adapter) writeAndMap(ctx context.Context, path string, value Value, contentType string) (*Entry, error) {
	data, resolvedType, err := encode(value, contentType)
	if err != nil {
		return nil, err
	}

	meta, err := a.blobs.Write(ctx, data, blob.WriteOptions{
		Name:        path,
		ContentType: resolvedType,
	})
	if err != nil {
		return nil, errs.Wrap(err, fmt.Sprintf("write %s", path))
	}

	if err := a.paths.Set(ctx, path, meta.ID); err != nil {
		// Unmapped blobs are unreachable; reclaim before reporting.
		if delErr := a.blobs.Delete(ctx, meta.ID); delErr != nil {
			slog.Warn("Orphan object left after failed mapping", "path", path, "id", meta.ID, "err", delErr)
		}
		return nil, errs.Wrap(err, fmt.Sprintf("map %s", path))
	}

	return &Entry{
		Path:        path,
		ID:          meta.ID,
		Value:       value,
		ContentType: meta.ContentType,
		Size:        meta.Size,
		CreatedAt:   meta.CreatedAt,
		UpdatedAt:   meta.UpdatedAt,
	}, nil
}

// Delete removes the object at path and then its mapping. When the
// blob delete fails the mapping is kept so the object stays reachable
// and deletion can be retried; a mapping-delete failure after a
// successful blob delete is a fatal inconsistency surfaced to the
// caller, not silently ignored.
func (a *Adapter) Delete(ctx context.Context, path string) error {
	id, err := a.paths.FileID(ctx, path)
	if err != nil {
		return err
	}

	if err := a.blobs.Delete(ctx, id); err != nil && !blob.IsNotFound(err) {
		return errs.Internal("delete %s: object %s not removed, mapping retained: %v", path, id, err)
	}

	if err := a.paths.Delete(ctx, path); err != nil {
		return errs.Internal("delete %s: object %s removed but mapping remains: %v", path, id, err)
	}

	return nil
}

// List enumerates all mappings, filters, sorts, and paginates in
// memory. The full scan is O(total objects) per call; acceptable for
// moderate catalogs and deliberately not hidden behind partial
// results.
func (a *Adapter) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	total, err := a.paths.Count(ctx)
	if err != nil {
		return nil, err
	}

	mappings, err := a.paths.List(ctx, total, 0)
	if err != nil {
		return nil, err
	}

	items := make([]ListItem, 0, len(mappings))
	search := strings.ToLower(opts.Search)

	for _, mp := range mappings {
		meta, err := a.blobs.Read(ctx, mp.FileID)
		if blob.IsNotFound(err) {
			// Mapping points at missing metadata: a deliberate skip,
			// not an error, so one inconsistency cannot break listing.
			slog.Warn("Mapping with no metadata skipped in listing", "path", mp.Path, "id", mp.FileID)
			continue
		}
		if err != nil {
			return nil, errs.Wrap(err, fmt.Sprintf("list metadata for %s", mp.Path))
		}

		item := ListItem{
			Path:        mp.Path,
			ID:          meta.ID,
			ContentType: meta.ContentType,
			Size:        meta.Size,
			UpdatedAt:   meta.UpdatedAt,
		}

		data, err := a.blobs.ReadData(ctx, mp.FileID)
		if err == nil {
			value := decode(data, meta.ContentType)
			item.Type = value.Type
			item.Preview = value.Preview(previewLimit)
		} else {
			item.Type = TypeBinary
		}

		if search != "" &&
			!strings.Contains(strings.ToLower(item.Path), search) &&
			!strings.Contains(strings.ToLower(item.Preview), search) {
			continue
		}

		items = append(items, item)
	}

	sortItems(items, opts.Sort, opts.Order)

	filtered := len(items)
	start := (opts.Page - 1) * opts.Limit
	if start > filtered {
		start = filtered
	}
	end := min(start+opts.Limit, filtered)

	return &ListResult{
		Items: items[start:end],
		Total: filtered,
		Page:  opts.Page,
		Limit: opts.Limit,
	}, nil
}

func sortItems(items []ListItem, field, order string) {
	asc := strings.EqualFold(order, "asc")

	less := func(i, j int) bool {
		switch field {
		case "id":
			return items[i].ID < items[j].ID
		case "size":
			if items[i].Size != items[j].Size {
				return items[i].Size < items[j].Size
			}
			return items[i].Path < items[j].Path
		default: // updated
			if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
				return items[i].UpdatedAt.Before(items[j].UpdatedAt)
			}
			return items[i].Path < items[j].Path
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if asc {
			return less(i, j)
		}
		return less(j, i)
	})
}

// GetStats reports the mapped-path count and aggregate size of mapped,
// existing objects. Mappings pointing at missing metadata are skipped,
// not counted.
func (a *Adapter) GetStats(ctx context.Context) (Stats, error) {
	total, err := a.paths.Count(ctx)
	if err != nil {
		return Stats{}, err
	}

	mappings, err := a.paths.List(ctx, total, 0)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, mp := range mappings {
		meta, err := a.blobs.Read(ctx, mp.FileID)
		if blob.IsNotFound(err) {
			continue
		}
		if err != nil {
			return Stats{}, errs.Wrap(err, fmt.Sprintf("stats metadata for %s", mp.Path))
		}
		stats.TotalPaths++
		stats.TotalSize += meta.Size
	}

	return stats, nil
}
