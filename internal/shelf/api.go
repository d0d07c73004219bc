package shelf

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"shelf/internal/errs"
	"shelf/internal/store"
)

// envelope is the JSON shape of every API response.
type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// objectResponse is the wire form of a decoded entry.
type objectResponse struct {
	Path        string     `json:"path"`
	ID          string     `json:"id"`
	Type        store.Type `json:"type"`
	Value       any        `json:"value"`
	ContentType string     `json:"contentType"`
	Size        int64      `json:"size"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// valuePayload is the request body for create and update.
type valuePayload struct {
	Type        store.Type      `json:"type"`
	Value       json.RawMessage `json:"value"`
	ContentType string          `json:"contentType,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Encode JSON response", "err", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, envelope{Success: false, Error: &apiError{Kind: kind, Message: message}})
}

// writeStoreError maps a taxonomy error onto an HTTP status.
func writeStoreError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)

	var status int
	switch kind {
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindAlreadyExists:
		status = http.StatusConflict
	case errs.KindInvalid:
		status = http.StatusBadRequest
	case errs.KindUnavailable:
		status = http.StatusServiceUnavailable
	case errs.KindCorrupted:
		status = http.StatusInternalServerError
	default:
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		slog.Error("Storage operation failed", "kind", kind.String(), "err", err)
	}

	writeError(w, status, kind.String(), err.Error())
}

// parseValue converts a request payload into the adapter's tagged
// value. Binary values arrive as a JSON string: either a data URL or
// plain base64.
func parseValue(p valuePayload) (store.Value, string, error) {
	switch p.Type {
	case store.TypeJSON:
		if len(p.Value) == 0 {
			return store.Value{}, "", errs.Invalid("json value must not be empty")
		}
		return store.JSONValue(p.Value), p.ContentType, nil

	case store.TypeText:
		var s string
		if err := json.Unmarshal(p.Value, &s); err != nil {
			return store.Value{}, "", errs.Invalid("text value must be a JSON string")
		}
		return store.TextValue(s), p.ContentType, nil

	case store.TypeBinary:
		var s string
		if err := json.Unmarshal(p.Value, &s); err != nil {
			return store.Value{}, "", errs.Invalid("binary value must be a JSON string")
		}
		raw, embeddedType, err := store.ParseBinaryInput([]byte(s))
		if err != nil {
			return store.Value{}, "", err
		}
		contentType := p.ContentType
		if contentType == "" {
			contentType = embeddedType
		}
		// Plain (non data-URL) strings are treated as base64 when they
		// decode cleanly, since raw binary cannot ride a JSON string.
		if embeddedType == "" {
			if decoded, decErr := base64.StdEncoding.DecodeString(s); decErr == nil {
				raw = decoded
			}
		}
		return store.BinaryValue(raw), contentType, nil

	default:
		return store.Value{}, "", errs.Invalid("unknown value type %q", p.Type)
	}
}

// renderValue converts a tagged value to its JSON representation:
// raw document, string, or base64.
func renderValue(v store.Value) any {
	switch v.Type {
	case store.TypeJSON:
		return v.JSON
	case store.TypeText:
		return v.Text
	default:
		return base64.StdEncoding.EncodeToString(v.Binary)
	}
}

func entryResponse(e *store.Entry) objectResponse {
	return objectResponse{
		Path:        e.Path,
		ID:          e.ID,
		Type:        e.Value.Type,
		Value:       renderValue(e.Value),
		ContentType: e.ContentType,
		Size:        e.Size,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func decodePayload(r *http.Request) (valuePayload, error) {
	defer r.Body.Close()

	var p valuePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		return valuePayload{}, errs.Invalid("malformed request body: %v", err)
	}
	return p, nil
}

// normalizePath prefixes object paths with a leading slash so
// "/v1/kv/a/b" and a stored path "/a/b" agree.
func normalizePath(p string) string {
	if p == "" || p[0] != '/' {
		return "/" + p
	}
	return p
}

func (s *Server) handleGet(ctx context.Context, w http.ResponseWriter, path string) {
	entry, err := s.adapter.Get(ctx, normalizePath(path))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, entryResponse(entry))
}

func (s *Server) handleCreate(ctx context.Context, w http.ResponseWriter, r *http.Request, path string) {
	payload, err := decodePayload(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	value, contentType, err := parseValue(payload)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	entry, err := s.adapter.Create(ctx, normalizePath(path), value, contentType)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusCreated, entryResponse(entry))
}

func (s *Server) handleUpdate(ctx context.Context, w http.ResponseWriter, r *http.Request, path string) {
	payload, err := decodePayload(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	value, contentType, err := parseValue(payload)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	entry, err := s.adapter.Update(ctx, normalizePath(path), value, contentType)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, entryResponse(entry))
}

func (s *Server) handleDelete(ctx context.Context, w http.ResponseWriter, path string) {
	if err := s.adapter.Delete(ctx, normalizePath(path)); err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"path": normalizePath(path)})
}

func (s *Server) handleList(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := store.ListOptions{
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
		Order:  q.Get("order"),
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		opts.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = v
	}

	result, err := s.adapter.List(ctx, opts)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) handleStats(ctx context.Context, w http.ResponseWriter) {
	pathStats, err := s.adapter.GetStats(ctx)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	fileStats, err := s.blobs.GetStats(ctx)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"totalPaths": pathStats.TotalPaths,
		"totalSize":  pathStats.TotalSize,
		"totalFiles": fileStats.TotalFiles,
	})
}

func (s *Server) handleVerify(ctx context.Context, w http.ResponseWriter, id string) {
	result, err := s.blobs.Verify(ctx, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) handleHealth(ctx context.Context, w http.ResponseWriter) {
	if err := s.db.PingContext(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, errs.KindUnavailable.String(), "metadata database unreachable")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
