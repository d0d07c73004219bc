package shelf

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the http.Handler for the full API surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Path-keyed object CRUD.
	mux.HandleFunc("GET /v1/kv/{path...}", func(w http.ResponseWriter, r *http.Request) {
		s.handleGet(r.Context(), w, r.PathValue("path"))
	})
	mux.HandleFunc("POST /v1/kv/{path...}", func(w http.ResponseWriter, r *http.Request) {
		s.handleCreate(r.Context(), w, r, r.PathValue("path"))
	})
	mux.HandleFunc("PUT /v1/kv/{path...}", func(w http.ResponseWriter, r *http.Request) {
		s.handleUpdate(r.Context(), w, r, r.PathValue("path"))
	})
	mux.HandleFunc("DELETE /v1/kv/{path...}", func(w http.ResponseWriter, r *http.Request) {
		s.handleDelete(r.Context(), w, r.PathValue("path"))
	})

	// Catalog-wide operations.
	mux.HandleFunc("GET /v1/list", func(w http.ResponseWriter, r *http.Request) {
		s.handleList(r.Context(), w, r)
	})
	mux.HandleFunc("GET /v1/stats", func(w http.ResponseWriter, r *http.Request) {
		s.handleStats(r.Context(), w)
	})
	mux.HandleFunc("GET /v1/verify/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.handleVerify(r.Context(), w, r.PathValue("id"))
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.handleHealth(r.Context(), w)
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Add middleware
	handler := SlashFix(mux)
	handler = LogRequest(handler)
	handler = RequireAuth(handler, s.cfg.AuthToken)
	handler = Recoverer(handler)
	return handler
}
