package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOpts wire the gateway routes.
type RouterOpts struct {
	Store          BlobStore
	MaxUploadBytes int64
	// Auth guards PUT and DELETE.
	Auth func(http.Handler) http.Handler
	// Limit throttles every blob route. Optional.
	Limit  func(http.Handler) http.Handler
	Health map[string]Pinger
}

// NewRouter returns the media gateway mux.
func NewRouter(opts RouterOpts) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", ServeHealth(opts.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/blobs", func(r chi.Router) {
		if opts.Limit != nil {
			r.Use(opts.Limit)
		}
		r.Get("/*", ServeBlob(opts.Store))
		r.Head("/*", ServeBlob(opts.Store))

		r.Group(func(r chi.Router) {
			if opts.Auth != nil {
				r.Use(opts.Auth)
			}
			r.Put("/*", UploadBlob(opts.Store, opts.MaxUploadBytes))
			r.Delete("/*", DeleteBlob(opts.Store))
		})
	})

	return r
}
