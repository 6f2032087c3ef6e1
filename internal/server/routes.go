package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// MaxBodyBytes caps request bodies; base64 media makes them large.
	MaxBodyBytes int64
}

// DefaultConfig allows any origin and 512 MiB request bodies.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   512 << 20,
	}
}

// NewRouter registers the job API:
//
//	GET  /health
//	GET  /jobs
//	POST /jobs
//	GET  /jobs/{id}
//	GET  /jobs/{id}/video
//	POST /jobs/{id}/video/delete
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /jobs", h.ListJobs)
	mux.HandleFunc("POST /jobs", h.CreateJob)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /jobs/{id}/video", h.DownloadJobVideo)
	mux.HandleFunc("POST /jobs/{id}/video/delete", h.DeleteJobVideo)

	chain := ChainMiddleware(
		RequestIDMiddleware(),
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
		BodyLimitMiddleware(cfg.MaxBodyBytes),
	)
	return chain(mux)
}
