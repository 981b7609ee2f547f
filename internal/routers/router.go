package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"codenow/internal/api"
	"codenow/internal/config"
	"codenow/internal/metrics"
	"codenow/internal/session"
)

func New(log *zap.Logger, sess *session.Session, cfg *config.Config) http.Handler {
	h := api.NewHandlers(log, sess, cfg)
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		metrics.Middleware,
		cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}),
	)

	r.Get("/", h.Root)
	r.Get("/healthz", h.Health)
	r.Get("/api/v1/healthz", h.Health)
	r.Get("/api/v1/session", h.SessionStatus)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/ws", h.CollabWS)
	r.Get("/socket", h.CollabWS)

	return r
}
