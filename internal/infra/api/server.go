package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-channel-publisher/internal/domain/model"
)

// PostService is what the admin API needs from the publishing layer.
type PostService interface {
	Recent(ctx context.Context, status model.PostStatus, limit int) ([]*model.Post, error)
	Get(ctx context.Context, id int64) (*model.Post, error)
	Retry(ctx context.Context, id int64) (*model.Post, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Server struct {
	posts   PostService
	auth    *AuthManager
	webhook http.Handler
	checks  map[string]HealthCheck
	log     *zerolog.Logger

	srv *http.Server
}

// NewServer builds the HTTP surface. webhook may be nil in polling mode.
func NewServer(posts PostService, auth *AuthManager, webhook http.Handler, checks map[string]HealthCheck, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "http").Logger()
	return &Server{posts: posts, auth: auth, webhook: webhook, checks: checks, log: &l}
}

// Router returns the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(s.log), TraceID(), RequestLog(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	if s.webhook != nil {
		r.Post("/telegram/webhook", s.webhook.ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.RequireAdmin, Timeout(30*time.Second))
		r.Get("/posts", s.handleListPosts)
		r.Get("/posts/{id}", s.handleGetPost)
		r.Post("/posts/{id}/retry", s.handleRetryPost)
	})
	return r
}

func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := map[string]string{}
	code := http.StatusOK
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	writeJSON(w, code, map[string]any{"status": http.StatusText(code), "checks": status})
}
