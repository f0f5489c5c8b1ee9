package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-channel-publisher/internal/domain"
	"telegram-channel-publisher/internal/domain/model"
	"telegram-channel-publisher/internal/infra/logging"
	"telegram-channel-publisher/internal/infra/metrics"
)

type postResponse struct {
	ID                 int64      `json:"id"`
	Text               string     `json:"text"`
	Status             string     `json:"status"`
	ScheduledAt        *time.Time `json:"scheduled_at,omitempty"`
	DeliveredMessageID *int64     `json:"delivered_message_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toResponse(p *model.Post) postResponse {
	return postResponse{
		ID:                 p.ID,
		Text:               p.Text,
		Status:             string(p.Status),
		ScheduledAt:        p.ScheduledAt,
		DeliveredMessageID: p.DeliveredMessageID,
		CreatedAt:          p.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadySent), errors.Is(err, domain.ErrPostBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, route string, err error) {
	code := statusFor(err)
	metrics.IncAdminAPI(route, strconv.Itoa(code))
	if code >= http.StatusInternalServerError {
		logging.With(r.Context(), s.log).Error().Err(err).Str("route", route).Msg("admin api failure")
	}
	writeError(w, code, err.Error())
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	return id, nil
}

// GET /api/v1/posts?status=&limit=
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	const route = "list_posts"
	q := r.URL.Query()

	status := model.PostStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		s.fail(w, r, route, domain.ErrInvalidArgument)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	posts, err := s.posts.Recent(r.Context(), status, limit)
	if err != nil {
		s.fail(w, r, route, err)
		return
	}
	items := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		items = append(items, toResponse(p))
	}
	metrics.IncAdminAPI(route, "200")
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GET /api/v1/posts/{id}
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	const route = "get_post"
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, route, err)
		return
	}
	post, err := s.posts.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, route, err)
		return
	}
	metrics.IncAdminAPI(route, "200")
	writeJSON(w, http.StatusOK, toResponse(post))
}

// POST /api/v1/posts/{id}/retry publishes a scheduled post immediately.
func (s *Server) handleRetryPost(w http.ResponseWriter, r *http.Request) {
	const route = "retry_post"
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, route, err)
		return
	}
	post, err := s.posts.Retry(r.Context(), id)
	if err != nil {
		s.fail(w, r, route, err)
		return
	}
	logging.With(logging.WithPostID(r.Context(), id), s.log).Info().Msg("post retried via admin api")
	metrics.IncAdminAPI(route, "200")
	writeJSON(w, http.StatusOK, toResponse(post))
}
