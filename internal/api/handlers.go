package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/justestif/band-recommender/internal/db"
	"github.com/justestif/band-recommender/internal/logging"
	"github.com/justestif/band-recommender/internal/models"
	"github.com/justestif/band-recommender/internal/recommend"
)

// Recommender builds recommendation lists.
type Recommender interface {
	GetRecommendations(ctx context.Context, token string, genres []string, location string) ([]models.BandModel, error)
}

// ImageStore serves registered band cover images.
type ImageStore interface {
	CoverImage(ctx context.Context, id uuid.UUID) ([]byte, error)
}

// Pinger reports dependency health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains the HTTP handlers.
type Handlers struct {
	recommender Recommender
	images      ImageStore
	health      Pinger
}

// NewHandlers creates a new Handlers instance. health may be nil.
func NewHandlers(recommender Recommender, images ImageStore, health Pinger) *Handlers {
	return &Handlers{
		recommender: recommender,
		images:      images,
		health:      health,
	}
}

// RecommendationsResponse is the body of GET /api/recommendations.
type RecommendationsResponse struct {
	Recommendations []models.BandModel `json:"recommendations"`
	Count           int                `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Recommendations handles GET /api/recommendations?genres=a,b&location=x.
// The streaming token is taken from the bearer Authorization header.
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	q := r.URL.Query()
	genres := models.SplitGenres(q.Get("genres"))
	location := strings.TrimSpace(q.Get("location"))

	bands, err := h.recommender.GetRecommendations(r.Context(), token, genres, location)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("recommendations failed")
		if errors.Is(err, recommend.ErrListeningHistory) {
			writeError(w, http.StatusBadGateway, "could not read listening history")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to build recommendations")
		return
	}

	writeJSON(w, http.StatusOK, RecommendationsResponse{Recommendations: bands, Count: len(bands)})
}

// BandImage handles GET /api/bands/{id}/image.
func (h *Handlers) BandImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid band id")
		return
	}

	image, err := h.images.CoverImage(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("band_id", id.String()).Msg("loading cover image")
		writeError(w, http.StatusInternalServerError, "failed to load image")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(image))
	w.Header().Set("Content-Length", strconv.Itoa(len(image)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(image)
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func bearerToken(r *http.Request) string {
	const prefix = "bearer "
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
