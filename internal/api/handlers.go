// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/loomfeed/internal/logging"
	"github.com/tomtom215/loomfeed/internal/recommend"
	"github.com/tomtom215/loomfeed/internal/recommend/engine"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "loom-recommendation"

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 10 << 20

// Engine is the recommendation engine as seen by the handlers.
type Engine interface {
	Recommend(ctx context.Context, req recommend.FeedRequest) ([]recommend.FeedItem, error)
	RecordInteraction(ctx context.Context, ev recommend.InteractionEvent) (float64, error)
	Stats() engine.Stats
}

// Handler serves the recommendation endpoints.
type Handler struct {
	engine       Engine
	config       *recommend.Config
	maxBodyBytes int64
}

// NewHandler creates a handler. cfg supplies request defaults; nil uses
// recommend.DefaultConfig. A non-positive maxBodyBytes uses DefaultMaxBodyBytes.
func NewHandler(eng Engine, cfg *recommend.Config, maxBodyBytes int64) *Handler {
	if cfg == nil {
		cfg = recommend.DefaultConfig()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		engine:       eng,
		config:       cfg,
		maxBodyBytes: maxBodyBytes,
	}
}

// RecommendRequest is the body of POST /recommendation/recommend.
type RecommendRequest struct {
	// Posts are the candidate post objects. Non-object entries are ignored.
	Posts []any `json:"posts"`

	UserID string `json:"user_id" validate:"omitempty,entity_id"`

	// InteractionHistory entries are {tags, weight} objects.
	InteractionHistory []any `json:"interaction_history"`

	FollowedArtistIDs []string `json:"followed_artist_ids"`

	// ViewerBehaviorStats is accepted for compatibility and not used.
	ViewerBehaviorStats map[string]any `json:"viewer_behavior_stats"`

	CreatorBehaviorStats map[string]any `json:"creator_behavior_stats"`

	// TopN is the feed size; absent, null or 0 means the configured default.
	TopN int `json:"top_n"`

	// ExplorationFactor bounds the random exploration term; absent, null or
	// 0 means the configured default.
	ExplorationFactor float64 `json:"exploration_factor"`
}

// InteractionRequest is the body of POST /recommendation/interaction.
type InteractionRequest struct {
	UserID          string   `json:"user_id" validate:"required,entity_id"`
	PostID          string   `json:"post_id" validate:"required,entity_id"`
	InteractionType string   `json:"interaction_type" validate:"required,max=64"`
	AllPostIDs      []string `json:"all_post_ids" validate:"omitempty,max=5000"`
}

// InteractionResponse is returned after training on an interaction.
type InteractionResponse struct {
	OK        bool    `json:"ok"`
	NCFWeight float64 `json:"ncf_weight"`
}

// HealthResponse reports liveness and engine statistics.
type HealthResponse struct {
	Status  string       `json:"status"`
	Service string       `json:"service"`
	Stats   engine.Stats `json:"stats"`
}

// StatusResponse is returned by the root endpoint.
type StatusResponse struct {
	Status  string   `json:"status"`
	Modules []string `json:"modules"`
}

// Root handles GET /.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, &StatusResponse{
		Status:  "online",
		Modules: []string{"recommendation"},
	})
}

// Health handles GET /recommendation/health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, &HealthResponse{
		Status:  "ok",
		Service: ServiceName,
		Stats:   h.engine.Stats(),
	})
}

// Recommend handles POST /recommendation/recommend. The response is a JSON
// array of the submitted post objects, highest score first, each extended
// with score, ncf_weight and, for discovery picks, is_serendipity.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if !h.decode(w, r, &req) {
		return
	}

	feedReq := h.feedRequest(&req)
	if len(feedReq.Posts) == 0 {
		respondJSON(w, http.StatusOK, []map[string]any{})
		return
	}

	feed, err := h.engine.Recommend(r.Context(), feedReq)
	if err != nil {
		h.engineError(w, r, err)
		return
	}

	out := make([]map[string]any, len(feed))
	for i := range feed {
		out[i] = feedObject(&feed[i])
	}

	logging.Ctx(r.Context()).Debug().
		Str("user_id", req.UserID).
		Int("candidates", len(feedReq.Posts)).
		Int("returned", len(out)).
		Msg("feed served")

	respondJSON(w, http.StatusOK, out)
}

// Interaction handles POST /recommendation/interaction.
func (h *Handler) Interaction(w http.ResponseWriter, r *http.Request) {
	var req InteractionRequest
	if !h.decode(w, r, &req) {
		return
	}

	negatives := make([]string, 0, len(req.AllPostIDs))
	for _, id := range req.AllPostIDs {
		if id != "" && id != req.PostID {
			negatives = append(negatives, id)
		}
	}

	weight, err := h.engine.RecordInteraction(r.Context(), recommend.InteractionEvent{
		UserID:    req.UserID,
		PostID:    req.PostID,
		Type:      recommend.InteractionType(req.InteractionType),
		Negatives: negatives,
	})
	if err != nil {
		h.engineError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, &InteractionResponse{OK: true, NCFWeight: weight})
}

// decode reads and validates a JSON body, writing the error response on
// failure. Numbers are kept as json.Number so large numeric IDs survive.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(r.Context(), w, http.StatusRequestEntityTooLarge, &APIError{
				Code:    CodeInvalidRequest,
				Message: fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit),
			}, err)
			return false
		}
		respondError(r.Context(), w, http.StatusBadRequest, &APIError{
			Code:    CodeInvalidRequest,
			Message: "Failed to read request body",
		}, err)
		return false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		respondError(r.Context(), w, http.StatusBadRequest, &APIError{
			Code:    CodeInvalidRequest,
			Message: "Request body is empty",
		}, nil)
		return false
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		respondError(r.Context(), w, http.StatusBadRequest, &APIError{
			Code:    CodeInvalidRequest,
			Message: "Request body is not valid JSON",
		}, err)
		return false
	}

	if apiErr := validateRequest(dst); apiErr != nil {
		respondError(r.Context(), w, http.StatusBadRequest, apiErr, errors.New(apiErr.Message))
		return false
	}
	return true
}

// feedRequest coerces the loosely typed request body.
func (h *Handler) feedRequest(req *RecommendRequest) recommend.FeedRequest {
	conf := h.config.Scoring.DefaultConfidence

	posts := make([]recommend.Post, 0, len(req.Posts))
	for _, p := range req.Posts {
		if obj, ok := p.(map[string]any); ok {
			posts = append(posts, recommend.ParsePost(obj, conf))
		}
	}

	var followed map[string]struct{}
	if len(req.FollowedArtistIDs) > 0 {
		followed = make(map[string]struct{}, len(req.FollowedArtistIDs))
		for _, id := range req.FollowedArtistIDs {
			if id != "" {
				followed[id] = struct{}{}
			}
		}
	}

	// Zero is "unset" for both knobs, as existing clients expect.
	exploration := req.ExplorationFactor
	if exploration == 0 {
		exploration = h.config.Feed.DefaultExploration
	}

	return recommend.FeedRequest{
		UserID:      req.UserID,
		Posts:       posts,
		History:     recommend.ParseHistory(req.InteractionHistory, conf),
		Followed:    followed,
		Trust:       recommend.ParseTrust(req.CreatorBehaviorStats),
		TopN:        req.TopN,
		Exploration: exploration,
	}
}

// engineError maps engine failures to responses.
func (h *Handler) engineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrTooManyCandidates):
		respondError(r.Context(), w, http.StatusBadRequest, &APIError{
			Code:    CodeInvalidRequest,
			Message: "Too many candidate posts",
			Details: map[string]any{"max_candidates": h.config.Feed.MaxCandidates},
		}, err)
	case errors.Is(err, engine.ErrInvalidInteraction):
		respondError(r.Context(), w, http.StatusBadRequest, &APIError{
			Code:    CodeInvalidRequest,
			Message: "user_id and post_id are required",
		}, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(r.Context(), w, http.StatusServiceUnavailable, &APIError{
			Code:    CodeInternalError,
			Message: "Request was cancelled",
		}, err)
	default:
		respondError(r.Context(), w, http.StatusInternalServerError, &APIError{
			Code:    CodeInternalError,
			Message: "Internal server error",
		}, err)
	}
}

// feedObject copies the submitted post object and adds the ranking fields.
func feedObject(item *recommend.FeedItem) map[string]any {
	obj := make(map[string]any, len(item.Post.Raw)+3)
	maps.Copy(obj, item.Post.Raw)
	obj["score"] = item.Score
	obj["ncf_weight"] = item.NCFWeight
	if item.Serendipity {
		obj["is_serendipity"] = true
	} else {
		delete(obj, "is_serendipity")
	}
	return obj
}
