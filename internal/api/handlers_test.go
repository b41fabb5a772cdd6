// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/loomfeed/internal/recommend"
	"github.com/tomtom215/loomfeed/internal/recommend/engine"
)

// fakeEngine records requests and returns canned results.
type fakeEngine struct {
	mu           sync.Mutex
	feedReqs     []recommend.FeedRequest
	interactions []recommend.InteractionEvent
	feed         []recommend.FeedItem
	weight       float64
	err          error
}

func (f *fakeEngine) Recommend(_ context.Context, req recommend.FeedRequest) ([]recommend.FeedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedReqs = append(f.feedReqs, req)
	return f.feed, f.err
}

func (f *fakeEngine) RecordInteraction(_ context.Context, ev recommend.InteractionEvent) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interactions = append(f.interactions, ev)
	return f.weight, f.err
}

func (f *fakeEngine) Stats() engine.Stats {
	return engine.Stats{Requests: 3, Backend: "memory"}
}

func newTestRouter(t *testing.T, eng Engine, mwConfig *ChiMiddlewareConfig) http.Handler {
	t.Helper()
	if mwConfig == nil {
		mwConfig = DefaultChiMiddlewareConfig()
		mwConfig.RateLimitDisabled = true
	}
	return NewRouter(NewHandler(eng, nil, 0), mwConfig).SetupChi()
}

func newRealEngine(t *testing.T, modify func(*recommend.Config)) *engine.Engine {
	t.Helper()
	cfg := recommend.DefaultConfig()
	cfg.Seed = 11
	cfg.Model.EmbeddingDim = 8
	if modify != nil {
		modify(cfg)
	}
	eng, err := engine.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	return eng
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestRoot(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, &fakeEngine{}, nil), http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := decodeBody[StatusResponse](t, rec)
	if got.Status != "online" || len(got.Modules) != 1 || got.Modules[0] != "recommendation" {
		t.Errorf("root = %+v", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, &fakeEngine{}, nil), http.MethodGet, "/recommendation/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := decodeBody[HealthResponse](t, rec)
	if got.Status != "ok" || got.Service != ServiceName {
		t.Errorf("health = %+v", got)
	}
	if got.Stats.Requests != 3 || got.Stats.Backend != "memory" {
		t.Errorf("stats = %+v", got.Stats)
	}
}

func TestRecommend_Empty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"no posts field", `{}`},
		{"empty posts", `{"posts": []}`},
		{"only non-object posts", `{"posts": [1, "x", null]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			eng := &fakeEngine{}
			rec := do(t, newTestRouter(t, eng, nil), http.MethodPost, "/recommendation/recommend", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
				t.Errorf("body = %s, want []", body)
			}
			if len(eng.feedReqs) != 0 {
				t.Error("engine called for an empty candidate list")
			}
		})
	}
}

func TestRecommend_EchoesPostsWithScores(t *testing.T) {
	t.Parallel()

	posts := make([]string, 5)
	for i := range posts {
		posts[i] = fmt.Sprintf(`{"_id":"p%d","artistId":"a%d","title":"t%d","mlTags":{"style":[{"label":"style-%d","confidence":0.9}]}}`, i, i, i, i)
	}
	body := fmt.Sprintf(`{"posts":[%s],"user_id":"viewer-1","top_n":3}`, strings.Join(posts, ","))

	rec := do(t, newTestRouter(t, newRealEngine(t, nil), nil), http.MethodPost, "/recommendation/recommend", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	feed := decodeBody[[]map[string]any](t, rec)
	if len(feed) != 3 {
		t.Fatalf("len(feed) = %d, want 3", len(feed))
	}

	serendipity := 0
	prev := 2.0
	for _, item := range feed {
		score, ok := item["score"].(float64)
		if !ok || score < 0 || score > 1 {
			t.Errorf("score = %v, want number in [0, 1]", item["score"])
		}
		if score > prev {
			t.Errorf("feed not sorted: %v after %v", score, prev)
		}
		prev = score

		if w, ok := item["ncf_weight"].(float64); !ok || w != 0 {
			t.Errorf("ncf_weight = %v, want 0 for a cold user", item["ncf_weight"])
		}
		if _, ok := item["title"]; !ok {
			t.Error("original field title was not echoed")
		}
		if _, ok := item["mlTags"]; !ok {
			t.Error("original field mlTags was not echoed")
		}
		if v, ok := item["is_serendipity"]; ok {
			if v != true {
				t.Errorf("is_serendipity = %v, want true when present", v)
			}
			serendipity++
		}
	}
	if serendipity != 1 {
		t.Errorf("serendipity picks = %d, want 1", serendipity)
	}
}

func TestRecommend_RequestCoercion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		body            string
		wantTopN        int
		wantExploration float64
		wantFollowed    int
		wantTrust       int
		wantHistory     int
	}{
		{
			name:            "defaults",
			body:            `{"posts":[{"_id":"p1"}]}`,
			wantTopN:        0,
			wantExploration: 0.15,
		},
		{
			name:            "zero exploration means the default",
			body:            `{"posts":[{"_id":"p1"}],"exploration_factor":0}`,
			wantExploration: 0.15,
		},
		{
			name:            "null exploration means the default",
			body:            `{"posts":[{"_id":"p1"}],"exploration_factor":null}`,
			wantExploration: 0.15,
		},
		{
			name:            "zero top_n means the default",
			body:            `{"posts":[{"_id":"p1"}],"top_n":0}`,
			wantTopN:        0,
			wantExploration: 0.15,
		},
		{
			name:            "null top_n means the default",
			body:            `{"posts":[{"_id":"p1"}],"top_n":null}`,
			wantTopN:        0,
			wantExploration: 0.15,
		},
		{
			name: "all fields",
			body: `{"posts":[{"_id":"p1"}],"top_n":5,"exploration_factor":0.3,
				"followed_artist_ids":["a1","a2",""],
				"viewer_behavior_stats":{"anything":1},
				"creator_behavior_stats":{"a1":{"bot_score":0.8}},
				"interaction_history":[{"tags":{"style":[{"label":"x"}]},"weight":2},"junk"]}`,
			wantTopN:        5,
			wantExploration: 0.3,
			wantFollowed:    2,
			wantTrust:       1,
			wantHistory:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			eng := &fakeEngine{}
			rec := do(t, newTestRouter(t, eng, nil), http.MethodPost, "/recommendation/recommend", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if len(eng.feedReqs) != 1 {
				t.Fatalf("engine calls = %d, want 1", len(eng.feedReqs))
			}
			req := eng.feedReqs[0]
			if req.TopN != tt.wantTopN {
				t.Errorf("TopN = %d, want %d", req.TopN, tt.wantTopN)
			}
			if req.Exploration != tt.wantExploration {
				t.Errorf("Exploration = %v, want %v", req.Exploration, tt.wantExploration)
			}
			if len(req.Followed) != tt.wantFollowed {
				t.Errorf("len(Followed) = %d, want %d", len(req.Followed), tt.wantFollowed)
			}
			if len(req.Trust) != tt.wantTrust {
				t.Errorf("len(Trust) = %d, want %d", len(req.Trust), tt.wantTrust)
			}
			if len(req.History) != tt.wantHistory {
				t.Errorf("len(History) = %d, want %d", len(req.History), tt.wantHistory)
			}
		})
	}
}

func TestRecommend_NumericIDsKeepPrecision(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{}
	body := `{"posts":[{"_id":9007199254740993,"artistId":"a"}]}`
	do(t, newTestRouter(t, eng, nil), http.MethodPost, "/recommendation/recommend", body)

	if len(eng.feedReqs) != 1 {
		t.Fatal("engine not called")
	}
	if got := eng.feedReqs[0].Posts[0].ID; got != "9007199254740993" {
		t.Errorf("post ID = %q, want 9007199254740993", got)
	}
}

func TestRecommend_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		engineErr  error
		body       string
		wantStatus int
		wantCode   string
	}{
		{"malformed json", nil, `{"posts":`, http.StatusBadRequest, CodeInvalidRequest},
		{"empty body", nil, "", http.StatusBadRequest, CodeInvalidRequest},
		{"invalid user id", nil, `{"posts":[{"_id":"p"}],"user_id":" padded "}`, http.StatusBadRequest, CodeValidationError},
		{"too many candidates", fmt.Errorf("%w: 3 > 2", engine.ErrTooManyCandidates), `{"posts":[{"_id":"p"}]}`, http.StatusBadRequest, CodeInvalidRequest},
		{"engine failure", errors.New("boom"), `{"posts":[{"_id":"p"}]}`, http.StatusInternalServerError, CodeInternalError},
		{"cancelled", context.Canceled, `{"posts":[{"_id":"p"}]}`, http.StatusServiceUnavailable, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			eng := &fakeEngine{err: tt.engineErr}
			rec := do(t, newTestRouter(t, eng, nil), http.MethodPost, "/recommendation/recommend", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			resp := decodeBody[APIResponse](t, rec)
			if resp.Status != "error" || resp.Error == nil {
				t.Fatalf("response = %+v, want error envelope", resp)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", resp.Error.Code, tt.wantCode)
			}
			if resp.Metadata.RequestID == "" {
				t.Error("error envelope is missing the request id")
			}
		})
	}
}

func TestRecommend_BodyTooLarge(t *testing.T) {
	t.Parallel()

	h := NewRouter(NewHandler(&fakeEngine{}, nil, 32), &ChiMiddlewareConfig{RateLimitDisabled: true}).SetupChi()
	body := `{"posts":[{"_id":"` + strings.Repeat("x", 64) + `"}]}`
	rec := do(t, h, http.MethodPost, "/recommendation/recommend", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestRecommend_TooManyCandidatesRealEngine(t *testing.T) {
	t.Parallel()

	eng := newRealEngine(t, func(c *recommend.Config) { c.Feed.MaxCandidates = 2 })
	body := `{"posts":[{"_id":"a"},{"_id":"b"},{"_id":"c"}]}`
	rec := do(t, newTestRouter(t, eng, nil), http.MethodPost, "/recommendation/recommend", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestInteraction(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{weight: 0.25}
	body := `{"user_id":"u1","post_id":"p2","interaction_type":"like","all_post_ids":["p1","p2","p3",""]}`
	rec := do(t, newTestRouter(t, eng, nil), http.MethodPost, "/recommendation/interaction", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	got := decodeBody[InteractionResponse](t, rec)
	if !got.OK || got.NCFWeight != 0.25 {
		t.Errorf("response = %+v", got)
	}

	if len(eng.interactions) != 1 {
		t.Fatalf("interactions = %d, want 1", len(eng.interactions))
	}
	ev := eng.interactions[0]
	if ev.UserID != "u1" || ev.PostID != "p2" || ev.Type != recommend.InteractionLike {
		t.Errorf("event = %+v", ev)
	}
	if len(ev.Negatives) != 2 || ev.Negatives[0] != "p1" || ev.Negatives[1] != "p3" {
		t.Errorf("negatives = %v, want [p1 p3]", ev.Negatives)
	}
}

func TestInteraction_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"missing user", `{"post_id":"p","interaction_type":"like"}`},
		{"missing post", `{"user_id":"u","interaction_type":"like"}`},
		{"missing type", `{"user_id":"u","post_id":"p"}`},
		{"blank user", `{"user_id":"   ","post_id":"p","interaction_type":"like"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			eng := &fakeEngine{}
			rec := do(t, newTestRouter(t, eng, nil), http.MethodPost, "/recommendation/interaction", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if resp := decodeBody[APIResponse](t, rec); resp.Error == nil || resp.Error.Code != CodeValidationError {
				t.Errorf("response = %+v, want VALIDATION_ERROR", resp)
			}
			if len(eng.interactions) != 0 {
				t.Error("engine called for an invalid request")
			}
		})
	}
}

func TestInteraction_TrainsRealEngine(t *testing.T) {
	t.Parallel()

	eng := newRealEngine(t, nil)
	h := newTestRouter(t, eng, nil)

	var last InteractionResponse
	for i := 0; i < 6; i++ {
		body := fmt.Sprintf(`{"user_id":"u1","post_id":"p%d","interaction_type":"like","all_post_ids":["p%d","q1","q2"]}`, i, i)
		rec := do(t, h, http.MethodPost, "/recommendation/interaction", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		last = decodeBody[InteractionResponse](t, rec)
	}
	if last.NCFWeight <= 0 || last.NCFWeight > 1 {
		t.Errorf("ncf_weight after 6 likes = %v, want in (0, 1]", last.NCFWeight)
	}
	if got := eng.Stats().Interactions; got != 6 {
		t.Errorf("interactions = %d, want 6", got)
	}
}

func TestRouting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"unknown route", http.MethodGet, "/nope", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/recommendation/recommend", http.StatusMethodNotAllowed},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
	}

	h := newTestRouter(t, &fakeEngine{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if rec := do(t, h, tt.method, tt.path, ""); rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 1
	h := newTestRouter(t, &fakeEngine{}, cfg)

	if rec := do(t, h, http.MethodGet, "/recommendation/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/recommendation/health", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if resp := decodeBody[APIResponse](t, rec); resp.Error == nil || resp.Error.Code != CodeRateLimited {
		t.Errorf("response = %+v, want RATE_LIMITED", resp)
	}

	// The root route is outside the limited group.
	if rec := do(t, h, http.MethodGet, "/", ""); rec.Code != http.StatusOK {
		t.Errorf("root status = %d, want 200", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, &fakeEngine{}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/recommendation/recommend", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestRecommend_ZeroTopNUsesDefaultFeedSize(t *testing.T) {
	t.Parallel()

	posts := make([]string, 25)
	for i := range posts {
		posts[i] = fmt.Sprintf(`{"_id":"p%d","artistId":"a%d","mlTags":{"subject":[{"label":"subject-%d","confidence":0.8}]}}`, i, i, i)
	}
	body := fmt.Sprintf(`{"posts":[%s],"top_n":0,"exploration_factor":0}`, strings.Join(posts, ","))

	rec := do(t, newTestRouter(t, newRealEngine(t, nil), nil), http.MethodPost, "/recommendation/recommend", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if feed := decodeBody[[]map[string]any](t, rec); len(feed) != recommend.DefaultConfig().Feed.DefaultTopN {
		t.Errorf("len(feed) = %d, want the default %d", len(feed), recommend.DefaultConfig().Feed.DefaultTopN)
	}
}
