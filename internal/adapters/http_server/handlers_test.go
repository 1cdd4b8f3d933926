package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	httpserver "hoodrate/internal/adapters/http_server"
	"hoodrate/internal/app"
	"hoodrate/internal/domain"
	"hoodrate/internal/storage/memory"
)

// fakeResolver maps tokens to user ids; "down" simulates an unreachable auth service.
type fakeResolver map[string]string

func (f fakeResolver) Resolve(_ context.Context, token string) (string, error) {
	if token == "down" {
		return "", errors.New("dial tcp: connection refused")
	}
	if id, ok := f[token]; ok {
		return id, nil
	}
	return "", domain.ErrNotAuthenticated
}

type fixture struct {
	srv    *httptest.Server
	store  *memory.Store
	review domain.ReviewRef
	hood   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	hood := uuid.NewString()
	review := domain.ReviewRef{ID: uuid.NewString(), Type: domain.ReviewNeighborhood}
	st.AddReview(domain.Review{
		Ref:        review,
		EntityID:   hood,
		Status:     domain.StatusApproved,
		SubRatings: []int{4, 4, 4, 4, 4, 4},
		Counters:   domain.Counters{Helpful: 2},
	})

	s := httpserver.New(0)
	s.MountHandlers(&httpserver.Handlers{
		Votes:    app.NewVoteService(st),
		Ratings:  app.NewRatingService(st, nil, 0),
		Identity: fakeResolver{"tok-ana": "ana", "tok-bo": "bo"},
	})
	ts := httptest.NewServer(s.Mux())
	t.Cleanup(ts.Close)
	return &fixture{srv: ts, store: st, review: review, hood: hood}
}

func (f *fixture) do(t *testing.T, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res, out
}

func (f *fixture) votePath() string {
	return "/v1/reviews/" + string(f.review.Type) + "/" + f.review.ID + "/vote"
}

func TestCastVote_ToggleAndSwitch(t *testing.T) {
	f := newFixture(t)

	steps := []struct {
		body, vote, action string
		helpful, not       float64
	}{
		{`{"vote":"helpful"}`, "helpful", "cast", 3, 0},
		{`{"vote":"not_helpful"}`, "not_helpful", "switch", 2, 1},
		{`{"vote":"not_helpful"}`, "none", "retract", 2, 0},
	}
	for i, s := range steps {
		res, body := f.do(t, http.MethodPost, f.votePath(), "tok-ana", s.body)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("step %d: status %d body %v", i, res.StatusCode, body)
		}
		if body["vote"] != s.vote || body["action"] != s.action ||
			body["helpful_count"] != s.helpful || body["not_helpful_count"] != s.not {
			t.Fatalf("step %d: unexpected body %v", i, body)
		}
	}
	if got := f.store.Tally(f.review); got != (domain.Counters{}) {
		t.Fatalf("ledger should be empty, got %+v", got)
	}
}

func TestCastVote_Errors(t *testing.T) {
	f := newFixture(t)
	missing := "/v1/reviews/neighborhood/" + uuid.NewString() + "/vote"

	cases := []struct {
		name, path, token, body string
		status                  int
	}{
		{"anonymous", f.votePath(), "", `{"vote":"helpful"}`, http.StatusUnauthorized},
		{"bad token", f.votePath(), "nope", `{"vote":"helpful"}`, http.StatusUnauthorized},
		{"auth down", f.votePath(), "down", `{"vote":"helpful"}`, http.StatusServiceUnavailable},
		{"none vote", f.votePath(), "tok-ana", `{"vote":"none"}`, http.StatusBadRequest},
		{"unknown vote", f.votePath(), "tok-ana", `{"vote":"meh"}`, http.StatusBadRequest},
		{"bad json", f.votePath(), "tok-ana", `{"vote":`, http.StatusBadRequest},
		{"unknown field", f.votePath(), "tok-ana", `{"vote":"helpful","weight":5}`, http.StatusBadRequest},
		{"bad type", "/v1/reviews/hotel/" + f.review.ID + "/vote", "tok-ana", `{"vote":"helpful"}`, http.StatusBadRequest},
		{"not a uuid", "/v1/reviews/neighborhood/abc/vote", "tok-ana", `{"vote":"helpful"}`, http.StatusNotFound},
		{"missing review", missing, "tok-ana", `{"vote":"helpful"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		res, body := f.do(t, http.MethodPost, tc.path, tc.token, tc.body)
		if res.StatusCode != tc.status {
			t.Fatalf("%s: status %d, want %d (%v)", tc.name, res.StatusCode, tc.status, body)
		}
		if ct := res.Header.Get("Content-Type"); ct != "application/problem+json" {
			t.Fatalf("%s: content type %q", tc.name, ct)
		}
	}

	if got := f.store.Tally(f.review); got != (domain.Counters{}) {
		t.Fatalf("rejected casts must not write, got %+v", got)
	}
}

func TestCastVote_TransientIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.store.FailNextCommit(domain.ErrTransientStore)

	res, _ := f.do(t, http.MethodPost, f.votePath(), "tok-bo", `{"vote":"helpful"}`)
	if res.StatusCode != http.StatusServiceUnavailable || res.Header.Get("Retry-After") != "1" {
		t.Fatalf("status %d retry-after %q", res.StatusCode, res.Header.Get("Retry-After"))
	}

	res, body := f.do(t, http.MethodPost, f.votePath(), "tok-bo", `{"vote":"helpful"}`)
	if res.StatusCode != http.StatusOK || body["vote"] != "helpful" || body["helpful_count"] != float64(3) {
		t.Fatalf("retry: status %d body %v", res.StatusCode, body)
	}
}

func TestCurrentVote(t *testing.T) {
	f := newFixture(t)
	if res, _ := f.do(t, http.MethodPost, f.votePath(), "tok-ana", `{"vote":"not_helpful"}`); res.StatusCode != http.StatusOK {
		t.Fatalf("cast status %d", res.StatusCode)
	}

	res, body := f.do(t, http.MethodGet, f.votePath(), "", "")
	if res.StatusCode != http.StatusOK || body["vote"] != "none" || body["not_helpful_count"] != float64(1) {
		t.Fatalf("anonymous: status %d body %v", res.StatusCode, body)
	}

	res, body = f.do(t, http.MethodGet, f.votePath(), "tok-ana", "")
	if res.StatusCode != http.StatusOK || body["vote"] != "not_helpful" || body["helpful_count"] != float64(2) {
		t.Fatalf("signed in: status %d body %v", res.StatusCode, body)
	}
}

func TestEntityRating_ETag(t *testing.T) {
	f := newFixture(t)
	path := "/v1/neighborhoods/" + f.hood + "/rating"

	res, body := f.do(t, http.MethodGet, path, "", "")
	if res.StatusCode != http.StatusOK || body["average_rating"] != float64(4) || body["review_count"] != float64(1) {
		t.Fatalf("status %d body %v", res.StatusCode, body)
	}
	etag := res.Header.Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+path, nil)
	req.Header.Set("If-None-Match", etag)
	res2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional GET: %v", err)
	}
	res2.Body.Close()
	if res2.StatusCode != http.StatusNotModified {
		t.Fatalf("want 304, got %d", res2.StatusCode)
	}

	if res, _ := f.do(t, http.MethodGet, "/v1/buildings/"+uuid.NewString()+"/rating", "", ""); res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown building: %d", res.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	res, err := http.Get(f.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
}
