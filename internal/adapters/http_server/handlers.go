package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hoodrate/internal/adapters/observability"
	"hoodrate/internal/app"
	"hoodrate/internal/domain"
)

const maxVoteBody = 1 << 10

type Handlers struct {
	Votes    *app.VoteService
	Ratings  *app.RatingService
	Identity domain.IdentityResolver
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type voteRequest struct {
	Vote string `json:"vote"`
}

type voteResponse struct {
	ReviewID        string      `json:"review_id"`
	ReviewType      string      `json:"review_type"`
	Vote            domain.Vote `json:"vote"`
	Previous        domain.Vote `json:"previous"`
	Action          string      `json:"action,omitempty"`
	HelpfulCount    int         `json:"helpful_count"`
	NotHelpfulCount int         `json:"not_helpful_count"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Group(func(r chi.Router) {
		r.Use(Authenticate(h.Identity))
		r.Post("/v1/reviews/{type}/{id}/vote", h.castVote)
		r.Get("/v1/reviews/{type}/{id}/vote", h.currentVote)
	})
	s.mux.Get("/v1/neighborhoods/{id}/rating", h.entityRating(domain.ReviewNeighborhood))
	s.mux.Get("/v1/buildings/{id}/rating", h.entityRating(domain.ReviewBuilding))
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "sign in to vote")
	case errors.Is(err, domain.ErrReviewNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "review not found")
	case errors.Is(err, domain.ErrEntityNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "entity not found")
	case errors.Is(err, domain.ErrInvalidVote):
		writeProblem(w, http.StatusBadRequest, "Invalid vote", `vote must be "helpful" or "not_helpful"`)
	case errors.Is(err, domain.ErrInvalidReviewType):
		writeProblem(w, http.StatusBadRequest, "Invalid review type", `type must be "neighborhood" or "building"`)
	case errors.Is(err, domain.ErrTransientStore),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "try again")
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// reviewRef reads {type}/{id}. Ids that are not uuids cannot name a review.
func reviewRef(r *http.Request) (domain.ReviewRef, error) {
	t, err := domain.ParseReviewType(chi.URLParam(r, "type"))
	if err != nil {
		return domain.ReviewRef{}, err
	}
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return domain.ReviewRef{}, domain.ErrReviewNotFound
	}
	return domain.ReviewRef{ID: id, Type: t}, nil
}

func toVoteResponse(ref domain.ReviewRef, res domain.VoteResult, action string) voteResponse {
	return voteResponse{
		ReviewID:        ref.ID,
		ReviewType:      string(ref.Type),
		Vote:            res.Vote,
		Previous:        res.Previous,
		Action:          action,
		HelpfulCount:    res.Counters.Helpful,
		NotHelpfulCount: res.Counters.NotHelpful,
	}
}

func (h *Handlers) castVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := UserID(ctx)
	if uid == "" {
		observability.ObserveVoteError(domain.ErrorKind(domain.ErrNotAuthenticated))
		writeError(w, domain.ErrNotAuthenticated)
		return
	}
	ref, err := reviewRef(r)
	if err != nil {
		observability.ObserveVoteError(domain.ErrorKind(err))
		writeError(w, err)
		return
	}

	var req voteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxVoteBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		observability.ObserveVoteError("invalid")
		writeProblem(w, http.StatusBadRequest, "Invalid body", `expected {"vote":"helpful"|"not_helpful"}`)
		return
	}
	v, err := domain.ParseVote(req.Vote)
	if err == nil && !v.Castable() {
		err = domain.ErrInvalidVote
	}
	if err != nil {
		observability.ObserveVoteError(domain.ErrorKind(err))
		writeError(w, err)
		return
	}

	res, err := h.Votes.CastVote(ctx, uid, ref, v)
	if err != nil {
		observability.ObserveVoteError(domain.ErrorKind(err))
		writeError(w, err)
		return
	}
	observability.ObserveVote(string(ref.Type), res.Action())
	writeJSON(w, http.StatusOK, toVoteResponse(ref, res, res.Action()))
}

func (h *Handlers) currentVote(w http.ResponseWriter, r *http.Request) {
	ref, err := reviewRef(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.Votes.CurrentVote(r.Context(), UserID(r.Context()), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoteResponse(ref, res, ""))
}

func (h *Handlers) entityRating(t domain.ReviewType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := uuid.Parse(id); err != nil {
			writeError(w, domain.ErrEntityNotFound)
			return
		}
		sum, err := h.Ratings.EntityRating(r.Context(), t, id)
		if err != nil {
			writeError(w, err)
			return
		}

		etag, body := calcETagAndBody(sum)
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
			w.Header().Set("ETag", etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			log.Error().Err(err).Msg("failed to write rating body")
		}
	}
}
