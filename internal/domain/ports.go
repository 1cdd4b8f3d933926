package domain

import (
	"context"
	"time"
)

// VoteLedger is the authoritative per (user, review) vote record.
type VoteLedger interface {
	GetVote(ctx context.Context, key VoteKey) (Vote, error)
	PutVote(ctx context.Context, key VoteKey, v Vote) error
	RemoveVote(ctx context.Context, key VoteKey) error
}

// VoteUnit is a ledger bound to one open transaction on one locked review.
type VoteUnit interface {
	VoteLedger
	// AdjustCounters applies d relative to the stored values and returns the
	// stored result. A result below zero is rejected with ErrConstraintViolation.
	AdjustCounters(ctx context.Context, d Delta) (Counters, error)
}

type VoteStore interface {
	// Atomic locks the review row and runs fn inside one transaction. Nothing
	// fn writes is visible unless fn returns nil and the commit succeeds.
	// Returns ErrReviewNotFound when the review does not exist.
	Atomic(ctx context.Context, ref ReviewRef, fn func(u VoteUnit) error) error

	// ReadVote returns the user's vote (VoteNone for an empty userID) and the
	// review counters in one consistent read, without locking.
	ReadVote(ctx context.Context, key VoteKey) (Vote, Counters, error)
}

// Drift is a review whose stored counters disagree with its ledger tally.
type Drift struct {
	Review  ReviewRef
	Stored  Counters
	Tallied Counters
}

type DriftFinder interface {
	CounterDrift(ctx context.Context, t ReviewType) ([]Drift, error)
}

type RatingRepository interface {
	ListEntityIDs(ctx context.Context, t ReviewType) ([]string, error)
	// ListRatedReviews returns the approved reviews of one entity, or
	// ErrEntityNotFound when the entity does not exist.
	ListRatedReviews(ctx context.Context, t ReviewType, entityID string) ([]RatedReview, error)
	SaveRatingSummary(ctx context.Context, s RatingSummary) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// IdentityResolver turns a bearer token into the caller's opaque user id.
// Unknown, expired or malformed tokens yield ErrNotAuthenticated.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}
