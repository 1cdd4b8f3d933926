package app

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"hoodrate/internal/domain"
)

// VoteService is the only writer of review_votes rows and of the two
// helpfulness counters on review rows.
type VoteService struct {
	store domain.VoteStore
}

func NewVoteService(s domain.VoteStore) *VoteService {
	return &VoteService{store: s}
}

// CastVote applies one click of the helpful / not helpful buttons. The prior
// state is read inside the same transaction that writes, so a retried call
// derives its delta from what is actually stored.
func (s *VoteService) CastVote(ctx context.Context, userID string, ref domain.ReviewRef, requested domain.Vote) (domain.VoteResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.VoteResult{}, domain.ErrNotAuthenticated
	}
	if !requested.Castable() {
		return domain.VoteResult{}, domain.ErrInvalidVote
	}
	if ref.ID == "" {
		return domain.VoteResult{}, domain.ErrReviewNotFound
	}

	key := domain.VoteKey{UserID: userID, Review: ref}
	var res domain.VoteResult
	err := s.store.Atomic(ctx, ref, func(u domain.VoteUnit) error {
		current, err := u.GetVote(ctx, key)
		if err != nil {
			return err
		}
		tr, err := domain.NextVote(current, requested)
		if err != nil {
			return err
		}

		switch tr.Op {
		case domain.OpRemove:
			err = u.RemoveVote(ctx, key)
		case domain.OpPut:
			err = u.PutVote(ctx, key, tr.To)
		}
		if err != nil {
			return err
		}

		counters, err := u.AdjustCounters(ctx, tr.Delta)
		if err != nil {
			return err
		}
		res = domain.VoteResult{Vote: tr.To, Previous: tr.From, Counters: counters}
		return nil
	})
	if err != nil {
		logCastError(err, userID, ref, requested)
		return domain.VoteResult{}, err
	}

	log.Debug().
		Str("review", ref.String()).
		Str("user_id", userID).
		Str("action", res.Action()).
		Str("vote", res.Vote.String()).
		Int("helpful", res.Counters.Helpful).
		Int("not_helpful", res.Counters.NotHelpful).
		Msg("vote cast")
	return res, nil
}

// CurrentVote reports the caller's vote for the initial render. An empty
// userID is an anonymous caller and always sees VoteNone.
func (s *VoteService) CurrentVote(ctx context.Context, userID string, ref domain.ReviewRef) (domain.VoteResult, error) {
	if ref.ID == "" {
		return domain.VoteResult{}, domain.ErrReviewNotFound
	}
	key := domain.VoteKey{UserID: strings.TrimSpace(userID), Review: ref}
	v, c, err := s.store.ReadVote(ctx, key)
	if err != nil {
		return domain.VoteResult{}, err
	}
	return domain.VoteResult{Vote: v, Previous: v, Counters: c}, nil
}

func logCastError(err error, userID string, ref domain.ReviewRef, requested domain.Vote) {
	switch {
	case errors.Is(err, domain.ErrConstraintViolation):
		// ledger and counters disagree; needs an operator, not a retry
		log.Error().Err(err).
			Str("review", ref.String()).
			Str("user_id", userID).
			Str("requested", requested.String()).
			Msg("vote ledger constraint violation")
	case errors.Is(err, domain.ErrTransientStore):
		log.Warn().Err(err).Str("review", ref.String()).Msg("vote cast failed, retryable")
	case errors.Is(err, domain.ErrReviewNotFound),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Debug().Err(err).Str("review", ref.String()).Msg("vote cast not applied")
	default:
		log.Error().Err(err).Str("review", ref.String()).Msg("vote cast failed")
	}
}
