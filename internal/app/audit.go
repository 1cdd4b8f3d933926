package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"hoodrate/internal/domain"
)

type AuditService struct {
	finder domain.DriftFinder
}

func NewAuditService(f domain.DriftFinder) *AuditService {
	return &AuditService{finder: f}
}

// Audit compares stored counters with ledger tallies for the given review
// types. Every divergence is logged as a constraint violation; none are repaired.
func (a *AuditService) Audit(ctx context.Context, types ...domain.ReviewType) ([]domain.Drift, error) {
	if len(types) == 0 {
		types = domain.ReviewTypes
	}
	var all []domain.Drift
	for _, t := range types {
		drift, err := a.finder.CounterDrift(ctx, t)
		if err != nil {
			return all, err
		}
		for _, d := range drift {
			log.Error().
				Err(domain.ErrConstraintViolation).
				Str("review", d.Review.String()).
				Int("stored_helpful", d.Stored.Helpful).
				Int("tallied_helpful", d.Tallied.Helpful).
				Int("stored_not_helpful", d.Stored.NotHelpful).
				Int("tallied_not_helpful", d.Tallied.NotHelpful).
				Msg("counter divergence")
		}
		all = append(all, drift...)
	}
	return all, nil
}
