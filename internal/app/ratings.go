package app

import (
	"context"
	"fmt"
	"time"

	"hoodrate/internal/domain"
)

type RatingService struct {
	repo     domain.RatingRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

// NewRatingService takes an optional cache; nil disables caching.
func NewRatingService(r domain.RatingRepository, c domain.Cache, ttl time.Duration) *RatingService {
	return &RatingService{repo: r, cache: c, cacheTTL: ttl}
}

func ratingKey(t domain.ReviewType, entityID string) string {
	return fmt.Sprintf("rating:%s:%s", t, entityID)
}

// EntityRating computes the summary from the approved reviews of one entity,
// serving from cache when possible.
func (s *RatingService) EntityRating(ctx context.Context, t domain.ReviewType, entityID string) (domain.RatingSummary, error) {
	key := ratingKey(t, entityID)
	var sum domain.RatingSummary
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &sum); ok {
			return sum, nil
		}
	}
	sum, err := s.summarize(ctx, t, entityID)
	if err != nil {
		return domain.RatingSummary{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, sum, s.cacheTTL)
	}
	return sum, nil
}

// Recompute rebuilds and persists the summary of one entity and drops the
// cached copy so the next read sees it.
func (s *RatingService) Recompute(ctx context.Context, t domain.ReviewType, entityID string) (domain.RatingSummary, error) {
	sum, err := s.summarize(ctx, t, entityID)
	if err != nil {
		return domain.RatingSummary{}, err
	}
	if err := s.repo.SaveRatingSummary(ctx, sum); err != nil {
		return domain.RatingSummary{}, fmt.Errorf("save rating for %s %s: %w", t, entityID, err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, ratingKey(t, entityID))
	}
	return sum, nil
}

func (s *RatingService) EntityIDs(ctx context.Context, t domain.ReviewType) ([]string, error) {
	return s.repo.ListEntityIDs(ctx, t)
}

func (s *RatingService) summarize(ctx context.Context, t domain.ReviewType, entityID string) (domain.RatingSummary, error) {
	rs, err := s.repo.ListRatedReviews(ctx, t, entityID)
	if err != nil {
		return domain.RatingSummary{}, err
	}
	return domain.Summarize(t, entityID, rs), nil
}
