package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"hoodrate/internal/app"
	"hoodrate/internal/domain"
	"hoodrate/internal/storage/memory"
)

// cancellingRepo cancels the run on the first recompute.
type cancellingRepo struct {
	cancel context.CancelFunc
	lists  atomic.Int64
}

func (r *cancellingRepo) ListEntityIDs(_ context.Context, _ domain.ReviewType) ([]string, error) {
	r.lists.Add(1)
	return []string{"a", "b", "c"}, nil
}

func (r *cancellingRepo) ListRatedReviews(ctx context.Context, _ domain.ReviewType, _ string) ([]domain.RatedReview, error) {
	r.cancel()
	return nil, ctx.Err()
}

func (r *cancellingRepo) SaveRatingSummary(context.Context, domain.RatingSummary) error { return nil }

func TestRecomputeAll_StopsAllTypesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := &cancellingRepo{cancel: cancel}

	done, failed, err := recomputeAll(ctx, app.NewRatingService(repo, nil, 0), 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if done != 0 || failed != 1 {
		t.Fatalf("done=%d failed=%d, want 0 and 1", done, failed)
	}
	if n := repo.lists.Load(); n != 1 {
		t.Fatalf("listed %d review types after cancel, want 1", n)
	}
}

func TestRecomputeAll_EveryEntity(t *testing.T) {
	st := memory.New()
	five := []int{5, 5, 5, 5, 5, 5}
	st.AddReview(domain.Review{Ref: domain.ReviewRef{ID: "r1", Type: domain.ReviewNeighborhood}, EntityID: "n1", Status: domain.StatusApproved, SubRatings: five})
	st.AddReview(domain.Review{Ref: domain.ReviewRef{ID: "r2", Type: domain.ReviewNeighborhood}, EntityID: "n2", Status: domain.StatusApproved, SubRatings: five})
	st.AddReview(domain.Review{Ref: domain.ReviewRef{ID: "r3", Type: domain.ReviewBuilding}, EntityID: "b1", Status: domain.StatusApproved, SubRatings: five})

	done, failed, err := recomputeAll(context.Background(), app.NewRatingService(st, nil, 0), 2)
	if err != nil || done != 3 || failed != 0 {
		t.Fatalf("done=%d failed=%d err=%v", done, failed, err)
	}
	for _, e := range []struct {
		t  domain.ReviewType
		id string
	}{{domain.ReviewNeighborhood, "n1"}, {domain.ReviewNeighborhood, "n2"}, {domain.ReviewBuilding, "b1"}} {
		if sum, ok := st.Summary(e.t, e.id); !ok || sum.ReviewCount != 1 {
			t.Fatalf("%s %s summary = %+v, %v", e.t, e.id, sum, ok)
		}
	}
}
