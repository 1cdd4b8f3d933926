package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"hoodrate/internal/app"
	"hoodrate/internal/domain"
	"hoodrate/internal/storage/memory"
)

var review = domain.ReviewRef{ID: "5b0c6a0e-8f1e-4c36-9d57-2f0b1e7b9a10", Type: domain.ReviewBuilding}

func newVotes(t *testing.T) (*app.VoteService, *memory.Store) {
	t.Helper()
	st := memory.New()
	st.AddReview(domain.Review{Ref: review, EntityID: "b1", Status: domain.StatusApproved, SubRatings: []int{4, 4, 4, 4, 4, 4}})
	return app.NewVoteService(st), st
}

func mustCast(t *testing.T, svc *app.VoteService, user string, v domain.Vote) domain.VoteResult {
	t.Helper()
	res, err := svc.CastVote(context.Background(), user, review, v)
	if err != nil {
		t.Fatalf("CastVote(%s, %s): %v", user, v, err)
	}
	return res
}

func TestCastVote_ToggleOffAndBack(t *testing.T) {
	svc, _ := newVotes(t)

	r1 := mustCast(t, svc, "u1", domain.VoteHelpful)
	if r1.Vote != domain.VoteHelpful || r1.Counters != (domain.Counters{Helpful: 1}) || r1.Action() != "cast" {
		t.Fatalf("first cast: %+v", r1)
	}
	r2 := mustCast(t, svc, "u1", domain.VoteHelpful)
	if r2.Vote != domain.VoteNone || r2.Counters != (domain.Counters{}) || r2.Action() != "retract" {
		t.Fatalf("second cast should toggle off: %+v", r2)
	}
	r3 := mustCast(t, svc, "u1", domain.VoteHelpful)
	if r3.Vote != domain.VoteHelpful || r3.Counters != (domain.Counters{Helpful: 1}) {
		t.Fatalf("third cast should return to helpful: %+v", r3)
	}
}

func TestCastVote_Switch(t *testing.T) {
	svc, st := newVotes(t)
	mustCast(t, svc, "other", domain.VoteHelpful)
	before := mustCast(t, svc, "u1", domain.VoteHelpful)

	after := mustCast(t, svc, "u1", domain.VoteNotHelpful)
	if after.Vote != domain.VoteNotHelpful || after.Action() != "switch" {
		t.Fatalf("unexpected switch result: %+v", after)
	}
	if after.Counters.Helpful != before.Counters.Helpful-1 || after.Counters.NotHelpful != before.Counters.NotHelpful+1 {
		t.Fatalf("switch delta wrong: before %+v after %+v", before.Counters, after.Counters)
	}
	if tally := st.Tally(review); tally != after.Counters {
		t.Fatalf("counters %+v != tally %+v", after.Counters, tally)
	}
}

func TestCastVote_ConcurrentFirstCasts(t *testing.T) {
	svc, st := newVotes(t)

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.CastVote(context.Background(), fmt.Sprintf("user-%d", i), review, domain.VoteHelpful); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("cast failed: %v", err)
	}

	res, err := svc.CurrentVote(context.Background(), "", review)
	if err != nil {
		t.Fatalf("CurrentVote: %v", err)
	}
	if res.Counters.Helpful != 100 || res.Counters.NotHelpful != 0 {
		t.Fatalf("lost updates: %+v", res.Counters)
	}
	if tally := st.Tally(review); tally != res.Counters {
		t.Fatalf("counters %+v != tally %+v", res.Counters, tally)
	}
}

func TestCastVote_SameUserConcurrentClicks(t *testing.T) {
	for _, n := range []int{51, 50} {
		svc, st := newVotes(t)

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := svc.CastVote(context.Background(), "double-click", review, domain.VoteHelpful); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("n=%d: cast failed: %v", n, err)
		}

		res, err := svc.CurrentVote(context.Background(), "double-click", review)
		if err != nil {
			t.Fatalf("n=%d: CurrentVote: %v", n, err)
		}
		want, helpful := domain.VoteNone, 0
		if n%2 == 1 {
			want, helpful = domain.VoteHelpful, 1
		}
		if res.Vote != want || res.Counters != (domain.Counters{Helpful: helpful}) {
			t.Fatalf("n=%d: got %s %+v, want %s with %d helpful", n, res.Vote, res.Counters, want, helpful)
		}
		if tally := st.Tally(review); tally != res.Counters {
			t.Fatalf("n=%d: counters %+v != tally %+v", n, res.Counters, tally)
		}
	}
}

func TestCastVote_RandomReplayMatchesLedger(t *testing.T) {
	svc, st := newVotes(t)
	const users, castsPerUser = 25, 40

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(int64(u)))
			kinds := []domain.Vote{domain.VoteHelpful, domain.VoteNotHelpful}
			for i := 0; i < castsPerUser; i++ {
				_, _ = svc.CastVote(context.Background(), fmt.Sprintf("u%d", u), review, kinds[rnd.Intn(2)])
			}
		}(u)
	}
	wg.Wait()

	res, err := svc.CurrentVote(context.Background(), "", review)
	if err != nil {
		t.Fatalf("CurrentVote: %v", err)
	}
	if tally := st.Tally(review); tally != res.Counters {
		t.Fatalf("counters %+v != tally %+v", res.Counters, tally)
	}
	drift, _ := app.NewAuditService(st).Audit(context.Background())
	if len(drift) != 0 {
		t.Fatalf("unexpected drift: %+v", drift)
	}
}

func TestCastVote_Unauthenticated(t *testing.T) {
	svc, st := newVotes(t)
	for _, user := range []string{"", "   "} {
		if _, err := svc.CastVote(context.Background(), user, review, domain.VoteHelpful); !errors.Is(err, domain.ErrNotAuthenticated) {
			t.Fatalf("want ErrNotAuthenticated, got %v", err)
		}
	}
	if tally := st.Tally(review); tally != (domain.Counters{}) {
		t.Fatalf("ledger changed: %+v", tally)
	}
	res, _ := svc.CurrentVote(context.Background(), "", review)
	if res.Counters != (domain.Counters{}) {
		t.Fatalf("counters changed: %+v", res.Counters)
	}
}

func TestCastVote_InvalidAndMissing(t *testing.T) {
	svc, _ := newVotes(t)
	if _, err := svc.CastVote(context.Background(), "u1", review, domain.VoteNone); !errors.Is(err, domain.ErrInvalidVote) {
		t.Fatalf("want ErrInvalidVote, got %v", err)
	}
	gone := domain.ReviewRef{ID: "nope", Type: domain.ReviewBuilding}
	if _, err := svc.CastVote(context.Background(), "u1", gone, domain.VoteHelpful); !errors.Is(err, domain.ErrReviewNotFound) {
		t.Fatalf("want ErrReviewNotFound, got %v", err)
	}
	if _, err := svc.CurrentVote(context.Background(), "u1", gone); !errors.Is(err, domain.ErrReviewNotFound) {
		t.Fatalf("want ErrReviewNotFound, got %v", err)
	}
}

func TestCastVote_RetryAfterTransientFailure(t *testing.T) {
	svc, st := newVotes(t)
	st.FailNextCommit(fmt.Errorf("%w: deadlock", domain.ErrTransientStore))

	if _, err := svc.CastVote(context.Background(), "u1", review, domain.VoteHelpful); !errors.Is(err, domain.ErrTransientStore) {
		t.Fatalf("want ErrTransientStore, got %v", err)
	}
	if tally := st.Tally(review); tally != (domain.Counters{}) {
		t.Fatalf("failed cast leaked into ledger: %+v", tally)
	}

	// caller retries the same intent
	res := mustCast(t, svc, "u1", domain.VoteHelpful)
	if res.Vote != domain.VoteHelpful || res.Counters.Helpful != 1 {
		t.Fatalf("retry result: %+v", res)
	}
}

func TestCastVote_CancelledContext(t *testing.T) {
	svc, st := newVotes(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.CastVote(ctx, "u1", review, domain.VoteHelpful); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if tally := st.Tally(review); tally != (domain.Counters{}) {
		t.Fatalf("cancelled cast applied: %+v", tally)
	}
}

func TestCastVote_DivergedCountersRollBack(t *testing.T) {
	svc, st := newVotes(t)
	ctx := context.Background()
	key := domain.VoteKey{UserID: "u1", Review: review}

	// ledger row written without its counter, simulating an out-of-band writer
	if err := st.Atomic(ctx, review, func(u domain.VoteUnit) error {
		return u.PutVote(ctx, key, domain.VoteHelpful)
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := svc.CastVote(ctx, "u1", review, domain.VoteHelpful); !errors.Is(err, domain.ErrConstraintViolation) {
		t.Fatalf("want ErrConstraintViolation, got %v", err)
	}
	v, c, _ := st.ReadVote(ctx, key)
	if v != domain.VoteHelpful || c != (domain.Counters{}) {
		t.Fatalf("failed cast changed state: %v %+v", v, c)
	}
}

func TestCurrentVote(t *testing.T) {
	svc, _ := newVotes(t)
	mustCast(t, svc, "u1", domain.VoteNotHelpful)

	mine, err := svc.CurrentVote(context.Background(), "u1", review)
	if err != nil || mine.Vote != domain.VoteNotHelpful || mine.Counters.NotHelpful != 1 {
		t.Fatalf("own vote: %+v %v", mine, err)
	}
	anon, err := svc.CurrentVote(context.Background(), "", review)
	if err != nil || anon.Vote != domain.VoteNone || anon.Counters.NotHelpful != 1 {
		t.Fatalf("anonymous vote: %+v %v", anon, err)
	}
}
