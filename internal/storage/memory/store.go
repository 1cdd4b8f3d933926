// Package memory is a single-process store used by unit tests and the dev
// "memory" driver. One mutex guards all state; there is no network round trip.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"hoodrate/internal/domain"
)

type review struct {
	entityID   string
	status     domain.ReviewStatus
	subRatings []int
	counters   domain.Counters
}

type Store struct {
	mu       sync.Mutex
	reviews  map[domain.ReviewRef]*review
	votes    map[domain.VoteKey]domain.Vote
	entities map[domain.ReviewType]map[string]domain.RatingSummary
	failNext error
}

func New() *Store {
	return &Store{
		reviews: map[domain.ReviewRef]*review{},
		votes:   map[domain.VoteKey]domain.Vote{},
		entities: map[domain.ReviewType]map[string]domain.RatingSummary{
			domain.ReviewNeighborhood: {},
			domain.ReviewBuilding:     {},
		},
	}
}

// AddEntity registers a neighborhood or building.
func (s *Store) AddEntity(t domain.ReviewType, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureEntity(t, id)
}

// ensureEntity expects s.mu held.
func (s *Store) ensureEntity(t domain.ReviewType, id string) {
	byID, ok := s.entities[t]
	if !ok {
		byID = map[string]domain.RatingSummary{}
		s.entities[t] = byID
	}
	if _, ok := byID[id]; !ok {
		byID[id] = domain.RatingSummary{Type: t, EntityID: id}
	}
}

// AddReview inserts or replaces a review. Counters are taken as given so tests
// can seed a diverged row.
func (s *Store) AddReview(r domain.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[r.Ref] = &review{
		entityID:   r.EntityID,
		status:     r.Status,
		subRatings: append([]int(nil), r.SubRatings...),
		counters:   r.Counters,
	}
	if r.EntityID != "" {
		s.ensureEntity(r.Ref.Type, r.EntityID)
	}
}

// DeleteReview removes the review and its ledger rows.
func (s *Store) DeleteReview(ref domain.ReviewRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reviews, ref)
	for k := range s.votes {
		if k.Review == ref {
			delete(s.votes, k)
		}
	}
}

// FailNextCommit makes the next Atomic call discard its writes and return err.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// Tally counts ledger rows per kind for one review.
func (s *Store) Tally(ref domain.ReviewRef) domain.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tallyLocked(ref)
}

func (s *Store) tallyLocked(ref domain.ReviewRef) domain.Counters {
	var c domain.Counters
	for k, v := range s.votes {
		if k.Review != ref {
			continue
		}
		switch v {
		case domain.VoteHelpful:
			c.Helpful++
		case domain.VoteNotHelpful:
			c.NotHelpful++
		}
	}
	return c
}

// Summary returns the last saved rating summary for an entity.
func (s *Store) Summary(t domain.ReviewType, id string) (domain.RatingSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.entities[t][id]
	return sum, ok
}

// ---- domain.VoteStore ----

func (s *Store) Atomic(ctx context.Context, ref domain.ReviewRef, fn func(u domain.VoteUnit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.reviews[ref]
	if !ok {
		return domain.ErrReviewNotFound
	}
	u := &unit{store: s, ref: ref, counters: row.counters, writes: map[domain.VoteKey]domain.Vote{}}
	if err := fn(u); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}

	// commit
	for k, v := range u.writes {
		if v == domain.VoteNone {
			delete(s.votes, k)
			continue
		}
		s.votes[k] = v
	}
	row.counters = u.counters
	return nil
}

func (s *Store) ReadVote(ctx context.Context, key domain.VoteKey) (domain.Vote, domain.Counters, error) {
	if err := ctx.Err(); err != nil {
		return domain.VoteNone, domain.Counters{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.reviews[key.Review]
	if !ok {
		return domain.VoteNone, domain.Counters{}, domain.ErrReviewNotFound
	}
	if key.UserID == "" {
		return domain.VoteNone, row.counters, nil
	}
	return s.votes[key], row.counters, nil
}

// unit stages writes until Atomic commits them.
type unit struct {
	store    *Store
	ref      domain.ReviewRef
	counters domain.Counters
	writes   map[domain.VoteKey]domain.Vote
}

func (u *unit) check(key domain.VoteKey) error {
	if key.Review != u.ref {
		return fmt.Errorf("vote key %s outside locked review %s", key.Review, u.ref)
	}
	return nil
}

func (u *unit) GetVote(_ context.Context, key domain.VoteKey) (domain.Vote, error) {
	if err := u.check(key); err != nil {
		return domain.VoteNone, err
	}
	if v, ok := u.writes[key]; ok {
		return v, nil
	}
	return u.store.votes[key], nil
}

func (u *unit) PutVote(_ context.Context, key domain.VoteKey, v domain.Vote) error {
	if err := u.check(key); err != nil {
		return err
	}
	if !v.Castable() {
		return fmt.Errorf("%w: put %s", domain.ErrInvalidVote, v)
	}
	u.writes[key] = v
	return nil
}

func (u *unit) RemoveVote(_ context.Context, key domain.VoteKey) error {
	if err := u.check(key); err != nil {
		return err
	}
	u.writes[key] = domain.VoteNone
	return nil
}

func (u *unit) AdjustCounters(_ context.Context, d domain.Delta) (domain.Counters, error) {
	next := u.counters.Apply(d)
	if next.Negative() {
		return u.counters, fmt.Errorf("%w: %s counters would become %+v", domain.ErrConstraintViolation, u.ref, next)
	}
	u.counters = next
	return next, nil
}

// ---- domain.DriftFinder ----

func (s *Store) CounterDrift(ctx context.Context, t domain.ReviewType) ([]domain.Drift, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Drift
	for ref, row := range s.reviews {
		if ref.Type != t {
			continue
		}
		if tally := s.tallyLocked(ref); tally != row.counters {
			out = append(out, domain.Drift{Review: ref, Stored: row.counters, Tallied: tally})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Review.ID < out[j].Review.ID })
	return out, nil
}

// ---- domain.RatingRepository ----

func (s *Store) ListEntityIDs(ctx context.Context, t domain.ReviewType) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entities[t]))
	for id := range s.entities[t] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) ListRatedReviews(ctx context.Context, t domain.ReviewType, entityID string) ([]domain.RatedReview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[t][entityID]; !ok {
		return nil, domain.ErrEntityNotFound
	}
	var out []domain.RatedReview
	for ref, row := range s.reviews {
		if ref.Type != t || row.entityID != entityID || row.status != domain.StatusApproved {
			continue
		}
		out = append(out, domain.RatedReview{
			ReviewID:   ref.ID,
			Status:     row.status,
			SubRatings: append([]int(nil), row.subRatings...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReviewID < out[j].ReviewID })
	return out, nil
}

func (s *Store) SaveRatingSummary(ctx context.Context, sum domain.RatingSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[sum.Type][sum.EntityID]; !ok {
		return domain.ErrEntityNotFound
	}
	s.entities[sum.Type][sum.EntityID] = sum
	return nil
}
