package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hoodrate/internal/domain"
	"hoodrate/internal/storage/schema"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// Atomic locks the review row first, so every cast on the same review runs
// one after another inside MySQL while other reviews proceed in parallel.
func (r *Repo) Atomic(ctx context.Context, ref domain.ReviewRef, fn func(u domain.VoteUnit) error) (err error) {
	tb, err := schema.For(ref.Type)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var c domain.Counters
	if err = tx.QueryRowContext(ctx, fmt.Sprintf(lockReviewSQL, tb.Reviews), ref.ID).Scan(&c.Helpful, &c.NotHelpful); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrReviewNotFound
		}
		return classify(err)
	}

	if err = fn(&unit{tx: tx, ref: ref, tb: tb, locked: c}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func (r *Repo) ReadVote(ctx context.Context, key domain.VoteKey) (domain.Vote, domain.Counters, error) {
	tb, err := schema.For(key.Review.Type)
	if err != nil {
		return domain.VoteNone, domain.Counters{}, err
	}
	var (
		c    domain.Counters
		kind sql.NullString
	)
	err = r.db.QueryRowContext(ctx, fmt.Sprintf(readVoteSQL, tb.Reviews),
		string(key.Review.Type), key.UserID, key.Review.ID,
	).Scan(&c.Helpful, &c.NotHelpful, &kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.VoteNone, domain.Counters{}, domain.ErrReviewNotFound
		}
		return domain.VoteNone, domain.Counters{}, classify(err)
	}
	v, err := schema.StoredVote(kind)
	return v, c, err
}

func (r *Repo) CounterDrift(ctx context.Context, t domain.ReviewType) ([]domain.Drift, error) {
	tb, err := schema.For(t)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(counterDriftSQL, tb.Reviews), string(t))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []domain.Drift
	for rows.Next() {
		d := domain.Drift{Review: domain.ReviewRef{Type: t}}
		if err := rows.Scan(&d.Review.ID,
			&d.Stored.Helpful, &d.Stored.NotHelpful,
			&d.Tallied.Helpful, &d.Tallied.NotHelpful,
		); err != nil {
			return nil, classify(err)
		}
		out = append(out, d)
	}
	return out, classify(rows.Err())
}

// ---- ratings ----

func (r *Repo) ListEntityIDs(ctx context.Context, t domain.ReviewType) ([]string, error) {
	tb, err := schema.For(t)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(listEntitiesSQL, tb.Entities))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify(err)
		}
		ids = append(ids, id)
	}
	return ids, classify(rows.Err())
}

func (r *Repo) ListRatedReviews(ctx context.Context, t domain.ReviewType, entityID string) ([]domain.RatedReview, error) {
	tb, err := schema.For(t)
	if err != nil {
		return nil, err
	}
	var one int
	if err := r.db.QueryRowContext(ctx, fmt.Sprintf(entityExistsSQL, tb.Entities), entityID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, classify(err)
	}

	rows, err := r.db.QueryContext(ctx, listRatedReviewsSQL(tb), entityID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []domain.RatedReview
	for rows.Next() {
		rv, err := schema.ScanRated(rows, len(tb.Ratings))
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, rv)
	}
	return out, classify(rows.Err())
}

func (r *Repo) SaveRatingSummary(ctx context.Context, s domain.RatingSummary) error {
	tb, err := schema.For(s.Type)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(saveSummarySQL, tb.Entities),
		s.AverageRating, s.ReviewCount, s.LowRatingCount, s.EntityID,
	)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// unchanged rows report 0 as well; confirm the entity exists
		var one int
		if err := r.db.QueryRowContext(ctx, fmt.Sprintf(entityExistsSQL, tb.Entities), s.EntityID).Scan(&one); errors.Is(err, sql.ErrNoRows) {
			return domain.ErrEntityNotFound
		}
	}
	return nil
}
