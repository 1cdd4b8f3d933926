package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hoodrate/internal/domain"
	"hoodrate/internal/storage/schema"
)

// unit is the ledger view of one open transaction holding the review row lock.
type unit struct {
	tx     *sql.Tx
	ref    domain.ReviewRef
	tb     schema.Tables
	locked domain.Counters
}

func (u *unit) check(key domain.VoteKey) error {
	if key.Review != u.ref {
		return fmt.Errorf("vote key %s outside locked review %s", key.Review, u.ref)
	}
	return nil
}

func (u *unit) GetVote(ctx context.Context, key domain.VoteKey) (domain.Vote, error) {
	if err := u.check(key); err != nil {
		return domain.VoteNone, err
	}
	var kind sql.NullString
	err := u.tx.QueryRowContext(ctx, getVoteSQL, key.UserID, key.Review.ID, string(key.Review.Type)).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.VoteNone, nil
	}
	if err != nil {
		return domain.VoteNone, classify(err)
	}
	return schema.StoredVote(kind)
}

func (u *unit) PutVote(ctx context.Context, key domain.VoteKey, v domain.Vote) error {
	if err := u.check(key); err != nil {
		return err
	}
	if !v.Castable() {
		return fmt.Errorf("%w: put %s", domain.ErrInvalidVote, v)
	}
	_, err := u.tx.ExecContext(ctx, putVoteSQL, key.UserID, key.Review.ID, string(key.Review.Type), v.String())
	return classify(err)
}

func (u *unit) RemoveVote(ctx context.Context, key domain.VoteKey) error {
	if err := u.check(key); err != nil {
		return err
	}
	_, err := u.tx.ExecContext(ctx, removeVoteSQL, key.UserID, key.Review.ID, string(key.Review.Type))
	return classify(err)
}

func (u *unit) AdjustCounters(ctx context.Context, d domain.Delta) (domain.Counters, error) {
	if !d.IsZero() {
		res, err := u.tx.ExecContext(ctx, fmt.Sprintf(adjustCountersSQL, u.tb.Reviews),
			d.Helpful, d.NotHelpful, u.ref.ID, d.Helpful, d.NotHelpful,
		)
		if err != nil {
			return domain.Counters{}, classify(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return domain.Counters{}, classify(err)
		}
		if n == 0 {
			return domain.Counters{}, fmt.Errorf("%w: %s counters %+v cannot take delta %+v",
				domain.ErrConstraintViolation, u.ref, u.locked, d)
		}
	}

	var c domain.Counters
	if err := u.tx.QueryRowContext(ctx, fmt.Sprintf(countersSQL, u.tb.Reviews), u.ref.ID).Scan(&c.Helpful, &c.NotHelpful); err != nil {
		return domain.Counters{}, classify(err)
	}
	return c, nil
}
