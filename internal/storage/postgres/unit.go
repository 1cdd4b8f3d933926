package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hoodrate/internal/domain"
	"hoodrate/internal/storage/schema"
)

type unit struct {
	tx     *gorm.DB
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

func (u *unit) where(ctx context.Context, key domain.VoteKey) *gorm.DB {
	return u.tx.WithContext(ctx).
		Where("user_id = ? AND review_id = ? AND review_type = ?", key.UserID, key.Review.ID, string(key.Review.Type))
}

func (u *unit) GetVote(ctx context.Context, key domain.VoteKey) (domain.Vote, error) {
	if err := u.check(key); err != nil {
		return domain.VoteNone, err
	}
	var row voteRow
	err := u.where(ctx, key).Clauses(clause.Locking{Strength: "UPDATE"}).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.VoteNone, nil
	}
	if err != nil {
		return domain.VoteNone, classify(err)
	}
	v, err := domain.ParseVote(row.VoteType)
	if err != nil || v == domain.VoteNone {
		return domain.VoteNone, fmt.Errorf("%w: vote_type %q", domain.ErrConstraintViolation, row.VoteType)
	}
	return v, nil
}

func (u *unit) PutVote(ctx context.Context, key domain.VoteKey, v domain.Vote) error {
	if err := u.check(key); err != nil {
		return err
	}
	if !v.Castable() {
		return fmt.Errorf("%w: put %s", domain.ErrInvalidVote, v)
	}
	row := voteRow{
		UserID:     key.UserID,
		ReviewID:   key.Review.ID,
		ReviewType: string(key.Review.Type),
		VoteType:   v.String(),
	}
	err := u.tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "review_id"}, {Name: "review_type"}},
		DoUpdates: clause.Assignments(map[string]any{
			"vote_type":  row.VoteType,
			"updated_at": gorm.Expr("now()"),
		}),
	}).Create(&row).Error
	return classify(err)
}

func (u *unit) RemoveVote(ctx context.Context, key domain.VoteKey) error {
	if err := u.check(key); err != nil {
		return err
	}
	return classify(u.where(ctx, key).Delete(&voteRow{}).Error)
}

func (u *unit) AdjustCounters(ctx context.Context, d domain.Delta) (domain.Counters, error) {
	if !d.IsZero() {
		res := u.tx.WithContext(ctx).Table(u.tb.Reviews).
			Where("id = ? AND helpful_count + ? >= 0 AND not_helpful_count + ? >= 0", u.ref.ID, d.Helpful, d.NotHelpful).
			Updates(map[string]any{
				"helpful_count":     gorm.Expr("helpful_count + ?", d.Helpful),
				"not_helpful_count": gorm.Expr("not_helpful_count + ?", d.NotHelpful),
			})
		if res.Error != nil {
			return domain.Counters{}, classify(res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.Counters{}, fmt.Errorf("%w: %s counters %+v cannot take delta %+v",
				domain.ErrConstraintViolation, u.ref, u.locked, d)
		}
	}

	var c counterRow
	if err := u.tx.WithContext(ctx).Table(u.tb.Reviews).
		Select("helpful_count", "not_helpful_count").
		Where("id = ?", u.ref.ID).
		Take(&c).Error; err != nil {
		return domain.Counters{}, classify(err)
	}
	return domain.Counters{Helpful: c.HelpfulCount, NotHelpful: c.NotHelpfulCount}, nil
}
