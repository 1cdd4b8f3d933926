package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hoodrate/internal/domain"
	"hoodrate/internal/storage/schema"
)

type Repo struct{ db *gorm.DB }

func New(db *gorm.DB) *Repo { return &Repo{db: db} }

// Atomic takes the review row lock before fn reads the ledger, which orders
// all casts on one review behind each other.
func (r *Repo) Atomic(ctx context.Context, ref domain.ReviewRef, fn func(u domain.VoteUnit) error) error {
	tb, err := schema.For(ref.Type)
	if err != nil {
		return err
	}
	if !isUUID(ref.ID) {
		return domain.ErrReviewNotFound
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c counterRow
		err := tx.Table(tb.Reviews).
			Select("helpful_count", "not_helpful_count").
			Where("id = ?", ref.ID).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrReviewNotFound
		}
		if err != nil {
			return classify(err)
		}
		return fn(&unit{
			tx:     tx,
			ref:    ref,
			tb:     tb,
			locked: domain.Counters{Helpful: c.HelpfulCount, NotHelpful: c.NotHelpfulCount},
		})
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	return classify(err)
}

func (r *Repo) ReadVote(ctx context.Context, key domain.VoteKey) (domain.Vote, domain.Counters, error) {
	tb, err := schema.For(key.Review.Type)
	if err != nil {
		return domain.VoteNone, domain.Counters{}, err
	}
	if !isUUID(key.Review.ID) {
		return domain.VoteNone, domain.Counters{}, domain.ErrReviewNotFound
	}
	var (
		c    domain.Counters
		kind sql.NullString
	)
	q := fmt.Sprintf(`
SELECT r.helpful_count, r.not_helpful_count, v.vote_type
FROM %s r
LEFT JOIN %s v
  ON v.review_id = r.id AND v.review_type = ? AND v.user_id = ?
WHERE r.id = ?`, tb.Reviews, schema.VotesTable)
	err = r.db.WithContext(ctx).
		Raw(q, string(key.Review.Type), key.UserID, key.Review.ID).
		Row().
		Scan(&c.Helpful, &c.NotHelpful, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.VoteNone, domain.Counters{}, domain.ErrReviewNotFound
	}
	if err != nil {
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
	const helpful = `COALESCE(SUM(CASE WHEN v.vote_type = 'helpful' THEN 1 ELSE 0 END), 0)`
	const notHelpful = `COALESCE(SUM(CASE WHEN v.vote_type = 'not_helpful' THEN 1 ELSE 0 END), 0)`
	q := fmt.Sprintf(`
SELECT r.id::text, r.helpful_count, r.not_helpful_count, %[3]s, %[4]s
FROM %[1]s r
LEFT JOIN %[2]s v
  ON v.review_id = r.id AND v.review_type = ?
GROUP BY r.id, r.helpful_count, r.not_helpful_count
HAVING r.helpful_count <> %[3]s OR r.not_helpful_count <> %[4]s
ORDER BY r.id`, tb.Reviews, schema.VotesTable, helpful, notHelpful)

	rows, err := r.db.WithContext(ctx).Raw(q, string(t)).Rows()
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
	var ids []string
	if err := r.db.WithContext(ctx).Table(tb.Entities).Order("id").Pluck("CAST(id AS text)", &ids).Error; err != nil {
		return nil, classify(err)
	}
	return ids, nil
}

func (r *Repo) ListRatedReviews(ctx context.Context, t domain.ReviewType, entityID string) ([]domain.RatedReview, error) {
	tb, err := schema.For(t)
	if err != nil {
		return nil, err
	}
	if !isUUID(entityID) {
		return nil, domain.ErrEntityNotFound
	}
	var n int64
	if err := r.db.WithContext(ctx).Table(tb.Entities).Where("id = ?", entityID).Count(&n).Error; err != nil {
		return nil, classify(err)
	}
	if n == 0 {
		return nil, domain.ErrEntityNotFound
	}

	rows, err := r.db.WithContext(ctx).Table(tb.Reviews).
		Select("id::text, status, "+strings.Join(tb.Ratings, ", ")).
		Where(tb.EntityFK+" = ? AND status = ?", entityID, string(domain.StatusApproved)).
		Order("id").
		Rows()
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
	if !isUUID(s.EntityID) {
		return domain.ErrEntityNotFound
	}
	res := r.db.WithContext(ctx).Table(tb.Entities).
		Where("id = ?", s.EntityID).
		Updates(map[string]any{
			"average_rating":    s.AverageRating,
			"review_count":      s.ReviewCount,
			"low_rating_count":  s.LowRatingCount,
			"rating_updated_at": gorm.Expr("now()"),
		})
	if res.Error != nil {
		return classify(res.Error)
	}
	// postgres reports matched rows, so zero means no such entity
	if res.RowsAffected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// ids are uuid columns; anything else cannot match a row and would fail the cast
func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
