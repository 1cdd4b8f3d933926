// Package schema maps review types onto the relational tables shared by the
// SQL backends. Table and column names come from here, never from input.
package schema

import (
	"database/sql"
	"fmt"

	"hoodrate/internal/domain"
)

const VotesTable = "review_votes"

type Tables struct {
	Reviews  string
	Entities string
	EntityFK string
	Ratings  []string // sub-rating columns in RatingFields order
}

func For(t domain.ReviewType) (Tables, error) {
	var tb Tables
	switch t {
	case domain.ReviewNeighborhood:
		tb = Tables{Reviews: "neighborhood_reviews", Entities: "neighborhoods", EntityFK: "neighborhood_id"}
	case domain.ReviewBuilding:
		tb = Tables{Reviews: "building_reviews", Entities: "buildings", EntityFK: "building_id"}
	default:
		return Tables{}, fmt.Errorf("%w: %q", domain.ErrInvalidReviewType, t)
	}
	for _, f := range t.RatingFields() {
		tb.Ratings = append(tb.Ratings, f+"_rating")
	}
	return tb, nil
}

type Scanner interface {
	Scan(dest ...any) error
}

// ScanRated reads one "id, status, <rating columns...>" row.
func ScanRated(s Scanner, n int) (domain.RatedReview, error) {
	var (
		rv     domain.RatedReview
		status string
		sub    = make([]sql.NullInt64, n)
	)
	dest := []any{&rv.ReviewID, &status}
	for i := range sub {
		dest = append(dest, &sub[i])
	}
	if err := s.Scan(dest...); err != nil {
		return rv, err
	}
	rv.Status = domain.ReviewStatus(status)
	for _, v := range sub {
		if v.Valid {
			rv.SubRatings = append(rv.SubRatings, int(v.Int64))
		}
	}
	return rv, nil
}

// StoredVote parses a vote_type column. NULL is no row; anything but the two
// castable values means the ledger holds a row it should not.
func StoredVote(kind sql.NullString) (domain.Vote, error) {
	if !kind.Valid {
		return domain.VoteNone, nil
	}
	v, err := domain.ParseVote(kind.String)
	if err != nil || v == domain.VoteNone {
		return domain.VoteNone, fmt.Errorf("%w: vote_type %q", domain.ErrConstraintViolation, kind.String)
	}
	return v, nil
}
