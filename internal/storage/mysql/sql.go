package mysql

import (
	"fmt"
	"strings"

	"hoodrate/internal/storage/schema"
)

// -----------------------------------------------------------------------------
// LEDGER + COUNTERS
// -----------------------------------------------------------------------------

const lockReviewSQL = `
SELECT helpful_count, not_helpful_count
FROM %s
WHERE id = ?
FOR UPDATE
`

const getVoteSQL = `
SELECT vote_type
FROM review_votes
WHERE user_id = ? AND review_id = ? AND review_type = ?
FOR UPDATE
`

const putVoteSQL = `
INSERT INTO review_votes
  (user_id, review_id, review_type, vote_type)
VALUES
  (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  vote_type  = VALUES(vote_type),
  updated_at = CURRENT_TIMESTAMP
`

const removeVoteSQL = `
DELETE FROM review_votes
WHERE user_id = ? AND review_id = ? AND review_type = ?
`

// Relative update; the guard turns a would-be negative counter into zero
// affected rows instead of a silent clamp.
const adjustCountersSQL = `
UPDATE %s
SET helpful_count     = helpful_count + ?,
    not_helpful_count = not_helpful_count + ?
WHERE id = ?
  AND helpful_count + ? >= 0
  AND not_helpful_count + ? >= 0
`

const countersSQL = `
SELECT helpful_count, not_helpful_count
FROM %s
WHERE id = ?
`

const readVoteSQL = `
SELECT r.helpful_count, r.not_helpful_count, v.vote_type
FROM %s r
LEFT JOIN review_votes v
  ON v.review_id = r.id AND v.review_type = ? AND v.user_id = ?
WHERE r.id = ?
`

const counterDriftSQL = `
SELECT r.id,
       r.helpful_count,
       r.not_helpful_count,
       COALESCE(SUM(CASE WHEN v.vote_type = 'helpful' THEN 1 ELSE 0 END), 0)     AS tallied_helpful,
       COALESCE(SUM(CASE WHEN v.vote_type = 'not_helpful' THEN 1 ELSE 0 END), 0) AS tallied_not_helpful
FROM %s r
LEFT JOIN review_votes v
  ON v.review_id = r.id AND v.review_type = ?
GROUP BY r.id, r.helpful_count, r.not_helpful_count
HAVING r.helpful_count <> tallied_helpful OR r.not_helpful_count <> tallied_not_helpful
ORDER BY r.id
`

// -----------------------------------------------------------------------------
// RATINGS
// -----------------------------------------------------------------------------

const listEntitiesSQL = `SELECT id FROM %s ORDER BY id`

const entityExistsSQL = `SELECT 1 FROM %s WHERE id = ?`

func listRatedReviewsSQL(tb schema.Tables) string {
	return fmt.Sprintf(`
SELECT id, status, %s
FROM %s
WHERE %s = ? AND status = 'approved'
ORDER BY id`, strings.Join(tb.Ratings, ", "), tb.Reviews, tb.EntityFK)
}

const saveSummarySQL = `
UPDATE %s
SET average_rating    = ?,
    review_count      = ?,
    low_rating_count  = ?,
    rating_updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`
