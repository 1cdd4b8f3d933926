package domain

// LowRatingThreshold: a review whose own sub-rating mean is strictly below
// this value is flagged as low rating.
const LowRatingThreshold = 2.0

// RatedReview is the rating projection of a review used by aggregation.
type RatedReview struct {
	ReviewID   string
	Status     ReviewStatus
	SubRatings []int
}

// RatingSummary is the per-entity aggregate shown next to a neighborhood or building.
type RatingSummary struct {
	Type           ReviewType `json:"type"`
	EntityID       string     `json:"entity_id"`
	AverageRating  float64    `json:"average_rating"`
	ReviewCount    int        `json:"review_count"`
	LowRatingCount int        `json:"low_rating_count"`
}

// ReviewMean is the arithmetic mean of one review's sub-ratings.
// ok is false when the review carries no sub-ratings.
func ReviewMean(sub []int) (mean float64, ok bool) {
	if len(sub) == 0 {
		return 0, false
	}
	sum := 0
	for _, v := range sub {
		sum += v
	}
	return float64(sum) / float64(len(sub)), true
}

func IsLowRating(sub []int) bool {
	m, ok := ReviewMean(sub)
	return ok && m < LowRatingThreshold
}

// Summarize averages the per-review means of the approved reviews. Each review
// contributes one scalar regardless of how many sub-ratings it has.
func Summarize(t ReviewType, entityID string, reviews []RatedReview) RatingSummary {
	out := RatingSummary{Type: t, EntityID: entityID}
	var total float64
	for _, r := range reviews {
		if r.Status != StatusApproved {
			continue
		}
		m, ok := ReviewMean(r.SubRatings)
		if !ok {
			continue
		}
		total += m
		out.ReviewCount++
		if m < LowRatingThreshold {
			out.LowRatingCount++
		}
	}
	if out.ReviewCount > 0 {
		out.AverageRating = total / float64(out.ReviewCount)
	}
	return out
}
