package domain

import (
	"fmt"
	"strings"
)

// ReviewType selects which entity a review is about.
type ReviewType string

const (
	ReviewNeighborhood ReviewType = "neighborhood"
	ReviewBuilding     ReviewType = "building"
)

var ReviewTypes = []ReviewType{ReviewNeighborhood, ReviewBuilding}

func ParseReviewType(s string) (ReviewType, error) {
	switch t := ReviewType(strings.ToLower(strings.TrimSpace(s))); t {
	case ReviewNeighborhood, ReviewBuilding:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidReviewType, s)
}

// RatingFields lists the 1-5 sub-ratings carried by every review of type t,
// in storage column order.
func (t ReviewType) RatingFields() []string {
	switch t {
	case ReviewNeighborhood:
		return []string{"safety", "cleanliness", "noise", "community", "transit", "amenities"}
	case ReviewBuilding:
		return []string{"management", "cleanliness", "maintenance", "rent_value", "noise", "amenities"}
	}
	return nil
}

// ReviewRef identifies a review across both review tables.
type ReviewRef struct {
	ID   string
	Type ReviewType
}

func (r ReviewRef) String() string { return string(r.Type) + ":" + r.ID }

type ReviewStatus string

const (
	StatusPending  ReviewStatus = "pending"
	StatusApproved ReviewStatus = "approved"
	StatusRejected ReviewStatus = "rejected"
)

// Review is owned by the authoring subsystem; this service only reads its
// ratings and writes its two vote counters.
type Review struct {
	Ref        ReviewRef
	EntityID   string
	AuthorID   string
	Status     ReviewStatus
	SubRatings []int // ordered as Ref.Type.RatingFields()
	Counters   Counters
}
