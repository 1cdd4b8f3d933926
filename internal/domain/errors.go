package domain

import "errors"

var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrReviewNotFound      = errors.New("review not found")
	ErrEntityNotFound      = errors.New("entity not found")
	ErrTransientStore      = errors.New("store temporarily unavailable")
	ErrConstraintViolation = errors.New("ledger constraint violation")
	ErrInvalidVote         = errors.New("invalid vote")
	ErrInvalidReviewType   = errors.New("invalid review type")
)

// ErrorKind is a stable label for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrReviewNotFound):
		return "review_not_found"
	case errors.Is(err, ErrEntityNotFound):
		return "entity_not_found"
	case errors.Is(err, ErrTransientStore):
		return "transient"
	case errors.Is(err, ErrConstraintViolation):
		return "constraint_violation"
	case errors.Is(err, ErrInvalidVote), errors.Is(err, ErrInvalidReviewType):
		return "invalid"
	}
	return "internal"
}
