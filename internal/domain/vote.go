package domain

import (
	"fmt"
	"strings"
)

// Vote is a user's current opinion on a review. VoteNone means no ledger row.
type Vote int8

const (
	VoteNone Vote = iota
	VoteHelpful
	VoteNotHelpful
)

func (v Vote) String() string {
	switch v {
	case VoteHelpful:
		return "helpful"
	case VoteNotHelpful:
		return "not_helpful"
	default:
		return "none"
	}
}

// ParseVote accepts the wire names used by the API and the vote_type column.
func ParseVote(s string) (Vote, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "helpful":
		return VoteHelpful, nil
	case "not_helpful", "not-helpful", "nothelpful":
		return VoteNotHelpful, nil
	case "", "none":
		return VoteNone, nil
	}
	return VoteNone, fmt.Errorf("%w: %q", ErrInvalidVote, s)
}

// Castable reports whether v may be requested by a caller.
func (v Vote) Castable() bool { return v == VoteHelpful || v == VoteNotHelpful }

func (v Vote) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Vote) UnmarshalText(b []byte) error {
	p, err := ParseVote(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// VoteKey is the ledger identity. At most one row exists per key.
type VoteKey struct {
	UserID string
	Review ReviewRef
}

// Counters are the denormalized tallies stored on the review row.
type Counters struct {
	Helpful    int
	NotHelpful int
}

func (c Counters) Apply(d Delta) Counters {
	return Counters{Helpful: c.Helpful + d.Helpful, NotHelpful: c.NotHelpful + d.NotHelpful}
}

func (c Counters) Negative() bool { return c.Helpful < 0 || c.NotHelpful < 0 }

// Delta is a relative adjustment to Counters. Each side is -1, 0 or +1.
type Delta struct {
	Helpful    int
	NotHelpful int
}

func (d Delta) IsZero() bool { return d.Helpful == 0 && d.NotHelpful == 0 }

func unit(v Vote, n int) Delta {
	switch v {
	case VoteHelpful:
		return Delta{Helpful: n}
	case VoteNotHelpful:
		return Delta{NotHelpful: n}
	}
	return Delta{}
}

func (d Delta) add(o Delta) Delta {
	return Delta{Helpful: d.Helpful + o.Helpful, NotHelpful: d.NotHelpful + o.NotHelpful}
}

type LedgerOp int8

const (
	OpPut LedgerOp = iota + 1
	OpRemove
)

// Transition is one step of the per (user, review) state machine.
type Transition struct {
	From  Vote
	To    Vote
	Op    LedgerOp
	Delta Delta
}

// Action names the transition: cast, switch or retract.
func (t Transition) Action() string { return action(t.From, t.To) }

func action(from, to Vote) string {
	switch {
	case from == VoteNone:
		return "cast"
	case to == VoteNone:
		return "retract"
	default:
		return "switch"
	}
}

// NextVote computes the ledger transition and counter delta for a cast of
// requested while the ledger holds current. Re-casting the held kind toggles it off.
func NextVote(current, requested Vote) (Transition, error) {
	if !requested.Castable() {
		return Transition{}, fmt.Errorf("%w: cannot cast %s", ErrInvalidVote, requested)
	}
	switch current {
	case VoteNone:
		return Transition{From: current, To: requested, Op: OpPut, Delta: unit(requested, 1)}, nil
	case requested:
		return Transition{From: current, To: VoteNone, Op: OpRemove, Delta: unit(current, -1)}, nil
	case VoteHelpful, VoteNotHelpful:
		return Transition{
			From:  current,
			To:    requested,
			Op:    OpPut,
			Delta: unit(current, -1).add(unit(requested, 1)),
		}, nil
	}
	return Transition{}, fmt.Errorf("%w: unknown ledger state %d", ErrConstraintViolation, current)
}

// VoteResult is what a caller observes after a cast or a read.
type VoteResult struct {
	Vote     Vote
	Previous Vote
	Counters Counters
}

func (r VoteResult) Action() string { return action(r.Previous, r.Vote) }
