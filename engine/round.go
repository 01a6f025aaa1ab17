package engine

import "time"

type DefenderResult string

const (
	ResultPending DefenderResult = "PENDING"
	ResultMake    DefenderResult = "MAKE"
	ResultBail    DefenderResult = "BAIL"
	ResultTimeout DefenderResult = "TIMEOUT"
)

type RoundStatus string

const (
	RoundAwaitingDefender RoundStatus = "AWAITING_DEFENDER"
	RoundComplete         RoundStatus = "COMPLETE"
)

// Round is one attacker set plus the defender's reply. It is immutable
// apart from the single transition that closes it.
type Round struct {
	ID               string
	MatchID          string
	Index            int
	AttackerID       string
	DefenderID       string
	AttackerVideoURL string
	TrickName        string
	TrickSlug        string
	DefenderResult   DefenderResult
	DefenderVideoURL string
	Status           RoundStatus
	DeadlineReplyAt  time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (r Round) Open() bool {
	return r.Status == RoundAwaitingDefender
}

// Overdue reports whether the reply deadline has passed at now.
func (r Round) Overdue(now time.Time) bool {
	return r.Open() && !r.DeadlineReplyAt.IsZero() && !now.Before(r.DeadlineReplyAt)
}
