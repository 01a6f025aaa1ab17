package engine

import "fmt"

type Status string

const (
	StatusPendingAccept Status = "PENDING_ACCEPT"
	StatusActive        Status = "ACTIVE"
	StatusCompleted     Status = "COMPLETED"
	StatusDeclined      Status = "DECLINED"
)

// Terminal reports whether no further transition is legal from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusDeclined
}

// Phase is the match lifecycle as a closed set of variants. Status, turn,
// open round and winner are all derived from it, so a completed match with
// an open round (or an active match without a turn) cannot be built.
type Phase interface {
	Status() Status
	isPhase()
}

// Pending waits for the challenged player. The challenger holds the turn.
type Pending struct{}

// Active is a running match. OpenRound is empty when no round awaits a reply.
type Active struct {
	Turn      string
	OpenRound string
}

type Completed struct {
	Winner string
}

type Declined struct{}

func (Pending) Status() Status   { return StatusPendingAccept }
func (Active) Status() Status    { return StatusActive }
func (Completed) Status() Status { return StatusCompleted }
func (Declined) Status() Status  { return StatusDeclined }

func (Pending) isPhase()   {}
func (Active) isPhase()    {}
func (Completed) isPhase() {}
func (Declined) isPhase()  {}

// PhaseColumns is the flattened, persisted form of a Phase.
type PhaseColumns struct {
	Status    Status
	Turn      string
	OpenRound string
	Winner    string
}

// Flatten returns the persisted columns for p within a match between players.
func Flatten(p Phase, players [2]string) PhaseColumns {
	switch v := p.(type) {
	case Pending:
		return PhaseColumns{Status: StatusPendingAccept, Turn: players[0]}
	case Active:
		return PhaseColumns{Status: StatusActive, Turn: v.Turn, OpenRound: v.OpenRound}
	case Completed:
		return PhaseColumns{Status: StatusCompleted, Winner: v.Winner}
	case Declined:
		return PhaseColumns{Status: StatusDeclined}
	}
	return PhaseColumns{}
}

// Unflatten rebuilds a Phase from persisted columns and rejects combinations
// no transition could have produced.
func Unflatten(c PhaseColumns, players [2]string) (Phase, error) {
	isPlayer := func(id string) bool { return id == players[0] || id == players[1] }
	switch c.Status {
	case StatusPendingAccept:
		if c.OpenRound != "" || c.Winner != "" {
			return nil, fmt.Errorf("pending match carries round or winner")
		}
		return Pending{}, nil
	case StatusActive:
		if !isPlayer(c.Turn) {
			return nil, fmt.Errorf("active match turn %q is not a player", c.Turn)
		}
		if c.Winner != "" {
			return nil, fmt.Errorf("active match carries a winner")
		}
		return Active{Turn: c.Turn, OpenRound: c.OpenRound}, nil
	case StatusCompleted:
		if !isPlayer(c.Winner) {
			return nil, fmt.Errorf("completed match winner %q is not a player", c.Winner)
		}
		if c.Turn != "" || c.OpenRound != "" {
			return nil, fmt.Errorf("completed match carries turn or open round")
		}
		return Completed{Winner: c.Winner}, nil
	case StatusDeclined:
		if c.Turn != "" || c.OpenRound != "" || c.Winner != "" {
			return nil, fmt.Errorf("declined match carries turn, round or winner")
		}
		return Declined{}, nil
	}
	return nil, fmt.Errorf("unknown match status %q", c.Status)
}
