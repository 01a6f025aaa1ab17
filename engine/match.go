package engine

import "time"

// Match is one best-of-five-letters contest. Players[0] is always the
// challenger. Version is the optimistic concurrency token; it is owned by
// the store and bumped on every committed write.
type Match struct {
	ID           string
	Players      [2]string
	CreatedBy    string
	Phase        Phase
	P1Letters    int
	P2Letters    int
	RoundsCount  int
	CreatedAt    time.Time
	LastActionAt time.Time
	FinishedAt   *time.Time
	Version      int64
}

func (m Match) Status() Status {
	if m.Phase == nil {
		return ""
	}
	return m.Phase.Status()
}

// Turn is the player expected to attack next, or "" once the match is over.
func (m Match) Turn() string {
	switch p := m.Phase.(type) {
	case Pending:
		return m.Players[0]
	case Active:
		return p.Turn
	}
	return ""
}

func (m Match) OpenRoundID() string {
	if p, ok := m.Phase.(Active); ok {
		return p.OpenRound
	}
	return ""
}

func (m Match) WinnerID() string {
	if p, ok := m.Phase.(Completed); ok {
		return p.Winner
	}
	return ""
}

func (m Match) HasPlayer(id string) bool {
	return id != "" && (id == m.Players[0] || id == m.Players[1])
}

// Opponent returns the other player of the match.
func (m Match) Opponent(id string) (string, bool) {
	switch id {
	case m.Players[0]:
		return m.Players[1], true
	case m.Players[1]:
		return m.Players[0], true
	}
	return "", false
}

// Letters returns the accrued letter count of a player.
func (m Match) Letters(playerID string) int {
	switch playerID {
	case m.Players[0]:
		return m.P1Letters
	case m.Players[1]:
		return m.P2Letters
	}
	return 0
}

func (m *Match) setLetters(playerID string, n int) {
	switch playerID {
	case m.Players[0]:
		m.P1Letters = n
	case m.Players[1]:
		m.P2Letters = n
	}
}
