package engine

type ActionKind string

const (
	ActionAcceptOrDecline ActionKind = "accept_or_decline"
	ActionReplyToTrick    ActionKind = "reply_to_trick"
	ActionSetTrick        ActionKind = "set_trick"
	ActionWaiting         ActionKind = "waiting"
	ActionCompleted       ActionKind = "completed"
)

// Action is what a given player is expected to do next in a match.
type Action struct {
	Kind     ActionKind `json:"kind"`
	RoundID  string     `json:"round_id,omitempty"`
	WinnerID string     `json:"winner_id,omitempty"`
}

// NextAction derives the primary action for userID. open is the match's
// open round, if the caller loaded it.
func NextAction(m Match, open *Round, userID string) Action {
	if !m.HasPlayer(userID) {
		return Action{Kind: ActionWaiting}
	}
	switch p := m.Phase.(type) {
	case Completed:
		return Action{Kind: ActionCompleted, WinnerID: p.Winner}
	case Declined:
		return Action{Kind: ActionCompleted}
	case Pending:
		if userID == m.Players[1] {
			return Action{Kind: ActionAcceptOrDecline}
		}
		return Action{Kind: ActionWaiting}
	case Active:
		if p.OpenRound != "" {
			if open != nil && open.ID == p.OpenRound && open.Open() && open.DefenderID == userID {
				return Action{Kind: ActionReplyToTrick, RoundID: open.ID}
			}
			return Action{Kind: ActionWaiting}
		}
		if p.Turn == userID {
			return Action{Kind: ActionSetTrick}
		}
	}
	return Action{Kind: ActionWaiting}
}
