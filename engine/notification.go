package engine

type NotificationType string

const (
	NotifyYourTurn       NotificationType = "your_turn"
	NotifyLetterAssigned NotificationType = "letter_assigned"
	NotifyGameWon        NotificationType = "game_won"
	NotifyGameLost       NotificationType = "game_lost"
)

// Notification is an event the caller should deliver to Recipient once the
// transition that produced it has committed.
type Notification struct {
	MatchID   string           `json:"matchId"`
	Recipient string           `json:"-"`
	Type      NotificationType `json:"type"`
	Letter    string           `json:"letter,omitempty"`
}

// EventType names a committed transition in the match event log.
type EventType string

const (
	EventMatchCreated   EventType = "match_created"
	EventMatchAccepted  EventType = "match_accepted"
	EventMatchDeclined  EventType = "match_declined"
	EventRoundOpened    EventType = "round_opened"
	EventRoundClosed    EventType = "round_closed"
	EventRoundExpired   EventType = "round_expired"
	EventMatchCompleted EventType = "match_completed"
)
