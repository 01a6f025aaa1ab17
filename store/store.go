package store

import (
	"context"
	"errors"
	"time"

	"skate-match-system/engine"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the write lost a race: the match moved past the
	// expected version, or a concurrent write claimed the same round slot.
	ErrConflict = errors.New("record conflict")
)

// Snapshot is a consistent read of a match. Round is the requested round,
// or the open round when none was requested.
type Snapshot struct {
	Match engine.Match
	Round *engine.Round
}

// Event is a match history entry. Payload is a JSON document.
// Version is the match version the event was committed at and Position its
// place within that commit; together they order a match's history.
type Event struct {
	ID        string           `json:"id"`
	MatchID   string           `json:"match_id"`
	RoundID   string           `json:"round_id,omitempty"`
	Type      engine.EventType `json:"type"`
	Version   int64            `json:"version"`
	Position  int              `json:"position"`
	Payload   []byte           `json:"payload,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// sequence stamps events with the version their commit produced.
func sequence(events []Event, version int64) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		e.Version = version
		e.Position = i
		out[i] = e
	}
	return out
}

// Write is everything a single transition changes. It is applied
// atomically, and only if the stored match is still at ExpectedVersion.
type Write struct {
	Match           engine.Match
	ExpectedVersion int64
	Create          bool
	InsertRound     *engine.Round
	UpdateRound     *engine.Round
	Events          []Event
}

type PlayerStats struct {
	PlayerID      string    `json:"player_id"`
	Wins          int64     `json:"wins"`
	Losses        int64     `json:"losses"`
	CurrentStreak int64     `json:"current_streak"`
	BestStreak    int64     `json:"best_streak"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store is the persistence boundary of the match service. Commit is the
// only serialization point for concurrent operations on a match.
type Store interface {
	Load(ctx context.Context, matchID, roundID string) (Snapshot, error)
	Commit(ctx context.Context, w Write) (engine.Match, error)
	ListRounds(ctx context.Context, matchID string) ([]engine.Round, error)
	ListMatchesForPlayer(ctx context.Context, playerID string, limit int) ([]engine.Match, error)
	ListOverdueRounds(ctx context.Context, now time.Time, limit int) ([]engine.Round, error)
	ListEvents(ctx context.Context, matchID string) ([]Event, error)

	// RecordResult counts a finished match once per player; repeated calls
	// for the same match are no-ops.
	RecordResult(ctx context.Context, matchID, winnerID, loserID string, at time.Time) error
	Stats(ctx context.Context, playerID string) (PlayerStats, error)
}
