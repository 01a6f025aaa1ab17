package store

import (
	"fmt"

	"skate-match-system/engine"
	"skate-match-system/models"
)

func matchRow(m engine.Match) models.Match {
	cols := engine.Flatten(m.Phase, m.Players)
	return models.Match{
		ID:           m.ID,
		Player1ID:    m.Players[0],
		Player2ID:    m.Players[1],
		CreatedBy:    m.CreatedBy,
		Status:       string(cols.Status),
		Turn:         optional(cols.Turn),
		OpenRoundID:  optional(cols.OpenRound),
		WinnerID:     optional(cols.Winner),
		P1Letters:    m.P1Letters,
		P2Letters:    m.P2Letters,
		RoundsCount:  m.RoundsCount,
		Version:      m.Version,
		LastActionAt: m.LastActionAt,
		FinishedAt:   m.FinishedAt,
		CreatedAt:    m.CreatedAt,
	}
}

func matchFromRow(row models.Match) (engine.Match, error) {
	players := [2]string{row.Player1ID, row.Player2ID}
	phase, err := engine.Unflatten(engine.PhaseColumns{
		Status:    engine.Status(row.Status),
		Turn:      value(row.Turn),
		OpenRound: value(row.OpenRoundID),
		Winner:    value(row.WinnerID),
	}, players)
	if err != nil {
		return engine.Match{}, fmt.Errorf("match %s: %w", row.ID, err)
	}
	return engine.Match{
		ID:           row.ID,
		Players:      players,
		CreatedBy:    row.CreatedBy,
		Phase:        phase,
		P1Letters:    row.P1Letters,
		P2Letters:    row.P2Letters,
		RoundsCount:  row.RoundsCount,
		CreatedAt:    row.CreatedAt,
		LastActionAt: row.LastActionAt,
		FinishedAt:   row.FinishedAt,
		Version:      row.Version,
	}, nil
}

func roundRow(r engine.Round) models.Round {
	row := models.Round{
		ID:               r.ID,
		MatchID:          r.MatchID,
		RoundIndex:       r.Index,
		AttackerID:       r.AttackerID,
		DefenderID:       r.DefenderID,
		AttackerVideoURL: r.AttackerVideoURL,
		TrickName:        r.TrickName,
		TrickSlug:        r.TrickSlug,
		DefenderResult:   string(r.DefenderResult),
		DefenderVideoURL: r.DefenderVideoURL,
		Status:           string(r.Status),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if !r.DeadlineReplyAt.IsZero() {
		deadline := r.DeadlineReplyAt
		row.DeadlineReplyAt = &deadline
	}
	return row
}

func roundFromRow(row models.Round) engine.Round {
	r := engine.Round{
		ID:               row.ID,
		MatchID:          row.MatchID,
		Index:            row.RoundIndex,
		AttackerID:       row.AttackerID,
		DefenderID:       row.DefenderID,
		AttackerVideoURL: row.AttackerVideoURL,
		TrickName:        row.TrickName,
		TrickSlug:        row.TrickSlug,
		DefenderResult:   engine.DefenderResult(row.DefenderResult),
		DefenderVideoURL: row.DefenderVideoURL,
		Status:           engine.RoundStatus(row.Status),
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	if row.DeadlineReplyAt != nil {
		r.DeadlineReplyAt = *row.DeadlineReplyAt
	}
	return r
}

func eventRow(e Event) models.MatchEvent {
	return models.MatchEvent{
		ID:        e.ID,
		MatchID:   e.MatchID,
		RoundID:   optional(e.RoundID),
		Type:      string(e.Type),
		Version:   e.Version,
		Position:  e.Position,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
	}
}

func eventFromRow(row models.MatchEvent) Event {
	return Event{
		ID:        row.ID,
		MatchID:   row.MatchID,
		RoundID:   value(row.RoundID),
		Type:      engine.EventType(row.Type),
		Version:   row.Version,
		Position:  row.Position,
		Payload:   []byte(row.Payload),
		CreatedAt: row.CreatedAt,
	}
}

func statsFromRow(row models.PlayerStats) PlayerStats {
	return PlayerStats{
		PlayerID:      row.PlayerID,
		Wins:          row.Wins,
		Losses:        row.Losses,
		CurrentStreak: row.CurrentStreak,
		BestStreak:    row.BestStreak,
		UpdatedAt:     row.UpdatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

