package services

import (
	"context"
	"fmt"

	"skate-match-system/engine"
	"skate-match-system/store"
)

// StatsService keeps per-player win/loss records in step with finished
// matches.
type StatsService struct {
	store store.Store
}

func NewStatsService(st store.Store) *StatsService {
	return &StatsService{store: st}
}

// RecordMatch counts a completed match. It is safe to call more than once
// for the same match; anything not completed is ignored.
func (s *StatsService) RecordMatch(ctx context.Context, m engine.Match) error {
	done, ok := m.Phase.(engine.Completed)
	if !ok {
		return nil
	}
	loser, ok := m.Opponent(done.Winner)
	if !ok {
		return fmt.Errorf("match %s winner %s is not a player", m.ID, done.Winner)
	}
	at := m.LastActionAt
	if m.FinishedAt != nil {
		at = *m.FinishedAt
	}
	return s.store.RecordResult(ctx, m.ID, done.Winner, loser, at)
}

func (s *StatsService) PlayerStats(ctx context.Context, playerID string) (store.PlayerStats, error) {
	return s.store.Stats(ctx, playerID)
}
