package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"skate-match-system/engine"
)

// MemoryStore keeps everything in process. It honours the same version
// check as the SQL store and is used by tests and local runs without a
// database.
type MemoryStore struct {
	mu      sync.Mutex
	matches map[string]engine.Match
	rounds  map[string]engine.Round
	slots   map[string]map[int]string
	events  map[string][]Event
	results map[string]bool
	stats   map[string]PlayerStats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches: make(map[string]engine.Match),
		rounds:  make(map[string]engine.Round),
		slots:   make(map[string]map[int]string),
		events:  make(map[string][]Event),
		results: make(map[string]bool),
		stats:   make(map[string]PlayerStats),
	}
}

func (s *MemoryStore) Load(ctx context.Context, matchID, roundID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[matchID]
	if !ok {
		return Snapshot{}, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	snap := Snapshot{Match: m}
	if roundID == "" {
		roundID = m.OpenRoundID()
		if roundID == "" {
			return snap, nil
		}
	}
	r, ok := s.rounds[roundID]
	if !ok || r.MatchID != matchID {
		return Snapshot{}, fmt.Errorf("round %s: %w", roundID, ErrNotFound)
	}
	snap.Round = &r
	return snap, nil
}

func (s *MemoryStore) Commit(ctx context.Context, w Write) (engine.Match, error) {
	if err := ctx.Err(); err != nil {
		return engine.Match{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := w.Match
	current, exists := s.matches[m.ID]
	switch {
	case w.Create && exists:
		return engine.Match{}, fmt.Errorf("match %s exists: %w", m.ID, ErrConflict)
	case w.Create:
		m.Version = 1
	case !exists:
		return engine.Match{}, fmt.Errorf("match %s: %w", m.ID, ErrNotFound)
	case current.Version != w.ExpectedVersion:
		return engine.Match{}, fmt.Errorf("match %s at version %d, expected %d: %w", m.ID, current.Version, w.ExpectedVersion, ErrConflict)
	default:
		m.Version = w.ExpectedVersion + 1
	}

	if r := w.InsertRound; r != nil {
		if _, taken := s.rounds[r.ID]; taken {
			return engine.Match{}, fmt.Errorf("round %s exists: %w", r.ID, ErrConflict)
		}
		if _, taken := s.slots[r.MatchID][r.Index]; taken {
			return engine.Match{}, fmt.Errorf("round %d of match %s exists: %w", r.Index, r.MatchID, ErrConflict)
		}
	}
	if r := w.UpdateRound; r != nil {
		stored, ok := s.rounds[r.ID]
		if !ok || !stored.Open() {
			return engine.Match{}, fmt.Errorf("round %s no longer open: %w", r.ID, ErrConflict)
		}
	}

	s.matches[m.ID] = m
	if r := w.InsertRound; r != nil {
		s.rounds[r.ID] = *r
		if s.slots[r.MatchID] == nil {
			s.slots[r.MatchID] = make(map[int]string)
		}
		s.slots[r.MatchID][r.Index] = r.ID
	}
	if r := w.UpdateRound; r != nil {
		s.rounds[r.ID] = *r
	}
	for _, e := range sequence(w.Events, m.Version) {
		s.events[e.MatchID] = append(s.events[e.MatchID], e)
	}
	return m, nil
}

func (s *MemoryStore) ListRounds(ctx context.Context, matchID string) ([]engine.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots := s.slots[matchID]
	out := make([]engine.Round, 0, len(slots))
	for _, id := range slots {
		out = append(out, s.rounds[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *MemoryStore) ListMatchesForPlayer(ctx context.Context, playerID string, limit int) ([]engine.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []engine.Match
	for _, m := range s.matches {
		if m.HasPlayer(playerID) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActionAt.Equal(out[j].LastActionAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastActionAt.After(out[j].LastActionAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListOverdueRounds(ctx context.Context, now time.Time, limit int) ([]engine.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []engine.Round
	for _, r := range s.rounds {
		if r.Overdue(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeadlineReplyAt.Before(out[j].DeadlineReplyAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, matchID string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events[matchID]...), nil
}

func (s *MemoryStore) RecordResult(ctx context.Context, matchID, winnerID, loserID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range []struct {
		id  string
		won bool
	}{{winnerID, true}, {loserID, false}} {
		key := matchID + "/" + p.id
		if s.results[key] {
			continue
		}
		s.results[key] = true
		st := s.stats[p.id]
		st.PlayerID = p.id
		applyResult(&st, p.won)
		st.UpdatedAt = at
		s.stats[p.id] = st
	}
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context, playerID string) (PlayerStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stats[playerID]; ok {
		return st, nil
	}
	return PlayerStats{PlayerID: playerID}, nil
}

func applyResult(st *PlayerStats, won bool) {
	if won {
		st.Wins++
		st.CurrentStreak++
		if st.CurrentStreak > st.BestStreak {
			st.BestStreak = st.CurrentStreak
		}
		return
	}
	st.Losses++
	st.CurrentStreak = 0
}
