package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"skate-match-system/engine"
	"skate-match-system/models"
)

// GormStore persists matches through gorm. Updates are conditioned on the
// match version so concurrent writers never both succeed.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Load(ctx context.Context, matchID, roundID string) (Snapshot, error) {
	var snap Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Match
		if err := tx.Where("id = ?", matchID).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("match %s: %w", matchID, ErrNotFound)
			}
			return fmt.Errorf("load match: %w", err)
		}
		m, err := matchFromRow(row)
		if err != nil {
			return err
		}
		snap.Match = m

		if roundID == "" {
			roundID = m.OpenRoundID()
			if roundID == "" {
				return nil
			}
		}
		var rr models.Round
		if err := tx.Where("id = ? AND match_id = ?", roundID, matchID).Take(&rr).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("round %s: %w", roundID, ErrNotFound)
			}
			return fmt.Errorf("load round: %w", err)
		}
		r := roundFromRow(rr)
		snap.Round = &r
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *GormStore) Commit(ctx context.Context, w Write) (engine.Match, error) {
	committed := w.Match
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := matchRow(w.Match)
		if w.Create {
			row.Version = 1
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("create match: %w", err)
			}
			committed.Version = 1
		} else {
			next := w.ExpectedVersion + 1
			res := tx.Model(&models.Match{}).
				Where("id = ? AND version = ?", row.ID, w.ExpectedVersion).
				Updates(map[string]any{
					"status":         row.Status,
					"turn":           row.Turn,
					"open_round_id":  row.OpenRoundID,
					"winner_id":      row.WinnerID,
					"p1_letters":     row.P1Letters,
					"p2_letters":     row.P2Letters,
					"rounds_count":   row.RoundsCount,
					"last_action_at": row.LastActionAt,
					"finished_at":    row.FinishedAt,
					"version":        next,
				})
			if res.Error != nil {
				return fmt.Errorf("update match: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("match %s moved past version %d: %w", row.ID, w.ExpectedVersion, ErrConflict)
			}
			committed.Version = next
		}

		if w.InsertRound != nil {
			rr := roundRow(*w.InsertRound)
			if err := tx.Create(&rr).Error; err != nil {
				return fmt.Errorf("insert round: %w", err)
			}
		}
		if w.UpdateRound != nil {
			rr := roundRow(*w.UpdateRound)
			res := tx.Model(&models.Round{}).
				Where("id = ? AND match_id = ? AND status = ?", rr.ID, rr.MatchID, string(engine.RoundAwaitingDefender)).
				Updates(map[string]any{
					"defender_result":    rr.DefenderResult,
					"defender_video_url": rr.DefenderVideoURL,
					"status":             rr.Status,
					"updated_at":         rr.UpdatedAt,
				})
			if res.Error != nil {
				return fmt.Errorf("update round: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("round %s no longer open: %w", rr.ID, ErrConflict)
			}
		}

		if len(w.Events) > 0 {
			rows := make([]models.MatchEvent, 0, len(w.Events))
			for _, e := range sequence(w.Events, committed.Version) {
				rows = append(rows, eventRow(e))
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("append events: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return engine.Match{}, translate(err)
	}
	return committed, nil
}

func (s *GormStore) ListRounds(ctx context.Context, matchID string) ([]engine.Round, error) {
	var rows []models.Round
	if err := s.db.WithContext(ctx).Where("match_id = ?", matchID).Order("round_index ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	out := make([]engine.Round, 0, len(rows))
	for _, row := range rows {
		out = append(out, roundFromRow(row))
	}
	return out, nil
}

func (s *GormStore) ListMatchesForPlayer(ctx context.Context, playerID string, limit int) ([]engine.Match, error) {
	q := s.db.WithContext(ctx).
		Where("player1_id = ? OR player2_id = ?", playerID, playerID).
		Order("last_action_at DESC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.Match
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	out := make([]engine.Match, 0, len(rows))
	for _, row := range rows {
		m, err := matchFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *GormStore) ListOverdueRounds(ctx context.Context, now time.Time, limit int) ([]engine.Round, error) {
	q := s.db.WithContext(ctx).
		Where("status = ? AND deadline_reply_at IS NOT NULL AND deadline_reply_at <= ?", string(engine.RoundAwaitingDefender), now).
		Order("deadline_reply_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.Round
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list overdue rounds: %w", err)
	}
	out := make([]engine.Round, 0, len(rows))
	for _, row := range rows {
		out = append(out, roundFromRow(row))
	}
	return out, nil
}

func (s *GormStore) ListEvents(ctx context.Context, matchID string) ([]Event, error) {
	var rows []models.MatchEvent
	if err := s.db.WithContext(ctx).Where("match_id = ?", matchID).Order("version ASC").Order("position ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, eventFromRow(row))
	}
	return out, nil
}

func (s *GormStore) RecordResult(ctx context.Context, matchID, winnerID, loserID string, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range []struct {
			id  string
			won bool
		}{{winnerID, true}, {loserID, false}} {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.PlayerResult{MatchID: matchID, PlayerID: p.id, Won: p.won, CreatedAt: at})
			if res.Error != nil {
				return fmt.Errorf("record result: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				continue
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.PlayerStats{PlayerID: p.id}).Error; err != nil {
				return fmt.Errorf("init stats: %w", err)
			}

			var delta map[string]any
			if p.won {
				delta = map[string]any{
					"wins":           gorm.Expr("wins + 1"),
					"current_streak": gorm.Expr("current_streak + 1"),
					"best_streak":    gorm.Expr("CASE WHEN current_streak + 1 > best_streak THEN current_streak + 1 ELSE best_streak END"),
				}
			} else {
				delta = map[string]any{
					"losses":         gorm.Expr("losses + 1"),
					"current_streak": 0,
				}
			}
			if err := tx.Model(&models.PlayerStats{}).Where("player_id = ?", p.id).Updates(delta).Error; err != nil {
				return fmt.Errorf("update stats: %w", err)
			}
		}
		return nil
	})
}

func (s *GormStore) Stats(ctx context.Context, playerID string) (PlayerStats, error) {
	var row models.PlayerStats
	err := s.db.WithContext(ctx).Where("player_id = ?", playerID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PlayerStats{PlayerID: playerID}, nil
	}
	if err != nil {
		return PlayerStats{}, fmt.Errorf("load stats: %w", err)
	}
	return statsFromRow(row), nil
}

// translate folds the driver-specific ways of losing a race into ErrConflict.
func translate(err error) error {
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "database is locked") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
