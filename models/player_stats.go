package models

import "time"

// PlayerStats is the denormalised win/loss record of a player.
type PlayerStats struct {
	PlayerID      string `gorm:"primaryKey;type:varchar(64)" json:"player_id"`
	Wins          int64  `gorm:"not null" json:"wins"`
	Losses        int64  `gorm:"not null" json:"losses"`
	CurrentStreak int64  `gorm:"not null" json:"current_streak"`
	BestStreak    int64  `gorm:"not null" json:"best_streak"`

	Timestamps
}

func (PlayerStats) TableName() string { return "player_stats" }

// PlayerResult makes stats recording idempotent: one row per player per
// finished match.
type PlayerResult struct {
	MatchID   string    `gorm:"primaryKey;type:varchar(36)" json:"match_id"`
	PlayerID  string    `gorm:"primaryKey;type:varchar(64)" json:"player_id"`
	Won       bool      `gorm:"not null" json:"won"`
	CreatedAt time.Time `json:"created_at"`
}

func (PlayerResult) TableName() string { return "player_results" }

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// All lists every model in migration order.
func All() []any {
	return []any{&Match{}, &Round{}, &MatchEvent{}, &PlayerStats{}, &PlayerResult{}}
}
