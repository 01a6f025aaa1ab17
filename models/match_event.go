package models

import (
	"time"

	"gorm.io/datatypes"
)

// MatchEvent is one entry of a match's append-only history, written in the
// same transaction as the state change it describes. (MatchID, Version,
// Position) is the commit order.
type MatchEvent struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MatchID   string         `gorm:"type:varchar(36);index;not null;uniqueIndex:idx_match_events_order,priority:1" json:"match_id"`
	RoundID   *string        `gorm:"type:varchar(36)" json:"round_id,omitempty"`
	Type      string         `gorm:"type:varchar(32);not null" json:"type"`
	Version   int64          `gorm:"not null;uniqueIndex:idx_match_events_order,priority:2" json:"version"`
	Position  int            `gorm:"not null;uniqueIndex:idx_match_events_order,priority:3" json:"position"`
	Payload   datatypes.JSON `json:"payload"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (MatchEvent) TableName() string { return "match_events" }
