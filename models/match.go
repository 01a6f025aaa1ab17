package models

import "time"

// Match is the persisted form of a match. Turn, OpenRoundID and WinnerID
// are the flattened phase; Version guards every update.
type Match struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Player1ID    string     `gorm:"type:varchar(64);index;not null" json:"player1_id"`
	Player2ID    string     `gorm:"type:varchar(64);index;not null" json:"player2_id"`
	CreatedBy    string     `gorm:"type:varchar(64);not null" json:"created_by"`
	Status       string     `gorm:"type:varchar(20);index;not null" json:"status"`
	Turn         *string    `gorm:"type:varchar(64)" json:"turn,omitempty"`
	OpenRoundID  *string    `gorm:"type:varchar(36)" json:"open_round_id,omitempty"`
	WinnerID     *string    `gorm:"type:varchar(64)" json:"winner_id,omitempty"`
	P1Letters    int        `gorm:"not null" json:"p1_letters"`
	P2Letters    int        `gorm:"not null" json:"p2_letters"`
	RoundsCount  int        `gorm:"not null" json:"rounds_count"`
	Version      int64      `gorm:"not null" json:"version"`
	LastActionAt time.Time  `gorm:"index" json:"last_action_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Match) TableName() string { return "matches" }
