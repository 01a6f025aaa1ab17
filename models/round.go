package models

import "time"

// Round rows carry two unique indexes: one slot per (match, index) and at
// most one AWAITING_DEFENDER round per match.
type Round struct {
	ID               string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MatchID          string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_rounds_match_index,priority:1;uniqueIndex:idx_rounds_one_open,where:status = 'AWAITING_DEFENDER'" json:"match_id"`
	RoundIndex       int        `gorm:"not null;uniqueIndex:idx_rounds_match_index,priority:2" json:"index"`
	AttackerID       string     `gorm:"type:varchar(64);not null" json:"attacker_id"`
	DefenderID       string     `gorm:"type:varchar(64);not null" json:"defender_id"`
	AttackerVideoURL string     `gorm:"not null" json:"attacker_video_url"`
	TrickName        string     `gorm:"type:varchar(80)" json:"trick_name,omitempty"`
	TrickSlug        string     `gorm:"type:varchar(96)" json:"trick_slug,omitempty"`
	DefenderResult   string     `gorm:"type:varchar(16);not null" json:"defender_result"`
	DefenderVideoURL string     `json:"defender_video_url,omitempty"`
	Status           string     `gorm:"type:varchar(24);index;not null" json:"status"`
	DeadlineReplyAt  *time.Time `gorm:"index" json:"deadline_reply_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (Round) TableName() string { return "rounds" }
