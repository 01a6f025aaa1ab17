package handlers

import (
	"time"

	"skate-match-system/engine"
	"skate-match-system/services"
)

type lettersJSON struct {
	P1      int    `json:"p1"`
	P2      int    `json:"p2"`
	P1Label string `json:"p1_label"`
	P2Label string `json:"p2_label"`
}

type matchJSON struct {
	ID           string         `json:"id"`
	Players      [2]string      `json:"players"`
	CreatedBy    string         `json:"created_by"`
	Status       engine.Status  `json:"status"`
	Turn         string         `json:"turn,omitempty"`
	OpenRoundID  string         `json:"open_round_id,omitempty"`
	WinnerID     string         `json:"winner_id,omitempty"`
	Letters      lettersJSON    `json:"letters"`
	RoundsCount  int            `json:"rounds_count"`
	Version      int64          `json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActionAt time.Time      `json:"last_action_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	NextAction   *engine.Action `json:"next_action,omitempty"`
	OpenRound    *roundJSON     `json:"open_round,omitempty"`
}

type roundJSON struct {
	ID               string                `json:"id"`
	MatchID          string                `json:"match_id"`
	Index            int                   `json:"index"`
	AttackerID       string                `json:"attacker_id"`
	DefenderID       string                `json:"defender_id"`
	AttackerVideoURL string                `json:"attacker_video_url"`
	TrickName        string                `json:"trick_name,omitempty"`
	TrickSlug        string                `json:"trick_slug,omitempty"`
	DefenderResult   engine.DefenderResult `json:"defender_result"`
	DefenderVideoURL string                `json:"defender_video_url,omitempty"`
	Status           engine.RoundStatus    `json:"status"`
	DeadlineReplyAt  *time.Time            `json:"deadline_reply_at,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func toMatchJSON(m engine.Match, word engine.Word) matchJSON {
	return matchJSON{
		ID:          m.ID,
		Players:     m.Players,
		CreatedBy:   m.CreatedBy,
		Status:      m.Status(),
		Turn:        m.Turn(),
		OpenRoundID: m.OpenRoundID(),
		WinnerID:    m.WinnerID(),
		Letters: lettersJSON{
			P1:      m.P1Letters,
			P2:      m.P2Letters,
			P1Label: word.Label(m.P1Letters),
			P2Label: word.Label(m.P2Letters),
		},
		RoundsCount:  m.RoundsCount,
		Version:      m.Version,
		CreatedAt:    m.CreatedAt,
		LastActionAt: m.LastActionAt,
		FinishedAt:   m.FinishedAt,
	}
}

func toViewJSON(v services.View, word engine.Word) matchJSON {
	out := toMatchJSON(v.Match, word)
	next := v.Next
	out.NextAction = &next
	if v.OpenRound != nil && v.OpenRound.Open() {
		r := toRoundJSON(*v.OpenRound)
		out.OpenRound = &r
	}
	return out
}

func toRoundJSON(r engine.Round) roundJSON {
	out := roundJSON{
		ID:               r.ID,
		MatchID:          r.MatchID,
		Index:            r.Index,
		AttackerID:       r.AttackerID,
		DefenderID:       r.DefenderID,
		AttackerVideoURL: r.AttackerVideoURL,
		TrickName:        r.TrickName,
		TrickSlug:        r.TrickSlug,
		DefenderResult:   r.DefenderResult,
		DefenderVideoURL: r.DefenderVideoURL,
		Status:           r.Status,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if !r.DeadlineReplyAt.IsZero() {
		d := r.DeadlineReplyAt
		out.DeadlineReplyAt = &d
	}
	return out
}
