package engine

import (
	"strings"
	"time"
)

func CanCreate(challengerID, defenderID string) error {
	if strings.TrimSpace(challengerID) == "" || strings.TrimSpace(defenderID) == "" {
		return illegal("both players are required")
	}
	if challengerID == defenderID {
		return illegal("a player cannot challenge themselves")
	}
	return nil
}

// CanRespond guards accept and decline. Status is checked before role so a
// losing racer always sees IllegalTransition.
func CanRespond(m Match, callerID string) error {
	if m.Status() != StatusPendingAccept {
		return illegal("match %s is %s, not %s", m.ID, m.Status(), StatusPendingAccept)
	}
	if callerID != m.Players[1] {
		return unauthorized("only the challenged player can respond to match %s", m.ID)
	}
	return nil
}

func CanOpenRound(m Match, attackerID, videoURL string) error {
	active, ok := m.Phase.(Active)
	if !ok {
		return illegal("match %s is %s, not %s", m.ID, m.Status(), StatusActive)
	}
	if attackerID == "" || attackerID != active.Turn {
		return illegal("it is not %s's turn in match %s", attackerID, m.ID)
	}
	if active.OpenRound != "" {
		return illegal("match %s already has open round %s", m.ID, active.OpenRound)
	}
	if strings.TrimSpace(videoURL) == "" {
		return illegal("a round cannot open without the attacker's video")
	}
	return nil
}

func CanCloseRound(m Match, r Round, defenderID string) error {
	if err := roundIsCurrent(m, r); err != nil {
		return err
	}
	if r.DefenderID != defenderID {
		return illegal("%s is not the defender of round %s", defenderID, r.ID)
	}
	return nil
}

// CanExpireRound guards the deadline sweep.
func CanExpireRound(m Match, r Round, now time.Time) error {
	if err := roundIsCurrent(m, r); err != nil {
		return err
	}
	if !r.Overdue(now) {
		return illegal("round %s is not past its reply deadline", r.ID)
	}
	return nil
}

func roundIsCurrent(m Match, r Round) error {
	if r.MatchID != m.ID {
		return illegal("round %s does not belong to match %s", r.ID, m.ID)
	}
	if !r.Open() {
		return illegal("round %s is already %s", r.ID, r.Status)
	}
	if m.Status() != StatusActive {
		return illegal("match %s is %s, not %s", m.ID, m.Status(), StatusActive)
	}
	if r.ID != m.OpenRoundID() {
		return illegal("round %s is not the open round of match %s", r.ID, m.ID)
	}
	return nil
}
