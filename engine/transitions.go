package engine

import (
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// Outcome is the result of a pure transition: the next match state, the
// round it created or closed (if any), the event log entries and the
// notifications owed once it commits. Match.Version is left untouched.
type Outcome struct {
	Match         Match
	Round         *Round
	RoundCreated  bool
	Events        []EventType
	Notifications []Notification
}

func NewMatch(id, challengerID, defenderID string, now time.Time) (Outcome, error) {
	if err := CanCreate(challengerID, defenderID); err != nil {
		return Outcome{}, err
	}
	m := Match{
		ID:           id,
		Players:      [2]string{challengerID, defenderID},
		CreatedBy:    challengerID,
		Phase:        Pending{},
		CreatedAt:    now,
		LastActionAt: now,
	}
	return Outcome{Match: m, Events: []EventType{EventMatchCreated}}, nil
}

func Accept(m Match, callerID string, now time.Time) (Outcome, error) {
	if err := CanRespond(m, callerID); err != nil {
		return Outcome{}, err
	}
	challenger := m.Players[0]
	m.Phase = Active{Turn: challenger}
	m.LastActionAt = now
	return Outcome{
		Match:  m,
		Events: []EventType{EventMatchAccepted},
		Notifications: []Notification{
			{MatchID: m.ID, Recipient: challenger, Type: NotifyYourTurn},
		},
	}, nil
}

func Decline(m Match, callerID string, now time.Time) (Outcome, error) {
	if err := CanRespond(m, callerID); err != nil {
		return Outcome{}, err
	}
	m.Phase = Declined{}
	m.LastActionAt = now
	return Outcome{Match: m, Events: []EventType{EventMatchDeclined}}, nil
}

type RoundOpening struct {
	RoundID     string
	AttackerID  string
	VideoURL    string
	TrickName   string
	ReplyWindow time.Duration
}

// OpenRound lets the turn holder set a trick. The round index is derived
// from the snapshot's RoundsCount, never from a cached counter.
func OpenRound(m Match, in RoundOpening, now time.Time) (Outcome, error) {
	if err := CanOpenRound(m, in.AttackerID, in.VideoURL); err != nil {
		return Outcome{}, err
	}
	defenderID, _ := m.Opponent(in.AttackerID)
	nextIndex := m.RoundsCount + 1
	trick := strings.TrimSpace(in.TrickName)
	r := Round{
		ID:               in.RoundID,
		MatchID:          m.ID,
		Index:            nextIndex,
		AttackerID:       in.AttackerID,
		DefenderID:       defenderID,
		AttackerVideoURL: strings.TrimSpace(in.VideoURL),
		TrickName:        trick,
		DefenderResult:   ResultPending,
		Status:           RoundAwaitingDefender,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if trick != "" {
		r.TrickSlug = TrickSlug(trick)
	}
	if in.ReplyWindow > 0 {
		r.DeadlineReplyAt = now.Add(in.ReplyWindow)
	}
	m.Phase = Active{Turn: in.AttackerID, OpenRound: r.ID}
	m.RoundsCount = nextIndex
	m.LastActionAt = now
	return Outcome{
		Match:        m,
		Round:        &r,
		RoundCreated: true,
		Events:       []EventType{EventRoundOpened},
		Notifications: []Notification{
			{MatchID: m.ID, Recipient: defenderID, Type: NotifyYourTurn},
		},
	}, nil
}

// MaxTrickSlugLength bounds TrickSlug in bytes. Transliteration can make a
// slug several times longer than the trick name it came from.
const MaxTrickSlugLength = 96

// TrickSlug returns the URL-safe form of a trick name, cut back to the last
// whole word that fits in MaxTrickSlugLength.
func TrickSlug(name string) string {
	s := slug.Make(name)
	if len(s) <= MaxTrickSlugLength {
		return s
	}
	s = s[:MaxTrickSlugLength]
	if cut := strings.LastIndexByte(s, '-'); cut > 0 {
		s = s[:cut]
	}
	return strings.Trim(s, "-")
}

type Reply struct {
	DefenderID string
	VideoURL   string
	DidMake    bool
}

// CloseRound records the defender's reply. A make changes no letters; a
// bail gives the defender one letter and may end the match. The attacker
// keeps the turn either way.
func CloseRound(m Match, r Round, reply Reply, word Word, now time.Time) (Outcome, error) {
	if err := CanCloseRound(m, r, reply.DefenderID); err != nil {
		return Outcome{}, err
	}
	r.DefenderVideoURL = strings.TrimSpace(reply.VideoURL)
	if reply.DidMake {
		r.DefenderResult = ResultMake
	} else {
		r.DefenderResult = ResultBail
	}
	return settle(m, r, word, now, EventRoundClosed)
}

// ExpireRound resolves a round whose reply deadline passed as a TIMEOUT,
// scored like a bail.
func ExpireRound(m Match, r Round, word Word, now time.Time) (Outcome, error) {
	if err := CanExpireRound(m, r, now); err != nil {
		return Outcome{}, err
	}
	r.DefenderResult = ResultTimeout
	return settle(m, r, word, now, EventRoundExpired)
}

func settle(m Match, r Round, word Word, now time.Time, event EventType) (Outcome, error) {
	r.Status = RoundComplete
	r.UpdatedAt = now
	m.LastActionAt = now

	attacker, defender := r.AttackerID, r.DefenderID
	out := Outcome{Round: &r, Events: []EventType{event}}

	if r.DefenderResult == ResultMake {
		m.Phase = Active{Turn: attacker}
		out.Match = m
		out.Notifications = []Notification{{MatchID: m.ID, Recipient: attacker, Type: NotifyYourTurn}}
		return out, nil
	}

	count := AddLetter(m.Letters(defender))
	m.setLetters(defender, count)
	out.Notifications = append(out.Notifications, Notification{
		MatchID:   m.ID,
		Recipient: defender,
		Type:      NotifyLetterAssigned,
		Letter:    word.Letter(count),
	})

	if winner, done := Winner(m); done {
		finished := now
		m.Phase = Completed{Winner: winner}
		m.FinishedAt = &finished
		out.Events = append(out.Events, EventMatchCompleted)
		out.Notifications = append(out.Notifications,
			Notification{MatchID: m.ID, Recipient: winner, Type: NotifyGameWon},
			Notification{MatchID: m.ID, Recipient: defender, Type: NotifyGameLost},
		)
	} else {
		m.Phase = Active{Turn: attacker}
		out.Notifications = append(out.Notifications, Notification{MatchID: m.ID, Recipient: attacker, Type: NotifyYourTurn})
	}
	out.Match = m
	return out, nil
}
