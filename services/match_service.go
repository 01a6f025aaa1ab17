package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"skate-match-system/engine"
	"skate-match-system/store"
)

// ErrInvalidInput marks malformed request data, as opposed to a request
// the match state does not allow.
var ErrInvalidInput = errors.New("invalid input")

const (
	DefaultMaxAttempts = 4
	MaxTrickNameLength = 80
	DefaultReplyWindow = 24 * time.Hour
)

type Options struct {
	Word           engine.Word
	ReplyWindow    time.Duration
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Clock          func() time.Time
	NewID          func() string
}

func (o Options) withDefaults() Options {
	if o.Word == "" {
		o.Word = engine.DefaultWord
	}
	if o.ReplyWindow <= 0 {
		o.ReplyWindow = DefaultReplyWindow
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 10 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 200 * time.Millisecond
	}
	if o.Clock == nil {
		o.Clock = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// MatchService runs every match operation as read snapshot, guard, pure
// transition and conditional write, re-running the whole sequence when the
// write loses a race. It holds no locks; the store decides who wins.
type MatchService struct {
	store  store.Store
	opts   Options
	tracer trace.Tracer
}

func NewMatchService(st store.Store, opts Options) *MatchService {
	return &MatchService{
		store:  st,
		opts:   opts.withDefaults(),
		tracer: otel.Tracer("skate-match-system/services"),
	}
}

func (s *MatchService) Word() engine.Word { return s.opts.Word }

// Result is a committed operation. Notifications are owed to the players
// and must be dispatched by the caller.
type Result struct {
	Match         engine.Match
	Round         *engine.Round
	Notifications []engine.Notification
	Attempts      int
}

type transition func(snap store.Snapshot, now time.Time) (engine.Outcome, error)

func (s *MatchService) CreateMatch(ctx context.Context, challengerID, defenderID string) (Result, error) {
	challengerID, defenderID = strings.TrimSpace(challengerID), strings.TrimSpace(defenderID)
	return s.run(ctx, "create", "", func() (Result, error) {
		now := s.opts.Clock()
		out, err := engine.NewMatch(s.opts.NewID(), challengerID, defenderID, now)
		if err != nil {
			return Result{}, backoff.Permanent(err)
		}
		return s.write(ctx, out, 0, true, now)
	})
}

func (s *MatchService) AcceptMatch(ctx context.Context, matchID, callerID string) (Result, error) {
	return s.commit(ctx, "accept", matchID, "", func(snap store.Snapshot, now time.Time) (engine.Outcome, error) {
		return engine.Accept(snap.Match, callerID, now)
	})
}

func (s *MatchService) DeclineMatch(ctx context.Context, matchID, callerID string) (Result, error) {
	return s.commit(ctx, "decline", matchID, "", func(snap store.Snapshot, now time.Time) (engine.Outcome, error) {
		return engine.Decline(snap.Match, callerID, now)
	})
}

func (s *MatchService) OpenRound(ctx context.Context, matchID, attackerID, videoURL, trickName string) (Result, error) {
	trickName = strings.TrimSpace(trickName)
	if utf8.RuneCountInString(trickName) > MaxTrickNameLength {
		return Result{}, fmt.Errorf("%w: trick name is longer than %d characters", ErrInvalidInput, MaxTrickNameLength)
	}
	return s.commit(ctx, "open_round", matchID, "", func(snap store.Snapshot, now time.Time) (engine.Outcome, error) {
		return engine.OpenRound(snap.Match, engine.RoundOpening{
			RoundID:     s.opts.NewID(),
			AttackerID:  attackerID,
			VideoURL:    videoURL,
			TrickName:   trickName,
			ReplyWindow: s.opts.ReplyWindow,
		}, now)
	})
}

func (s *MatchService) CloseRound(ctx context.Context, matchID, roundID, defenderID, videoURL string, didMake bool) (Result, error) {
	if roundID == "" {
		return Result{}, fmt.Errorf("%w: round id is required", ErrInvalidInput)
	}
	return s.commit(ctx, "close_round", matchID, roundID, func(snap store.Snapshot, now time.Time) (engine.Outcome, error) {
		return engine.CloseRound(snap.Match, *snap.Round, engine.Reply{
			DefenderID: defenderID,
			VideoURL:   videoURL,
			DidMake:    didMake,
		}, s.opts.Word, now)
	})
}

// ExpireRound resolves an overdue round as a timeout. It races safely with
// a late reply: whichever commits first wins and the other sees the round
// closed.
func (s *MatchService) ExpireRound(ctx context.Context, matchID, roundID string) (Result, error) {
	return s.commit(ctx, "expire_round", matchID, roundID, func(snap store.Snapshot, now time.Time) (engine.Outcome, error) {
		return engine.ExpireRound(snap.Match, *snap.Round, s.opts.Word, now)
	})
}

func (s *MatchService) commit(ctx context.Context, name, matchID, roundID string, step transition) (Result, error) {
	return s.run(ctx, name, matchID, func() (Result, error) {
		snap, err := s.store.Load(ctx, matchID, roundID)
		if err != nil {
			return Result{}, backoff.Permanent(storeError(err))
		}
		if roundID != "" && snap.Round == nil {
			return Result{}, backoff.Permanent(fmt.Errorf("%w: round %s", engine.ErrNotFound, roundID))
		}
		now := s.opts.Clock()
		out, err := step(snap, now)
		if err != nil {
			return Result{}, backoff.Permanent(err)
		}
		return s.write(ctx, out, snap.Match.Version, false, now)
	})
}

// run retries op while it fails with store.ErrConflict, up to MaxAttempts.
func (s *MatchService) run(ctx context.Context, name, matchID string, op func() (Result, error)) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "match."+name, trace.WithAttributes(attribute.String("match.id", matchID)))
	defer span.End()

	attempts := 0
	res, err := backoff.Retry(ctx, func() (Result, error) {
		attempts++
		return op()
	}, backoff.WithBackOff(s.backoff()), backoff.WithMaxTries(uint(s.opts.MaxAttempts)))

	span.SetAttributes(attribute.Int("match.commit_attempts", attempts))
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
		if errors.Is(err, store.ErrConflict) {
			err = fmt.Errorf("%w: %s on match %s gave up after %d attempts", engine.ErrContention, name, matchID, attempts)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	res.Attempts = attempts
	return res, nil
}

func (s *MatchService) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.BackoffInitial
	b.MaxInterval = s.opts.BackoffMax
	b.RandomizationFactor = 0.5
	return b
}

// write commits out. A lost race comes back as a plain store.ErrConflict
// so the retry loop picks it up; anything else is final.
func (s *MatchService) write(ctx context.Context, out engine.Outcome, version int64, create bool, now time.Time) (Result, error) {
	w := store.Write{
		Match:           out.Match,
		ExpectedVersion: version,
		Create:          create,
		Events:          s.events(out, now),
	}
	if out.Round != nil {
		if out.RoundCreated {
			w.InsertRound = out.Round
		} else {
			w.UpdateRound = out.Round
		}
	}
	committed, err := s.store.Commit(ctx, w)
	if errors.Is(err, store.ErrConflict) {
		return Result{}, err
	}
	if err != nil {
		return Result{}, backoff.Permanent(storeError(err))
	}
	return Result{Match: committed, Round: out.Round, Notifications: out.Notifications}, nil
}

type eventPayload struct {
	Status     engine.Status         `json:"status"`
	Turn       string                `json:"turn,omitempty"`
	P1Letters  int                   `json:"p1_letters"`
	P2Letters  int                   `json:"p2_letters"`
	WinnerID   string                `json:"winner_id,omitempty"`
	RoundIndex int                   `json:"round_index,omitempty"`
	Result     engine.DefenderResult `json:"defender_result,omitempty"`
	Trick      string                `json:"trick,omitempty"`
}

func (s *MatchService) events(out engine.Outcome, now time.Time) []store.Event {
	m := out.Match
	payload := eventPayload{
		Status:    m.Status(),
		Turn:      m.Turn(),
		P1Letters: m.P1Letters,
		P2Letters: m.P2Letters,
		WinnerID:  m.WinnerID(),
	}
	var roundID string
	if r := out.Round; r != nil {
		roundID = r.ID
		payload.RoundIndex = r.Index
		payload.Trick = r.TrickName
		if r.DefenderResult != engine.ResultPending {
			payload.Result = r.DefenderResult
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte("{}")
	}

	events := make([]store.Event, 0, len(out.Events))
	for _, t := range out.Events {
		events = append(events, store.Event{
			ID:        s.opts.NewID(),
			MatchID:   m.ID,
			RoundID:   roundID,
			Type:      t,
			Payload:   body,
			CreatedAt: now,
		})
	}
	return events
}

// View is a match as seen by one player.
type View struct {
	Match     engine.Match
	OpenRound *engine.Round
	Next      engine.Action
}

func (s *MatchService) GetMatch(ctx context.Context, matchID, userID string) (View, error) {
	snap, err := s.store.Load(ctx, matchID, "")
	if err != nil {
		return View{}, storeError(err)
	}
	return View{
		Match:     snap.Match,
		OpenRound: snap.Round,
		Next:      engine.NextAction(snap.Match, snap.Round, userID),
	}, nil
}

func (s *MatchService) ListRounds(ctx context.Context, matchID string) ([]engine.Round, error) {
	if _, err := s.store.Load(ctx, matchID, ""); err != nil {
		return nil, storeError(err)
	}
	rounds, err := s.store.ListRounds(ctx, matchID)
	return rounds, storeError(err)
}

func (s *MatchService) ListEvents(ctx context.Context, matchID string) ([]store.Event, error) {
	if _, err := s.store.Load(ctx, matchID, ""); err != nil {
		return nil, storeError(err)
	}
	events, err := s.store.ListEvents(ctx, matchID)
	return events, storeError(err)
}

func (s *MatchService) ListMatchesForPlayer(ctx context.Context, playerID string, limit int) ([]engine.Match, error) {
	matches, err := s.store.ListMatchesForPlayer(ctx, playerID, limit)
	return matches, storeError(err)
}

// OverdueRounds lists open rounds whose reply deadline has passed.
func (s *MatchService) OverdueRounds(ctx context.Context, limit int) ([]engine.Round, error) {
	rounds, err := s.store.ListOverdueRounds(ctx, s.opts.Clock(), limit)
	return rounds, storeError(err)
}

func storeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", engine.ErrNotFound, err)
	}
	return err
}
