package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skate-match-system/engine"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := Open(DriverSQLite, "file::memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewGormStore(db)
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
}

func createMatch(t *testing.T, s Store, id string) engine.Match {
	t.Helper()
	out, err := engine.NewMatch(id, "alice", "bob", t0)
	require.NoError(t, err)
	m, err := s.Commit(context.Background(), Write{Match: out.Match, Create: true})
	require.NoError(t, err)
	return m
}

func acceptMatch(t *testing.T, s Store, m engine.Match) engine.Match {
	t.Helper()
	out, err := engine.Accept(m, "bob", t0)
	require.NoError(t, err)
	m, err = s.Commit(context.Background(), Write{Match: out.Match, ExpectedVersion: m.Version})
	require.NoError(t, err)
	return m
}

func TestCommitCreateAndLoad(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m := createMatch(t, s, "m1")
		assert.Equal(t, int64(1), m.Version)

		snap, err := s.Load(ctx, "m1", "")
		require.NoError(t, err)
		assert.Equal(t, engine.Pending{}, snap.Match.Phase)
		assert.Equal(t, [2]string{"alice", "bob"}, snap.Match.Players)
		assert.Equal(t, int64(1), snap.Match.Version)
		assert.Nil(t, snap.Round)

		_, err = s.Load(ctx, "missing", "")
		assert.ErrorIs(t, err, ErrNotFound)

		out, err := engine.NewMatch("m1", "carol", "dave", t0)
		require.NoError(t, err)
		_, err = s.Commit(ctx, Write{Match: out.Match, Create: true})
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestCommitRejectsStaleVersion(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m := createMatch(t, s, "m1")

		accepted, err := engine.Accept(m, "bob", t0)
		require.NoError(t, err)
		declined, err := engine.Decline(m, "bob", t0)
		require.NoError(t, err)

		committed, err := s.Commit(ctx, Write{Match: accepted.Match, ExpectedVersion: m.Version})
		require.NoError(t, err)
		assert.Equal(t, int64(2), committed.Version)

		_, err = s.Commit(ctx, Write{Match: declined.Match, ExpectedVersion: m.Version})
		assert.ErrorIs(t, err, ErrConflict)

		snap, err := s.Load(ctx, "m1", "")
		require.NoError(t, err)
		assert.Equal(t, engine.StatusActive, snap.Match.Status())
	})
}

func TestRoundLifecycleRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m := acceptMatch(t, s, createMatch(t, s, "m1"))

		opened, err := engine.OpenRound(m, engine.RoundOpening{
			RoundID: "r1", AttackerID: "alice", VideoURL: "https://cdn/a.mp4", TrickName: "Kickflip", ReplyWindow: time.Hour,
		}, t0)
		require.NoError(t, err)
		m, err = s.Commit(ctx, Write{
			Match:           opened.Match,
			ExpectedVersion: m.Version,
			InsertRound:     opened.Round,
			Events:          []Event{{ID: "e1", MatchID: "m1", RoundID: "r1", Type: engine.EventRoundOpened, Payload: []byte(`{"index":1}`), CreatedAt: t0}},
		})
		require.NoError(t, err)

		snap, err := s.Load(ctx, "m1", "")
		require.NoError(t, err)
		require.NotNil(t, snap.Round)
		assert.Equal(t, "r1", snap.Round.ID)
		assert.Equal(t, "kickflip", snap.Round.TrickSlug)
		assert.True(t, snap.Round.DeadlineReplyAt.Equal(t0.Add(time.Hour)))
		assert.Equal(t, engine.Active{Turn: "alice", OpenRound: "r1"}, snap.Match.Phase)

		closedAt := t0.Add(90 * time.Minute)
		closed, err := engine.CloseRound(snap.Match, *snap.Round, engine.Reply{DefenderID: "bob", VideoURL: "https://cdn/b.mp4"}, engine.DefaultWord, closedAt)
		require.NoError(t, err)
		_, err = s.Commit(ctx, Write{Match: closed.Match, ExpectedVersion: m.Version, UpdateRound: closed.Round})
		require.NoError(t, err)

		snap, err = s.Load(ctx, "m1", "r1")
		require.NoError(t, err)
		require.NotNil(t, snap.Round)
		assert.Equal(t, engine.ResultBail, snap.Round.DefenderResult)
		assert.Equal(t, "https://cdn/b.mp4", snap.Round.DefenderVideoURL)
		assert.True(t, snap.Round.UpdatedAt.Equal(closedAt), "updated_at %v", snap.Round.UpdatedAt)
		assert.True(t, snap.Round.CreatedAt.Equal(t0))
		assert.Equal(t, 1, snap.Match.P2Letters)
		assert.Empty(t, snap.Match.OpenRoundID())

		rounds, err := s.ListRounds(ctx, "m1")
		require.NoError(t, err)
		require.Len(t, rounds, 1)
		assert.Equal(t, 1, rounds[0].Index)

		events, err := s.ListEvents(ctx, "m1")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.JSONEq(t, `{"index":1}`, string(events[0].Payload))

		_, err = s.Load(ctx, "m1", "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestEventsKeepCommitOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		out, err := engine.NewMatch("m1", "alice", "bob", t0)
		require.NoError(t, err)
		m, err := s.Commit(ctx, Write{
			Match:  out.Match,
			Create: true,
			Events: []Event{{ID: "zz", MatchID: "m1", Type: engine.EventMatchCreated, CreatedAt: t0}},
		})
		require.NoError(t, err)

		// same timestamp, ids sorting against write order
		accepted, err := engine.Accept(m, "bob", t0)
		require.NoError(t, err)
		_, err = s.Commit(ctx, Write{
			Match:           accepted.Match,
			ExpectedVersion: m.Version,
			Events: []Event{
				{ID: "yy", MatchID: "m1", Type: engine.EventRoundClosed, CreatedAt: t0},
				{ID: "aa", MatchID: "m1", Type: engine.EventMatchCompleted, CreatedAt: t0},
			},
		})
		require.NoError(t, err)

		events, err := s.ListEvents(ctx, "m1")
		require.NoError(t, err)
		require.Len(t, events, 3)
		var ids []string
		for _, e := range events {
			ids = append(ids, e.ID)
		}
		assert.Equal(t, []string{"zz", "yy", "aa"}, ids)
		assert.Equal(t, int64(1), events[0].Version)
		assert.Equal(t, int64(2), events[1].Version)
		assert.Equal(t, 0, events[1].Position)
		assert.Equal(t, int64(2), events[2].Version)
		assert.Equal(t, 1, events[2].Position)
	})
}

func TestCommitRejectsDuplicateRoundSlot(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m := acceptMatch(t, s, createMatch(t, s, "m1"))

		first, err := engine.OpenRound(m, engine.RoundOpening{RoundID: "r1", AttackerID: "alice", VideoURL: "v"}, t0)
		require.NoError(t, err)
		_, err = s.Commit(ctx, Write{Match: first.Match, ExpectedVersion: m.Version, InsertRound: first.Round})
		require.NoError(t, err)

		second, err := engine.OpenRound(m, engine.RoundOpening{RoundID: "r2", AttackerID: "alice", VideoURL: "v"}, t0)
		require.NoError(t, err)
		_, err = s.Commit(ctx, Write{Match: second.Match, ExpectedVersion: m.Version, InsertRound: second.Round})
		assert.ErrorIs(t, err, ErrConflict)

		rounds, err := s.ListRounds(ctx, "m1")
		require.NoError(t, err)
		assert.Len(t, rounds, 1)
	})
}

func TestConcurrentCommitsHaveOneWinner(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m := acceptMatch(t, s, createMatch(t, s, "m1"))

		const racers = 8
		var wg sync.WaitGroup
		errs := make([]error, racers)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out, err := engine.OpenRound(m, engine.RoundOpening{RoundID: fmt.Sprintf("r%d", i), AttackerID: "alice", VideoURL: "v"}, t0)
				if err != nil {
					errs[i] = err
					return
				}
				_, errs[i] = s.Commit(ctx, Write{Match: out.Match, ExpectedVersion: m.Version, InsertRound: out.Round})
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.True(t, errors.Is(err, ErrConflict), "got %v", err)
		}
		assert.Equal(t, 1, wins)

		rounds, err := s.ListRounds(ctx, "m1")
		require.NoError(t, err)
		assert.Len(t, rounds, 1)
	})
}

func TestListQueries(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m1 := acceptMatch(t, s, createMatch(t, s, "m1"))
		createMatch(t, s, "m2")

		matches, err := s.ListMatchesForPlayer(ctx, "bob", 10)
		require.NoError(t, err)
		assert.Len(t, matches, 2)
		matches, err = s.ListMatchesForPlayer(ctx, "carol", 10)
		require.NoError(t, err)
		assert.Empty(t, matches)

		opened, err := engine.OpenRound(m1, engine.RoundOpening{RoundID: "r1", AttackerID: "alice", VideoURL: "v", ReplyWindow: time.Hour}, t0)
		require.NoError(t, err)
		_, err = s.Commit(ctx, Write{Match: opened.Match, ExpectedVersion: m1.Version, InsertRound: opened.Round})
		require.NoError(t, err)

		overdue, err := s.ListOverdueRounds(ctx, t0.Add(30*time.Minute), 10)
		require.NoError(t, err)
		assert.Empty(t, overdue)

		overdue, err = s.ListOverdueRounds(ctx, t0.Add(2*time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, overdue, 1)
		assert.Equal(t, "r1", overdue[0].ID)
	})
}

func TestRecordResultIsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.RecordResult(ctx, "m1", "alice", "bob", t0))
		require.NoError(t, s.RecordResult(ctx, "m1", "alice", "bob", t0))
		require.NoError(t, s.RecordResult(ctx, "m2", "alice", "bob", t0))

		alice, err := s.Stats(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(2), alice.Wins)
		assert.Equal(t, int64(2), alice.CurrentStreak)
		assert.Equal(t, int64(2), alice.BestStreak)

		require.NoError(t, s.RecordResult(ctx, "m3", "bob", "alice", t0))
		alice, err = s.Stats(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(1), alice.Losses)
		assert.Zero(t, alice.CurrentStreak)
		assert.Equal(t, int64(2), alice.BestStreak)

		bob, err := s.Stats(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, int64(1), bob.Wins)
		assert.Equal(t, int64(2), bob.Losses)

		nobody, err := s.Stats(ctx, "carol")
		require.NoError(t, err)
		assert.Zero(t, nobody.Wins)
	})
}
