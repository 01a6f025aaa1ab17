package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skate-match-system/engine"
	"skate-match-system/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyStore fails the next n commits with ErrConflict before delegating.
type flakyStore struct {
	store.Store
	failures atomic.Int32
	commits  atomic.Int32
}

func (f *flakyStore) Commit(ctx context.Context, w store.Write) (engine.Match, error) {
	f.commits.Add(1)
	if f.failures.Add(-1) >= 0 {
		return engine.Match{}, store.ErrConflict
	}
	return f.Store.Commit(ctx, w)
}

func newService(t *testing.T, st store.Store) (*MatchService, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewMatchService(st, Options{
		MaxAttempts:    4,
		BackoffInitial: time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
		Clock:          clock.Now,
	})
	return svc, clock
}

func newSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	db, err := store.Open(store.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return store.NewGormStore(db)
}

func forEachStore(t *testing.T, fn func(t *testing.T, st store.Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, store.NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
}

func eventTypes(t *testing.T, svc *MatchService, matchID string) []engine.EventType {
	t.Helper()
	events, err := svc.ListEvents(context.Background(), matchID)
	require.NoError(t, err)
	types := make([]engine.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func activeMatch(t *testing.T, svc *MatchService) engine.Match {
	t.Helper()
	ctx := context.Background()
	created, err := svc.CreateMatch(ctx, "alice", "bob")
	require.NoError(t, err)
	accepted, err := svc.AcceptMatch(ctx, created.Match.ID, "bob")
	require.NoError(t, err)
	return accepted.Match
}

func TestCreateAndAccept(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore())
	ctx := context.Background()

	created, err := svc.CreateMatch(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPendingAccept, created.Match.Status())
	assert.Equal(t, "alice", created.Match.Turn())
	assert.Equal(t, int64(1), created.Match.Version)
	assert.Empty(t, created.Notifications)

	accepted, err := svc.AcceptMatch(ctx, created.Match.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusActive, accepted.Match.Status())
	assert.Equal(t, "alice", accepted.Match.Turn())
	assert.Equal(t, int64(2), accepted.Match.Version)
	assert.Equal(t, []engine.Notification{{MatchID: created.Match.ID, Recipient: "alice", Type: engine.NotifyYourTurn}}, accepted.Notifications)

	_, err = svc.CreateMatch(ctx, "alice", "alice")
	assert.ErrorIs(t, err, engine.ErrIllegalTransition)
}

func TestUnknownMatch(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore())
	ctx := context.Background()

	_, err := svc.AcceptMatch(ctx, "nope", "bob")
	assert.ErrorIs(t, err, engine.ErrNotFound)
	_, err = svc.GetMatch(ctx, "nope", "bob")
	assert.ErrorIs(t, err, engine.ErrNotFound)
	_, err = svc.ListRounds(ctx, "nope")
	assert.ErrorIs(t, err, engine.ErrNotFound)

	m := activeMatch(t, svc)
	_, err = svc.CloseRound(ctx, m.ID, "missing-round", "bob", "v", true)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestBailScenario(t *testing.T) {
	forEachStore(t, func(t *testing.T, st store.Store) {
		svc, _ := newService(t, st)
		ctx := context.Background()
		m := activeMatch(t, svc)

		opened, err := svc.OpenRound(ctx, m.ID, "alice", "v1", "")
		require.NoError(t, err)
		require.NotNil(t, opened.Round)

		closed, err := svc.CloseRound(ctx, m.ID, opened.Round.ID, "bob", "v2", false)
		require.NoError(t, err)
		assert.Equal(t, 1, closed.Match.P2Letters)
		assert.Equal(t, engine.StatusActive, closed.Match.Status())
		assert.Equal(t, "alice", closed.Match.Turn())
		assert.Empty(t, closed.Match.OpenRoundID())

		assert.Equal(t, []engine.EventType{engine.EventMatchCreated, engine.EventMatchAccepted, engine.EventRoundOpened, engine.EventRoundClosed}, eventTypes(t, svc, m.ID))
		events, err := svc.ListEvents(ctx, m.ID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"ACTIVE","turn":"alice","p1_letters":0,"p2_letters":1,"round_index":1,"defender_result":"BAIL"}`, string(events[3].Payload))
	})
}

func TestNonTurnPlayerCannotOpenRound(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore())
	ctx := context.Background()
	m := activeMatch(t, svc)

	_, err := svc.OpenRound(ctx, m.ID, "bob", "v1", "")
	assert.ErrorIs(t, err, engine.ErrIllegalTransition)

	view, err := svc.GetMatch(ctx, m.ID, "bob")
	require.NoError(t, err)
	assert.Zero(t, view.Match.RoundsCount)
	assert.Nil(t, view.OpenRound)
	rounds, err := svc.ListRounds(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, rounds)
}

func TestTrickNameTooLong(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore())
	m := activeMatch(t, svc)

	long := make([]byte, MaxTrickNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err := svc.OpenRound(context.Background(), m.ID, "alice", "v1", string(long))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLongNonASCIITrickName(t *testing.T) {
	forEachStore(t, func(t *testing.T, st store.Store) {
		svc, _ := newService(t, st)
		ctx := context.Background()
		m := activeMatch(t, svc)

		trick := strings.Repeat("滑", MaxTrickNameLength)
		opened, err := svc.OpenRound(ctx, m.ID, "alice", "v1", trick)
		require.NoError(t, err)
		assert.Equal(t, trick, opened.Round.TrickName)
		assert.LessOrEqual(t, len(opened.Round.TrickSlug), engine.MaxTrickSlugLength)

		rounds, err := svc.ListRounds(ctx, m.ID)
		require.NoError(t, err)
		require.Len(t, rounds, 1)
		assert.Equal(t, opened.Round.TrickSlug, rounds[0].TrickSlug)
	})
}

func TestCloseRoundTwice(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore())
	ctx := context.Background()
	m := activeMatch(t, svc)

	opened, err := svc.OpenRound(ctx, m.ID, "alice", "v1", "")
	require.NoError(t, err)
	_, err = svc.CloseRound(ctx, m.ID, opened.Round.ID, "bob", "v2", true)
	require.NoError(t, err)

	_, err = svc.CloseRound(ctx, m.ID, opened.Round.ID, "bob", "v2", false)
	assert.ErrorIs(t, err, engine.ErrIllegalTransition)

	view, err := svc.GetMatch(ctx, m.ID, "alice")
	require.NoError(t, err)
	assert.Zero(t, view.Match.P2Letters)
	assert.Equal(t, engine.ActionSetTrick, view.Next.Kind)
}

func TestFiveBailsFinishTheMatch(t *testing.T) {
	forEachStore(t, func(t *testing.T, st store.Store) {
		svc, _ := newService(t, st)
		ctx := context.Background()
		m := activeMatch(t, svc)

		var last Result
		for i := 1; i <= engine.MaxLetters; i++ {
			opened, err := svc.OpenRound(ctx, m.ID, "alice", fmt.Sprintf("v%d", i), "Kickflip")
			require.NoError(t, err)
			assert.Equal(t, i, opened.Round.Index)
			last, err = svc.CloseRound(ctx, m.ID, opened.Round.ID, "bob", "", false)
			require.NoError(t, err)
		}

		assert.Equal(t, engine.Completed{Winner: "alice"}, last.Match.Phase)
		assert.NotNil(t, last.Match.FinishedAt)
		assert.Equal(t, "SKATE", svc.Word().Label(last.Match.P2Letters))
		assert.ElementsMatch(t, []engine.Notification{
			{MatchID: m.ID, Recipient: "bob", Type: engine.NotifyLetterAssigned, Letter: "E"},
			{MatchID: m.ID, Recipient: "alice", Type: engine.NotifyGameWon},
			{MatchID: m.ID, Recipient: "bob", Type: engine.NotifyGameLost},
		}, last.Notifications)

		_, err := svc.OpenRound(ctx, m.ID, "alice", "v6", "")
		assert.ErrorIs(t, err, engine.ErrIllegalTransition)

		types := eventTypes(t, svc, m.ID)
		require.Len(t, types, 2+2*engine.MaxLetters+1)
		assert.Equal(t, []engine.EventType{engine.EventRoundClosed, engine.EventMatchCompleted}, types[len(types)-2:])
	})
}

func TestConcurrentAcceptAndDecline(t *testing.T) {
	for i := 0; i < 20; i++ {
		svc, _ := newService(t, store.NewMemoryStore())
		ctx := context.Background()
		created, err := svc.CreateMatch(ctx, "alice", "bob")
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = svc.AcceptMatch(ctx, created.Match.ID, "bob")
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = svc.DeclineMatch(ctx, created.Match.ID, "bob")
		}()
		wg.Wait()

		failures := 0
		for _, err := range errs {
			if err != nil {
				failures++
				assert.ErrorIs(t, err, engine.ErrIllegalTransition)
			}
		}
		assert.Equal(t, 1, failures)

		view, err := svc.GetMatch(ctx, created.Match.ID, "bob")
		require.NoError(t, err)
		if errs[0] == nil {
			assert.Equal(t, engine.StatusActive, view.Match.Status())
		} else {
			assert.Equal(t, engine.StatusDeclined, view.Match.Status())
		}
	}
}

func TestConcurrentOpenRoundOpensOne(t *testing.T) {
	svc, _ := newService(t, store.NewMemoryStore())
	ctx := context.Background()
	m := activeMatch(t, svc)

	const racers = 10
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.OpenRound(ctx, m.ID, "alice", fmt.Sprintf("v%d", i), "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, engine.ErrIllegalTransition)
	}
	assert.Equal(t, 1, wins)

	rounds, err := svc.ListRounds(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, 1, rounds[0].Index)
}

func TestConflictIsRetried(t *testing.T) {
	st := &flakyStore{Store: store.NewMemoryStore()}
	svc, _ := newService(t, st)
	m := activeMatch(t, svc)

	st.failures.Store(2)
	st.commits.Store(0)
	res, err := svc.OpenRound(context.Background(), m.ID, "alice", "v1", "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), st.commits.Load())
	assert.Equal(t, 1, res.Round.Index)
}

func TestRetryBudgetExhausted(t *testing.T) {
	st := &flakyStore{Store: store.NewMemoryStore()}
	svc, _ := newService(t, st)
	m := activeMatch(t, svc)

	st.failures.Store(100)
	st.commits.Store(0)
	_, err := svc.OpenRound(context.Background(), m.ID, "alice", "v1", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrContention), "got %v", err)
	assert.Equal(t, int32(4), st.commits.Load())

	view, err := svc.GetMatch(context.Background(), m.ID, "alice")
	require.NoError(t, err)
	assert.Zero(t, view.Match.RoundsCount)
}

func TestDomainErrorsAreNotRetried(t *testing.T) {
	st := &flakyStore{Store: store.NewMemoryStore()}
	svc, _ := newService(t, st)
	m := activeMatch(t, svc)

	st.commits.Store(0)
	_, err := svc.AcceptMatch(context.Background(), m.ID, "bob")
	assert.ErrorIs(t, err, engine.ErrIllegalTransition)
	assert.Zero(t, st.commits.Load())
}

func TestExpireRound(t *testing.T) {
	svc, clock := newService(t, store.NewMemoryStore())
	ctx := context.Background()
	m := activeMatch(t, svc)

	opened, err := svc.OpenRound(ctx, m.ID, "alice", "v1", "")
	require.NoError(t, err)

	_, err = svc.ExpireRound(ctx, m.ID, opened.Round.ID)
	assert.ErrorIs(t, err, engine.ErrIllegalTransition)
	overdue, err := svc.OverdueRounds(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	clock.Advance(DefaultReplyWindow)
	overdue, err = svc.OverdueRounds(ctx, 10)
	require.NoError(t, err)
	require.Len(t, overdue, 1)

	res, err := svc.ExpireRound(ctx, m.ID, opened.Round.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.ResultTimeout, res.Round.DefenderResult)
	assert.Equal(t, 1, res.Match.P2Letters)

	_, err = svc.CloseRound(ctx, m.ID, opened.Round.ID, "bob", "late", true)
	assert.ErrorIs(t, err, engine.ErrIllegalTransition)
}
