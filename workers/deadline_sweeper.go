package workers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"skate-match-system/engine"
	"skate-match-system/services"
)

// DeadlineSweeper resolves rounds whose defender let the reply window run
// out. Each expiry goes through the normal commit protocol, so a sweep that
// races a late reply simply loses.
type DeadlineSweeper struct {
	matches   *services.MatchService
	publisher *services.Publisher
	interval  time.Duration
	batchSize int
}

func NewDeadlineSweeper(matches *services.MatchService, publisher *services.Publisher, interval time.Duration, batchSize int) *DeadlineSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &DeadlineSweeper{
		matches:   matches,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start schedules the sweep until ctx is cancelled.
func (w *DeadlineSweeper) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			if _, err := w.SweepOnce(ctx); err != nil {
				log.Printf("[SWEEP] sweep failed: %v", err)
			}
		}),
		gocron.WithName("round-deadline-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}
	sched.Start()
	log.Printf("🔁 Starting round deadline sweeper (every %s)", w.interval)

	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			log.Printf("[SWEEP] scheduler shutdown: %v", err)
		}
	}()
	return nil
}

// SweepOnce expires one batch of overdue rounds and returns how many it
// resolved.
func (w *DeadlineSweeper) SweepOnce(ctx context.Context) (int, error) {
	rounds, err := w.matches.OverdueRounds(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, r := range rounds {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		res, err := w.matches.ExpireRound(ctx, r.MatchID, r.ID)
		switch {
		case err == nil:
			expired++
			log.Printf("[SWEEP] round %s of match %s timed out, %s gets a letter", r.ID, r.MatchID, r.DefenderID)
			if w.publisher != nil {
				w.publisher.Publish(ctx, res)
			}
		case errors.Is(err, engine.ErrIllegalTransition), errors.Is(err, engine.ErrNotFound):
			// answered or otherwise resolved since it was listed
		default:
			log.Printf("[SWEEP] failed to expire round %s of match %s: %v", r.ID, r.MatchID, err)
		}
	}
	return expired, nil
}
