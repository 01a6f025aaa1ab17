package services

import (
	"context"
	"log"
)

// Publisher runs the side effects owed after a commit: notifications and,
// for a finished match, the player stats.
type Publisher struct {
	dispatcher *Dispatcher
	stats      *StatsService
}

func NewPublisher(d *Dispatcher, stats *StatsService) *Publisher {
	return &Publisher{dispatcher: d, stats: stats}
}

func (p *Publisher) Publish(ctx context.Context, res Result) {
	if p.stats != nil {
		if err := p.stats.RecordMatch(ctx, res.Match); err != nil {
			log.Printf("[MATCH] failed to record result of %s: %v", res.Match.ID, err)
		}
	}
	if p.dispatcher != nil {
		p.dispatcher.Dispatch(ctx, res.Notifications)
	}
}
