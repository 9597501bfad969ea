package syncq

import (
	"context"
	"time"
)

// Pacer spaces out items during a drain.
type Pacer interface {
	Wait(ctx context.Context) error
}

// TickerPacer lets one item through per interval. A non-positive interval
// disables pacing.
type TickerPacer struct {
	ticker *time.Ticker
}

func NewTickerPacer(interval time.Duration) *TickerPacer {
	if interval <= 0 {
		return &TickerPacer{}
	}
	return &TickerPacer{ticker: time.NewTicker(interval)}
}

func (p *TickerPacer) Wait(ctx context.Context) error {
	if p.ticker == nil {
		return ctx.Err()
	}
	select {
	case <-p.ticker.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *TickerPacer) Stop() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
}

// NoPacer never waits. Tests use it to drain without wall-clock delay.
type NoPacer struct{}

func (NoPacer) Wait(ctx context.Context) error { return ctx.Err() }
