package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweepable is anything that can evict idle entries as of a point in time.
type Sweepable interface {
	Sweep(now time.Time) []string
}

// Sweeper periodically evicts idle sessions from one or more stores.
//
// Invariant: each store is swept at most once per interval.
type Sweeper struct {
	interval time.Duration
	stores   []Sweepable
	logger   *zap.Logger
}

// NewSweeper returns a sweeper that fires every interval.
//
// Precondition: interval must be > 0; logger must be non-nil.
func NewSweeper(interval time.Duration, logger *zap.Logger, stores ...Sweepable) *Sweeper {
	if interval <= 0 {
		panic("session.NewSweeper: interval must be > 0")
	}
	return &Sweeper{interval: interval, stores: stores, logger: logger}
}

// SweepOnce sweeps every store once and returns the total number of evicted sessions.
func (s *Sweeper) SweepOnce(now time.Time) int {
	total := 0
	for _, st := range s.stores {
		evicted := st.Sweep(now)
		if len(evicted) > 0 {
			s.logger.Info("evicted idle sessions",
				zap.Int("count", len(evicted)),
				zap.Strings("battle_ids", evicted),
			)
		}
		total += len(evicted)
	}
	return total
}

// Run sweeps every interval until ctx is cancelled.
//
// Postcondition: Returns ctx.Err() once ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.SweepOnce(now)
		}
	}
}
