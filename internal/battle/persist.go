package battle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/cory-johannsen/legendraid/internal/config"
)

// durableWriter retries persistence calls with exponential backoff.
type durableWriter struct {
	attempts uint
	initial  time.Duration
	logger   *zap.Logger
}

func newDurableWriter(cfg config.BattleConfig, logger *zap.Logger) durableWriter {
	return durableWriter{
		attempts: max(cfg.TerminalWriteAttempts, 1),
		initial:  cfg.TerminalWriteBackoff,
		logger:   logger,
	}
}

// write runs op until it succeeds, the attempts are exhausted, or ctx ends.
// Not-found and permission errors are not retried.
//
// Postcondition: Returns nil iff op succeeded; otherwise the error wraps ErrNotDurable and the last cause.
func (w durableWriter) write(ctx context.Context, what, battleID string, op func(context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	if w.initial > 0 {
		eb.InitialInterval = w.initial
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op(ctx)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermission) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(w.attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			w.logger.Warn("battle write failed, retrying",
				zap.String("write", what),
				zap.String("battle_id", battleID),
				zap.Duration("retry_in", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		w.logger.Error("battle write abandoned",
			zap.String("write", what),
			zap.String("battle_id", battleID),
			zap.Uint("attempts", w.attempts),
			zap.Error(err),
		)
		return fmt.Errorf("%s %s: %w: %w", what, battleID, ErrNotDurable, err)
	}
	return nil
}
