package battle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/legendraid/internal/config"
)

func observedWriter(attempts uint) (durableWriter, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	cfg := config.BattleConfig{TerminalWriteAttempts: attempts, TerminalWriteBackoff: time.Millisecond}
	return newDurableWriter(cfg, zap.New(core)), logs
}

func TestDurableWriter_RetriesUntilSuccess(t *testing.T) {
	w, logs := observedWriter(5)
	calls := 0
	err := w.write(context.Background(), "finish raid", "r1", func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, logs.FilterMessage("battle write failed, retrying").Len())
	assert.Zero(t, logs.FilterMessage("battle write abandoned").Len())
}

func TestDurableWriter_GivesUp(t *testing.T) {
	w, logs := observedWriter(2)
	calls := 0
	err := w.write(context.Background(), "finish duel", "d1", func(context.Context) error {
		calls++
		return errFlaky
	})
	require.ErrorIs(t, err, ErrNotDurable)
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 2, calls)

	abandoned := logs.FilterMessage("battle write abandoned").All()
	require.Len(t, abandoned, 1)
	assert.Equal(t, "d1", abandoned[0].ContextMap()["battle_id"])
}

func TestDurableWriter_DoesNotRetryPermanentErrors(t *testing.T) {
	w, _ := observedWriter(5)
	for _, cause := range []error{ErrNotFound, ErrPermission} {
		calls := 0
		err := w.write(context.Background(), "save tables", "r1", func(context.Context) error {
			calls++
			return fmt.Errorf("raid r1: %w", cause)
		})
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, 1, calls, cause.Error())
	}
}

func TestDurableWriter_ZeroAttemptsStillTriesOnce(t *testing.T) {
	w, _ := observedWriter(0)
	calls := 0
	err := w.write(context.Background(), "finish raid", "r1", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
