package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(idle time.Duration, keep func(int) bool) (*MemoryStore[int], *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(idle, keep)
	s.now = clock.Now
	return s, clock
}

func TestMemoryStore_GetPutRemove(t *testing.T) {
	s, _ := newTestStore(time.Minute, nil)

	_, ok := s.Get("r1")
	assert.False(t, ok)

	s.Put("r1", 7)
	v, ok := s.Get("r1")
	require.True(t, ok)
	assert.Equal(t, 7, v)

	s.Put("r1", 8)
	v, _ = s.Get("r1")
	assert.Equal(t, 8, v)
	assert.Equal(t, 1, s.Len())

	s.Remove("r1")
	s.Remove("missing")
	assert.Zero(t, s.Len())
}

func TestMemoryStore_SweepEvictsIdle(t *testing.T) {
	s, clock := newTestStore(time.Minute, nil)
	s.Put("old", 1)
	clock.Advance(45 * time.Second)
	s.Put("fresh", 2)
	clock.Advance(30 * time.Second)

	evicted := s.Sweep(clock.Now())
	assert.Equal(t, []string{"old"}, evicted)
	_, ok := s.Get("fresh")
	assert.True(t, ok)
}

func TestMemoryStore_GetRefreshesIdleClock(t *testing.T) {
	s, clock := newTestStore(time.Minute, nil)
	s.Put("r1", 1)
	clock.Advance(50 * time.Second)
	_, _ = s.Get("r1")
	clock.Advance(50 * time.Second)

	assert.Empty(t, s.Sweep(clock.Now()))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_KeepProtectsEntries(t *testing.T) {
	s, clock := newTestStore(time.Minute, func(v int) bool { return v < 0 })
	s.Put("unflushed", -1)
	s.Put("idle", 1)
	clock.Advance(time.Hour)

	assert.Equal(t, []string{"idle"}, s.Sweep(clock.Now()))
	_, ok := s.Get("unflushed")
	assert.True(t, ok)
}

func TestMemoryStore_ZeroIdleNeverEvicts(t *testing.T) {
	s, clock := newTestStore(0, nil)
	s.Put("r1", 1)
	clock.Advance(1000 * time.Hour)
	assert.Nil(t, s.Sweep(clock.Now()))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStore[int](time.Minute, nil)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("r%d", i%4)
			s.Put(key, i)
			_, _ = s.Get(key)
			s.Sweep(time.Now())
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, s.Len())
}

func TestProperty_MemoryStoreMatchesMap(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s, _ := newTestStore(time.Minute, nil)
		model := map[string]int{}
		keys := []string{"a", "b", "c"}
		ops := rapid.IntRange(1, 50).Draw(rt, "ops")
		for i := 0; i < ops; i++ {
			key := keys[rapid.IntRange(0, len(keys)-1).Draw(rt, "key")]
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				v := rapid.Int().Draw(rt, "value")
				s.Put(key, v)
				model[key] = v
			case 1:
				s.Remove(key)
				delete(model, key)
			case 2:
				got, ok := s.Get(key)
				want, wantOK := model[key]
				if ok != wantOK || got != want {
					rt.Fatalf("Get(%q) = %d,%v want %d,%v", key, got, ok, want, wantOK)
				}
			}
		}
		if s.Len() != len(model) {
			rt.Fatalf("Len() = %d want %d", s.Len(), len(model))
		}
	})
}

func TestKeyLocker_SerializesSameKey(t *testing.T) {
	k := NewKeyLocker()
	var inflight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(context.Background(), "raid-1")
			if err != nil {
				t.Error(err)
				return
			}
			n := inflight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inflight.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
	assert.Zero(t, k.Held())
}

func TestKeyLocker_DistinctKeysDoNotContend(t *testing.T) {
	k := NewKeyLocker()
	unlockA, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := k.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyLocker_ContextCancelWhileWaiting(t *testing.T) {
	k := NewKeyLocker()
	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Zero(t, k.Held())
}

func TestSweeper_SweepOnceLogsEvictions(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s, clock := newTestStore(time.Minute, nil)
	s.Put("r1", 1)
	clock.Advance(2 * time.Minute)

	sw := NewSweeper(time.Second, zap.New(core), s)
	assert.Equal(t, 1, sw.SweepOnce(clock.Now()))
	require.Equal(t, 1, logs.FilterMessage("evicted idle sessions").Len())
	assert.Zero(t, sw.SweepOnce(clock.Now()))
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	s := NewMemoryStore[int](time.Nanosecond, nil)
	s.Put("r1", 1)
	sw := NewSweeper(5*time.Millisecond, zap.NewNop(), s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestNewSweeper_PanicsOnNonPositiveInterval(t *testing.T) {
	assert.Panics(t, func() { NewSweeper(0, zap.NewNop()) })
}
