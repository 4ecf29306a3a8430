package effect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/legendraid/internal/game/effect"
	"github.com/cory-johannsen/legendraid/internal/game/tables"
)

func bossHarm(turns int, weights ...float64) tables.EffectDef {
	return tables.EffectDef{Name: "burn", Target: tables.SideB, BenefitTo: tables.SideA, Turns: turns, Weights: weights, Valid: true}
}

func TestNewActive_RemainingScalesWithPerTurn(t *testing.T) {
	a := effect.NewActive(bossHarm(2), 0, 1, 3)
	assert.Equal(t, 6, a.Remaining)
	assert.Equal(t, 0, a.Elapsed)
	assert.Equal(t, tables.KindBHarm, a.Kind)
}

func TestWeight_UnweightedCountsAsOneAndIsBoosted(t *testing.T) {
	a := effect.NewActive(bossHarm(2), 0, 0, 1)
	assert.InDelta(t, 1.1, a.Weight(), 1e-12)
	a.Elapsed = 1
	assert.InDelta(t, 1.1, a.Weight(), 1e-12, "every live engagement reuses the single weight")

	assert.InDelta(t, 1.2, effect.NewActive(bossHarm(3), 0, 0, 3).Weight(), 1e-12)
	assert.InDelta(t, 1.0, effect.NewActive(bossHarm(1), 0, 0, 1).Weight(), 1e-12)
}

func TestWeight_ThreeTurnBoost(t *testing.T) {
	a := effect.NewActive(bossHarm(3, 2, 2, 6), 0, 0, 1)
	assert.InDelta(t, 0.2*1.2, a.Weight(), 1e-12)
}

// An effect lasting two turns with weights [1, 9] contributes nine times more on its
// second engagement than on its first.
func TestLedger_WeightShapeAcrossEngagements(t *testing.T) {
	l := effect.NewLedger(1)
	l.Add(0, 0, bossHarm(2, 1, 9))

	first := l.Aggregate().BHarm
	l.Tick()
	second := l.Aggregate().BHarm

	assert.InDelta(t, 0.11, first, 1e-12)
	assert.InDelta(t, 0.99, second, 1e-12)
	assert.InDelta(t, 9.0, second/first, 1e-9)
}

func TestLedger_RaidWeightIndexAdvancesPerTurn(t *testing.T) {
	l := effect.NewLedger(3)
	l.Add(0, 0, bossHarm(2, 1, 9))

	var seen []float64
	for i := 0; i < 6; i++ {
		seen = append(seen, l.Aggregate().BHarm)
		l.Tick()
	}
	assert.InDeltaSlice(t, []float64{0.11, 0.11, 0.11, 0.99, 0.99, 0.99}, seen, 1e-12)
	assert.Equal(t, 0, l.Len())
}

func TestBuckets_SharedLandsTwiceAtHalfStrength(t *testing.T) {
	l := effect.NewLedger(1)
	l.Add(1, 0, tables.EffectDef{Target: tables.SideBoth, BenefitTo: tables.SideA, Turns: 1, Valid: true})
	l.Add(2, 0, tables.EffectDef{Target: tables.SideA, BenefitTo: tables.SideB, Turns: 1, Valid: false})

	b := l.Aggregate()
	assert.InDelta(t, 0.5, b.AGain, 1e-12)
	assert.InDelta(t, 0.5, b.BHarm, 1e-12)
	assert.InDelta(t, 0.5, b.AHarm, 1e-12, "invalid effects count half")
	assert.Zero(t, b.BGain)
}

func TestLedger_TickReturnsExpiredInOrder(t *testing.T) {
	l := effect.NewLedger(1)
	l.Add(0, 0, bossHarm(1))
	l.Add(0, 1, bossHarm(2))
	l.Add(0, 2, bossHarm(1))

	expired := l.Tick()
	require.Len(t, expired, 2)
	assert.Equal(t, 0, expired[0].Skill)
	assert.Equal(t, 2, expired[1].Skill)
	assert.Equal(t, 1, l.Len())
}

func TestLedger_CloneIsIndependent(t *testing.T) {
	l := effect.NewLedger(3)
	l.Add(0, 0, bossHarm(1))
	c := l.Clone()
	c.Tick()
	assert.Equal(t, 3, l.All()[0].Remaining)
	assert.Equal(t, 2, c.All()[0].Remaining)
}

func TestProperty_DecrementsSumToDurationExactlyOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		turns := rapid.IntRange(1, tables.MaxEffectTurns).Draw(rt, "turns")
		perTurn := rapid.IntRange(1, 3).Draw(rt, "per_turn")
		l := effect.NewLedger(perTurn)
		l.Add(0, 0, bossHarm(turns))

		total := turns * perTurn
		ticks := 0
		for l.Len() > 0 {
			a := l.All()[0]
			if a.Remaining+a.Elapsed != total || a.Remaining < 0 {
				rt.Fatalf("invariant broken: remaining=%d elapsed=%d total=%d", a.Remaining, a.Elapsed, total)
			}
			assert.Greater(rt, l.Aggregate().BHarm, 0.0)
			l.Tick()
			ticks++
		}
		assert.Equal(rt, total, ticks)
		// absent from the aggregation the engagement after it reached zero
		assert.Zero(rt, l.Aggregate().BHarm)
		assert.Empty(rt, l.Tick())
	})
}
