package combat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/legendraid/internal/game/combat"
	"github.com/cory-johannsen/legendraid/internal/game/dice"
	"github.com/cory-johannsen/legendraid/internal/game/tables"
)

func duelist(name string, hp float64) combat.Member {
	return combat.Member{
		ID:    name,
		Name:  name,
		MaxHP: int(hp),
		HP:    hp,
		Skills: []combat.Skill{
			{Name: "Feint"}, {Name: "Lunge"}, {Name: "Parry"}, {Name: "Riposte"},
		},
		Selected: []int{0, 1, 2, 3},
	}
}

const effectPayload = `{
  "effects": [
    {"owner": 1, "skillIndex": 0, "effects": [
      {"name": "Bleed", "target": "B", "benefitTo": "A", "turns": 2, "turnWeights": [1, 9], "valid": "t"}
    ]},
    {"owner": 1, "skillIndex": 1, "effects": [
      {"name": "Bulwark", "target": "A", "benefitTo": "A", "turns": 3, "valid": true}
    ]},
    {"owner": 2, "skillIndex": 2, "effects": [
      {"name": "Miasma", "target": "C", "benefitTo": "B", "turns": 2}
    ]}
  ],
  "choices": [0, 1, 2]
}`

func TestApplyDuel_NeutralDuelRunsToTheCap(t *testing.T) {
	s := combat.NewDuelState(duelist("Ayla", 140), duelist("Bren", 140), tables.Defaults(tables.DuelShape()), 3)

	want := []float64{106.7, 70.0, 29.7}
	for i, hp := range want {
		var turn combat.DuelTurn
		var err error
		s, turn, err = combat.ApplyDuel(s, 0, dice.NewSeededSource(uint64(i)))
		require.NoError(t, err)
		assert.Equal(t, i+1, turn.Turn)
		assert.InDelta(t, hp, s.A.HP, 1e-9, "challenger hp after turn %d", i+1)
		assert.InDelta(t, hp, s.B.HP, 1e-9, "opponent hp after turn %d", i+1)
	}
	assert.Equal(t, combat.OutcomeTimeout, s.Outcome, "equal hit points at the cap go to the opponent")
	assert.Equal(t, tables.SideB, s.Outcome.Winner())
	assert.Len(t, s.History, 3)
	assert.Equal(t, 3, s.Turn)
}

func TestApplyDuel_FirstTurnBreakdown(t *testing.T) {
	s := combat.NewDuelState(duelist("Ayla", 140), duelist("Bren", 140), tables.Defaults(tables.DuelShape()), 3)

	_, turn, err := combat.ApplyDuel(s, 1, &dice.Sequence{3})
	require.NoError(t, err)
	assert.Equal(t, 1, turn.SkillA)
	assert.Equal(t, 3, turn.SkillB)
	assert.Equal(t, "Lunge", turn.SkillAName)
	assert.Equal(t, "Riposte", turn.SkillBName)
	assert.Equal(t, 13.3, turn.SkillDamageA)
	assert.Equal(t, 20.0, turn.EffectDamA)
	assert.InDelta(t, 33.3, turn.TotalDamageA, 1e-9)
	assert.Equal(t, 140.0, turn.HPABefore)
	assert.InDelta(t, 106.7, turn.HPBAfter, 1e-9)
	assert.Contains(t, turn.Narration, "Ayla uses [Lunge]")
}

func TestApplyDuel_InvalidChoice(t *testing.T) {
	s := combat.NewDuelState(duelist("Ayla", 140), duelist("Bren", 140), tables.Defaults(tables.DuelShape()), 3)

	next, _, err := combat.ApplyDuel(s, 3, &dice.Sequence{})
	require.ErrorIs(t, err, combat.ErrInvalidSkill)
	assert.Equal(t, s, next)
}

func TestApplyDuel_KnockoutEndsImmediately(t *testing.T) {
	s := combat.NewDuelState(duelist("Ayla", 140), duelist("Bren", 10), tables.Defaults(tables.DuelShape()), 3)

	s, _, err := combat.ApplyDuel(s, 0, &dice.Sequence{0})
	require.NoError(t, err)
	assert.Equal(t, combat.OutcomeWin, s.Outcome)
	assert.Equal(t, 1, s.Turn)
	assert.Contains(t, s.History[0].Narration, "Ayla wins the duel")

	after, turn, err := combat.ApplyDuel(s, 0, &dice.Sequence{0})
	require.NoError(t, err)
	assert.Equal(t, s, after)
	assert.Zero(t, turn.Turn)
}

func TestApplyDuel_ChallengerDown(t *testing.T) {
	s := combat.NewDuelState(duelist("Ayla", 10), duelist("Bren", 140), tables.Defaults(tables.DuelShape()), 3)

	s, _, err := combat.ApplyDuel(s, 0, &dice.Sequence{0})
	require.NoError(t, err)
	assert.Equal(t, combat.OutcomeLose, s.Outcome)
}

func TestApplyDuel_EffectsShapeDamage(t *testing.T) {
	tb := tables.Coerce([]byte(effectPayload), tables.DuelShape())
	s := combat.NewDuelState(duelist("Ayla", 400), duelist("Bren", 400), tb, 5)

	s, first, err := combat.ApplyDuel(s, 0, &dice.Sequence{0})
	require.NoError(t, err)
	_, second, err := combat.ApplyDuel(s, 2, &dice.Sequence{0})
	require.NoError(t, err)

	assert.InDelta(t, 0.11, first.Buckets.BHarm, 0.005)
	assert.InDelta(t, 0.99, second.Buckets.BHarm, 0.005)
	assert.Greater(t, second.EffectDamB, first.EffectDamB)
}

func TestEndDuel(t *testing.T) {
	s := combat.NewDuelState(duelist("Ayla", 140), duelist("Bren", 140), tables.Defaults(tables.DuelShape()), 3)

	ended := combat.EndDuel(s, combat.OutcomeForfeit, "Ayla yields.")
	assert.Equal(t, combat.OutcomeForfeit, ended.Outcome)
	require.Len(t, ended.History, 1)
	assert.True(t, ended.History[0].Forced)
	assert.Equal(t, 140.0, ended.History[0].HPAAfter)
	assert.Empty(t, s.History, "input is not modified")

	assert.Equal(t, ended, combat.EndDuel(ended, combat.OutcomeWin, "late"))
	assert.Equal(t, s, combat.EndDuel(s, combat.OutcomeNone, "nothing"))
}

func TestReplayDuel_MatchesLivePlay(t *testing.T) {
	tb := tables.Coerce([]byte(effectPayload), tables.DuelShape())
	opening := combat.NewDuelState(duelist("Ayla", 400), duelist("Bren", 400), tb, 5)

	src := dice.NewSeededSource(42)
	live := opening
	for _, choice := range []int{0, 1, 2, 0} {
		var err error
		live, _, err = combat.ApplyDuel(live, choice, src)
		require.NoError(t, err)
	}
	live = combat.EndDuel(live, combat.OutcomeForfeit, "Ayla yields.")

	replayed := combat.ReplayDuel(opening, live.History)
	assert.Equal(t, live.History, replayed.History)
	assert.Equal(t, live.A.HP, replayed.A.HP)
	assert.Equal(t, live.B.HP, replayed.B.HP)
	assert.Equal(t, live.Turn, replayed.Turn)
	assert.Equal(t, live.Outcome, replayed.Outcome)
	assert.Equal(t, live.Ledger.All(), replayed.Ledger.All())
}

func TestProperty_DuelReplayIsDeterministic(t *testing.T) {
	tb := tables.Coerce([]byte(effectPayload), tables.DuelShape())
	rapid.Check(t, func(rt *rapid.T) {
		hpA := float64(rapid.IntRange(20, 300).Draw(rt, "hpA"))
		hpB := float64(rapid.IntRange(20, 300).Draw(rt, "hpB"))
		maxTurns := rapid.IntRange(1, 8).Draw(rt, "maxTurns")
		opening := combat.NewDuelState(duelist("Ayla", hpA), duelist("Bren", hpB), tb, maxTurns)
		src := dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed"))

		live := opening
		for !live.Terminal() {
			choice := tb.Choices[rapid.IntRange(0, len(tb.Choices)-1).Draw(rt, "choice")]
			next, _, err := combat.ApplyDuel(live, choice, src)
			if err != nil {
				rt.Fatalf("turn %d: %v", live.Turn, err)
			}
			live = next
		}
		if live.Turn > maxTurns {
			rt.Fatalf("duel ran to turn %d past cap %d", live.Turn, maxTurns)
		}
		replayed := combat.ReplayDuel(opening, live.History)
		if replayed.A.HP != live.A.HP || replayed.B.HP != live.B.HP || replayed.Outcome != live.Outcome {
			rt.Fatalf("replay diverged: live %v/%v %q, replay %v/%v %q",
				live.A.HP, live.B.HP, live.Outcome, replayed.A.HP, replayed.B.HP, replayed.Outcome)
		}
	})
}
