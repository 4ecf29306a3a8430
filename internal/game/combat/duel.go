package combat

import (
	"fmt"
	"slices"

	"github.com/cory-johannsen/legendraid/internal/game/dice"
	"github.com/cory-johannsen/legendraid/internal/game/effect"
	"github.com/cory-johannsen/legendraid/internal/game/tables"
)

const (
	// DuelChallenger and DuelOpponent are the table owner ids of the two duelists.
	DuelChallenger = 1
	DuelOpponent   = 2
	// DefaultDuelTurns is the duel turn cap when none is configured.
	DefaultDuelTurns = 3

	basicAttackName = "Basic Attack"
)

// DuelTurn is one resolved duel turn. The persisted history of these is the duel's source of truth.
type DuelTurn struct {
	Turn         int            `json:"turn"`
	SkillA       int            `json:"skillA"`
	SkillB       int            `json:"skillB"`
	SkillAName   string         `json:"skillAName"`
	SkillBName   string         `json:"skillBName"`
	Buckets      effect.Buckets `json:"buckets"`
	SkillDamageA float64        `json:"skillDmgA"`
	SkillDamageB float64        `json:"skillDmgB"`
	EffectDamA   float64        `json:"cumDmgA"`
	EffectDamB   float64        `json:"cumDmgB"`
	TotalDamageA float64        `json:"totalDmgA"`
	TotalDamageB float64        `json:"totalDmgB"`
	HPABefore    float64        `json:"hpA_before"`
	HPBBefore    float64        `json:"hpB_before"`
	HPAAfter     float64        `json:"hpA_after"`
	HPBAfter     float64        `json:"hpB_after"`
	Narration    string         `json:"narration"`
	// Forced marks an entry that ended the duel without resolving a turn.
	Forced  bool    `json:"forced,omitempty"`
	Outcome Outcome `json:"outcome,omitempty"`
}

// DuelState is the state of a duel between a challenger (A) and an opponent (B).
// It is rebuilt from the persisted history on every request.
type DuelState struct {
	A        Member
	B        Member
	Tables   tables.Tables
	Ledger   *effect.Ledger
	Turn     int
	MaxTurns int
	History  []DuelTurn
	Outcome  Outcome
}

// NewDuelState builds the opening state of a duel.
//
// Precondition: maxTurns >= 1.
// Postcondition: Turn == 1; both duelists are at full health.
func NewDuelState(a, b Member, tb tables.Tables, maxTurns int) DuelState {
	return DuelState{
		A:        a,
		B:        b,
		Tables:   tb,
		Ledger:   effect.NewLedger(DuelEngagementsPerTurn),
		Turn:     1,
		MaxTurns: max(maxTurns, 1),
	}
}

// Clone returns a deep copy of s.
func (s DuelState) Clone() DuelState {
	c := s
	c.History = append([]DuelTurn(nil), s.History...)
	if s.Ledger != nil {
		c.Ledger = s.Ledger.Clone()
	} else {
		c.Ledger = effect.NewLedger(DuelEngagementsPerTurn)
	}
	return c
}

// Terminal reports whether the duel has ended.
func (s DuelState) Terminal() bool {
	return s.Outcome.Terminal()
}

// ApplyDuel resolves one duel turn with the challenger's chosen skill and a uniformly random
// opponent skill drawn from src.
//
// Precondition: src must be non-nil.
// Postcondition: Returns ErrInvalidSkill, and s unchanged, when choice is not among Tables.Choices.
// Postcondition: Acting on a terminal duel returns it unchanged with a zero DuelTurn.
func ApplyDuel(s DuelState, choice int, src dice.Source) (DuelState, DuelTurn, error) {
	if s.Terminal() {
		return s, DuelTurn{}, nil
	}
	if !slices.Contains(s.Tables.Choices, choice) {
		return s, DuelTurn{}, fmt.Errorf("duel choice %d: %w", choice, ErrInvalidSkill)
	}
	enemy := 0
	if n := len(s.B.Skills); n > 0 {
		enemy = src.Intn(n)
	}
	next := s.Clone()
	turn := next.resolveTurn(choice, enemy)
	return next, turn, nil
}

// ReplayDuel rebuilds a duel by re-resolving every recorded turn from the opening state.
// Recorded opponent picks are reused, so replay is deterministic.
//
// Postcondition: The result equals the state that produced history, as long as inputs are unchanged.
func ReplayDuel(opening DuelState, history []DuelTurn) DuelState {
	s := opening.Clone()
	for _, h := range history {
		if s.Terminal() {
			break
		}
		if h.Forced {
			s = EndDuel(s, h.Outcome, h.Narration)
			continue
		}
		s.resolveTurn(h.SkillA, h.SkillB)
	}
	return s
}

// EndDuel forces a terminal outcome, as when a duelist disappears or the challenger forfeits.
//
// Postcondition: A terminal duel is returned unchanged.
func EndDuel(s DuelState, o Outcome, reason string) DuelState {
	if s.Terminal() || !o.Terminal() {
		return s
	}
	next := s.Clone()
	next.Outcome = o
	if reason != "" {
		next.History = append(next.History, DuelTurn{
			Turn:      next.Turn,
			HPABefore: next.A.HP, HPAAfter: next.A.HP,
			HPBBefore: next.B.HP, HPBAfter: next.B.HP,
			Narration: reason,
			Forced:    true,
			Outcome:   o,
		})
	}
	return next
}

func skillOrBasic(m Member, idx int) Skill {
	if idx >= 0 && idx < len(m.Skills) {
		return m.Skills[idx]
	}
	return Skill{Name: basicAttackName}
}

func (s *DuelState) resolveTurn(skillA, skillB int) DuelTurn {
	a := skillOrBasic(s.A, skillA)
	b := skillOrBasic(s.B, skillB)
	turn := s.Turn

	s.Ledger.Add(DuelChallenger, skillA, s.Tables.EffectsFor(DuelChallenger, skillA)...)
	s.Ledger.Add(DuelOpponent, skillB, s.Tables.EffectsFor(DuelOpponent, skillB)...)
	buckets := s.Ledger.Aggregate()

	favA, unfavA := s.Tables.AffinityFor(DuelChallenger, skillA)
	favB, unfavB := s.Tables.AffinityFor(DuelOpponent, skillB)

	skillDmgA := Round1(SkillDamage(a.Power, s.A.Scores.Combat, favA, unfavA, DuelGrowth, turn))
	skillDmgB := Round1(SkillDamage(b.Power, s.B.Scores.Combat, favB, unfavB, DuelGrowth, turn))
	effDmgA := Round1(DuelEffectDamage(buckets.AGain, buckets.AHarm, s.A.Scores.Support, s.B.Scores.Combat, turn))
	effDmgB := Round1(DuelEffectDamage(buckets.BGain, buckets.BHarm, s.B.Scores.Support, s.A.Scores.Combat, turn))

	offered := make([]float64, len(s.Tables.Choices))
	for i, c := range s.Tables.Choices {
		offered[i] = s.Tables.SkillScore(c)
	}
	totalA := (skillDmgA + effDmgA) * ChoiceWeight(s.Tables.SkillScore(skillA), offered)
	totalB := (skillDmgB + effDmgB) * ChoiceWeight(s.Tables.SkillScore(skillB), offered)

	entry := DuelTurn{
		Turn:         turn,
		SkillA:       skillA,
		SkillB:       skillB,
		SkillAName:   a.Name,
		SkillBName:   b.Name,
		Buckets:      buckets,
		SkillDamageA: skillDmgA,
		SkillDamageB: skillDmgB,
		EffectDamA:   effDmgA,
		EffectDamB:   effDmgB,
		TotalDamageA: totalA,
		TotalDamageB: totalB,
		HPABefore:    s.A.HP,
		HPBBefore:    s.B.HP,
	}
	s.B.HP = Round1(s.B.HP - totalA)
	s.A.HP = Round1(s.A.HP - totalB)
	entry.HPAAfter = s.A.HP
	entry.HPBAfter = s.B.HP
	s.Ledger.Tick()

	s.Outcome = ResolveDuel(s.A.HP, s.B.HP, turn, s.MaxTurns)
	entry.Outcome = s.Outcome
	entry.Narration = duelNarration(*s, entry)
	s.History = append(s.History, entry)
	if !s.Terminal() {
		s.Turn++
	}
	return entry
}

func duelNarration(s DuelState, t DuelTurn) string {
	line := fmt.Sprintf("Turn %d: %s uses [%s] for %.1f, %s answers with [%s] for %.1f.",
		t.Turn, s.A.Name, t.SkillAName, t.TotalDamageA, s.B.Name, t.SkillBName, t.TotalDamageB)
	switch s.Outcome {
	case OutcomeWin:
		line += fmt.Sprintf(" %s wins the duel.", s.A.Name)
	case OutcomeLose, OutcomeTimeout:
		line += fmt.Sprintf(" %s wins the duel.", s.B.Name)
	}
	return line
}
