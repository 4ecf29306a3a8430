package combat

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/legendraid/internal/game/dice"
	"github.com/cory-johannsen/legendraid/internal/game/effect"
	"github.com/cory-johannsen/legendraid/internal/game/stats"
	"github.com/cory-johannsen/legendraid/internal/game/tables"
)

// ErrBattleStarted is returned when a setup failure arrives after the first engagement.
var ErrBattleStarted = errors.New("battle already started")

// ActionKind enumerates the transitions a battle accepts.
type ActionKind int

const (
	ActionAct ActionKind = iota
	ActionForfeit
	ActionFailSetup
)

// Action is one client or system request against a battle.
type Action struct {
	Kind ActionKind
	// Choice indexes the actor's selected skills (raid) or names the skill (duel).
	Choice int
}

// Act returns an ActionAct for choice.
func Act(choice int) Action { return Action{Kind: ActionAct, Choice: choice} }

// Forfeit returns an ActionForfeit.
func Forfeit() Action { return Action{Kind: ActionForfeit} }

// FailSetup returns an ActionFailSetup.
func FailSetup() Action { return Action{Kind: ActionFailSetup} }

// RaidState is the complete state of one raid. It is a value: ApplyRaid never mutates its input.
type RaidState struct {
	Boss     Boss
	Party    []Member
	Tables   tables.Tables
	Ledger   *effect.Ledger
	Schedule Schedule
	Log      []string
	Outcome  Outcome
}

// NewRaidState builds the opening state of a raid.
//
// Precondition: party must not be empty.
// Postcondition: Schedule.Order contains every living member; the ledger is empty.
func NewRaidState(boss Boss, party []Member, tb tables.Tables) RaidState {
	s := RaidState{
		Boss:     boss,
		Party:    party,
		Tables:   tb,
		Ledger:   effect.NewLedger(RaidEngagementsPerTurn),
		Schedule: NewSchedule(party),
	}
	s.Log = append(s.Log,
		fmt.Sprintf("The raid against %s begins.", boss.Name),
		"--- Turn 1 ---",
	)
	return s
}

// Clone returns a deep copy of s. Tables and skill lists are shared; they are immutable.
func (s RaidState) Clone() RaidState {
	c := s
	c.Party = append([]Member(nil), s.Party...)
	c.Log = append([]string(nil), s.Log...)
	if s.Ledger != nil {
		c.Ledger = s.Ledger.Clone()
	} else {
		c.Ledger = effect.NewLedger(RaidEngagementsPerTurn)
	}
	c.Schedule = s.Schedule.clone()
	return c
}

// Terminal reports whether the raid has ended.
func (s RaidState) Terminal() bool {
	return s.Outcome.Terminal()
}

// CounterHit records the damage one member took from a boss counter-action.
type CounterHit struct {
	Member int
	Damage float64
}

// RaidResult describes what one transition did.
type RaidResult struct {
	// NoOp is set when the action changed nothing, such as acting after the end.
	NoOp         bool
	Actor        int
	Skill        int
	SkillDamage  float64
	Multiplier   float64
	BossSkill    *Skill
	Hits         []CounterHit
	Heal         float64
	Buckets      effect.Buckets
	EffectDamage float64
	NewTurn      bool
}

// ApplyRaid is the pure raid transition: it returns the state after a, leaving s untouched.
//
// An act resolves one engagement: the actor's skill damage (doubled when the skill's first
// effect favors the party and the boss attacks, or harms the boss and the boss heals), effect
// activation, the boss counter, an outcome check, the engagement advance, cumulative effect
// damage with ledger decay, a second outcome check, and the move to the next actor.
//
// Precondition: src must be non-nil.
// Postcondition: Acting on a terminal state returns it unchanged with NoOp set.
// Postcondition: Returns ErrInvalidSkill, and s unchanged, for a choice outside the actor's selection.
func ApplyRaid(s RaidState, a Action, src dice.Source) (RaidState, RaidResult, error) {
	if s.Terminal() {
		return s, RaidResult{NoOp: true, Actor: s.Schedule.Current()}, nil
	}

	switch a.Kind {
	case ActionForfeit:
		next := s.Clone()
		next.Outcome = OutcomeForfeit
		next.Log = append(next.Log, "The party gives up. The raid is forfeited.")
		return next, RaidResult{Actor: next.Schedule.Current()}, nil
	case ActionFailSetup:
		if s.Schedule.Engagement > 1 {
			return s, RaidResult{NoOp: true}, ErrBattleStarted
		}
		next := s.Clone()
		next.Outcome = OutcomeSetupError
		next.Log = append(next.Log, "Battle preparation never completed. The raid is lost.")
		return next, RaidResult{Actor: next.Schedule.Current()}, nil
	case ActionAct:
		return actRaid(s, a.Choice, src)
	}
	return s, RaidResult{NoOp: true}, fmt.Errorf("unknown action kind %d", a.Kind)
}

func actRaid(s RaidState, choice int, src dice.Source) (RaidState, RaidResult, error) {
	actor := s.Schedule.Current()
	if actor < 0 || actor >= len(s.Party) || !s.Party[actor].Alive() {
		next := s.Clone()
		res := RaidResult{NoOp: true, Actor: actor}
		res.NewTurn = next.Schedule.Advance(next.Party)
		if res.NewTurn {
			next.Log = append(next.Log, fmt.Sprintf("--- Turn %d ---", next.Schedule.Turn))
		}
		return next, res, nil
	}

	skillIdx, skill, err := s.Party[actor].SkillAt(choice)
	if err != nil {
		return s, RaidResult{NoOp: true, Actor: actor}, fmt.Errorf("member %d choice %d: %w", actor, choice, err)
	}

	next := s.Clone()
	member := &next.Party[actor]
	res := RaidResult{Actor: actor, Skill: skillIdx, Multiplier: 1}
	eng := next.Schedule.Engagement

	var bossSkill *Skill
	if n := len(next.Boss.Skills); n > 0 {
		picked := next.Boss.Skills[src.Intn(n)]
		bossSkill = &picked
	}
	res.BossSkill = bossSkill

	defs := next.Tables.EffectsFor(actor, skillIdx)
	kind := tables.KindNone
	if len(defs) > 0 {
		kind = defs[0].Kind()
	}
	res.Multiplier = damageMultiplier(kind, bossSkill)

	fav, unfav := next.Tables.AffinityFor(actor, skillIdx)
	base := SkillDamage(skill.Power, member.Scores.Combat, fav, unfav, RaidSkillGrowth, eng)
	res.SkillDamage = base * res.Multiplier
	next.Boss.HP -= res.SkillDamage

	line := fmt.Sprintf("%s uses [%s]. P%d/N%d, ", member.Name, skill.Name, fav, unfav)
	if res.Multiplier > 1 {
		line += fmt.Sprintf("%.1f x%.0f = %.1f damage", base, res.Multiplier, res.SkillDamage)
	} else {
		line += fmt.Sprintf("%.1f damage", res.SkillDamage)
	}
	next.Log = append(next.Log, line+fmt.Sprintf(" (boss HP %.1f)", max(next.Boss.HP, 0)))

	next.Ledger.Add(actor, skillIdx, defs...)

	bossCounter(&next, actor, bossSkill, eng, &res)

	if o := ResolveRaid(next.Boss.HP, next.Party); o.Terminal() {
		next.finish(o)
		return next, res, nil
	}

	next.Schedule.Engagement++
	res.Buckets = next.Ledger.Aggregate()
	res.EffectDamage = RaidEffectDamage(
		res.Buckets,
		stats.Average(memberScores(next.Party), func(sc stats.Scores) float64 { return sc.Combat }),
		stats.Average(memberScores(next.Party), func(sc stats.Scores) float64 { return sc.Support }),
		next.Schedule.Engagement,
		next.Ledger.Len() > 0,
	)
	if res.EffectDamage > 0 {
		next.Boss.HP -= res.EffectDamage
		next.Log = append(next.Log, fmt.Sprintf("Lingering effects deal %.1f (boss HP %.1f)", res.EffectDamage, next.Boss.HP))
	}
	next.Ledger.Tick()

	if o := ResolveRaid(next.Boss.HP, next.Party); o.Terminal() {
		next.finish(o)
		return next, res, nil
	}

	res.NewTurn = next.Schedule.Advance(next.Party)
	if res.NewTurn {
		next.Log = append(next.Log, fmt.Sprintf("--- Turn %d ---", next.Schedule.Turn))
	}
	return next, res, nil
}

// damageMultiplier doubles damage when a party-favoring effect meets a boss attack,
// or a boss-harming effect meets a boss heal.
func damageMultiplier(kind tables.Kind, bossSkill *Skill) float64 {
	if bossSkill == nil {
		return 1
	}
	switch {
	case kind == tables.KindAGain && bossSkill.Class.Offensive():
		return doubleDamage
	case kind == tables.KindBHarm && bossSkill.Class == ClassHeal:
		return doubleDamage
	}
	return 1
}

func bossCounter(s *RaidState, actor int, skill *Skill, eng int, res *RaidResult) {
	if skill == nil || len(AliveOrder(s.Party)) == 0 {
		return
	}
	s.Log = append(s.Log, fmt.Sprintf("%s counters with [%s]", s.Boss.Name, skill.Name))

	switch skill.Class {
	case ClassSingle:
		target := actor
		if target < 0 || target >= len(s.Party) || !s.Party[target].Alive() {
			target = AliveOrder(s.Party)[0]
		}
		s.hit(target, BossDamage(skill.Power, s.Tables.ThreatFor(target), eng), res)
	case ClassArea:
		s.Log = append(s.Log, "It strikes the whole party!")
		for _, i := range AliveOrder(s.Party) {
			s.hit(i, BossDamage(skill.Power, s.Tables.ThreatFor(i), eng), res)
		}
	case ClassHeal:
		res.Heal = BossDamage(skill.Power, stats.DefaultThreat, eng)
		s.Boss.HP += res.Heal
		s.Log = append(s.Log, fmt.Sprintf("%s recovers %.1f (boss HP %.1f)", s.Boss.Name, res.Heal, s.Boss.HP))
	}
}

func (s *RaidState) hit(i int, dmg float64, res *RaidResult) {
	m := &s.Party[i]
	m.HP -= dmg
	res.Hits = append(res.Hits, CounterHit{Member: i, Damage: dmg})
	s.Log = append(s.Log, fmt.Sprintf("%s takes %.1f damage (HP %.1f)", m.Name, dmg, max(m.HP, 0)))
}

func (s *RaidState) finish(o Outcome) {
	s.Outcome = o
	switch o {
	case OutcomeWin:
		s.Log = append(s.Log, fmt.Sprintf("%s is defeated. The raid is won!", s.Boss.Name))
	case OutcomeLose:
		s.Log = append(s.Log, "Every party member has fallen. The raid is lost.")
	}
}

func memberScores(party []Member) []stats.Scores {
	out := make([]stats.Scores, len(party))
	for i, m := range party {
		out[i] = m.Scores
	}
	return out
}
