// Package effect tracks the live, decaying status effects of one battle.
package effect

import (
	"github.com/cory-johannsen/legendraid/internal/game/tables"
)

const (
	sharedBase       = 0.5
	invalidValidity  = 0.5
	twoTurnBoost     = 1.1
	threeTurnBoost   = 1.2
	singleTargetBase = 1.0
)

// Active is a live instance of an EffectDef.
//
// Invariant: Remaining + Elapsed == Def.Turns * PerTurn, and Remaining >= 0.
type Active struct {
	Def  tables.EffectDef
	Kind tables.Kind
	// Owner and Skill identify the skill use that created the effect.
	Owner int
	Skill int
	// PerTurn is the number of engagements one declared turn spans.
	PerTurn   int
	Remaining int
	// Elapsed counts engagements since creation; Elapsed/PerTurn indexes the weight array.
	Elapsed int
}

// NewActive instantiates def, classifying it once.
//
// Precondition: perTurn >= 1 and def.Turns >= 1.
// Postcondition: Remaining == def.Turns * perTurn and Elapsed == 0.
func NewActive(def tables.EffectDef, owner, skill, perTurn int) Active {
	if perTurn < 1 {
		perTurn = 1
	}
	turns := max(def.Turns, 1)
	return Active{
		Def:       def,
		Kind:      def.Kind(),
		Owner:     owner,
		Skill:     skill,
		PerTurn:   perTurn,
		Remaining: turns * perTurn,
	}
}

// Weight returns the effect's share of pressure for the current engagement: the current
// weight-array entry over the array's sum, boosted for two and three turn effects.
// An effect without weights counts as a single weight of 1 on every live engagement.
//
// Postcondition: Returns 0 once the weight pointer runs past a non-empty array.
func (a Active) Weight() float64 {
	w := 1.0
	if len(a.Def.Weights) > 0 {
		idx := a.Elapsed / max(a.PerTurn, 1)
		if idx < 0 || idx >= len(a.Def.Weights) {
			return 0
		}
		sum := 0.0
		for _, v := range a.Def.Weights {
			sum += v
		}
		if sum <= 0 {
			sum = 1
		}
		w = a.Def.Weights[idx] / sum
	}
	switch max(a.Def.Turns, 1) {
	case 2:
		w *= twoTurnBoost
	case 3:
		w *= threeTurnBoost
	}
	return w
}

// Contribution is base x validity x weight, where base is halved for shared effects
// and validity is halved for effects flagged invalid.
func (a Active) Contribution() float64 {
	base := singleTargetBase
	if a.Def.Target == tables.SideBoth {
		base = sharedBase
	}
	validity := 1.0
	if !a.Def.Valid {
		validity = invalidValidity
	}
	return base * validity * a.Weight()
}

// Buckets are the four directional pressure accumulators.
type Buckets struct {
	AGain float64 `json:"AP"`
	AHarm float64 `json:"AN"`
	BGain float64 `json:"BP"`
	BHarm float64 `json:"BN"`
}

// Add accumulates one effect's contribution. Shared effects land in two buckets.
func (b *Buckets) Add(kind tables.Kind, v float64) {
	switch kind {
	case tables.KindAGain:
		b.AGain += v
	case tables.KindAHarm:
		b.AHarm += v
	case tables.KindBGain:
		b.BGain += v
	case tables.KindBHarm:
		b.BHarm += v
	case tables.KindSharedA:
		b.AGain += v
		b.BHarm += v
	case tables.KindSharedB:
		b.BGain += v
		b.AHarm += v
	}
}

// Ledger holds the active effects of one battle in insertion order.
// It is not safe for concurrent use; the caller must serialise access.
type Ledger struct {
	perTurn int
	effects []Active
}

// NewLedger creates an empty Ledger whose effects last perTurn engagements per declared turn.
//
// Precondition: perTurn >= 1.
func NewLedger(perTurn int) *Ledger {
	return &Ledger{perTurn: max(perTurn, 1)}
}

// PerTurn returns the engagements-per-turn factor of the ledger.
func (l *Ledger) PerTurn() int {
	return l.perTurn
}

// Add activates every def for the skill (owner, skill), in order.
//
// Postcondition: Len() grows by len(defs).
func (l *Ledger) Add(owner, skill int, defs ...tables.EffectDef) {
	for _, d := range defs {
		l.effects = append(l.effects, NewActive(d, owner, skill, l.perTurn))
	}
}

// Aggregate sums the contribution of every active effect into directional buckets.
// Effects are visited in insertion order.
func (l *Ledger) Aggregate() Buckets {
	var b Buckets
	for _, a := range l.effects {
		b.Add(a.Kind, a.Contribution())
	}
	return b
}

// Tick decrements every effect's remaining count by one, advances its weight pointer,
// and removes the effects that reach zero.
//
// Postcondition: Every effect in the returned slice has Remaining == 0 and is no longer held.
func (l *Ledger) Tick() []Active {
	var expired []Active
	kept := l.effects[:0]
	for _, a := range l.effects {
		a.Remaining--
		a.Elapsed++
		if a.Remaining <= 0 {
			a.Remaining = 0
			expired = append(expired, a)
			continue
		}
		kept = append(kept, a)
	}
	l.effects = kept
	return expired
}

// Len returns the number of active effects.
func (l *Ledger) Len() int {
	return len(l.effects)
}

// All returns a copy of the active effects in insertion order.
func (l *Ledger) All() []Active {
	out := make([]Active, len(l.effects))
	copy(out, l.effects)
	return out
}

// Clone returns an independent copy of l.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{perTurn: l.perTurn, effects: l.All()}
}
