// Package tables holds the precomputed per-skill affinity and effect data a battle consumes.
//
// Tables are produced by an upstream generative step and are never trusted as-is:
// Coerce turns any payload, including an empty or malformed one, into a complete,
// validated Tables value.
package tables

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Side identifies one party of a battle.
// In a raid A is the player party and B the boss; in a duel A is the challenger and B the opponent.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
	// SideBoth marks a shared effect that lands on both sides at half strength.
	SideBoth Side = "C"
)

// Kind classifies an effect by which side gains and which side is harmed.
type Kind int

const (
	KindNone Kind = iota
	// KindAGain (AP): the effect targets A and benefits A.
	KindAGain
	// KindAHarm (AN): the effect targets A and benefits B.
	KindAHarm
	// KindBGain (BP): the effect targets B and benefits B.
	KindBGain
	// KindBHarm (BN): the effect targets B and benefits A.
	KindBHarm
	// KindSharedA lands on both sides and benefits A.
	KindSharedA
	// KindSharedB lands on both sides and benefits B.
	KindSharedB
)

var kindNames = map[Kind]string{
	KindNone:    "NONE",
	KindAGain:   "AP",
	KindAHarm:   "AN",
	KindBGain:   "BP",
	KindBHarm:   "BN",
	KindSharedA: "CA",
	KindSharedB: "CB",
}

// String returns the short bucket tag of k.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "NONE"
}

// Classify derives the Kind of an effect from its target and beneficiary.
//
// Postcondition: Returns KindNone for any combination outside {A,B,C} x {A,B}.
func Classify(target, benefitTo Side) Kind {
	switch {
	case target == SideA && benefitTo == SideA:
		return KindAGain
	case target == SideA && benefitTo == SideB:
		return KindAHarm
	case target == SideB && benefitTo == SideB:
		return KindBGain
	case target == SideB && benefitTo == SideA:
		return KindBHarm
	case target == SideBoth && benefitTo == SideA:
		return KindSharedA
	case target == SideBoth && benefitTo == SideB:
		return KindSharedB
	}
	return KindNone
}

// EffectDef describes one status effect a skill applies when used.
//
// Invariant (after Coerce): 1 <= Turns <= MaxEffectTurns; Weights is nil or has exactly Turns entries in [1, 10].
type EffectDef struct {
	Name      string    `json:"name"`
	Target    Side      `json:"target"`
	BenefitTo Side      `json:"benefitTo"`
	Turns     int       `json:"turns"`
	Weights   []float64 `json:"turnWeights,omitempty"`
	Valid     bool      `json:"valid"`
}

// Kind returns the classification of d.
func (d EffectDef) Kind() Kind {
	return Classify(d.Target, d.BenefitTo)
}

// Affinity is a fixed-length string of favorable (P) and unfavorable (N) marks,
// one per opposing trait.
type Affinity string

// Counts returns the number of favorable and unfavorable marks.
//
// Postcondition: fav + unfav == len(a) for any coerced affinity.
func (a Affinity) Counts() (fav, unfav int) {
	for _, r := range a {
		switch r {
		case 'P':
			fav++
		case 'N':
			unfav++
		}
	}
	return fav, unfav
}

// Key addresses a skill: the owning combatant and the skill's index in its list.
// Raid owners are party indexes; duel owners are 1 (challenger) and 2 (opponent).
type Key struct {
	Owner int
	Skill int
}

// Tables is the complete, coerced precomputed data for one battle.
type Tables struct {
	Affinity map[Key]Affinity
	Effects  map[Key][]EffectDef
	// Threat holds one threat level per party member (raid only).
	Threat []int
	// SkillScores and Choices drive the duel choice weight.
	SkillScores map[int]float64
	Choices     []int
	Prologue    string
}

// AffinityFor returns the favorable and unfavorable counts of a skill.
//
// Postcondition: An unknown key yields (0, 0), a neutral tilt.
func (t Tables) AffinityFor(owner, skill int) (fav, unfav int) {
	a, ok := t.Affinity[Key{Owner: owner, Skill: skill}]
	if !ok {
		return 0, 0
	}
	return a.Counts()
}

// EffectsFor returns the effect definitions of a skill in declaration order.
func (t Tables) EffectsFor(owner, skill int) []EffectDef {
	return t.Effects[Key{Owner: owner, Skill: skill}]
}

// ThreatFor returns the threat level of party member i, defaulting to the neutral level.
func (t Tables) ThreatFor(i int) int {
	if i < 0 || i >= len(t.Threat) {
		return defaultThreat
	}
	return t.Threat[i]
}

// SkillScore returns the precomputed score of a skill, defaulting to 5.
func (t Tables) SkillScore(skill int) float64 {
	if v, ok := t.SkillScores[skill]; ok {
		return v
	}
	return defaultSkillScore
}

type affinityRow struct {
	Owner int      `json:"owner"`
	Skill int      `json:"skillIndex"`
	PN    Affinity `json:"pn"`
}

type effectRow struct {
	Owner   int         `json:"owner"`
	Skill   int         `json:"skillIndex"`
	Effects []EffectDef `json:"effects"`
}

type threatRow struct {
	Index int `json:"charIndex"`
	Score int `json:"score"`
}

type document struct {
	PNTable      []affinityRow      `json:"pnTable"`
	Effects      []effectRow        `json:"effects"`
	ThreatLevels []threatRow        `json:"threatLevels,omitempty"`
	SkillScores  map[string]float64 `json:"skillScores,omitempty"`
	Choices      []int              `json:"choices,omitempty"`
	Prologue     string             `json:"prologue,omitempty"`
}

// MarshalJSON renders t in the canonical row layout that Coerce reads back unchanged.
func (t Tables) MarshalJSON() ([]byte, error) {
	doc := document{Choices: t.Choices, Prologue: t.Prologue}

	for _, k := range sortedKeys(t.Affinity) {
		doc.PNTable = append(doc.PNTable, affinityRow{Owner: k.Owner, Skill: k.Skill, PN: t.Affinity[k]})
	}
	for _, k := range sortedKeys(t.Effects) {
		doc.Effects = append(doc.Effects, effectRow{Owner: k.Owner, Skill: k.Skill, Effects: t.Effects[k]})
	}
	for i, s := range t.Threat {
		doc.ThreatLevels = append(doc.ThreatLevels, threatRow{Index: i, Score: s})
	}
	if len(t.SkillScores) > 0 {
		doc.SkillScores = make(map[string]float64, len(t.SkillScores))
		for k, v := range t.SkillScores {
			doc.SkillScores[strconv.Itoa(k)] = v
		}
	}
	return json.Marshal(doc)
}

func sortedKeys[V any](m map[Key]V) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Owner != keys[j].Owner {
			return keys[i].Owner < keys[j].Owner
		}
		return keys[i].Skill < keys[j].Skill
	})
	return keys
}

// ExtractJSON strips markdown code fences and any prose around the outermost JSON object in text.
//
// Postcondition: Returns text unchanged (trimmed) when no braces are present.
func ExtractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```JSON", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first != -1 && last > first {
		return text[first : last+1]
	}
	return text
}
