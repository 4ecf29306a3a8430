package tables

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	// MaxEffectTurns is the longest duration an effect may declare.
	MaxEffectTurns = 3
	// SkillsPerOwner is the number of skill slots every combatant has in the tables.
	SkillsPerOwner = 4
	// DuelChoices is the number of skills offered to the challenger each turn.
	DuelChoices = 3

	raidAffinityLen = 3
	duelAffinityLen = 5

	minWeight         = 1
	maxWeight         = 10
	defaultThreat     = 5
	defaultSkillScore = 5.0
	defaultEffectName = "strike"
)

// Shape describes what a complete Tables value looks like for one battle mode.
type Shape struct {
	// Owners lists the owner ids that must have a row for every skill slot.
	Owners      []int
	AffinityLen int
	// MaxEffectsPerSkill truncates longer effect lists.
	MaxEffectsPerSkill int
	// DefaultEffect fills skills without a usable effect with a 1-turn B-harming effect.
	DefaultEffect bool
	// DefaultValid is the validity of an effect that does not declare one.
	DefaultValid bool
	// AllowShared accepts target C (both sides).
	AllowShared bool
	// PartySize is the number of threat levels expected; zero disables threat levels.
	PartySize int
	// Duel enables skill scores, choices, and the prologue.
	Duel bool
}

// RaidShape returns the shape of a raid against a party of partySize members.
func RaidShape(partySize int) Shape {
	owners := make([]int, partySize)
	for i := range owners {
		owners[i] = i
	}
	return Shape{
		Owners:             owners,
		AffinityLen:        raidAffinityLen,
		MaxEffectsPerSkill: 1,
		DefaultEffect:      true,
		DefaultValid:       true,
		PartySize:          partySize,
	}
}

// DuelShape returns the shape of a duel: owner 1 is the challenger, owner 2 the opponent.
func DuelShape() Shape {
	return Shape{
		Owners:             []int{1, 2},
		AffinityLen:        duelAffinityLen,
		MaxEffectsPerSkill: 2,
		DefaultValid:       false,
		AllowShared:        true,
		Duel:               true,
	}
}

// Defaults returns the tables used when the upstream step produced nothing usable.
func Defaults(shape Shape) Tables {
	return Coerce(nil, shape)
}

// Coerce reads an untrusted payload and returns complete tables for shape.
// Malformed or missing entries are replaced with safe defaults; nothing is rejected.
//
// Postcondition: Every (owner, skill) in shape has an affinity of exactly shape.AffinityLen marks.
// Postcondition: Every EffectDef satisfies the EffectDef invariant.
// Postcondition: len(Threat) == shape.PartySize.
func Coerce(raw []byte, shape Shape) Tables {
	var doc gjson.Result
	if gjson.ValidBytes(raw) {
		doc = gjson.ParseBytes(raw)
	}

	t := Tables{
		Affinity: make(map[Key]Affinity),
		Effects:  make(map[Key][]EffectDef),
	}
	owners := make(map[int]bool, len(shape.Owners))
	for _, o := range shape.Owners {
		owners[o] = true
	}

	coerceAffinity(doc.Get("pnTable"), shape, owners, t.Affinity)
	coerceEffects(doc.Get("effects"), shape, owners, t.Effects)

	if shape.PartySize > 0 {
		t.Threat = coerceThreat(doc.Get("threatLevels"), shape.PartySize)
	}
	if shape.Duel {
		t.SkillScores = coerceSkillScores(doc.Get("skillScores"))
		t.Choices = coerceChoices(doc.Get("choices"), doc.Get("effects"))
		t.Prologue = strings.TrimSpace(doc.Get("prologue").String())
	}
	return t
}

// rowKey resolves the (owner, skill) of row i, falling back to its position.
func rowKey(row gjson.Result, i int, shape Shape) Key {
	k := Key{Owner: -1, Skill: i % SkillsPerOwner}
	if pos := i / SkillsPerOwner; pos < len(shape.Owners) {
		k.Owner = shape.Owners[pos]
	}
	for _, field := range []string{"owner", "charIndex", "skillOwner"} {
		if v, ok := intField(row.Get(field)); ok {
			k.Owner = v
			break
		}
	}
	if v, ok := intField(row.Get("skillIndex")); ok {
		k.Skill = v
	}
	return k
}

func inShape(k Key, owners map[int]bool) bool {
	return owners[k.Owner] && k.Skill >= 0 && k.Skill < SkillsPerOwner
}

func coerceAffinity(rows gjson.Result, shape Shape, owners map[int]bool, out map[Key]Affinity) {
	for i, row := range rows.Array() {
		k := rowKey(row, i, shape)
		if !inShape(k, owners) {
			continue
		}
		if _, seen := out[k]; seen {
			continue
		}
		out[k] = coercePN(row.Get("pn"), shape.AffinityLen)
	}
	// The safe affinity is all N: every matchup rolls the same, so no skill is favored.
	for _, o := range shape.Owners {
		for s := 0; s < SkillsPerOwner; s++ {
			k := Key{Owner: o, Skill: s}
			if _, ok := out[k]; !ok {
				out[k] = Affinity(strings.Repeat("N", shape.AffinityLen))
			}
		}
	}
}

// coercePN accepts only strings of exactly n P/N marks; anything else becomes all-unfavorable.
func coercePN(v gjson.Result, n int) Affinity {
	fallback := Affinity(strings.Repeat("N", n))
	if v.Type != gjson.String || len(v.Str) != n {
		return fallback
	}
	for _, r := range v.Str {
		if r != 'P' && r != 'N' {
			return fallback
		}
	}
	return Affinity(v.Str)
}

func coerceEffects(rows gjson.Result, shape Shape, owners map[int]bool, out map[Key][]EffectDef) {
	for i, row := range rows.Array() {
		k := rowKey(row, i, shape)
		if !inShape(k, owners) {
			continue
		}
		if _, seen := out[k]; seen {
			continue
		}
		var raws []gjson.Result
		switch {
		case row.Get("effects").IsArray():
			raws = row.Get("effects").Array()
		case row.Get("effect").IsObject():
			raws = []gjson.Result{row.Get("effect")}
		}
		if len(raws) > shape.MaxEffectsPerSkill {
			raws = raws[:shape.MaxEffectsPerSkill]
		}
		defs := make([]EffectDef, 0, len(raws))
		for _, r := range raws {
			defs = append(defs, coerceEffect(r, shape))
		}
		if len(defs) > 0 {
			out[k] = defs
		}
	}
	if !shape.DefaultEffect {
		return
	}
	for _, o := range shape.Owners {
		for s := 0; s < SkillsPerOwner; s++ {
			k := Key{Owner: o, Skill: s}
			if len(out[k]) == 0 {
				out[k] = []EffectDef{defaultEffect(shape)}
			}
		}
	}
}

// defaultEffect is the stand-in for a missing raid effect: one turn of boss harm. It keeps
// cumulative pressure identical for every skill, so it changes no choice between them.
// Duel shapes never get one and fall back to no effect at all.
func defaultEffect(shape Shape) EffectDef {
	return EffectDef{
		Name:      defaultEffectName,
		Target:    SideB,
		BenefitTo: SideA,
		Turns:     1,
		Valid:     shape.DefaultValid,
	}
}

func coerceEffect(r gjson.Result, shape Shape) EffectDef {
	def := defaultEffect(shape)

	if name := strings.TrimSpace(r.Get("name").String()); name != "" {
		def.Name = name
	} else if name := strings.TrimSpace(r.Get("effect").String()); name != "" && r.Get("effect").Type == gjson.String {
		def.Name = name
	}

	switch Side(r.Get("target").String()) {
	case SideA:
		def.Target = SideA
	case SideB:
		def.Target = SideB
	case SideBoth:
		if shape.AllowShared {
			def.Target = SideBoth
		}
	}
	if Side(r.Get("benefitTo").String()) == SideB {
		def.BenefitTo = SideB
	}

	weights := r.Get("turnWeights")
	if !weights.IsArray() {
		weights = r.Get("weight")
	}
	entries := weights.Array()

	def.Turns = 1
	if v, ok := intField(r.Get("turns")); ok && v >= 1 && v <= MaxEffectTurns {
		def.Turns = v
	} else if !r.Get("turns").Exists() && len(entries) >= 1 && len(entries) <= MaxEffectTurns {
		def.Turns = len(entries)
	}

	if len(entries) == def.Turns {
		def.Weights = make([]float64, def.Turns)
		for i, e := range entries {
			if e.IsObject() {
				e = e.Get("value")
			}
			def.Weights[i] = clampWeight(e)
		}
	}

	def.Valid = coerceValid(r.Get("valid"), shape.DefaultValid)
	return def
}

func clampWeight(v gjson.Result) float64 {
	if v.Type != gjson.Number || math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
		return minWeight
	}
	return math.Max(minWeight, math.Min(maxWeight, math.Round(v.Num)))
}

func coerceValid(v gjson.Result, fallback bool) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.String:
		s := strings.ToLower(strings.TrimSpace(v.Str))
		return s == "t" || s == "true"
	}
	return fallback
}

func coerceThreat(v gjson.Result, partySize int) []int {
	out := make([]int, partySize)
	rows := v.Array()
	if !v.IsArray() || len(rows) != partySize {
		for i := range out {
			out[i] = defaultThreat
		}
		return out
	}
	for i, row := range rows {
		score := row
		if row.IsObject() {
			score = row.Get("score")
		}
		if s, ok := intField(score); ok {
			out[i] = max(1, min(10, s))
		} else {
			out[i] = defaultThreat
		}
	}
	return out
}

func coerceSkillScores(v gjson.Result) map[int]float64 {
	out := make(map[int]float64, SkillsPerOwner)
	for i := 0; i < SkillsPerOwner; i++ {
		out[i] = defaultSkillScore
		if !v.IsObject() && !v.IsArray() {
			continue
		}
		s := v.Get(strconv.Itoa(i))
		if s.Type == gjson.Number && s.Num >= 1 && s.Num <= 10 {
			out[i] = s.Num
		}
	}
	return out
}

func coerceChoices(v, effects gjson.Result) []int {
	var choices []int
	add := func(c int) {
		for _, existing := range choices {
			if existing == c {
				return
			}
		}
		choices = append(choices, c)
	}

	raw := v.Array()
	valid := v.IsArray() && len(raw) == DuelChoices
	for _, c := range raw {
		if n, ok := intField(c); !ok || n < 0 || n >= SkillsPerOwner {
			valid = false
		}
	}
	if valid {
		for _, c := range raw {
			n, _ := intField(c)
			add(n)
		}
	} else {
		for _, row := range effects.Array() {
			if len(choices) == DuelChoices {
				break
			}
			if n, ok := intField(row.Get("skillIndex")); ok && n >= 0 && n < SkillsPerOwner {
				add(n)
			}
		}
	}
	for i := 0; i < SkillsPerOwner && len(choices) < DuelChoices; i++ {
		add(i)
	}
	return choices
}

// intField reports the value of v when it is an integral JSON number.
func intField(v gjson.Result) (int, bool) {
	if v.Type != gjson.Number || v.Num != math.Trunc(v.Num) {
		return 0, false
	}
	return int(v.Num), true
}
