// Package stats derives combat numbers from a character's narrative scores.
package stats

import "math"

const (
	// BaseHP is the hit point pool every character starts from.
	BaseHP = 140.0
	// ExcessThreshold is the neutral score at or below which excess scores cost nothing.
	ExcessThreshold = 5.0
	// DefaultScore substitutes for a score the collaborator did not provide.
	DefaultScore = 5.0
	// MinThreat and MaxThreat bound a precomputed threat level.
	MinThreat = 1
	MaxThreat = 10
	// DefaultThreat is used when no threat level was precomputed for a member.
	DefaultThreat = 5
)

// Scores holds the narrative scores assigned to a character by the creation pipeline.
// All scores are nominally on a 0-10 scale.
type Scores struct {
	World     float64 `json:"worldScore" yaml:"world"`
	Narrative float64 `json:"narrativeScore" yaml:"narrative"`
	Story     float64 `json:"storyScore" yaml:"story"`
	RuleBreak float64 `json:"ruleBreakScore" yaml:"rule_break"`
	Dominate  float64 `json:"dominateScore" yaml:"dominate"`
	Meta      float64 `json:"metaScore" yaml:"meta"`
	Combat    float64 `json:"combatScore" yaml:"combat"`
	Support   float64 `json:"supportScore" yaml:"support"`
}

// MaxHP derives the maximum hit point pool from s.
//
// The pool starts at BaseHP, grows linearly with the world score, gains a two-tier
// story bonus and a two-tier narrative bonus, and loses an exponential penalty for
// each excess score (rule breaking, dominance, meta awareness) above ExcessThreshold.
//
// Postcondition: Returns >= 1 for every input.
func MaxHP(s Scores) int {
	hp := BaseHP + s.World*3

	if s.Story > 0 {
		if s.Story <= 6 {
			hp += 15
		} else {
			hp += 30
		}
	}

	switch {
	case s.Narrative >= 4 && s.Narrative <= 8:
		hp += s.Narrative * 2.5
	case s.Narrative > 8:
		hp += 20
	}

	hp += ExcessPenalty(s.RuleBreak)
	hp += ExcessPenalty(s.Dominate)
	hp += ExcessPenalty(s.Meta)

	if math.IsNaN(hp) {
		return 1
	}
	rounded := math.Round(hp)
	if rounded < 1 {
		return 1
	}
	if rounded > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(rounded)
}

// ExcessPenalty returns the (non-positive) hit point adjustment for one excess score.
//
// Postcondition: Returns 0 when score <= ExcessThreshold, otherwise -1.35*e^(0.9*(score-5)).
func ExcessPenalty(score float64) float64 {
	if score <= ExcessThreshold {
		return 0
	}
	return -1.35 * math.Exp(0.9*(score-ExcessThreshold))
}

// ScoreFactor is the logarithmic scaling law applied to combat and support scores:
// 1 + 0.2*ln(max(score, 1)). Stat growth has diminishing but never zero returns.
//
// Postcondition: Returns >= 1.
func ScoreFactor(score float64) float64 {
	if math.IsNaN(score) || score < 1 {
		score = 1
	}
	return 1 + 0.2*math.Log(score)
}

// ClampThreat bounds a threat level to [MinThreat, MaxThreat].
func ClampThreat(t int) int {
	if t < MinThreat {
		return MinThreat
	}
	if t > MaxThreat {
		return MaxThreat
	}
	return t
}

// Average returns the mean of pick(s) over all score sets, or DefaultScore when there are none.
func Average(all []Scores, pick func(Scores) float64) float64 {
	if len(all) == 0 {
		return DefaultScore
	}
	sum := 0.0
	for _, s := range all {
		sum += pick(s)
	}
	return sum / float64(len(all))
}
