package combat

import (
	"math"

	"github.com/cory-johannsen/legendraid/internal/game/effect"
	"github.com/cory-johannsen/legendraid/internal/game/stats"
)

const (
	// RaidEngagementsPerTurn is how many engagements one declared effect turn lasts in a raid.
	RaidEngagementsPerTurn = 3
	// DuelEngagementsPerTurn is one: every duel request is one engagement and one turn.
	DuelEngagementsPerTurn = 1

	// RaidSkillGrowth scales raid skill and boss damage per engagement.
	RaidSkillGrowth = 1.02
	// RaidEffectGrowth scales raid cumulative damage per engagement.
	RaidEffectGrowth = 1.1
	// DuelGrowth scales every duel damage term per turn.
	DuelGrowth = 1.1

	skillBase      = 20.0
	affinityFloor  = 10.0
	effectBase     = 20.0
	pressureFloor  = 6.0
	threatBase     = 0.8
	threatStep     = 0.04
	doubleDamage   = 2.0
	choiceFloor    = 4.0
	choiceSpread   = 3.0
	choiceDivisor  = 5.0
	raidEffectNorm = 12.0
)

// Growth returns factor^(step-1), treating steps below 1 as the first step.
func Growth(factor float64, step int) float64 {
	return math.Pow(factor, float64(max(step-1, 0)))
}

// AffinityRatio is the favorable/unfavorable tilt (10+fav)/(10+unfav).
//
// Postcondition: For fav, unfav in [0, L] the result lies in [10/(10+L), (10+L)/10].
func AffinityRatio(fav, unfav int) float64 {
	return (affinityFloor + float64(max(fav, 0))) / (affinityFloor + float64(max(unfav, 0)))
}

// SkillDamage is the immediate damage of a skill:
// (20 + power) x ScoreFactor(combat) x AffinityRatio(fav, unfav) x growth^(step-1).
//
// Postcondition: Strictly increasing in power and, above 1, in combatScore.
func SkillDamage(power, combatScore float64, fav, unfav int, growth float64, step int) float64 {
	return (skillBase + power) * stats.ScoreFactor(combatScore) * AffinityRatio(fav, unfav) * Growth(growth, step)
}

// BossDamage is the counter-action magnitude: power x (0.8 + threat x 0.04) x 1.02^(engagement-1).
// A heal uses the same formula at the neutral threat level.
func BossDamage(power float64, threat, engagement int) float64 {
	return power * (threatBase + float64(stats.ClampThreat(threat))*threatStep) * Growth(RaidSkillGrowth, engagement)
}

// RaidEffectDamage is the per-engagement cumulative damage the boss takes from active effects:
// 20 x (6 + f(combatAvg) x BN) x (6 + f(supportAvg) x AP) x 1.1^(engagement-1) / 12, spread over
// the engagements of a turn.
//
// Postcondition: Returns 0 when active is false.
func RaidEffectDamage(b effect.Buckets, combatAvg, supportAvg float64, engagement int, active bool) float64 {
	if !active {
		return 0
	}
	harm := pressureFloor + stats.ScoreFactor(combatAvg)*b.BHarm
	gain := pressureFloor + stats.ScoreFactor(supportAvg)*b.AGain
	dmg := effectBase * harm * gain * Growth(RaidEffectGrowth, engagement) / raidEffectNorm
	return math.Max(0, dmg) / RaidEngagementsPerTurn
}

// DuelEffectDamage is one side's cumulative damage in a duel:
// 20 x (6 + f(opponentCombat) x harm) / (6 + f(selfSupport) x gain) x 1.1^(turn-1).
func DuelEffectDamage(gain, harm, selfSupport, opponentCombat float64, turn int) float64 {
	numer := pressureFloor + stats.ScoreFactor(opponentCombat)*harm
	denom := pressureFloor + stats.ScoreFactor(selfSupport)*gain
	return effectBase * (numer / denom) * Growth(DuelGrowth, turn)
}

// ChoiceWeight scales a duel side's total damage by how highly rated its chosen skill is
// among the offered ones: (4 + 3 x chosen / sum(offered)) / 5.
func ChoiceWeight(chosen float64, offered []float64) float64 {
	sum := 0.0
	for _, v := range offered {
		sum += v
	}
	if sum <= 0 {
		sum = 1
	}
	return (choiceFloor + choiceSpread*chosen/sum) / choiceDivisor
}

// Round1 rounds v to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
