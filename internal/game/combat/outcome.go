package combat

import (
	"math"

	"github.com/cory-johannsen/legendraid/internal/game/tables"
)

// Outcome is the terminal tag of a battle. The zero value means the battle is still running.
type Outcome string

const (
	OutcomeNone       Outcome = ""
	OutcomeWin        Outcome = "win"
	OutcomeLose       Outcome = "lose"
	OutcomeForfeit    Outcome = "forfeit"
	OutcomeTimeout    Outcome = "timeout-to-loss"
	OutcomeSetupError Outcome = "setup-error"
)

// Terminal reports whether o ends the battle.
func (o Outcome) Terminal() bool {
	return o != OutcomeNone
}

// Winner returns the winning side of a terminal outcome: A (party or challenger) on a win,
// B (boss or opponent) otherwise.
//
// Postcondition: Returns "" for OutcomeNone.
func (o Outcome) Winner() tables.Side {
	switch o {
	case OutcomeNone:
		return ""
	case OutcomeWin:
		return tables.SideA
	default:
		return tables.SideB
	}
}

// ResolveRaid checks, in order: boss defeated, then party wiped.
//
// Postcondition: Returns OutcomeWin when bossHP <= 0 even if the party is also down.
func ResolveRaid(bossHP float64, party []Member) Outcome {
	if bossHP <= 0 {
		return OutcomeWin
	}
	for _, m := range party {
		if m.Alive() {
			return OutcomeNone
		}
	}
	return OutcomeLose
}

// ResolveDuel checks opponent down, then challenger down, then the turn cap.
// At the cap the challenger wins only with strictly more hit points.
//
// Precondition: maxTurns >= 1.
func ResolveDuel(hpA, hpB float64, turn, maxTurns int) Outcome {
	switch {
	case hpB <= 0:
		return OutcomeWin
	case hpA <= 0:
		return OutcomeLose
	case turn >= maxTurns:
		if hpA > hpB {
			return OutcomeWin
		}
		return OutcomeTimeout
	}
	return OutcomeNone
}

const (
	// DefaultRank is the rating assumed for a character without one.
	DefaultRank = 1000

	ratingBaseK   = 15.0
	ratingMaxK    = 20.0
	ratingDiffCap = 200.0
)

// ratingBands lists winner rank ceilings and their bonus multipliers, ascending.
var ratingBands = []struct {
	ceiling int
	bonus   float64
}{
	{1500, 0.5},
	{2000, 0.3},
	{2500, 0.2},
	{3000, 0.1},
}

// RatingDelta computes the rating change of a decided duel.
//
// delta = baseK + (min(|winner-loser|, cap)/cap) x (maxK - baseK), rounded; the winner gains
// delta x (1 + bonus) rounded, where the bonus shrinks in four bands as the winner's rank grows,
// and the loser loses delta.
//
// Postcondition: gain >= loss >= 15.
func RatingDelta(winnerRank, loserRank int) (gain, loss int) {
	diff := math.Min(math.Abs(float64(winnerRank-loserRank)), ratingDiffCap)
	base := math.Round(ratingBaseK + diff/ratingDiffCap*(ratingMaxK-ratingBaseK))

	bonus := 0.0
	for _, b := range ratingBands {
		if winnerRank <= b.ceiling {
			bonus = b.bonus
			break
		}
	}
	return int(math.Round(base * (1 + bonus))), int(base)
}
