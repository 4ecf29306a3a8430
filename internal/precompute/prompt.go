package precompute

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/legendraid/internal/battle"
	"github.com/cory-johannsen/legendraid/internal/game/character"
)

const raidSystemPrompt = `You prepare combat tables for a party-versus-boss raid.
Return exactly one JSON object and nothing else: no prose, no code fences.

pnTable: one entry per party member and skill, party size x 4 entries.
  {"charIndex": <0..party size-1>, "skillIndex": <0..3>, "pn": "XXX"}
  pn has exactly 3 letters, one per boss trait in order: P when the skill is effective
  against that trait, N when it is not.

effects: one entry per party member and skill, party size x 4 entries.
  {"charIndex": i, "skillIndex": j, "effect": {"name": "<1-4 word noun phrase>",
   "target": "A" | "B", "benefitTo": "A" | "B", "turns": 1..3, "turnWeights": [<turns integers 1..10>]}}
  target is the side the effect lands on, benefitTo the side it helps. A is the party, B the boss.

threatLevels: one entry per party member.
  {"charIndex": i, "score": 1..10}
  Higher scores mean the boss's attacks hurt that member more.`

const duelSystemPrompt = `You prepare combat tables for a one-on-one duel between character A and character B.
Return exactly one JSON object and nothing else: no prose, no code fences.

prologue: two or three sentences setting the scene just before the fight.

pnTable: 8 entries, every (skillOwner, skillIndex) pair for skillOwner 1 (A) and 2 (B), skillIndex 0..3.
  {"skillOwner": 1 | 2, "skillIndex": 0..3, "pn": "XXXXX"}
  pn has exactly 5 letters, P for an advantage over the opponent and N for a disadvantage.

effects: 8 entries, one per (skillOwner, skillIndex).
  {"skillOwner": 1 | 2, "skillIndex": 0..3, "effects": [up to 2 of
   {"name": "<noun phrase>", "target": "A" | "B" | "C", "benefitTo": "A" | "B",
    "turns": 1..3, "turnWeights": [<turns integers 1..10>], "valid": "T" | "F"}]}
  target C means both sides. valid is T when the effect makes sense for the skill.

choices: exactly 3 distinct indexes 0..3 of A's skills worth offering first.

skillScores: {"0": 1..10, "1": 1..10, "2": 1..10, "3": 1..10}, how well each of A's skills suits this fight.`

// Prompts returns the system and user prompts for req.
//
// Postcondition: Returns an error for an unknown mode or a request missing its combatants.
func Prompts(req battle.SetupRequest) (system, user string, err error) {
	switch req.Mode {
	case battle.ModeRaid:
		if req.Boss == nil || len(req.Party) == 0 {
			return "", "", fmt.Errorf("raid %s: setup request needs a boss and a party", req.BattleID)
		}
		return raidSystemPrompt, raidUserPrompt(req), nil
	case battle.ModeDuel:
		if len(req.Party) != 1 || req.Opponent == nil {
			return "", "", fmt.Errorf("duel %s: setup request needs a challenger and an opponent", req.BattleID)
		}
		return duelSystemPrompt, duelUserPrompt(req), nil
	}
	return "", "", fmt.Errorf("setup request %s: unknown mode %q", req.BattleID, req.Mode)
}

func raidUserPrompt(req battle.SetupRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[BOSS]\nName: %s\nDescription: %s\n\nTraits:\n", req.Boss.Name, req.Boss.Description)
	if len(req.Boss.Traits) == 0 {
		b.WriteString("- none\n")
	}
	for _, t := range req.Boss.Traits {
		fmt.Fprintf(&b, "- %s\n", t)
	}
	b.WriteString("\n[PARTY]\n")
	for i, c := range req.Party {
		writeCharacter(&b, fmt.Sprintf("A%d (charIndex %d)", i+1, i), c)
	}
	fmt.Fprintf(&b, "Produce pnTable and effects for all %d party skills and threatLevels for all %d members. JSON only.",
		len(req.Party)*character.MaxSkills, len(req.Party))
	return b.String()
}

func duelUserPrompt(req battle.SetupRequest) string {
	var b strings.Builder
	writeCharacter(&b, "A (skillOwner 1)", req.Party[0])
	writeCharacter(&b, "B (skillOwner 2)", req.Opponent)
	b.WriteString("Produce prologue, pnTable, effects, choices, and skillScores. JSON only.")
	return b.String()
}

func writeCharacter(b *strings.Builder, label string, c *character.Character) {
	fmt.Fprintf(b, "[%s]\nName: %s\nSkills:\n", label, c.Label())
	for i, s := range c.Skills {
		if s.Description != "" {
			fmt.Fprintf(b, "- %d: %s (%s)\n", i, s.Name, s.Description)
		} else {
			fmt.Fprintf(b, "- %d: %s\n", i, s.Name)
		}
	}
	b.WriteString("\n")
}
