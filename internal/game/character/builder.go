package character

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cory-johannsen/legendraid/internal/game/stats"
)

// MaxSelected is the number of skills a party member may bring into a raid.
const MaxSelected = 3

// Build constructs a new Character from its owner, name, scores, and skills.
// Skill power is clamped to [1, 10] and blank skill names are rejected.
//
// Precondition: ownerID and name must be non-empty; skills must hold 1..MaxSkills entries.
// Postcondition: Returns a Character ready for persistence, or a non-nil error.
func Build(ownerID, name string, scores stats.Scores, skills []Skill) (*Character, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, errors.New("character owner must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("character name must not be empty")
	}
	if len(skills) == 0 || len(skills) > MaxSkills {
		return nil, fmt.Errorf("character %q: skills must hold 1..%d entries, got %d", name, MaxSkills, len(skills))
	}

	out := make([]Skill, len(skills))
	for i, s := range skills {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return nil, fmt.Errorf("character %q: skill %d has no name", name, i)
		}
		s.Power = clampPower(s.Power)
		out[i] = s
	}

	return &Character{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(name),
		DisplayName: strings.TrimSpace(name),
		Scores:      scores,
		Skills:      out,
	}, nil
}

// ValidateSelection checks a raid skill selection against a character.
//
// Postcondition: Returns nil iff selected holds 1..MaxSelected distinct indexes into c.Skills.
func ValidateSelection(c *Character, selected []int) error {
	if len(selected) == 0 || len(selected) > MaxSelected {
		return fmt.Errorf("character %q: select 1..%d skills, got %d", c.ID, MaxSelected, len(selected))
	}
	seen := make(map[int]bool, len(selected))
	for _, idx := range selected {
		if idx < 0 || idx >= len(c.Skills) {
			return fmt.Errorf("character %q: skill index %d out of range", c.ID, idx)
		}
		if seen[idx] {
			return fmt.Errorf("character %q: skill index %d selected twice", c.ID, idx)
		}
		seen[idx] = true
	}
	return nil
}

func clampPower(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 1:
		return 1
	case p > 10:
		return 10
	}
	return p
}
