// Package character defines the persisted character record the battle engine consumes.
package character

import (
	"time"

	"github.com/cory-johannsen/legendraid/internal/game/combat"
	"github.com/cory-johannsen/legendraid/internal/game/stats"
)

// MaxSkills is the number of skills a character carries.
const MaxSkills = 4

// Skill is one of a character's abilities.
type Skill struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"desc,omitempty" yaml:"description"`
	Power       float64 `json:"power" yaml:"power"`
}

// Character represents a player character's persistent state.
//
// ID and CreatedAt/UpdatedAt are set by the persistence layer; zero values indicate an unsaved character.
type Character struct {
	ID      string
	OwnerID string

	Name        string
	DisplayName string // raw display name; falls back to Name
	Scores      stats.Scores
	Skills      []Skill
	// RankScore is the duel rating; zero means unrated.
	RankScore int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Label returns the name shown in battle logs.
func (c *Character) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}

// Rank returns the duel rating, defaulting unrated characters to combat.DefaultRank.
func (c *Character) Rank() int {
	if c.RankScore <= 0 {
		return combat.DefaultRank
	}
	return c.RankScore
}

// CombatSkills converts the character's skills to combat skills in slot order.
func (c *Character) CombatSkills() []combat.Skill {
	out := make([]combat.Skill, len(c.Skills))
	for i, s := range c.Skills {
		out[i] = combat.Skill{Name: s.Name, Power: s.Power}
	}
	return out
}

// Member builds a full-health combatant with hit points derived from the character's scores.
//
// Precondition: selected holds indexes into Skills.
// Postcondition: The member's HP equals stats.MaxHP(c.Scores).
func (c *Character) Member(selected []int) combat.Member {
	return combat.NewMember(c.ID, c.Label(), c.Scores, c.CombatSkills(), append([]int(nil), selected...))
}
