// Package combat implements the turn-based combat resolution engine: damage formulas,
// the turn scheduler, outcome resolution, and the pure raid and duel transitions.
package combat

import (
	"errors"

	"github.com/cory-johannsen/legendraid/internal/game/stats"
)

// ErrInvalidSkill is returned when an action names a skill outside the actor's usable set.
var ErrInvalidSkill = errors.New("skill choice is not usable")

// BossClass tags a boss skill with its counter-action behavior.
type BossClass string

const (
	// ClassSingle strikes the acting member.
	ClassSingle BossClass = "single"
	// ClassArea strikes every living member.
	ClassArea BossClass = "area"
	// ClassHeal restores the boss.
	ClassHeal BossClass = "heal"
)

// Offensive reports whether the class damages the party.
func (c BossClass) Offensive() bool {
	return c == ClassSingle || c == ClassArea
}

// Skill is one usable ability.
type Skill struct {
	Name  string    `json:"name"`
	Power float64   `json:"power"`
	Class BossClass `json:"class,omitempty"`
}

// Member is one party member, or a duelist.
type Member struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	MaxHP  int          `json:"maxHp"`
	HP     float64      `json:"hp"`
	Scores stats.Scores `json:"scores"`
	Skills []Skill      `json:"skills"`
	// Selected holds the indexes into Skills usable in this battle.
	Selected []int `json:"selected"`
}

// NewMember builds a member at full health with hit points derived from its scores.
//
// Postcondition: HP == MaxHP >= 1.
func NewMember(id, name string, scores stats.Scores, skills []Skill, selected []int) Member {
	hp := stats.MaxHP(scores)
	return Member{
		ID:       id,
		Name:     name,
		MaxHP:    hp,
		HP:       float64(hp),
		Scores:   scores,
		Skills:   skills,
		Selected: selected,
	}
}

// Alive reports whether the member still has hit points.
func (m Member) Alive() bool {
	return m.HP > 0
}

// SkillAt resolves a selected-skill choice to the index into Skills.
//
// Postcondition: Returns ErrInvalidSkill when choice is outside Selected or names a missing skill.
func (m Member) SkillAt(choice int) (int, Skill, error) {
	if choice < 0 || choice >= len(m.Selected) {
		return 0, Skill{}, ErrInvalidSkill
	}
	idx := m.Selected[choice]
	if idx < 0 || idx >= len(m.Skills) {
		return 0, Skill{}, ErrInvalidSkill
	}
	return idx, m.Skills[idx], nil
}

// Boss is the raid opponent. It may use any of its skills.
type Boss struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	MaxHP  int      `json:"maxHp"`
	HP     float64  `json:"hp"`
	Skills []Skill  `json:"skills"`
	Traits []string `json:"traits,omitempty"`
}

// Alive reports whether the boss still has hit points.
func (b Boss) Alive() bool {
	return b.HP > 0
}
