// Package boss provides raid boss definitions and the YAML catalog loader.
package boss

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/legendraid/internal/game/combat"
)

const (
	// DefaultMaxHP is used for a boss record without hit points.
	DefaultMaxHP = 1000
	// DefaultPartyLimit is the party size cap of a boss that does not declare one.
	DefaultPartyLimit = 3
)

// Skill is one boss ability. Class selects the counter-action behavior.
type Skill struct {
	Name  string           `yaml:"name" json:"name"`
	Power float64          `yaml:"power" json:"power"`
	Class combat.BossClass `yaml:"class" json:"class"`
}

// Boss defines a raid opponent loaded from YAML or the bosses table.
type Boss struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Stage       int      `yaml:"stage" json:"stage"`
	Description string   `yaml:"description" json:"desc"`
	MaxHP       int      `yaml:"max_hp" json:"hp"`
	PartyLimit  int      `yaml:"party_limit" json:"limit"`
	Traits      []string `yaml:"traits" json:"traits"`
	Skills      []Skill  `yaml:"skills" json:"skills"`
}

// Validate checks that the boss satisfies basic invariants.
//
// Precondition: b must not be nil.
// Postcondition: Returns nil iff ID and Name are non-empty, MaxHP and PartyLimit are >= 0,
// and every skill is named, non-negative, and of a known class.
func (b *Boss) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("boss: id must not be empty")
	}
	if b.Name == "" {
		return fmt.Errorf("boss %q: name must not be empty", b.ID)
	}
	if b.MaxHP < 0 {
		return fmt.Errorf("boss %q: max_hp must be >= 0", b.ID)
	}
	if b.PartyLimit < 0 {
		return fmt.Errorf("boss %q: party_limit must be >= 0", b.ID)
	}
	for i, s := range b.Skills {
		if s.Name == "" {
			return fmt.Errorf("boss %q: skill %d has no name", b.ID, i)
		}
		if s.Power < 0 {
			return fmt.Errorf("boss %q: skill %q power must be >= 0", b.ID, s.Name)
		}
		switch s.Class {
		case combat.ClassSingle, combat.ClassArea, combat.ClassHeal:
		default:
			return fmt.Errorf("boss %q: skill %q has unknown class %q", b.ID, s.Name, s.Class)
		}
	}
	return nil
}

// HP returns the starting hit points, defaulting to DefaultMaxHP.
func (b *Boss) HP() int {
	if b.MaxHP <= 0 {
		return DefaultMaxHP
	}
	return b.MaxHP
}

// Limit returns the party size cap, defaulting to DefaultPartyLimit.
func (b *Boss) Limit() int {
	if b.PartyLimit <= 0 {
		return DefaultPartyLimit
	}
	return b.PartyLimit
}

// Combatant builds the full-health combat boss for a new raid.
func (b *Boss) Combatant() combat.Boss {
	skills := make([]combat.Skill, len(b.Skills))
	for i, s := range b.Skills {
		skills[i] = combat.Skill{Name: s.Name, Power: s.Power, Class: s.Class}
	}
	hp := b.HP()
	return combat.Boss{
		ID:     b.ID,
		Name:   b.Name,
		MaxHP:  hp,
		HP:     float64(hp),
		Skills: skills,
		Traits: append([]string(nil), b.Traits...),
	}
}

// LoadFromBytes parses a single boss from raw YAML bytes. Unknown keys are rejected.
//
// Postcondition: Returns a validated *Boss, or an error.
func LoadFromBytes(data []byte) (*Boss, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var b Boss
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("parsing boss YAML: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// LoadDirectory reads all *.yaml files in dir and returns the parsed bosses.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all bosses or an error on the first parse, validate, or duplicate-id
// failure; on error, the partial result is discarded.
func LoadDirectory(dir string) ([]*Boss, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading boss dir %q: %w", dir, err)
	}

	seen := make(map[string]string)
	var bosses []*Boss
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		b, err := LoadFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		if prev, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("loading %q: boss id %q already defined in %q", path, b.ID, prev)
		}
		seen[b.ID] = path
		bosses = append(bosses, b)
	}
	return bosses, nil
}
