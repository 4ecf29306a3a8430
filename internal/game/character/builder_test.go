package character_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/legendraid/internal/game/character"
	"github.com/cory-johannsen/legendraid/internal/game/combat"
	"github.com/cory-johannsen/legendraid/internal/game/stats"
)

func skills(names ...string) []character.Skill {
	out := make([]character.Skill, len(names))
	for i, n := range names {
		out[i] = character.Skill{Name: n, Power: 5}
	}
	return out
}

func TestBuild_Valid(t *testing.T) {
	c, err := character.Build("u1", "  Ayla ", stats.Scores{Combat: 7}, skills("Jab", "Hook"))
	require.NoError(t, err)
	assert.Equal(t, "Ayla", c.Name)
	assert.Equal(t, "Ayla", c.Label())
	assert.Equal(t, "u1", c.OwnerID)
	assert.Len(t, c.Skills, 2)
}

func TestBuild_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		owner  string
		char   string
		skills []character.Skill
	}{
		{"no owner", "", "Ayla", skills("Jab")},
		{"no name", "u1", " ", skills("Jab")},
		{"no skills", "u1", "Ayla", nil},
		{"too many skills", "u1", "Ayla", skills("a", "b", "c", "d", "e")},
		{"blank skill", "u1", "Ayla", skills("Jab", " ")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := character.Build(tc.owner, tc.char, stats.Scores{}, tc.skills)
			assert.Error(t, err)
		})
	}
}

func TestBuild_ClampsPower(t *testing.T) {
	c, err := character.Build("u1", "Ayla", stats.Scores{}, []character.Skill{
		{Name: "Weak", Power: -3}, {Name: "Huge", Power: 99}, {Name: "Odd", Power: math.NaN()}, {Name: "Fine", Power: 6.5},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 10, 1, 6.5}, []float64{c.Skills[0].Power, c.Skills[1].Power, c.Skills[2].Power, c.Skills[3].Power})
}

func TestValidateSelection(t *testing.T) {
	c := &character.Character{ID: "c1", Skills: skills("a", "b", "c", "d")}
	assert.NoError(t, character.ValidateSelection(c, []int{0, 2, 3}))
	assert.Error(t, character.ValidateSelection(c, nil))
	assert.Error(t, character.ValidateSelection(c, []int{0, 1, 2, 3}))
	assert.Error(t, character.ValidateSelection(c, []int{0, 0}))
	assert.Error(t, character.ValidateSelection(c, []int{4}))
}

func TestCharacter_RankAndMember(t *testing.T) {
	c := &character.Character{ID: "c1", Name: "Ayla", DisplayName: "Ayla the Bold", Scores: stats.Scores{World: 2}, Skills: skills("Jab")}
	assert.Equal(t, combat.DefaultRank, c.Rank())
	c.RankScore = 1234
	assert.Equal(t, 1234, c.Rank())

	sel := []int{0}
	m := c.Member(sel)
	sel[0] = 9
	assert.Equal(t, "Ayla the Bold", m.Name)
	assert.Equal(t, stats.MaxHP(c.Scores), m.MaxHP)
	assert.Equal(t, float64(m.MaxHP), m.HP)
	assert.Equal(t, []int{0}, m.Selected, "selection is copied")
	assert.Equal(t, "Jab", m.Skills[0].Name)
}

func TestProperty_BuildClampsEveryPower(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, character.MaxSkills).Draw(rt, "n")
		in := make([]character.Skill, n)
		for i := range in {
			in[i] = character.Skill{Name: "s", Power: rapid.Float64Range(-100, 100).Draw(rt, "power")}
		}
		c, err := character.Build("u1", "Ayla", stats.Scores{}, in)
		if err != nil {
			rt.Fatalf("build: %v", err)
		}
		for _, s := range c.Skills {
			if s.Power < 1 || s.Power > 10 {
				rt.Fatalf("power %v outside [1, 10]", s.Power)
			}
		}
	})
}
