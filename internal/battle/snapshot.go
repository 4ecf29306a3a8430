package battle

import (
	"github.com/cory-johannsen/legendraid/internal/game/combat"
	"github.com/cory-johannsen/legendraid/internal/game/tables"
)

// Mode selects a battle engine.
type Mode string

const (
	// ModeRaid is the cached, unbounded party-versus-boss battle.
	ModeRaid Mode = "raid"
	// ModeDuel is the stateless, turn-capped one-on-one battle.
	ModeDuel Mode = "duel"
)

// CombatantView is the displayable state of one combatant.
type CombatantView struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	HP     float64        `json:"hp"`
	MaxHP  int            `json:"maxHp"`
	Alive  bool           `json:"alive"`
	Skills []combat.Skill `json:"skills,omitempty"`
	// Selected lists the usable indexes into Skills.
	Selected []int `json:"selected,omitempty"`
}

// Snapshot is the per-action response of every engine.
type Snapshot struct {
	Mode     Mode            `json:"mode"`
	BattleID string          `json:"battleId"`
	Boss     CombatantView   `json:"boss"`
	Party    []CombatantView `json:"party"`
	Log      []string        `json:"log"`

	Engagement int `json:"engagement"`
	Turn       int `json:"turn"`
	// Acting is the party index of the member expected to act next, or -1.
	Acting int `json:"acting"`

	Terminal   bool           `json:"terminal"`
	Outcome    combat.Outcome `json:"outcome,omitempty"`
	Winner     tables.Side    `json:"winner,omitempty"`
	WinnerID   string         `json:"winnerId,omitempty"`
	LoserID    string         `json:"loserId,omitempty"`
	RatingGain int            `json:"ratingGain,omitempty"`
	RatingLoss int            `json:"ratingLoss,omitempty"`
	// Durable is false for a terminal snapshot whose final write has not landed yet.
	Durable bool `json:"durable"`

	History  []combat.DuelTurn `json:"history,omitempty"`
	Choices  []int             `json:"choices,omitempty"`
	Prologue string            `json:"prologue,omitempty"`
}

func raidSnapshot(id string, s combat.RaidState, durable bool) Snapshot {
	snap := Snapshot{
		Mode:     ModeRaid,
		BattleID: id,
		Boss: CombatantView{
			ID:    s.Boss.ID,
			Name:  s.Boss.Name,
			HP:    max(s.Boss.HP, 0),
			MaxHP: s.Boss.MaxHP,
			Alive: s.Boss.Alive(),
		},
		Party:      make([]CombatantView, len(s.Party)),
		Log:        append([]string(nil), s.Log...),
		Engagement: s.Schedule.Engagement,
		Turn:       s.Schedule.Turn,
		Acting:     s.Schedule.Current(),
		Terminal:   s.Terminal(),
		Outcome:    s.Outcome,
		Winner:     s.Outcome.Winner(),
		Durable:    durable || !s.Terminal(),
	}
	for i, m := range s.Party {
		snap.Party[i] = memberView(m)
	}
	if snap.Terminal {
		snap.Acting = -1
	}
	return snap
}

func duelSnapshot(id string, s combat.DuelState, rec *DuelRecord, durable bool) Snapshot {
	history := s.History
	if s.Tables.Prologue != "" {
		history = append([]combat.DuelTurn{{Turn: 0, Narration: s.Tables.Prologue}}, s.History...)
	}
	log := make([]string, 0, len(history))
	for _, h := range history {
		log = append(log, h.Narration)
	}

	snap := Snapshot{
		Mode:       ModeDuel,
		BattleID:   id,
		Boss:       memberView(s.B),
		Party:      []CombatantView{memberView(s.A)},
		Log:        log,
		Engagement: s.Turn,
		Turn:       s.Turn,
		Acting:     0,
		Terminal:   s.Terminal(),
		Outcome:    s.Outcome,
		Winner:     s.Outcome.Winner(),
		Durable:    durable,
		History:    history,
		Prologue:   s.Tables.Prologue,
	}
	snap.Boss.Skills = nil
	snap.Boss.Selected = nil
	if snap.Terminal {
		snap.Acting = -1
		if rec != nil {
			snap.WinnerID = rec.WinnerID
			snap.LoserID = rec.LoserID
			snap.RatingGain = rec.RatingGain
			snap.RatingLoss = rec.RatingLoss
		}
	} else {
		snap.Choices = append([]int(nil), s.Tables.Choices...)
	}
	return snap
}

func memberView(m combat.Member) CombatantView {
	return CombatantView{
		ID:       m.ID,
		Name:     m.Name,
		HP:       max(m.HP, 0),
		MaxHP:    m.MaxHP,
		Alive:    m.Alive(),
		Skills:   m.Skills,
		Selected: m.Selected,
	}
}
