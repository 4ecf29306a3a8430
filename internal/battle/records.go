package battle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cory-johannsen/legendraid/internal/game/boss"
	"github.com/cory-johannsen/legendraid/internal/game/character"
	"github.com/cory-johannsen/legendraid/internal/game/combat"
)

// RaidStatus is the lifecycle stage of a persisted raid.
type RaidStatus string

const (
	// RaidPending raids are waiting for precomputed tables.
	RaidPending RaidStatus = "pending"
	// RaidReady raids can be loaded and fought.
	RaidReady RaidStatus = "ready"
	// RaidFinished raids carry a final snapshot and an outcome.
	RaidFinished RaidStatus = "finished"
)

// PartySlot is one party member of a raid with the skills selected for it.
type PartySlot struct {
	CharacterID string `json:"charId"`
	Selected    []int  `json:"selected"`
}

// MemberStatus is a party member's final hit points.
type MemberStatus struct {
	CharacterID string  `json:"charId"`
	Name        string  `json:"name"`
	HP          float64 `json:"currentHp"`
	MaxHP       int     `json:"maxHp"`
}

// RaidRecord is the persisted raid. Only setup and the terminal snapshot are ever written;
// in-progress state lives in the session store.
type RaidRecord struct {
	ID     string
	UserID string
	BossID string
	Status RaidStatus
	Party  []PartySlot
	// Tables is the coerced table document; nil while pending.
	Tables json.RawMessage

	BossHP      float64
	PartyStatus []MemberStatus
	Engagement  int
	Log         []string
	Outcome     combat.Outcome

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DuelRecord is the persisted duel. Its history is the source of truth and is rewritten after every action.
type DuelRecord struct {
	ID           string
	UserID       string
	ChallengerID string
	OpponentID   string
	Tables       json.RawMessage
	History      []combat.DuelTurn

	Finished   bool
	Outcome    combat.Outcome
	WinnerID   string
	LoserID    string
	RatingGain int
	RatingLoss int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CharacterRepository reads character records.
type CharacterRepository interface {
	// GetCharacter returns the character or an error wrapping ErrNotFound.
	GetCharacter(ctx context.Context, id string) (*character.Character, error)
}

// BossRepository reads boss records.
type BossRepository interface {
	// GetBoss returns the boss or an error wrapping ErrNotFound.
	GetBoss(ctx context.Context, id string) (*boss.Boss, error)
}

// RaidRepository persists raids.
type RaidRepository interface {
	CreateRaid(ctx context.Context, r *RaidRecord) error
	// GetRaid returns the raid or an error wrapping ErrNotFound.
	GetRaid(ctx context.Context, id string) (*RaidRecord, error)
	// SaveTables stores coerced tables and moves a pending raid to ready.
	// It returns an error wrapping ErrNotFound when the raid is no longer pending.
	SaveTables(ctx context.Context, id string, tables []byte) error
	// FinishRaid writes the terminal snapshot.
	FinishRaid(ctx context.Context, r *RaidRecord) error
}

// DuelRepository persists duels.
type DuelRepository interface {
	CreateDuel(ctx context.Context, d *DuelRecord) error
	// GetDuel returns the duel or an error wrapping ErrNotFound.
	GetDuel(ctx context.Context, id string) (*DuelRecord, error)
	// SaveDuel rewrites the history of an unfinished duel.
	SaveDuel(ctx context.Context, d *DuelRecord) error
	// FinishDuel writes the terminal duel and applies its rating deltas to both characters atomically.
	FinishDuel(ctx context.Context, d *DuelRecord) error
}
