// Package battle is the stateful half of the combat engine. It owns live raid sessions,
// rebuilds duels from their persisted history, and decides when a battle is written back
// to storage. Combat rules themselves live in internal/game/combat.
package battle

import (
	"context"
	"fmt"

	"github.com/google/wire"

	"github.com/cory-johannsen/legendraid/internal/game/boss"
	"github.com/cory-johannsen/legendraid/internal/game/character"
)

// Engine is one battle mode. Every method is safe for concurrent use.
type Engine interface {
	// Mode names the engine.
	Mode() Mode
	// Load returns the current state of the battle, rehydrating it when needed.
	Load(ctx context.Context, battleID, userID string) (Snapshot, error)
	// Act resolves one engagement with the caller's skill choice.
	Act(ctx context.Context, battleID, userID string, choice int) (Snapshot, error)
	// Forfeit ends the battle as a loss for the caller.
	Forfeit(ctx context.Context, battleID, userID string) (Snapshot, error)
}

// SetupRequest describes a battle whose tables must be precomputed.
type SetupRequest struct {
	Mode     Mode
	BattleID string
	// Boss is set for raids.
	Boss *boss.Boss
	// Party holds the raid party in order, or the duel challenger alone.
	Party []*character.Character
	// Selected holds each party member's selected skills (raid only).
	Selected [][]int
	// Opponent is set for duels.
	Opponent *character.Character
}

// TableGenerator produces the raw, untrusted affinity and effect payload for a battle.
// Engines coerce whatever it returns; a nil payload or an error falls back to default tables.
type TableGenerator interface {
	Generate(ctx context.Context, req SetupRequest) ([]byte, error)
}

// DefaultTables is a TableGenerator that always yields the default tables.
type DefaultTables struct{}

// Generate returns a nil payload.
func (DefaultTables) Generate(context.Context, SetupRequest) ([]byte, error) {
	return nil, nil
}

// Router selects an Engine by mode.
type Router struct {
	engines map[Mode]Engine
}

// NewRouter builds a Router over the raid and duel engines.
func NewRouter(raid *RaidEngine, duel *DuelEngine) *Router {
	return &Router{engines: map[Mode]Engine{
		ModeRaid: raid,
		ModeDuel: duel,
	}}
}

// Engine returns the engine for mode.
//
// Postcondition: Returns an error wrapping ErrInvalidRequest for an unknown mode.
func (r *Router) Engine(mode Mode) (Engine, error) {
	e, ok := r.engines[mode]
	if !ok {
		return nil, fmt.Errorf("battle mode %q: %w", mode, ErrInvalidRequest)
	}
	return e, nil
}

// ProviderSet wires the engines and the router.
var ProviderSet = wire.NewSet(
	NewRaidEngine,
	NewDuelEngine,
	NewRouter,
)
