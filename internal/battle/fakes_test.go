package battle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/legendraid/internal/config"
	"github.com/cory-johannsen/legendraid/internal/game/boss"
	"github.com/cory-johannsen/legendraid/internal/game/character"
	"github.com/cory-johannsen/legendraid/internal/game/combat"
	"github.com/cory-johannsen/legendraid/internal/game/dice"
	"github.com/cory-johannsen/legendraid/internal/game/stats"
)

var errFlaky = errors.New("connection reset by peer")

func testConfig() config.BattleConfig {
	return config.BattleConfig{
		SessionIdleTimeout:    time.Minute,
		SweepInterval:         time.Minute,
		DuelMaxTurns:          3,
		SetupTimeout:          time.Second,
		SetupPollInterval:     5 * time.Millisecond,
		TerminalWriteAttempts: 3,
		TerminalWriteBackoff:  time.Millisecond,
		MaxPartySize:          3,
	}
}

func hero(id, owner string) *character.Character {
	return &character.Character{
		ID:      id,
		OwnerID: owner,
		Name:    id,
		Scores:  stats.Scores{World: 5, Story: 5, Narrative: 5, Combat: 5, Support: 5},
		Skills: []character.Skill{
			{Name: "Jab", Power: 3},
			{Name: "Hook", Power: 5},
			{Name: "Cross", Power: 7},
			{Name: "Guard", Power: 2},
		},
	}
}

// fakeCharacters is an in-memory CharacterRepository.
type fakeCharacters struct {
	mu sync.Mutex
	m  map[string]*character.Character
}

func newFakeCharacters(cs ...*character.Character) *fakeCharacters {
	f := &fakeCharacters{m: make(map[string]*character.Character)}
	for _, c := range cs {
		f.m[c.ID] = c
	}
	return f
}

func (f *fakeCharacters) GetCharacter(_ context.Context, id string) (*character.Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.m[id]
	if !ok {
		return nil, fmt.Errorf("character %s: %w", id, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCharacters) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.m, id)
}

// fakeBosses is an in-memory BossRepository.
type fakeBosses struct {
	m map[string]*boss.Boss
}

func newFakeBosses(bs ...*boss.Boss) *fakeBosses {
	f := &fakeBosses{m: make(map[string]*boss.Boss)}
	for _, b := range bs {
		f.m[b.ID] = b
	}
	return f
}

func (f *fakeBosses) GetBoss(_ context.Context, id string) (*boss.Boss, error) {
	b, ok := f.m[id]
	if !ok {
		return nil, fmt.Errorf("boss %s: %w", id, ErrNotFound)
	}
	return b, nil
}

// fakeRaids is an in-memory RaidRepository whose FinishRaid can be made to fail.
type fakeRaids struct {
	mu             sync.Mutex
	m              map[string]*RaidRecord
	gets           int
	finishCalls    int
	finishFailures int
}

func newFakeRaids() *fakeRaids {
	return &fakeRaids{m: make(map[string]*RaidRecord)}
}

func (f *fakeRaids) CreateRaid(_ context.Context, r *RaidRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *r
	f.m[r.ID] = &cp
	return nil
}

func (f *fakeRaids) GetRaid(_ context.Context, id string) (*RaidRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	r, ok := f.m[id]
	if !ok {
		return nil, fmt.Errorf("raid %s: %w", id, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRaids) SaveTables(_ context.Context, id string, tb []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.m[id]
	if !ok || r.Status != RaidPending {
		return fmt.Errorf("pending raid %s: %w", id, ErrNotFound)
	}
	r.Tables = append([]byte(nil), tb...)
	r.Status = RaidReady
	return nil
}

func (f *fakeRaids) FinishRaid(_ context.Context, r *RaidRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishCalls++
	if f.finishFailures > 0 {
		f.finishFailures--
		return errFlaky
	}
	prev, ok := f.m[r.ID]
	if !ok {
		return fmt.Errorf("raid %s: %w", r.ID, ErrNotFound)
	}
	cp := *r
	cp.CreatedAt = prev.CreatedAt
	cp.Tables = prev.Tables
	cp.Status = RaidFinished
	f.m[r.ID] = &cp
	return nil
}

func (f *fakeRaids) record(id string) RaidRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.m[id]
}

func (f *fakeRaids) setFinishFailures(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishFailures = n
}

func (f *fakeRaids) finishes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finishCalls
}

// fakeDuels is an in-memory DuelRepository.
type fakeDuels struct {
	mu             sync.Mutex
	m              map[string]*DuelRecord
	saveCalls      int
	finishCalls    int
	finishFailures int
}

func newFakeDuels() *fakeDuels {
	return &fakeDuels{m: make(map[string]*DuelRecord)}
}

func (f *fakeDuels) CreateDuel(_ context.Context, d *DuelRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *d
	f.m[d.ID] = &cp
	return nil
}

func (f *fakeDuels) GetDuel(_ context.Context, id string) (*DuelRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.m[id]
	if !ok {
		return nil, fmt.Errorf("duel %s: %w", id, ErrNotFound)
	}
	cp := *d
	cp.History = append([]combat.DuelTurn(nil), d.History...)
	return &cp, nil
}

func (f *fakeDuels) SaveDuel(_ context.Context, d *DuelRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	prev, ok := f.m[d.ID]
	if !ok || prev.Finished {
		return fmt.Errorf("open duel %s: %w", d.ID, ErrNotFound)
	}
	prev.History = append([]combat.DuelTurn(nil), d.History...)
	return nil
}

func (f *fakeDuels) FinishDuel(_ context.Context, d *DuelRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishCalls++
	if f.finishFailures > 0 {
		f.finishFailures--
		return errFlaky
	}
	cp := *d
	cp.History = append([]combat.DuelTurn(nil), d.History...)
	f.m[d.ID] = &cp
	return nil
}

func (f *fakeDuels) record(id string) DuelRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.m[id]
}

func (f *fakeDuels) counts() (saves, finishes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveCalls, f.finishCalls
}

// fakeGenerator returns a fixed payload, optionally waiting on release first.
type fakeGenerator struct {
	payload []byte
	err     error
	release chan struct{}

	mu   sync.Mutex
	reqs []SetupRequest
}

func (g *fakeGenerator) Generate(_ context.Context, req SetupRequest) ([]byte, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	if g.release != nil {
		<-g.release
	}
	return g.payload, g.err
}

func (g *fakeGenerator) requests() []SetupRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SetupRequest(nil), g.reqs...)
}

type raidFixture struct {
	engine *RaidEngine
	raids  *fakeRaids
	chars  *fakeCharacters
	gen    *fakeGenerator
}

func newRaidFixture(t *testing.T, cfg config.BattleConfig, bosses ...*boss.Boss) *raidFixture {
	t.Helper()
	f := &raidFixture{
		raids: newFakeRaids(),
		chars: newFakeCharacters(hero("ayla", "u1"), hero("brom", "u1"), hero("cass", "u1"), hero("dex", "u1"), hero("eve", "u2")),
		gen:   &fakeGenerator{},
	}
	f.engine = NewRaidEngine(cfg, f.raids, newFakeBosses(bosses...), f.chars, f.gen, dice.NewSeededSource(7), zap.NewNop())
	t.Cleanup(f.engine.Shutdown)
	return f
}

// seedReady stores a ready raid for u1 with default tables.
func (f *raidFixture) seedReady(id, bossID string, members ...string) {
	party := make([]PartySlot, len(members))
	for i, m := range members {
		party[i] = PartySlot{CharacterID: m, Selected: []int{0, 1, 2}}
	}
	now := time.Now()
	f.raids.m[id] = &RaidRecord{
		ID:        id,
		UserID:    "u1",
		BossID:    bossID,
		Status:    RaidReady,
		Party:     party,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Bosses without skills never counter, so the party survives indefinitely.
func tank(hp int) *boss.Boss {
	return &boss.Boss{ID: "tank", Name: "Iron Colossus", MaxHP: hp, PartyLimit: 3}
}

func glass() *boss.Boss {
	return &boss.Boss{ID: "glass", Name: "Glass Wisp", MaxHP: 15, PartyLimit: 2}
}
