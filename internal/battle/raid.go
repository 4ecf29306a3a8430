package battle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cory-johannsen/legendraid/internal/config"
	"github.com/cory-johannsen/legendraid/internal/game/character"
	"github.com/cory-johannsen/legendraid/internal/game/combat"
	"github.com/cory-johannsen/legendraid/internal/game/dice"
	"github.com/cory-johannsen/legendraid/internal/game/session"
	"github.com/cory-johannsen/legendraid/internal/game/tables"
	"github.com/cory-johannsen/legendraid/internal/observability"
)

// raidSession is one live raid. Sessions are immutable; every transition installs a new one.
type raidSession struct {
	userID    string
	party     []PartySlot
	state     combat.RaidState
	persisted bool
}

// unflushed reports whether the session ended but its final write has not landed.
func (s *raidSession) unflushed() bool {
	return s.state.Terminal() && !s.persisted
}

// rehydrated is the shared result of one rehydration.
type rehydrated struct {
	userID  string
	session *raidSession
	// final is set instead of session when the raid already finished.
	final *Snapshot
}

// RaidEngine runs cached party-versus-boss raids. In-progress state is held in memory only;
// storage is written when a raid is created, when its tables are ready, and once when it ends.
type RaidEngine struct {
	cfg    config.BattleConfig
	raids  RaidRepository
	bosses BossRepository
	chars  CharacterRepository
	gen    TableGenerator
	src    dice.Source
	logger *zap.Logger

	store     *session.MemoryStore[*raidSession]
	locks     *session.KeyLocker
	group     singleflight.Group
	deadlines *setupDeadlines
	writer    durableWriter
	prepares  sync.WaitGroup

	newID func() string
	now   func() time.Time
}

// NewRaidEngine creates a RaidEngine.
//
// Precondition: every repository, src, and logger must be non-nil; gen may be nil.
// Postcondition: Terminal sessions whose final write failed are never evicted.
func NewRaidEngine(
	cfg config.BattleConfig,
	raids RaidRepository,
	bosses BossRepository,
	chars CharacterRepository,
	gen TableGenerator,
	src dice.Source,
	logger *zap.Logger,
) *RaidEngine {
	if gen == nil {
		gen = DefaultTables{}
	}
	return &RaidEngine{
		cfg:       cfg,
		raids:     raids,
		bosses:    bosses,
		chars:     chars,
		gen:       gen,
		src:       src,
		logger:    logger,
		store:     session.NewMemoryStore(cfg.SessionIdleTimeout, (*raidSession).unflushed),
		locks:     session.NewKeyLocker(),
		deadlines: newSetupDeadlines(),
		writer:    newDurableWriter(cfg, logger),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Mode returns ModeRaid.
func (e *RaidEngine) Mode() Mode { return ModeRaid }

// Sessions exposes the session store to the idle sweeper.
func (e *RaidEngine) Sessions() session.Sweepable { return e.store }

// Shutdown cancels pending setup deadlines and waits for in-flight table preparation.
func (e *RaidEngine) Shutdown() {
	e.deadlines.StopAll()
	e.prepares.Wait()
}

// Load returns the raid's live state, rehydrating it from storage on first contact.
//
// Postcondition: Returns ErrPermission when the raid belongs to another user.
// Postcondition: Returns ErrSetupPending while tables are being precomputed.
func (e *RaidEngine) Load(ctx context.Context, battleID, userID string) (Snapshot, error) {
	if s, ok := e.store.Get(battleID); ok {
		if s.userID != userID {
			return Snapshot{}, fmt.Errorf("raid %s: %w", battleID, ErrPermission)
		}
		if !s.unflushed() {
			return raidSnapshot(battleID, s.state, s.persisted), nil
		}
		unlock, err := e.locks.Lock(ctx, battleID)
		if err != nil {
			return Snapshot{}, err
		}
		defer unlock()
		return e.settle(ctx, battleID, e.current(battleID, s))
	}

	v, err, _ := e.group.Do(battleID, func() (any, error) {
		return e.rehydrate(ctx, battleID)
	})
	if err != nil {
		return Snapshot{}, err
	}
	r := v.(*rehydrated)
	if r.userID != userID {
		return Snapshot{}, fmt.Errorf("raid %s: %w", battleID, ErrPermission)
	}
	if r.final != nil {
		return *r.final, nil
	}

	unlock, err := e.locks.Lock(ctx, battleID)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()
	s := r.session
	if existing, ok := e.store.Get(battleID); ok {
		s = existing
	} else {
		e.store.Put(battleID, s)
		observability.WithBattle(e.logger, string(ModeRaid), battleID).Info("session rehydrated",
			zap.Int("party_size", len(s.state.Party)),
		)
	}
	return raidSnapshot(battleID, s.state, s.persisted), nil
}

// Act resolves one engagement for the acting party member.
//
// Precondition: Load must have installed a session for battleID.
// Postcondition: Returns ErrSessionLost when no session is cached; the caller should Load again.
// Postcondition: Returns ErrInvalidSkill, leaving the session unchanged, for a choice outside the actor's selection.
// Postcondition: A terminal snapshot is returned with ErrNotDurable when its final write failed.
func (e *RaidEngine) Act(ctx context.Context, battleID, userID string, choice int) (Snapshot, error) {
	unlock, err := e.locks.Lock(ctx, battleID)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()

	s, ok := e.store.Get(battleID)
	if !ok {
		return Snapshot{}, fmt.Errorf("raid %s: %w", battleID, ErrSessionLost)
	}
	if s.userID != userID {
		return Snapshot{}, fmt.Errorf("raid %s: %w", battleID, ErrPermission)
	}
	if s.state.Terminal() {
		return e.settle(ctx, battleID, s)
	}

	logger := observability.WithBattle(e.logger, string(ModeRaid), battleID)
	next, res, err := combat.ApplyRaid(s.state, combat.Act(choice), dice.NewLoggedSource(e.src, logger, "boss_skill"))
	if err != nil {
		return Snapshot{}, fmt.Errorf("raid %s: %w: %w", battleID, ErrInvalidSkill, err)
	}
	logger.Debug("engagement resolved",
		zap.Int("actor", res.Actor),
		zap.Int("skill", res.Skill),
		zap.Float64("skill_damage", res.SkillDamage),
		zap.Float64("effect_damage", res.EffectDamage),
		zap.Int("engagement", next.Schedule.Engagement),
	)
	ns := s.with(next)
	e.store.Put(battleID, ns)
	if next.Terminal() {
		return e.settle(ctx, battleID, ns)
	}
	return raidSnapshot(battleID, next, false), nil
}

// Forfeit ends the raid as a forfeit and writes it immediately, whatever its current state.
//
// Postcondition: Forfeiting a finished raid returns its final snapshot unchanged.
func (e *RaidEngine) Forfeit(ctx context.Context, battleID, userID string) (Snapshot, error) {
	return e.terminate(ctx, battleID, userID, combat.OutcomeForfeit)
}

// FailSetup ends a raid whose precomputation failed or timed out.
//
// Postcondition: Returns ErrAlreadyStarted once the first engagement has resolved.
// Postcondition: Failing a finished raid returns its final snapshot unchanged.
func (e *RaidEngine) FailSetup(ctx context.Context, battleID string) (Snapshot, error) {
	e.deadlines.Disarm(battleID)
	return e.terminate(ctx, battleID, "", combat.OutcomeSetupError)
}

// terminate applies a forfeit or a setup failure. An empty userID skips the ownership check.
func (e *RaidEngine) terminate(ctx context.Context, battleID, userID string, o combat.Outcome) (Snapshot, error) {
	unlock, err := e.locks.Lock(ctx, battleID)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()

	s, ok := e.store.Get(battleID)
	if !ok {
		rec, err := e.raids.GetRaid(ctx, battleID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("raid %s: %w", battleID, err)
		}
		if userID != "" && rec.UserID != userID {
			return Snapshot{}, fmt.Errorf("raid %s: %w", battleID, ErrPermission)
		}
		switch rec.Status {
		case RaidFinished:
			return recordSnapshot(rec, e.bossName(ctx, rec.BossID)), nil
		case RaidPending:
			return e.terminatePending(ctx, rec, o)
		}
		if s, err = e.build(ctx, rec); err != nil {
			return Snapshot{}, err
		}
	}
	if userID != "" && s.userID != userID {
		return Snapshot{}, fmt.Errorf("raid %s: %w", battleID, ErrPermission)
	}
	if s.state.Terminal() {
		return e.settle(ctx, battleID, s)
	}

	action := combat.Forfeit()
	if o == combat.OutcomeSetupError {
		action = combat.FailSetup()
	}
	next, _, err := combat.ApplyRaid(s.state, action, e.src)
	if errors.Is(err, combat.ErrBattleStarted) {
		return Snapshot{}, fmt.Errorf("raid %s: %w", battleID, ErrAlreadyStarted)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("raid %s: %w", battleID, err)
	}
	ns := s.with(next)
	e.store.Put(battleID, ns)
	return e.settle(ctx, battleID, ns)
}

// terminatePending finishes a raid that never got its tables.
func (e *RaidEngine) terminatePending(ctx context.Context, rec *RaidRecord, o combat.Outcome) (Snapshot, error) {
	e.deadlines.Disarm(rec.ID)
	line := "The party gives up. The raid is forfeited."
	if o == combat.OutcomeSetupError {
		line = "Battle preparation never completed. The raid is lost."
	}
	fin := *rec
	fin.Status = RaidFinished
	fin.Outcome = o
	fin.Engagement = 1
	fin.Log = []string{line}
	fin.UpdatedAt = e.now()
	name := rec.BossID
	if b, err := e.bosses.GetBoss(ctx, rec.BossID); err == nil {
		name = b.Name
		fin.BossHP = float64(b.HP())
	}
	fin.PartyStatus = make([]MemberStatus, 0, len(rec.Party))
	for _, slot := range rec.Party {
		st := MemberStatus{CharacterID: slot.CharacterID}
		if c, err := e.chars.GetCharacter(ctx, slot.CharacterID); err == nil {
			m := c.Member(slot.Selected)
			st.Name, st.HP, st.MaxHP = m.Name, m.HP, m.MaxHP
		}
		fin.PartyStatus = append(fin.PartyStatus, st)
	}

	err := e.writer.write(ctx, "finish raid", rec.ID, func(ctx context.Context) error {
		return e.raids.FinishRaid(ctx, &fin)
	})
	snap := recordSnapshot(&fin, name)
	if err != nil {
		snap.Durable = false
		return snap, err
	}
	observability.WithBattle(e.logger, string(ModeRaid), rec.ID).Info("battle finished",
		zap.String("outcome", string(o)),
	)
	return snap, nil
}

// settle writes a terminal session if it has not been written yet.
//
// Precondition: the caller holds the battle's key lock; s is terminal.
func (e *RaidEngine) settle(ctx context.Context, battleID string, s *raidSession) (Snapshot, error) {
	if s.persisted {
		return raidSnapshot(battleID, s.state, true), nil
	}
	rec := finishedRecord(battleID, s, e.now())
	if err := e.writer.write(ctx, "finish raid", battleID, func(ctx context.Context) error {
		return e.raids.FinishRaid(ctx, rec)
	}); err != nil {
		return raidSnapshot(battleID, s.state, false), err
	}
	done := *s
	done.persisted = true
	e.store.Put(battleID, &done)
	observability.WithBattle(e.logger, string(ModeRaid), battleID).Info("battle finished",
		zap.String("outcome", string(s.state.Outcome)),
		zap.Int("engagement", s.state.Schedule.Engagement),
	)
	return raidSnapshot(battleID, s.state, true), nil
}

// current returns the freshest cached session, falling back to s.
func (e *RaidEngine) current(battleID string, s *raidSession) *raidSession {
	if latest, ok := e.store.Get(battleID); ok {
		return latest
	}
	return s
}

func (e *RaidEngine) rehydrate(ctx context.Context, battleID string) (*rehydrated, error) {
	rec, err := e.raids.GetRaid(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("raid %s: %w", battleID, err)
	}
	switch rec.Status {
	case RaidPending:
		return nil, fmt.Errorf("raid %s: %w", battleID, ErrSetupPending)
	case RaidFinished:
		snap := recordSnapshot(rec, e.bossName(ctx, rec.BossID))
		return &rehydrated{userID: rec.UserID, final: &snap}, nil
	}
	s, err := e.build(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &rehydrated{userID: rec.UserID, session: s}, nil
}

// build derives a fresh opening state for a ready raid. Hit points are recomputed from scores.
func (e *RaidEngine) build(ctx context.Context, rec *RaidRecord) (*raidSession, error) {
	b, err := e.bosses.GetBoss(ctx, rec.BossID)
	if err != nil {
		return nil, fmt.Errorf("raid %s boss %s: %w", rec.ID, rec.BossID, err)
	}
	party := make([]combat.Member, 0, len(rec.Party))
	for _, slot := range rec.Party {
		c, err := e.chars.GetCharacter(ctx, slot.CharacterID)
		if err != nil {
			return nil, fmt.Errorf("raid %s character %s: %w", rec.ID, slot.CharacterID, err)
		}
		party = append(party, c.Member(slot.Selected))
	}
	tb := tables.Coerce(rec.Tables, tables.RaidShape(len(party)))
	return &raidSession{
		userID: rec.UserID,
		party:  rec.Party,
		state:  combat.NewRaidState(b.Combatant(), party, tb),
	}, nil
}

func (e *RaidEngine) bossName(ctx context.Context, bossID string) string {
	b, err := e.bosses.GetBoss(ctx, bossID)
	if err != nil {
		return bossID
	}
	return b.Name
}

func (s *raidSession) with(state combat.RaidState) *raidSession {
	next := *s
	next.state = state
	next.persisted = false
	return &next
}

// CreateRaid validates a party against a boss and stores a pending raid. Table precomputation
// starts in the background; if it misses the setup window the raid ends as a setup error.
//
// Postcondition: Returns ErrInvalidRequest for an empty or oversized party, a repeated character,
// or an invalid skill selection.
// Postcondition: Returns ErrPermission when a party character belongs to another user.
func (e *RaidEngine) CreateRaid(ctx context.Context, userID, bossID string, team []PartySlot) (*RaidRecord, error) {
	b, err := e.bosses.GetBoss(ctx, bossID)
	if err != nil {
		return nil, fmt.Errorf("create raid boss %s: %w", bossID, err)
	}
	limit := b.Limit()
	if e.cfg.MaxPartySize > 0 {
		limit = min(limit, e.cfg.MaxPartySize)
	}
	if len(team) == 0 || len(team) > limit {
		return nil, fmt.Errorf("create raid: party of %d against a limit of %d: %w", len(team), limit, ErrInvalidRequest)
	}

	req := SetupRequest{Mode: ModeRaid, Boss: b}
	seen := make(map[string]bool, len(team))
	for _, slot := range team {
		if seen[slot.CharacterID] {
			return nil, fmt.Errorf("create raid: character %s listed twice: %w", slot.CharacterID, ErrInvalidRequest)
		}
		seen[slot.CharacterID] = true
		c, err := e.chars.GetCharacter(ctx, slot.CharacterID)
		if err != nil {
			return nil, fmt.Errorf("create raid character %s: %w", slot.CharacterID, err)
		}
		if c.OwnerID != userID {
			return nil, fmt.Errorf("create raid character %s: %w", slot.CharacterID, ErrPermission)
		}
		if err := character.ValidateSelection(c, slot.Selected); err != nil {
			return nil, fmt.Errorf("create raid: %w: %w", ErrInvalidRequest, err)
		}
		req.Party = append(req.Party, c)
		req.Selected = append(req.Selected, append([]int(nil), slot.Selected...))
	}

	now := e.now()
	rec := &RaidRecord{
		ID:        e.newID(),
		UserID:    userID,
		BossID:    bossID,
		Status:    RaidPending,
		Party:     clonePartySlots(team),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.raids.CreateRaid(ctx, rec); err != nil {
		return nil, fmt.Errorf("create raid: %w", err)
	}
	req.BattleID = rec.ID

	if e.cfg.SetupTimeout > 0 {
		e.deadlines.Arm(rec.ID, e.cfg.SetupTimeout, func() { e.expireSetup(rec.ID) })
	}
	e.prepares.Add(1)
	go e.prepare(req)

	observability.WithBattle(e.logger, string(ModeRaid), rec.ID).Info("raid created",
		zap.String("boss_id", bossID),
		zap.Int("party_size", len(team)),
	)
	return rec, nil
}

// prepare generates, coerces, and stores the raid's tables.
func (e *RaidEngine) prepare(req SetupRequest) {
	defer e.prepares.Done()
	logger := observability.WithBattle(e.logger, string(ModeRaid), req.BattleID)

	ctx := context.Background()
	if e.cfg.SetupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.SetupTimeout)
		defer cancel()
	}
	raw, err := e.gen.Generate(ctx, req)
	if err != nil {
		logger.Warn("table generation failed, using defaults", zap.Error(err))
		raw = nil
	}
	doc, err := json.Marshal(tables.Coerce(raw, tables.RaidShape(len(req.Party))))
	if err != nil {
		logger.Error("encoding tables", zap.Error(err))
		return
	}
	// A deadline that already fired owns the raid; its tables are not saved.
	if !e.deadlines.Disarm(req.BattleID) && e.cfg.SetupTimeout > 0 {
		logger.Info("raid left setup before tables were ready")
		return
	}
	err = e.writer.write(ctx, "save tables", req.BattleID, func(ctx context.Context) error {
		return e.raids.SaveTables(ctx, req.BattleID, doc)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Info("raid left setup before tables were ready")
		}
		return
	}
	logger.Info("raid ready")
}

func (e *RaidEngine) expireSetup(battleID string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SetupTimeout)
	defer cancel()
	logger := observability.WithBattle(e.logger, string(ModeRaid), battleID)
	rec, err := e.raids.GetRaid(ctx, battleID)
	if err != nil {
		logger.Warn("setup deadline expiry failed", zap.Error(err))
		return
	}
	if rec.Status != RaidPending {
		return
	}
	if _, err := e.FailSetup(ctx, battleID); err != nil && !errors.Is(err, ErrAlreadyStarted) {
		logger.Warn("setup deadline expiry failed", zap.Error(err))
		return
	}
	logger.Info("setup deadline reached")
}

// AwaitSetup polls a raid until its tables are ready, it finishes, or the setup window closes.
//
// Postcondition: A raid still pending after the setup window ends with OutcomeSetupError.
func (e *RaidEngine) AwaitSetup(ctx context.Context, battleID, userID string) (Snapshot, error) {
	poll := e.cfg.SetupPollInterval
	if poll <= 0 {
		poll = time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		rec, err := e.raids.GetRaid(ctx, battleID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("raid %s: %w", battleID, err)
		}
		if rec.UserID != userID {
			return Snapshot{}, fmt.Errorf("raid %s: %w", battleID, ErrPermission)
		}
		switch rec.Status {
		case RaidReady, RaidFinished:
			return e.Load(ctx, battleID, userID)
		}
		if e.cfg.SetupTimeout > 0 && e.now().Sub(rec.CreatedAt) > e.cfg.SetupTimeout {
			return e.FailSetup(ctx, battleID)
		}
		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func finishedRecord(battleID string, s *raidSession, now time.Time) *RaidRecord {
	st := s.state
	status := make([]MemberStatus, len(st.Party))
	for i, m := range st.Party {
		status[i] = MemberStatus{CharacterID: m.ID, Name: m.Name, HP: max(m.HP, 0), MaxHP: m.MaxHP}
	}
	return &RaidRecord{
		ID:          battleID,
		UserID:      s.userID,
		BossID:      st.Boss.ID,
		Status:      RaidFinished,
		Party:       s.party,
		BossHP:      max(st.Boss.HP, 0),
		PartyStatus: status,
		Engagement:  st.Schedule.Engagement,
		Log:         append([]string(nil), st.Log...),
		Outcome:     st.Outcome,
		UpdatedAt:   now,
	}
}

// recordSnapshot renders a finished raid from its stored final state.
func recordSnapshot(rec *RaidRecord, bossName string) Snapshot {
	snap := Snapshot{
		Mode:     ModeRaid,
		BattleID: rec.ID,
		Boss: CombatantView{
			ID:    rec.BossID,
			Name:  bossName,
			HP:    rec.BossHP,
			Alive: rec.BossHP > 0,
		},
		Party:      make([]CombatantView, len(rec.PartyStatus)),
		Log:        append([]string(nil), rec.Log...),
		Engagement: rec.Engagement,
		Acting:     -1,
		Terminal:   true,
		Outcome:    rec.Outcome,
		Winner:     rec.Outcome.Winner(),
		Durable:    true,
	}
	for i, m := range rec.PartyStatus {
		snap.Party[i] = CombatantView{
			ID:    m.CharacterID,
			Name:  m.Name,
			HP:    m.HP,
			MaxHP: m.MaxHP,
			Alive: m.HP > 0,
		}
	}
	return snap
}

func clonePartySlots(team []PartySlot) []PartySlot {
	out := make([]PartySlot, len(team))
	for i, slot := range team {
		out[i] = PartySlot{CharacterID: slot.CharacterID, Selected: append([]int(nil), slot.Selected...)}
	}
	return out
}
