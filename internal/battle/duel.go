package battle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/legendraid/internal/config"
	"github.com/cory-johannsen/legendraid/internal/game/character"
	"github.com/cory-johannsen/legendraid/internal/game/combat"
	"github.com/cory-johannsen/legendraid/internal/game/dice"
	"github.com/cory-johannsen/legendraid/internal/game/session"
	"github.com/cory-johannsen/legendraid/internal/game/tables"
	"github.com/cory-johannsen/legendraid/internal/observability"
)

const vanishedName = "a vanished duelist"

// DuelEngine runs stateless one-on-one duels. Nothing is cached: every call reads the duel,
// replays its history from the opening state, and writes the history back after each action.
type DuelEngine struct {
	cfg    config.BattleConfig
	duels  DuelRepository
	chars  CharacterRepository
	gen    TableGenerator
	src    dice.Source
	logger *zap.Logger

	locks  *session.KeyLocker
	writer durableWriter

	newID func() string
	now   func() time.Time
}

// NewDuelEngine creates a DuelEngine.
//
// Precondition: duels, chars, src, and logger must be non-nil; gen may be nil.
func NewDuelEngine(
	cfg config.BattleConfig,
	duels DuelRepository,
	chars CharacterRepository,
	gen TableGenerator,
	src dice.Source,
	logger *zap.Logger,
) *DuelEngine {
	if gen == nil {
		gen = DefaultTables{}
	}
	return &DuelEngine{
		cfg:    cfg,
		duels:  duels,
		chars:  chars,
		gen:    gen,
		src:    src,
		logger: logger,
		locks:  session.NewKeyLocker(),
		writer: newDurableWriter(cfg, logger),
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Mode returns ModeDuel.
func (e *DuelEngine) Mode() Mode { return ModeDuel }

// duelSides holds the characters behind a duel; either may be nil when its record is gone.
type duelSides struct {
	challenger *character.Character
	opponent   *character.Character
}

// CreateDuel precomputes tables for a challenge and stores the new duel.
// A generator failure falls back to default tables.
//
// Postcondition: Returns ErrInvalidRequest when a character challenges itself.
// Postcondition: Returns ErrPermission when the challenger belongs to another user.
func (e *DuelEngine) CreateDuel(ctx context.Context, userID, challengerID, opponentID string) (*DuelRecord, error) {
	if challengerID == opponentID {
		return nil, fmt.Errorf("create duel: %s cannot challenge itself: %w", challengerID, ErrInvalidRequest)
	}
	a, err := e.chars.GetCharacter(ctx, challengerID)
	if err != nil {
		return nil, fmt.Errorf("create duel challenger %s: %w", challengerID, err)
	}
	if a.OwnerID != userID {
		return nil, fmt.Errorf("create duel challenger %s: %w", challengerID, ErrPermission)
	}
	b, err := e.chars.GetCharacter(ctx, opponentID)
	if err != nil {
		return nil, fmt.Errorf("create duel opponent %s: %w", opponentID, err)
	}

	id := e.newID()
	genCtx := ctx
	if e.cfg.SetupTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, e.cfg.SetupTimeout)
		defer cancel()
	}
	raw, err := e.gen.Generate(genCtx, SetupRequest{
		Mode:     ModeDuel,
		BattleID: id,
		Party:    []*character.Character{a},
		Opponent: b,
	})
	logger := observability.WithBattle(e.logger, string(ModeDuel), id)
	if err != nil {
		logger.Warn("table generation failed, using defaults", zap.Error(err))
		raw = nil
	}
	doc, err := json.Marshal(tables.Coerce(raw, tables.DuelShape()))
	if err != nil {
		return nil, fmt.Errorf("create duel: encoding tables: %w", err)
	}

	now := e.now()
	rec := &DuelRecord{
		ID:           id,
		UserID:       userID,
		ChallengerID: challengerID,
		OpponentID:   opponentID,
		Tables:       doc,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.duels.CreateDuel(ctx, rec); err != nil {
		return nil, fmt.Errorf("create duel: %w", err)
	}
	logger.Info("duel created",
		zap.String("challenger_id", challengerID),
		zap.String("opponent_id", opponentID),
	)
	return rec, nil
}

// Load replays the duel and returns its current view. A duel whose character records have
// disappeared is ended and written on load.
func (e *DuelEngine) Load(ctx context.Context, battleID, userID string) (Snapshot, error) {
	unlock, err := e.locks.Lock(ctx, battleID)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()

	rec, s, sides, err := e.open(ctx, battleID, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if s.Terminal() && !rec.Finished {
		return e.finish(ctx, rec, s, sides)
	}
	return duelSnapshot(battleID, s, rec, true), nil
}

// Act resolves one duel turn with the challenger's choice and a random opponent pick.
//
// Postcondition: Returns ErrInvalidSkill when choice is not among the offered skills.
// Postcondition: Acting on a finished duel returns its final view unchanged.
func (e *DuelEngine) Act(ctx context.Context, battleID, userID string, choice int) (Snapshot, error) {
	unlock, err := e.locks.Lock(ctx, battleID)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()

	rec, s, sides, err := e.open(ctx, battleID, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if rec.Finished {
		return duelSnapshot(battleID, s, rec, true), nil
	}
	if s.Terminal() {
		return e.finish(ctx, rec, s, sides)
	}

	logger := observability.WithBattle(e.logger, string(ModeDuel), battleID)
	next, turn, err := combat.ApplyDuel(s, choice, dice.NewLoggedSource(e.src, logger, "opponent_skill"))
	if err != nil {
		return Snapshot{}, fmt.Errorf("duel %s: %w: %w", battleID, ErrInvalidSkill, err)
	}
	logger.Debug("duel turn resolved",
		zap.Int("turn", turn.Turn),
		zap.Int("skill_a", turn.SkillA),
		zap.Int("skill_b", turn.SkillB),
		zap.Float64("total_a", turn.TotalDamageA),
		zap.Float64("total_b", turn.TotalDamageB),
	)
	if next.Terminal() {
		return e.finish(ctx, rec, next, sides)
	}

	saved := *rec
	saved.History = next.History
	saved.UpdatedAt = e.now()
	err = e.writer.write(ctx, "save duel", battleID, func(ctx context.Context) error {
		return e.duels.SaveDuel(ctx, &saved)
	})
	return duelSnapshot(battleID, next, &saved, err == nil), err
}

// Forfeit ends the duel as a challenger forfeit.
//
// Postcondition: Forfeiting a finished duel returns its final view unchanged.
func (e *DuelEngine) Forfeit(ctx context.Context, battleID, userID string) (Snapshot, error) {
	unlock, err := e.locks.Lock(ctx, battleID)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()

	rec, s, sides, err := e.open(ctx, battleID, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if rec.Finished {
		return duelSnapshot(battleID, s, rec, true), nil
	}
	if !s.Terminal() {
		s = combat.EndDuel(s, combat.OutcomeForfeit, fmt.Sprintf("%s yields the duel.", s.A.Name))
	}
	return e.finish(ctx, rec, s, sides)
}

// open reads a duel and rebuilds its state. Unfinished duels are replayed; finished ones are
// restored from their last recorded turn. A missing challenger ends the duel as a loss and a
// missing opponent as a win.
func (e *DuelEngine) open(ctx context.Context, battleID, userID string) (*DuelRecord, combat.DuelState, duelSides, error) {
	rec, err := e.duels.GetDuel(ctx, battleID)
	if err != nil {
		return nil, combat.DuelState{}, duelSides{}, fmt.Errorf("duel %s: %w", battleID, err)
	}
	if rec.UserID != userID {
		return nil, combat.DuelState{}, duelSides{}, fmt.Errorf("duel %s: %w", battleID, ErrPermission)
	}

	var sides duelSides
	if sides.challenger, err = e.lookup(ctx, rec.ChallengerID); err != nil {
		return nil, combat.DuelState{}, duelSides{}, fmt.Errorf("duel %s: %w", battleID, err)
	}
	if sides.opponent, err = e.lookup(ctx, rec.OpponentID); err != nil {
		return nil, combat.DuelState{}, duelSides{}, fmt.Errorf("duel %s: %w", battleID, err)
	}

	opening := combat.NewDuelState(
		duelist(rec.ChallengerID, sides.challenger),
		duelist(rec.OpponentID, sides.opponent),
		tables.Coerce(rec.Tables, tables.DuelShape()),
		e.maxTurns(),
	)
	if rec.Finished || sides.challenger == nil || sides.opponent == nil {
		s := restoreDuel(opening, rec)
		switch {
		case rec.Finished:
		case sides.challenger == nil:
			s = combat.EndDuel(s, combat.OutcomeLose, "The challenger is no longer in the arena.")
		default:
			s = combat.EndDuel(s, combat.OutcomeWin, "The opponent is no longer in the arena.")
		}
		return rec, s, sides, nil
	}
	return rec, combat.ReplayDuel(opening, rec.History), sides, nil
}

// lookup reads a character, returning nil without error when it no longer exists.
func (e *DuelEngine) lookup(ctx context.Context, id string) (*character.Character, error) {
	c, err := e.chars.GetCharacter(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return c, err
}

// finish writes a terminal duel together with its rating deltas.
func (e *DuelEngine) finish(ctx context.Context, rec *DuelRecord, s combat.DuelState, sides duelSides) (Snapshot, error) {
	fin := *rec
	fin.History = s.History
	fin.Finished = true
	fin.Outcome = s.Outcome
	fin.UpdatedAt = e.now()

	winner, loser := sides.challenger, sides.opponent
	fin.WinnerID, fin.LoserID = rec.ChallengerID, rec.OpponentID
	if s.Outcome.Winner() != tables.SideA {
		winner, loser = loser, winner
		fin.WinnerID, fin.LoserID = fin.LoserID, fin.WinnerID
	}
	if winner != nil && loser != nil {
		fin.RatingGain, fin.RatingLoss = combat.RatingDelta(winner.Rank(), loser.Rank())
	}

	// The terminal turn is stored first; a failed finish replays to the same end.
	if !rec.Finished && len(s.History) > len(rec.History) {
		staged := *rec
		staged.History = s.History
		staged.UpdatedAt = fin.UpdatedAt
		err := e.writer.write(ctx, "save duel", rec.ID, func(ctx context.Context) error {
			return e.duels.SaveDuel(ctx, &staged)
		})
		if err != nil {
			return duelSnapshot(rec.ID, s, &fin, false), err
		}
	}

	err := e.writer.write(ctx, "finish duel", rec.ID, func(ctx context.Context) error {
		return e.duels.FinishDuel(ctx, &fin)
	})
	if err != nil {
		return duelSnapshot(rec.ID, s, &fin, false), err
	}
	observability.WithBattle(e.logger, string(ModeDuel), rec.ID).Info("battle finished",
		zap.String("outcome", string(fin.Outcome)),
		zap.String("winner_id", fin.WinnerID),
		zap.Int("rating_gain", fin.RatingGain),
		zap.Int("rating_loss", fin.RatingLoss),
	)
	return duelSnapshot(rec.ID, s, &fin, true), nil
}

func (e *DuelEngine) maxTurns() int {
	if e.cfg.DuelMaxTurns > 0 {
		return e.cfg.DuelMaxTurns
	}
	return combat.DefaultDuelTurns
}

// duelist builds a full-health duel member with every skill usable. A missing character
// becomes a placeholder so the duel can still be shown and ended.
func duelist(id string, c *character.Character) combat.Member {
	if c == nil {
		return combat.Member{ID: id, Name: vanishedName, MaxHP: 1, HP: 1}
	}
	all := make([]int, len(c.Skills))
	for i := range all {
		all[i] = i
	}
	return c.Member(all)
}

// restoreDuel rebuilds a duel's state from its recorded turns without re-resolving them.
func restoreDuel(opening combat.DuelState, rec *DuelRecord) combat.DuelState {
	s := opening.Clone()
	s.History = append([]combat.DuelTurn(nil), rec.History...)
	if n := len(s.History); n > 0 {
		last := s.History[n-1]
		s.A.HP, s.B.HP = last.HPAAfter, last.HPBAfter
		s.Turn = max(last.Turn, 1)
	}
	s.Outcome = rec.Outcome
	if !s.Outcome.Terminal() && len(s.History) > 0 {
		s.Outcome = s.History[len(s.History)-1].Outcome
	}
	return s
}
