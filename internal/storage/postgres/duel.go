package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/legendraid/internal/battle"
	"github.com/cory-johannsen/legendraid/internal/game/combat"
)

// ErrDuelNotFound is returned when a duel lookup yields no results.
var ErrDuelNotFound = fmt.Errorf("duel %w", battle.ErrNotFound)

const duelColumns = `id, user_id, challenger_id, opponent_id, tables, history, finished, outcome,
	winner_id, loser_id, rating_gain, rating_loss, created_at, updated_at`

// DuelRepository persists duels and the rating changes they cause.
type DuelRepository struct {
	db *pgxpool.Pool
}

// NewDuelRepository creates a DuelRepository backed by the given pool.
func NewDuelRepository(db *pgxpool.Pool) *DuelRepository {
	return &DuelRepository{db: db}
}

// CreateDuel inserts a new duel and sets its timestamps.
//
// Precondition: d.ID, d.UserID, d.ChallengerID, d.OpponentID, and d.Tables must be set.
func (r *DuelRepository) CreateDuel(ctx context.Context, d *battle.DuelRecord) error {
	history, err := encodeHistory(d.History)
	if err != nil {
		return err
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO duels (id, user_id, challenger_id, opponent_id, tables, history)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		d.ID, d.UserID, d.ChallengerID, d.OpponentID, []byte(d.Tables), history,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting duel %s: %w", d.ID, err)
	}
	return nil
}

// GetDuel retrieves a duel by ID.
//
// Postcondition: Returns the DuelRecord or ErrDuelNotFound.
func (r *DuelRepository) GetDuel(ctx context.Context, id string) (*battle.DuelRecord, error) {
	var (
		d               battle.DuelRecord
		tablesDoc, hist []byte
		outcome         string
	)
	err := r.db.QueryRow(ctx, `SELECT `+duelColumns+` FROM duels WHERE id = $1`, id).Scan(
		&d.ID, &d.UserID, &d.ChallengerID, &d.OpponentID, &tablesDoc, &hist, &d.Finished, &outcome,
		&d.WinnerID, &d.LoserID, &d.RatingGain, &d.RatingLoss, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, ErrDuelNotFound, "querying duel")
	}
	d.Tables = json.RawMessage(tablesDoc)
	d.Outcome = combat.Outcome(outcome)
	if err := decodeAll(id, map[string]decodeTarget{"history": {hist, &d.History}}); err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveDuel rewrites the history of an unfinished duel.
//
// Postcondition: Returns ErrDuelNotFound when the duel is missing or already finished.
func (r *DuelRepository) SaveDuel(ctx context.Context, d *battle.DuelRecord) error {
	history, err := encodeHistory(d.History)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE duels SET history = $2, updated_at = NOW()
		WHERE id = $1 AND NOT finished`,
		d.ID, history,
	)
	if err != nil {
		return fmt.Errorf("saving duel %s: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuelNotFound
	}
	return nil
}

// FinishDuel marks the duel finished and applies its rating deltas in one transaction.
// A duel that is already finished is left untouched, so ratings move once.
//
// Postcondition: Returns ErrDuelNotFound when no such duel exists.
func (r *DuelRepository) FinishDuel(ctx context.Context, d *battle.DuelRecord) error {
	history, err := encodeHistory(d.History)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE duels
			SET history = $2, finished = TRUE, outcome = $3, winner_id = $4, loser_id = $5,
			    rating_gain = $6, rating_loss = $7, updated_at = NOW()
			WHERE id = $1 AND NOT finished`,
			d.ID, history, string(d.Outcome), d.WinnerID, d.LoserID, d.RatingGain, d.RatingLoss,
		)
		if err != nil {
			return fmt.Errorf("finishing duel %s: %w", d.ID, err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM duels WHERE id = $1)`, d.ID).Scan(&exists); err != nil {
				return fmt.Errorf("checking duel %s: %w", d.ID, err)
			}
			if !exists {
				return ErrDuelNotFound
			}
			return nil
		}
		if d.WinnerID != "" && d.RatingGain != 0 {
			if err := adjustRank(ctx, tx, d.WinnerID, d.RatingGain); err != nil {
				return err
			}
		}
		if d.LoserID != "" && d.RatingLoss != 0 {
			if err := adjustRank(ctx, tx, d.LoserID, -d.RatingLoss); err != nil {
				return err
			}
		}
		return nil
	})
}

func encodeHistory(h []combat.DuelTurn) ([]byte, error) {
	if h == nil {
		h = []combat.DuelTurn{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encoding duel history: %w", err)
	}
	return b, nil
}
