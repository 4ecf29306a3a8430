package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/legendraid/internal/battle"
	"github.com/cory-johannsen/legendraid/internal/game/combat"
)

// ErrRaidNotFound is returned when a raid lookup or a status-guarded update matches no row.
var ErrRaidNotFound = fmt.Errorf("raid %w", battle.ErrNotFound)

const raidColumns = `id, user_id, boss_id, status, party, tables, boss_hp, party_status,
	engagement, log, outcome, created_at, updated_at`

// RaidRepository persists raid setup and terminal snapshots.
type RaidRepository struct {
	db *pgxpool.Pool
}

// NewRaidRepository creates a RaidRepository backed by the given pool.
func NewRaidRepository(db *pgxpool.Pool) *RaidRepository {
	return &RaidRepository{db: db}
}

// CreateRaid inserts a new raid and sets its timestamps.
//
// Precondition: rec.ID, rec.UserID, and rec.BossID must be set; the boss must exist.
func (r *RaidRepository) CreateRaid(ctx context.Context, rec *battle.RaidRecord) error {
	party, err := json.Marshal(rec.Party)
	if err != nil {
		return fmt.Errorf("encoding party: %w", err)
	}
	status := rec.Status
	if status == "" {
		status = battle.RaidPending
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO raids (id, user_id, boss_id, status, party, tables)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		rec.ID, rec.UserID, rec.BossID, string(status), party, nullJSON(rec.Tables),
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting raid %s: %w", rec.ID, err)
	}
	rec.Status = status
	return nil
}

// GetRaid retrieves a raid by ID.
//
// Postcondition: Returns the RaidRecord or ErrRaidNotFound.
func (r *RaidRepository) GetRaid(ctx context.Context, id string) (*battle.RaidRecord, error) {
	var (
		rec                      battle.RaidRecord
		status, outcome          string
		party, partyStatus, logs []byte
		tablesDoc                []byte
	)
	err := r.db.QueryRow(ctx, `SELECT `+raidColumns+` FROM raids WHERE id = $1`, id).Scan(
		&rec.ID, &rec.UserID, &rec.BossID, &status, &party, &tablesDoc, &rec.BossHP, &partyStatus,
		&rec.Engagement, &logs, &outcome, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, ErrRaidNotFound, "querying raid")
	}
	rec.Status = battle.RaidStatus(status)
	rec.Outcome = combat.Outcome(outcome)
	if len(tablesDoc) > 0 {
		rec.Tables = json.RawMessage(tablesDoc)
	}
	if err := decodeAll(id, map[string]decodeTarget{
		"party":        {party, &rec.Party},
		"party status": {partyStatus, &rec.PartyStatus},
		"log":          {logs, &rec.Log},
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveTables stores coerced tables and moves a pending raid to ready.
//
// Postcondition: Returns ErrRaidNotFound when the raid is missing or no longer pending.
func (r *RaidRepository) SaveTables(ctx context.Context, id string, tables []byte) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE raids SET tables = $2, status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		id, tables, string(battle.RaidReady), string(battle.RaidPending),
	)
	if err != nil {
		return fmt.Errorf("saving tables of raid %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRaidNotFound
	}
	return nil
}

// FinishRaid writes the terminal snapshot. Repeating the write with the same record is harmless.
//
// Postcondition: Returns ErrRaidNotFound if no row was updated.
func (r *RaidRepository) FinishRaid(ctx context.Context, rec *battle.RaidRecord) error {
	partyStatus, err := json.Marshal(rec.PartyStatus)
	if err != nil {
		return fmt.Errorf("encoding party status: %w", err)
	}
	logs, err := json.Marshal(rec.Log)
	if err != nil {
		return fmt.Errorf("encoding log: %w", err)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE raids
		SET status = $2, boss_hp = $3, party_status = $4, engagement = $5, log = $6, outcome = $7,
		    updated_at = NOW()
		WHERE id = $1`,
		rec.ID, string(battle.RaidFinished), rec.BossHP, partyStatus, rec.Engagement, logs, string(rec.Outcome),
	)
	if err != nil {
		return fmt.Errorf("finishing raid %s: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRaidNotFound
	}
	return nil
}

type decodeTarget struct {
	raw []byte
	dst any
}

func decodeAll(id string, targets map[string]decodeTarget) error {
	for name, t := range targets {
		if len(t.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(t.raw, t.dst); err != nil {
			return fmt.Errorf("decoding %s of %s: %w", name, id, err)
		}
	}
	return nil
}

// nullJSON stores an empty document as SQL NULL.
func nullJSON(doc json.RawMessage) any {
	if len(doc) == 0 {
		return nil
	}
	return []byte(doc)
}
