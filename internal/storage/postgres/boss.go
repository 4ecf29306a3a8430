package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/legendraid/internal/battle"
	"github.com/cory-johannsen/legendraid/internal/game/boss"
)

// ErrBossNotFound is returned when a boss lookup yields no results.
var ErrBossNotFound = fmt.Errorf("boss %w", battle.ErrNotFound)

const bossColumns = `id, name, stage, description, max_hp, party_limit, traits, skills`

// BossRepository stores the boss catalog.
type BossRepository struct {
	db *pgxpool.Pool
}

// NewBossRepository creates a BossRepository backed by the given pool.
func NewBossRepository(db *pgxpool.Pool) *BossRepository {
	return &BossRepository{db: db}
}

// Upsert inserts b or replaces the stored boss with the same ID.
//
// Precondition: b must pass Validate.
func (r *BossRepository) Upsert(ctx context.Context, b *boss.Boss) error {
	traits, err := json.Marshal(b.Traits)
	if err != nil {
		return fmt.Errorf("encoding traits: %w", err)
	}
	skills, err := json.Marshal(b.Skills)
	if err != nil {
		return fmt.Errorf("encoding skills: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO bosses (id, name, stage, description, max_hp, party_limit, traits, skills)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, stage = EXCLUDED.stage, description = EXCLUDED.description,
			max_hp = EXCLUDED.max_hp, party_limit = EXCLUDED.party_limit,
			traits = EXCLUDED.traits, skills = EXCLUDED.skills, updated_at = NOW()`,
		b.ID, b.Name, b.Stage, b.Description, b.MaxHP, b.PartyLimit, traits, skills,
	)
	if err != nil {
		return fmt.Errorf("upserting boss %s: %w", b.ID, err)
	}
	return nil
}

// GetBoss retrieves a boss by ID.
//
// Postcondition: Returns the Boss or ErrBossNotFound.
func (r *BossRepository) GetBoss(ctx context.Context, id string) (*boss.Boss, error) {
	b, err := scanBoss(r.db.QueryRow(ctx, `SELECT `+bossColumns+` FROM bosses WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, ErrBossNotFound, "querying boss")
	}
	return b, nil
}

// List returns every boss ordered by stage, then ID.
func (r *BossRepository) List(ctx context.Context) ([]*boss.Boss, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bossColumns+` FROM bosses ORDER BY stage, id`)
	if err != nil {
		return nil, fmt.Errorf("listing bosses: %w", err)
	}
	defer rows.Close()

	out := make([]*boss.Boss, 0)
	for rows.Next() {
		b, err := scanBoss(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning boss row: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBoss(row pgx.Row) (*boss.Boss, error) {
	var (
		b              boss.Boss
		traits, skills []byte
	)
	if err := row.Scan(&b.ID, &b.Name, &b.Stage, &b.Description, &b.MaxHP, &b.PartyLimit, &traits, &skills); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(traits, &b.Traits); err != nil {
		return nil, fmt.Errorf("decoding traits of %s: %w", b.ID, err)
	}
	if err := json.Unmarshal(skills, &b.Skills); err != nil {
		return nil, fmt.Errorf("decoding skills of %s: %w", b.ID, err)
	}
	return &b, nil
}
