package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/legendraid/internal/battle"
	"github.com/cory-johannsen/legendraid/internal/game/character"
	"github.com/cory-johannsen/legendraid/internal/game/combat"
)

// ErrCharacterNotFound is returned when a character lookup yields no results.
var ErrCharacterNotFound = fmt.Errorf("character %w", battle.ErrNotFound)

// ErrCharacterExists is returned when creating a character whose ID is already taken.
var ErrCharacterExists = errors.New("character already exists")

const characterColumns = `id, owner_id, name, display_name, scores, skills, rank_score, created_at, updated_at`

// CharacterRepository provides character persistence operations.
type CharacterRepository struct {
	db *pgxpool.Pool
}

// NewCharacterRepository creates a CharacterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCharacterRepository(db *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{db: db}
}

// Create inserts a new character and returns it with timestamps set. An empty ID is filled with a UUID.
//
// Precondition: c.OwnerID and c.Name must be non-empty.
// Postcondition: Returns the created character, or ErrCharacterExists on a duplicate ID.
func (r *CharacterRepository) Create(ctx context.Context, c *character.Character) (*character.Character, error) {
	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	scores, err := json.Marshal(c.Scores)
	if err != nil {
		return nil, fmt.Errorf("encoding scores: %w", err)
	}
	skills, err := json.Marshal(c.Skills)
	if err != nil {
		return nil, fmt.Errorf("encoding skills: %w", err)
	}
	out, err := scanCharacter(r.db.QueryRow(ctx, `
		INSERT INTO characters (id, owner_id, name, display_name, scores, skills, rank_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+characterColumns,
		id, c.OwnerID, c.Name, c.DisplayName, scores, skills, c.RankScore,
	))
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrCharacterExists
		}
		return nil, fmt.Errorf("inserting character: %w", err)
	}
	return out, nil
}

// GetCharacter retrieves a character by its primary key.
//
// Postcondition: Returns the Character or ErrCharacterNotFound.
func (r *CharacterRepository) GetCharacter(ctx context.Context, id string) (*character.Character, error) {
	c, err := scanCharacter(r.db.QueryRow(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, ErrCharacterNotFound, "querying character")
	}
	return c, nil
}

// ListByOwner returns all characters of ownerID, ordered by created_at.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *CharacterRepository) ListByOwner(ctx context.Context, ownerID string) ([]*character.Character, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE owner_id = $1 ORDER BY created_at ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	defer rows.Close()

	chars := make([]*character.Character, 0)
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning character row: %w", err)
		}
		chars = append(chars, c)
	}
	return chars, rows.Err()
}

// Delete removes a character. Battles that reference it keep their records.
//
// Postcondition: Returns nil on success, ErrCharacterNotFound if no row was deleted.
func (r *CharacterRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM characters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCharacterNotFound
	}
	return nil
}

// adjustRank moves a character's rating by delta, starting unrated characters from their default rank.
// A missing character is not an error.
func adjustRank(ctx context.Context, tx pgx.Tx, id string, delta int) error {
	_, err := tx.Exec(ctx, `
		UPDATE characters
		SET rank_score = GREATEST(CASE WHEN rank_score <= 0 THEN $3 ELSE rank_score END + $2, 1),
		    updated_at = NOW()
		WHERE id = $1`,
		id, delta, combat.DefaultRank,
	)
	if err != nil {
		return fmt.Errorf("adjusting rank of %s: %w", id, err)
	}
	return nil
}

func scanCharacter(row pgx.Row) (*character.Character, error) {
	var (
		c              character.Character
		scores, skills []byte
	)
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.DisplayName, &scores, &skills,
		&c.RankScore, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scores, &c.Scores); err != nil {
		return nil, fmt.Errorf("decoding scores of %s: %w", c.ID, err)
	}
	if err := json.Unmarshal(skills, &c.Skills); err != nil {
		return nil, fmt.Errorf("decoding skills of %s: %w", c.ID, err)
	}
	return &c, nil
}
