package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists profile definitions.
type Repository interface {
	// Get returns the definition for id.
	// Returns ErrProfileNotFound if no row exists.
	Get(ctx context.Context, id uuid.UUID) (Definition, error)

	// List returns every stored profile ordered by name.
	List(ctx context.Context) ([]Record, error)

	// Save inserts or replaces the definition for id.
	Save(ctx context.Context, id uuid.UUID, def Definition) error

	// Delete removes a profile.
	// Returns ErrProfileNotFound if no row exists.
	Delete(ctx context.Context, id uuid.UUID) error
}

// Record is a stored profile with its bookkeeping timestamps.
type Record struct {
	ID         uuid.UUID  `json:"id"`
	Definition Definition `json:"definition"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// SQLiteRepository implements Repository on the reporting_profiles table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get returns the definition for id.
func (r *SQLiteRepository) Get(ctx context.Context, id uuid.UUID) (Definition, error) {
	query := `SELECT definition FROM reporting_profiles WHERE id = ?`

	var raw string
	if err := r.db.QueryRowContext(ctx, query, id.String()).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Definition{}, ErrProfileNotFound
		}
		return Definition{}, fmt.Errorf("querying profile: %w", err)
	}

	var def Definition
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		return Definition{}, fmt.Errorf("decoding profile %s: %w", id, err)
	}
	return def, nil
}

// List returns every stored profile ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	query := `
		SELECT id, definition, created_at, updated_at
		FROM reporting_profiles
		ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			idStr, raw           string
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&idStr, &raw, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("%w: stored id %q", ErrInvalidID, idStr)
		}
		var def Definition
		if err := json.Unmarshal([]byte(raw), &def); err != nil {
			return nil, fmt.Errorf("decoding profile %s: %w", id, err)
		}
		out = append(out, Record{
			ID:         id,
			Definition: def,
			CreatedAt:  time.Unix(createdAt, 0).UTC(),
			UpdatedAt:  time.Unix(updatedAt, 0).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating profiles: %w", err)
	}
	return out, nil
}

// Save inserts or replaces the definition for id.
func (r *SQLiteRepository) Save(ctx context.Context, id uuid.UUID, def Definition) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}

	now := time.Now().Unix()
	query := `
		INSERT INTO reporting_profiles (id, name, definition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			definition = excluded.definition,
			updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, query, id.String(), def.Name, string(raw), now, now); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

// Delete removes a profile.
func (r *SQLiteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reporting_profiles WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// Seed saves every definition that is not already stored. Existing rows win,
// so edits made through the API survive a restart with the same file.
func Seed(ctx context.Context, repo Repository, defs map[uuid.UUID]Definition) (int, error) {
	seeded := 0
	for id, def := range defs {
		_, err := repo.Get(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrProfileNotFound) {
			return seeded, err
		}
		if err := repo.Save(ctx, id, def); err != nil {
			return seeded, err
		}
		seeded++
	}
	return seeded, nil
}
