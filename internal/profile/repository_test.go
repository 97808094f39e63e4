package profile

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1) // each :memory: connection is its own database
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE reporting_profiles (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL DEFAULT '',
			definition  TEXT NOT NULL,
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		)`)
	require.NoError(t, err)
	return db
}

func TestSQLiteRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))
	id := uuid.New()

	_, err := repo.Get(ctx, id)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	def := Definition{
		Name:       "meter",
		Attributes: []string{"/3/0/1"},
		Telemetry:  []string{"/3/0/9"},
		KeyNames:   map[string]string{"/3/0/1": "firmwareVersion"},
	}
	require.NoError(t, repo.Save(ctx, id, def))

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, def, got)

	def.Observe = []string{"/3/0/9"}
	require.NoError(t, repo.Save(ctx, id, def))

	records, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
	assert.Equal(t, []string{"/3/0/9"}, records[0].Definition.Observe)

	require.NoError(t, repo.Delete(ctx, id))
	assert.ErrorIs(t, repo.Delete(ctx, id), ErrProfileNotFound)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))

	kept := uuid.New()
	fresh := uuid.New()
	require.NoError(t, repo.Save(ctx, kept, Definition{Name: "edited"}))

	n, err := Seed(ctx, repo, map[uuid.UUID]Definition{
		kept:  {Name: "from-file"},
		fresh: {Name: "new"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.Get(ctx, kept)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Name, "existing rows win over the file")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `
profiles:
  - id: "7c9e6679-7425-40de-944b-e07fc1f90ae7"
    name: water-meter
    attributes: ["/3/0/0", "/3/0/1"]
    telemetry: ["/3/0/9"]
    observe: ["/3/0/9"]
    key_names:
      /3/0/0: manufacturer
      /3/0/9: batteryLevel
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	defs, err := LoadFile(path)
	require.NoError(t, err)

	def, ok := defs[uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")]
	require.True(t, ok)
	assert.Equal(t, "water-meter", def.Name)
	assert.Equal(t, []string{"/3/0/0", "/3/0/1"}, def.Attributes)
	assert.Equal(t, "batteryLevel", def.KeyNames["/3/0/9"])
}

func TestParseFileErrors(t *testing.T) {
	_, err := ParseFile([]byte("profiles:\n  - id: nope\n"))
	assert.ErrorIs(t, err, ErrInvalidID)

	dup := `
profiles:
  - id: "7c9e6679-7425-40de-944b-e07fc1f90ae7"
  - id: "7c9e6679-7425-40de-944b-e07fc1f90ae7"
`
	_, err = ParseFile([]byte(dup))
	assert.ErrorIs(t, err, ErrInvalidProfile)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
