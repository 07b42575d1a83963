package settings

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"

	sq "github.com/Masterminds/squirrel"
	// SQLite driver (required for database/sql registration).
	_ "github.com/mattn/go-sqlite3"

	"github.com/lingua-lens/lens/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Store persists settings as JSON values in a key/value table. Keys never
// written fall back to Default().
type Store struct {
	db *sql.DB
	sq sq.StatementBuilderType
}

// Open opens (creating if needed) the settings database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, errors.CodeSettingsStoreFailed, "failed to create settings directory", errors.CategorySystem)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSettingsStoreFailed, "failed to open settings database", errors.CategorySystem)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.CodeSettingsStoreFailed, "failed to initialize settings schema", errors.CategorySystem)
	}
	return &Store{db: db, sq: sq.StatementBuilder}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the defaults overlaid with every stored value.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	query, args, err := s.sq.Select("key", "value").From("settings").ToSql()
	if err != nil {
		return Settings{}, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Settings{}, errors.Wrap(err, errors.CodeSettingsStoreFailed, "failed to read settings", errors.CategorySystem)
	}
	defer rows.Close()

	stored := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Settings{}, errors.Wrap(err, errors.CodeSettingsStoreFailed, "failed to read settings", errors.CategorySystem)
		}
		stored[k] = v
	}
	if err := rows.Err(); err != nil {
		return Settings{}, errors.Wrap(err, errors.CodeSettingsStoreFailed, "failed to read settings", errors.CategorySystem)
	}
	return overlay(stored)
}

// Save writes every field of st.
func (s *Store) Save(ctx context.Context, st Settings) error {
	values, err := flatten(st)
	if err != nil {
		return errors.Wrap(err, errors.CodeSettingsStoreFailed, "failed to encode settings", errors.CategorySystem)
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeSettingsStoreFailed, "failed to begin settings write", errors.CategorySystem)
	}
	defer tx.Rollback()

	for _, k := range keys {
		if err := s.upsert(ctx, tx, k, values[k]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeSettingsStoreFailed, "failed to commit settings", errors.CategorySystem)
	}
	return nil
}

// Set stores one user-typed value. Boolean keys accept strconv.ParseBool
// spellings; everything else is stored as a string.
func (s *Store) Set(ctx context.Context, key, value string) error {
	encoded, err := encodeValue(key, value)
	if err != nil {
		return err
	}
	return s.upsert(ctx, s.db, key, encoded)
}

// Reset deletes every stored value so Load returns the defaults.
func (s *Store) Reset(ctx context.Context) error {
	query, args, err := s.sq.Delete("settings").ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, errors.CodeSettingsStoreFailed, "failed to reset settings", errors.CategorySystem)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) upsert(ctx context.Context, db execer, key, value string) error {
	query, args, err := s.sq.
		Insert("settings").
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT(key) DO UPDATE SET value=excluded.value").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, errors.CodeSettingsStoreFailed, "failed to write setting "+key, errors.CategorySystem)
	}
	return nil
}
