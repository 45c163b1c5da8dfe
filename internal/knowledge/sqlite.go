package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/spiralmind/internal/concept"
)

const explanationsSchema = `
CREATE TABLE IF NOT EXISTS explanations (
	concept TEXT NOT NULL,
	position INTEGER NOT NULL,
	explanation TEXT NOT NULL,
	PRIMARY KEY (concept, position)
);
CREATE INDEX IF NOT EXISTS idx_explanations_concept ON explanations(concept);
`

// SQLiteStore persists the map in a SQLite database, one row per
// explanation. Save replaces every row in a single transaction.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (lazily) the database at path. The schema is created
// on first use so an unreadable file surfaces as ErrCorruptStore from Load
// rather than failing construction.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, explanationsSchema)
	return err
}

// Load reads every explanation ordered by concept and position.
func (s *SQLiteStore) Load(ctx context.Context) (concept.Map, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil, ErrStoreMissing
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, s.path, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT concept, explanation FROM explanations ORDER BY concept, position`)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, s.path, err)
	}
	defer rows.Close()

	kb := make(concept.Map)
	for rows.Next() {
		var key, explanation string
		if err := rows.Scan(&key, &explanation); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, s.path, err)
		}
		c := concept.Normalize(key)
		if c.IsZero() || explanation == "" {
			continue
		}
		kb[c] = append(kb[c], explanation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, s.path, err)
	}
	return kb, nil
}

// Save replaces the stored map.
func (s *SQLiteStore) Save(ctx context.Context, kb concept.Map) error {
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("preparing schema: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM explanations`); err != nil {
		return fmt.Errorf("clearing explanations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO explanations (concept, position, explanation) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range kb.Keys() {
		for i, explanation := range kb[c] {
			if _, err := stmt.ExecContext(ctx, string(c), i, explanation); err != nil {
				return fmt.Errorf("inserting %s[%d]: %w", c, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
