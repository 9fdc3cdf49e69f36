// Package sqlite stores the location index in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"github.com/openagenda-tools/uniqloc/internal/storage/sqlstore"
	"github.com/openagenda-tools/uniqloc/pkg/constants"
	"github.com/openagenda-tools/uniqloc/pkg/errors"
)

// Dialect is the SQLite flavour of the locations table.
var Dialect = sqlstore.Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS locations (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_key TEXT NOT NULL UNIQUE,
			canonical_id TEXT UNIQUE,
			name TEXT NOT NULL,
			latitude REAL,
			longitude REAL,
			linked_events TEXT NOT NULL DEFAULT '[]'
		)`,
	},
	Placeholder: func(int) string { return "?" },
	IsUniqueViolation: func(err error) bool {
		var se sqlite3.Error
		if !errors.As(err, &se) {
			return false
		}
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	},
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(ctx context.Context, path string) (*sqlstore.Store, error) {
	if path == "" {
		return nil, errors.NewValidationError("store.dsn", path, "sqlite path cannot be empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
			return nil, errors.WrapIO("create", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WrapResource("open", "sqlite", path, err)
	}
	// one writer, and ":memory:" is per connection
	db.SetMaxOpenConns(1)

	s, err := sqlstore.New(ctx, db, Dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
