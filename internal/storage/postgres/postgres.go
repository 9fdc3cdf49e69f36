// Package postgres stores the location index in a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/lib/pq"

	"github.com/openagenda-tools/uniqloc/internal/storage/sqlstore"
	"github.com/openagenda-tools/uniqloc/pkg/errors"
)

// uniqueViolation is the SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

// Dialect is the PostgreSQL flavour of the locations table.
var Dialect = sqlstore.Dialect{
	Name: "postgres",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS locations (
			seq BIGSERIAL PRIMARY KEY,
			doc_key TEXT NOT NULL UNIQUE,
			canonical_id TEXT UNIQUE,
			name TEXT NOT NULL,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			linked_events JSONB NOT NULL DEFAULT '[]'::jsonb
		)`,
	},
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	IsUniqueViolation: func(err error) bool {
		var pe *pq.Error
		return errors.As(err, &pe) && pe.Code == uniqueViolation
	},
}

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	if dsn == "" {
		return nil, errors.NewValidationError("store.dsn", dsn, "postgres dsn cannot be empty")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.WrapResource("open", "postgres", "", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapResource("open", "postgres", "", err)
	}

	s, err := sqlstore.New(ctx, db, Dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
