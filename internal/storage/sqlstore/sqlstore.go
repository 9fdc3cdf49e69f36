// Package sqlstore implements store.Store on top of database/sql. The sqlite
// and postgres packages supply a Dialect and the driver.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
	"github.com/openagenda-tools/uniqloc/pkg/store"
)

// Dialect holds what differs between SQL engines.
type Dialect struct {
	// Name identifies the engine in errors.
	Name string
	// Schema statements run on open. They must be idempotent.
	Schema []string
	// Placeholder returns the bind marker for the n-th argument, from 1.
	Placeholder func(n int) string
	// IsUniqueViolation reports whether err is a duplicate key error.
	IsUniqueViolation func(err error) bool
}

// Store is a SQL backed store. Linked events are kept as a JSON array.
type Store struct {
	db *sql.DB
	d  Dialect
}

var _ store.Store = (*Store)(nil)

// New runs the dialect schema and returns a store over db.
func New(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	for i, stmt := range d.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, errors.WrapResource("migrate", d.Name, fmt.Sprintf("statement %d", i), err)
		}
	}
	return &Store{db: db, d: d}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// InsertOne implements store.Store.
func (s *Store) InsertOne(ctx context.Context, doc *locations.Location) error {
	if doc == nil || doc.Key == "" {
		return errors.NewValidationError("key", nil, "document has no key")
	}
	events, err := encodeEvents(doc.LinkedEvents)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"INSERT INTO locations (doc_key, canonical_id, name, latitude, longitude, linked_events) VALUES (%s, %s, %s, %s, %s, %s)",
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	_, err = s.db.ExecContext(ctx, query,
		doc.Key, nullString(doc.CanonicalID), doc.Name, nullFloat(doc.Latitude), nullFloat(doc.Longitude), events)
	if err != nil {
		if s.d.IsUniqueViolation(err) {
			return fmt.Errorf("location %s: %w", doc.Key, errors.ErrAlreadyExists)
		}
		return errors.WrapResource("insert", "location", doc.Key, err)
	}
	return nil
}

// UpdateOne implements store.Store.
func (s *Store) UpdateOne(ctx context.Context, filter store.Filter, update store.Update) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapResource("update", "location", filter.Key, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	where, args := s.where(filter)
	row := tx.QueryRowContext(ctx,
		"SELECT doc_key, canonical_id, linked_events FROM locations"+where+" ORDER BY seq LIMIT 1", args...)

	var (
		key    string
		id     sql.NullString
		events []byte
	)
	if err := row.Scan(&key, &id, &events); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.NewNotFoundError("location", filter.String())
		}
		return errors.WrapResource("update", "location", filter.Key, err)
	}

	doc := &locations.Location{Key: key, CanonicalID: id.String}
	if doc.LinkedEvents, err = decodeEvents(events); err != nil {
		return err
	}
	update.Apply(doc)

	encoded, err := encodeEvents(doc.LinkedEvents)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE locations SET canonical_id = %s, linked_events = %s WHERE doc_key = %s",
		s.ph(1), s.ph(2), s.ph(3))
	if _, err := tx.ExecContext(ctx, query, nullString(doc.CanonicalID), encoded, key); err != nil {
		return errors.WrapResource("update", "location", key, err)
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapResource("update", "location", key, err)
	}
	return nil
}

// FindAll implements store.Store.
func (s *Store) FindAll(ctx context.Context, filter store.Filter) ([]*locations.Location, error) {
	where, args := s.where(filter)
	rows, err := s.db.QueryContext(ctx,
		"SELECT doc_key, canonical_id, name, latitude, longitude, linked_events FROM locations"+where+" ORDER BY seq", args...)
	if err != nil {
		return nil, errors.WrapResource("find", "location", "", err)
	}
	defer rows.Close()

	var out []*locations.Location
	for rows.Next() {
		var (
			doc      locations.Location
			id       sql.NullString
			lat, lon sql.NullFloat64
			events   []byte
		)
		if err := rows.Scan(&doc.Key, &id, &doc.Name, &lat, &lon, &events); err != nil {
			return nil, errors.WrapResource("find", "location", "", err)
		}
		doc.CanonicalID = id.String
		if lat.Valid {
			doc.Latitude = locations.Float(lat.Float64)
		}
		if lon.Valid {
			doc.Longitude = locations.Float(lon.Float64)
		}
		if doc.LinkedEvents, err = decodeEvents(events); err != nil {
			return nil, err
		}
		out = append(out, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapResource("find", "location", "", err)
	}
	return out, nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ph(n int) string {
	return s.d.Placeholder(n)
}

func (s *Store) where(f store.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Key != "" {
		args = append(args, f.Key)
		conds = append(conds, "doc_key = "+s.ph(len(args)))
	}
	if f.CanonicalID != "" {
		args = append(args, f.CanonicalID)
		conds = append(conds, "canonical_id = "+s.ph(len(args)))
	}
	if f.Assigned != nil {
		if *f.Assigned {
			conds = append(conds, "canonical_id IS NOT NULL")
		} else {
			conds = append(conds, "canonical_id IS NULL")
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func encodeEvents(events []locations.LinkedEvent) (string, error) {
	if events == nil {
		events = []locations.LinkedEvent{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return "", errors.WrapParse("json", "linked_events", err)
	}
	return string(data), nil
}

func decodeEvents(data []byte) ([]locations.LinkedEvent, error) {
	events := []locations.LinkedEvent{}
	if len(data) == 0 {
		return events, nil
	}
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, errors.WrapParse("json", "linked_events", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
