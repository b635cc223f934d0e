package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ErrUnavailable wraps every storage I/O failure so callers can classify
// them without depending on driver error types.
var ErrUnavailable = errors.New("storage unavailable")

var collectionNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Store persists named collections of JSON documents in a single embedded
// sqlite database, one table per collection. Each record is written as its
// own row, so a crash mid-write never corrupts sibling records.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle. The caller owns the handle lifecycle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Initialize ensures each named collection exists. It is idempotent and
// safe to call on every startup. Each collection is registered in the
// schema_meta table with its current schema version.
func (s *Store) Initialize(ctx context.Context, collections ...string) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_meta (
			collection TEXT PRIMARY KEY,
			version INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("%w: create schema_meta: %v", ErrUnavailable, err)
	}

	for _, collection := range collections {
		if err := validCollection(collection); err != nil {
			return err
		}
		_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				key TEXT PRIMARY KEY,
				doc TEXT NOT NULL
			)`, collection))
		if err != nil {
			return fmt.Errorf("%w: create collection %s: %v", ErrUnavailable, collection, err)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO schema_meta (collection, version) VALUES (?, ?)`,
			collection, 1)
		if err != nil {
			return fmt.Errorf("%w: register collection %s: %v", ErrUnavailable, collection, err)
		}
	}
	return nil
}

// SchemaVersion returns the registered schema version for a collection,
// or 0 if the collection was never initialized.
func (s *Store) SchemaVersion(ctx context.Context, collection string) (int, error) {
	if err := validCollection(collection); err != nil {
		return 0, err
	}
	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM schema_meta WHERE collection = ?`, collection).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return version, nil
}

// Upsert inserts the record, or replaces the existing record whose key
// field carries the same value. The record must serialize to a JSON object
// containing keyField.
func (s *Store) Upsert(ctx context.Context, collection, keyField string, record any) error {
	return upsert(ctx, s.db, collection, keyField, record)
}

// Get is a point lookup on any record field. It returns false on a miss
// and only errors on I/O failure. When found, the document is decoded
// into out.
func (s *Store) Get(ctx context.Context, collection, keyField, keyValue string, out any) (bool, error) {
	return get(ctx, s.db, collection, keyField, keyValue, out)
}

// List returns the documents of a collection in insertion order,
// optionally filtered by pred. A nil pred matches everything.
func (s *Store) List(ctx context.Context, collection string, pred func(doc json.RawMessage) bool) ([]json.RawMessage, error) {
	return list(ctx, s.db, collection, pred)
}

// Remove deletes the record matching keyField = keyValue, reporting
// whether anything was removed.
func (s *Store) Remove(ctx context.Context, collection, keyField, keyValue string) (bool, error) {
	return remove(ctx, s.db, collection, keyField, keyValue)
}

// Update runs fn inside a single database transaction. All writes made
// through the Tx commit together or not at all.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	defer dbTx.Rollback()

	if err := fn(&Tx{tx: dbTx, ctx: ctx}); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}
	return nil
}

// Tx is a transactional view of the store, handed to Update callbacks.
type Tx struct {
	tx  *sql.Tx
	ctx context.Context
}

func (t *Tx) Upsert(collection, keyField string, record any) error {
	return upsert(t.ctx, t.tx, collection, keyField, record)
}

func (t *Tx) Get(collection, keyField, keyValue string, out any) (bool, error) {
	return get(t.ctx, t.tx, collection, keyField, keyValue, out)
}

func (t *Tx) List(collection string, pred func(doc json.RawMessage) bool) ([]json.RawMessage, error) {
	return list(t.ctx, t.tx, collection, pred)
}

func (t *Tx) Remove(collection, keyField, keyValue string) (bool, error) {
	return remove(t.ctx, t.tx, collection, keyField, keyValue)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func upsert(ctx context.Context, q querier, collection, keyField string, record any) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record for %s: %w", collection, err)
	}
	key, err := extractKey(doc, keyField)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (key, doc) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET doc = excluded.doc`, collection),
		key, string(doc))
	if err != nil {
		return fmt.Errorf("%w: upsert into %s: %v", ErrUnavailable, collection, err)
	}
	return nil
}

func get(ctx context.Context, q querier, collection, keyField, keyValue string, out any) (bool, error) {
	if err := validCollection(collection); err != nil {
		return false, err
	}
	var doc string
	err := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT doc FROM %s WHERE json_extract(doc, ?) = ? ORDER BY rowid LIMIT 1`, collection),
		"$."+keyField, keyValue).Scan(&doc)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: get from %s: %v", ErrUnavailable, collection, err)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(doc), out); err != nil {
			return false, fmt.Errorf("decode record from %s: %w", collection, err)
		}
	}
	return true, nil
}

func list(ctx context.Context, q querier, collection string, pred func(doc json.RawMessage) bool) ([]json.RawMessage, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM %s ORDER BY rowid`, collection))
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrUnavailable, collection, err)
	}
	defer rows.Close()

	docs := []json.RawMessage{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", ErrUnavailable, collection, err)
		}
		raw := json.RawMessage(doc)
		if pred == nil || pred(raw) {
			docs = append(docs, raw)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrUnavailable, collection, err)
	}
	return docs, nil
}

func remove(ctx context.Context, q querier, collection, keyField, keyValue string) (bool, error) {
	if err := validCollection(collection); err != nil {
		return false, err
	}
	result, err := q.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE json_extract(doc, ?) = ?`, collection),
		"$."+keyField, keyValue)
	if err != nil {
		return false, fmt.Errorf("%w: remove from %s: %v", ErrUnavailable, collection, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: remove from %s: %v", ErrUnavailable, collection, err)
	}
	return affected > 0, nil
}

func extractKey(doc []byte, keyField string) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return "", fmt.Errorf("record is not a JSON object: %w", err)
	}
	raw, ok := fields[keyField]
	if !ok {
		return "", fmt.Errorf("record has no %q field", keyField)
	}
	var key string
	if err := json.Unmarshal(raw, &key); err != nil {
		// Non-string keys (numeric ids) are stored by their literal form.
		key = string(raw)
	}
	if key == "" {
		return "", fmt.Errorf("record %q field is empty", keyField)
	}
	return key, nil
}

func validCollection(name string) error {
	if !collectionNameRegex.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}
