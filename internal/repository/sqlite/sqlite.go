// Package sqlite is the durable Entity Store, backed by modernc.org/sqlite
// (pure Go, no cgo).
//
// The pool is limited to one connection. SQLite serializes writers anyway,
// and a single connection makes ":memory:" databases work in tests (every
// new connection to ":memory:" would otherwise see an empty database).
// Multi-step operations run inside a transaction on that connection.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/fitting-room/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a *sql.DB connection to a SQLite database.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
// Use ":memory:" for a throwaway database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. Every statement is idempotent, so it is safe
// to run on each startup.
//
// Trials, cart items and orders carry no foreign keys: the store records ids
// as given and the service layer checks references.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			external_id   TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL,
			name          TEXT NOT NULL,
			photo_url     TEXT,
			age           INTEGER,
			height        INTEGER,
			weight        INTEGER,
			body_shape    TEXT,
			skin_tone     TEXT,
			color_palette TEXT,
			role          TEXT NOT NULL DEFAULT 'user',
			created_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email COLLATE NOCASE);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS models (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			image_url   TEXT NOT NULL,
			category    TEXT NOT NULL,
			body_shapes TEXT NOT NULL,
			description TEXT,
			created_at  DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS fabrics (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			image_url   TEXT NOT NULL,
			texture     TEXT NOT NULL,
			skin_tones  TEXT NOT NULL,
			price       INTEGER NOT NULL CHECK (price >= 0),
			retailer_id TEXT,
			description TEXT,
			created_at  DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating catalog tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS trials (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			model_id   TEXT NOT NULL,
			fabric_id  TEXT NOT NULL,
			image_url  TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trials_user_status ON trials(user_id, status);
	`)
	if err != nil {
		return fmt.Errorf("creating trials table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS cart_items (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			trial_id   TEXT NOT NULL,
			model_id   TEXT NOT NULL,
			fabric_id  TEXT NOT NULL,
			quantity   INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cart_items_user_id ON cart_items(user_id);

		CREATE TABLE IF NOT EXISTS orders (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			items        TEXT NOT NULL,
			total_amount INTEGER NOT NULL,
			status       TEXT NOT NULL DEFAULT 'pending',
			created_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating cart and order tables: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// Without extended result codes only the primary code is reported.
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}

// JSON columns hold the small string lists (body shapes, palette, items).

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON(raw sql.NullString, out any) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), out)
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// inTx runs fn inside a transaction, committing on success.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}
