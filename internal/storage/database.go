// Package storage persists users, cards, review logs and deck sources in
// SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// ErrNotFound is returned by updates and deletes that matched no row.
var ErrNotFound = errors.New("storage: not found")

// defaultParams turn on foreign keys (review logs cascade with their card),
// wait on a locked database instead of failing, and make every transaction
// take the write lock up front so read-modify-write cycles cannot interleave.
var defaultParams = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
	"_txlock=immediate",
	"_time_format=sqlite",
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store runs queries either directly on the database or inside a
// transaction started by DB.Tx.
type Store struct {
	q querier
}

// DB represents a wrapper around the SQL database connection.
type DB struct {
	Store
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
// Query parameters already present in dsn are kept and each default the dsn
// does not set itself is appended.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite", withDefaults(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; one connection keeps transactions strictly
	// serialized within the process.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{Store: Store{q: conn}, conn: conn}, nil
}

// withDefaults appends every entry of defaultParams whose key (or pragma
// name) is not already present in the query part of dsn.
func withDefaults(dsn string) string {
	_, query, hasQuery := strings.Cut(dsn, "?")
	set, _ := url.ParseQuery(query)

	var missing []string
	for _, p := range defaultParams {
		key, value, _ := strings.Cut(p, "=")
		if key == "_pragma" {
			if hasPragma(set[key], pragmaName(value)) {
				continue
			}
		} else if set.Has(key) {
			continue
		}
		missing = append(missing, p)
	}
	if len(missing) == 0 {
		return dsn
	}

	switch {
	case !hasQuery:
		dsn += "?"
	case query != "" && !strings.HasSuffix(query, "&"):
		dsn += "&"
	}
	return dsn + strings.Join(missing, "&")
}

func hasPragma(pragmas []string, name string) bool {
	for _, p := range pragmas {
		if pragmaName(p) == name {
			return true
		}
	}
	return false
}

// pragmaName extracts the name from "name(value)" or "name=value".
func pragmaName(p string) string {
	if i := strings.IndexAny(p, "(="); i >= 0 {
		p = p[:i]
	}
	return strings.ToLower(strings.TrimSpace(p))
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Tx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back otherwise. fn must only use the Store it is given.
func (db *DB) Tx(ctx context.Context, fn func(*Store) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&Store{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
