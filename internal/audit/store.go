// Package audit records room lifecycle events (rooms opened and closed,
// members joining and leaving) to SQLite or MySQL. Message content is never
// stored.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

var schema = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS room_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			room_id TEXT NOT NULL,
			conn_id TEXT NOT NULL,
			members INTEGER NOT NULL,
			at_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_room_events_room ON room_events (room_id, id)`,
	},
	DriverMySQL: {
		`CREATE TABLE IF NOT EXISTS room_events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			room_id VARCHAR(128) NOT NULL,
			conn_id VARCHAR(64) NOT NULL,
			members INT NOT NULL,
			at_ms BIGINT NOT NULL,
			INDEX idx_room_events_room (room_id, id)
		)`,
	},
}

// Entry is one stored lifecycle event.
type Entry struct {
	ID      int64
	Kind    string
	RoomID  string
	ConnID  string
	Members int
	At      time.Time
}

// Store persists entries in the room_events table.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database, checks the connection and creates the
// schema if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	stmts, ok := schema[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported audit driver %q", driver)
	}

	if driver == DriverMySQL {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.AllowNativePasswords = true
		dsn = cfg.FormatDSN()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer avoids "database is locked" under the recorder.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Insert(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO room_events (kind, room_id, conn_id, members, at_ms) VALUES (?, ?, ?, ?, ?)`,
		e.Kind, e.RoomID, e.ConnID, e.Members, e.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert room event: %w", err)
	}
	return nil
}

// RoomHistory returns the events of one room, oldest first.
func (s *Store) RoomHistory(ctx context.Context, roomID string, limit int) ([]Entry, error) {
	return s.query(ctx,
		`SELECT id, kind, room_id, conn_id, members, at_ms FROM room_events
		 WHERE room_id = ? ORDER BY id DESC LIMIT ?`, roomID, limit)
}

// Recent returns the latest events across all rooms, oldest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx,
		`SELECT id, kind, room_id, conn_id, members, at_ms FROM room_events
		 ORDER BY id DESC LIMIT ?`, limit)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query room events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var atMs int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.RoomID, &e.ConnID, &e.Members, &atMs); err != nil {
			return nil, fmt.Errorf("scan room event: %w", err)
		}
		e.At = time.UnixMilli(atMs)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Queried newest first so LIMIT keeps the latest rows.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
