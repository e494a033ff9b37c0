// Package localstore persists the client's local state in a small SQLite file:
// the last-known identity snapshot, the session cookies, guest-mode saved activities
// and interests, and the history of previously typed interests.
//
// Nothing here is shared with the backend. The file is scoped to one client install;
// Logout wipes everything identity-scoped through ClearIdentityData.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sakif/moodmingle/internal/model"
)

// MaxHistory caps the previously-typed interest history.
const MaxHistory = 20

// Store wraps the local SQLite database.
type Store struct {
	conn *sql.DB
}

// Open opens (creating if needed) the store at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("localstore: creating data directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("localstore: opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serialises writers.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("localstore: pinging database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("localstore: setting WAL mode: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("localstore: running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS identity_snapshot (
			slot       INTEGER PRIMARY KEY CHECK (slot = 1),
			payload    TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS saved_activities (
			scope       TEXT NOT NULL,
			title       TEXT NOT NULL,
			category    TEXT NOT NULL DEFAULT '',
			location    TEXT NOT NULL DEFAULT '',
			weather     TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			position    INTEGER NOT NULL,
			PRIMARY KEY (scope, title)
		);

		CREATE TABLE IF NOT EXISTS guest_interests (
			value    TEXT PRIMARY KEY,
			position INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS interest_history (
			fold  TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			seq   INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS cookies (
			name  TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// =========================================================================
// IDENTITY SNAPSHOT
// =========================================================================

// SaveSnapshot stores id as the last-known identity. A nil id clears the snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, id *model.Identity) error {
	if id == nil {
		return s.ClearSnapshot(ctx)
	}
	payload, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("localstore: encoding snapshot: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO identity_snapshot (slot, payload, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(payload), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("localstore: saving snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the last-known identity, or nil when none is stored.
func (s *Store) LoadSnapshot(ctx context.Context) (*model.Identity, error) {
	var payload string
	err := s.conn.QueryRowContext(ctx, `SELECT payload FROM identity_snapshot WHERE slot = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("localstore: loading snapshot: %w", err)
	}

	var id model.Identity
	if err := json.Unmarshal([]byte(payload), &id); err != nil {
		return nil, fmt.Errorf("localstore: decoding snapshot: %w", err)
	}
	return id.Clone(), nil
}

func (s *Store) ClearSnapshot(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM identity_snapshot`); err != nil {
		return fmt.Errorf("localstore: clearing snapshot: %w", err)
	}
	return nil
}

// =========================================================================
// SAVED ACTIVITIES
// =========================================================================

// LoadSaved returns the activities saved under scope, in the order they were added.
func (s *Store) LoadSaved(ctx context.Context, scope string) ([]model.SavedActivity, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT title, category, location, weather, description
		 FROM saved_activities WHERE scope = ? ORDER BY position ASC`,
		scope,
	)
	if err != nil {
		return nil, fmt.Errorf("localstore: loading saved activities for %s: %w", scope, err)
	}
	defer rows.Close()

	activities := []model.SavedActivity{}
	for rows.Next() {
		var a model.SavedActivity
		if err := rows.Scan(&a.Title, &a.Category, &a.Location, &a.Weather, &a.Description); err != nil {
			return nil, fmt.Errorf("localstore: scanning saved activity: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("localstore: iterating saved activities: %w", err)
	}
	return activities, nil
}

// AddSaved appends a under scope. Saving a title that is already present is a no-op.
func (s *Store) AddSaved(ctx context.Context, scope string, a model.SavedActivity) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO saved_activities (scope, title, category, location, weather, description, position)
		 VALUES (?, ?, ?, ?, ?, ?,
		         (SELECT COALESCE(MAX(position), 0) + 1 FROM saved_activities WHERE scope = ?))
		 ON CONFLICT(scope, title) DO NOTHING`,
		scope, a.Title, a.Category, a.Location, a.Weather, a.Description, scope,
	)
	if err != nil {
		return fmt.Errorf("localstore: saving activity %q: %w", a.Title, err)
	}
	return nil
}

// RemoveSaved deletes title from scope. Removing an absent title is a no-op.
func (s *Store) RemoveSaved(ctx context.Context, scope, title string) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM saved_activities WHERE scope = ? AND title = ?`, scope, title)
	if err != nil {
		return fmt.Errorf("localstore: removing activity %q: %w", title, err)
	}
	return nil
}

// ClearSaved deletes the saved activities of every scope.
func (s *Store) ClearSaved(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM saved_activities`); err != nil {
		return fmt.Errorf("localstore: clearing saved activities: %w", err)
	}
	return nil
}

// =========================================================================
// INTERESTS
// =========================================================================

// GuestInterests returns the interest list kept while nobody is signed in.
func (s *Store) GuestInterests(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT value FROM guest_interests ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("localstore: loading guest interests: %w", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("localstore: scanning guest interest: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// SetGuestInterests replaces the guest interest list.
func (s *Store) SetGuestInterests(ctx context.Context, interests []string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("localstore: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM guest_interests`); err != nil {
		return fmt.Errorf("localstore: clearing guest interests: %w", err)
	}
	for i, v := range model.NormalizeInterests(interests) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO guest_interests (value, position) VALUES (?, ?)`, v, i); err != nil {
			return fmt.Errorf("localstore: saving guest interest %q: %w", v, err)
		}
	}
	return tx.Commit()
}

// InterestHistory returns previously used interests, most recent first.
func (s *Store) InterestHistory(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT value FROM interest_history ORDER BY seq DESC LIMIT ?`, MaxHistory)
	if err != nil {
		return nil, fmt.Errorf("localstore: loading interest history: %w", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("localstore: scanning interest history: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// RecordInterests moves each interest to the front of the history, then trims the
// history to MaxHistory entries.
func (s *Store) RecordInterests(ctx context.Context, interests []string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("localstore: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, v := range model.NormalizeInterests(interests) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO interest_history (fold, value, seq)
			 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM interest_history))
			 ON CONFLICT(fold) DO UPDATE SET value = excluded.value, seq = excluded.seq`,
			model.FoldInterest(v), v,
		)
		if err != nil {
			return fmt.Errorf("localstore: recording interest %q: %w", v, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM interest_history WHERE fold NOT IN (
			SELECT fold FROM interest_history ORDER BY seq DESC LIMIT ?
		 )`, MaxHistory)
	if err != nil {
		return fmt.Errorf("localstore: trimming interest history: %w", err)
	}
	return tx.Commit()
}

// RemoveHistory forgets one history entry, matched case-insensitively.
func (s *Store) RemoveHistory(ctx context.Context, value string) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM interest_history WHERE fold = ?`, model.FoldInterest(value))
	if err != nil {
		return fmt.Errorf("localstore: removing history entry %q: %w", value, err)
	}
	return nil
}

// =========================================================================
// COOKIES
// =========================================================================

// LoadCookies returns the persisted session cookies (name and value only).
func (s *Store) LoadCookies(ctx context.Context) ([]*http.Cookie, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT name, value FROM cookies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("localstore: loading cookies: %w", err)
	}
	defer rows.Close()

	var cookies []*http.Cookie
	for rows.Next() {
		c := &http.Cookie{}
		if err := rows.Scan(&c.Name, &c.Value); err != nil {
			return nil, fmt.Errorf("localstore: scanning cookie: %w", err)
		}
		cookies = append(cookies, c)
	}
	return cookies, rows.Err()
}

// SaveCookies replaces the persisted cookies with cookies.
func (s *Store) SaveCookies(ctx context.Context, cookies []*http.Cookie) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("localstore: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cookies`); err != nil {
		return fmt.Errorf("localstore: clearing cookies: %w", err)
	}
	for _, c := range cookies {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO cookies (name, value) VALUES (?, ?)`, c.Name, c.Value); err != nil {
			return fmt.Errorf("localstore: saving cookie %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// =========================================================================
// LOGOUT
// =========================================================================

// ClearIdentityData wipes everything tied to who is signed in: the snapshot, the
// session cookies, the interest history, guest interests and every saved-activity scope.
func (s *Store) ClearIdentityData(ctx context.Context) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("localstore: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		"identity_snapshot", "cookies", "interest_history", "guest_interests", "saved_activities",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("localstore: clearing %s: %w", table, err)
		}
	}
	return tx.Commit()
}
