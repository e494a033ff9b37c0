package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/moodmingle/internal/model"
	"github.com/sakif/moodmingle/internal/repository"
)

var _ repository.InterestRepository = (*DB)(nil)

// ListInterests returns the user's interests in the order they were added.
func (db *DB) ListInterests(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT value FROM interests WHERE user_id = ? ORDER BY position, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing interests for %s: %w", userID, err)
	}
	defer rows.Close()

	interests := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("sqlite: scanning interest: %w", err)
		}
		interests = append(interests, v)
	}
	return interests, rows.Err()
}

func (db *DB) ReplaceInterests(ctx context.Context, userID string, interests []string) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM interests WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("clearing interests: %w", err)
		}
		return insertInterests(ctx, tx, userID, model.NormalizeInterests(interests), 0)
	})
}

func (db *DB) AddInterests(ctx context.Context, userID string, interests []string) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		var next int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM interests WHERE user_id = ?`, userID,
		).Scan(&next)
		if err != nil {
			return fmt.Errorf("finding next position: %w", err)
		}
		return insertInterests(ctx, tx, userID, model.NormalizeInterests(interests), next)
	})
}

// insertInterests skips values whose folded form the user already has.
func insertInterests(ctx context.Context, tx *sql.Tx, userID string, values []string, start int) error {
	pos := start
	for _, v := range values {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO interests (user_id, value, fold, position) VALUES (?, ?, ?, ?)
			 ON CONFLICT (user_id, fold) DO NOTHING`,
			userID, v, model.FoldInterest(v), pos,
		)
		if err != nil {
			return fmt.Errorf("inserting interest %q: %w", v, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			pos++
		}
	}
	return nil
}

// inTx runs fn inside a transaction, rolling back when fn fails.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}
