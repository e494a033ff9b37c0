package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/moodmingle/internal/model"
	"github.com/sakif/moodmingle/internal/repository"
)

var _ repository.ActivityRepository = (*DB)(nil)

// ListActivities returns saved activities oldest first.
func (db *DB) ListActivities(ctx context.Context, userID string) ([]model.SavedActivity, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT title, category, location, weather, description
		 FROM activities WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing activities for %s: %w", userID, err)
	}
	defer rows.Close()

	activities := []model.SavedActivity{}
	for rows.Next() {
		var a model.SavedActivity
		if err := rows.Scan(&a.Title, &a.Category, &a.Location, &a.Weather, &a.Description); err != nil {
			return nil, fmt.Errorf("sqlite: scanning activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (db *DB) SaveActivity(ctx context.Context, userID string, a model.SavedActivity) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO activities (user_id, title, category, location, weather, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, title) DO NOTHING`,
		userID, a.Title, a.Category, a.Location, a.Weather, a.Description, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: saving activity %q: %w", a.Title, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (db *DB) RemoveActivity(ctx context.Context, userID, title string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM activities WHERE user_id = ? AND title = ?`, userID, title)
	if err != nil {
		return false, fmt.Errorf("sqlite: removing activity %q: %w", title, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
