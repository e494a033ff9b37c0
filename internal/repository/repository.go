// Package repository declares the storage contracts of the backend. The service
// layer depends on these interfaces only; internal/repository/sqlite implements them.
package repository

import (
	"context"

	"github.com/sakif/moodmingle/internal/model"
)

// UserRepository stores accounts.
type UserRepository interface {
	// Create assigns ID and timestamps. A taken username or email yields
	// apperror.ErrConflict.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByLogin finds a user by username or email, ignoring case.
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	// Exists reports whether username or email is already registered.
	Exists(ctx context.Context, username, email string) (bool, error)
	UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.User, error)
}

// InterestRepository stores each user's ordered interest list.
type InterestRepository interface {
	ListInterests(ctx context.Context, userID string) ([]string, error)
	// ReplaceInterests swaps the whole list in one transaction.
	ReplaceInterests(ctx context.Context, userID string, interests []string) error
	// AddInterests appends the values not already present.
	AddInterests(ctx context.Context, userID string, interests []string) error
}

// ActivityRepository stores saved activities, unique per user by title.
type ActivityRepository interface {
	ListActivities(ctx context.Context, userID string) ([]model.SavedActivity, error)
	// SaveActivity reports false when the title was already saved.
	SaveActivity(ctx context.Context, userID string, a model.SavedActivity) (bool, error)
	// RemoveActivity reports false when nothing matched.
	RemoveActivity(ctx context.Context, userID, title string) (bool, error)
}
