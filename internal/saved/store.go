package saved

import (
	"context"
	"fmt"

	"github.com/sakif/moodmingle/internal/model"
)

// ActivityStore is where one identity's saved activities live.
//
// An authoritative store is the source of truth: a failed write there means the
// change did not happen and the Synchronizer rolls it back. A non-authoritative
// store is a best-effort cache whose failures are only logged.
type ActivityStore interface {
	Load(ctx context.Context) ([]model.SavedActivity, error)
	Add(ctx context.Context, a model.SavedActivity) error
	Remove(ctx context.Context, title string) error
	Authoritative() bool
}

// RemoteBackend is the part of the API client a RemoteActivityStore uses.
type RemoteBackend interface {
	SavedActivities(ctx context.Context) ([]model.SavedActivity, error)
	SaveActivity(ctx context.Context, a model.SavedActivity) error
	RemoveActivity(ctx context.Context, title string) error
}

// RemoteActivityStore keeps a signed-in user's activities on the backend.
type RemoteActivityStore struct {
	backend RemoteBackend
}

var _ ActivityStore = (*RemoteActivityStore)(nil)

func NewRemoteActivityStore(backend RemoteBackend) *RemoteActivityStore {
	return &RemoteActivityStore{backend: backend}
}

func (r *RemoteActivityStore) Load(ctx context.Context) ([]model.SavedActivity, error) {
	return r.backend.SavedActivities(ctx)
}

func (r *RemoteActivityStore) Add(ctx context.Context, a model.SavedActivity) error {
	return r.backend.SaveActivity(ctx, a)
}

func (r *RemoteActivityStore) Remove(ctx context.Context, title string) error {
	return r.backend.RemoveActivity(ctx, title)
}

func (r *RemoteActivityStore) Authoritative() bool { return true }

// LocalBackend is the part of the local store a LocalActivityStore uses.
type LocalBackend interface {
	LoadSaved(ctx context.Context, scope string) ([]model.SavedActivity, error)
	AddSaved(ctx context.Context, scope string, a model.SavedActivity) error
	RemoveSaved(ctx context.Context, scope, title string) error
}

// LocalActivityStore keeps activities on this machine under one scope. The guest
// uses it so bookmarks survive restarts without an account.
type LocalActivityStore struct {
	local LocalBackend
	scope string
}

var _ ActivityStore = (*LocalActivityStore)(nil)

func NewLocalActivityStore(local LocalBackend, scope string) *LocalActivityStore {
	return &LocalActivityStore{local: local, scope: scope}
}

func (l *LocalActivityStore) Load(ctx context.Context) ([]model.SavedActivity, error) {
	items, err := l.local.LoadSaved(ctx, l.scope)
	if err != nil {
		return nil, fmt.Errorf("saved: load %s scope: %w", l.scope, err)
	}
	return items, nil
}

func (l *LocalActivityStore) Add(ctx context.Context, a model.SavedActivity) error {
	if err := l.local.AddSaved(ctx, l.scope, a); err != nil {
		return fmt.Errorf("saved: add to %s scope: %w", l.scope, err)
	}
	return nil
}

func (l *LocalActivityStore) Remove(ctx context.Context, title string) error {
	if err := l.local.RemoveSaved(ctx, l.scope, title); err != nil {
		return fmt.Errorf("saved: remove from %s scope: %w", l.scope, err)
	}
	return nil
}

func (l *LocalActivityStore) Authoritative() bool { return false }
