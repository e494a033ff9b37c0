// Package discover holds the interest board: the interests a user picks before
// asking for recommendations, the history of what they picked before, and the
// weather lookup that supplies the rest of the recommendation context.
package discover

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sakif/moodmingle/internal/apperror"
	"github.com/sakif/moodmingle/internal/model"
	"github.com/sakif/moodmingle/internal/session"
)

// Session is what the board needs from the session manager.
type Session interface {
	Identity() *model.Identity
	UpdateInterests(ctx context.Context, interests []string) error
}

// Local is the on-disk state the board reads and writes.
type Local interface {
	GuestInterests(ctx context.Context) ([]string, error)
	SetGuestInterests(ctx context.Context, interests []string) error
	InterestHistory(ctx context.Context) ([]string, error)
	RecordInterests(ctx context.Context, interests []string) error
	RemoveHistory(ctx context.Context, value string) error
}

// Backend generates recommendations and looks up the weather.
type Backend interface {
	Recommendations(ctx context.Context, cond model.Conditions) (*model.Recommendations, error)
	Weather(ctx context.Context, coords model.Coordinates) (*model.WeatherReport, error)
}

type Board struct {
	session Session
	local   Local
	backend Backend
	logger  *slog.Logger

	mu      sync.Mutex
	set     *model.InterestSet
	lastGen uint64
	epoch   uint64 // bumped on every reload; guards the guest-interest read
}

func NewBoard(sess Session, local Local, backend Backend, logger *slog.Logger) *Board {
	return &Board{
		session: sess,
		local:   local,
		backend: backend,
		logger:  logger,
		set:     &model.InterestSet{},
	}
}

// HandleChange is a session.Listener. An identity switch needs a generation newer
// than the last one applied; an InterestsChanged notice for the current generation
// refreshes the board from the account's new list.
func (b *Board) HandleChange(ctx context.Context, change session.Change) {
	b.mu.Lock()
	if change.Generation != 0 {
		refresh := change.Reason == session.InterestsChanged && change.Generation == b.lastGen
		if change.Generation <= b.lastGen && !refresh {
			b.mu.Unlock()
			return
		}
		b.lastGen = change.Generation
	}
	epoch, settled := b.installLocked(change.Identity)
	b.mu.Unlock()

	if !settled {
		b.loadGuest(ctx, epoch)
	}
}

// OnIdentityChanged reloads the working set: the account's interests when signed
// in, the locally remembered guest interests otherwise.
func (b *Board) OnIdentityChanged(ctx context.Context, id *model.Identity) {
	b.mu.Lock()
	epoch, settled := b.installLocked(id)
	b.mu.Unlock()

	if !settled {
		b.loadGuest(ctx, epoch)
	}
}

// installLocked starts a new epoch. A signed-in identity's interests are installed
// at once; a guest board starts empty and settled is false until loadGuest runs.
func (b *Board) installLocked(id *model.Identity) (epoch uint64, settled bool) {
	b.epoch++
	if model.IsAnonymous(id) {
		b.set.Reset(nil)
		return b.epoch, false
	}
	b.set.Reset(id.Interests)
	return b.epoch, true
}

func (b *Board) loadGuest(ctx context.Context, epoch uint64) {
	interests, err := b.local.GuestInterests(ctx)
	if err != nil {
		b.logger.Warn("failed to load guest interests", slog.String("error", err.Error()))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.epoch != epoch {
		b.logger.Debug("discarding stale guest interests")
		return
	}
	b.set.Reset(interests)
}

// Add puts value on the board. Adding an interest already present in any casing is
// a no-op.
func (b *Board) Add(value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if model.FoldInterest(value) == "" {
		return apperror.ValidationFailed("interest", "interest is required")
	}
	b.set.Add(value)
	return nil
}

// Remove takes value off the board and reports whether it was there.
func (b *Board) Remove(value string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.set.Remove(value)
}

func (b *Board) Interests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.set.Values()
}

// Suggestions lists the stock interests not yet on the board.
func (b *Board) Suggestions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(model.SuggestedInterests))
	for _, s := range model.SuggestedInterests {
		if !b.set.Contains(s) {
			out = append(out, s)
		}
	}
	return out
}

// History returns previously used interests, most recent first.
func (b *Board) History(ctx context.Context) ([]string, error) {
	history, err := b.local.InterestHistory(ctx)
	if err != nil {
		b.logger.Warn("failed to read interest history", slog.String("error", err.Error()))
		return []string{}, nil
	}
	return history, nil
}

func (b *Board) ForgetHistory(ctx context.Context, value string) error {
	if err := b.local.RemoveHistory(ctx, value); err != nil {
		b.logger.Warn("failed to forget interest", slog.String("error", err.Error()))
	}
	return nil
}

// Generate asks for recommendations using the board's interests and the context in
// cond (its Interests field is ignored). The interests are remembered first, on the
// account or locally, so the next session starts from them.
func (b *Board) Generate(ctx context.Context, cond model.Conditions) (*model.Recommendations, error) {
	interests := b.Interests()
	if len(interests) == 0 {
		return nil, apperror.ValidationFailed("interests", "Interests are required.")
	}

	if model.IsAnonymous(b.session.Identity()) {
		if err := b.local.SetGuestInterests(ctx, interests); err != nil {
			b.logger.Warn("failed to remember guest interests", slog.String("error", err.Error()))
		}
	} else if err := b.session.UpdateInterests(ctx, interests); err != nil {
		b.logger.Warn("failed to save interests to account", slog.String("error", err.Error()))
	}
	if err := b.local.RecordInterests(ctx, interests); err != nil {
		b.logger.Warn("failed to record interest history", slog.String("error", err.Error()))
	}

	cond.Interests = interests
	recs, err := b.backend.Recommendations(ctx, cond.WithDefaults())
	if err != nil {
		return nil, apperror.Ensure("get-recommendations", err)
	}
	b.logger.Debug("recommendations generated",
		slog.Int("interests", len(interests)),
		slog.Int("total", recs.Total()),
	)
	return recs, nil
}

// Weather validates the coordinates and looks up the conditions there.
func (b *Board) Weather(ctx context.Context, lat, lon float64) (*model.WeatherReport, error) {
	coords := model.Coordinates{Latitude: lat, Longitude: lon}
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	report, err := b.backend.Weather(ctx, coords)
	if err != nil {
		return nil, apperror.Ensure("get_weather", err)
	}
	return report, nil
}
