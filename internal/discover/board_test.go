package discover

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/moodmingle/internal/apperror"
	"github.com/sakif/moodmingle/internal/model"
	"github.com/sakif/moodmingle/internal/session"
)

type fakeSession struct {
	identity *model.Identity
	updated  []string
	err      error
}

func (f *fakeSession) Identity() *model.Identity { return f.identity.Clone() }

func (f *fakeSession) UpdateInterests(ctx context.Context, interests []string) error {
	f.updated = interests
	return f.err
}

type fakeLocal struct {
	guest    []string
	history  [][]string
	forgot   []string
	guestErr error

	// When entered is set, GuestInterests signals on it and then waits for release.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeLocal) GuestInterests(ctx context.Context) ([]string, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	return f.guest, f.guestErr
}

func (f *fakeLocal) SetGuestInterests(ctx context.Context, interests []string) error {
	f.guest = interests
	return nil
}

func (f *fakeLocal) InterestHistory(ctx context.Context) ([]string, error) {
	if len(f.history) == 0 {
		return []string{}, nil
	}
	return f.history[len(f.history)-1], nil
}

func (f *fakeLocal) RecordInterests(ctx context.Context, interests []string) error {
	f.history = append(f.history, interests)
	return nil
}

func (f *fakeLocal) RemoveHistory(ctx context.Context, value string) error {
	f.forgot = append(f.forgot, value)
	return nil
}

type fakeBackend struct {
	cond    model.Conditions
	recs    *model.Recommendations
	err     error
	weather *model.WeatherReport
}

func (f *fakeBackend) Recommendations(ctx context.Context, cond model.Conditions) (*model.Recommendations, error) {
	f.cond = cond
	if f.err != nil {
		return nil, f.err
	}
	return f.recs, nil
}

func (f *fakeBackend) Weather(ctx context.Context, coords model.Coordinates) (*model.WeatherReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.weather, nil
}

func newTestBoard(t *testing.T, sess *fakeSession, local *fakeLocal, backend *fakeBackend) *Board {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewBoard(sess, local, backend, logger)
}

func TestBoard_AddRemoveSuggestions(t *testing.T) {
	b := newTestBoard(t, &fakeSession{}, &fakeLocal{}, &fakeBackend{})

	require.NoError(t, b.Add("Horror"))
	require.NoError(t, b.Add("horror"))
	require.NoError(t, b.Add("Cooking"))
	assert.ErrorIs(t, b.Add("   "), apperror.ErrValidation)

	assert.Equal(t, []string{"Horror", "Cooking"}, b.Interests())
	assert.NotContains(t, b.Suggestions(), "Horror")
	assert.Contains(t, b.Suggestions(), "Reading")

	assert.True(t, b.Remove("HORROR"))
	assert.False(t, b.Remove("Horror"))
	assert.Equal(t, []string{"Cooking"}, b.Interests())
}

func TestBoard_LoadsPerIdentity(t *testing.T) {
	local := &fakeLocal{guest: []string{"Reading"}}
	b := newTestBoard(t, &fakeSession{}, local, &fakeBackend{})
	ctx := context.Background()

	b.HandleChange(ctx, session.Change{Reason: session.Restored, Generation: 1})
	assert.Equal(t, []string{"Reading"}, b.Interests())

	b.HandleChange(ctx, session.Change{
		Identity:   &model.Identity{ID: "u1", Interests: []string{"Art", "Games"}},
		Reason:     session.LoggedIn,
		Generation: 2,
	})
	assert.Equal(t, []string{"Art", "Games"}, b.Interests())

	b.HandleChange(ctx, session.Change{Reason: session.Restored, Generation: 1})
	assert.Equal(t, []string{"Art", "Games"}, b.Interests(), "stale change is ignored")
}

func TestBoard_LateGuestLoadCannotUndoLogin(t *testing.T) {
	local := &fakeLocal{
		guest:   []string{"Reading"},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	b := newTestBoard(t, &fakeSession{}, local, &fakeBackend{})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		b.HandleChange(ctx, session.Change{Reason: session.LoggedOut, Generation: 1})
		close(done)
	}()
	<-local.entered

	b.HandleChange(ctx, session.Change{
		Identity:   &model.Identity{ID: "u1", Interests: []string{"Art"}},
		Reason:     session.LoggedIn,
		Generation: 2,
	})
	close(local.release)
	<-done

	assert.Equal(t, []string{"Art"}, b.Interests())
}

func TestBoard_FollowsInterestRefresh(t *testing.T) {
	b := newTestBoard(t, &fakeSession{}, &fakeLocal{}, &fakeBackend{})
	ctx := context.Background()
	alice := &model.Identity{ID: "u1", Interests: []string{"Art"}}

	b.HandleChange(ctx, session.Change{Identity: alice, Reason: session.LoggedIn, Generation: 3})
	require.Equal(t, []string{"Art"}, b.Interests())

	refreshed := alice.Clone()
	refreshed.Interests = []string{"Art", "Music"}
	b.HandleChange(ctx, session.Change{Identity: refreshed, Reason: session.InterestsChanged, Generation: 3})
	assert.Equal(t, []string{"Art", "Music"}, b.Interests())

	older := alice.Clone()
	older.Interests = []string{"Gaming"}
	b.HandleChange(ctx, session.Change{Identity: older, Reason: session.InterestsChanged, Generation: 2})
	assert.Equal(t, []string{"Art", "Music"}, b.Interests(), "a notice from an earlier identity is dropped")
}

func TestGenerate_RequiresInterests(t *testing.T) {
	backend := &fakeBackend{}
	b := newTestBoard(t, &fakeSession{}, &fakeLocal{}, backend)

	_, err := b.Generate(context.Background(), model.Conditions{})

	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "Interests are required.", apperror.Message(err))
	assert.Empty(t, backend.cond.Interests, "no request without interests")
}

func TestGenerate_GuestRemembersLocally(t *testing.T) {
	local := &fakeLocal{}
	backend := &fakeBackend{recs: model.FallbackRecommendations()}
	b := newTestBoard(t, &fakeSession{}, local, backend)
	require.NoError(t, b.Add("Outdoors"))

	recs, err := b.Generate(context.Background(), model.Conditions{Location: "Dhaka"})

	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Equal(t, []string{"Outdoors"}, local.guest)
	assert.Equal(t, [][]string{{"Outdoors"}}, local.history)
	assert.Equal(t, model.Conditions{
		Interests:   []string{"Outdoors"},
		Location:    "Dhaka",
		Weather:     "Unknown",
		Temperature: "Unknown",
	}, backend.cond)
}

func TestGenerate_AccountSaveFailureIsNotFatal(t *testing.T) {
	sess := &fakeSession{
		identity: &model.Identity{ID: "u1", Username: "alice"},
		err:      apperror.Transport("update-interests", errors.New("offline")),
	}
	local := &fakeLocal{}
	backend := &fakeBackend{recs: model.FallbackRecommendations()}
	b := newTestBoard(t, sess, local, backend)
	require.NoError(t, b.Add("Art"))

	_, err := b.Generate(context.Background(), model.Conditions{})

	require.NoError(t, err)
	assert.Equal(t, []string{"Art"}, sess.updated)
	assert.Nil(t, local.guest, "signed-in interests do not go to the guest slot")
}

func TestGenerate_BackendRejection(t *testing.T) {
	backend := &fakeBackend{err: apperror.Rejected("Interests are required.")}
	b := newTestBoard(t, &fakeSession{}, &fakeLocal{}, backend)
	require.NoError(t, b.Add("Art"))

	_, err := b.Generate(context.Background(), model.Conditions{})

	assert.ErrorIs(t, err, apperror.ErrRejected)
}

func TestWeather(t *testing.T) {
	report := &model.WeatherReport{Location: "Dhaka", Weather: model.Weather{Condition: "Sunny", Temperature: 31}}
	b := newTestBoard(t, &fakeSession{}, &fakeLocal{}, &fakeBackend{weather: report})

	tests := []struct {
		name     string
		lat, lon float64
		wantErr  bool
	}{
		{"valid", 23.8, 90.4, false},
		{"zero pair", 0, 0, true},
		{"latitude out of range", 91, 10, true},
		{"longitude out of range", 10, -181, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Weather(context.Background(), tt.lat, tt.lon)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrValidation)
				assert.Equal(t, "Invalid coordinates", apperror.Message(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Dhaka", got.Location)
		})
	}
}

func TestHistory(t *testing.T) {
	local := &fakeLocal{history: [][]string{{"Art", "Games"}}}
	b := newTestBoard(t, &fakeSession{}, local, &fakeBackend{})
	ctx := context.Background()

	got, err := b.History(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Art", "Games"}, got)

	require.NoError(t, b.ForgetHistory(ctx, "art"))
	assert.Equal(t, []string{"art"}, local.forgot)
}
