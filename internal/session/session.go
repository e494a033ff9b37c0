// Package session owns the signed-in identity of one client instance and the
// operations that move it between Anonymous and Authenticated:
//
//	Anonymous --Login / Signup / RestoreSession(valid)--> Authenticated
//	Authenticated --Logout / RestoreSession(invalid)--> Anonymous
//
// The Manager is the only writer of the identity. Other components (saved
// activities, the interest board) observe it through Subscribe.
//
// Every operation returns nil or an *apperror.AppError; none of them panic or
// leak raw transport errors.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/sakif/moodmingle/internal/apperror"
	"github.com/sakif/moodmingle/internal/model"
)

// Backend is the slice of the API client the Manager needs.
type Backend interface {
	CurrentUser(ctx context.Context) (*model.Identity, error)
	Login(ctx context.Context, creds model.Credentials) (*model.Identity, error)
	Signup(ctx context.Context, reg model.Registration) (*model.Identity, error)
	Logout(ctx context.Context) error
	Interests(ctx context.Context) ([]string, error)
	UpdateInterests(ctx context.Context, interests []string) error
	UpdateProfile(ctx context.Context, username string, update model.ProfileUpdate) error
}

// Store is the local persistence the Manager writes through.
type Store interface {
	LoadSnapshot(ctx context.Context) (*model.Identity, error)
	SaveSnapshot(ctx context.Context, id *model.Identity) error
	ClearIdentityData(ctx context.Context) error
}

// Reason says why the identity changed.
type Reason int

const (
	Restored Reason = iota + 1
	LoggedIn
	SignedUp
	LoggedOut
	Expired // a remembered session failed revalidation
	// InterestsChanged keeps the identity and generation; only its interests moved.
	InterestsChanged
)

func (r Reason) String() string {
	switch r {
	case Restored:
		return "restored"
	case LoggedIn:
		return "logged_in"
	case SignedUp:
		return "signed_up"
	case LoggedOut:
		return "logged_out"
	case Expired:
		return "expired"
	case InterestsChanged:
		return "interests_changed"
	default:
		return "unknown"
	}
}

// Change is delivered to listeners after every identity switch. Generation grows
// strictly with each switch, so a listener can drop notifications that arrive late.
type Change struct {
	Identity   *model.Identity // nil when anonymous
	Reason     Reason
	Generation uint64
}

// Listener observes identity changes. It runs on the goroutine that caused the
// change, after the Manager's lock is released.
type Listener func(ctx context.Context, change Change)

// Options tunes the bounded retry of RefreshInterests.
type Options struct {
	InterestRetries int           // total attempts, at least 1
	RetryDelay      time.Duration // pause between attempts
}

// DefaultOptions returns three attempts half a second apart.
func DefaultOptions() Options {
	return Options{InterestRetries: 3, RetryDelay: 500 * time.Millisecond}
}

const defaultLoginError = "Invalid email or password"

// Manager holds the current identity.
//
// GENERATIONS:
// Every identity switch (login, signup, restore, expiry, logout) increments
// generation while mu is held and hands listeners a Change carrying it. Operations
// that talk to the backend first read (identity, generation), make the call without
// the lock, and install the result only if generation is still the one they read.
// A restore that loses to a login therefore changes nothing.
//
// NOTIFICATIONS:
// Listeners run on the caller's goroutine after mu is released, in subscription
// order. When the interest mirror of the current identity changes, listeners get a
// Change with Reason InterestsChanged and the unchanged generation. Profile edits
// are not broadcast.
//
// PERSISTENCE:
// The snapshot in Store follows every accepted change, so Cached can show the
// last-known identity on the next start before the backend has answered.
type Manager struct {
	backend Backend
	store   Store
	opts    Options
	logger  *slog.Logger

	mu         sync.RWMutex
	identity   *model.Identity
	cached     *model.Identity
	loading    bool
	generation uint64
	listeners  []Listener
}

func NewManager(backend Backend, store Store, opts Options, logger *slog.Logger) *Manager {
	if opts.InterestRetries < 1 {
		opts.InterestRetries = 1
	}
	return &Manager{
		backend: backend,
		store:   store,
		opts:    opts,
		logger:  logger,
	}
}

// =========================================================================
// STATE ACCESS
// =========================================================================

// Identity returns a copy of the current identity, or nil when anonymous.
func (m *Manager) Identity() *model.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity.Clone()
}

// Cached returns the last-known identity loaded from disk by RestoreSession. It is
// only a display hint until revalidation finishes.
func (m *Manager) Cached() *model.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cached.Clone()
}

// Loading reports whether RestoreSession is still in flight.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !model.IsAnonymous(m.identity)
}

// Subscribe registers l for every future identity change.
func (m *Manager) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// =========================================================================
// LIFECYCLE
// =========================================================================

// RestoreSession revalidates the ambient session cookie at startup. A non-guest
// answer signs the user in; a guest answer or any failure leaves the client
// anonymous. Loading is true for the duration of the call only.
//
// If another operation switches the identity while the check is in flight, its
// result wins and the check is discarded.
func (m *Manager) RestoreSession(ctx context.Context) error {
	m.mu.Lock()
	m.loading = true
	gen := m.generation
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
	}()

	snapshot, err := m.store.LoadSnapshot(ctx)
	if err != nil {
		m.logger.Warn("failed to load identity snapshot", slog.String("error", err.Error()))
	}
	m.mu.Lock()
	m.cached = snapshot
	m.mu.Unlock()

	id, err := m.backend.CurrentUser(ctx)
	if err != nil || model.IsAnonymous(id) {
		reason := Restored
		if snapshot != nil {
			reason = Expired
		}
		if err != nil {
			m.logger.Warn("session revalidation failed", slog.String("error", err.Error()))
		}
		if m.switchIfCurrent(ctx, gen, nil, reason) {
			m.clearSnapshot(ctx)
		}
		return apperror.Ensure("current-user", err)
	}

	id.Interests = model.NormalizeInterests(id.Interests)
	if !m.switchIfCurrent(ctx, gen, id, Restored) {
		return nil
	}
	m.saveSnapshot(ctx, id)
	m.logger.Info("session restored", slog.String("userID", id.ID))

	if err := m.RefreshInterests(ctx); err != nil {
		m.logger.Warn("interest refresh after restore failed", slog.String("error", err.Error()))
	}
	return nil
}

// Login signs in with a username or email. A failed attempt leaves any current
// identity untouched.
func (m *Manager) Login(ctx context.Context, creds model.Credentials) (*model.Identity, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	id, err := m.backend.Login(ctx, creds)
	if err != nil {
		m.logger.Info("login failed", slog.String("error", err.Error()))
		return nil, credentialError(err)
	}
	return m.signedIn(ctx, id, LoggedIn), nil
}

// Signup registers and signs in. Duplicate usernames or emails surface the
// backend's message.
func (m *Manager) Signup(ctx context.Context, reg model.Registration) (*model.Identity, error) {
	reg.Normalize()
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	id, err := m.backend.Signup(ctx, reg)
	if err != nil {
		m.logger.Info("signup failed",
			slog.String("username", reg.Username),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Ensure("signup", err)
	}
	return m.signedIn(ctx, id, SignedUp), nil
}

func (m *Manager) signedIn(ctx context.Context, id *model.Identity, reason Reason) *model.Identity {
	id = id.Clone()
	id.IsGuest = false
	id.Interests = model.NormalizeInterests(id.Interests)

	m.switchTo(ctx, id, reason)
	m.saveSnapshot(ctx, id)
	m.logger.Info("user signed in",
		slog.String("userID", id.ID),
		slog.String("reason", reason.String()),
	)

	if err := m.RefreshInterests(ctx); err != nil {
		m.logger.Warn("interest refresh after sign-in failed", slog.String("error", err.Error()))
	}
	return m.Identity()
}

// Logout always ends in the anonymous state, whatever the backend says. It clears
// the snapshot, the session cookies, interest history and every saved-activity cache.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.backend.Logout(ctx); err != nil {
		m.logger.Warn("backend logout failed, clearing local session anyway",
			slog.String("error", err.Error()),
		)
	}
	if err := m.store.ClearIdentityData(ctx); err != nil {
		m.logger.Error("failed to clear local session data", slog.String("error", err.Error()))
	}

	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()

	m.switchTo(ctx, nil, LoggedOut)
	m.logger.Info("user logged out")
	return nil
}

// =========================================================================
// PROFILE
// =========================================================================

// UpdateProfile sends a partial profile change and merges the accepted fields.
func (m *Manager) UpdateProfile(ctx context.Context, update model.ProfileUpdate) error {
	current, gen := m.current()
	if model.IsAnonymous(current) {
		return apperror.NotAuthenticated("not logged in")
	}
	if err := update.Validate(); err != nil {
		return err
	}
	update.Normalize()

	if err := m.backend.UpdateProfile(ctx, current.Username, update); err != nil {
		return apperror.Ensure("update-profile", err)
	}

	m.apply(ctx, gen, update.Apply)
	return nil
}

// RefreshInterests replaces the local interest mirror with the backend's list.
// Right after sign-in the backend may briefly answer 401 while the session cookie
// settles, so NotAuthenticated answers are retried within Options.InterestRetries.
// Other failures are returned immediately.
func (m *Manager) RefreshInterests(ctx context.Context) error {
	current, gen := m.current()
	if model.IsAnonymous(current) {
		return apperror.NotAuthenticated("not logged in")
	}

	interests, err := retry.DoWithData(
		func() ([]string, error) { return m.backend.Interests(ctx) },
		retry.Context(ctx),
		retry.Attempts(uint(m.opts.InterestRetries)),
		retry.Delay(m.opts.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, apperror.ErrNotAuthenticated)
		}),
		retry.OnRetry(func(n uint, err error) {
			m.logger.Debug("retrying interest refresh",
				slog.Int("attempt", int(n)+1),
				slog.String("error", err.Error()),
			)
		}),
	)
	if err != nil {
		return apperror.Ensure("get-interests", err)
	}

	m.setInterests(ctx, gen, model.NormalizeInterests(interests))
	return nil
}

// UpdateInterests replaces the signed-in user's interests on the backend and, once
// accepted, in the local mirror.
func (m *Manager) UpdateInterests(ctx context.Context, interests []string) error {
	current, gen := m.current()
	if model.IsAnonymous(current) {
		return apperror.NotAuthenticated("not logged in")
	}

	interests = model.NormalizeInterests(interests)
	if err := m.backend.UpdateInterests(ctx, interests); err != nil {
		return apperror.Ensure("update-interests", err)
	}

	m.setInterests(ctx, gen, interests)
	return nil
}

// =========================================================================
// INTERNALS
// =========================================================================

func (m *Manager) current() (*model.Identity, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity.Clone(), m.generation
}

// apply mutates a copy of the identity and installs it, unless the identity
// switched since gen was read. The listeners are not notified: the id is unchanged.
func (m *Manager) apply(ctx context.Context, gen uint64, mutate func(*model.Identity)) {
	m.mu.Lock()
	if m.generation != gen || m.identity == nil {
		m.mu.Unlock()
		m.logger.Debug("dropping stale identity update")
		return
	}
	updated := m.identity.Clone()
	mutate(updated)
	m.identity = updated
	m.mu.Unlock()

	m.saveSnapshot(ctx, updated)
}

// setInterests mirrors interests into the identity read at gen. A list that differs
// from the current mirror is saved and broadcast as InterestsChanged.
func (m *Manager) setInterests(ctx context.Context, gen uint64, interests []string) {
	m.mu.Lock()
	if m.generation != gen || m.identity == nil {
		m.mu.Unlock()
		m.logger.Debug("dropping stale interest update")
		return
	}
	if slices.Equal(m.identity.Interests, interests) {
		m.mu.Unlock()
		return
	}
	updated := m.identity.Clone()
	updated.Interests = slices.Clone(interests)
	m.identity = updated
	change := Change{Identity: updated.Clone(), Reason: InterestsChanged, Generation: gen}
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	m.saveSnapshot(ctx, updated)
	notify(ctx, listeners, change)
}

// switchTo installs id unconditionally and notifies listeners.
func (m *Manager) switchTo(ctx context.Context, id *model.Identity, reason Reason) {
	m.mu.Lock()
	change := m.installLocked(id, reason)
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	notify(ctx, listeners, change)
}

// switchIfCurrent installs id only if no other switch happened since gen.
func (m *Manager) switchIfCurrent(ctx context.Context, gen uint64, id *model.Identity, reason Reason) bool {
	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return false
	}
	change := m.installLocked(id, reason)
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	notify(ctx, listeners, change)
	return true
}

func (m *Manager) installLocked(id *model.Identity, reason Reason) Change {
	m.identity = id.Clone()
	m.generation++
	return Change{Identity: id.Clone(), Reason: reason, Generation: m.generation}
}

func notify(ctx context.Context, listeners []Listener, change Change) {
	for _, l := range listeners {
		l(ctx, Change{Identity: change.Identity.Clone(), Reason: change.Reason, Generation: change.Generation})
	}
}

func (m *Manager) saveSnapshot(ctx context.Context, id *model.Identity) {
	if err := m.store.SaveSnapshot(ctx, id); err != nil {
		m.logger.Warn("failed to persist identity snapshot", slog.String("error", err.Error()))
	}
}

func (m *Manager) clearSnapshot(ctx context.Context) {
	if err := m.store.SaveSnapshot(ctx, nil); err != nil {
		m.logger.Warn("failed to clear identity snapshot", slog.String("error", err.Error()))
	}
}

// credentialError turns a failed login into the user-facing error. A 401 from the
// login endpoint means bad credentials, not a missing session.
func credentialError(err error) error {
	if errors.Is(err, apperror.ErrNotAuthenticated) {
		msg := apperror.Message(err)
		if msg == "" || msg == "not logged in" {
			msg = defaultLoginError
		}
		return apperror.Rejected(msg)
	}
	return apperror.Ensure("login", err)
}
