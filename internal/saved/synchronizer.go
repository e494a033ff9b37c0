// Package saved keeps the in-memory list of saved activities for the current
// identity and synchronises it with the store behind that identity.
//
// Toggles apply optimistically and are confirmed or rolled back when the store
// answers. Several toggles of the same title may be in flight at once and may finish
// in any order; a per-title transaction log decides what the final state is:
//
//   - a success newer than the last success becomes the confirmed state;
//   - a failure of the most recent toggle restores the confirmed state, once the
//     title has no other toggle in flight;
//   - a failure of an older toggle changes nothing.
//
// Every identity switch bumps an epoch. Loads, confirmations and rollbacks that
// started under an older epoch are discarded.
package saved

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sakif/moodmingle/internal/apperror"
	"github.com/sakif/moodmingle/internal/model"
	"github.com/sakif/moodmingle/internal/session"
)

// LocalCache is the local persistence ClearAll wipes.
type LocalCache interface {
	ClearSaved(ctx context.Context) error
}

// titleState is what one title looked like at some point: saved or not, and where.
type titleState struct {
	present  bool
	activity model.SavedActivity
	index    int
}

// txnLog tracks the toggles of one title that have not settled yet.
//
// LIFECYCLE:
// The first toggle of a title creates the log and records the title's state at that
// moment as confirmed. Each further toggle bumps latest and pending. When a store
// call returns:
//
//	success, seq > committed   -> committed = seq, confirmed = state after that toggle
//	failure, seq == latest     -> rollback = true
//	failure, seq <  latest     -> nothing; a newer toggle decides
//
// A success of the latest toggle clears rollback again. Once pending reaches zero the
// log is settled: a pending rollback puts the title back to confirmed, at its old
// position, and the log is deleted. An identity switch drops every log.
type txnLog struct {
	latest    uint64 // seq of the most recent toggle
	committed uint64 // seq of the newest successful toggle
	confirmed titleState
	pending   int
	// rollback is set when the most recent toggle failed; it is applied once
	// pending drops to zero.
	rollback bool
}

// Synchronizer owns the saved-activity working set.
//
// STORES:
// A signed-in identity reads and writes the remote store; everyone else uses the
// local guest store. Only the remote store is authoritative: a failed local write is
// logged and the optimistic state stays.
//
// LOCKING:
// mu guards every field below it. Store calls never run under mu. Each call records
// the epoch it started in, and its result is dropped when the epoch has moved on.
//
// IDENTITY SWITCHES:
// HandleChange accepts only generations newer than lastGen. Accepting one, picking
// the new store and bumping the epoch happen in the same critical section, so a
// notification that loses a race can neither reinstall an old store nor install
// the set it loaded.
type Synchronizer struct {
	remote ActivityStore
	guest  ActivityStore
	cache  LocalCache
	logger *slog.Logger

	mu      sync.Mutex
	epoch   uint64
	lastGen uint64
	store   ActivityStore
	items   []model.SavedActivity
	txns    map[string]*txnLog
	seq     uint64
}

// NewSynchronizer starts in the guest state. remote serves signed-in users and guest
// serves everyone else.
func NewSynchronizer(remote, guest ActivityStore, cache LocalCache, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		remote: remote,
		guest:  guest,
		cache:  cache,
		logger: logger,
		store:  guest,
		items:  []model.SavedActivity{},
		txns:   make(map[string]*txnLog),
	}
}

// =========================================================================
// IDENTITY
// =========================================================================

// HandleChange is a session.Listener. Notifications older than one already seen
// are ignored; a logout wipes every cached scope before the guest set loads.
//
// The generation check and the store switch happen under one lock, so a late
// notification can never switch back to the store of an identity that is gone.
func (s *Synchronizer) HandleChange(ctx context.Context, change session.Change) {
	if change.Reason == session.InterestsChanged {
		return
	}

	s.mu.Lock()
	if change.Generation != 0 {
		if change.Generation <= s.lastGen {
			s.mu.Unlock()
			return
		}
		s.lastGen = change.Generation
	}
	store, epoch := s.switchLocked(change.Identity)
	s.mu.Unlock()

	if change.Reason == session.LoggedOut {
		if err := s.cache.ClearSaved(ctx); err != nil {
			s.logger.Warn("failed to clear saved activities on logout", slog.String("error", err.Error()))
		}
	}
	s.load(ctx, change.Identity, store, epoch)
}

// OnIdentityChanged switches to the store for id and reloads the working set. A load
// failure leaves the set empty. Titles toggled while the load was in flight keep
// their local state.
func (s *Synchronizer) OnIdentityChanged(ctx context.Context, id *model.Identity) {
	s.mu.Lock()
	store, epoch := s.switchLocked(id)
	s.mu.Unlock()

	s.load(ctx, id, store, epoch)
}

// switchLocked starts a new epoch on the store that serves id with an empty working
// set.
func (s *Synchronizer) switchLocked(id *model.Identity) (ActivityStore, uint64) {
	s.store = s.guest
	if !model.IsAnonymous(id) {
		s.store = s.remote
	}
	s.epoch++
	s.items = []model.SavedActivity{}
	s.txns = make(map[string]*txnLog)
	return s.store, s.epoch
}

// load fills the working set from store unless another switch started after epoch.
func (s *Synchronizer) load(ctx context.Context, id *model.Identity, store ActivityStore, epoch uint64) {
	s.mu.Lock()
	stale := s.epoch != epoch
	s.mu.Unlock()
	if stale {
		s.logger.Debug("skipping saved-activity load for a replaced identity", slog.String("identity", id.Key()))
		return
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load saved activities",
			slog.String("identity", id.Key()),
			slog.String("error", err.Error()),
		)
		loaded = nil
	}
	loaded = model.DedupeActivities(loaded)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		s.logger.Debug("discarding stale saved-activity load", slog.String("identity", id.Key()))
		return
	}

	merged := make([]model.SavedActivity, 0, len(loaded)+len(s.items))
	for _, a := range loaded {
		if _, busy := s.txns[a.Title]; !busy {
			merged = append(merged, a)
		}
	}
	for _, a := range s.items {
		if _, busy := s.txns[a.Title]; busy {
			merged = append(merged, a)
		}
	}
	s.items = merged
}

// =========================================================================
// OPERATIONS
// =========================================================================

// ToggleSave saves a if its title is not in the set and removes it otherwise. It
// reports whether the title is saved once the store has answered.
func (s *Synchronizer) ToggleSave(ctx context.Context, a model.SavedActivity) (bool, error) {
	if strings.TrimSpace(a.Title) == "" {
		return false, apperror.ValidationFailed("title", "activity title is required")
	}

	s.mu.Lock()
	store := s.store
	epoch := s.epoch
	idx := s.indexLocked(a.Title)

	log, ok := s.txns[a.Title]
	if !ok {
		log = &txnLog{confirmed: titleState{present: idx >= 0, index: idx}}
		if idx >= 0 {
			log.confirmed.activity = s.items[idx]
		}
		s.txns[a.Title] = log
	}
	s.seq++
	seq := s.seq
	log.latest = seq
	log.pending++
	log.rollback = false

	adding := idx < 0
	var after titleState
	if adding {
		s.items = append(s.items, a)
		after = titleState{present: true, activity: a, index: len(s.items) - 1}
	} else {
		a = s.items[idx]
		s.items = append(s.items[:idx], s.items[idx+1:]...)
		after = titleState{index: idx}
	}
	s.mu.Unlock()

	var err error
	if adding {
		err = store.Add(ctx, a)
	} else {
		err = store.Remove(ctx, a.Title)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		// The identity changed underneath; report what the current set shows.
		return s.indexLocked(a.Title) >= 0, apperror.Ensure("save-activity", err)
	}

	if err != nil && !store.Authoritative() {
		s.logger.Warn("failed to persist saved activity locally",
			slog.String("title", a.Title),
			slog.String("error", err.Error()),
		)
		err = nil
	}

	log.pending--
	switch {
	case err == nil && seq > log.committed:
		log.committed = seq
		log.confirmed = after
	case err != nil && seq == log.latest:
		log.rollback = true
	}
	if err != nil {
		s.logger.Info("saved activity toggle failed",
			slog.String("title", a.Title),
			slog.Bool("adding", adding),
			slog.String("error", err.Error()),
		)
	}

	if log.pending == 0 {
		if log.rollback {
			s.restoreLocked(a.Title, log.confirmed)
		}
		delete(s.txns, a.Title)
	}

	return s.indexLocked(a.Title) >= 0, apperror.Ensure("save-activity", err)
}

// IsSaved reports whether title is in the working set. Matching is exact.
func (s *Synchronizer) IsSaved(title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(title) >= 0
}

// Activities returns a copy of the working set in display order.
func (s *Synchronizer) Activities() []model.SavedActivity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SavedActivity, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Synchronizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// ClearAll empties the working set, forgets pending toggles and wipes every locally
// cached scope.
func (s *Synchronizer) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	s.epoch++
	s.items = []model.SavedActivity{}
	s.txns = make(map[string]*txnLog)
	s.mu.Unlock()

	if err := s.cache.ClearSaved(ctx); err != nil {
		return fmt.Errorf("saved: clear local cache: %w", err)
	}
	return nil
}

func (s *Synchronizer) indexLocked(title string) int {
	for i, a := range s.items {
		if a.Title == title {
			return i
		}
	}
	return -1
}

// restoreLocked puts title back into state st.
func (s *Synchronizer) restoreLocked(title string, st titleState) {
	if i := s.indexLocked(title); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	if !st.present {
		return
	}
	at := st.index
	if at < 0 || at > len(s.items) {
		at = len(s.items)
	}
	s.items = append(s.items, model.SavedActivity{})
	copy(s.items[at+1:], s.items[at:])
	s.items[at] = st.activity
}
