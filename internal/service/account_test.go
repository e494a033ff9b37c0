package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sakif/moodmingle/internal/apperror"
	"github.com/sakif/moodmingle/internal/auth"
	"github.com/sakif/moodmingle/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	users  map[string]*model.User
	nextID int
	// set to simulate a database failure
	createErr error
	getErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	user.CreatedAt = time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Username, login) || strings.EqualFold(u.Email, login) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", login)
}

func (f *fakeUserRepo) Exists(ctx context.Context, username, email string) (bool, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Username, username) || strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	if update.DisplayName != nil {
		u.DisplayName = *update.DisplayName
	}
	if update.Location != nil {
		u.Location = *update.Location
	}
	copied := *u
	return &copied, nil
}

// fakeInterestRepo keeps interests per user in insertion order.
type fakeInterestRepo struct {
	byUser map[string][]string
	err    error
}

func newFakeInterestRepo() *fakeInterestRepo {
	return &fakeInterestRepo{byUser: make(map[string][]string)}
}

func (f *fakeInterestRepo) ListInterests(ctx context.Context, userID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]string{}, f.byUser[userID]...), nil
}

func (f *fakeInterestRepo) ReplaceInterests(ctx context.Context, userID string, interests []string) error {
	if f.err != nil {
		return f.err
	}
	f.byUser[userID] = append([]string{}, interests...)
	return nil
}

func (f *fakeInterestRepo) AddInterests(ctx context.Context, userID string, interests []string) error {
	if f.err != nil {
		return f.err
	}
	f.byUser[userID] = model.NormalizeInterests(append(f.byUser[userID], interests...))
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestAccountService wires an AccountService to fakes. bcrypt runs at its
// minimum cost to keep the tests fast.
func newTestAccountService(t *testing.T, users *fakeUserRepo, interests *fakeInterestRepo) *AccountService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return NewAccountService(users, interests, ts, auth.NewPasswordServiceWithCost(4), newTestLogger())
}

var aliceReg = model.Registration{
	Username:    "alice",
	Email:       "alice@example.com",
	Password:    "correct horse",
	DisplayName: "Alice",
}

func registerAlice(t *testing.T, svc *AccountService) *AuthResult {
	t.Helper()
	res, err := svc.Register(context.Background(), aliceReg)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return res
}

// =========================================================================
// REGISTER
// =========================================================================

func TestRegister(t *testing.T) {
	users := newFakeUserRepo()
	svc := newTestAccountService(t, users, newFakeInterestRepo())

	res := registerAlice(t, svc)

	if res.Identity.ID != "user-1" || res.Identity.Username != "alice" {
		t.Errorf("Identity = %+v", res.Identity)
	}
	if res.Identity.Interests == nil || len(res.Identity.Interests) != 0 {
		t.Errorf("Interests = %#v, want empty non-nil", res.Identity.Interests)
	}
	if res.Identity.MemberSince != "March 2025" {
		t.Errorf("MemberSince = %q, want %q", res.Identity.MemberSince, "March 2025")
	}
	if users.users["user-1"].PasswordHash == aliceReg.Password {
		t.Error("password stored in plain text")
	}

	userID, err := svc.tokens.Validate(res.Token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if userID != "user-1" {
		t.Errorf("token subject = %q, want %q", userID, "user-1")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
	}{
		{"same username other case", "ALICE", "other@example.com"},
		{"same email other case", "alice2", "Alice@Example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestAccountService(t, newFakeUserRepo(), newFakeInterestRepo())
			registerAlice(t, svc)

			reg := aliceReg
			reg.Username, reg.Email = tt.username, tt.email
			_, err := svc.Register(context.Background(), reg)

			if !errors.Is(err, apperror.ErrConflict) {
				t.Fatalf("Register() error = %v, want ErrConflict", err)
			}
			if got := apperror.Message(err); got != "Username or email already exists" {
				t.Errorf("message = %q", got)
			}
		})
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestAccountService(t, newFakeUserRepo(), newFakeInterestRepo())

	reg := aliceReg
	reg.Password = "short"
	_, err := svc.Register(context.Background(), reg)

	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Register() error = %v, want ErrValidation", err)
	}
}

func TestRegister_RepositoryError(t *testing.T) {
	users := newFakeUserRepo()
	users.createErr = errors.New("database is on fire")
	svc := newTestAccountService(t, users, newFakeInterestRepo())

	_, err := svc.Register(context.Background(), aliceReg)

	if err == nil || !strings.Contains(err.Error(), "database is on fire") {
		t.Fatalf("Register() error = %v, want wrapped repository error", err)
	}
}

// =========================================================================
// AUTHENTICATE
// =========================================================================

func TestAuthenticate(t *testing.T) {
	interests := newFakeInterestRepo()
	svc := newTestAccountService(t, newFakeUserRepo(), interests)
	registerAlice(t, svc)
	interests.byUser["user-1"] = []string{"Reading"}

	for _, login := range []string{"alice", "ALICE@example.com", "  alice  "} {
		res, err := svc.Authenticate(context.Background(), model.Credentials{Identifier: login, Password: "correct horse"})
		if err != nil {
			t.Fatalf("Authenticate(%q) error = %v", login, err)
		}
		if res.Identity.ID != "user-1" || res.Token == "" {
			t.Errorf("Authenticate(%q) = %+v", login, res)
		}
		if len(res.Identity.Interests) != 1 || res.Identity.Interests[0] != "Reading" {
			t.Errorf("Interests = %v", res.Identity.Interests)
		}
	}
}

func TestAuthenticate_Rejected(t *testing.T) {
	svc := newTestAccountService(t, newFakeUserRepo(), newFakeInterestRepo())
	registerAlice(t, svc)

	tests := []struct {
		name  string
		creds model.Credentials
	}{
		{"wrong password", model.Credentials{Identifier: "alice", Password: "wrong horse"}},
		{"unknown user", model.Credentials{Identifier: "mallory", Password: "correct horse"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), tt.creds)

			if !errors.Is(err, apperror.ErrRejected) {
				t.Fatalf("Authenticate() error = %v, want ErrRejected", err)
			}
			if got := apperror.Message(err); got != "Invalid email or password" {
				t.Errorf("message = %q", got)
			}
		})
	}
}

func TestAuthenticate_BlankCredentials(t *testing.T) {
	svc := newTestAccountService(t, newFakeUserRepo(), newFakeInterestRepo())

	_, err := svc.Authenticate(context.Background(), model.Credentials{Identifier: " ", Password: "x"})

	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Authenticate() error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// CURRENT AND PROFILE
// =========================================================================

func TestCurrent(t *testing.T) {
	svc := newTestAccountService(t, newFakeUserRepo(), newFakeInterestRepo())
	registerAlice(t, svc)

	id, err := svc.Current(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if id.Username != "alice" || id.IsGuest {
		t.Errorf("Current() = %+v", id)
	}

	_, err = svc.Current(context.Background(), "deleted-user")
	if !errors.Is(err, apperror.ErrNotAuthenticated) {
		t.Errorf("Current(deleted) error = %v, want ErrNotAuthenticated", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := newTestAccountService(t, newFakeUserRepo(), newFakeInterestRepo())
	registerAlice(t, svc)
	name, location := "  Al  ", "Dhaka"

	id, err := svc.UpdateProfile(context.Background(), "user-1", "Alice", model.ProfileUpdate{DisplayName: &name, Location: &location})

	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if id.DisplayName != "Al" || id.Location != "Dhaka" {
		t.Errorf("UpdateProfile() = %+v", id)
	}
}

func TestUpdateProfile_Refusals(t *testing.T) {
	svc := newTestAccountService(t, newFakeUserRepo(), newFakeInterestRepo())
	registerAlice(t, svc)
	name := "Bob"
	blank := " "

	tests := []struct {
		name     string
		username string
		update   model.ProfileUpdate
		want     error
	}{
		{"someone else", "bob", model.ProfileUpdate{DisplayName: &name}, apperror.ErrForbidden},
		{"nothing to update", "alice", model.ProfileUpdate{}, apperror.ErrValidation},
		{"blank display name", "alice", model.ProfileUpdate{DisplayName: &blank}, apperror.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProfile(context.Background(), "user-1", tt.username, tt.update)
			if !errors.Is(err, tt.want) {
				t.Errorf("UpdateProfile() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// =========================================================================
// INTERESTS
// =========================================================================

func TestInterests_ReplaceAndAdd(t *testing.T) {
	interests := newFakeInterestRepo()
	svc := newTestAccountService(t, newFakeUserRepo(), interests)
	ctx := context.Background()

	got, err := svc.ReplaceInterests(ctx, "user-1", []string{"Art", " art ", "Games", ""})
	if err != nil {
		t.Fatalf("ReplaceInterests() error = %v", err)
	}
	if strings.Join(got, ",") != "Art,Games" {
		t.Errorf("ReplaceInterests() = %v", got)
	}

	got, err = svc.AddInterests(ctx, "user-1", []string{"GAMES", "Hiking"})
	if err != nil {
		t.Fatalf("AddInterests() error = %v", err)
	}
	if strings.Join(got, ",") != "Art,Games,Hiking" {
		t.Errorf("AddInterests() = %v", got)
	}

	_, err = svc.AddInterests(ctx, "user-1", []string{"  "})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("AddInterests(blank) error = %v, want ErrValidation", err)
	}

	got, err = svc.ReplaceInterests(ctx, "user-1", nil)
	if err != nil || len(got) != 0 {
		t.Errorf("ReplaceInterests(nil) = %v, %v; want empty", got, err)
	}
}
