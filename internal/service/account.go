// Package service is the backend's business layer.
//
// Handlers parse HTTP and write responses; services validate, enforce the rules and
// orchestrate repositories and upstream APIs; repositories talk SQL:
//
//	Handler (HTTP) -> Service (rules) -> Repository (sqlite)
//	                               \-> recommend.Recommender, weather.Provider
//
// Services take and return domain types and report failures as *apperror.AppError,
// so they can be driven from tests or another transport without an HTTP request.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/moodmingle/internal/apperror"
	"github.com/sakif/moodmingle/internal/auth"
	"github.com/sakif/moodmingle/internal/model"
	"github.com/sakif/moodmingle/internal/repository"
)

const (
	msgInvalidLogin    = "Invalid email or password"
	msgDuplicateUser   = "Username or email already exists"
	msgInterestsNeeded = "Interests are required."
)

// AccountService handles signup, login, profiles and interests.
type AccountService struct {
	users     repository.UserRepository
	interests repository.InterestRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAccountService(
	users repository.UserRepository,
	interests repository.InterestRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		interests: interests,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the signed-in identity with its session token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	Identity *model.Identity
	Token    string
}

// Register creates an account and signs it in. A username or email that is already
// registered, in any casing, is a Conflict.
func (s *AccountService) Register(ctx context.Context, reg model.Registration) (*AuthResult, error) {
	reg.Normalize()
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, reg.Username, reg.Email)
	if err != nil {
		return nil, fmt.Errorf("service/account: checking for existing user: %w", err)
	}
	if exists {
		return nil, apperror.Conflict(msgDuplicateUser)
	}

	hash, err := s.passwords.Hash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("service/account: %w", err)
	}

	user := &model.User{
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: hash,
		DisplayName:  reg.DisplayName,
	}
	// Create reports its own Conflict if another signup wins the race after Exists.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/account: creating user %q: %w", reg.Username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user, []string{})
}

// Authenticate signs in by username or email. Unknown accounts and wrong passwords
// get the same answer.
func (s *AccountService) Authenticate(ctx context.Context, creds model.Credentials) (*AuthResult, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByLogin(ctx, strings.TrimSpace(creds.Identifier))
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Rejected(msgInvalidLogin)
	}
	if err != nil {
		return nil, fmt.Errorf("service/account: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, creds.Password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("password check failed",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.Rejected(msgInvalidLogin)
	}

	interests, err := s.interests.ListInterests(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: loading interests: %w", err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user, interests)
}

func (s *AccountService) issue(user *model.User, interests []string) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{Identity: user.Identity(interests), Token: token}, nil
}

// SessionTTL is how long issued tokens, and so the session cookie, stay valid.
func (s *AccountService) SessionTTL() time.Duration {
	return s.tokens.TTL()
}

// Current returns the identity behind a validated session. A token for a deleted
// account is NotAuthenticated.
func (s *AccountService) Current(ctx context.Context, userID string) (*model.Identity, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	interests, err := s.interests.ListInterests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/account: loading interests: %w", err)
	}
	return user.Identity(interests), nil
}

func (s *AccountService) user(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotAuthenticated(auth.NotLoggedIn)
	}
	if err != nil {
		return nil, fmt.Errorf("service/account: loading user: %w", err)
	}
	return user, nil
}

// UpdateProfile applies a partial profile change to the signed-in user. username is
// what the client believes it is editing; a mismatch is Forbidden.
func (s *AccountService) UpdateProfile(ctx context.Context, userID, username string, update model.ProfileUpdate) (*model.Identity, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	update.Normalize()

	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if username = strings.TrimSpace(username); username != "" && !strings.EqualFold(username, user.Username) {
		s.logger.Warn("profile update for another user refused",
			slog.String("userID", userID),
			slog.String("username", username),
		)
		return nil, apperror.Forbidden("You can only update your own profile")
	}

	updated, err := s.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		return nil, fmt.Errorf("service/account: updating profile: %w", err)
	}
	interests, err := s.interests.ListInterests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/account: loading interests: %w", err)
	}
	return updated.Identity(interests), nil
}

func (s *AccountService) Interests(ctx context.Context, userID string) ([]string, error) {
	interests, err := s.interests.ListInterests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/account: loading interests: %w", err)
	}
	return interests, nil
}

// ReplaceInterests swaps the whole list. An empty list is allowed and clears it.
func (s *AccountService) ReplaceInterests(ctx context.Context, userID string, interests []string) ([]string, error) {
	interests = model.NormalizeInterests(interests)
	if err := s.interests.ReplaceInterests(ctx, userID, interests); err != nil {
		return nil, fmt.Errorf("service/account: replacing interests: %w", err)
	}
	s.logger.Debug("interests replaced", slog.String("userID", userID), slog.Int("count", len(interests)))
	return interests, nil
}

// AddInterests merges interests into the stored list, keeping what is there.
func (s *AccountService) AddInterests(ctx context.Context, userID string, interests []string) ([]string, error) {
	interests = model.NormalizeInterests(interests)
	if len(interests) == 0 {
		return nil, apperror.ValidationFailed("interests", msgInterestsNeeded)
	}
	if err := s.interests.AddInterests(ctx, userID, interests); err != nil {
		return nil, fmt.Errorf("service/account: adding interests: %w", err)
	}
	return s.Interests(ctx, userID)
}
