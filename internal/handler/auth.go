package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/moodmingle/internal/apperror"
	"github.com/sakif/moodmingle/internal/auth"
	"github.com/sakif/moodmingle/internal/model"
	"github.com/sakif/moodmingle/internal/service"
)

// AuthHandler serves the session endpoints: who am I, login, signup, logout and
// profile edits.
type AuthHandler struct {
	accounts      *service.AccountService
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secureCookies marks the session cookie
// Secure and should be set whenever the server sits behind HTTPS.
func NewAuthHandler(accounts *service.AccountService, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, secureCookies: secureCookies, logger: logger}
}

// HandleCurrentUser answers who the session cookie belongs to, or the guest
// placeholder when there is no valid session.
//
// HTTP: GET /current-user (OptionalAuth)
func (h *AuthHandler) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeOK(w, http.StatusOK, map[string]any{"user": model.GuestIdentity()})
		return
	}

	user, err := h.accounts.Current(r.Context(), id)
	if errors.Is(err, apperror.ErrNotAuthenticated) {
		// The token outlived its account.
		auth.ClearSessionCookie(w, h.secureCookies)
		writeOK(w, http.StatusOK, map[string]any{"user": model.GuestIdentity()})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"user": user})
}

// HandleLogin signs in by username or email and sets the session cookie.
//
// HTTP: POST /login {"username", "password"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Authenticate(r.Context(), creds)
	if errors.Is(err, apperror.ErrRejected) {
		h.logger.Info("login rejected", slog.String("login", creds.Identifier))
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: apperror.Message(err), Code: "rejected"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	h.startSession(w, res, http.StatusOK)
}

// HandleSignup registers and signs in.
//
// HTTP: POST /signup {"username", "email", "password", "displayName"}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if err := decodeJSON(w, r, &reg); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), reg)
	if err != nil {
		writeError(w, err)
		return
	}
	h.startSession(w, res, http.StatusCreated)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, res *service.AuthResult, status int) {
	auth.SetSessionCookie(w, res.Token, h.accounts.SessionTTL(), h.secureCookies)
	writeOK(w, status, map[string]any{"user": res.Identity})
}

// HandleLogout drops the session cookie. Tokens are stateless, so there is nothing
// to revoke server-side and the call succeeds with or without a session.
//
// HTTP: POST /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secureCookies)
	writeOK(w, http.StatusOK, nil)
}

type profileRequest struct {
	Username string `json:"username"`
	model.ProfileUpdate
}

// HandleUpdateProfile applies a partial profile change.
//
// HTTP: PUT /update-profile {"username", "displayName"?, "location"?} (RequireAuth)
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), id, req.Username, req.ProfileUpdate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"user": user})
}

type interestsRequest struct {
	Interests []string `json:"interests"`
}

// HandleGetInterests returns the signed-in user's interests.
//
// HTTP: GET /get-interests (RequireAuth)
func (h *AuthHandler) HandleGetInterests(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	interests, err := h.accounts.Interests(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"interests": interests})
}

// HandleUpdateInterests replaces the interest list.
//
// HTTP: PUT /update-interests {"interests": [...]} (RequireAuth)
func (h *AuthHandler) HandleUpdateInterests(w http.ResponseWriter, r *http.Request) {
	h.changeInterests(w, r, h.accounts.ReplaceInterests)
}

// HandleSaveInterests adds to the interest list.
//
// HTTP: POST /save-interests {"interests": [...]} (RequireAuth)
func (h *AuthHandler) HandleSaveInterests(w http.ResponseWriter, r *http.Request) {
	h.changeInterests(w, r, h.accounts.AddInterests)
}

func (h *AuthHandler) changeInterests(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, userID string, interests []string) ([]string, error),
) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req interestsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	interests, err := apply(r.Context(), id, req.Interests)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"interests": interests})
}
