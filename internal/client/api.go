package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sakif/moodmingle/internal/apperror"
	"github.com/sakif/moodmingle/internal/model"
)

// Endpoint paths, relative to the base URL.
const (
	pathCurrentUser     = "current-user"
	pathLogin           = "login"
	pathSignup          = "signup"
	pathLogout          = "logout"
	pathGetInterests    = "get-interests"
	pathUpdateProfile   = "update-profile"
	pathUpdateInterests = "update-interests"
	pathSaveInterests   = "save-interests"
	pathSavedActivities = "saved-activities"
	pathSaveActivity    = "save-activity"
	pathRemoveActivity  = "remove-activity"
	pathRecommendations = "get-recommendations"
	pathWeather         = "get_weather"
)

type userResponse struct {
	User *model.Identity `json:"user"`
}

// CurrentUser asks the backend who the session cookie belongs to. Without a valid
// session the backend answers with a guest placeholder (IsGuest set).
func (c *Client) CurrentUser(ctx context.Context) (*model.Identity, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodGet, pathCurrentUser, nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return model.GuestIdentity(), nil
	}
	return resp.User.Clone(), nil
}

// Login posts credentials and returns the signed-in identity. On success the backend
// sets the session cookie.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (*model.Identity, error) {
	return c.authenticate(ctx, pathLogin, creds)
}

// Signup registers a new account and signs it in.
func (c *Client) Signup(ctx context.Context, reg model.Registration) (*model.Identity, error) {
	return c.authenticate(ctx, pathSignup, reg)
}

func (c *Client) authenticate(ctx context.Context, op string, body any) (*model.Identity, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodPost, op, body, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil || resp.User.ID == "" {
		return nil, apperror.Transport(op, fmt.Errorf("%w: no user in response", errMalformed))
	}
	return resp.User.Clone(), nil
}

// Logout ends the backend session and drops the local cookie regardless of the
// outcome of the call.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, pathLogout, struct{}{}, nil)
	c.ForgetSession(ctx)
	return err
}

type interestsResponse struct {
	Interests []string `json:"interests"`
}

// Interests returns the signed-in user's authoritative interest list.
func (c *Client) Interests(ctx context.Context) ([]string, error) {
	var resp interestsResponse
	if err := c.do(ctx, http.MethodGet, pathGetInterests, nil, &resp); err != nil {
		return nil, err
	}
	return model.NormalizeInterests(resp.Interests), nil
}

type interestsRequest struct {
	Interests []string `json:"interests"`
}

// UpdateInterests replaces the signed-in user's interests.
func (c *Client) UpdateInterests(ctx context.Context, interests []string) error {
	return c.do(ctx, http.MethodPut, pathUpdateInterests,
		interestsRequest{Interests: model.NormalizeInterests(interests)}, nil)
}

// SaveInterests adds interests to the signed-in user's list, keeping existing ones.
func (c *Client) SaveInterests(ctx context.Context, interests []string) error {
	return c.do(ctx, http.MethodPost, pathSaveInterests,
		interestsRequest{Interests: model.NormalizeInterests(interests)}, nil)
}

type profileRequest struct {
	Username string `json:"username"`
	model.ProfileUpdate
}

// UpdateProfile sends a partial profile update for username.
func (c *Client) UpdateProfile(ctx context.Context, username string, update model.ProfileUpdate) error {
	return c.do(ctx, http.MethodPut, pathUpdateProfile,
		profileRequest{Username: username, ProfileUpdate: update}, nil)
}

type activitiesResponse struct {
	Activities json.RawMessage `json:"activities"`
}

// SavedActivities returns the signed-in user's bookmarks. A payload whose activities
// field is not an array is reported as a transport failure; null means empty.
func (c *Client) SavedActivities(ctx context.Context) ([]model.SavedActivity, error) {
	var resp activitiesResponse
	if err := c.do(ctx, http.MethodGet, pathSavedActivities, nil, &resp); err != nil {
		return nil, err
	}

	raw := bytes.TrimSpace(resp.Activities)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []model.SavedActivity{}, nil
	}
	if raw[0] != '[' {
		return nil, apperror.Transport(pathSavedActivities, fmt.Errorf("%w: activities is not an array", errMalformed))
	}

	var activities []model.SavedActivity
	if err := json.Unmarshal(raw, &activities); err != nil {
		return nil, apperror.Transport(pathSavedActivities, fmt.Errorf("%w: %v", errMalformed, err))
	}
	if activities == nil {
		activities = []model.SavedActivity{}
	}
	return activities, nil
}

// SaveActivity bookmarks a for the signed-in user.
func (c *Client) SaveActivity(ctx context.Context, a model.SavedActivity) error {
	return c.do(ctx, http.MethodPost, pathSaveActivity, a, nil)
}

type removeRequest struct {
	Title string `json:"title"`
}

// RemoveActivity deletes the bookmark with the given title.
func (c *Client) RemoveActivity(ctx context.Context, title string) error {
	return c.do(ctx, http.MethodPost, pathRemoveActivity, removeRequest{Title: title}, nil)
}

type recommendationsResponse struct {
	Recommendations *model.Recommendations `json:"recommendations"`
}

// Recommendations asks the backend for activities matching cond.
func (c *Client) Recommendations(ctx context.Context, cond model.Conditions) (*model.Recommendations, error) {
	var resp recommendationsResponse
	if err := c.do(ctx, http.MethodPost, pathRecommendations, cond, &resp); err != nil {
		return nil, err
	}
	if resp.Recommendations == nil {
		return model.FallbackRecommendations(), nil
	}
	resp.Recommendations.Normalize()
	return resp.Recommendations, nil
}

// Weather looks up the place name and current weather at coords.
func (c *Client) Weather(ctx context.Context, coords model.Coordinates) (*model.WeatherReport, error) {
	var report model.WeatherReport
	if err := c.do(ctx, http.MethodPost, pathWeather, coords, &report); err != nil {
		return nil, err
	}
	if report.Location == "" {
		report.Location = model.UnknownLocation
	}
	return &report, nil
}
