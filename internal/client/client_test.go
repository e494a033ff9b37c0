package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/moodmingle/internal/apperror"
	"github.com/sakif/moodmingle/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

type memCookieStore struct {
	mu      sync.Mutex
	cookies []*http.Cookie
	saves   int
}

func (m *memCookieStore) LoadCookies(ctx context.Context) ([]*http.Cookie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Cookie(nil), m.cookies...), nil
}

func (m *memCookieStore) SaveCookies(ctx context.Context, cookies []*http.Cookie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cookies = append([]*http.Cookie(nil), cookies...)
	m.saves++
	return nil
}

func writeBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, h http.Handler, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts.BaseURL = srv.URL
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	c, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// =========================================================================
// ERROR MAPPING
// =========================================================================

func TestDo_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
		wantMsg string
	}{
		{
			name: "401 maps to NotAuthenticated",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeBody(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "User not logged in"})
			},
			want:    apperror.ErrNotAuthenticated,
			wantMsg: "User not logged in",
		},
		{
			name: "structured failure maps to Rejected",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeBody(w, http.StatusOK, map[string]any{"success": false, "error": "Invalid email or password"})
			},
			want:    apperror.ErrRejected,
			wantMsg: "Invalid email or password",
		},
		{
			name: "non-2xx without message gets a fallback",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			want:    apperror.ErrRejected,
			wantMsg: "request failed with status 502",
		},
		{
			name: "garbage body maps to Transport",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>oops</html>"))
			},
			want: apperror.ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler, Options{})

			_, err := c.Interests(context.Background())

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, apperror.Message(err))
			}
		})
	}
}

func TestDo_TimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), Options{Timeout: 50 * time.Millisecond})
	defer close(release)

	_, err := c.CurrentUser(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrTransport)
}

func TestDo_UnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(context.Background(), Options{BaseURL: url})
	require.NoError(t, err)

	err = c.SaveActivity(context.Background(), model.SavedActivity{Title: "x"})
	assert.ErrorIs(t, err, apperror.ErrTransport)
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := New(context.Background(), Options{BaseURL: "not a url"})
	assert.Error(t, err)
}

// =========================================================================
// ENDPOINTS
// =========================================================================

func TestCurrentUser_GuestWhenNoUser(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/current-user", r.URL.Path)
		writeBody(w, http.StatusOK, map[string]any{})
	}), Options{})

	id, err := c.CurrentUser(context.Background())

	require.NoError(t, err)
	assert.True(t, id.IsGuest)
}

func TestLogin_SendsIdentifierAsUsername(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@x.com", body["username"])
		assert.Equal(t, "pw", body["password"])

		writeBody(w, http.StatusOK, map[string]any{
			"success": true,
			"user":    map[string]any{"id": "u1", "username": "alice"},
		})
	}), Options{})

	id, err := c.Login(context.Background(), model.Credentials{Identifier: "a@x.com", Password: "pw"})

	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, []string{}, id.Interests, "missing interests default to empty")
}

func TestLogin_SuccessWithoutUserIsMalformed(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, map[string]any{"success": true})
	}), Options{})

	_, err := c.Login(context.Background(), model.Credentials{Identifier: "alice", Password: "pw"})

	assert.ErrorIs(t, err, apperror.ErrTransport)
}

func TestSavedActivities_ValidatesArray(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantLen int
		wantErr bool
	}{
		{"array", `{"success":true,"activities":[{"title":"A"},{"title":"B"}]}`, 2, false},
		{"null", `{"success":true,"activities":null}`, 0, false},
		{"missing", `{"success":true}`, 0, false},
		{"object", `{"success":true,"activities":{"title":"A"}}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.payload))
			}), Options{})

			got, err := c.SavedActivities(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrTransport)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestUpdateProfile_FlattensFields(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeBody(w, http.StatusOK, map[string]any{"success": true})
	}), Options{})

	name := "Alice"
	require.NoError(t, c.UpdateProfile(context.Background(), "alice", model.ProfileUpdate{DisplayName: &name}))

	assert.Equal(t, map[string]any{"username": "alice", "displayName": "Alice"}, got)
}

func TestRecommendations_RejectedWithoutInterests(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusBadRequest, map[string]any{"error": "Interests are required."})
	}), Options{})

	_, err := c.Recommendations(context.Background(), model.Conditions{})

	assert.ErrorIs(t, err, apperror.ErrRejected)
	assert.Equal(t, "Interests are required.", apperror.Message(err))
}

func TestRecommendations_NormalizesLists(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"recommendations":{"outdoor_activities":[{"name":"Hike"}]}}`))
	}), Options{})

	got, err := c.Recommendations(context.Background(), model.Conditions{Interests: []string{"Outdoors"}})

	require.NoError(t, err)
	assert.Len(t, got.OutdoorActivities, 1)
	assert.NotNil(t, got.LocalEvents)
}

// =========================================================================
// COOKIES
// =========================================================================

func TestCookies_PersistedAndRestored(t *testing.T) {
	store := &memCookieStore{}
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "tok-1", Path: "/", HttpOnly: true})
		writeBody(w, http.StatusOK, map[string]any{"success": true, "user": map[string]any{"id": "u1"}})
	})
	mux.HandleFunc("/current-user", func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("session")
		if err != nil || ck.Value != "tok-1" {
			writeBody(w, http.StatusOK, map[string]any{"user": model.GuestIdentity()})
			return
		}
		writeBody(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u1", "username": "alice"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	first, err := New(context.Background(), Options{BaseURL: srv.URL, Cookies: store})
	require.NoError(t, err)
	_, err = first.Login(context.Background(), model.Credentials{Identifier: "alice", Password: "pw"})
	require.NoError(t, err)
	require.Len(t, store.cookies, 1)

	// A fresh client, as after a restart, picks the session up from the store.
	second, err := New(context.Background(), Options{BaseURL: srv.URL, Cookies: store})
	require.NoError(t, err)
	id, err := second.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
}

func TestLogout_ForgetsSessionEvenOnFailure(t *testing.T) {
	store := &memCookieStore{cookies: []*http.Cookie{{Name: "session", Value: "tok-1"}}}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}), Options{Cookies: store})

	err := c.Logout(context.Background())

	assert.True(t, errors.Is(err, apperror.ErrRejected))
	assert.Empty(t, store.cookies)
}
