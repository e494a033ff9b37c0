// Package client is the HTTP client for the MoodMingle backend API.
//
// Every call carries the ambient session cookie held in a cookie jar, runs under a
// uniform timeout (10s by default), and reports failures as *apperror.AppError:
//
//	network error, timeout, bad body   -> apperror.ErrTransport
//	HTTP 401                           -> apperror.ErrNotAuthenticated
//	other non-2xx, or success == false -> apperror.ErrRejected (backend message)
//
// When a CookieStore is supplied, the jar is seeded from it on construction and
// written back whenever the backend sets a cookie, so a session survives restarts.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/sakif/moodmingle/internal/apperror"
)

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

var errMalformed = errors.New("malformed response")

// CookieStore persists the session cookies between runs.
type CookieStore interface {
	LoadCookies(ctx context.Context) ([]*http.Cookie, error)
	SaveCookies(ctx context.Context, cookies []*http.Cookie) error
}

// Options configures a Client. Only BaseURL is required.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
	Cookies CookieStore
	// Transport overrides the HTTP transport; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Client talks to one backend.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	jar     http.CookieJar
	cookies CookieStore
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a Client and restores persisted cookies, if any.
func New(ctx context.Context, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("client: invalid base URL %q", opts.BaseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("client: creating cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL: base,
		http: &http.Client{
			Jar:       jar,
			Timeout:   timeout,
			Transport: opts.Transport,
		},
		jar:     jar,
		cookies: opts.Cookies,
		timeout: timeout,
		logger:  logger,
	}

	if c.cookies != nil {
		saved, err := c.cookies.LoadCookies(ctx)
		if err != nil {
			return nil, fmt.Errorf("client: restoring cookies: %w", err)
		}
		for _, ck := range saved {
			ck.Path = "/"
		}
		if len(saved) > 0 {
			jar.SetCookies(c.cookieURL(), saved)
		}
	}

	return c, nil
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// envelope is the part of every response body the client inspects generically.
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// do sends one request and decodes the JSON response into out (when non-nil).
// op names the endpoint in transport error messages.
func (c *Client) do(ctx context.Context, method, op string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return apperror.Transport(op, fmt.Errorf("encoding request: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(op), body)
	if err != nil {
		return apperror.Transport(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend call failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return apperror.Transport(op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend call",
		slog.String("method", method),
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if len(resp.Cookies()) > 0 {
		c.persistCookies(ctx)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperror.Transport(op, fmt.Errorf("reading response: %w", err))
	}

	var (
		env       envelope
		decodeErr error
	)
	if len(bytes.TrimSpace(data)) > 0 {
		decodeErr = json.Unmarshal(data, &env)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return apperror.NotAuthenticated(env.Error)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}
		return apperror.Rejected(msg)
	case decodeErr != nil:
		return apperror.Transport(op, fmt.Errorf("%w: %v", errMalformed, decodeErr))
	case env.Success != nil && !*env.Success:
		msg := env.Error
		if msg == "" {
			msg = "The request was not successful."
		}
		return apperror.Rejected(msg)
	}

	if out != nil {
		if len(bytes.TrimSpace(data)) == 0 {
			return apperror.Transport(op, fmt.Errorf("%w: empty body", errMalformed))
		}
		if err := json.Unmarshal(data, out); err != nil {
			return apperror.Transport(op, fmt.Errorf("%w: %v", errMalformed, err))
		}
	}
	return nil
}

func (c *Client) endpoint(op string) string {
	return c.baseURL.String() + "/" + strings.TrimLeft(op, "/")
}

// cookieURL is the URL cookies are scoped to: the backend root.
func (c *Client) cookieURL() *url.URL {
	u := *c.baseURL
	u.Path = "/"
	return &u
}

func (c *Client) persistCookies(ctx context.Context) {
	if c.cookies == nil {
		return
	}
	if err := c.cookies.SaveCookies(ctx, c.jar.Cookies(c.cookieURL())); err != nil {
		c.logger.Warn("failed to persist session cookies", slog.String("error", err.Error()))
	}
}

// ForgetSession drops every cookie from the jar and the cookie store.
func (c *Client) ForgetSession(ctx context.Context) {
	expired := make([]*http.Cookie, 0)
	for _, ck := range c.jar.Cookies(c.cookieURL()) {
		expired = append(expired, &http.Cookie{Name: ck.Name, Path: "/", MaxAge: -1})
	}
	if len(expired) > 0 {
		c.jar.SetCookies(c.cookieURL(), expired)
	}
	c.persistCookies(ctx)
}
