package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/sakif/moodmingle/internal/model"
)

const (
	DefaultGeminiModel   = "gemini-2.0-flash"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiTimeout = 30 * time.Second
)

// GeminiConfig configures the Gemini recommender.
type GeminiConfig struct {
	APIKey  string
	Model   string        // defaults to DefaultGeminiModel
	BaseURL string        // defaults to DefaultGeminiBaseURL
	Timeout time.Duration // per attempt
	// Attempts bounds retries of rate-limited or 5xx answers. Zero means 2.
	Attempts   uint
	HTTPClient *http.Client
}

type Gemini struct {
	cfg    GeminiConfig
	http   *http.Client
	logger *slog.Logger
}

var _ Recommender = (*Gemini)(nil)

func NewGemini(cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("recommend: gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGeminiTimeout
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 2
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Gemini{cfg: cfg, http: hc, logger: logger}, nil
}

func (g *Gemini) Name() string { return "gemini:" + g.cfg.Model }

// Recommend builds the prompt for cond, asks the model and decodes its answer.
func (g *Gemini) Recommend(ctx context.Context, cond model.Conditions) (*model.Recommendations, error) {
	text, err := retry.DoWithData(
		func() (string, error) { return g.generate(ctx, BuildPrompt(cond)) },
		retry.Context(ctx),
		retry.Attempts(g.cfg.Attempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
	)
	if err != nil {
		return nil, err
	}
	return ParseRecommendations(text)
}

// statusError is a non-2xx answer from the API.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("recommend: gemini returned status %d: %s", e.code, e.body)
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return false
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}})
	if err != nil {
		return "", fmt.Errorf("recommend: encoding request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.cfg.BaseURL, url.PathEscape(g.cfg.Model), url.QueryEscape(g.cfg.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("recommend: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("recommend: calling gemini: %w", err)
	}
	defer resp.Body.Close()

	g.logger.Debug("gemini answered",
		slog.String("model", g.cfg.Model),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// BuildPrompt renders the instruction sent to the model.
func BuildPrompt(cond model.Conditions) string {
	const item = `{"name": "Activity Name", "genre": "One word Genre", ` +
		`"location": "Relative Location (Downtown, Stanley Park, At Home, etc.)", ` +
		`"weather": "Weather this activity should be done in (Sunny, Rainy, Any, etc.)", ` +
		`"description": "Brief Description"}`

	var b strings.Builder
	fmt.Fprintf(&b, "Suggest engaging activities for someone who enjoys %s. ", strings.Join(cond.Interests, ", "))
	fmt.Fprintf(&b, "They are located in %s and the current weather is %s, and temperature is %s Degrees Celsius. ",
		cond.Location, cond.Weather, cond.Temperature)
	b.WriteString("Include a mix of indoor and outdoor options, and highlight any local events. ")
	b.WriteString("For the local events make sure to provide dates. ")
	b.WriteString("Respond strictly in JSON format with the following structure:\n\n{\n")
	for _, key := range []string{"outdoor_activities", "indoor_activities", "local_events"} {
		fmt.Fprintf(&b, "  %q: [\n    %s\n  ],\n", key, item)
	}
	b.WriteString("  \"considerations\": [\n    \"Important tips or things to keep in mind\"\n  ]\n}\n\n")
	b.WriteString("Ensure the JSON response is properly formatted and contains only the requested data without any additional text.")
	return b.String()
}

// ParseRecommendations decodes model output, tolerating a surrounding markdown code
// fence.
func ParseRecommendations(text string) (*model.Recommendations, error) {
	var recs model.Recommendations
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	recs.Normalize()
	return &recs, nil
}

func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string ("json") up to the end of the opening line.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
