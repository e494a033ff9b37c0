package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/sakif/moodmingle/internal/model"
)

const (
	DefaultWeatherBaseURL = "https://api.weatherapi.com/v1"
	DefaultGeocodeBaseURL = "https://maps.googleapis.com/maps/api/geocode"
)

// Config configures the WeatherAPI provider. GoogleAPIKey is optional; without it
// every location resolves to model.UnknownLocation.
type Config struct {
	WeatherAPIKey  string
	GoogleAPIKey   string
	WeatherBaseURL string
	GeocodeBaseURL string
	Timeout        time.Duration
	HTTPClient     *http.Client
}

// WeatherAPI reads current conditions and alerts from weatherapi.com and names the
// place through Google's reverse geocoder.
type WeatherAPI struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

var _ Provider = (*WeatherAPI)(nil)

func NewWeatherAPI(cfg Config, logger *slog.Logger) (*WeatherAPI, error) {
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("weather: weather API key is required")
	}
	if cfg.WeatherBaseURL == "" {
		cfg.WeatherBaseURL = DefaultWeatherBaseURL
	}
	if cfg.GeocodeBaseURL == "" {
		cfg.GeocodeBaseURL = DefaultGeocodeBaseURL
	}
	cfg.WeatherBaseURL = strings.TrimRight(cfg.WeatherBaseURL, "/")
	cfg.GeocodeBaseURL = strings.TrimRight(cfg.GeocodeBaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &WeatherAPI{cfg: cfg, http: hc, logger: logger}, nil
}

// Lookup names the place and reads its weather. A geocoding failure only degrades
// the location to model.UnknownLocation; a weather failure fails the lookup.
func (p *WeatherAPI) Lookup(ctx context.Context, coords model.Coordinates) (*model.WeatherReport, error) {
	current, err := p.current(ctx, coords)
	if err != nil {
		return nil, err
	}

	location, err := p.placeName(ctx, coords)
	if err != nil {
		p.logger.Warn("reverse geocoding failed",
			slog.String("coords", coords.Query()),
			slog.String("error", err.Error()),
		)
		location = model.UnknownLocation
	}
	return &model.WeatherReport{Location: location, Weather: *current}, nil
}

type currentResponse struct {
	Current *struct {
		TempC     float64 `json:"temp_c"`
		WindKPH   float64 `json:"wind_kph"`
		Condition struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
	Alerts struct {
		Alert []struct {
			Headline string `json:"headline"`
			Desc     string `json:"desc"`
			Severity string `json:"severity"`
		} `json:"alert"`
	} `json:"alerts"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *WeatherAPI) current(ctx context.Context, coords model.Coordinates) (*model.Weather, error) {
	q := url.Values{}
	q.Set("key", p.cfg.WeatherAPIKey)
	q.Set("q", coords.Query())
	q.Set("alerts", "yes")

	var resp currentResponse
	if err := p.getJSON(ctx, p.cfg.WeatherBaseURL+"/current.json?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %s (code %d)", ErrUnavailable, resp.Error.Message, resp.Error.Code)
	}
	if resp.Current == nil {
		return nil, fmt.Errorf("%w: no current conditions", ErrUnavailable)
	}

	alerts := make([]model.WeatherAlert, 0, len(resp.Alerts.Alert))
	for _, a := range resp.Alerts.Alert {
		alerts = append(alerts, model.WeatherAlert{
			Headline:    a.Headline,
			Description: a.Desc,
			Severity:    a.Severity,
		})
	}
	return &model.Weather{
		Condition:   resp.Current.Condition.Text,
		Temperature: resp.Current.TempC,
		WindSpeed:   resp.Current.WindKPH,
		Alerts:      alerts,
	}, nil
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress  string `json:"formatted_address"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

// placeName prefers the city, then the province or state, then the full address.
func (p *WeatherAPI) placeName(ctx context.Context, coords model.Coordinates) (string, error) {
	if p.cfg.GoogleAPIKey == "" {
		return model.UnknownLocation, nil
	}
	q := url.Values{}
	q.Set("latlng", coords.Query())
	q.Set("key", p.cfg.GoogleAPIKey)

	var resp geocodeResponse
	if err := p.getJSON(ctx, p.cfg.GeocodeBaseURL+"/json?"+q.Encode(), &resp); err != nil {
		return "", err
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return model.UnknownLocation, nil
	}

	first := resp.Results[0]
	for _, kind := range []string{"locality", "administrative_area_level_1"} {
		for _, c := range first.AddressComponents {
			if slices.Contains(c.Types, kind) && c.LongName != "" {
				return c.LongName, nil
			}
		}
	}
	if first.FormattedAddress != "" {
		return first.FormattedAddress, nil
	}
	return model.UnknownLocation, nil
}

func (p *WeatherAPI) getJSON(ctx context.Context, endpoint string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("weather: building request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("weather: %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	// weatherapi.com reports bad queries with a 4xx and an error body, so the body is
	// decoded regardless of status.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("weather: decoding %s response (status %d): %w", req.URL.Host, resp.StatusCode, err)
	}
	return nil
}
