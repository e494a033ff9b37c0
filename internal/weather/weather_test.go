package weather

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/moodmingle/internal/model"
)

var dhaka = model.Coordinates{Latitude: 23.81, Longitude: 90.41}

const currentJSON = `{
  "current": {"temp_c": 31.5, "wind_kph": 12.2, "condition": {"text": "Partly cloudy"}},
  "alerts": {"alert": [{"headline": "Heat advisory", "desc": "Stay hydrated", "severity": "Moderate"}]}
}`

type upstream struct {
	weatherStatus int
	weatherBody   string
	geocodeBody   string
}

func newTestProvider(t *testing.T, up upstream, googleKey string) *WeatherAPI {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/current.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wkey", r.URL.Query().Get("key"))
		assert.Equal(t, "23.81,90.41", r.URL.Query().Get("q"))
		assert.Equal(t, "yes", r.URL.Query().Get("alerts"))
		if up.weatherStatus != 0 {
			w.WriteHeader(up.weatherStatus)
		}
		_, _ = w.Write([]byte(up.weatherBody))
	})
	mux.HandleFunc("/geocode/json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "23.81,90.41", r.URL.Query().Get("latlng"))
		_, _ = w.Write([]byte(up.geocodeBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	p, err := NewWeatherAPI(Config{
		WeatherAPIKey:  "wkey",
		GoogleAPIKey:   googleKey,
		WeatherBaseURL: srv.URL + "/v1",
		GeocodeBaseURL: srv.URL + "/geocode",
	}, logger)
	require.NoError(t, err)
	return p
}

func TestLookup(t *testing.T) {
	p := newTestProvider(t, upstream{
		weatherBody: currentJSON,
		geocodeBody: `{"status": "OK", "results": [{"formatted_address": "Dhaka, Bangladesh", "address_components": [
			{"long_name": "Dhaka Division", "types": ["administrative_area_level_1", "political"]},
			{"long_name": "Dhaka", "types": ["locality", "political"]}
		]}]}`,
	}, "gkey")

	report, err := p.Lookup(context.Background(), dhaka)

	require.NoError(t, err)
	assert.Equal(t, "Dhaka", report.Location)
	assert.Equal(t, "Partly cloudy", report.Weather.Condition)
	assert.Equal(t, 31.5, report.Weather.Temperature)
	assert.Equal(t, 12.2, report.Weather.WindSpeed)
	assert.Equal(t, []model.WeatherAlert{{Headline: "Heat advisory", Description: "Stay hydrated", Severity: "Moderate"}}, report.Weather.Alerts)
}

func TestLookup_PlaceNameFallbacks(t *testing.T) {
	tests := []struct {
		name      string
		googleKey string
		geocode   string
		want      string
	}{
		{
			name:      "admin area without locality",
			googleKey: "gkey",
			geocode:   `{"status": "OK", "results": [{"formatted_address": "x", "address_components": [{"long_name": "Sylhet Division", "types": ["administrative_area_level_1"]}]}]}`,
			want:      "Sylhet Division",
		},
		{
			name:      "formatted address",
			googleKey: "gkey",
			geocode:   `{"status": "OK", "results": [{"formatted_address": "Somewhere at sea", "address_components": []}]}`,
			want:      "Somewhere at sea",
		},
		{
			name:      "zero results",
			googleKey: "gkey",
			geocode:   `{"status": "ZERO_RESULTS", "results": []}`,
			want:      model.UnknownLocation,
		},
		{
			name:      "garbage body",
			googleKey: "gkey",
			geocode:   `<html>`,
			want:      model.UnknownLocation,
		},
		{
			name: "no google key",
			want: model.UnknownLocation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, upstream{weatherBody: currentJSON, geocodeBody: tt.geocode}, tt.googleKey)

			report, err := p.Lookup(context.Background(), dhaka)

			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Location)
		})
	}
}

func TestLookup_WeatherError(t *testing.T) {
	p := newTestProvider(t, upstream{
		weatherStatus: http.StatusBadRequest,
		weatherBody:   `{"error": {"code": 1006, "message": "No matching location found."}}`,
	}, "")

	_, err := p.Lookup(context.Background(), dhaka)

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "No matching location found.")
}

func TestNewWeatherAPI_RequiresKey(t *testing.T) {
	_, err := NewWeatherAPI(Config{}, slog.Default())
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	_, err := Static{}.Lookup(context.Background(), dhaka)
	assert.ErrorIs(t, err, ErrUnavailable)

	fixed := &model.WeatherReport{Location: "Dhaka", Weather: model.Weather{Condition: "Sunny", Alerts: []model.WeatherAlert{{Headline: "h"}}}}
	got, err := Static{Report: fixed}.Lookup(context.Background(), dhaka)
	require.NoError(t, err)
	got.Weather.Alerts[0].Headline = "changed"
	assert.Equal(t, "h", fixed.Weather.Alerts[0].Headline)
}
