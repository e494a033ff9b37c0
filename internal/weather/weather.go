// Package weather resolves a coordinate pair into a place name and the current
// conditions there.
package weather

import (
	"context"
	"errors"

	"github.com/sakif/moodmingle/internal/model"
)

// ErrUnavailable means the upstream service had no data for the request.
var ErrUnavailable = errors.New("weather: data not available")

// Provider looks up the weather at coords. Callers validate coords first.
type Provider interface {
	Lookup(ctx context.Context, coords model.Coordinates) (*model.WeatherReport, error)
}

// Static always answers with the same report. A nil Report answers ErrUnavailable,
// which is what the server runs with when no weather API key is configured.
type Static struct {
	Report *model.WeatherReport
}

var _ Provider = Static{}

func (s Static) Lookup(ctx context.Context, coords model.Coordinates) (*model.WeatherReport, error) {
	if s.Report == nil {
		return nil, ErrUnavailable
	}
	r := *s.Report
	r.Weather.Alerts = append([]model.WeatherAlert{}, s.Report.Weather.Alerts...)
	return &r, nil
}
