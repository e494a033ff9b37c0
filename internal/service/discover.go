package service

import (
	"context"
	"log/slog"

	"github.com/sakif/moodmingle/internal/apperror"
	"github.com/sakif/moodmingle/internal/model"
	"github.com/sakif/moodmingle/internal/observability"
	"github.com/sakif/moodmingle/internal/recommend"
	"github.com/sakif/moodmingle/internal/weather"
)

// RecommendationService validates recommendation requests and shields callers from
// recommender failures: anything that goes wrong past validation is answered with
// model.FallbackRecommendations.
type RecommendationService struct {
	recommender recommend.Recommender
	logger      *slog.Logger
}

func NewRecommendationService(r recommend.Recommender, logger *slog.Logger) *RecommendationService {
	return &RecommendationService{recommender: r, logger: logger}
}

func (s *RecommendationService) Recommend(ctx context.Context, cond model.Conditions) (*model.Recommendations, error) {
	cond.Interests = model.NormalizeInterests(cond.Interests)
	if len(cond.Interests) == 0 {
		return nil, apperror.ValidationFailed("interests", msgInterestsNeeded)
	}
	cond = cond.WithDefaults()

	s.logger.Info("generating recommendations",
		slog.String("recommender", s.recommender.Name()),
		slog.String("location", cond.Location),
		slog.String("weather", cond.Weather),
		slog.String("temperature", cond.Temperature),
		slog.Int("interests", len(cond.Interests)),
	)

	recs, err := s.recommender.Recommend(ctx, cond)
	if err != nil {
		s.logger.Error("recommender failed, serving fallback",
			slog.String("recommender", s.recommender.Name()),
			slog.String("error", err.Error()),
		)
		observability.RecordRecommendation(s.recommender.Name(), true)
		return model.FallbackRecommendations(), nil
	}
	recs.Normalize()
	observability.RecordRecommendation(s.recommender.Name(), false)
	return recs, nil
}

// WeatherService validates coordinates and hides upstream failures behind one
// message.
type WeatherService struct {
	provider weather.Provider
	logger   *slog.Logger
}

func NewWeatherService(p weather.Provider, logger *slog.Logger) *WeatherService {
	return &WeatherService{provider: p, logger: logger}
}

func (s *WeatherService) Lookup(ctx context.Context, coords model.Coordinates) (*model.WeatherReport, error) {
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	report, err := s.provider.Lookup(ctx, coords)
	if err != nil {
		s.logger.Warn("weather lookup failed",
			slog.String("coords", coords.Query()),
			slog.String("error", err.Error()),
		)
		observability.RecordWeatherLookup(false)
		return nil, apperror.Rejected("Weather data not available")
	}
	if report.Weather.Alerts == nil {
		report.Weather.Alerts = []model.WeatherAlert{}
	}
	observability.RecordWeatherLookup(true)
	return report, nil
}
