package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/moodmingle/internal/model"
	"github.com/sakif/moodmingle/internal/service"
)

// DiscoverHandler serves recommendations and weather. Neither needs a session.
type DiscoverHandler struct {
	recommendations *service.RecommendationService
	weather         *service.WeatherService
	logger          *slog.Logger
}

func NewDiscoverHandler(recs *service.RecommendationService, weather *service.WeatherService, logger *slog.Logger) *DiscoverHandler {
	return &DiscoverHandler{recommendations: recs, weather: weather, logger: logger}
}

// HandleRecommendations generates activity ideas.
//
// HTTP: POST /get-recommendations {"interests", "location"?, "weather"?, "temperature"?}
//
// Past validation this always answers 200: when generation fails the body carries
// the fallback recommendations.
func (h *DiscoverHandler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	var cond model.Conditions
	if err := decodeJSON(w, r, &cond); err != nil {
		writeError(w, err)
		return
	}
	recs, err := h.recommendations.Recommend(r.Context(), cond)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"recommendations": recs})
}

// HandleWeather reverse-geocodes the coordinates and reports the weather there.
//
// HTTP: POST /get_weather {"latitude", "longitude"}
func (h *DiscoverHandler) HandleWeather(w http.ResponseWriter, r *http.Request) {
	var coords model.Coordinates
	if err := decodeJSON(w, r, &coords); err != nil {
		writeError(w, err)
		return
	}
	report, err := h.weather.Lookup(r.Context(), coords)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"location": report.Location,
		"weather":  report.Weather,
	})
}
