package model

import (
	"strconv"

	"github.com/sakif/moodmingle/internal/apperror"
)

// UnknownLocation is reported when reverse geocoding finds nothing.
const UnknownLocation = "Unknown Location"

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate rejects out-of-range values and the (0, 0) pair, which the frontend sends
// when geolocation is unavailable.
func (c Coordinates) Validate() error {
	if c.Latitude == 0 && c.Longitude == 0 {
		return apperror.ValidationFailed("coordinates", "Invalid coordinates")
	}
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return apperror.ValidationFailed("coordinates", "Invalid coordinates")
	}
	return nil
}

// Query renders the pair as "lat,lon" for upstream weather and geocoding APIs.
func (c Coordinates) Query() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

type WeatherAlert struct {
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

type Weather struct {
	Condition   string         `json:"condition"`
	Temperature float64        `json:"temperature"`
	WindSpeed   float64        `json:"wind_speed"`
	Alerts      []WeatherAlert `json:"alerts"`
}

// WeatherReport is the response of a weather lookup.
type WeatherReport struct {
	Location string  `json:"location"`
	Weather  Weather `json:"weather"`
}

// Conditions converts the report into the context half of a recommendation request.
func (w *WeatherReport) Conditions() Conditions {
	return Conditions{
		Location:    w.Location,
		Weather:     w.Weather.Condition,
		Temperature: strconv.FormatFloat(w.Weather.Temperature, 'f', -1, 64),
	}
}
