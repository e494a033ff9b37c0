package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/moodmingle/internal/apperror"
	"github.com/sakif/moodmingle/internal/model"
	"github.com/sakif/moodmingle/internal/weather"
)

type fakeRecommender struct {
	got  model.Conditions
	recs *model.Recommendations
	err  error
}

func (f *fakeRecommender) Name() string { return "fake" }

func (f *fakeRecommender) Recommend(ctx context.Context, cond model.Conditions) (*model.Recommendations, error) {
	f.got = cond
	return f.recs, f.err
}

func TestRecommend(t *testing.T) {
	r := &fakeRecommender{recs: &model.Recommendations{
		IndoorActivities: []model.Recommendation{{Name: "Board game cafe"}},
	}}
	svc := NewRecommendationService(r, newTestLogger())

	recs, err := svc.Recommend(context.Background(), model.Conditions{Interests: []string{"Gaming", "gaming"}})

	require.NoError(t, err)
	assert.Equal(t, model.Conditions{
		Interests:   []string{"Gaming"},
		Location:    "Unknown",
		Weather:     "Unknown",
		Temperature: "Unknown",
	}, r.got)
	assert.Len(t, recs.IndoorActivities, 1)
	assert.NotNil(t, recs.OutdoorActivities)
	assert.NotNil(t, recs.Considerations)
}

func TestRecommend_RequiresInterests(t *testing.T) {
	r := &fakeRecommender{}
	svc := NewRecommendationService(r, newTestLogger())

	_, err := svc.Recommend(context.Background(), model.Conditions{Interests: []string{" "}, Location: "Calgary"})

	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "Interests are required.", apperror.Message(err))
	assert.Empty(t, r.got.Location, "recommender not called")
}

func TestRecommend_FallsBack(t *testing.T) {
	svc := NewRecommendationService(&fakeRecommender{err: errors.New("quota exceeded")}, newTestLogger())

	recs, err := svc.Recommend(context.Background(), model.Conditions{Interests: []string{"Art"}})

	require.NoError(t, err)
	assert.Equal(t, model.FallbackRecommendations(), recs)
}

func TestWeatherLookup(t *testing.T) {
	report := &model.WeatherReport{Location: "Dhaka", Weather: model.Weather{Condition: "Sunny"}}
	svc := NewWeatherService(weather.Static{Report: report}, newTestLogger())

	got, err := svc.Lookup(context.Background(), model.Coordinates{Latitude: 23.8, Longitude: 90.4})

	require.NoError(t, err)
	assert.Equal(t, "Dhaka", got.Location)
	assert.NotNil(t, got.Weather.Alerts)
}

func TestWeatherLookup_Failures(t *testing.T) {
	svc := NewWeatherService(weather.Static{}, newTestLogger())
	ctx := context.Background()

	_, err := svc.Lookup(ctx, model.Coordinates{})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "Invalid coordinates", apperror.Message(err))

	_, err = svc.Lookup(ctx, model.Coordinates{Latitude: 51.05, Longitude: -114.07})
	assert.ErrorIs(t, err, apperror.ErrRejected)
	assert.Equal(t, "Weather data not available", apperror.Message(err))
}
