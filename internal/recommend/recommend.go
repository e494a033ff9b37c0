// Package recommend turns a set of interests plus the local weather into activity
// suggestions.
//
// Two implementations exist: Gemini, which asks Google's generative language API for
// structured JSON, and Catalog, a deterministic offline recommender the server falls
// back to when no API key is configured.
package recommend

import (
	"context"
	"errors"

	"github.com/sakif/moodmingle/internal/model"
)

// ErrMalformedResponse means the model answered but the text was not the JSON
// document the prompt asked for.
var ErrMalformedResponse = errors.New("recommend: malformed model response")

// Recommender generates recommendations for cond. Implementations may assume the
// interests are non-empty and the context fields carry defaults.
type Recommender interface {
	Recommend(ctx context.Context, cond model.Conditions) (*model.Recommendations, error)
	Name() string
}
