package model

// FallbackConsideration is the single consideration returned when no recommender
// could produce anything.
const FallbackConsideration = "Could not generate recommendations at this time."

// Conditions is the input of a recommendation request.
type Conditions struct {
	Interests   []string `json:"interests"`
	Location    string   `json:"location"`
	Weather     string   `json:"weather"`
	Temperature string   `json:"temperature"`
}

// WithDefaults fills blank context fields with "Unknown".
func (c Conditions) WithDefaults() Conditions {
	if c.Location == "" {
		c.Location = "Unknown"
	}
	if c.Weather == "" {
		c.Weather = "Unknown"
	}
	if c.Temperature == "" {
		c.Temperature = "Unknown"
	}
	return c
}

// Recommendation is one suggested activity.
type Recommendation struct {
	Name        string `json:"name"`
	Genre       string `json:"genre"`
	Location    string `json:"location"`
	Weather     string `json:"weather"`
	Description string `json:"description"`
}

// AsSaved converts r into the bookmark shape used by the saved-items set.
func (r Recommendation) AsSaved() SavedActivity {
	return SavedActivity{
		Title:       r.Name,
		Category:    r.Genre,
		Location:    r.Location,
		Weather:     r.Weather,
		Description: r.Description,
	}
}

type Recommendations struct {
	OutdoorActivities []Recommendation `json:"outdoor_activities"`
	IndoorActivities  []Recommendation `json:"indoor_activities"`
	LocalEvents       []Recommendation `json:"local_events"`
	Considerations    []string         `json:"considerations"`
}

// FallbackRecommendations is the empty-but-valid result served when generation fails.
func FallbackRecommendations() *Recommendations {
	return &Recommendations{
		OutdoorActivities: []Recommendation{},
		IndoorActivities:  []Recommendation{},
		LocalEvents:       []Recommendation{},
		Considerations:    []string{FallbackConsideration},
	}
}

// Normalize replaces nil lists with empty ones so the JSON shape is stable.
func (r *Recommendations) Normalize() {
	if r.OutdoorActivities == nil {
		r.OutdoorActivities = []Recommendation{}
	}
	if r.IndoorActivities == nil {
		r.IndoorActivities = []Recommendation{}
	}
	if r.LocalEvents == nil {
		r.LocalEvents = []Recommendation{}
	}
	if r.Considerations == nil {
		r.Considerations = []string{}
	}
}

// Total counts activities and events, ignoring considerations.
func (r *Recommendations) Total() int {
	return len(r.OutdoorActivities) + len(r.IndoorActivities) + len(r.LocalEvents)
}
