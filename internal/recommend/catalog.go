package recommend

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sakif/moodmingle/internal/model"
)

type theme struct {
	genre   string
	outdoor model.Recommendation
	indoor  model.Recommendation
}

// catalogThemes covers the stock interests. Keys are folded interest names.
var catalogThemes = map[string]theme{
	model.FoldInterest("Horror"): {
		genre:   "Horror",
		outdoor: model.Recommendation{Name: "Haunted history walk", Location: "Old Town", Weather: "Clear", Description: "Follow a self-guided route past the city's most storied buildings after dark."},
		indoor:  model.Recommendation{Name: "Horror movie marathon", Location: "At Home", Weather: "Any", Description: "Pick three classics from different decades and watch them back to back."},
	},
	model.FoldInterest("Outdoors"): {
		genre:   "Nature",
		outdoor: model.Recommendation{Name: "Trail hike", Location: "Nearest Park", Weather: "Sunny", Description: "Take a marked trail and pack water and a snack."},
		indoor:  model.Recommendation{Name: "Indoor climbing", Location: "Climbing Gym", Weather: "Any", Description: "Try a bouldering session with rental shoes."},
	},
	model.FoldInterest("Arts & Crafts"): {
		genre:   "Crafts",
		outdoor: model.Recommendation{Name: "Sketching in the park", Location: "Nearest Park", Weather: "Clear", Description: "Bring a sketchbook and draw the people and trees around you."},
		indoor:  model.Recommendation{Name: "Pottery workshop", Location: "Community Centre", Weather: "Any", Description: "Book a drop-in wheel-throwing class."},
	},
	model.FoldInterest("Events"): {
		genre:   "Social",
		outdoor: model.Recommendation{Name: "Farmers market visit", Location: "Downtown", Weather: "Clear", Description: "Browse local stalls and try something new."},
		indoor:  model.Recommendation{Name: "Trivia night", Location: "Local Pub", Weather: "Any", Description: "Join a team or bring friends to a weekly quiz."},
	},
	model.FoldInterest("Sports"): {
		genre:   "Sports",
		outdoor: model.Recommendation{Name: "Pickup basketball", Location: "Public Courts", Weather: "Sunny", Description: "Show up at the courts and join the next game."},
		indoor:  model.Recommendation{Name: "Swimming laps", Location: "Recreation Centre", Weather: "Any", Description: "Swim a relaxed thirty minutes at the public pool."},
	},
	model.FoldInterest("Reading"): {
		genre:   "Literature",
		outdoor: model.Recommendation{Name: "Reading in the park", Location: "Nearest Park", Weather: "Sunny", Description: "Find a bench in the shade and bring a paperback."},
		indoor:  model.Recommendation{Name: "Library browse", Location: "Public Library", Weather: "Any", Description: "Pick up a book from a section you never visit."},
	},
	model.FoldInterest("Gaming"): {
		genre:   "Gaming",
		outdoor: model.Recommendation{Name: "Geocaching", Location: "Around Town", Weather: "Clear", Description: "Use a geocaching app to hunt for nearby caches."},
		indoor:  model.Recommendation{Name: "Board game cafe", Location: "Downtown", Weather: "Any", Description: "Spend an afternoon learning a new tabletop game."},
	},
}

var badWeatherWords = []string{"rain", "snow", "storm", "thunder", "sleet", "drizzle", "hail", "blizzard", "fog"}

// Catalog recommends from a fixed table. It never fails and always produces one
// outdoor and one indoor idea per interest; it knows no local events.
type Catalog struct{}

var _ Recommender = Catalog{}

func (Catalog) Name() string { return "catalog" }

func (Catalog) Recommend(ctx context.Context, cond model.Conditions) (*model.Recommendations, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cond = cond.WithDefaults()
	title := cases.Title(language.English)

	recs := &model.Recommendations{}
	for _, interest := range model.NormalizeInterests(cond.Interests) {
		t, ok := catalogThemes[model.FoldInterest(interest)]
		if !ok {
			t = genericTheme(title.String(interest))
		}
		out, in := t.outdoor, t.indoor
		out.Genre, in.Genre = t.genre, t.genre
		recs.OutdoorActivities = append(recs.OutdoorActivities, out)
		recs.IndoorActivities = append(recs.IndoorActivities, in)
	}

	if poorWeather(cond) {
		recs.Considerations = append(recs.Considerations,
			fmt.Sprintf("It is %s in %s, so the indoor options are the safer bet today.", strings.ToLower(cond.Weather), cond.Location))
	}
	recs.Considerations = append(recs.Considerations, "Check opening hours before heading out.")
	recs.Normalize()
	return recs, nil
}

func genericTheme(interest string) theme {
	return theme{
		genre: interest,
		outdoor: model.Recommendation{
			Name:        interest + " meetup",
			Location:    "Around Town",
			Weather:     "Clear",
			Description: fmt.Sprintf("Look for a local group that gets together for %s.", strings.ToLower(interest)),
		},
		indoor: model.Recommendation{
			Name:        interest + " at home",
			Location:    "At Home",
			Weather:     "Any",
			Description: fmt.Sprintf("Set aside an hour for %s without distractions.", strings.ToLower(interest)),
		},
	}
}

// poorWeather reports whether the conditions argue against going outside: a known
// bad-weather word or a temperature below freezing or above 35°C.
func poorWeather(cond model.Conditions) bool {
	w := strings.ToLower(cond.Weather)
	for _, word := range badWeatherWords {
		if strings.Contains(w, word) {
			return true
		}
	}
	if temp, err := strconv.ParseFloat(cond.Temperature, 64); err == nil {
		return temp < 0 || temp > 35
	}
	return false
}
