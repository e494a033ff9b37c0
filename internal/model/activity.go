package model

// SavedActivity is a bookmarked recommendation. Title is the natural key: within one
// identity's saved set no two entries share a title, and matching is exact.
type SavedActivity struct {
	Title       string `json:"title"`
	Category    string `json:"category"`
	Location    string `json:"location"`
	Weather     string `json:"weather"`
	Description string `json:"description"`
}

// GuestScope is the local persistence scope used for saved activities when nobody is
// signed in.
const GuestScope = "guest"

// DedupeActivities drops entries whose title already appeared earlier in the slice,
// and entries with an empty title. The result is never nil.
func DedupeActivities(in []SavedActivity) []SavedActivity {
	out := make([]SavedActivity, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, a := range in {
		if a.Title == "" {
			continue
		}
		if _, dup := seen[a.Title]; dup {
			continue
		}
		seen[a.Title] = struct{}{}
		out = append(out, a)
	}
	return out
}
