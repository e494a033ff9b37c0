package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// SuggestedInterests are offered to users who have not typed anything yet.
var SuggestedInterests = []string{
	"Horror", "Outdoors", "Arts & Crafts", "Events", "Sports", "Reading", "Gaming",
}

// FoldInterest returns the comparison key for an interest: trimmed and Unicode
// case-folded, so "Hiking", "HIKING" and " hiking " collide.
func FoldInterest(s string) string {
	// A Caser keeps state between calls, so each call gets its own.
	return cases.Fold().String(strings.TrimSpace(s))
}

// InterestSet is an ordered list of interests with case-insensitive uniqueness.
// The zero value is an empty set ready to use.
type InterestSet struct {
	values []string
}

// NewInterestSet builds a set from values, trimming each one and dropping blanks and
// case-insensitive duplicates (the first spelling wins).
func NewInterestSet(values []string) *InterestSet {
	s := &InterestSet{}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// NormalizeInterests is NewInterestSet(values).Values().
func NormalizeInterests(values []string) []string {
	return NewInterestSet(values).Values()
}

// Add appends value unless it is blank or already present. Reports whether the set changed.
func (s *InterestSet) Add(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" || s.Contains(value) {
		return false
	}
	s.values = append(s.values, value)
	return true
}

// Remove deletes the entry matching value case-insensitively. Reports whether the set changed.
func (s *InterestSet) Remove(value string) bool {
	key := FoldInterest(value)
	for i, v := range s.values {
		if FoldInterest(v) == key {
			s.values = append(s.values[:i], s.values[i+1:]...)
			return true
		}
	}
	return false
}

func (s *InterestSet) Contains(value string) bool {
	key := FoldInterest(value)
	if key == "" {
		return false
	}
	for _, v := range s.values {
		if FoldInterest(v) == key {
			return true
		}
	}
	return false
}

func (s *InterestSet) Len() int { return len(s.values) }

// Values returns a copy of the interests in insertion order. Never nil.
func (s *InterestSet) Values() []string {
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out
}

// Reset replaces the contents with values, normalised the same way as NewInterestSet.
func (s *InterestSet) Reset(values []string) {
	s.values = nil
	for _, v := range values {
		s.Add(v)
	}
}
