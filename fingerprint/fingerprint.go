package fingerprint

import (
	"strings"
)

// Attributes holds the descriptive card fields a fingerprint is derived from.
// Subset, Insert, Variation and Parallel are optional and may be left empty.
type Attributes struct {
	Year       string `json:"year"`
	SetName    string `json:"set_name"`
	Subset     string `json:"subset,omitempty"`
	CardNumber string `json:"card_number"`
	Player     string `json:"player"`
	Team       string `json:"team"`
	Insert     string `json:"insert,omitempty"`
	Variation  string `json:"variation,omitempty"`
	Parallel   string `json:"parallel,omitempty"`
}

const segmentDelimiter = "|"

// Build maps card attributes to a stable identity string. Fields are trimmed
// and lower-cased before joining, so two cards that differ only by case or
// surrounding whitespace produce the same fingerprint. Empty fields are
// omitted entirely rather than emitted as empty segments.
//
// The field order (year, set, subset, number, player, team, insert, variation,
// parallel) is part of every stored key. Changing it invalidates all existing
// shared-image and moderation rows, so it must never change without a data
// migration.
func Build(attrs Attributes) string {
	segments := make([]string, 0, 9)
	appendSegment := func(label, value string) {
		v := normalize(value)
		if v == "" {
			return
		}
		segments = append(segments, label+":"+v)
	}

	appendSegment("y", attrs.Year)
	appendSegment("set", attrs.SetName)
	appendSegment("sub", attrs.Subset)
	appendSegment("no", attrs.CardNumber)
	appendSegment("player", attrs.Player)
	appendSegment("team", attrs.Team)
	appendSegment("ins", attrs.Insert)
	appendSegment("var", attrs.Variation)
	appendSegment("par", attrs.Parallel)

	return strings.Join(segments, segmentDelimiter)
}

// normalize trims surrounding whitespace, collapses interior runs of
// whitespace to single spaces, and lower-cases the result.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
