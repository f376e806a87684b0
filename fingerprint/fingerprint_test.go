package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseAttrs() Attributes {
	return Attributes{
		Year:       "1989",
		SetName:    "Upper Deck",
		CardNumber: "#1",
		Player:     "Ken Griffey Jr.",
		Team:       "Mariners",
	}
}

func TestBuildDeterminism(t *testing.T) {
	a := baseAttrs()
	assert.Equal(t, Build(a), Build(a))
	assert.NotEmpty(t, Build(a))
}

func TestBuildNormalizesCaseAndWhitespace(t *testing.T) {
	a := baseAttrs()
	b := Attributes{
		Year:       " 1989 ",
		SetName:    "UPPER   DECK",
		CardNumber: "#1",
		Player:     "ken griffey jr.",
		Team:       "  Mariners",
	}
	assert.Equal(t, Build(a), Build(b))
}

func TestBuildDistinguishesEveryField(t *testing.T) {
	base := Build(baseAttrs())

	tests := []struct {
		name   string
		mutate func(*Attributes)
	}{
		{"year", func(a *Attributes) { a.Year = "1990" }},
		{"set", func(a *Attributes) { a.SetName = "Topps" }},
		{"subset", func(a *Attributes) { a.Subset = "Rookies" }},
		{"number", func(a *Attributes) { a.CardNumber = "#2" }},
		{"player", func(a *Attributes) { a.Player = "Jay Buhner" }},
		{"team", func(a *Attributes) { a.Team = "Yankees" }},
		{"insert", func(a *Attributes) { a.Insert = "Holograms" }},
		{"variation", func(a *Attributes) { a.Variation = "Error" }},
		{"parallel", func(a *Attributes) { a.Parallel = "Gold" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := baseAttrs()
			tt.mutate(&a)
			assert.NotEqual(t, base, Build(a))
		})
	}
}

func TestBuildOmitsEmptyQualifiers(t *testing.T) {
	a := baseAttrs()
	fp := Build(a)
	assert.NotContains(t, fp, "sub:")
	assert.NotContains(t, fp, "ins:")
	assert.NotContains(t, fp, "||")
}

func TestBuildAllEmptyYieldsEmptyFingerprint(t *testing.T) {
	assert.Equal(t, "", Build(Attributes{}))
	assert.Equal(t, "", Build(Attributes{Year: "   ", Team: "\t"}))
}

func TestBuildQualifierVsValueCollision(t *testing.T) {
	// a value that happens to contain the delimiter-ish text must still key
	// differently from genuinely different attributes
	a := baseAttrs()
	a.Insert = "Gold"
	b := baseAttrs()
	b.Parallel = "Gold"
	assert.NotEqual(t, Build(a), Build(b))
}
