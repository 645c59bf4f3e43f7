package tutor

import (
	"strings"
	"unicode"
)

// KeywordRule maps free text to a topic when its predicate matches. Rules
// are evaluated in slice order; the first match wins.
type KeywordRule struct {
	Name  string
	Match func(lower string) bool
	Topic string
}

// KeywordRules is the offline topic table used when no backend answers.
var KeywordRules = []KeywordRule{
	{Name: "projectile", Match: anyWord("projectile", "parabola", "parabolic", "cannon", "trajectory"), Topic: "Projectile Motion"},
	{Name: "free-fall", Match: anyPhrase("free fall", "freely falling", "dropped from"), Topic: "Free Fall"},
	{Name: "pendulum", Match: anyWord("pendulum", "spring", "oscillation", "oscillates", "harmonic"), Topic: "Simple Harmonic Motion"},
	{Name: "circular", Match: anyWord("centripetal", "circular", "orbit", "orbits"), Topic: "Circular Motion"},
	{Name: "lens", Match: anyWord("lens", "lenses", "focal", "convex", "concave"), Topic: "Lenses"},
	{Name: "mirror", Match: anyWord("mirror", "mirrors", "reflection"), Topic: "Reflection of Light"},
	{Name: "refraction", Match: anyWord("refraction", "refracted", "snell", "prism"), Topic: "Refraction of Light"},
	{Name: "circuit", Match: anyWord("circuit", "resistor", "resistance", "ohm", "voltage"), Topic: "Electric Circuits"},
	{Name: "wave", Match: anyWord("wave", "waves", "wavelength", "amplitude"), Topic: "Waves"},
	{Name: "newton", Match: anyWord("force", "forces", "newton", "friction", "momentum"), Topic: "Newton's Laws of Motion"},
	{Name: "kinematics", Match: anyWord("velocity", "acceleration", "displacement", "speed"), Topic: "Kinematics"},
	{Name: "atom", Match: anyWord("atom", "atoms", "atomic", "electron", "proton", "neutron"), Topic: "Atomic Structure"},
	{Name: "reaction", Match: anyWord("reaction", "reactant", "reactants", "catalyst"), Topic: "Chemical Reactions"},
	{Name: "photosynthesis", Match: anyWord("photosynthesis", "chlorophyll"), Topic: "Photosynthesis"},
	{Name: "cell", Match: anyWord("cell", "cells", "mitochondria", "organelle", "nucleus"), Topic: "Cell Biology"},
}

// KeywordGuess applies rules to text. No match gives Unknown.
func KeywordGuess(rules []KeywordRule, text string) Classification {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower != "" {
		for _, r := range rules {
			if r.Match != nil && r.Match(lower) {
				return Classification{Topic: r.Topic, Variables: []string{}, Source: SourceKeyword}
			}
		}
	}
	return Classification{Topic: TopicUnknown, Variables: []string{}, Source: SourceKeyword}
}

// anyWord matches whole words so "cell" does not fire on "excellent".
func anyWord(words ...string) func(string) bool {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return func(lower string) bool {
		for _, tok := range strings.FieldsFunc(lower, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			if _, ok := set[tok]; ok {
				return true
			}
		}
		return false
	}
}

func anyPhrase(phrases ...string) func(string) bool {
	return func(lower string) bool {
		for _, p := range phrases {
			if strings.Contains(lower, p) {
				return true
			}
		}
		return false
	}
}
