// Package camelot implements the 24-entry Camelot wheel used for
// harmonic-mixing compatibility between musical keys.
package camelot

import (
	"strings"

	"github.com/djcrate/engine/internal/model"
)

// keyToCamelot and minorKeyToCamelot together form the fixed 24-entry
// bijection from spec: major keys land on B, their relative minor on A,
// same number.
var keyToCamelot = map[string]model.CamelotCode{
	"C":  {8, 'B'}, "G": {9, 'B'}, "D": {10, 'B'}, "A": {11, 'B'}, "E": {12, 'B'}, "B": {1, 'B'},
	"F#": {2, 'B'}, "C#": {3, 'B'}, "G#": {4, 'B'}, "D#": {5, 'B'}, "A#": {6, 'B'}, "F": {7, 'B'},
}

var minorKeyToCamelot = map[string]model.CamelotCode{
	"A":  {8, 'A'}, "E": {9, 'A'}, "B": {10, 'A'}, "F#": {11, 'A'}, "C#": {12, 'A'}, "G#": {1, 'A'},
	"D#": {2, 'A'}, "A#": {3, 'A'}, "F": {4, 'A'}, "C": {5, 'A'}, "G": {6, 'A'}, "D": {7, 'A'},
}

var camelotToKey = buildReverse()

func buildReverse() map[model.CamelotCode]string {
	m := make(map[model.CamelotCode]string, 24)
	for tonic, code := range keyToCamelot {
		m[code] = tonic
	}
	for tonic, code := range minorKeyToCamelot {
		m[code] = tonic
	}
	return m
}

// flatToSharp maps enharmonic flat spellings to the sharp spelling the
// rest of this package uses internally.
var flatToSharp = map[string]string{
	"Db": "C#", "Eb": "D#", "Gb": "F#", "Ab": "G#", "Bb": "A#",
}

// ParseKey canonicalizes a free-form key string ("Abm", "C# minor", "Ddur",
// "H moll") into a model.KeyName. Unknown input yields C major with
// ErrKeyUnknown set in the returned errors bitset.
func ParseKey(raw string) (model.KeyName, model.FeatureErrors) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return model.KeyName{Tonic: "C", Minor: false}, model.ErrKeyUnknown
	}

	minor := false
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "moll"):
		minor = true
		s = stripSuffix(s, []string{"moll", "Moll", "MOLL"})
	case strings.Contains(lower, "minor"):
		minor = true
		s = stripSuffix(s, []string{"minor", "Minor", "MINOR"})
	case strings.Contains(lower, "dur"):
		s = stripSuffix(s, []string{"dur", "Dur", "DUR"})
	case strings.Contains(lower, "major"):
		s = stripSuffix(s, []string{"major", "Major", "MAJOR"})
	default:
		s = strings.TrimSpace(s)
	}

	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "m") && !strings.HasSuffix(s, "maj") {
		minor = true
		s = strings.TrimSuffix(s, "m")
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return model.KeyName{Tonic: "C", Minor: false}, model.ErrKeyUnknown
	}

	// German notation: bare "H" means B natural.
	if s == "H" || s == "h" {
		s = "B"
	}

	tonic := normalizeTonic(s)
	if tonic == "" {
		return model.KeyName{Tonic: "C", Minor: false}, model.ErrKeyUnknown
	}

	return model.KeyName{Tonic: tonic, Minor: minor}, 0
}

func stripSuffix(s string, suffixes []string) string {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return strings.TrimSuffix(s, suf)
		}
	}
	return s
}

func normalizeTonic(s string) string {
	if len(s) == 0 {
		return ""
	}
	letter := strings.ToUpper(s[:1])
	rest := s[1:]

	candidate := letter + rest
	if flat, ok := flatToSharp[letter+rest]; ok {
		return flat
	}
	// Accept already-sharp or bare-letter spellings.
	switch candidate {
	case "C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B":
		return candidate
	}
	// Try matching just the letter+"#" if rest contains a sharp symbol.
	if strings.Contains(rest, "#") {
		return letter + "#"
	}
	if strings.Contains(rest, "b") {
		if flat, ok := flatToSharp[letter+"b"]; ok {
			return flat
		}
	}
	return ""
}

// ToCamelot derives the Camelot code for a canonical key.
func ToCamelot(k model.KeyName) model.CamelotCode {
	number, ok := lookupNumber(k)
	if !ok {
		number = 8 // C major's position, matches the unknown-key sentinel
	}
	letter := byte('B')
	if k.Minor {
		letter = 'A'
	}
	return model.CamelotCode{Number: number, Letter: letter}
}

func lookupNumber(k model.KeyName) (int, bool) {
	table := keyToCamelot
	if k.Minor {
		table = minorKeyToCamelot
	}
	code, ok := table[k.Tonic]
	return code.Number, ok
}

// ToKey derives the canonical key name for a Camelot code (the reverse
// mapping of ToCamelot); used by round-trip tests and exporters.
func ToKey(c model.CamelotCode) model.KeyName {
	tonic, ok := camelotToKey[c]
	if !ok {
		tonic = "C"
	}
	return model.KeyName{Tonic: tonic, Minor: c.Letter == 'A'}
}

// Adjacent returns the two Camelot codes one step away on the wheel
// (same letter, number ±1 mod 12).
func Adjacent(c model.CamelotCode) [2]model.CamelotCode {
	return [2]model.CamelotCode{
		{Number: wrap(c.Number + 1), Letter: c.Letter},
		{Number: wrap(c.Number - 1), Letter: c.Letter},
	}
}

// Relative returns the same number on the other letter (e.g. 8A <-> 8B).
func Relative(c model.CamelotCode) model.CamelotCode {
	other := byte('B')
	if c.Letter == 'B' {
		other = 'A'
	}
	return model.CamelotCode{Number: c.Number, Letter: other}
}

// Dominant returns the code seven steps up the wheel, same letter.
func Dominant(c model.CamelotCode) model.CamelotCode {
	return model.CamelotCode{Number: wrap(c.Number + 7), Letter: c.Letter}
}

// Subdominant returns the code five steps up the wheel, same letter.
func Subdominant(c model.CamelotCode) model.CamelotCode {
	return model.CamelotCode{Number: wrap(c.Number + 5), Letter: c.Letter}
}

func wrap(n int) int {
	n = ((n - 1) % 12)
	if n < 0 {
		n += 12
	}
	return n + 1
}

// Distance is the circular shortest-path distance on the wheel, plus a
// 0.5 penalty if the letters differ, or 0.1 instead of 0.5 when the
// numbers match (the relative-key case).
func Distance(a, b model.CamelotCode) float64 {
	diff := a.Number - b.Number
	if diff < 0 {
		diff = -diff
	}
	circular := diff
	if 12-diff < circular {
		circular = 12 - diff
	}
	dist := float64(circular)
	if a.Letter != b.Letter {
		if a.Number == b.Number {
			dist += 0.1
		} else {
			dist += 0.5
		}
	}
	return dist
}

// CompatLevel enumerates how permissive a compatibility check is.
type CompatLevel int

const (
	LevelPerfect CompatLevel = iota
	LevelAdjacent
	LevelExtended
	LevelHarmonic
	LevelAll
)

// Compatible reports whether b is an acceptable follow-on for a at the
// given permissiveness level.
func Compatible(a, b model.CamelotCode, level CompatLevel) bool {
	if level == LevelAll {
		return true
	}
	if a == b {
		return true
	}
	if b == Relative(a) {
		return true
	}
	if level == LevelPerfect {
		return false
	}
	for _, adj := range Adjacent(a) {
		if b == adj {
			return true
		}
	}
	if level == LevelAdjacent {
		return false
	}
	if b == Dominant(a) || b == Subdominant(a) {
		return true
	}
	if level == LevelExtended {
		return false
	}
	// LevelHarmonic: also accept anything within wheel-distance 2.
	return Distance(a, b) <= 2.0
}
