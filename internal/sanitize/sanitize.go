// Package sanitize neutralizes prompt-injection patterns in user input
// before it is embedded in a prompt.
//
// This is heuristic, pattern-based filtering: defense in depth, not a
// formal guarantee against injection.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxInputLength caps user input to keep a hostile question from
// exhausting the model's context window.
const MaxInputLength = 2000

// FilteredMarker replaces any matched injection pattern.
const FilteredMarker = "[FILTERED]"

// TruncatedMarker is appended when input exceeds MaxInputLength.
const TruncatedMarker = "... [TRUNCATED]"

// dangerousPatterns are known injection phrasings: instruction overrides,
// role-label spoofing and thinking-tag spoofing.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+previous\s+instructions`),
	regexp.MustCompile(`(?i)forget\s+everything`),
	regexp.MustCompile(`(?i)new\s+instructions?:`),
	regexp.MustCompile(`(?i)system\s*:`),
	regexp.MustCompile(`(?i)assistant\s*:`),
	regexp.MustCompile(`(?i)user\s*:`),
	regexp.MustCompile(`(?i)<\s*thinking\s*>`),
	regexp.MustCompile(`(?i)</\s*thinking\s*>`),
	regexp.MustCompile(`(?i)["“”].*system.*["“”]`),
	regexp.MustCompile(`(?i)["“”].*instructions.*["“”]`),
}

// delimiterRuns matches runs of three or more bracket/brace/quote
// characters, generic delimiter-injection attempts rather than known
// phrases.
var delimiterRuns = regexp.MustCompile(`[<>{}"\[\]]{3,}`)

// Clean scrubs raw user input: known injection phrasings and delimiter
// runs become [FILTERED], then the result is truncated to MaxInputLength
// characters (with a marker) and trimmed.
func Clean(raw string) string {
	sanitized := raw
	for _, p := range dangerousPatterns {
		sanitized = p.ReplaceAllString(sanitized, FilteredMarker)
	}

	sanitized = delimiterRuns.ReplaceAllString(sanitized, FilteredMarker)

	// Truncation counts characters, not bytes, so multibyte input is
	// never split mid-rune.
	if runes := []rune(sanitized); len(runes) > MaxInputLength {
		sanitized = string(runes[:MaxInputLength]) + TruncatedMarker
	}

	return strings.TrimSpace(sanitized)
}
