// Package filter strips model "thinking" artifacts from generated text,
// both complete responses and incrementally streamed fragments.
package filter

import (
	"regexp"
	"strings"
)

var thinkingTags = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<thinking>.*?</thinking>`),
	regexp.MustCompile(`(?is)<think>.*?</think>`),
}

// thinkingPhrases open a skip region when a line's lowercase trimmed form
// contains one of them.
var thinkingPhrases = []string{
	"let me think",
	"thinking about",
	"i need to consider",
	"let me analyze",
	"first, i should",
	"i should examine",
}

// answerPrefixes close a skip region when a line starts with one of them.
// Line-prefix matching is fragile for answers that legitimately begin
// differently; it is kept as a best-effort heuristic.
var answerPrefixes = []string{
	"Based on",
	"According to",
	"The",
}

// Filter removes thinking-tag spans and heuristic thinking prose from a
// complete response. Idempotent: Filter(Filter(x)) == Filter(x).
func Filter(text string) string {
	for _, re := range thinkingTags {
		text = re.ReplaceAllString(text, "")
	}

	lines := strings.Split(text, "\n")
	filtered := make([]string, 0, len(lines))
	skipThinking := false

	for _, line := range lines {
		lower := strings.ToLower(strings.TrimSpace(line))

		if containsAny(lower, thinkingPhrases) {
			skipThinking = true
			continue
		}

		if skipThinking && hasAnswerPrefix(strings.TrimSpace(line)) {
			skipThinking = false
		}

		if !skipThinking {
			filtered = append(filtered, line)
		}
	}

	return strings.TrimSpace(strings.Join(filtered, "\n"))
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func hasAnswerPrefix(s string) bool {
	for _, p := range answerPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// StreamFilter applies Filter to each arriving fragment independently and
// accumulates the raw stream so a corrective pass can run at stream end.
//
// A tag split across two fragments escapes the per-fragment pass; the
// Finalize replacement is the correction for that, not a prevention. The
// stream is never buffered for correctness; latency wins.
type StreamFilter struct {
	raw strings.Builder
}

// Feed filters one fragment for immediate display and records the raw
// text. The returned string may be empty when the whole fragment was
// thinking content.
func (f *StreamFilter) Feed(fragment string) string {
	f.raw.WriteString(fragment)
	return Filter(fragment)
}

// Finalize filters the accumulated raw stream as a whole. replace reports
// whether the result differs from what a client concatenating raw
// fragments would hold, in which case the caller must emit a corrective
// replacement carrying the returned text.
func (f *StreamFilter) Finalize() (final string, replace bool) {
	raw := f.raw.String()
	final = Filter(raw)
	return final, final != strings.TrimSpace(raw)
}
