package usecase

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// PRNumberParser extracts a pull request number from a create response.
type PRNumberParser func(ref string) (int, bool)

// DefaultPRNumberParsers are tried in order until one matches.
var DefaultPRNumberParsers = []PRNumberParser{
	ParseJSONNumber,
	ParseInlineReference,
	ParseURLPathSegment,
}

var (
	inlineReferenceRegex = regexp.MustCompile(`(?:^|[^\w&])#(\d+)\b`)
	pullPathRegex        = regexp.MustCompile(`/pulls?/(\d+)(?:[/?#\s]|$)`)
)

// ParseJSONNumber reads a top-level "number" field.
func ParseJSONNumber(ref string) (int, bool) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, "{") {
		return 0, false
	}
	var payload struct {
		Number int `json:"number"`
	}
	if err := json.Unmarshal([]byte(ref), &payload); err != nil || payload.Number <= 0 {
		return 0, false
	}
	return payload.Number, true
}

// ParseInlineReference matches "#123".
func ParseInlineReference(ref string) (int, bool) {
	return firstPositiveMatch(inlineReferenceRegex, ref)
}

// ParseURLPathSegment matches ".../pull/123".
func ParseURLPathSegment(ref string) (int, bool) {
	return firstPositiveMatch(pullPathRegex, ref)
}

func firstPositiveMatch(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ExtractPRNumber runs parsers in order and returns the first match.
func ExtractPRNumber(ref string, parsers []PRNumberParser) (int, bool) {
	for _, parse := range parsers {
		if n, ok := parse(ref); ok {
			return n, true
		}
	}
	return 0, false
}
