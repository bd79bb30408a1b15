// Package content screens user-submitted text before it is written.
package content

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxLength caps submitted post and comment bodies, in runes.
const MaxLength = 2000

// Severity grades a filter result.
type Severity string

const (
	SeverityClean  Severity = "clean"
	SeverityMild   Severity = "mild"
	SeveritySevere Severity = "severe"
)

// Rejection messages shown to the author.
const (
	MessageEmpty         = "Please enter some content before posting."
	MessageTooLong       = "Your content is too long. Please shorten it and try again."
	MessageInappropriate = "Your content contains inappropriate language. Please revise and try again."
	MessageSuspicious    = "Your content appears to contain spam or suspicious patterns. Please revise and try again."
)

var blockedWords = []string{"spam", "scam", "fake", "bot"}

type pattern struct {
	name string
	re   *regexp.Regexp
}

var suspiciousPatterns = []pattern{
	{name: "phone_number", re: regexp.MustCompile(`\b\d{10,}\b`)},
	{name: "special_characters", re: regexp.MustCompile(`[^\w\s]{5,}`)},
	{name: "email", re: regexp.MustCompile(`(?i)@\w+\.(com|net|org)`)},
	{name: "short_url", re: regexp.MustCompile(`(?i)bit\.ly|tinyurl|t\.co`)},
}

var (
	controlChars   = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F-\x9F]`)
	zeroWidthChars = regexp.MustCompile(`[\x{200B}-\x{200F}\x{202A}-\x{202E}\x{2060}-\x{206F}]`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// Result describes what the filter found.
type Result struct {
	FlaggedWords       []string `json:"flagged_words"`
	SuspiciousPatterns []string `json:"suspicious_patterns"`
	Severity           Severity `json:"severity"`
}

// Clean reports whether nothing was flagged.
func (r Result) Clean() bool {
	return r.Severity == SeverityClean
}

// RejectedError is returned for content that may not be submitted. Message is
// safe to show to the author.
type RejectedError struct {
	Severity Severity
	Message  string
}

func (e *RejectedError) Error() string { return e.Message }

// ErrRejected matches any *RejectedError via errors.Is.
var ErrRejected = errors.New("content rejected")

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// Filter scans text for blocked words and suspicious patterns.
// Blocked words are matched as case-insensitive substrings.
func Filter(text string) Result {
	result := Result{Severity: SeverityClean, FlaggedWords: []string{}, SuspiciousPatterns: []string{}}
	lower := strings.ToLower(text)

	for _, word := range blockedWords {
		if strings.Contains(lower, word) {
			result.FlaggedWords = append(result.FlaggedWords, word)
		}
	}

	if hasRepeatedRun(text, 5) {
		result.SuspiciousPatterns = append(result.SuspiciousPatterns, "repeated_characters")
	}
	for _, p := range suspiciousPatterns {
		if p.re.MatchString(text) {
			result.SuspiciousPatterns = append(result.SuspiciousPatterns, p.name)
		}
	}

	switch {
	case len(result.FlaggedWords) > 0:
		result.Severity = SeveritySevere
	case len(result.SuspiciousPatterns) > 0:
		result.Severity = SeverityMild
	}
	return result
}

// Validate returns a *RejectedError when text may not be submitted.
func Validate(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &RejectedError{Severity: SeverityMild, Message: MessageEmpty}
	}
	if utf8.RuneCountInString(trimmed) > MaxLength {
		return &RejectedError{Severity: SeverityMild, Message: MessageTooLong}
	}

	switch Filter(trimmed).Severity {
	case SeveritySevere:
		return &RejectedError{Severity: SeveritySevere, Message: MessageInappropriate}
	case SeverityMild:
		return &RejectedError{Severity: SeverityMild, Message: MessageSuspicious}
	}
	return nil
}

// Redact masks blocked words and replaces suspicious matches with "[removed]".
func Redact(text string) string {
	out := text
	for _, word := range blockedWords {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(word))
		out = re.ReplaceAllString(out, strings.Repeat("*", len(word)))
	}
	out = replaceRepeatedRuns(out, 5, "[removed]")
	for _, p := range suspiciousPatterns {
		out = p.re.ReplaceAllString(out, "[removed]")
	}
	return out
}

// Sanitize strips control and zero-width characters and collapses whitespace.
func Sanitize(text string) string {
	out := controlChars.ReplaceAllString(text, "")
	out = zeroWidthChars.ReplaceAllString(out, "")
	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(out, " "))
}

func hasRepeatedRun(text string, n int) bool {
	var (
		prev  rune
		count int
	)
	for i, r := range text {
		if i > 0 && r == prev {
			count++
		} else {
			count = 1
		}
		if count >= n {
			return true
		}
		prev = r
	}
	return false
}

func replaceRepeatedRuns(text string, n int, replacement string) string {
	runes := []rune(text)
	var b strings.Builder
	for i := 0; i < len(runes); {
		j := i + 1
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		if j-i >= n {
			b.WriteString(replacement)
		} else {
			b.WriteString(string(runes[i:j]))
		}
		i = j
	}
	return b.String()
}
