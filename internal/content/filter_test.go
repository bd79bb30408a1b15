package content

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		severity Severity
		words    []string
		patterns []string
	}{
		{name: "Clean", text: "Market looks strong today", severity: SeverityClean, words: []string{}, patterns: []string{}},
		{name: "BlockedWordCaseInsensitive", text: "This is a SCAM", severity: SeveritySevere, words: []string{"scam"}, patterns: []string{}},
		{name: "BlockedSubstring", text: "robotics stocks", severity: SeveritySevere, words: []string{"bot"}, patterns: []string{}},
		{name: "RepeatedCharacters", text: "hellooooo", severity: SeverityMild, words: []string{}, patterns: []string{"repeated_characters"}},
		{name: "PhoneNumber", text: "call 5551234567 now", severity: SeverityMild, words: []string{}, patterns: []string{"phone_number"}},
		{name: "Email", text: "write me at x@mail.com", severity: SeverityMild, words: []string{}, patterns: []string{"email"}},
		{name: "ShortURL", text: "see bit.ly/abc", severity: SeverityMild, words: []string{}, patterns: []string{"short_url"}},
		{name: "SevereWins", text: "fake!!!!! deal", severity: SeveritySevere, words: []string{"fake"}, patterns: []string{"repeated_characters", "special_characters"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Filter(tc.text)
			require.Equal(t, tc.severity, result.Severity)
			require.Equal(t, tc.words, result.FlaggedWords)
			require.Equal(t, tc.patterns, result.SuspiciousPatterns)
			require.Equal(t, tc.severity == SeverityClean, result.Clean())
		})
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("  Buying more BTC this week  "))

	err := Validate("free scam coins")
	require.ErrorIs(t, err, ErrRejected)
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, SeveritySevere, rejected.Severity)
	require.Equal(t, MessageInappropriate, rejected.Error())

	err = Validate("dm me 12345678901")
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, MessageSuspicious, rejected.Message)

	err = Validate("   ")
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, MessageEmpty, rejected.Message)

	err = Validate(strings.Repeat("ab ", MaxLength))
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, MessageTooLong, rejected.Message)
}

func TestRedact(t *testing.T) {
	require.Equal(t, "a **** offer [removed]", Redact("a Scam offer bit.ly"))
	require.Equal(t, "so c[removed]l good", Redact("so cooooool good"))
}

func TestSanitize(t *testing.T) {
	require.Equal(t, "hello world", Sanitize("  hello\u200b \n\t world\u0007 "))
}
