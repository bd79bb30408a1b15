package content

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Username length bounds, in runes.
const (
	UsernameMinLength = 4
	UsernameMaxLength = 12
)

// Username rejection messages.
const (
	MessageUsernameRequired    = "Username is required"
	MessageUsernameTooShort    = "Username must be at least 4 characters"
	MessageUsernameTooLong     = "Username cannot exceed 12 characters"
	MessageUsernameInvalid     = "Username contains invalid characters. Use letters, numbers, underscore, or hyphen only."
	MessageUsernameControl     = "Username contains invalid control characters"
	MessageUsernameReserved    = "Username cannot contain /, ., #, $, [, or ]"
	MessageUsernameMixedScript = "Username cannot mix different alphabets"
)

var (
	usernameDangerous = regexp.MustCompile("[<>'\"&/\\\\#$\\[\\]{}()=+*?^|~`!@%]")
	usernameControl   = regexp.MustCompile(`[\x00-\x1F\x7F-\x9F\x{200B}-\x{200F}\x{202A}-\x{202E}]`)
	usernameReserved  = regexp.MustCompile(`[/.#$\[\]]`)
	usernameShape     = regexp.MustCompile(`^[\p{L}\p{N}_\-]+$`)
)

// ValidateUsername returns a *RejectedError when name cannot be claimed.
// Only ASCII letters, digits, underscore and hyphen survive every check.
func ValidateUsername(name string) error {
	if name == "" {
		return usernameRejected(MessageUsernameRequired)
	}
	switch n := utf8.RuneCountInString(name); {
	case n < UsernameMinLength:
		return usernameRejected(MessageUsernameTooShort)
	case n > UsernameMaxLength:
		return usernameRejected(MessageUsernameTooLong)
	}

	switch {
	case usernameDangerous.MatchString(name):
		return usernameRejected(MessageUsernameInvalid)
	case usernameControl.MatchString(name):
		return usernameRejected(MessageUsernameControl)
	case usernameReserved.MatchString(name):
		return usernameRejected(MessageUsernameReserved)
	case !usernameShape.MatchString(name):
		return usernameRejected(MessageUsernameInvalid)
	case mixesScripts(name):
		return usernameRejected(MessageUsernameMixedScript)
	}
	return nil
}

// NormalizeUsername is the stored, case-folded form of name.
func NormalizeUsername(name string) string {
	return strings.ToLower(Sanitize(name))
}

func usernameRejected(message string) error {
	return &RejectedError{Severity: SeverityMild, Message: message}
}

// mixesScripts reports any rune outside ASCII letters, digits, '_' and '-'.
func mixesScripts(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return true
		}
	}
	return false
}
