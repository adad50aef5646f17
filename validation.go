package inbox

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rbaliyan/inbox/store"
)

// ValidateText validates message text using the default length limit.
func ValidateText(text string) error {
	return ValidateTextWithLimit(text, DefaultMaxTextLength)
}

// ValidateTextWithLimit validates message text against maxLen characters.
func ValidateTextWithLimit(text string, maxLen int) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Field: "text", Message: "must not be empty", Err: ErrEmptyMessage}
	}

	if !utf8.ValidString(text) {
		return &ValidationError{Field: "text", Message: "invalid UTF-8", Err: ErrInvalidContent}
	}

	if n := utf8.RuneCountInString(text); n > maxLen {
		return &ValidationError{
			Field:   "text",
			Message: fmt.Sprintf("length %d exceeds max %d", n, maxLen),
			Err:     ErrMessageTooLong,
		}
	}

	// Newlines and tabs are allowed; other control characters are not.
	for _, r := range text {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return &ValidationError{
				Field:   "text",
				Message: fmt.Sprintf("contains control character U+%04X", r),
				Err:     ErrInvalidContent,
			}
		}
	}

	return nil
}

// isValidUserID checks if a user ID is valid.
// Valid user IDs are non-empty and contain no separators, wildcards,
// whitespace or control characters.
func isValidUserID(userID string) bool {
	if userID == "" {
		return false
	}
	for _, c := range userID {
		if c == '*' || c == ':' || c == '/' || c == '\\' ||
			c == ' ' || c == '\t' || c == '\n' || c == '\r' ||
			c < 32 || c == 127 {
			return false
		}
	}
	return true
}

// validUser reports whether u can own messages.
func validUser(u *store.User) bool {
	return u != nil && isValidUserID(u.ID)
}
