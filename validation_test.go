package inbox

import (
	"errors"
	"strings"
	"testing"

	"github.com/rbaliyan/inbox/store"
)

func TestValidateText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"simple", "hello", nil},
		{"multiline", "line one\nline two\r\n\tindented", nil},
		{"unicode", "héllo 👋 世界", nil},
		{"at limit", strings.Repeat("a", DefaultMaxTextLength), nil},
		{"limit counts characters", strings.Repeat("é", DefaultMaxTextLength), nil},
		{"empty", "", ErrEmptyMessage},
		{"whitespace only", " \t\n", ErrEmptyMessage},
		{"over limit", strings.Repeat("a", DefaultMaxTextLength+1), ErrMessageTooLong},
		{"invalid utf8", "bad \xff byte", ErrInvalidContent},
		{"control character", "bell\a", ErrInvalidContent},
		{"delete character", "del\x7f", ErrInvalidContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateText(tt.text)
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("expected ErrInvalidMessage to match, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != "text" {
				t.Errorf("expected ValidationError for text, got %T", err)
			}
		})
	}
}

func TestValidateTextWithLimit(t *testing.T) {
	if err := ValidateTextWithLimit("12345", 5); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateTextWithLimit("123456", 5); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("expected ErrMessageTooLong, got %v", err)
	}
}

func TestIsValidUserID(t *testing.T) {
	valid := []string{"alice", "5f3a9c2e-0b1d-4c6e-9f7a-123456789abc", "user_123", "a.b-c"}
	invalid := []string{"", "a b", "a:b", "a/b", `a\b`, "a*", "a\nb", "a\x00b", "a\x7fb"}

	for _, id := range valid {
		if !isValidUserID(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}
	for _, id := range invalid {
		if isValidUserID(id) {
			t.Errorf("expected %q to be invalid", id)
		}
	}
	if validUser(nil) {
		t.Error("nil user should be invalid")
	}
	if !validUser(&store.User{ID: "alice"}) {
		t.Error("alice should be valid")
	}
}
