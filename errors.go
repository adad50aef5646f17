package inbox

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rbaliyan/inbox/store"
)

// Sentinel errors for the inbox package.
// Use errors.Is() to check for these errors.
//
// Errors that have a store-level counterpart wrap it, so
// errors.Is(err, inbox.ErrNotConnected) also matches store.ErrNotConnected.
var (
	// ErrNotFound is returned when a message cannot be found.
	ErrNotFound = fmt.Errorf("inbox: %w", store.ErrNotFound)

	// ErrStoreRequired is returned when no store is configured.
	ErrStoreRequired = errors.New("inbox: store is required")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = fmt.Errorf("inbox: %w", store.ErrNotConnected)

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = fmt.Errorf("inbox: %w", store.ErrAlreadyConnected)

	// ErrInvalidID is returned when an invalid ID is provided.
	ErrInvalidID = fmt.Errorf("inbox: %w", store.ErrInvalidID)

	// ErrDuplicateEntry is returned when a duplicate entry is detected.
	ErrDuplicateEntry = fmt.Errorf("inbox: %w", store.ErrDuplicateEntry)

	// ErrUserNotFound is returned when the unread counter of an unknown user is updated.
	ErrUserNotFound = fmt.Errorf("inbox: %w", store.ErrUserNotFound)

	// ErrInvalidUserID is returned when a user is nil or its ID contains invalid characters.
	ErrInvalidUserID = errors.New("inbox: invalid user id")

	// ErrInvalidReceiver is returned when the receiver of a message is missing or invalid.
	ErrInvalidReceiver = errors.New("inbox: invalid receiver")

	// ErrInvalidMessage is returned for message validation failures.
	ErrInvalidMessage = errors.New("inbox: invalid message")

	// ErrEmptyMessage is returned when message text is blank.
	ErrEmptyMessage = errors.New("inbox: empty message")

	// ErrMessageTooLong is returned when message text exceeds the configured length.
	ErrMessageTooLong = errors.New("inbox: message too long")

	// ErrInvalidContent is returned when message text contains invalid characters.
	ErrInvalidContent = errors.New("inbox: invalid content")

	// ErrInvalidPage is returned for a negative page number.
	ErrInvalidPage = errors.New("inbox: invalid page")

	// ErrNotification is matched by every NotificationError.
	ErrNotification = errors.New("inbox: notification failed")

	// ErrIncompleteSend is returned when a MessageSender reports success
	// without both stored copies.
	ErrIncompleteSend = errors.New("inbox: sender returned an incomplete result")

	// ErrRateLimited is returned by plugins that throttle senders.
	ErrRateLimited = errors.New("inbox: rate limited")
)

// IsRetryableError determines if an error is retryable.
// Returns true for temporary/transient errors, false for permanent errors.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	permanentErrors := []error{
		ErrInvalidUserID,
		ErrInvalidReceiver,
		ErrInvalidMessage,
		ErrEmptyMessage,
		ErrMessageTooLong,
		ErrInvalidContent,
		ErrInvalidPage,
		ErrStoreRequired,
		store.ErrNotFound,
		store.ErrInvalidID,
		store.ErrDuplicateEntry,
		store.ErrUserNotFound,
	}
	for _, permErr := range permanentErrors {
		if errors.Is(err, permErr) {
			return false
		}
	}

	// Unknown errors are treated as transient network/timeout issues.
	return true
}

// ValidationError provides details about a validation failure.
type ValidationError struct {
	Field   string // The field that failed validation
	Message string // Human-readable error message
	Err     error  // Specific sentinel, if any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("inbox: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match both ErrInvalidMessage and the specific sentinel.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidMessage}
	}
	return []error{ErrInvalidMessage, e.Err}
}

// EventPublishError is returned when event publishing fails but the operation succeeded.
type EventPublishError struct {
	Event     string // The event name (e.g., "MessageSent")
	MessageID string // The message ID the event was for, if any
	Err       error  // The underlying publish error
}

func (e *EventPublishError) Error() string {
	if e.MessageID == "" {
		return fmt.Sprintf("inbox: event %s publish failed: %v", e.Event, e.Err)
	}
	return fmt.Sprintf("inbox: event %s publish failed for message %s: %v", e.Event, e.MessageID, e.Err)
}

func (e *EventPublishError) Unwrap() error {
	return e.Err
}

// IsEventPublishError checks if the error is an event publish error and returns details.
func IsEventPublishError(err error) (*EventPublishError, bool) {
	var epe *EventPublishError
	if errors.As(err, &epe) {
		return epe, true
	}
	return nil, false
}

// Notification channels.
const (
	ChannelEmail = "email"
	ChannelPush  = "push"
)

// NotificationError reports notification channels that failed after a
// message was stored. The message itself was delivered.
type NotificationError struct {
	ReceiverID string
	Failed     map[string]error // channel -> error
}

func (e *NotificationError) Error() string {
	channels := make([]string, 0, len(e.Failed))
	for ch := range e.Failed {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	var sb strings.Builder
	fmt.Fprintf(&sb, "inbox: notify %s failed:", e.ReceiverID)
	for _, ch := range channels {
		fmt.Fprintf(&sb, " %s: %v;", ch, e.Failed[ch])
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// Unwrap returns ErrNotification followed by the per-channel errors.
func (e *NotificationError) Unwrap() []error {
	errs := []error{ErrNotification}
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// IsNotificationError checks if the error is a notification error and returns details.
func IsNotificationError(err error) (*NotificationError, bool) {
	var ne *NotificationError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}
