package inbox

import (
	"context"

	"github.com/rbaliyan/inbox/store"
	"go.opentelemetry.io/otel/attribute"
)

// Send stores a private message from the client's user to receiver and
// notifies receiver.
//
// The returned error may accompany a non-nil result: the message is stored
// but a later step failed (unread counter, fatal notification or event
// errors, AfterSend hooks). Check the result before retrying.
func (m *userMailbox) Send(ctx context.Context, receiver *store.User, text string, tr Translator) (*SendResult, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if !validUser(receiver) {
		return nil, ErrInvalidReceiver
	}

	// Validate before acquiring the semaphore to avoid wasting slots.
	if err := ValidateTextWithLimit(text, m.service.opts.maxTextLength); err != nil {
		return nil, err
	}

	var sendErr error
	ctx, done := m.service.otel.track(ctx, opSend,
		attribute.String("user_id", m.user.ID),
		attribute.String("receiver_id", receiver.ID),
	)
	defer func() { done(&sendErr) }()

	if err := m.service.sendSem.Acquire(ctx, 1); err != nil {
		sendErr = err
		return nil, sendErr
	}
	defer m.service.sendSem.Release(1)

	if err := m.service.plugins.beforeSend(ctx, m.user, receiver, text); err != nil {
		sendErr = err
		return nil, sendErr
	}

	result, err := m.service.sender.SendMessage(ctx, m.user, receiver, text)
	if err != nil {
		sendErr = wrapStoreError("send", err)
		return result, sendErr
	}
	if result == nil || result.Sent == nil || result.Received == nil {
		sendErr = ErrIncompleteSend
		return result, sendErr
	}

	// Notifications go out only after both copies are stored.
	var notifyErr error
	if err := m.service.notifyReceiver(ctx, m.user, receiver, text, tr); err != nil {
		if m.service.opts.notifyErrorsFatal {
			notifyErr = err
		} else if ne, ok := IsNotificationError(err); ok {
			for channel, chErr := range ne.Failed {
				m.service.opts.safeNotifyFailure(channel, receiver.ID, chErr)
			}
		}
	}

	if err := publishEvent(ctx, m.service, "MessageSent", m.service.events.MessageSent, MessageSentEvent{
		SentMessageID:     result.Sent.ID,
		ReceivedMessageID: result.Received.ID,
		SenderID:          m.user.ID,
		ReceiverID:        receiver.ID,
		SentAt:            result.Sent.Timestamp,
	}, result.Sent.ID); err != nil {
		sendErr = err
		return result, sendErr
	}

	if err := m.service.plugins.afterSend(ctx, m.user, receiver, result); err != nil {
		sendErr = err
		return result, sendErr
	}

	sendErr = notifyErr
	return result, sendErr
}
