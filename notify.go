package inbox

import (
	"context"
	"sync"
	"time"

	"github.com/rbaliyan/inbox/retry"
	"github.com/rbaliyan/inbox/store"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Notification identifiers for new private messages.
const (
	TemplateNewPM     = "new-pm"                 // transactional email template
	EmailVarSender    = "SENDER"                 // email substitution for the sender name
	NotificationNewPM = "newPM"                  // push identifier and category
	TitleKeyNewPM     = "newPMNotificationTitle" // translation key of the push title
	TitleParamName    = "name"                   // title parameter holding the sender name
)

// EmailVar is a named substitution in a transactional email template.
type EmailVar struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Mailer sends transactional emails.
type Mailer interface {
	SendTxn(ctx context.Context, to *store.User, template string, vars []EmailVar) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, to *store.User, template string, vars []EmailVar) error

func (f MailerFunc) SendTxn(ctx context.Context, to *store.User, template string, vars []EmailVar) error {
	return f(ctx, to, template, vars)
}

// PushPayload is the data attached to a new message push.
type PushPayload struct {
	ReplyTo    string `json:"replyTo"`
	SenderName string `json:"senderName"`
	Message    string `json:"message"`
}

// PushNotification is a device notification.
type PushNotification struct {
	Title      string      `json:"title"`
	Message    string      `json:"message"`
	Identifier string      `json:"identifier"`
	Category   string      `json:"category"`
	Payload    PushPayload `json:"payload"`
}

// Pusher sends push notifications to a user's devices.
type Pusher interface {
	SendNotification(ctx context.Context, to *store.User, n PushNotification) error
}

// PusherFunc adapts a function to the Pusher interface.
type PusherFunc func(ctx context.Context, to *store.User, n PushNotification) error

func (f PusherFunc) SendNotification(ctx context.Context, to *store.User, n PushNotification) error {
	return f(ctx, to, n)
}

// Translator looks up a localized string.
type Translator func(key string, params map[string]string, locale string) string

// keyTranslator returns the key unchanged.
func keyTranslator(key string, _ map[string]string, _ string) string {
	return key
}

// translatorFor picks the per-call translator, then the configured one.
func (s *service) translatorFor(tr Translator) Translator {
	if tr != nil {
		return tr
	}
	if s.opts.translator != nil {
		return s.opts.translator
	}
	return keyTranslator
}

// newPMPush builds the push notification announcing text from sender.
func newPMPush(sender, receiver *store.User, text string, tr Translator) PushNotification {
	senderName := sender.DisplayName()
	return PushNotification{
		Title:      tr(TitleKeyNewPM, map[string]string{TitleParamName: senderName}, receiver.Preferences.Language),
		Message:    text,
		Identifier: NotificationNewPM,
		Category:   NotificationNewPM,
		Payload: PushPayload{
			ReplyTo:    sender.ID,
			SenderName: senderName,
			Message:    text,
		},
	}
}

// notifyReceiver sends the email and push notifications for a new message,
// each only if the receiver has not turned it off. Channels run
// concurrently; both are attempted even if one fails.
func (s *service) notifyReceiver(ctx context.Context, sender, receiver *store.User, text string, tr Translator) error {
	var (
		mu     sync.Mutex
		failed map[string]error
		g      errgroup.Group
	)
	fail := func(channel string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if failed == nil {
			failed = make(map[string]error, 2)
		}
		failed[channel] = err
	}

	prefs := receiver.Preferences

	if s.opts.mailer != nil && prefs.EmailNotifications.NewPMEnabled() {
		vars := []EmailVar{{Name: EmailVarSender, Content: sender.DisplayName()}}
		g.Go(func() error {
			if err := s.dispatch(ctx, ChannelEmail, func(ctx context.Context) error {
				return s.opts.mailer.SendTxn(ctx, receiver, TemplateNewPM, vars)
			}); err != nil {
				fail(ChannelEmail, err)
			}
			return nil
		})
	}

	if s.opts.pusher != nil && prefs.PushNotifications.NewPMEnabled() {
		push := newPMPush(sender, receiver, text, s.translatorFor(tr))
		g.Go(func() error {
			if err := s.dispatch(ctx, ChannelPush, func(ctx context.Context) error {
				return s.opts.pusher.SendNotification(ctx, receiver, push)
			}); err != nil {
				fail(ChannelPush, err)
			}
			return nil
		})
	}

	_ = g.Wait()

	if len(failed) == 0 {
		return nil
	}
	return &NotificationError{ReceiverID: receiver.ID, Failed: failed}
}

// dispatch runs one notification channel under the retry policy.
func (s *service) dispatch(ctx context.Context, channel string, fn retry.RetryableFunc) (err error) {
	ctx, done := s.otel.track(ctx, opNotify, attribute.String("channel", channel))
	defer func() { done(&err, attribute.String("channel", channel)) }()

	cfg := s.opts.notifyRetry
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = isRetryableNotification
	}
	if cfg.OnRetry == nil {
		cfg.OnRetry = func(attempt int, wait time.Duration, err error) {
			s.logger.Warn("notification failed, retrying",
				"channel", channel, "attempt", attempt, "wait", wait, "error", err)
		}
	}
	return retry.Do(ctx, cfg, fn)
}

func isRetryableNotification(err error) bool {
	return IsRetryableError(err) && retry.DefaultIsRetryable(err)
}
