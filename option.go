package inbox

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/event/v3/transport"
	"github.com/rbaliyan/inbox/retry"
	"github.com/rbaliyan/inbox/store"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Default configuration values.
const (
	// PMPerPage is the inbox page size.
	PMPerPage = 10

	DefaultMaxTextLength   = 3000             // characters
	DefaultShutdownTimeout = 30 * time.Second // default graceful shutdown timeout
	MinShutdownTimeout     = 1 * time.Second  // minimum shutdown timeout

	// Concurrency limits
	DefaultMaxConcurrentSends = 10 // max concurrent send operations per service
)

// options holds inbox configuration.
type options struct {
	store  store.Store
	sender MessageSender
	logger *slog.Logger

	plugins []Plugin

	// Notification collaborators
	mailer     Mailer
	pusher     Pusher
	translator Translator

	// Notification delivery
	notifyRetry       retry.Config
	notifyErrorsFatal bool
	onNotifyFailure   NotificationFailureFunc

	// Limits
	pageSize      int
	maxTextLength int

	// Concurrency limits
	maxConcurrentSends int

	// Shutdown
	shutdownTimeout time.Duration

	// OpenTelemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Event handling
	eventErrorsFatal      bool
	eventTransport        transport.Transport
	redisClient           redis.UniversalClient
	onEventPublishFailure EventPublishFailureFunc
}

// EventPublishFailureFunc is called when an event fails to publish.
// The eventName is the name of the event (e.g., "MessageSent"), and err is the publish error.
type EventPublishFailureFunc func(eventName string, err error)

// NotificationFailureFunc is called when a notification channel fails and
// notification errors are not fatal.
type NotificationFailureFunc func(channel string, receiverID string, err error)

// safeEventPublishFailure calls the event failure callback with panic recovery.
func (o *options) safeEventPublishFailure(eventName string, err error) {
	if o.onEventPublishFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in event publish failure handler",
				"event", eventName,
				"original_error", err,
				"panic", r,
			)
		}
	}()
	o.onEventPublishFailure(eventName, err)
}

// safeNotifyFailure calls the notification failure callback with panic recovery.
func (o *options) safeNotifyFailure(channel, receiverID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in notification failure handler",
				"channel", channel,
				"receiver_id", receiverID,
				"original_error", err,
				"panic", r,
			)
		}
	}()
	o.onNotifyFailure(channel, receiverID, err)
}

// newOptions creates options with defaults and applies provided options.
func newOptions(opts ...Option) *options {
	o := &options{
		logger:             slog.Default(),
		pageSize:           PMPerPage,
		maxTextLength:      DefaultMaxTextLength,
		maxConcurrentSends: DefaultMaxConcurrentSends,
		shutdownTimeout:    DefaultShutdownTimeout,
		notifyRetry:        retry.Config{MaxRetries: 0},
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.onEventPublishFailure == nil {
		o.onEventPublishFailure = func(eventName string, err error) {
			o.logger.Error("failed to publish event", "event", eventName, "error", err)
		}
	}
	if o.onNotifyFailure == nil {
		o.onNotifyFailure = func(channel, receiverID string, err error) {
			o.logger.Error("failed to notify receiver",
				"channel", channel, "receiver_id", receiverID, "error", err)
		}
	}

	return o
}

// Option configures an inbox service.
type Option func(*options)

// --- Core Options ---

// WithStore sets the storage backend (required).
func WithStore(s store.Store) Option {
	return func(o *options) {
		if s != nil {
			o.store = s
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMessageSender replaces the component that persists both copies of a
// new message. By default messages are written to the configured store and
// the receiver's unread counter is incremented.
func WithMessageSender(s MessageSender) Option {
	return func(o *options) {
		if s != nil {
			o.sender = s
		}
	}
}

// --- Notification Options ---

// WithMailer sets the transactional email collaborator.
// Without one, email notifications are skipped.
func WithMailer(m Mailer) Option {
	return func(o *options) {
		if m != nil {
			o.mailer = m
		}
	}
}

// WithPusher sets the push notification collaborator.
// Without one, push notifications are skipped.
func WithPusher(p Pusher) Option {
	return func(o *options) {
		if p != nil {
			o.pusher = p
		}
	}
}

// WithTranslator sets the translator used when Send is called without one.
func WithTranslator(t Translator) Option {
	return func(o *options) {
		if t != nil {
			o.translator = t
		}
	}
}

// WithNotificationRetry retries failed notifications with backoff.
// Default is a single attempt.
func WithNotificationRetry(cfg retry.Config) Option {
	return func(o *options) {
		o.notifyRetry = cfg
	}
}

// WithNotificationErrorsFatal makes Send return a *NotificationError when
// a notification channel fails. The message is stored either way, and the
// result is returned alongside the error.
// Default is false: failures go to the notification failure handler.
func WithNotificationErrorsFatal(fatal bool) Option {
	return func(o *options) {
		o.notifyErrorsFatal = fatal
	}
}

// WithNotificationFailureHandler sets a callback for notification failures
// that are not fatal. By default they are logged.
func WithNotificationFailureHandler(fn NotificationFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onNotifyFailure = fn
		}
	}
}

// --- Plugin Options ---

// WithPlugin registers a plugin with the inbox service.
// Multiple plugins can be registered by calling this option multiple times.
func WithPlugin(p Plugin) Option {
	return func(o *options) {
		if p != nil {
			o.plugins = append(o.plugins, p)
		}
	}
}

// WithPlugins registers multiple plugins at once.
func WithPlugins(plugins ...Plugin) Option {
	return func(o *options) {
		for _, p := range plugins {
			if p != nil {
				o.plugins = append(o.plugins, p)
			}
		}
	}
}

// --- Limit Options ---

// WithPageSize sets the inbox page size. Default is PMPerPage (10).
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithMaxTextLength sets the maximum message length in characters.
// Default is 3000.
func WithMaxTextLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTextLength = n
		}
	}
}

// WithMaxConcurrentSends sets the maximum number of concurrent send operations.
// Default is 10.
func WithMaxConcurrentSends(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentSends = n
		}
	}
}

// WithShutdownTimeout sets the maximum time Close waits for in-flight sends.
// Default is 30 seconds. Minimum is 1 second.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= MinShutdownTimeout {
			o.shutdownTimeout = d
		}
	}
}

// --- OTel Options ---

// WithTracing enables or disables OpenTelemetry tracing.
// Default is disabled.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables or disables OpenTelemetry metrics.
// Default is disabled.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithOTel enables both OpenTelemetry tracing and metrics.
func WithOTel(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
		o.metricsEnabled = enabled
	}
}

// WithServiceName sets the service name used for telemetry and event bus names.
// Default is "inbox".
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithTracerProvider sets a custom OpenTelemetry tracer provider.
// Default uses the global tracer provider from otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom OpenTelemetry meter provider.
// Default uses the global meter provider from otel.GetMeterProvider().
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// --- Event Options ---

// WithEventErrorsFatal configures whether event publishing failures should
// cause the operation to fail. By default, event failures are logged but
// the operation succeeds.
func WithEventErrorsFatal(fatal bool) Option {
	return func(o *options) {
		o.eventErrorsFatal = fatal
	}
}

// WithEventTransport sets the event transport for publishing and subscribing.
// If not provided, a noop transport is used (events are silently dropped).
func WithEventTransport(t transport.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.eventTransport = t
		}
	}
}

// WithRedisClient publishes events to Redis Streams.
// Ignored when WithEventTransport is also given.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		if client != nil {
			o.redisClient = client
		}
	}
}

// WithEventPublishFailureHandler sets a callback for event publishing failures.
// By default, failures are logged using the configured logger.
func WithEventPublishFailureHandler(fn EventPublishFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onEventPublishFailure = fn
		}
	}
}
