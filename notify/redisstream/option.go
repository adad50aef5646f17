package redisstream

import "log/slog"

// Default stream names.
const (
	DefaultEmailStream = "inbox:notify:email"
	DefaultPushStream  = "inbox:notify:push"
)

type options struct {
	emailStream string
	pushStream  string
	maxLen      int64
	logger      *slog.Logger
}

// Option configures a Queue.
type Option func(*options)

// WithEmailStream sets the stream email jobs are added to.
func WithEmailStream(name string) Option {
	return func(o *options) {
		if name != "" {
			o.emailStream = name
		}
	}
}

// WithPushStream sets the stream push jobs are added to.
func WithPushStream(name string) Option {
	return func(o *options) {
		if name != "" {
			o.pushStream = name
		}
	}
}

// WithMaxLen caps each stream at approximately n entries.
// Zero (the default) leaves streams unbounded.
func WithMaxLen(n int64) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxLen = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
