package mongo

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultDatabase        = "inbox"
	DefaultCollection      = "inboxes"
	DefaultUsersCollection = "users"
	DefaultTimeout         = 10 * time.Second
)

// options holds MongoDB store configuration.
type options struct {
	database        string
	collection      string
	usersCollection string
	timeout         time.Duration
	logger          *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		database:        DefaultDatabase,
		collection:      DefaultCollection,
		usersCollection: DefaultUsersCollection,
		timeout:         DefaultTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a MongoDB store.
type Option func(*options)

// WithDatabase sets the database name.
func WithDatabase(name string) Option {
	return func(o *options) {
		if name != "" {
			o.database = name
		}
	}
}

// WithCollection sets the message collection name.
func WithCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.collection = name
		}
	}
}

// WithUsersCollection sets the user collection name.
// The collection is owned by the application; the store only reads the
// avatar fields and updates inbox.newMessages.
func WithUsersCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.usersCollection = name
		}
	}
}

// WithTimeout sets the operation timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
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
