package postgres

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultTable      = "inbox_messages"
	DefaultUsersTable = "users"
	DefaultTimeout    = 10 * time.Second
)

// options holds PostgreSQL store configuration.
type options struct {
	table      string
	usersTable string
	timeout    time.Duration
	logger     *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		table:      DefaultTable,
		usersTable: DefaultUsersTable,
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a PostgreSQL store.
type Option func(*options)

// WithTable sets the message table name.
func WithTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.table = name
		}
	}
}

// WithUsersTable sets the user table name. The table holds one JSONB
// document per user in a "doc" column keyed by "id".
func WithUsersTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.usersTable = name
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
