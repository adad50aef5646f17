package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
	"github.com/rbaliyan/inbox/store"
	"golang.org/x/sync/semaphore"
)

// ServiceHealth provides health and state information about the service.
type ServiceHealth interface {
	// IsConnected returns true if the service is connected and ready.
	IsConnected() bool
}

// Service manages the inbox system.
// It owns the storage connection and hands out per-user clients.
type Service interface {
	ServiceHealth

	// Connect establishes connections to storage backends.
	Connect(ctx context.Context) error
	// Close waits for in-flight sends and closes all connections.
	Close(ctx context.Context) error
	// Client returns an inbox client acting as user.
	// The client updates user's unread counter in place.
	Client(user *store.User) Mailbox
	// Events returns per-service event instances for subscribing and publishing.
	Events() *ServiceEvents
}

// Messenger sends private messages.
type Messenger interface {
	// Send stores text for the client's user and receiver, then notifies
	// receiver by email and push according to their preferences.
	// A nil tr uses the service translator.
	Send(ctx context.Context, receiver *store.User, text string, tr Translator) (*SendResult, error)
}

// InboxReader reads the client's own messages.
type InboxReader interface {
	// Inbox returns messages newest first.
	Inbox(ctx context.Context, opts InboxOptions) ([]*store.Message, error)
	// InboxByID returns the same messages keyed by message ID.
	InboxByID(ctx context.Context, opts InboxOptions) (map[string]*store.Message, error)
	// Get returns one message, or nil if the user has no message with that ID.
	Get(ctx context.Context, messageID string) (*store.Message, error)
}

// ConversationLister lists conversations.
type ConversationLister interface {
	// Conversations returns one entry per peer, most recent first.
	Conversations(ctx context.Context) ([]Conversation, error)
}

// InboxMutator removes messages.
type InboxMutator interface {
	// Delete removes one message. Reports false if the user has no such message.
	Delete(ctx context.Context, messageID string) (bool, error)
	// Clear removes all of the user's messages and resets the unread counter.
	Clear(ctx context.Context) error
}

// Mailbox is a user's view of their private messages.
type Mailbox interface {
	// User returns the user this client acts for.
	User() *store.User
	Messenger
	InboxReader
	ConversationLister
	InboxMutator
}

// Connection states for the service.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// service is the default implementation of Service.
type service struct {
	store    store.Store
	sender   MessageSender
	logger   *slog.Logger
	opts     *options
	state    int32 // stateDisconnected, stateConnecting, or stateConnected
	plugins  *pluginRegistry
	otel     *otelInstrumentation
	sendSem  *semaphore.Weighted // Limits concurrent sends
	eventBus *event.Bus
	events   *ServiceEvents
}

// NewService creates a new inbox service.
// Call Connect() to establish connections to backends.
func NewService(opts ...Option) (Service, error) {
	o := newOptions(opts...)

	if o.store == nil {
		return nil, ErrStoreRequired
	}

	plugins := newPluginRegistry(o.logger)
	for _, p := range o.plugins {
		plugins.register(p)
	}

	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	sender := o.sender
	if sender == nil {
		sender = newStoreSender(o.store)
	}

	return &service{
		store:   o.store,
		sender:  sender,
		logger:  o.logger,
		opts:    o,
		plugins: plugins,
		otel:    otelInstr,
		sendSem: semaphore.NewWeighted(int64(o.maxConcurrentSends)),
	}, nil
}

// Events returns per-service event instances. Nil before Connect.
func (s *service) Events() *ServiceEvents {
	return s.events
}

// IsConnected returns true if the service is connected and ready.
func (s *service) IsConnected() bool {
	return atomic.LoadInt32(&s.state) == stateConnected
}

// Connect establishes connections to storage backends.
func (s *service) Connect(ctx context.Context) error {
	// stateConnecting keeps clients from seeing a half-initialized service.
	if !atomic.CompareAndSwapInt32(&s.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&s.state, stateConnected)
		} else {
			atomic.StoreInt32(&s.state, stateDisconnected)
		}
	}()

	if err := s.store.Connect(ctx); err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	if err := s.initEventBus(ctx); err != nil {
		s.store.Close(ctx)
		return fmt.Errorf("init event bus: %w", err)
	}

	if err := s.plugins.initAll(ctx); err != nil {
		s.eventBus.Close(ctx)
		s.store.Close(ctx)
		return fmt.Errorf("init plugins: %w", err)
	}

	success = true
	s.logger.Info("inbox service connected")
	return nil
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

// initEventBus creates this service's event bus and registers its events.
func (s *service) initEventBus(ctx context.Context) error {
	serviceName := s.opts.serviceName
	if serviceName == "" {
		serviceName = "inbox"
	}
	busName := fmt.Sprintf("%s-%d", serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case s.opts.eventTransport != nil:
		s.logger.Info("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(s.opts.eventTransport))
	case s.opts.redisClient != nil:
		s.logger.Info("initializing event bus with Redis transport")
		t, transportErr := eventredis.New(s.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		s.logger.Debug("initializing event bus with noop transport")
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	s.eventBus = bus

	s.events = newServiceEvents(busName)
	if err := registerServiceEvents(ctx, bus, s.events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register service events: %w", err)
	}
	return nil
}

// Close waits for in-flight sends, then closes plugins, the event bus and the store.
func (s *service) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateConnected, stateDisconnected) {
		return nil
	}

	var errs []error

	// New sends fail checkAccess from here on. Holding every semaphore
	// slot means all running sends have finished.
	s.logger.Info("waiting for in-flight sends to complete", "timeout", s.opts.shutdownTimeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, s.opts.shutdownTimeout)
	defer shutdownCancel()
	if err := s.sendSem.Acquire(shutdownCtx, int64(s.opts.maxConcurrentSends)); err != nil {
		s.logger.Warn("timeout waiting for in-flight sends, proceeding with shutdown", "error", err)
		errs = append(errs, fmt.Errorf("graceful shutdown timeout: %w", err))
	} else {
		s.sendSem.Release(int64(s.opts.maxConcurrentSends))
		s.logger.Info("all in-flight sends completed")
	}

	if err := s.plugins.closeAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close plugins: %w", err))
	}

	if s.eventBus != nil {
		if err := s.eventBus.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}

	if err := s.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	return errors.Join(errs...)
}

// Client returns an inbox client acting as user.
func (s *service) Client(user *store.User) Mailbox {
	return &userMailbox{
		user:      user,
		service:   s,
		validUser: validUser(user),
	}
}

// userMailbox is the default implementation of Mailbox.
type userMailbox struct {
	user      *store.User
	service   *service
	validUser bool
}

func (m *userMailbox) User() *store.User {
	return m.user
}

func (m *userMailbox) checkAccess() error {
	if !m.service.IsConnected() {
		return ErrNotConnected
	}
	if !m.validUser {
		return ErrInvalidUserID
	}
	return nil
}

// wrapStoreError maps store sentinels to their inbox counterparts.
func wrapStoreError(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotConnected):
		return fmt.Errorf("%s: %w", op, ErrNotConnected)
	case errors.Is(err, store.ErrDuplicateEntry):
		return fmt.Errorf("%s: %w", op, ErrDuplicateEntry)
	case errors.Is(err, store.ErrUserNotFound):
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
