package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rbaliyan/event/v3/transport/channel"
	"github.com/rbaliyan/inbox/store"
	"github.com/rbaliyan/inbox/store/memory"
	"github.com/redis/go-redis/v9"
)

// newUser registers a user in st and returns the caller's copy.
func newUser(t *testing.T, st *memory.Store, id, name string) *store.User {
	t.Helper()
	u := &store.User{
		ID:      id,
		Profile: store.Profile{Name: name},
		Auth:    store.Auth{Local: store.LocalAuth{Username: id}},
		Items: store.Items{
			Gear:       store.Gear{Equipped: map[string]string{"weapon": id + "-sword"}},
			CurrentPet: id + "-pet",
		},
		Preferences: store.Preferences{Skin: id + "-skin", Language: "en"},
		Stats:       store.Stats{Class: "warrior"},
		Contributor: &store.Contributor{Level: len(id)},
	}
	st.PutUser(u)
	return u
}

// setupTestService creates a connected service over a memory store.
func setupTestService(t *testing.T, opts ...Option) (Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc, err := NewService(append([]Option{WithStore(st)}, opts...)...)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { svc.Close(context.Background()) })
	return svc, st
}

func TestNewService(t *testing.T) {
	t.Run("requires store", func(t *testing.T) {
		_, err := NewService()
		if !errors.Is(err, ErrStoreRequired) {
			t.Errorf("expected ErrStoreRequired, got %v", err)
		}
	})

	t.Run("creates service with store", func(t *testing.T) {
		svc, err := NewService(WithStore(memory.New()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if svc.IsConnected() {
			t.Error("new service should not be connected")
		}
		if svc.Events() != nil {
			t.Error("events should be nil before connect")
		}
	})
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(WithStore(memory.New()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if !svc.IsConnected() {
		t.Error("expected connected")
	}
	if svc.Events() == nil {
		t.Error("expected events after connect")
	}

	// Double connect should fail
	if err := svc.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("expected ErrAlreadyConnected, got %v", err)
	}

	if err := svc.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if svc.IsConnected() {
		t.Error("expected disconnected after close")
	}

	// Double close should be safe
	if err := svc.Close(ctx); err != nil {
		t.Errorf("second close should not error, got %v", err)
	}

	// Reconnect works after close
	if err := svc.Connect(ctx); err != nil {
		t.Errorf("reconnect failed: %v", err)
	}
	svc.Close(ctx)
}

func TestClientAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("operations fail when not connected", func(t *testing.T) {
		st := memory.New()
		svc, _ := NewService(WithStore(st))
		mb := svc.Client(&store.User{ID: "alice"})

		if _, err := mb.Get(ctx, "msg123"); !errors.Is(err, ErrNotConnected) {
			t.Errorf("Get: expected ErrNotConnected, got %v", err)
		}
		if _, err := mb.Inbox(ctx, InboxOptions{}); !errors.Is(err, ErrNotConnected) {
			t.Errorf("Inbox: expected ErrNotConnected, got %v", err)
		}
		if _, err := mb.Send(ctx, &store.User{ID: "bob"}, "hi", nil); !errors.Is(err, ErrNotConnected) {
			t.Errorf("Send: expected ErrNotConnected, got %v", err)
		}
		if err := mb.Clear(ctx); !errors.Is(err, ErrNotConnected) {
			t.Errorf("Clear: expected ErrNotConnected, got %v", err)
		}
	})

	t.Run("invalid user is rejected", func(t *testing.T) {
		svc, _ := setupTestService(t)
		for _, u := range []*store.User{nil, {ID: ""}, {ID: "user:with:colons"}} {
			mb := svc.Client(u)
			if _, err := mb.Conversations(ctx); !errors.Is(err, ErrInvalidUserID) {
				t.Errorf("user %v: expected ErrInvalidUserID, got %v", u, err)
			}
		}
	})

	t.Run("client exposes its user", func(t *testing.T) {
		svc, st := setupTestService(t)
		alice := newUser(t, st, "alice", "Alice")
		if svc.Client(alice).User() != alice {
			t.Error("expected the same user pointer")
		}
	})
}

func TestConcurrentSends(t *testing.T) {
	ctx := context.Background()
	svc, st := setupTestService(t, WithMaxConcurrentSends(3))
	alice := newUser(t, st, "alice", "Alice")
	bob := newUser(t, st, "bob", "Bob")

	mb := svc.Client(alice)
	var wg sync.WaitGroup
	errChan := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each goroutine passes its own receiver copy; the store holds the counter.
			if _, err := mb.Send(ctx, bob.Clone(), "concurrent", nil); err != nil {
				errChan <- err
			}
		}()
	}
	wg.Wait()
	close(errChan)

	for err := range errChan {
		t.Errorf("concurrent send error: %v", err)
	}
	if st.Len() != 40 {
		t.Errorf("expected 40 stored copies, got %d", st.Len())
	}
	if n := st.User("bob").Inbox.NewMessages; n != 20 {
		t.Errorf("expected bob to have 20 new messages, got %d", n)
	}
}

// blockingMailer blocks until released, to hold a send in flight.
type blockingMailer struct {
	started chan struct{}
	release chan struct{}
}

func (m *blockingMailer) SendTxn(ctx context.Context, _ *store.User, _ string, _ []EmailVar) error {
	close(m.started)
	<-m.release
	return nil
}

func TestGracefulShutdown(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	mailer := &blockingMailer{started: make(chan struct{}), release: make(chan struct{})}
	svc, _ := NewService(WithStore(st), WithMailer(mailer))
	if err := svc.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	alice := newUser(t, st, "alice", "Alice")
	bob := newUser(t, st, "bob", "Bob")

	done := make(chan error, 1)
	go func() {
		_, err := svc.Client(alice).Send(ctx, bob, "during shutdown", nil)
		done <- err
	}()
	<-mailer.started

	closed := make(chan error, 1)
	go func() { closed <- svc.Close(ctx) }()

	select {
	case <-closed:
		t.Fatal("close returned while a send was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(mailer.release)
	if err := <-done; err != nil {
		t.Errorf("in-flight send failed: %v", err)
	}
	if err := <-closed; err != nil {
		t.Errorf("close returned error: %v", err)
	}
}

func TestShutdownTimeout(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	mailer := &blockingMailer{started: make(chan struct{}), release: make(chan struct{})}
	svc, _ := NewService(WithStore(st), WithMailer(mailer), WithShutdownTimeout(MinShutdownTimeout))
	if err := svc.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	alice := newUser(t, st, "alice", "Alice")
	bob := newUser(t, st, "bob", "Bob")

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Client(alice).Send(ctx, bob, "stuck", nil)
	}()
	<-mailer.started

	if err := svc.Close(ctx); err == nil {
		t.Error("expected graceful shutdown timeout error")
	}
	close(mailer.release)
	<-done
}

func TestEventTransports(t *testing.T) {
	ctx := context.Background()

	run := func(t *testing.T, opts ...Option) {
		t.Helper()
		svc, st := setupTestService(t, opts...)
		alice := newUser(t, st, "alice", "Alice")
		bob := newUser(t, st, "bob", "Bob")
		mb := svc.Client(alice)

		res, err := mb.Send(ctx, bob, "hello", nil)
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if ok, err := mb.Delete(ctx, res.Sent.ID); err != nil || !ok {
			t.Fatalf("delete: %v, %v", ok, err)
		}
		if err := svc.Client(bob).Clear(ctx); err != nil {
			t.Fatalf("clear: %v", err)
		}
	}

	t.Run("channel", func(t *testing.T) {
		run(t, WithEventTransport(channel.New()))
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		run(t, WithRedisClient(client))
	})
}

type recordingPlugin struct {
	mu      sync.Mutex
	calls   []string
	failOn  string
	initErr error
}

func (p *recordingPlugin) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	if call == p.failOn {
		return errors.New(call + " refused")
	}
	return nil
}

func (p *recordingPlugin) Name() string { return "recorder" }

func (p *recordingPlugin) Init(context.Context) error {
	if p.initErr != nil {
		return p.initErr
	}
	return p.record("init")
}

func (p *recordingPlugin) Close(context.Context) error { return p.record("close") }

func (p *recordingPlugin) BeforeSend(_ context.Context, _, _ *store.User, _ string) error {
	return p.record("before")
}

func (p *recordingPlugin) AfterSend(_ context.Context, _, _ *store.User, _ *SendResult) error {
	return p.record("after")
}

func TestPlugins(t *testing.T) {
	ctx := context.Background()

	t.Run("hooks run around send", func(t *testing.T) {
		p := &recordingPlugin{}
		svc, st := setupTestService(t, WithPlugin(p))
		alice := newUser(t, st, "alice", "Alice")
		bob := newUser(t, st, "bob", "Bob")

		if _, err := svc.Client(alice).Send(ctx, bob, "hi", nil); err != nil {
			t.Fatalf("send: %v", err)
		}
		svc.Close(ctx)

		want := []string{"init", "before", "after", "close"}
		if len(p.calls) != len(want) {
			t.Fatalf("expected calls %v, got %v", want, p.calls)
		}
		for i := range want {
			if p.calls[i] != want[i] {
				t.Errorf("call %d: expected %s, got %s", i, want[i], p.calls[i])
			}
		}
	})

	t.Run("BeforeSend aborts", func(t *testing.T) {
		p := &recordingPlugin{failOn: "before"}
		svc, st := setupTestService(t, WithPlugin(p))
		alice := newUser(t, st, "alice", "Alice")
		bob := newUser(t, st, "bob", "Bob")

		_, err := svc.Client(alice).Send(ctx, bob, "hi", nil)
		var pe *PluginError
		if !errors.As(err, &pe) || pe.Op != "BeforeSend" {
			t.Fatalf("expected BeforeSend PluginError, got %v", err)
		}
		if st.Len() != 0 {
			t.Errorf("expected nothing stored, got %d rows", st.Len())
		}
	})

	t.Run("init failure fails connect", func(t *testing.T) {
		p := &recordingPlugin{initErr: errors.New("boom")}
		svc, err := NewService(WithStore(memory.New()), WithPlugin(p))
		if err != nil {
			t.Fatalf("new service: %v", err)
		}
		if err := svc.Connect(ctx); err == nil {
			t.Fatal("expected connect to fail")
		}
		if svc.IsConnected() {
			t.Error("service should not be connected")
		}
	})
}
