package inbox

import (
	"context"
	"errors"
	"testing"

	"github.com/rbaliyan/inbox/store"
	"github.com/rbaliyan/inbox/store/memory"
)

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, st := setupTestService(t)
	alice := newUser(t, st, "alice", "Alice")
	bob := newUser(t, st, "bob", "Bob")

	res, err := svc.Client(alice).Send(ctx, bob, "hi", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	t.Run("cannot delete another owner's copy", func(t *testing.T) {
		ok, err := svc.Client(bob).Delete(ctx, res.Sent.ID)
		if err != nil || ok {
			t.Errorf("expected false, nil, got %v, %v", ok, err)
		}
		if st.Len() != 2 {
			t.Errorf("expected both copies to remain, got %d", st.Len())
		}
	})

	t.Run("unknown and malformed ids", func(t *testing.T) {
		for _, id := range []string{"missing", ""} {
			ok, err := svc.Client(bob).Delete(ctx, id)
			if err != nil || ok {
				t.Errorf("id %q: expected false, nil, got %v, %v", id, ok, err)
			}
		}
	})

	t.Run("deletes own copy only", func(t *testing.T) {
		ok, err := svc.Client(bob).Delete(ctx, res.Received.ID)
		if err != nil || !ok {
			t.Fatalf("expected true, nil, got %v, %v", ok, err)
		}
		if m, _ := svc.Client(bob).Get(ctx, res.Received.ID); m != nil {
			t.Error("message still readable after delete")
		}
		if m, _ := svc.Client(alice).Get(ctx, res.Sent.ID); m == nil {
			t.Error("sender's copy should survive")
		}
	})

	t.Run("second delete reports false", func(t *testing.T) {
		ok, err := svc.Client(bob).Delete(ctx, res.Received.ID)
		if err != nil || ok {
			t.Errorf("expected false, nil, got %v, %v", ok, err)
		}
	})
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	svc, st := setupTestService(t)
	alice := newUser(t, st, "alice", "Alice")
	bob := newUser(t, st, "bob", "Bob")

	for i := 0; i < 3; i++ {
		if _, err := svc.Client(alice).Send(ctx, bob, "hi", nil); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if bob.Inbox.NewMessages != 3 {
		t.Fatalf("expected 3 unread, got %d", bob.Inbox.NewMessages)
	}

	mb := svc.Client(bob)
	if err := mb.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if bob.Inbox.NewMessages != 0 {
		t.Errorf("expected client user counter reset, got %d", bob.Inbox.NewMessages)
	}
	if n := st.User("bob").Inbox.NewMessages; n != 0 {
		t.Errorf("expected stored counter reset, got %d", n)
	}
	msgs, _ := mb.Inbox(ctx, InboxOptions{})
	if len(msgs) != 0 {
		t.Errorf("expected empty inbox, got %d", len(msgs))
	}
	sent, _ := svc.Client(alice).Inbox(ctx, InboxOptions{})
	if len(sent) != 3 {
		t.Errorf("sender's copies should survive, got %d", len(sent))
	}

	// Clearing an empty inbox succeeds.
	if err := mb.Clear(ctx); err != nil {
		t.Errorf("second clear: %v", err)
	}
}

func TestClearUnknownUser(t *testing.T) {
	ctx := context.Background()
	svc, st := setupTestService(t)
	alice := newUser(t, st, "alice", "Alice")

	// bob has messages but no stored account, so the counter reset fails.
	bob := &store.User{ID: "bob", Profile: store.Profile{Name: "Bob"}}
	if err := st.Insert(ctx, messageCopy(bob, alice, "orphan", false, t0)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := svc.Client(bob).Clear(ctx)
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if st.Len() != 0 {
		t.Errorf("messages should be deleted without rollback, got %d", st.Len())
	}
}

type failingDeleteStore struct {
	*memory.Store
	err error
}

func (f failingDeleteStore) DeleteByOwner(context.Context, string) (int64, error) {
	return 0, f.err
}

func TestClearDeleteFails(t *testing.T) {
	ctx := context.Background()
	errDel := errors.New("bulk delete failed")
	st := failingDeleteStore{Store: memory.New(), err: errDel}
	svc, err := NewService(WithStore(st))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { svc.Close(context.Background()) })

	alice := newUser(t, st.Store, "alice", "Alice")
	bob := newUser(t, st.Store, "bob", "Bob")
	for i := 0; i < 2; i++ {
		if _, err := svc.Client(alice).Send(ctx, bob, "hi", nil); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	if err := svc.Client(bob).Clear(ctx); !errors.Is(err, errDel) {
		t.Fatalf("expected delete error, got %v", err)
	}
	// The counter reset went through, so the client's user reflects it.
	if bob.Inbox.NewMessages != 0 {
		t.Errorf("expected client user counter reset, got %d", bob.Inbox.NewMessages)
	}
	if n := st.User("bob").Inbox.NewMessages; n != 0 {
		t.Errorf("expected stored counter reset, got %d", n)
	}
	if st.Len() != 4 {
		t.Errorf("messages should remain after failed delete, got %d", st.Len())
	}
}
