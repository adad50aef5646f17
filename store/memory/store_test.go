package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rbaliyan/inbox/store"
)

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func connected(t *testing.T) *Store {
	t.Helper()
	s := New()
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return s
}

func seed(t *testing.T, s *Store, ownerID, uuid string, sent bool, minute int, text string) *store.Message {
	t.Helper()
	m := &store.Message{
		OwnerID:   ownerID,
		UUID:      uuid,
		User:      uuid + "-name",
		Username:  uuid,
		Text:      text,
		Sent:      sent,
		Timestamp: base.Add(time.Duration(minute) * time.Minute),
	}
	if !sent {
		m.Contributor = &store.Contributor{Level: minute}
	}
	if err := s.Insert(context.Background(), m); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return m
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Find(ctx, store.InboxQuery{OwnerID: "a"}); !errors.Is(err, store.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Connect(ctx); !errors.Is(err, store.ErrAlreadyConnected) {
		t.Errorf("expected ErrAlreadyConnected, got %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Connect(ctx); err != nil {
		t.Errorf("reconnect after close: %v", err)
	}
}

func TestInsertPair(t *testing.T) {
	ctx := context.Background()
	s := connected(t)

	received := &store.Message{OwnerID: "bob", UUID: "alice", Text: "hi"}
	sent := &store.Message{OwnerID: "alice", UUID: "bob", Text: "hi", Sent: true}
	if err := s.InsertPair(ctx, received, sent); err != nil {
		t.Fatalf("insert pair: %v", err)
	}
	if received.ID == "" || sent.ID == "" || received.ID == sent.ID {
		t.Fatalf("expected distinct generated ids, got %q and %q", received.ID, sent.ID)
	}
	if received.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", s.Len())
	}

	// Stored copies do not alias the caller's structs.
	received.Text = "changed"
	got, err := s.FindOne(ctx, "bob", received.ID)
	if err != nil {
		t.Fatalf("find one: %v", err)
	}
	if got.Text != "hi" {
		t.Errorf("stored message aliased caller, text %q", got.Text)
	}

	dup := &store.Message{ID: sent.ID, OwnerID: "x"}
	if err := s.InsertPair(ctx, &store.Message{OwnerID: "y"}, dup); !errors.Is(err, store.ErrDuplicateEntry) {
		t.Errorf("expected ErrDuplicateEntry, got %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("failed pair insert left rows behind: %d", s.Len())
	}

	// A rejected pair leaves the caller's messages as they were.
	fresh := &store.Message{OwnerID: "y"}
	clash := &store.Message{ID: received.ID, OwnerID: "z"}
	if err := s.InsertPair(ctx, fresh, clash); !errors.Is(err, store.ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
	if fresh.ID != "" || !fresh.Timestamp.IsZero() || !clash.Timestamp.IsZero() {
		t.Errorf("failed insert modified caller messages: %+v, %+v", fresh, clash)
	}
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	s := connected(t)

	for i := 0; i < 10; i++ {
		seed(t, s, "u", "c1", false, i, "c1")
	}
	for i := 10; i < 15; i++ {
		seed(t, s, "u", "c2", false, i, "c2")
	}
	seed(t, s, "other", "c1", false, 100, "foreign")

	t.Run("all newest first", func(t *testing.T) {
		msgs, err := s.Find(ctx, store.InboxQuery{OwnerID: "u"})
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if len(msgs) != 15 {
			t.Fatalf("expected 15, got %d", len(msgs))
		}
		for i := 1; i < len(msgs); i++ {
			if msgs[i].Timestamp.After(msgs[i-1].Timestamp) {
				t.Fatalf("not newest first at %d", i)
			}
		}
	})

	t.Run("paged", func(t *testing.T) {
		first, _ := s.Find(ctx, store.InboxQuery{OwnerID: "u", Limit: 10})
		second, _ := s.Find(ctx, store.InboxQuery{OwnerID: "u", Limit: 10, Skip: 10})
		if len(first) != 10 || len(second) != 5 {
			t.Fatalf("expected 10 and 5, got %d and %d", len(first), len(second))
		}
		if !first[9].Timestamp.After(second[0].Timestamp) {
			t.Error("pages overlap")
		}
		beyond, _ := s.Find(ctx, store.InboxQuery{OwnerID: "u", Limit: 10, Skip: 20})
		if beyond == nil || len(beyond) != 0 {
			t.Errorf("expected empty non-nil page, got %v", beyond)
		}
	})

	t.Run("conversation filter", func(t *testing.T) {
		msgs, _ := s.Find(ctx, store.InboxQuery{OwnerID: "u", UUID: "c2"})
		if len(msgs) != 5 {
			t.Fatalf("expected 5, got %d", len(msgs))
		}
		for _, m := range msgs {
			if m.UUID != "c2" {
				t.Errorf("unexpected uuid %q", m.UUID)
			}
		}
	})

	t.Run("equal timestamps order by id", func(t *testing.T) {
		for _, id := range []string{"a", "c", "b"} {
			m := &store.Message{ID: id, OwnerID: "tie", UUID: "p", Timestamp: base}
			if err := s.Insert(ctx, m); err != nil {
				t.Fatalf("insert: %v", err)
			}
		}
		msgs, _ := s.Find(ctx, store.InboxQuery{OwnerID: "tie"})
		if len(msgs) != 3 || msgs[0].ID != "c" || msgs[1].ID != "b" || msgs[2].ID != "a" {
			t.Errorf("unexpected order: %v", ids(msgs))
		}
	})
}

func ids(msgs []*store.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestFindOneDeleteOne(t *testing.T) {
	ctx := context.Background()
	s := connected(t)
	m := seed(t, s, "bob", "alice", false, 0, "hi")

	if _, err := s.FindOne(ctx, "mallory", m.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("foreign owner: expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindOne(ctx, "bob", ""); !store.IsAbsent(err) {
		t.Errorf("empty id: expected absent, got %v", err)
	}
	if err := s.DeleteOne(ctx, "mallory", m.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("foreign delete: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteOne(ctx, "bob", m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteOne(ctx, "bob", m.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteByOwner(t *testing.T) {
	ctx := context.Background()
	s := connected(t)
	seed(t, s, "bob", "alice", false, 0, "1")
	seed(t, s, "bob", "carol", true, 1, "2")
	seed(t, s, "alice", "bob", true, 0, "1")

	n, err := s.DeleteByOwner(ctx, "bob")
	if err != nil {
		t.Fatalf("delete by owner: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
	if s.Len() != 1 {
		t.Errorf("expected alice's copy to remain, have %d rows", s.Len())
	}
}

func TestGroupConversations(t *testing.T) {
	ctx := context.Background()
	s := connected(t)

	seed(t, s, "u", "c1", false, 0, "c1 first")
	seed(t, s, "u", "c1", true, 5, "c1 last")
	seed(t, s, "u", "c2", false, 3, "c2 only")
	seed(t, s, "other", "c1", false, 50, "foreign")

	groups, err := s.GroupConversations(ctx, "u")
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].UUID != "c1" || groups[0].Count != 2 || groups[0].Text != "c1 last" {
		t.Errorf("unexpected first group: %+v", groups[0])
	}
	if groups[1].UUID != "c2" || groups[1].Count != 1 {
		t.Errorf("unexpected second group: %+v", groups[1])
	}

	empty, err := s.GroupConversations(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Errorf("expected no groups, got %v, %v", empty, err)
	}
}

func TestPeerStyles(t *testing.T) {
	ctx := context.Background()
	s := connected(t)

	seed(t, s, "u", "c1", false, 1, "old")
	seed(t, s, "u", "c1", false, 4, "new")
	seed(t, s, "u", "c1", true, 9, "sent copies are ignored")
	seed(t, s, "u", "c2", true, 2, "never replied")

	styles, err := s.PeerStyles(ctx, "u", []string{"c1", "c2"})
	if err != nil {
		t.Fatalf("peer styles: %v", err)
	}
	if len(styles) != 1 {
		t.Fatalf("expected styles for c1 only, got %v", styles)
	}
	if c := styles["c1"].Contributor; c == nil || c.Level != 4 {
		t.Errorf("expected latest received contributor, got %+v", c)
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := connected(t)
	s.PutUser(&store.User{ID: "alice"})

	users, err := s.FindUsers(ctx, []string{"alice", "ghost"})
	if err != nil {
		t.Fatalf("find users: %v", err)
	}
	if len(users) != 1 || users[0].ID != "alice" {
		t.Errorf("unexpected users: %v", users)
	}

	if err := s.IncrementNewMessages(ctx, "alice", 2); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if n := s.User("alice").Inbox.NewMessages; n != 2 {
		t.Errorf("expected 2 new messages, got %d", n)
	}
	if err := s.SetNewMessages(ctx, "alice", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if n := s.User("alice").Inbox.NewMessages; n != 0 {
		t.Errorf("expected 0 new messages, got %d", n)
	}
	if err := s.SetNewMessages(ctx, "ghost", 0); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
