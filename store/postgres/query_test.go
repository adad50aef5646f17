package postgres

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rbaliyan/inbox/store"
)

func TestBuildFindQuery(t *testing.T) {
	tests := []struct {
		name     string
		q        store.InboxQuery
		contains []string
		absent   []string
		args     []any
	}{
		{
			name:     "owner only",
			q:        store.InboxQuery{OwnerID: "u1"},
			contains: []string{"WHERE owner_id = $1", "ORDER BY timestamp DESC, id DESC"},
			absent:   []string{"uuid =", "LIMIT", "OFFSET"},
			args:     []any{"u1"},
		},
		{
			name:     "conversation",
			q:        store.InboxQuery{OwnerID: "u1", UUID: "peer"},
			contains: []string{"AND uuid = $2"},
			absent:   []string{"LIMIT"},
			args:     []any{"u1", "peer"},
		},
		{
			name:     "first page",
			q:        store.InboxQuery{OwnerID: "u1", Limit: 10},
			contains: []string{"LIMIT $2"},
			absent:   []string{"OFFSET"},
			args:     []any{"u1", 10},
		},
		{
			name:     "conversation second page",
			q:        store.InboxQuery{OwnerID: "u1", UUID: "peer", Limit: 10, Skip: 10},
			contains: []string{"AND uuid = $2", "LIMIT $3", "OFFSET $4"},
			args:     []any{"u1", "peer", 10, 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildFindQuery("msgs", tt.q)
			for _, c := range tt.contains {
				if !strings.Contains(query, c) {
					t.Errorf("query %q missing %q", query, c)
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(query, a) {
					t.Errorf("query %q should not contain %q", query, a)
				}
			}
			if !reflect.DeepEqual(args, tt.args) {
				t.Errorf("args = %v, want %v", args, tt.args)
			}
		})
	}
}

func TestGroupQueries(t *testing.T) {
	q := buildGroupQuery("msgs")
	for _, c := range []string{
		"DISTINCT ON (uuid)",
		"COUNT(*) OVER (PARTITION BY uuid)",
		"ORDER BY uuid, timestamp DESC, id DESC",
		"ORDER BY timestamp DESC",
		"FROM msgs",
	} {
		if !strings.Contains(q, c) {
			t.Errorf("group query missing %q", c)
		}
	}

	p := buildPeerStylesQuery("msgs")
	for _, c := range []string{"sent = FALSE", "uuid = ANY($2)", "DISTINCT ON (uuid)"} {
		if !strings.Contains(p, c) {
			t.Errorf("peer styles query missing %q", c)
		}
	}
}

func TestUserQueries(t *testing.T) {
	q := buildFindUsersQuery("people")
	for _, field := range []string{"contributor", "backer", "items", "preferences", "stats"} {
		if !strings.Contains(q, "'"+field+"', doc->'"+field+"'") {
			t.Errorf("user projection missing %s", field)
		}
	}
	if strings.Contains(q, "'profile'") {
		t.Error("user projection should not include profile")
	}

	set := buildSetCounterQuery("people", false)
	if strings.Contains(set, "COALESCE((doc->'inbox'->>'newMessages')") {
		t.Error("set query should not read the old counter")
	}
	inc := buildSetCounterQuery("people", true)
	if !strings.Contains(inc, "+ $2::int") {
		t.Errorf("increment query should add $2: %s", inc)
	}
}

func TestRowConversion(t *testing.T) {
	m := &store.Message{
		ID:        "m1",
		OwnerID:   "owner",
		UUID:      "peer",
		User:      "Peer",
		Username:  "peer",
		Text:      "hi",
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		UserStyles: &store.UserStyles{
			Items: store.StyleItems{CurrentPet: "Wolf-Base"},
		},
		Backer: &store.Backer{Tier: 45},
	}

	row, err := messageToRow(m)
	if err != nil {
		t.Fatalf("messageToRow: %v", err)
	}
	if row.Contributor != nil {
		t.Error("nil contributor should be stored as NULL")
	}

	got, err := rowToMessage(row)
	if err != nil {
		t.Fatalf("rowToMessage: %v", err)
	}
	if !reflect.DeepEqual(got, m) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, m)
	}
}

func TestDecodeUser(t *testing.T) {
	doc := `{"contributor":{"level":2},"backer":null,"items":{"currentMount":"Owl"},"preferences":{"skin":"915533"},"stats":{"class":"wizard"}}`
	u, err := decodeUser(userRow{ID: "u1", Doc: []byte(doc)})
	if err != nil {
		t.Fatalf("decodeUser: %v", err)
	}
	if u.ID != "u1" || u.Contributor == nil || u.Contributor.Level != 2 {
		t.Errorf("unexpected user: %+v", u)
	}
	if u.Backer != nil {
		t.Error("null backer should decode to nil")
	}
	if u.Items.CurrentMount != "Owl" || u.Stats.Class != "wizard" || u.Preferences.Skin != "915533" {
		t.Errorf("unexpected avatar fields: %+v", u)
	}
}
