package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rbaliyan/inbox/store"
)

// messageColumns lists the message columns in scan order.
const messageColumns = `id, owner_id, uuid, peer_name, peer_username, text, timestamp, sent, user_styles, contributor, backer`

// messageRow is the sqlx scan target for a message row.
type messageRow struct {
	ID           string    `db:"id"`
	OwnerID      string    `db:"owner_id"`
	UUID         string    `db:"uuid"`
	PeerName     string    `db:"peer_name"`
	PeerUsername string    `db:"peer_username"`
	Text         string    `db:"text"`
	Timestamp    time.Time `db:"timestamp"`
	Sent         bool      `db:"sent"`
	UserStyles   *string   `db:"user_styles"`
	Contributor  *string   `db:"contributor"`
	Backer       *string   `db:"backer"`
}

// marshalNullable encodes v as JSON text, or returns nil for a nil pointer
// so the column stores SQL NULL. JSONB values travel as text: lib/pq would
// send []byte as bytea.
func marshalNullable[T any](v *T) (*string, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	text := string(data)
	return &text, nil
}

// unmarshalNullable decodes a nullable JSONB column.
func unmarshalNullable[T any](text *string) (*T, error) {
	if text == nil || *text == "" || *text == "null" {
		return nil, nil
	}
	v := new(T)
	if err := json.Unmarshal([]byte(*text), v); err != nil {
		return nil, err
	}
	return v, nil
}

func messageToRow(m *store.Message) (*messageRow, error) {
	styles, err := marshalNullable(m.UserStyles)
	if err != nil {
		return nil, fmt.Errorf("marshal user styles: %w", err)
	}
	contributor, err := marshalNullable(m.Contributor)
	if err != nil {
		return nil, fmt.Errorf("marshal contributor: %w", err)
	}
	backer, err := marshalNullable(m.Backer)
	if err != nil {
		return nil, fmt.Errorf("marshal backer: %w", err)
	}
	return &messageRow{
		ID:           m.ID,
		OwnerID:      m.OwnerID,
		UUID:         m.UUID,
		PeerName:     m.User,
		PeerUsername: m.Username,
		Text:         m.Text,
		Timestamp:    m.Timestamp.UTC(),
		Sent:         m.Sent,
		UserStyles:   styles,
		Contributor:  contributor,
		Backer:       backer,
	}, nil
}

func rowToMessage(r *messageRow) (*store.Message, error) {
	styles, contributor, backer, err := decodePeer(r.UserStyles, r.Contributor, r.Backer)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", r.ID, err)
	}
	return &store.Message{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		UUID:        r.UUID,
		User:        r.PeerName,
		Username:    r.PeerUsername,
		Text:        r.Text,
		Timestamp:   r.Timestamp.UTC(),
		Sent:        r.Sent,
		UserStyles:  styles,
		Contributor: contributor,
		Backer:      backer,
	}, nil
}

func decodePeer(stylesJSON, contributorJSON, backerJSON *string) (*store.UserStyles, *store.Contributor, *store.Backer, error) {
	styles, err := unmarshalNullable[store.UserStyles](stylesJSON)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("unmarshal user styles: %w", err)
	}
	contributor, err := unmarshalNullable[store.Contributor](contributorJSON)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("unmarshal contributor: %w", err)
	}
	backer, err := unmarshalNullable[store.Backer](backerJSON)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("unmarshal backer: %w", err)
	}
	return styles, contributor, backer, nil
}
