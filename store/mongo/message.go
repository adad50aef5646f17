package mongo

import (
	"time"

	"github.com/rbaliyan/inbox/store"
)

// messageDoc is the MongoDB document representation of a message copy.
type messageDoc struct {
	ID          string             `bson:"_id"`
	OwnerID     string             `bson:"ownerId"`
	UUID        string             `bson:"uuid"`
	User        string             `bson:"user,omitempty"`
	Username    string             `bson:"username,omitempty"`
	Text        string             `bson:"text"`
	Timestamp   time.Time          `bson:"timestamp"`
	Sent        bool               `bson:"sent"`
	UserStyles  *store.UserStyles  `bson:"userStyles,omitempty"`
	Contributor *store.Contributor `bson:"contributor,omitempty"`
	Backer      *store.Backer      `bson:"backer,omitempty"`
}

func messageToDoc(m *store.Message) *messageDoc {
	return &messageDoc{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		UUID:        m.UUID,
		User:        m.User,
		Username:    m.Username,
		Text:        m.Text,
		Timestamp:   m.Timestamp.UTC(),
		Sent:        m.Sent,
		UserStyles:  m.UserStyles,
		Contributor: m.Contributor,
		Backer:      m.Backer,
	}
}

func docToMessage(doc *messageDoc) *store.Message {
	return &store.Message{
		ID:          doc.ID,
		OwnerID:     doc.OwnerID,
		UUID:        doc.UUID,
		User:        doc.User,
		Username:    doc.Username,
		Text:        doc.Text,
		Timestamp:   doc.Timestamp.UTC(),
		Sent:        doc.Sent,
		UserStyles:  doc.UserStyles,
		Contributor: doc.Contributor,
		Backer:      doc.Backer,
	}
}
