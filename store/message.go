package store

import (
	"time"
)

// Message is one owner's copy of a private message.
//
// User, Username, UserStyles, Contributor and Backer describe the peer
// (the other participant), captured when the copy was written.
type Message struct {
	ID          string       `json:"id" bson:"_id"`
	OwnerID     string       `json:"ownerId" bson:"ownerId"`
	UUID        string       `json:"uuid" bson:"uuid"`
	User        string       `json:"user,omitempty" bson:"user,omitempty"`
	Username    string       `json:"username,omitempty" bson:"username,omitempty"`
	Text        string       `json:"text" bson:"text"`
	Timestamp   time.Time    `json:"timestamp" bson:"timestamp"`
	Sent        bool         `json:"sent" bson:"sent"`
	UserStyles  *UserStyles  `json:"userStyles,omitempty" bson:"userStyles,omitempty"`
	Contributor *Contributor `json:"contributor,omitempty" bson:"contributor,omitempty"`
	Backer      *Backer      `json:"backer,omitempty" bson:"backer,omitempty"`

	// Set only on copies mapped for display to their owner.
	ToUUID            string       `json:"toUUID,omitempty" bson:"-"`
	ToUser            string       `json:"toUser,omitempty" bson:"-"`
	ToUserName        string       `json:"toUserName,omitempty" bson:"-"`
	ToUserContributor *Contributor `json:"toUserContributor,omitempty" bson:"-"`
	ToUserBacker      *Backer      `json:"toUserBacker,omitempty" bson:"-"`
}

// Clone returns a copy of m that shares no mutable state with it.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.UserStyles = m.UserStyles.Clone()
	c.Contributor = m.Contributor.Clone()
	c.Backer = m.Backer.Clone()
	c.ToUserContributor = m.ToUserContributor.Clone()
	c.ToUserBacker = m.ToUserBacker.Clone()
	return &c
}

// Contributor holds a user's contributor tier.
type Contributor struct {
	Level         int    `json:"level,omitempty" bson:"level,omitempty"`
	Admin         bool   `json:"admin,omitempty" bson:"admin,omitempty"`
	Text          string `json:"text,omitempty" bson:"text,omitempty"`
	Contributions string `json:"contributions,omitempty" bson:"contributions,omitempty"`
}

// Clone returns a copy of c.
func (c *Contributor) Clone() *Contributor {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// Backer holds a user's backer tier.
type Backer struct {
	Tier          int    `json:"tier,omitempty" bson:"tier,omitempty"`
	NPC           string `json:"npc,omitempty" bson:"npc,omitempty"`
	TokensApplied bool   `json:"tokensApplied,omitempty" bson:"tokensApplied,omitempty"`
}

// Clone returns a copy of b.
func (b *Backer) Clone() *Backer {
	if b == nil {
		return nil
	}
	cp := *b
	return &cp
}

// ConversationGroup is one row of GroupConversations: the latest message
// of a conversation and how many messages the owner holds in it.
type ConversationGroup struct {
	UUID      string    `json:"uuid" bson:"_id"`
	User      string    `json:"user,omitempty" bson:"user"`
	Username  string    `json:"username,omitempty" bson:"username"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Text      string    `json:"text" bson:"text"`
	Count     int       `json:"count" bson:"count"`
}

// PeerStyles are the display attributes of a conversation's peer.
type PeerStyles struct {
	UUID        string       `json:"uuid" bson:"_id"`
	UserStyles  *UserStyles  `json:"userStyles,omitempty" bson:"userStyles"`
	Contributor *Contributor `json:"contributor,omitempty" bson:"contributor"`
	Backer      *Backer      `json:"backer,omitempty" bson:"backer"`
}

// PeerStylesFromUser shapes a live user the same way a received message
// records its sender.
func PeerStylesFromUser(u *User) PeerStyles {
	return PeerStyles{
		UUID:        u.ID,
		UserStyles:  NewUserStyles(u),
		Contributor: u.Contributor.Clone(),
		Backer:      u.Backer.Clone(),
	}
}
