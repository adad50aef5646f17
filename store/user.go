package store

import "maps"

// User is the subset of an account the inbox reads and writes.
type User struct {
	ID          string       `json:"_id" bson:"_id"`
	Profile     Profile      `json:"profile" bson:"profile"`
	Auth        Auth         `json:"auth" bson:"auth"`
	Preferences Preferences  `json:"preferences" bson:"preferences"`
	Inbox       InboxState   `json:"inbox" bson:"inbox"`
	Contributor *Contributor `json:"contributor,omitempty" bson:"contributor,omitempty"`
	Backer      *Backer      `json:"backer,omitempty" bson:"backer,omitempty"`
	Items       Items        `json:"items" bson:"items"`
	Stats       Stats        `json:"stats" bson:"stats"`
}

// DisplayName returns the profile name shown to other users.
func (u *User) DisplayName() string {
	return u.Profile.Name
}

// Username returns the login name.
func (u *User) Username() string {
	return u.Auth.Local.Username
}

type Profile struct {
	Name string `json:"name,omitempty" bson:"name,omitempty"`
}

type Auth struct {
	Local LocalAuth `json:"local" bson:"local"`
}

type LocalAuth struct {
	Username string `json:"username,omitempty" bson:"username,omitempty"`
}

// Preferences holds notification, locale and avatar settings.
type Preferences struct {
	EmailNotifications NotificationPrefs `json:"emailNotifications" bson:"emailNotifications"`
	PushNotifications  NotificationPrefs `json:"pushNotifications" bson:"pushNotifications"`
	Language           string            `json:"language,omitempty" bson:"language,omitempty"`

	Hair       Hair   `json:"hair" bson:"hair"`
	Skin       string `json:"skin,omitempty" bson:"skin,omitempty"`
	Shirt      string `json:"shirt,omitempty" bson:"shirt,omitempty"`
	Chair      string `json:"chair,omitempty" bson:"chair,omitempty"`
	Size       string `json:"size,omitempty" bson:"size,omitempty"`
	Background string `json:"background,omitempty" bson:"background,omitempty"`
	Costume    bool   `json:"costume" bson:"costume"`
}

// NotificationPrefs holds per-channel notification switches.
// A nil flag means the user never changed it.
type NotificationPrefs struct {
	NewPM *bool `json:"newPM,omitempty" bson:"newPM,omitempty"`
}

// NewPMEnabled reports whether new private message notifications are on.
// Only an explicit false disables them.
func (p NotificationPrefs) NewPMEnabled() bool {
	return p.NewPM == nil || *p.NewPM
}

type Hair struct {
	Color    string `json:"color,omitempty" bson:"color,omitempty"`
	Base     int    `json:"base" bson:"base"`
	Bangs    int    `json:"bangs" bson:"bangs"`
	Beard    int    `json:"beard" bson:"beard"`
	Mustache int    `json:"mustache" bson:"mustache"`
	Flower   int    `json:"flower" bson:"flower"`
}

type InboxState struct {
	NewMessages int `json:"newMessages" bson:"newMessages"`
}

type Items struct {
	Gear         Gear   `json:"gear" bson:"gear"`
	CurrentMount string `json:"currentMount,omitempty" bson:"currentMount,omitempty"`
	CurrentPet   string `json:"currentPet,omitempty" bson:"currentPet,omitempty"`
}

// Gear maps equipment slots to item keys.
type Gear struct {
	Equipped map[string]string `json:"equipped,omitempty" bson:"equipped,omitempty"`
	Costume  map[string]string `json:"costume,omitempty" bson:"costume,omitempty"`
}

type Stats struct {
	Class string `json:"class,omitempty" bson:"class,omitempty"`
	Buffs Buffs  `json:"buffs" bson:"buffs"`
}

// Buffs that change how an avatar is drawn.
type Buffs struct {
	Seafoam        bool `json:"seafoam" bson:"seafoam"`
	ShinySeed      bool `json:"shinySeed" bson:"shinySeed"`
	SpookySparkles bool `json:"spookySparkles" bson:"spookySparkles"`
	Snowball       bool `json:"snowball" bson:"snowball"`
}

// UserStyles is the avatar snapshot stored on messages so lists can draw
// the peer without loading their account.
type UserStyles struct {
	Items       StyleItems       `json:"items" bson:"items"`
	Preferences StylePreferences `json:"preferences" bson:"preferences"`
	Stats       StyleStats       `json:"stats" bson:"stats"`
}

type StyleItems struct {
	Gear         Gear   `json:"gear" bson:"gear"`
	CurrentMount string `json:"currentMount,omitempty" bson:"currentMount,omitempty"`
	CurrentPet   string `json:"currentPet,omitempty" bson:"currentPet,omitempty"`
}

type StylePreferences struct {
	Hair       Hair   `json:"hair" bson:"hair"`
	Skin       string `json:"skin,omitempty" bson:"skin,omitempty"`
	Shirt      string `json:"shirt,omitempty" bson:"shirt,omitempty"`
	Chair      string `json:"chair,omitempty" bson:"chair,omitempty"`
	Size       string `json:"size,omitempty" bson:"size,omitempty"`
	Background string `json:"background,omitempty" bson:"background,omitempty"`
	Costume    bool   `json:"costume" bson:"costume"`
}

type StyleStats struct {
	Class string `json:"class,omitempty" bson:"class,omitempty"`
	Buffs Buffs  `json:"buffs" bson:"buffs"`
}

// NewUserStyles captures the avatar of u. Gear maps are copied.
func NewUserStyles(u *User) *UserStyles {
	if u == nil {
		return nil
	}
	p := u.Preferences
	return &UserStyles{
		Items: StyleItems{
			Gear: Gear{
				Equipped: maps.Clone(u.Items.Gear.Equipped),
				Costume:  maps.Clone(u.Items.Gear.Costume),
			},
			CurrentMount: u.Items.CurrentMount,
			CurrentPet:   u.Items.CurrentPet,
		},
		Preferences: StylePreferences{
			Hair:       p.Hair,
			Skin:       p.Skin,
			Shirt:      p.Shirt,
			Chair:      p.Chair,
			Size:       p.Size,
			Background: p.Background,
			Costume:    p.Costume,
		},
		Stats: StyleStats{
			Class: u.Stats.Class,
			Buffs: u.Stats.Buffs,
		},
	}
}

// Clone returns a deep copy of s.
func (s *UserStyles) Clone() *UserStyles {
	if s == nil {
		return nil
	}
	c := *s
	c.Items.Gear.Equipped = maps.Clone(s.Items.Gear.Equipped)
	c.Items.Gear.Costume = maps.Clone(s.Items.Gear.Costume)
	return &c
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Contributor = u.Contributor.Clone()
	c.Backer = u.Backer.Clone()
	c.Items.Gear.Equipped = maps.Clone(u.Items.Gear.Equipped)
	c.Items.Gear.Costume = maps.Clone(u.Items.Gear.Costume)
	if u.Preferences.EmailNotifications.NewPM != nil {
		v := *u.Preferences.EmailNotifications.NewPM
		c.Preferences.EmailNotifications.NewPM = &v
	}
	if u.Preferences.PushNotifications.NewPM != nil {
		v := *u.Preferences.PushNotifications.NewPM
		c.Preferences.PushNotifications.NewPM = &v
	}
	return &c
}
