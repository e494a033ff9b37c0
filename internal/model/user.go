// Package model defines the data structures shared by the client SDK and the backend.
package model

import (
	"slices"
	"time"
)

// MemberSinceLayout renders User.CreatedAt as the "member since" display string.
const MemberSinceLayout = "January 2006"

// GuestID is the id the backend puts on its guest placeholder identity.
const GuestID = "guest"

// Identity is the user as the client sees it.
//
// A nil *Identity means nobody is signed in. The backend also returns a placeholder
// with IsGuest set when no session cookie is present; the client treats that exactly
// like nil (see IsAnonymous).
type Identity struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Location    string   `json:"location,omitempty"`
	Interests   []string `json:"interests"`
	MemberSince string   `json:"memberSince,omitempty"`
	IsGuest     bool     `json:"isGuest"`
}

// GuestIdentity is the placeholder the backend serves to callers without a session.
func GuestIdentity() *Identity {
	return &Identity{
		ID:        GuestID,
		Username:  GuestID,
		Interests: []string{},
		IsGuest:   true,
	}
}

// IsAnonymous reports whether id represents "no authenticated identity".
func IsAnonymous(id *Identity) bool {
	return id == nil || id.IsGuest
}

// Clone returns a deep copy. Clone of nil is nil.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.Interests = slices.Clone(i.Interests)
	if c.Interests == nil {
		c.Interests = []string{}
	}
	return &c
}

// Key returns the identity id, or "" for nil and guest identities.
func (i *Identity) Key() string {
	if IsAnonymous(i) {
		return ""
	}
	return i.ID
}

// User is a registered account as stored by the backend.
type User struct {
	ID           string    `json:"id"           db:"id"`
	Username     string    `json:"username"     db:"username"`
	Email        string    `json:"email"        db:"email"`
	PasswordHash string    `json:"-"            db:"password_hash"`
	DisplayName  string    `json:"displayName"  db:"display_name"`
	Location     string    `json:"location"     db:"location"`
	CreatedAt    time.Time `json:"createdAt"    db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"    db:"updated_at"`
}

// Identity renders the wire identity for u with the given interests.
func (u *User) Identity(interests []string) *Identity {
	if interests == nil {
		interests = []string{}
	}
	return &Identity{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Location:    u.Location,
		Interests:   interests,
		MemberSince: u.CreatedAt.Format(MemberSinceLayout),
	}
}
