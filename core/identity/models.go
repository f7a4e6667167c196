package identity

import (
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"
)

// Identity is an authentication record. It carries credentials and display
// metadata only; application data (role, approval, year) lives on the profile
// document keyed by Identity.ID.
type Identity struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	EmailVerified bool        `json:"email_verified"`
	PhotoURL      null.String `json:"photo_url,omitempty"`
	SecretHash    []byte      `json:"-"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
	LastLogin     time.Time   `json:"last_login"` // UTC
}

func (idn *Identity) SetSecret(secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	idn.SecretHash = hash
	return nil
}

func (idn *Identity) CheckSecret(secret string) error {
	return bcrypt.CompareHashAndPassword(idn.SecretHash, []byte(secret))
}

// EventKind tags identity-change events.
type EventKind string

const (
	EventSignedIn  EventKind = "signed-in"
	EventSignedOut EventKind = "signed-out"
	EventUpdated   EventKind = "updated"
	EventDeleted   EventKind = "deleted"
)

// Event is emitted on every identity mutation. Identity is zero-valued for
// EventSignedOut and EventDeleted; ID is always set.
type Event struct {
	Kind     EventKind
	ID       string
	Identity Identity
}
