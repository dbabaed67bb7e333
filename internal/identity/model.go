package identity

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no identity exists for the requested id.
var ErrNotFound = errors.New("identity not found")

// Identity is one end user, keyed by the platform's numeric user id.
type Identity struct {
	ID           string
	FirstName    string
	LastName     string
	Username     string
	PhoneNumber  *string
	LanguageCode string
	IsPremium    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile carries the platform-supplied fields written on login.
type Profile struct {
	ID           string
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
	IsPremium    bool
}

// ContactUpdate is what a shared contact card writes onto an existing identity.
type ContactUpdate struct {
	PhoneNumber string
	FirstName   string
	LastName    string
	Username    string
}
