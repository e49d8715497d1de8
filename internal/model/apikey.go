package model

import "time"

// DateLayout is the wire format for validity window dates.
const DateLayout = "2006-01-02"

// KeyStatus is the lifecycle flag of an API key. It is set explicitly through
// the status-update operation or flipped to expired as a side effect of a
// validation check that observes the key past its outofdate.
type KeyStatus string

const (
	StatusActive   KeyStatus = "active"
	StatusInactive KeyStatus = "inactive"
	StatusExpired  KeyStatus = "expired"
)

// ValidStatuses lists the accepted status values, in the order they are
// reported in validation error messages.
var ValidStatuses = []KeyStatus{StatusActive, StatusInactive, StatusExpired}

// Valid reports whether s is one of the known status values.
func (s KeyStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusExpired:
		return true
	}
	return false
}

// APIKey represents an issued key row. UserID is nil for keys produced by the
// generate-only flow that have not yet been associated with a user; such keys
// never validate. OutOfDate mirrors LastDate at issuance and is the column the
// expiry check reads.
type APIKey struct {
	ID        int64     `json:"id" db:"id"`
	UserID    *int64    `json:"user_id" db:"user_id"`
	Key       string    `json:"key" db:"token"`
	StartDate string    `json:"start_date" db:"start_date"`
	LastDate  string    `json:"last_date" db:"last_date"`
	OutOfDate string    `json:"outofdate" db:"outofdate"`
	Status    KeyStatus `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// KeyWithOwner is an APIKey joined with its owning user's identity, as
// returned by list/detail endpoints and the validation lookup. The owner
// fields are nil for unassociated keys.
type KeyWithOwner struct {
	APIKey
	FirstName *string `json:"first_name" db:"first_name"`
	LastName  *string `json:"last_name" db:"last_name"`
	Email     *string `json:"email" db:"email"`
}

// Owner builds a User from the joined fields. Returns nil when the key has no
// associated user.
func (k *KeyWithOwner) Owner() *User {
	if k.UserID == nil {
		return nil
	}
	u := &User{ID: *k.UserID}
	if k.FirstName != nil {
		u.FirstName = *k.FirstName
	}
	if k.LastName != nil {
		u.LastName = *k.LastName
	}
	if k.Email != nil {
		u.Email = *k.Email
	}
	return u
}
