package model

import "time"

// User owns zero or more API keys. Apikey is a denormalized pointer to the
// most recently issued key; the full history lives in the apikeys table.
// Users are created implicitly on first issuance for a new email and are
// never deleted by this subsystem.
type User struct {
	ID        int64     `json:"id" db:"id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Email     string    `json:"email" db:"email"`
	Apikey    *string   `json:"apikey" db:"apikey"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserWithKeyCount is a User annotated with the number of keys ever issued to
// it, as returned by the user listing.
type UserWithKeyCount struct {
	User
	TotalAPIKeys int `json:"total_apikeys" db:"total_apikeys"`
}
