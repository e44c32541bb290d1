// Package user defines the account model used throughout the application,
// particularly for authentication and for owning folders and memes.
package user

import "time"

// User represents a registered account.
type User struct {
	// ID is the unique identifier of the user, meaning a UUID.
	ID string

	// Username is unique across all users, compared exactly.
	Username string

	// Email is unique across all users, compared case-insensitively.
	Email string

	// PasswordHash is the bcrypt hash of the user's password.
	// It never leaves the storage and auth layers.
	PasswordHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicUser is the API representation of a User.
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public returns the representation of the user that is safe to send to clients.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
