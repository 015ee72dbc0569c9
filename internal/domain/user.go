package domain

import "time"

// User is the domain entity for a user account.
// PasswordHash never leaves the service layer.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity is the authenticated caller resolved by the auth middleware.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Identity returns the public identity of u.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Name: u.Name}
}
