package models

import "time"

// User is a stored credential record. PasswordHash is never serialized to
// clients.
type User struct {
	ID           int64
	UserName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity is the resolved "who is making this request" pair.
type Identity struct {
	UserID   int64
	UserName string
}

// Identity returns the public identity of the user.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, UserName: u.UserName}
}
