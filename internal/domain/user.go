package domain

import "time"

type User struct {
	ID           string
	Email        string // empty for phone-only or social-only accounts
	Phone        string
	Name         string
	PasswordHash string // argon2id PHC string; empty when no password is set
	LastLoginIP  string
	LastLoginUA  string
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether password login is available for the user.
func (u User) HasPassword() bool { return u.PasswordHash != "" }

// LoginContext captures where a login came from. Recorded as a side effect
// of every successful authentication.
type LoginContext struct {
	IP        string
	UserAgent string
}
