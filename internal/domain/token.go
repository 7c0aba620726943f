package domain

import "time"

// TokenPair is what login, register, and refresh return: a short-lived
// signed access token and a long-lived signed refresh token. Both are
// opaque bearer strings to callers.
type TokenPair struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	ExpiresIn    time.Duration `json:"-"`
}
