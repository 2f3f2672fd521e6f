package domain

import "time"

// TokenPair is the result of a sign-in or refresh. Both tokens carry the
// bearer prefix.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Email            string
	Nickname         string
	Role             Role
}
