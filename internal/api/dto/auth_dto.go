package dto

import (
	"time"

	"github.com/spec-kit/marketplace-auth/internal/domain"
)

// SigninRequest payload for sign-in.
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest payload for new accounts.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

// SessionResponse is returned by sign-in and refresh.
type SessionResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Email       string      `json:"email"`
	Nickname    string      `json:"nickname"`
	Role        domain.Role `json:"role"`
}

// NewSessionResponse maps a token pair to its response body. The refresh
// token travels only in the cookie.
func NewSessionResponse(pair *domain.TokenPair) SessionResponse {
	return SessionResponse{
		AccessToken: pair.AccessToken,
		ExpiresAt:   pair.AccessExpiresAt,
		Email:       pair.Email,
		Nickname:    pair.Nickname,
		Role:        pair.Role,
	}
}

// SignoutResponse confirms a sign-out.
type SignoutResponse struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string      `json:"id,omitempty"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Nickname  string      `json:"nickname"`
	Role      domain.Role `json:"role"`
	CreatedAt *time.Time  `json:"created_at,omitempty"`
}

// NewUserResponse maps a stored user.
func NewUserResponse(user *domain.User) UserResponse {
	resp := UserResponse{
		ID:       user.ID,
		Email:    user.Email,
		Name:     user.Name,
		Nickname: user.Nickname,
		Role:     user.Role,
	}
	if !user.CreatedAt.IsZero() {
		createdAt := user.CreatedAt
		resp.CreatedAt = &createdAt
	}
	return resp
}

// NewProfileResponse maps a cached profile snapshot.
func NewProfileResponse(profile *domain.Profile) UserResponse {
	return UserResponse{
		Email:    profile.Email,
		Name:     profile.Name,
		Nickname: profile.Nickname,
		Role:     profile.Role,
	}
}

// AvailabilityResponse answers the email and nickname checks.
type AvailabilityResponse struct {
	Value     string `json:"value"`
	Available bool   `json:"available"`
}
