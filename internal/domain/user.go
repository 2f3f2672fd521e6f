package domain

import "time"

// User is the marketplace identity the session core authenticates.
type User struct {
	ID           string
	Email        string
	Name         string
	Nickname     string
	Phone        string
	PasswordHash string
	Role         Role
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the cached snapshot of a signed-in user.
type Profile struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Role     Role   `json:"role"`
}

// Profile returns the cacheable view of the user.
func (u *User) Profile() Profile {
	return Profile{Email: u.Email, Name: u.Name, Nickname: u.Nickname, Role: u.Role}
}
