package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose password in JSON
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type RegisterInput struct {
	Email    string `form:"email" json:"email"`
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

type LoginInput struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
	Next     string `form:"next" json:"next"`
}

// UpdateInput changes the email, the password or both. CurrentPassword is
// always required.
type UpdateInput struct {
	CurrentPassword string `form:"current_password" json:"current_password"`
	Email           string `form:"email" json:"email"`
	NewPassword     string `form:"new_password" json:"new_password"`
}

type DeleteInput struct {
	CurrentPassword string `form:"current_password" json:"current_password"`
}

type UpdateResult struct {
	User            *User
	EmailChanged    bool
	PasswordChanged bool
}
