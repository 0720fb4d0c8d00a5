package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserRole separates players from staff. Money-authorization endpoints
// require the staff role.
type UserRole string

const (
	RolePlayer UserRole = "player"
	RoleStaff  UserRole = "staff"
)

// User is an authentication identity. Players additionally own a
// Player row holding the balance.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsStaff reports whether the user may authorize money operations.
func (u *User) IsStaff() bool {
	return u.Role == RoleStaff
}
