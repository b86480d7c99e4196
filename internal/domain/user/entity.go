package user

import (
	"time"

	"github.com/google/uuid"
)

// User represents the users table. A user is the principal that sends and
// receives messages; its role codes decide which side of a conversation it takes.
type User struct {
	ID           uuid.UUID `gorm:"primaryKey;size:36"`
	Name         string    `gorm:"size:30;not null;uniqueIndex"`
	DisplayName  string    `gorm:"size:100;not null"`
	Email        string    `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string    `gorm:"not null"`
	UserRole     int       `gorm:"not null;default:2001"`
	EditorRole   int       `gorm:"not null;default:0"`
	AdminRole    int       `gorm:"not null;default:0"`
	IsOnline     bool      `gorm:"not null;default:false"`
	LastSeen     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents the user_sessions table and backs refresh token rotation.
type Session struct {
	ID               uuid.UUID `gorm:"primaryKey;size:36"`
	UserID           uuid.UUID `gorm:"size:36;not null;index"`
	RefreshTokenHash string    `gorm:"size:64;not null"`
	ExpiresAt        time.Time `gorm:"not null"`
	IsRevoked        bool      `gorm:"not null;default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Session) TableName() string {
	return "user_sessions"
}

// Roles returns the role codes the user holds.
func (u User) Roles() []Role {
	roles := make([]Role, 0, 3)
	if u.UserRole != 0 {
		roles = append(roles, Role(u.UserRole))
	}
	if u.EditorRole != 0 {
		roles = append(roles, Role(u.EditorRole))
	}
	if u.AdminRole != 0 {
		roles = append(roles, Role(u.AdminRole))
	}
	return roles
}

func (u User) HasRole(r Role) bool {
	for _, have := range u.Roles() {
		if have == r {
			return true
		}
	}
	return false
}

func (u User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// SetRoles replaces the role columns. The user role is always kept.
func (u *User) SetRoles(roles ...Role) {
	u.UserRole = int(RoleUser)
	u.EditorRole = 0
	u.AdminRole = 0
	for _, r := range roles {
		switch r {
		case RoleEditor:
			u.EditorRole = int(RoleEditor)
		case RoleAdmin:
			u.AdminRole = int(RoleAdmin)
		}
	}
}
