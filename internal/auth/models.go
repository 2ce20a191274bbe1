package auth

import "time"

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// Session is the single live session of an operator. Logging in again
// replaces it.
type Session struct {
	SessionID string    `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"not null;unique" json:"-"`
	ExpiresAt time.Time `gorm:"not null"`
}

type User struct {
	UserID         string    `gorm:"primaryKey" json:"user_id"`
	Username       string    `gorm:"not null;uniqueIndex" json:"username"`
	Email          string    `gorm:"index" json:"email"`
	Name           string    `json:"name"`
	Password       string    `json:"password,omitempty" gorm:"-"`
	HashedPassword string    `json:"-"`
	Role           string    `gorm:"not null;default:'user'" json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	Session        Session   `gorm:"foreignKey:UserID" json:"-"`
}

func (Session) TableName() string { return "siren_auth.sessions" }
func (User) TableName() string    { return "siren_auth.users" }

func validRole(role string) bool {
	switch role {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}
