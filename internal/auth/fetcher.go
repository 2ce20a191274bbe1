package auth

import (
	"github.com/sirenwatch/siren-backend/internal/db"
	"github.com/sirenwatch/siren-backend/internal/utils"
)

// SessionInfo resolves session cookies against the sessions table and
// attaches the owner's role.
type SessionInfo struct{}

func (SessionInfo) FindSessionByID(id string) (utils.SessionData, error) {
	var session Session
	if err := db.DB.First(&session, "session_id = ?", id).Error; err != nil {
		return utils.SessionData{}, err
	}

	var user User
	if err := db.DB.Select("user_id", "role").First(&user, "user_id = ?", session.UserID).Error; err != nil {
		return utils.SessionData{}, err
	}

	return utils.SessionData{
		UserID:    session.UserID,
		Role:      user.Role,
		ExpiresAt: session.ExpiresAt,
	}, nil
}
