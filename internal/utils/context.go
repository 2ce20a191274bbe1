package utils

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	ContextUserIDKey contextKey = "userID"
	ContextRoleKey   contextKey = "role"
)

// SessionData is the subset of a stored session the middleware needs.
type SessionData struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID := ctx.Value(ContextUserIDKey)
	userIDStr, ok := userID.(string)
	return userIDStr, ok
}

func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(ContextRoleKey).(string)
	return role, ok
}

func GenerateUUID() string {
	return uuid.New().String()
}
