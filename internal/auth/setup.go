package auth

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sirenwatch/siren-backend/internal/db"
)

// Init migrates the auth tables. A positive ttl overrides the session lifetime.
func Init(ttl time.Duration) error {
	if ttl > 0 {
		sessionTTL = ttl
	}

	if err := db.EnsureSchema(db.DB, "siren_auth"); err != nil {
		return fmt.Errorf("ensure schema siren_auth: %w", err)
	}
	if err := db.DB.AutoMigrate(&User{}, &Session{}); err != nil {
		return fmt.Errorf("auto-migrate auth tables: %w", err)
	}

	slog.Info("auth module initialized", "session_ttl", sessionTTL)
	return nil
}
