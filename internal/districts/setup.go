package districts

import (
	"fmt"
	"log/slog"

	"github.com/sirenwatch/siren-backend/internal/db"
)

func Init() error {
	if err := db.EnsureSchema(db.DB, "siren"); err != nil {
		return fmt.Errorf("ensure schema siren: %w", err)
	}
	if err := db.DB.AutoMigrate(&District{}); err != nil {
		return fmt.Errorf("auto-migrate districts: %w", err)
	}
	slog.Info("districts module initialized")
	return nil
}
