package sirens

import (
	"fmt"
	"log/slog"

	"github.com/sirenwatch/siren-backend/internal/db"
)

func Init() error {
	if err := db.EnsureSchema(db.DB, "siren"); err != nil {
		return fmt.Errorf("ensure schema siren: %w", err)
	}

	if err := db.DB.AutoMigrate(&Siren{}); err != nil {
		return fmt.Errorf("auto-migrate sirens: %w", err)
	}

	slog.Info("sirens module initialized")
	return nil
}
