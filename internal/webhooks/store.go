package webhooks

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sirenwatch/siren-backend/internal/db"
)

type Delivery struct {
	DeliveryID string    `gorm:"primaryKey"`
	Source     string    `gorm:"not null"`
	Payload    string    `gorm:"type:text"`
	ReceivedAt time.Time `gorm:"not null;index"`
}

func (Delivery) TableName() string { return "siren.trigger_deliveries" }

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Record(ctx context.Context, deliveryID, source string, payload []byte) (bool, error) {
	res := s.db.WithContext(ctx).Exec(`
    insert into siren.trigger_deliveries
        (delivery_id, source, payload, received_at)
    values
        (?, ?, ?, ?)
    on conflict (delivery_id) do nothing
`, deliveryID, source, string(payload), time.Now().UTC())
	if res.Error != nil {
		return false, fmt.Errorf("record delivery %s: %w", deliveryID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) Release(ctx context.Context, deliveryID string) error {
	err := s.db.WithContext(ctx).Delete(&Delivery{}, "delivery_id = ?", deliveryID).Error
	if err != nil {
		return fmt.Errorf("release delivery %s: %w", deliveryID, err)
	}
	return nil
}

func Init() error {
	if err := db.EnsureSchema(db.DB, "siren"); err != nil {
		return fmt.Errorf("ensure schema siren: %w", err)
	}
	if err := db.DB.AutoMigrate(&Delivery{}); err != nil {
		return fmt.Errorf("auto-migrate trigger deliveries: %w", err)
	}
	return nil
}
