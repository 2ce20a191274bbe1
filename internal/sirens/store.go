package sirens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound = errors.New("siren not found")

	// ErrStale is returned by UpdateState when newer writes already cover
	// every field of the patch.
	ErrStale = errors.New("siren state already newer")
)

// StatePatch is a partial update of the relay-owned fields of a siren. A zero
// Status or nil Playing leaves that field unchanged.
type StatePatch struct {
	Status      Status
	Playing     *bool
	LastChecked time.Time
}

// Store is the gorm-backed device registry used by the relay hub.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// UpdateState applies patch to the siren with the given id under a row lock.
// Fields whose last write is newer than patch.LastChecked are left alone; a
// patch with nothing left to apply returns ErrStale.
func (s *Store) UpdateState(ctx context.Context, id string, patch StatePatch) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur Siren
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cur, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		next, ok := patch.Apply(cur)
		if !ok {
			return ErrStale
		}
		return tx.Model(&Siren{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":             next.Status,
			"status_changed_at":  next.StatusChangedAt,
			"playing":            next.Playing,
			"playing_changed_at": next.PlayingChangedAt,
			"last_checked":       next.LastChecked,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("update siren %s: %w", id, err)
	}
	return nil
}

// Apply returns cur with patch applied. A field is written only when its
// previous write is not newer than patch.LastChecked; ok is false when no
// field was written.
func (p StatePatch) Apply(cur Siren) (next Siren, ok bool) {
	at := p.LastChecked
	if p.Status != "" && notAfter(cur.StatusChangedAt, at) {
		cur.Status = p.Status
		cur.StatusChangedAt = &at
		ok = true
	}
	if p.Playing != nil && notAfter(cur.PlayingChangedAt, at) {
		cur.Playing = *p.Playing
		cur.PlayingChangedAt = &at
		ok = true
	}
	if ok && at.After(cur.LastChecked) {
		cur.LastChecked = at
	}
	return cur, ok
}

func notAfter(prev *time.Time, at time.Time) bool {
	return prev == nil || !prev.After(at)
}

func (s *Store) Find(ctx context.Context, id string) (*Siren, error) {
	var siren Siren
	err := s.db.WithContext(ctx).First(&siren, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find siren %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find siren %s: %w", id, err)
	}
	return &siren, nil
}

func (s *Store) List(ctx context.Context) ([]Siren, error) {
	var all []Siren
	if err := s.db.WithContext(ctx).Order("id").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("list sirens: %w", err)
	}
	return all, nil
}
