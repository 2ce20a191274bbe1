package districts

import (
	"time"

	"github.com/lib/pq"
)

// District groups sirens by administrative area. Blocks are plain names;
// sirens refer to a district and block by name.
type District struct {
	ID        string         `gorm:"primaryKey;size:64" json:"id"`
	Name      string         `gorm:"not null;uniqueIndex" json:"name"`
	Blocks    pq.StringArray `gorm:"type:text[]" json:"blocks"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (District) TableName() string {
	return "siren.districts"
}
