package sirens

import (
	"time"

	"github.com/lib/pq"
)

// Status is the connection-derived state of a siren. The relay only moves
// sirens between active and inactive; warning and alert are set by operators.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusWarning  Status = "warning"
	StatusAlert    Status = "alert"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusWarning, StatusAlert:
		return true
	}
	return false
}

type Location struct {
	Lat float64 `gorm:"not null" json:"lat"`
	Lng float64 `gorm:"not null" json:"lng"`
}

// Siren is a persisted broadcast unit. Status and Playing are tracked
// independently.
type Siren struct {
	ID          string         `gorm:"primaryKey;size:64" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	Location    Location       `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Playing     bool           `gorm:"not null;default:false" json:"playing"`
	Types       pq.StringArray `gorm:"type:text[]" json:"type"`
	Status      Status         `gorm:"type:varchar(16);not null;default:'inactive';index" json:"status"`
	LastChecked time.Time      `json:"lastChecked"`
	// Stamps of the operations that last wrote Status and Playing. Older
	// writes for either field are discarded.
	StatusChangedAt  *time.Time `json:"-"`
	PlayingChangedAt *time.Time `json:"-"`
	District    string         `gorm:"not null;index:idx_siren_district_block" json:"district"`
	Block       string         `gorm:"not null;index:idx_siren_district_block" json:"block"`
	ParentSite  string         `gorm:"not null" json:"parent_site"`
	Color       string         `gorm:"not null;default:'#000000'" json:"color"`
	Labels      pq.StringArray `gorm:"type:text[]" json:"labels"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (Siren) TableName() string {
	return "siren.sirens"
}

// View is the flattened shape the dashboard consumes.
type View struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        []string  `json:"type"`
	Location    string    `json:"location"`
	Status      Status    `json:"status"`
	Playing     bool      `json:"playing"`
	LastChecked time.Time `json:"lastChecked"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	District    string    `json:"district"`
	Block       string    `json:"block"`
	ParentSite  string    `json:"parent_site"`
	Color       string    `json:"color"`
	Labels      []string  `json:"labels"`
}

// ToView uses the district name as the human-readable location string.
func (s Siren) ToView() View {
	return View{
		ID:          s.ID,
		Name:        s.Name,
		Type:        nonNil(s.Types),
		Location:    s.District,
		Status:      s.Status,
		Playing:     s.Playing,
		LastChecked: s.LastChecked,
		Latitude:    s.Location.Lat,
		Longitude:   s.Location.Lng,
		District:    s.District,
		Block:       s.Block,
		ParentSite:  s.ParentSite,
		Color:       s.Color,
		Labels:      nonNil(s.Labels),
	}
}

// Summary is the per-siren entry returned by geofence triggers.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Location    Location  `json:"location"`
	Status      Status    `json:"status"`
	LastChecked time.Time `json:"lastChecked"`
	District    string    `json:"district"`
	Block       string    `json:"block"`
	ParentSite  string    `json:"parent_site"`
}

func (s Siren) ToSummary() Summary {
	return Summary{
		ID:          s.ID,
		Name:        s.Name,
		Color:       s.Color,
		Location:    s.Location,
		Status:      s.Status,
		LastChecked: s.LastChecked,
		District:    s.District,
		Block:       s.Block,
		ParentSite:  s.ParentSite,
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
