package sirens

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/sirenwatch/siren-backend/internal/db"
)

// coordinates is the latitude/longitude pair used by admin payloads.
type coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CreateRequest is one siren in a create or add_many body.
type CreateRequest struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Location    coordinates `json:"location"`
	Type        []string    `json:"type"`
	Status      Status      `json:"status"`
	LastChecked *time.Time  `json:"lastChecked,omitempty"`
	District    string      `json:"district"`
	Block       string      `json:"block"`
	ParentSite  string      `json:"parent_site"`
	Color       string      `json:"color"`
	Labels      []string    `json:"labels"`
}

func (req CreateRequest) toSiren() (Siren, error) {
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Name) == "" {
		return Siren{}, errors.New("id and name are required")
	}
	if req.District == "" || req.Block == "" || req.ParentSite == "" {
		return Siren{}, errors.New("district, block and parent_site are required")
	}

	s := Siren{
		ID:         strings.TrimSpace(req.ID),
		Name:       req.Name,
		Location:   Location{Lat: req.Location.Latitude, Lng: req.Location.Longitude},
		Types:      pq.StringArray(req.Type),
		Status:     req.Status,
		District:   req.District,
		Block:      req.Block,
		ParentSite: req.ParentSite,
		Color:      req.Color,
		Labels:     pq.StringArray(req.Labels),
		Playing:    false,
	}
	if s.Status == "" {
		s.Status = StatusInactive
	}
	if !s.Status.Valid() {
		return Siren{}, fmt.Errorf("invalid status %q", s.Status)
	}
	if s.Color == "" {
		s.Color = "#000000"
	}
	if req.LastChecked != nil {
		s.LastChecked = *req.LastChecked
	} else {
		s.LastChecked = time.Now()
	}
	return s, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ListSirens returns every siren in dashboard shape.
func ListSirens(w http.ResponseWriter, r *http.Request) {
	var all []Siren
	if err := db.DB.Order("id").Find(&all).Error; err != nil {
		http.Error(w, "Failed to fetch sirens: "+err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]View, 0, len(all))
	for _, s := range all {
		views = append(views, s.ToView())
	}
	writeJSON(w, http.StatusOK, views)
}

func GetSiren(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var s Siren
	if err := db.DB.First(&s, "id = ?", id).Error; err != nil {
		http.Error(w, "Siren not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.ToView())
}

// CreateSiren creates a new siren (admin only)
func CreateSiren(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s, err := req.toSiren()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := db.DB.Create(&s).Error; err != nil {
		http.Error(w, "Failed to create siren: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, s.ToView())
}

// UpdateSiren applies a partial update (admin only)
func UpdateSiren(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var s Siren
	if err := db.DB.First(&s, "id = ?", id).Error; err != nil {
		http.Error(w, "Siren not found", http.StatusNotFound)
		return
	}

	var updates struct {
		Name       *string      `json:"name,omitempty"`
		Location   *coordinates `json:"location,omitempty"`
		Type       *[]string    `json:"type,omitempty"`
		Status     *Status      `json:"status,omitempty"`
		District   *string      `json:"district,omitempty"`
		Block      *string      `json:"block,omitempty"`
		ParentSite *string      `json:"parent_site,omitempty"`
		Color      *string      `json:"color,omitempty"`
		Labels     *[]string    `json:"labels,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updateMap := make(map[string]interface{})
	if updates.Name != nil {
		updateMap["name"] = *updates.Name
	}
	if updates.Location != nil {
		updateMap["location_lat"] = updates.Location.Latitude
		updateMap["location_lng"] = updates.Location.Longitude
	}
	if updates.Type != nil {
		updateMap["types"] = pq.StringArray(*updates.Type)
	}
	if updates.Status != nil {
		if !updates.Status.Valid() {
			http.Error(w, "Invalid status", http.StatusBadRequest)
			return
		}
		updateMap["status"] = *updates.Status
	}
	if updates.District != nil {
		updateMap["district"] = *updates.District
	}
	if updates.Block != nil {
		updateMap["block"] = *updates.Block
	}
	if updates.ParentSite != nil {
		updateMap["parent_site"] = *updates.ParentSite
	}
	if updates.Color != nil {
		updateMap["color"] = *updates.Color
	}
	if updates.Labels != nil {
		updateMap["labels"] = pq.StringArray(*updates.Labels)
	}

	if len(updateMap) > 0 {
		if err := db.DB.Model(&s).Updates(updateMap).Error; err != nil {
			http.Error(w, "Failed to update siren: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := db.DB.First(&s, "id = ?", id).Error; err != nil {
		http.Error(w, "Siren not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.ToView())
}

// DeleteSiren removes a siren (admin only)
func DeleteSiren(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var s Siren
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&s, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&s).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "Siren not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to delete siren: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Siren deleted",
		"siren":   s.ToView(),
	})
}

type bulkError struct {
	Index int           `json:"index"`
	Siren CreateRequest `json:"siren"`
	Error string        `json:"error"`
}

// AddManySirens inserts each siren independently and reports per-item failures.
func AddManySirens(w http.ResponseWriter, r *http.Request) {
	var reqs []CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		http.Error(w, "Request body must be an array of sirens", http.StatusBadRequest)
		return
	}

	created := make([]View, 0, len(reqs))
	var failures []bulkError
	for i, req := range reqs {
		s, err := req.toSiren()
		if err == nil {
			err = db.DB.Create(&s).Error
		}
		if err != nil {
			failures = append(failures, bulkError{Index: i, Siren: req, Error: err.Error()})
			continue
		}
		created = append(created, s.ToView())
	}

	body := map[string]interface{}{
		"message": fmt.Sprintf("Successfully added %d sirens with %d errors", len(created), len(failures)),
		"sirens":  created,
	}
	if len(failures) > 0 {
		body["errors"] = failures
	}
	writeJSON(w, http.StatusCreated, body)
}
