package districts

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/sirenwatch/siren-backend/internal/db"
	"github.com/sirenwatch/siren-backend/internal/sirens"
)

type createRequest struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Blocks []string `json:"blocks"`
}

func (req createRequest) toDistrict() (District, error) {
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Name) == "" {
		return District{}, errors.New("id and name are required")
	}
	blocks := make([]string, 0, len(req.Blocks))
	seen := make(map[string]bool, len(req.Blocks))
	for _, b := range req.Blocks {
		b = strings.TrimSpace(b)
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		blocks = append(blocks, b)
	}
	return District{
		ID:     strings.TrimSpace(req.ID),
		Name:   strings.TrimSpace(req.Name),
		Blocks: pq.StringArray(blocks),
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func ListDistricts(w http.ResponseWriter, r *http.Request) {
	var all []District
	if err := db.DB.Order("name").Find(&all).Error; err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func GetDistrict(w http.ResponseWriter, r *http.Request) {
	var d District
	if err := db.DB.First(&d, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
		writeMessage(w, http.StatusNotFound, "District not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func CreateDistrict(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	d, err := req.toDistrict()
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := db.DB.Create(&d).Error; err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func UpdateDistrict(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var updates struct {
		Name   *string   `json:"name,omitempty"`
		Blocks *[]string `json:"blocks,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updateMap := make(map[string]interface{})
	if updates.Name != nil {
		updateMap["name"] = strings.TrimSpace(*updates.Name)
	}
	if updates.Blocks != nil {
		updateMap["blocks"] = pq.StringArray(*updates.Blocks)
	}

	var d District
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&d, "id = ?", id).Error; err != nil {
			return err
		}
		if len(updateMap) == 0 {
			return nil
		}
		if err := tx.Model(&d).Updates(updateMap).Error; err != nil {
			return err
		}
		return tx.First(&d, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeMessage(w, http.StatusNotFound, "District not found")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func DeleteDistrict(w http.ResponseWriter, r *http.Request) {
	var d District
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&d, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			return err
		}
		return tx.Delete(&d).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeMessage(w, http.StatusNotFound, "District not found")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "District deleted", "district": d})
}

// DashboardData returns every district with its blocks and their sirens.
func DashboardData(w http.ResponseWriter, r *http.Request) {
	var all []District
	if err := db.DB.Order("name").Find(&all).Error; err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	list, err := sirens.NewStore(db.DB).List(r.Context())
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, BuildDashboard(all, list))
}

type bulkError struct {
	Index    int           `json:"index"`
	District createRequest `json:"district"`
	Error    string        `json:"error"`
}

func AddManyDistricts(w http.ResponseWriter, r *http.Request) {
	var reqs []createRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeMessage(w, http.StatusBadRequest, "Request body must be an array of districts")
		return
	}

	created := make([]District, 0, len(reqs))
	var failures []bulkError
	for i, req := range reqs {
		d, err := req.toDistrict()
		if err == nil {
			err = db.DB.Create(&d).Error
		}
		if err != nil {
			failures = append(failures, bulkError{Index: i, District: req, Error: err.Error()})
			continue
		}
		created = append(created, d)
	}

	body := map[string]interface{}{
		"message":   fmt.Sprintf("Successfully added %d districts with %d errors", len(created), len(failures)),
		"districts": created,
	}
	if len(failures) > 0 {
		body["errors"] = failures
	}
	writeJSON(w, http.StatusCreated, body)
}
