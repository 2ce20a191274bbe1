package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sirenwatch/siren-backend/internal/db"
	"github.com/sirenwatch/siren-backend/internal/utils"
)

const minPasswordLength = 8

var sessionTTL = 6 * time.Hour

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (r registerRequest) validate() error {
	if strings.TrimSpace(r.Username) == "" || r.Password == "" {
		return errors.New("Username and password are required")
	}
	if len(r.Password) < minPasswordLength {
		return errors.New("Password must be at least 8 characters")
	}
	if r.Email != "" && !strings.Contains(r.Email, "@") {
		return errors.New("Invalid email address")
	}
	return nil
}

type userResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
}

func toResponse(u User) userResponse {
	return userResponse{UserID: u.UserID, Username: u.Username, Email: u.Email, Name: u.Name, Role: u.Role}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sessionCookie(r *http.Request, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     "session_id",
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	}
}

// RegisterHandler creates an operator account with the default role.
func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid Request Format", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var existing User
	if err := db.DB.First(&existing, "username = ?", req.Username).Error; err == nil {
		http.Error(w, "Username already taken", http.StatusConflict)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Server error hashing password", http.StatusInternalServerError)
		return
	}

	user := User{
		UserID:         utils.GenerateUUID(),
		Username:       strings.TrimSpace(req.Username),
		Email:          req.Email,
		Name:           req.Name,
		HashedPassword: string(hashed),
		Role:           RoleUser,
	}
	if err := db.DB.Create(&user).Error; err != nil {
		http.Error(w, "Failed to register user", http.StatusInternalServerError)
		return
	}

	slog.Info("operator registered", "user_id", user.UserID, "username", user.Username)
	writeJSON(w, http.StatusCreated, toResponse(user))
}

func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "Invalid Data", http.StatusBadRequest)
		return
	}

	var user User
	if err := db.DB.First(&user, "username = ?", creds.Username).Error; err != nil {
		http.Error(w, "Invalid Credentials", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(creds.Password)); err != nil {
		http.Error(w, "Invalid Credentials", http.StatusUnauthorized)
		return
	}

	session := Session{
		SessionID: utils.GenerateUUID(),
		UserID:    user.UserID,
		ExpiresAt: time.Now().Add(sessionTTL),
	}
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.UserID).Delete(&Session{}).Error; err != nil {
			return err
		}
		return tx.Create(&session).Error
	})
	if err != nil {
		slog.Error("failed to store session", "user_id", user.UserID, "error", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, sessionCookie(r, session.SessionID, int(sessionTTL.Seconds())))
	writeJSON(w, http.StatusOK, toResponse(user))
}

func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("session_id")
	if err != nil {
		http.Error(w, "Couldn't find cookie", http.StatusUnauthorized)
		return
	}

	res := db.DB.Where("session_id = ?", cookie.Value).Delete(&Session{})
	if res.Error != nil || res.RowsAffected == 0 {
		http.Error(w, "Couldn't find session", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, sessionCookie(r, "", -1))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var user User
	if err := db.DB.First(&user, "user_id = ?", userID).Error; err != nil {
		http.Error(w, "Couldn't find user", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(user))
}

// UpdatePasswordHandler checks the current password before storing the new one.
func UpdatePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Current and new password are required", http.StatusBadRequest)
		return
	}
	if len(body.NewPassword) < minPasswordLength {
		http.Error(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	userID, _ := utils.GetUserIDFromContext(r.Context())
	var user User
	if err := db.DB.First(&user, "user_id = ?", userID).Error; err != nil {
		http.Error(w, "Couldn't find user", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(body.CurrentPassword)); err != nil {
		http.Error(w, "Invalid current password", http.StatusUnauthorized)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Server error hashing password", http.StatusInternalServerError)
		return
	}
	if err := db.DB.Model(&user).Update("hashed_password", string(hashed)).Error; err != nil {
		http.Error(w, "Failed to update password", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// UpdateRoleHandler lets a superadmin promote or demote another operator.
func UpdateRoleHandler(w http.ResponseWriter, r *http.Request) {
	if role, _ := utils.GetRoleFromContext(r.Context()); role != RoleSuperAdmin {
		http.Error(w, "Forbidden: superadmin only", http.StatusForbidden)
		return
	}

	var body struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !validRole(body.Role) {
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	res := db.DB.Model(&User{}).Where("user_id = ?", id).Update("role", body.Role)
	if res.Error != nil {
		http.Error(w, "Failed to update role", http.StatusInternalServerError)
		return
	}
	if res.RowsAffected == 0 {
		http.Error(w, "Couldn't find user", http.StatusNotFound)
		return
	}

	slog.Info("operator role changed", "user_id", id, "role", body.Role)
	writeJSON(w, http.StatusOK, map[string]string{"user_id": id, "role": body.Role})
}
