package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/QuizzityMC/CanaryTalk-Endtoend/internal/auth"
	"github.com/QuizzityMC/CanaryTalk-Endtoend/internal/canaryerr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the error taxonomy to fixed status codes and
// stable messages.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, canaryerr.ErrValidation):
		writeError(w, http.StatusBadRequest, "Invalid request")
	case errors.Is(err, canaryerr.ErrAuth), errors.Is(err, canaryerr.ErrAuthorization):
		writeError(w, http.StatusUnauthorized, "Invalid token")
	case errors.Is(err, canaryerr.ErrConflict):
		writeError(w, http.StatusConflict, "Username already exists")
	case errors.Is(err, canaryerr.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	default:
		s.log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// bearerIdentity verifies the Authorization header of a REST request.
func (s *Server) bearerIdentity(r *http.Request) (auth.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Identity{}, canaryerr.ErrAuth
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header || token == "" {
		return auth.Identity{}, canaryerr.ErrAuth
	}
	return s.gate.Verify(token)
}

type registerRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	PublicKey string `json:"publicKey"`
}

type authResponse struct {
	Success  bool   `json:"success"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	user, err := s.users.Create(r.Context(), req.Username, hash, req.PublicKey)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	token, err := s.gate.IssueToken(user.ID, user.Username)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.log.WithField("username", user.Username).Info("user registered")
	writeJSON(w, http.StatusOK, authResponse{
		Success:  true,
		UserID:   user.ID,
		Username: user.Username,
		Token:    token,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password required")
		return
	}

	user, err := s.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, canaryerr.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		s.writeDomainError(w, err)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.gate.IssueToken(user.ID, user.Username)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Success:  true,
		UserID:   user.ID,
		Username: user.Username,
		Token:    token,
	})
}

type setPublicKeyRequest struct {
	UserID    string `json:"userId"`
	PublicKey string `json:"publicKey"`
}

func (s *Server) handleSetPublicKey(w http.ResponseWriter, r *http.Request) {
	identity, err := s.bearerIdentity(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var req setPublicKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId and publicKey required")
		return
	}

	// Only the identity itself may replace its key material.
	if identity.UserID != req.UserID {
		s.writeDomainError(w, canaryerr.ErrAuthorization)
		return
	}

	if err := s.users.SetPublicKey(r.Context(), req.UserID, req.PublicKey); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleGetPublicKey(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	user, err := s.users.GetByUsername(r.Context(), username)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"userId":    user.ID,
		"username":  user.Username,
		"publicKey": user.PublicKey,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := mux.Vars(r)["query"]

	users, err := s.users.Search(r.Context(), query)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"timestamp":         time.Now().UnixMilli(),
		"activeConnections": s.registry.Count(),
	})
}
