package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/dmitrijs2005/flocksync/internal/server/auth"
	"github.com/dmitrijs2005/flocksync/internal/server/models"
	"github.com/dmitrijs2005/flocksync/internal/server/repositories"
)

const saltSize = 32

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	ChurchID string `json:"church_id"`
}

type sessionResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	ChurchID string `json:"church_id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" || req.ChurchID == "" {
		s.respondError(w, http.StatusBadRequest, "email, password and church_id are required")
		return
	}

	salt := common.GenerateRandByteArray(saltSize)
	user := &models.User{
		Email:        req.Email,
		Name:         req.Name,
		ChurchID:     req.ChurchID,
		Salt:         salt,
		PasswordHash: auth.HashPassword([]byte(req.Password), salt),
	}

	if err := s.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			s.respondError(w, http.StatusConflict, "email already registered")
			return
		}
		s.log.Error(r.Context(), "failed to create user", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.log.Info(r.Context(), "account registered", "user_id", user.ID, "church_id", user.ChurchID)
	s.issueSession(w, r, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if errors.Is(err, common.ErrNotFound) {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "failed to load user", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if !auth.VerifyPassword([]byte(req.Password), user.Salt, user.PasswordHash) {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.issueSession(w, r, user)
}

func (s *Server) issueSession(w http.ResponseWriter, r *http.Request, user *models.User) {
	token, err := auth.GenerateToken(user.ID.String(), user.ChurchID, s.jwtSecret, s.jwtExpiry)
	if err != nil {
		s.log.Error(r.Context(), "failed to sign token", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.respondJSON(w, http.StatusOK, sessionResponse{
		Token:    token,
		UserID:   user.ID.String(),
		Name:     user.Name,
		ChurchID: user.ChurchID,
	})
}
