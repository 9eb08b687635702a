package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"grocery/internal/auth"
	"grocery/internal/logging"
	"grocery/internal/models"
)

type signUpRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    *auth.Session `json:"data,omitempty"`
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, authResponse{Message: "Invalid request body"})
		return
	}

	session, err := h.auth.SignUp(r.Context(), req.Username, req.Password, req.Role)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, authResponse{
			Success: true,
			Message: "User registered successfully",
			Data:    session,
		})
	case errors.Is(err, auth.ErrInvalidSignUp):
		writeJSON(w, http.StatusBadRequest, authResponse{Message: err.Error()})
	case errors.Is(err, models.ErrConflict):
		writeJSON(w, http.StatusConflict, authResponse{Message: "Username is already taken"})
	default:
		logging.FromContextOr(r.Context(), h.log).Error("signup_failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, authResponse{Message: "Failed to register user"})
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, authResponse{Message: "Invalid request body"})
		return
	}

	session, err := h.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, authResponse{
			Success: true,
			Message: "User logged in successfully",
			Data:    session,
		})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, authResponse{Message: "Incorrect username or password"})
	default:
		logging.FromContextOr(r.Context(), h.log).Error("login_failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, authResponse{Message: "Internal server error"})
	}
}
