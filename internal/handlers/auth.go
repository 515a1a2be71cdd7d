package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/auth"
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/validation"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		userCollection: userCollection,
	}
}

func (h *AuthHandler) issueTokens(user *models.User) (*models.LoginResponse, error) {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to generate token", err)
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to generate refresh token", err)
	}
	return &models.LoginResponse{Token: token, RefreshToken: refreshToken, User: *user}, nil
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		respondError(w, r, apperr.InvalidInput(err.Error()))
		return
	}

	user, err := h.userCollection.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, r, apperr.Unauthorized("Invalid credentials"))
			return
		}
		respondError(w, r, apperr.PersistenceFailure("Failed to load user", err))
		return
	}

	if user.Status == models.StatusBlocked {
		respondError(w, r, apperr.Unauthorized("Account is blocked"))
		return
	}

	if !h.authService.CheckPassword(req.Password, user.PasswordHash) {
		respondError(w, r, apperr.Unauthorized("Invalid credentials"))
		return
	}

	resp, err := h.issueTokens(user)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		log.WithError(err).WithField("user_id", user.ID.Hex()).Warn("failed to update last login")
	}

	respond(w, http.StatusOK, "User logged in successfully", resp)
}

// Register handles user registration. Admin accounts cannot be self registered.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	if err := validation.Struct(req); err != nil {
		respondError(w, r, apperr.InvalidInput(err.Error()))
		return
	}
	if !models.IsValidRole(req.Role) || req.Role == models.RoleAdmin {
		respondError(w, r, apperr.InvalidInput("Invalid role"))
		return
	}

	_, err := h.userCollection.FindUserByEmail(r.Context(), req.Email)
	switch {
	case err == nil:
		respondError(w, r, apperr.Conflict("Email already exists"))
		return
	case !errors.Is(err, db.ErrNotFound):
		respondError(w, r, apperr.PersistenceFailure("Failed to load user", err))
		return
	}

	passwordHash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.KindInternal, "Failed to hash password", err))
		return
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Name:         req.Name,
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: passwordHash,
		Role:         req.Role,
		Status:       models.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.userCollection.InsertUser(r.Context(), user); err != nil {
		respondError(w, r, apperr.PersistenceFailure("Failed to create user", err))
		return
	}

	resp, err := h.issueTokens(&user)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, http.StatusCreated, "User registered successfully", resp)
}

func (h *AuthHandler) currentUser(r *http.Request) (*models.User, error) {
	caller, err := callerFrom(r)
	if err != nil {
		return nil, err
	}
	user, err := h.userCollection.FindUserByID(r.Context(), caller.ID.Hex())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.PersistenceFailure("Failed to load user", err)
	}
	return user, nil
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Profile retrieved successfully", user)
}

type updateProfileRequest struct {
	Name        string `json:"name" validate:"omitempty,min=2,max=80"`
	Email       string `json:"email" validate:"omitempty,email"`
	PhoneNumber string `json:"phoneNumber"`
}

// UpdateProfile updates the current user's profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		respondError(w, r, apperr.InvalidInput(err.Error()))
		return
	}

	user, err := h.currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if req.Name != "" {
		user.Name = strings.TrimSpace(req.Name)
	}
	if req.PhoneNumber != "" {
		user.PhoneNumber = req.PhoneNumber
	}
	if req.Email != "" && req.Email != user.Email {
		existing, err := h.userCollection.FindUserByEmail(r.Context(), req.Email)
		if err == nil && existing.ID != user.ID {
			respondError(w, r, apperr.Conflict("Email already exists"))
			return
		}
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			respondError(w, r, apperr.PersistenceFailure("Failed to load user", err))
			return
		}
		user.Email = req.Email
	}

	if err := h.userCollection.UpdateUser(r.Context(), user.ID.Hex(), *user); err != nil {
		respondError(w, r, apperr.PersistenceFailure("Failed to update user", err))
		return
	}

	respond(w, http.StatusOK, "Profile updated successfully", user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

// ChangePassword changes the current user's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		respondError(w, r, apperr.InvalidInput(err.Error()))
		return
	}

	user, err := h.currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if !h.authService.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		respondError(w, r, apperr.Unauthorized("Current password is incorrect"))
		return
	}

	newPasswordHash, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.KindInternal, "Failed to hash password", err))
		return
	}

	user.PasswordHash = newPasswordHash
	if err := h.userCollection.UpdateUser(r.Context(), user.ID.Hex(), *user); err != nil {
		respondError(w, r, apperr.PersistenceFailure("Failed to update password", err))
		return
	}

	respond(w, http.StatusOK, "Password changed successfully", nil)
}
