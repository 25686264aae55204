package handler

import (
	"context"
	"net/http"

	"github.com/pnp-dms/docflow-api/internal/auth"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/pnp-dms/docflow-api/internal/mapper"
	"github.com/pnp-dms/docflow-api/internal/repository"
	"go.uber.org/zap"
)

// UserRepository interface for dependency injection
type UserRepository interface {
	Upsert(ctx context.Context, user *domain.User) error
	ListByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error)
}

type AuthHandler struct {
	userRepo UserRepository
	logger   *zap.Logger
}

func NewAuthHandler(userRepo *repository.UserRepository, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userRepo: userRepo,
		logger:   logger,
	}
}

// NewAuthHandlerWithMocks creates an auth handler with mock dependencies for testing
func NewAuthHandlerWithMocks(userRepo UserRepository, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userRepo: userRepo,
		logger:   logger,
	}
}

// Me godoc
// @Summary Get current authenticated user
// @Description Returns the current authenticated user with role and unit info
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.AuthUserDTO
// @Failure 401 {object} map[string]string "Unauthorized"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := auth.FromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "unauthorized",
		})
		return
	}

	// Upsert user in database so assignments can reference them
	user := &domain.User{
		BaseModel:   domain.BaseModel{ID: userCtx.UserID},
		Name:        userCtx.Name,
		Email:       userCtx.Email,
		Role:        userCtx.Role,
		Unit:        userCtx.Unit,
		Rank:        userCtx.Rank,
		Designation: userCtx.Designation,
		IsActive:    true,
	}

	if err := h.userRepo.Upsert(r.Context(), user); err != nil {
		h.logger.Warn("failed to upsert user", zap.Error(err))
	}

	dto := domain.AuthUserDTO{
		ID:          userCtx.UserID,
		Name:        userCtx.Name,
		Email:       userCtx.Email,
		Role:        userCtx.Role,
		Unit:        userCtx.Unit,
		Rank:        userCtx.Rank,
		Designation: userCtx.Designation,
		Initials:    userCtx.NameInitials(),
		IsAdmin:     userCtx.IsAdmin(),
	}

	respondJSON(w, http.StatusOK, dto)
}

// ListUsers godoc
// @Summary List users
// @Description Returns active users, optionally filtered by role, for stage assignment pickers
// @Tags Users
// @Produce json
// @Param role query string false "Filter by role" Enums(admin, personnel, authority)
// @Success 200 {array} domain.UserDTO
// @Failure 400 {object} domain.ErrorResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /users [get]
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := domain.UserRole(r.URL.Query().Get("role"))
	if role != "" && !role.IsValid() {
		respondJSON(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Bad Request",
			Message: "invalid role: must be one of admin, personnel, authority",
		})
		return
	}

	users, err := h.userRepo.ListByRole(r.Context(), role)
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, domain.ErrorResponse{
			Error:   "Internal Server Error",
			Message: "Failed to list users",
		})
		return
	}

	dtos := make([]domain.UserDTO, 0, len(users))
	for i := range users {
		dtos = append(dtos, mapper.ToUserDTO(&users[i]))
	}

	respondJSON(w, http.StatusOK, dtos)
}
