package handler

import (
	"net/http"

	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/service"
	"go.uber.org/zap"
)

// AuthHandler handles profile and role requests
type AuthHandler struct {
	userService *service.UserService
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(userService *service.UserService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		logger:      logger,
	}
}

// Me godoc
// @Summary Get the current caller
// @Description Returns the resolved principal and, for signed-up users, the profile
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.MeDTO
// @Failure 401 {object} domain.ErrorResponse
// @Security BearerAuth
// @Security PortalToken
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalOrAnonymous(r.Context())

	profile, err := h.userService.Me(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "load profile")
		return
	}

	respondJSON(w, http.StatusOK, domain.MeDTO{
		Principal: p.ToDTO(),
		User:      profile,
	})
}

// Signup godoc
// @Summary Create the caller's profile
// @Description The first user to sign up becomes admin, everyone after that gets the user role
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body domain.SignupRequest true "Profile"
// @Success 201 {object} domain.UserDTO
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /signup [post]
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.userService.Signup(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "sign up")
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// SetRole godoc
// @Summary Change a user's global role
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body domain.SetRoleRequest true "Role"
// @Success 200 {object} domain.UserDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.ErrorResponse
// @Failure 422 {object} domain.ErrorResponse "Last admin cannot be demoted"
// @Security BearerAuth
// @Router /users/{id}/role [put]
func (h *AuthHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "user")
	if !ok {
		return
	}
	var req domain.SetRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.userService.SetRole(r.Context(), id, req.Role)
	if err != nil {
		handleServiceError(w, h.logger, err, "set role")
		return
	}
	respondFound(w, user, "User")
}
