package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusight/edusight-api/internal/dto"
	"github.com/edusight/edusight-api/internal/middleware"
	"github.com/edusight/edusight-api/internal/service"
	appErrors "github.com/edusight/edusight-api/pkg/errors"
	"github.com/edusight/edusight-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service    *service.AuthService
	permission *service.PermissionService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService, permission *service.PermissionService) *AuthHandler {
	return &AuthHandler{service: svc, permission: permission}
}

// Login godoc
// @Summary Authenticate admin account
// @Description Authenticate by username and password, returns a JWT access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res)
}

// Me godoc
// @Summary Get current account
// @Description Returns the authenticated account's identity and access scope
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	account, ok := h.permission.Lookup(claims.Username)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.JSON(c, http.StatusOK, dto.AccountSummary{
		Username: account.Username,
		FullName: account.FullName,
		Email:    account.Email,
		Role:     account.Scope.Role,
		Scope:    account.Scope,
	})
}

// Accounts godoc
// @Summary List admin accounts
// @Description Lists the configured admin accounts and their access scopes
// @Tags Accounts
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /accounts [get]
func (h *AuthHandler) Accounts(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.permission.Accounts())
}
