package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gfranca/barberhub/internal/services"
	appErrors "github.com/gfranca/barberhub/pkg/errors"
	"github.com/gfranca/barberhub/pkg/response"
)

// ProfileHandler exposes the authenticated profile endpoints.
type ProfileHandler struct {
	auth *services.AuthService
}

// NewProfileHandler builds the handler.
func NewProfileHandler(auth *services.AuthService) (*ProfileHandler, error) {
	if auth == nil {
		return nil, errors.New("handlers: auth service must be provided")
	}
	return &ProfileHandler{auth: auth}, nil
}

// GET /api/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	profile, err := h.auth.GetProfile(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, profile)
}

type updateProfileRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=120"`
	Email    *string `json:"email" validate:"omitempty,email"`
	CPF      *string `json:"cpf"`
	Passport *string `json:"passport"`
	Phone    *string `json:"phone"`
}

// PATCH /api/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	profile, err := h.auth.UpdateProfile(requestContext(c), userID, services.UpdateProfileInput{
		Name:     req.Name,
		Email:    req.Email,
		CPF:      req.CPF,
		Passport: req.Passport,
		Phone:    req.Phone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, profile)
}
