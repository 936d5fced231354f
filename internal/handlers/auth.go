package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gfranca/barberhub/internal/services"
	"github.com/gfranca/barberhub/pkg/response"
)

// AuthHandler exposes the registration, login, and MFA verification flows.
type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler builds the handler.
func NewAuthHandler(auth *services.AuthService) (*AuthHandler, error) {
	if auth == nil {
		return nil, errors.New("handlers: auth service must be provided")
	}
	return &AuthHandler{auth: auth}, nil
}

type registerRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=120"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	CPF             string `json:"cpf"`
	Passport        string `json:"passport"`
	Phone           string `json:"phone" validate:"required"`
	IsForeigner     bool   `json:"is_foreigner"`
	Context         string `json:"context"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.Register(requestContext(c), services.RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		CPF:             req.CPF,
		Passport:        req.Passport,
		Phone:           req.Phone,
		IsForeigner:     req.IsForeigner,
		Context:         req.Context,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

type loginRequest struct {
	Credential string `json:"credential" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.Login(requestContext(c), req.Credential, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

type verifyMFARequest struct {
	TempToken string `json:"temp_token" validate:"required"`
	Code      string `json:"code" validate:"required"`
}

// POST /api/auth/verify-mfa
func (h *AuthHandler) VerifyMFA(c *gin.Context) {
	var req verifyMFARequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.VerifyMFA(requestContext(c), req.TempToken, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

type resetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.auth.ResetPassword(requestContext(c), req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "If the account exists, a reset email has been sent",
	})
}

type confirmEmailRequest struct {
	Token string `json:"token" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// POST /api/auth/confirm-email
func (h *AuthHandler) ConfirmEmail(c *gin.Context) {
	var req confirmEmailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.auth.ConfirmEmail(requestContext(c), req.Token, req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Email confirmed"})
}
