// Package api assembles the Gin engine from middleware and route handlers.
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	iauth "github.com/gfranca/barberhub/internal/auth"
	"github.com/gfranca/barberhub/internal/database"
	"github.com/gfranca/barberhub/internal/handlers"
	"github.com/gfranca/barberhub/internal/middleware"
	"github.com/gfranca/barberhub/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(access *database.Access, auth *services.AuthService, jwt *iauth.JWTService) (*gin.Engine, error) {
	if access == nil {
		return nil, fmt.Errorf("api: resilient access must be provided")
	}
	if auth == nil {
		return nil, fmt.Errorf("api: auth service must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("api: jwt service must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	r.GET("/health", handlers.Health(access))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler, err := handlers.NewAuthHandler(auth)
	if err != nil {
		return nil, err
	}
	profileHandler, err := handlers.NewProfileHandler(auth)
	if err != nil {
		return nil, err
	}

	// Public auth routes
	public := r.Group("/api/auth")
	{
		public.POST("/register", authHandler.Register)
		public.POST("/login", authHandler.Login)
		public.POST("/verify-mfa", authHandler.VerifyMFA)
		public.POST("/reset-password", authHandler.ResetPassword)
		public.POST("/confirm-email", authHandler.ConfirmEmail)
	}

	// Protected routes
	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))
	{
		api.GET("/profile", profileHandler.Get)
		api.PATCH("/profile", profileHandler.Update)
	}

	return r, nil
}
