package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gfranca/barberhub/internal/database"
	appErrors "github.com/gfranca/barberhub/pkg/errors"
	"github.com/gfranca/barberhub/pkg/response"
)

// Health returns a simple status payload useful for readiness checks. When an
// access layer is supplied the database is pinged too.
func Health(access *database.Access) gin.HandlerFunc {
	return func(c *gin.Context) {
		if access != nil {
			err := access.Run(requestContext(c), database.ModeIdempotent, func(db *gorm.DB) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(requestContext(c))
			})
			if err != nil {
				response.Error(c, appErrors.ErrDatabaseUnavailable)
				return
			}
		}

		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
