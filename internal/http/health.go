package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepwise/creditcore/internal/db"
	"github.com/prepwise/creditcore/internal/logging"
	"gorm.io/gorm"
)

const readinessTimeout = 2 * time.Second

// ReadinessHandler answers 200 while the database responds to a ping and 503 otherwise.
func ReadinessHandler(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if errPing := db.Ping(c.Request.Context(), conn, readinessTimeout); errPing != nil {
			logging.FromContext(c).WithError(errPing).Warn("readiness check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
