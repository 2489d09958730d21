package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	corehttp "github.com/prepwise/creditcore/internal/http"
	"github.com/prepwise/creditcore/internal/settings"
	"gorm.io/gorm"
)

// SettingsHandler writes runtime settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler wires a settings handler with its database.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

type putSettingRequest struct {
	Value json.RawMessage `json:"value"`
}

// Put stores a setting and refreshes the in-process snapshot.
func (h *SettingsHandler) Put(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	var body putSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.Value) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing value"})
		return
	}
	if errUpsert := settings.Upsert(c.Request.Context(), h.db, key, body.Value); errUpsert != nil {
		corehttp.RespondError(c, errUpsert)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": body.Value, "updated_at": settings.DBConfigUpdatedAt()})
}
