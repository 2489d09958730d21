package handlers

import (
	"github.com/gin-gonic/gin"
	corehttp "github.com/prepwise/creditcore/internal/http"
)

// getAccountID extracts the authenticated account ID from gin context.
func getAccountID(c *gin.Context) uint64 {
	return corehttp.AccountID(c)
}
