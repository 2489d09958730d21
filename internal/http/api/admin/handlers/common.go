package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// parseUintParam trims and parses a uint64 from a string parameter.
func parseUintParam(value string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(value), 10, 64)
}

// pathID reads the :id parameter, answering 400 when it is not a positive integer.
func pathID(c *gin.Context) (uint64, bool) {
	id, errParse := parseUintParam(c.Param("id"))
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
