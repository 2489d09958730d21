// Package http holds the gin engine and the middlewares shared by every route group.
package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prepwise/creditcore/internal/config"
	"github.com/prepwise/creditcore/internal/logging"
)

// NewEngine builds the gin engine with recovery, request logging, metrics and health routes.
func NewEngine(cfg config.ServerConfig) (*gin.Engine, error) {
	if mode := strings.TrimSpace(cfg.Mode); mode != "" {
		gin.SetMode(mode)
	}
	engine := gin.New()
	if errProxies := engine.SetTrustedProxies(cfg.TrustedProxies); errProxies != nil {
		return nil, fmt.Errorf("http: trusted proxies: %w", errProxies)
	}
	engine.Use(gin.Recovery(), logging.RequestLogger(), MetricsMiddleware())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", MetricsHandler())
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return engine, nil
}
