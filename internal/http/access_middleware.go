package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prepwise/creditcore/internal/accounts"
	"github.com/prepwise/creditcore/internal/cache"
	"github.com/prepwise/creditcore/internal/logging"
	"github.com/prepwise/creditcore/internal/security"
)

// Context keys set by the access middlewares.
const (
	ContextAccountID = "accountID"
	ContextAdminID   = "adminID"
)

// AccountAccessMiddleware validates account JWTs. The identity is read through profiles and
// falls back to the store on a miss; balances are never taken from the cache.
func AccountAccessMiddleware(store *accounts.Store, profiles cache.ProfileCache, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			return
		}
		claims, errJWT := security.ParseToken(secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := c.Request.Context()
		var profile cache.Profile
		found := false
		if profiles != nil {
			var errGet error
			profile, found, errGet = profiles.Get(ctx, claims.AccountID)
			if errGet != nil {
				logging.FromContext(c).WithError(errGet).Warn("profile cache read failed")
			}
		}
		if !found {
			account, errFind := store.FindByID(ctx, claims.AccountID)
			if errFind != nil {
				status, message := ErrorStatus(errFind)
				if status == http.StatusNotFound {
					status, message = http.StatusUnauthorized, "account not found"
				}
				c.AbortWithStatusJSON(status, gin.H{"error": message})
				return
			}
			profile = cache.Profile{AccountID: account.ID, Email: account.Email, Disabled: account.Disabled}
			if profiles != nil {
				if errSet := profiles.Set(ctx, profile); errSet != nil {
					logging.FromContext(c).WithError(errSet).Warn("profile cache write failed")
				}
			}
		}
		if profile.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}

		c.Set(ContextAccountID, profile.AccountID)
		c.Next()
	}
}

// AdminAccessMiddleware validates operator JWTs issued by the admin-token command.
func AdminAccessMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			return
		}
		claims, errJWT := security.ParseAdminToken(secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ContextAdminID, claims.AdminID)
		c.Next()
	}
}

// AccountID returns the authenticated account, or zero outside AccountAccessMiddleware.
func AccountID(c *gin.Context) uint64 {
	return contextID(c, ContextAccountID)
}

// AdminID returns the authenticated operator, or zero outside AdminAccessMiddleware.
func AdminID(c *gin.Context) uint64 {
	return contextID(c, ContextAdminID)
}

func contextID(c *gin.Context, key string) uint64 {
	val, exists := c.Get(key)
	if !exists {
		return 0
	}
	id, _ := val.(uint64)
	return id
}

// bearerToken extracts the token or aborts with 401.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
		return "", false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
		return "", false
	}
	return token, true
}
