package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/prepwise/creditcore/internal/accounts"
	"github.com/prepwise/creditcore/internal/cache"
	"github.com/prepwise/creditcore/internal/config"
	corehttp "github.com/prepwise/creditcore/internal/http"
	"github.com/prepwise/creditcore/internal/http/api/admin/handlers"
	"github.com/prepwise/creditcore/internal/purchases"
	"github.com/prepwise/creditcore/internal/referrals"
)

// Dependencies are the services behind the operator routes.
type Dependencies struct {
	Accounts  *accounts.Store
	Purchases *purchases.Tracker
	Referrals *referrals.Service
	Profiles  cache.ProfileCache
	JWT       config.JWTConfig
}

// RegisterAdminRoutes registers operator routes guarded by admin JWTs.
func RegisterAdminRoutes(r *gin.Engine, deps Dependencies) {
	if r == nil || deps.Accounts == nil {
		return
	}

	admin := r.Group("/v0/admin")
	admin.Use(corehttp.AdminAccessMiddleware(deps.JWT.Secret))

	accountHandler := handlers.NewAccountHandler(deps.Accounts, deps.Profiles)
	admin.POST("/accounts/:id/adjust", accountHandler.Adjust)
	admin.GET("/accounts/:id/verify", accountHandler.Verify)
	admin.POST("/accounts/:id/disable", accountHandler.Disable)
	admin.POST("/accounts/:id/enable", accountHandler.Enable)

	if deps.Purchases != nil {
		transactionHandler := handlers.NewTransactionHandler(deps.Purchases)
		admin.GET("/transactions/:id", transactionHandler.Get)
		admin.POST("/transactions/:id/bind", transactionHandler.Bind)
		admin.POST("/transactions/:id/fail", transactionHandler.Fail)
	}

	if deps.Referrals != nil {
		referralHandler := handlers.NewReferralHandler(deps.Referrals)
		admin.POST("/referrals/:id/credit-referrer", referralHandler.CreditReferrer)
	}

	settingsHandler := handlers.NewSettingsHandler(deps.Accounts.DB())
	admin.PUT("/settings/:key", settingsHandler.Put)
}
