package front

import (
	"github.com/gin-gonic/gin"
	"github.com/prepwise/creditcore/internal/accounts"
	"github.com/prepwise/creditcore/internal/billing"
	"github.com/prepwise/creditcore/internal/cache"
	"github.com/prepwise/creditcore/internal/config"
	corehttp "github.com/prepwise/creditcore/internal/http"
	"github.com/prepwise/creditcore/internal/http/api/front/handlers"
	"github.com/prepwise/creditcore/internal/purchases"
	"github.com/prepwise/creditcore/internal/referrals"
)

// Dependencies are the services behind the front-end routes.
type Dependencies struct {
	Accounts  *accounts.Store
	Purchases *purchases.Tracker
	Referrals *referrals.Service
	Catalog   *billing.Catalog
	Profiles  cache.ProfileCache
	JWT       config.JWTConfig
	Limiter   *corehttp.RateLimiter
}

// RegisterFrontRoutes registers public and authenticated front-end routes.
func RegisterFrontRoutes(r *gin.Engine, deps Dependencies) {
	if r == nil || deps.Accounts == nil {
		return
	}

	front := r.Group("/v0/front")

	authHandler := handlers.NewAuthHandler(deps.Accounts, deps.Referrals, deps.JWT)
	limited := front.Group("")
	limited.Use(deps.Limiter.Middleware())
	limited.POST("/register", authHandler.Register)
	limited.POST("/login", authHandler.Login)

	authed := front.Group("")
	authed.Use(corehttp.AccountAccessMiddleware(deps.Accounts, deps.Profiles, deps.JWT.Secret))

	profileHandler := handlers.NewProfileHandler(deps.Accounts)
	authed.GET("/profile", profileHandler.Get)
	authed.GET("/ledger", profileHandler.Ledger)

	spendHandler := handlers.NewSpendHandler(deps.Accounts)
	authed.POST("/spend", spendHandler.Spend)

	if deps.Purchases != nil && deps.Catalog != nil {
		purchaseHandler := handlers.NewPurchaseHandler(deps.Purchases, deps.Catalog)
		authed.GET("/packs", purchaseHandler.Packs)
		authed.POST("/purchases", purchaseHandler.Create)
		authed.GET("/purchases/:id", purchaseHandler.Get)
	}

	if deps.Referrals != nil {
		referralHandler := handlers.NewReferralCodeHandler(deps.Referrals)
		authed.POST("/referral-codes", deps.Limiter.Middleware(), referralHandler.Create)
		authed.GET("/referral-codes", referralHandler.List)
	}
}
