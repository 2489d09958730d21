package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepwise/creditcore/internal/accounts"
	"github.com/prepwise/creditcore/internal/config"
	corehttp "github.com/prepwise/creditcore/internal/http"
	"github.com/prepwise/creditcore/internal/logging"
	"github.com/prepwise/creditcore/internal/models"
	"github.com/prepwise/creditcore/internal/referrals"
	"github.com/prepwise/creditcore/internal/security"
)

// AuthHandler handles account sign-up and sign-in.
type AuthHandler struct {
	store     *accounts.Store
	referrals *referrals.Service
	jwtCfg    config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(store *accounts.Store, referralService *referrals.Service, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{store: store, referrals: referralService, jwtCfg: jwtCfg}
}

// registerRequest defines the request body for account registration.
type registerRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code"`
}

// Register creates an account and redeems the optional referral code.
// A failed redemption is reported in referral_error and never blocks sign-up.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email"})
		return
	}
	if body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing password"})
		return
	}

	ctx := c.Request.Context()
	account, errCreate := h.store.Create(ctx, body.Email, body.Password)
	if errCreate != nil {
		corehttp.RespondError(c, errCreate)
		return
	}

	resp := gin.H{
		"id":      account.ID,
		"email":   account.Email,
		"balance": account.Balance,
	}
	if code := strings.TrimSpace(body.ReferralCode); code != "" && h.referrals != nil {
		if _, errRedeem := h.referrals.Redeem(ctx, code, account.ID); errRedeem != nil {
			_, message := corehttp.ErrorStatus(errRedeem)
			resp["referral_error"] = message
			logging.FromContext(c).WithError(errRedeem).WithField("account_id", account.ID).Info("referral redemption failed at sign-up")
		} else if refreshed, errFind := h.store.FindByID(ctx, account.ID); errFind == nil {
			resp["balance"] = refreshed.Balance
		}
	}
	c.JSON(http.StatusCreated, resp)
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an account and issues a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Email) == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email or password"})
		return
	}

	account, errAuth := h.store.Authenticate(c.Request.Context(), body.Email, body.Password)
	if errAuth != nil {
		corehttp.RespondError(c, errAuth)
		return
	}
	h.respondWithAccountToken(c, account)
}

func (h *AuthHandler) respondWithAccountToken(c *gin.Context, account *models.Account) {
	token, errToken := security.GenerateToken(h.jwtCfg.Secret, account.ID, account.Email, h.jwtCfg.Expiry)
	if errToken != nil {
		logging.FromContext(c).WithError(errToken).Error("sign token failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": time.Now().UTC().Add(h.jwtCfg.Expiry),
		"account": gin.H{
			"id":    account.ID,
			"email": account.Email,
		},
	})
}
