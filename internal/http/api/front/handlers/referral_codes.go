package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	corehttp "github.com/prepwise/creditcore/internal/http"
	"github.com/prepwise/creditcore/internal/models"
	"github.com/prepwise/creditcore/internal/referrals"
)

// ReferralCodeHandler issues and lists the caller's referral codes.
type ReferralCodeHandler struct {
	referrals *referrals.Service
}

// NewReferralCodeHandler constructs a ReferralCodeHandler.
func NewReferralCodeHandler(referralService *referrals.Service) *ReferralCodeHandler {
	return &ReferralCodeHandler{referrals: referralService}
}

// Create issues a new code owned by the caller.
func (h *ReferralCodeHandler) Create(c *gin.Context) {
	accountID := getAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	rc, errGenerate := h.referrals.GenerateCode(c.Request.Context(), accountID)
	if errGenerate != nil {
		corehttp.RespondError(c, errGenerate)
		return
	}
	c.JSON(http.StatusCreated, referralCodeJSON(rc))
}

// List returns every code issued by the caller.
func (h *ReferralCodeHandler) List(c *gin.Context) {
	accountID := getAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	codes, errList := h.referrals.ListCodes(c.Request.Context(), accountID)
	if errList != nil {
		corehttp.RespondError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(codes))
	for i := range codes {
		out = append(out, referralCodeJSON(&codes[i]))
	}
	c.JSON(http.StatusOK, gin.H{"referral_codes": out})
}

func referralCodeJSON(rc *models.ReferralCode) gin.H {
	return gin.H{
		"id":                rc.ID,
		"code":              rc.Code,
		"redeemed":          rc.Redeemed(),
		"referrer_credited": rc.ReferrerCredited,
		"used_at":           rc.UsedAt,
		"created_at":        rc.CreatedAt,
	}
}
