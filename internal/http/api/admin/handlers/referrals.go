package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	corehttp "github.com/prepwise/creditcore/internal/http"
	"github.com/prepwise/creditcore/internal/referrals"
)

// ReferralHandler handles operator referral operations.
type ReferralHandler struct {
	referrals *referrals.Service
}

// NewReferralHandler wires a referral handler with its service.
func NewReferralHandler(referralService *referrals.Service) *ReferralHandler {
	return &ReferralHandler{referrals: referralService}
}

// CreditReferrer pays the referrer of a redeemed code. Repeated calls pay once.
func (h *ReferralHandler) CreditReferrer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rc, paid, errCredit := h.referrals.CreditReferrer(c.Request.Context(), id)
	if errCredit != nil {
		corehttp.RespondError(c, errCredit)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                  rc.ID,
		"code":                rc.Code,
		"referrer_account_id": rc.ReferrerAccountID,
		"referrer_credited":   rc.ReferrerCredited,
		"paid":                paid,
	})
}
