package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prepwise/creditcore/internal/accounts"
	"github.com/prepwise/creditcore/internal/cache"
	corehttp "github.com/prepwise/creditcore/internal/http"
	"github.com/prepwise/creditcore/internal/logging"
	"github.com/prepwise/creditcore/internal/models"
	log "github.com/sirupsen/logrus"
)

// AccountHandler handles operator account operations.
type AccountHandler struct {
	store    *accounts.Store    // Account store.
	profiles cache.ProfileCache // Invalidated when an account's sign-in state changes.
}

// NewAccountHandler wires an account handler with its dependencies.
func NewAccountHandler(store *accounts.Store, profiles cache.ProfileCache) *AccountHandler {
	return &AccountHandler{store: store, profiles: profiles}
}

// adjustRequest captures a manual balance correction.
type adjustRequest struct {
	Delta int64  `json:"delta"` // Signed credit change.
	Note  string `json:"note"`  // Optional operator note appended to the ledger reason.
}

// Adjust applies a signed admin adjustment; debits below zero are refused.
func (h *AccountHandler) Adjust(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body adjustRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Delta == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "delta must not be zero"})
		return
	}

	reason := models.LedgerKindAdminAdjustment
	if note := strings.TrimSpace(body.Note); note != "" {
		reason += ":" + note
	}
	account, errAdjust := h.store.AdjustBalance(c.Request.Context(), id, body.Delta, reason)
	if errAdjust != nil {
		corehttp.RespondError(c, errAdjust)
		return
	}
	logging.FromContext(c).WithFields(log.Fields{
		"admin_id":   corehttp.AdminID(c),
		"account_id": id,
		"delta":      body.Delta,
	}).Info("admin balance adjustment")
	c.JSON(http.StatusOK, gin.H{"id": account.ID, "balance": account.Balance})
}

// Verify compares the cached balance with the ledger sum.
func (h *AccountHandler) Verify(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	result, errVerify := h.store.Verify(c.Request.Context(), id)
	if errVerify != nil && !errors.Is(errVerify, accounts.ErrBalanceMismatch) {
		corehttp.RespondError(c, errVerify)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_id": result.AccountID,
		"balance":    result.Balance,
		"ledger_sum": result.LedgerSum,
		"consistent": errVerify == nil,
	})
}

// Disable blocks sign-in and authenticated requests for the account.
func (h *AccountHandler) Disable(c *gin.Context) {
	h.setDisabled(c, true)
}

// Enable lifts a previous Disable.
func (h *AccountHandler) Enable(c *gin.Context) {
	h.setDisabled(c, false)
}

func (h *AccountHandler) setDisabled(c *gin.Context, disabled bool) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	account, errSet := h.store.SetDisabled(c.Request.Context(), id, disabled)
	if errSet != nil {
		corehttp.RespondError(c, errSet)
		return
	}
	if h.profiles != nil {
		if errDelete := h.profiles.Delete(c.Request.Context(), id); errDelete != nil {
			logging.FromContext(c).WithError(errDelete).Warn("profile cache invalidation failed")
		}
	}
	c.JSON(http.StatusOK, gin.H{"id": account.ID, "disabled": account.Disabled})
}
