package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prepwise/creditcore/internal/accounts"
	corehttp "github.com/prepwise/creditcore/internal/http"
	"github.com/prepwise/creditcore/internal/ledger"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 500
)

// ProfileHandler handles account profile endpoints.
type ProfileHandler struct {
	store *accounts.Store
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(store *accounts.Store) *ProfileHandler {
	return &ProfileHandler{store: store}
}

// Get returns the current account with its balance read from the database.
func (h *ProfileHandler) Get(c *gin.Context) {
	accountID := getAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	account, errFind := h.store.FindByID(c.Request.Context(), accountID)
	if errFind != nil {
		corehttp.RespondError(c, errFind)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         account.ID,
		"email":      account.Email,
		"balance":    account.Balance,
		"created_at": account.CreatedAt,
	})
}

// Ledger lists the newest ledger entries of the current account.
func (h *ProfileHandler) Ledger(c *gin.Context) {
	accountID := getAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := defaultLedgerLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, errParse := strconv.Atoi(raw)
		if errParse != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(parsed, maxLedgerLimit)
	}

	entries := make([]gin.H, 0, min(limit, ledger.PageSize))
	for entry, errEntry := range ledger.History(c.Request.Context(), h.store.DB(), accountID, limit) {
		if errEntry != nil {
			corehttp.RespondError(c, errEntry)
			return
		}
		entries = append(entries, gin.H{
			"id":         entry.ID,
			"delta":      entry.Delta,
			"kind":       entry.Kind,
			"reason":     entry.Reason,
			"created_at": entry.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
