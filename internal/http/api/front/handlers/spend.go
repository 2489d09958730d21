package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepwise/creditcore/internal/accounts"
	corehttp "github.com/prepwise/creditcore/internal/http"
)

// SpendHandler debits one credit for a paid action.
type SpendHandler struct {
	store *accounts.Store
}

// NewSpendHandler constructs a SpendHandler.
func NewSpendHandler(store *accounts.Store) *SpendHandler {
	return &SpendHandler{store: store}
}

type spendRequest struct {
	Reason string `json:"reason"`
}

// Spend debits one credit; 402 means the paid work must not run.
func (h *SpendHandler) Spend(c *gin.Context) {
	accountID := getAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var body spendRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	account, errDebit := h.store.Debit(c.Request.Context(), accountID, body.Reason)
	if errDebit != nil {
		corehttp.RespondError(c, errDebit)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": account.Balance})
}
