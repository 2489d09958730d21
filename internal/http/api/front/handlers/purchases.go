package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prepwise/creditcore/internal/billing"
	corehttp "github.com/prepwise/creditcore/internal/http"
	"github.com/prepwise/creditcore/internal/models"
	"github.com/prepwise/creditcore/internal/purchases"
)

// PurchaseHandler exposes the pack catalog and the caller's purchases.
type PurchaseHandler struct {
	tracker *purchases.Tracker
	catalog *billing.Catalog
}

// NewPurchaseHandler constructs a PurchaseHandler.
func NewPurchaseHandler(tracker *purchases.Tracker, catalog *billing.Catalog) *PurchaseHandler {
	return &PurchaseHandler{tracker: tracker, catalog: catalog}
}

// Packs lists purchasable credit packs.
func (h *PurchaseHandler) Packs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packs": h.catalog.List()})
}

// createPurchaseRequest defines the request body for starting a purchase.
type createPurchaseRequest struct {
	PackID string `json:"pack_id"`
}

// Create records a pending purchase of a catalog pack. The provider payment id is bound
// server-side through the admin API, never taken from the caller.
func (h *PurchaseHandler) Create(c *gin.Context) {
	accountID := getAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var body createPurchaseRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	txn, errStart := h.tracker.StartPurchase(c.Request.Context(), accountID, body.PackID, "")
	if errStart != nil {
		corehttp.RespondError(c, errStart)
		return
	}
	c.JSON(http.StatusCreated, transactionJSON(txn))
}

// Get returns one of the caller's transactions.
func (h *PurchaseHandler) Get(c *gin.Context) {
	accountID := getAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	txn, errFind := h.tracker.FindByID(c.Request.Context(), id)
	if errFind != nil {
		corehttp.RespondError(c, errFind)
		return
	}
	if txn.AccountID != accountID {
		corehttp.RespondError(c, purchases.ErrTransactionNotFound)
		return
	}
	c.JSON(http.StatusOK, transactionJSON(txn))
}

func transactionJSON(txn *models.Transaction) gin.H {
	return gin.H{
		"id":                  txn.ID,
		"pack_id":             txn.PackID,
		"credits_requested":   txn.CreditsRequested,
		"amount_paid_minor":   txn.AmountPaidMinorUnits,
		"currency":            txn.Currency,
		"status":              txn.Status,
		"external_payment_id": txn.ExternalPaymentID,
		"failure_reason":      txn.FailureReason,
		"completed_at":        txn.CompletedAt,
		"failed_at":           txn.FailedAt,
		"created_at":          txn.CreatedAt,
	}
}
