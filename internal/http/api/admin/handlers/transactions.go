package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	corehttp "github.com/prepwise/creditcore/internal/http"
	"github.com/prepwise/creditcore/internal/models"
	"github.com/prepwise/creditcore/internal/purchases"
)

// TransactionHandler handles operator purchase operations.
type TransactionHandler struct {
	tracker *purchases.Tracker
}

// NewTransactionHandler wires a transaction handler with its tracker.
func NewTransactionHandler(tracker *purchases.Tracker) *TransactionHandler {
	return &TransactionHandler{tracker: tracker}
}

// Get returns any transaction by id.
func (h *TransactionHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	txn, errFind := h.tracker.FindByID(c.Request.Context(), id)
	if errFind != nil {
		corehttp.RespondError(c, errFind)
		return
	}
	c.JSON(http.StatusOK, transactionJSON(txn))
}

type bindRequest struct {
	ExternalPaymentID string `json:"external_payment_id"`
}

// Bind attaches the provider payment id to a pending transaction.
func (h *TransactionHandler) Bind(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body bindRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	txn, errBindID := h.tracker.BindExternalID(c.Request.Context(), id, body.ExternalPaymentID)
	if errBindID != nil {
		corehttp.RespondError(c, errBindID)
		return
	}
	c.JSON(http.StatusOK, transactionJSON(txn))
}

type failRequest struct {
	Reason string `json:"reason"`
}

// Fail marks a pending transaction as failed.
func (h *TransactionHandler) Fail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body failRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	txn, errFail := h.tracker.Fail(c.Request.Context(), id, body.Reason)
	if errFail != nil {
		corehttp.RespondError(c, errFail)
		return
	}
	c.JSON(http.StatusOK, transactionJSON(txn))
}

func transactionJSON(txn *models.Transaction) gin.H {
	return gin.H{
		"id":                  txn.ID,
		"account_id":          txn.AccountID,
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
		"updated_at":          txn.UpdatedAt,
	}
}
