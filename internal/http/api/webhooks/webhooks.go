// Package webhooks exposes the payment provider callback.
package webhooks

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	corehttp "github.com/prepwise/creditcore/internal/http"
	"github.com/prepwise/creditcore/internal/logging"
	"github.com/prepwise/creditcore/internal/security"
	"github.com/prepwise/creditcore/internal/webhook"
)

// maxPayloadBytes bounds the accepted event body.
const maxPayloadBytes = 1 << 20

// RegisterWebhookRoutes registers the unauthenticated provider callback. Deliveries are
// authenticated by their signature instead of a bearer token.
func RegisterWebhookRoutes(r *gin.Engine, processor *webhook.Processor) {
	if r == nil || processor == nil {
		return
	}
	h := &Handler{processor: processor}
	r.POST("/v0/webhooks/payments", h.Payments)
}

// Handler adapts webhook.Processor to gin.
type Handler struct {
	processor *webhook.Processor
}

// Payments answers 200 for every handled outcome, 400 for bad signatures or payloads,
// and 503 when the provider should redeliver.
func (h *Handler) Payments(c *gin.Context) {
	payload, errRead := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxPayloadBytes))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	result, errProcess := h.processor.Process(c.Request.Context(), c.GetHeader(security.SignatureHeader), payload)
	if errProcess != nil {
		status, _ := corehttp.ErrorStatus(errProcess)
		if status < http.StatusInternalServerError {
			logging.FromContext(c).WithError(errProcess).Warn("webhook delivery rejected")
		}
		corehttp.RespondError(c, errProcess)
		return
	}
	c.JSON(http.StatusOK, result)
}
