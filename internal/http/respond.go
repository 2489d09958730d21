package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepwise/creditcore/internal/accounts"
	"github.com/prepwise/creditcore/internal/billing"
	"github.com/prepwise/creditcore/internal/errs"
	"github.com/prepwise/creditcore/internal/logging"
	"github.com/prepwise/creditcore/internal/purchases"
	"github.com/prepwise/creditcore/internal/referrals"
	"github.com/prepwise/creditcore/internal/security"
	"github.com/prepwise/creditcore/internal/settings"
)

// ErrorStatus maps a domain error to an HTTP status and a client-facing message.
func ErrorStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errs.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, security.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid signature"
	case errors.Is(err, billing.ErrUnknownPack):
		return http.StatusBadRequest, "unknown pack"
	case errors.Is(err, settings.ErrUnknownKey):
		return http.StatusBadRequest, "unknown setting"
	case errors.Is(err, referrals.ErrSelfReferral):
		return http.StatusBadRequest, "cannot redeem your own referral code"
	case errors.Is(err, accounts.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, accounts.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "credits exhausted"
	case errors.Is(err, accounts.ErrAccountDisabled):
		return http.StatusForbidden, "account disabled"
	case errors.Is(err, accounts.ErrAccountNotFound):
		return http.StatusNotFound, "account not found"
	case errors.Is(err, purchases.ErrTransactionNotFound):
		return http.StatusNotFound, "transaction not found"
	case errors.Is(err, referrals.ErrCodeNotFound):
		return http.StatusNotFound, "referral code not found"
	case errors.Is(err, accounts.ErrDuplicateEmail):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, purchases.ErrAlreadyFinalized):
		return http.StatusConflict, "transaction already finalized"
	case errors.Is(err, purchases.ErrAlreadyBound):
		return http.StatusConflict, "payment id already bound"
	case errors.Is(err, referrals.ErrAlreadyRedeemed):
		return http.StatusConflict, "referral code already redeemed"
	case errors.Is(err, referrals.ErrDuplicateReferrerPair):
		return http.StatusConflict, "already referred by this account"
	case errors.Is(err, referrals.ErrNotRedeemed):
		return http.StatusConflict, "referral code not redeemed"
	case errors.Is(err, accounts.ErrBalanceMismatch):
		return http.StatusConflict, "balance does not match ledger"
	case errs.IsRetryable(err):
		return http.StatusServiceUnavailable, "storage unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// RespondError writes the mapped error body. Server-side failures are logged with the request id.
func RespondError(c *gin.Context, err error) {
	status, message := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c).WithError(err).Error("request failed")
	}
	c.JSON(status, gin.H{"error": message})
}
