// Package webhook applies payment provider notifications to purchases and balances.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prepwise/creditcore/internal/accounts"
	"github.com/prepwise/creditcore/internal/billing"
	"github.com/prepwise/creditcore/internal/config"
	"github.com/prepwise/creditcore/internal/errs"
	"github.com/prepwise/creditcore/internal/metrics"
	"github.com/prepwise/creditcore/internal/models"
	"github.com/prepwise/creditcore/internal/purchases"
	"github.com/prepwise/creditcore/internal/referrals"
	"github.com/prepwise/creditcore/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Result describes how a delivery was handled. Every Result returned with a nil error
// must be acknowledged to the provider.
type Result struct {
	Outcome       string `json:"outcome"`
	EventID       string `json:"event_id,omitempty"`
	TransactionID uint64 `json:"transaction_id,omitempty"`
	Credited      int64  `json:"credited,omitempty"`
}

// Processor verifies and applies payment notifications.
type Processor struct {
	db        *gorm.DB
	tracker   *purchases.Tracker
	referrals *referrals.Service
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// NewProcessor returns a Processor. referralService may be nil to disable purchase payouts.
func NewProcessor(db *gorm.DB, tracker *purchases.Tracker, referralService *referrals.Service, cfg config.WebhookConfig) *Processor {
	return &Processor{
		db:        db,
		tracker:   tracker,
		referrals: referralService,
		secret:    cfg.Secret,
		tolerance: cfg.Tolerance,
		now:       time.Now,
	}
}

// Process handles one delivery. The signature is checked before any storage access.
// Errors are security.ErrInvalidSignature, an errs.ValidationError, or a retryable
// errs.ErrStorageUnavailable after which nothing was written.
func (p *Processor) Process(ctx context.Context, signatureHeader string, payload []byte) (Result, error) {
	if errVerify := security.VerifySignature(p.secret, signatureHeader, payload, p.tolerance, p.now()); errVerify != nil {
		metrics.WebhookEvents.WithLabelValues("invalid_signature").Inc()
		return Result{}, errVerify
	}
	event, errParse := ParseEvent(payload)
	if errParse != nil {
		metrics.WebhookEvents.WithLabelValues("malformed").Inc()
		return Result{}, errParse
	}

	result, errApply := p.apply(ctx, event, payload)
	if errApply != nil {
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		return Result{}, errApply
	}
	metrics.WebhookEvents.WithLabelValues(result.Outcome).Inc()
	return result, nil
}

func (p *Processor) apply(ctx context.Context, event Event, payload []byte) (Result, error) {
	entry := log.WithFields(log.Fields{"event_id": event.ID, "event_type": event.Type})
	result := Result{EventID: event.ID}

	if !event.Completes() {
		result.Outcome = models.WebhookOutcomeIgnored
		p.recordBestEffort(ctx, event, payload, result.Outcome)
		entry.Debug("webhook: ignoring event type")
		return result, nil
	}
	if event.Data.PaymentID == "" {
		return Result{}, errs.Invalid("data.payment_id", "is required")
	}
	entry = entry.WithField("payment_id", event.Data.PaymentID)

	txn, errFind := p.tracker.FindByExternalID(ctx, event.Data.PaymentID)
	if errFind != nil {
		if errors.Is(errFind, purchases.ErrTransactionNotFound) {
			result.Outcome = models.WebhookOutcomeUnknownPayment
			p.recordBestEffort(ctx, event, payload, result.Outcome)
			entry.Info("webhook: no transaction for payment, acknowledging")
			return result, nil
		}
		return Result{}, errs.Storage(errFind)
	}
	result.TransactionID = txn.ID
	entry = entry.WithFields(log.Fields{"transaction_id": txn.ID, "account_id": txn.AccountID})

	switch txn.Status {
	case models.TransactionStatusCompleted:
		result.Outcome = models.WebhookOutcomeDuplicate
		p.recordBestEffort(ctx, event, payload, result.Outcome)
		entry.Info("webhook: transaction already completed")
		return result, nil
	case models.TransactionStatusFailed:
		result.Outcome = models.WebhookOutcomeConflict
		p.recordBestEffort(ctx, event, payload, result.Outcome)
		entry.Error("webhook: completion received for a failed transaction")
		return result, nil
	}

	paidCurrency := billing.NormalizeCurrency(event.Data.Currency)
	if event.Data.Amount < txn.AmountPaidMinorUnits || paidCurrency != txn.Currency {
		result.Outcome = models.WebhookOutcomeAmountMismatch
		p.recordBestEffort(ctx, event, payload, result.Outcome)
		entry.WithFields(log.Fields{
			"expected_amount":   txn.AmountPaidMinorUnits,
			"expected_currency": txn.Currency,
			"paid_amount":       event.Data.Amount,
			"paid_currency":     event.Data.Currency,
		}).Error("webhook: payment does not cover the recorded transaction, not crediting")
		return result, nil
	}
	if event.Data.Amount > txn.AmountPaidMinorUnits {
		entry.WithFields(log.Fields{
			"expected_amount": txn.AmountPaidMinorUnits,
			"paid_amount":     event.Data.Amount,
		}).Warn("webhook: payment exceeds the recorded transaction")
	}

	payouts := 0
	errTx := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, transitioned, errComplete := purchases.CompleteTx(ctx, tx, txn.ID)
		if errComplete != nil {
			if errors.Is(errComplete, purchases.ErrAlreadyFinalized) {
				result.Outcome = models.WebhookOutcomeConflict
				return recordEvent(ctx, tx, event, payload, result.Outcome)
			}
			return errComplete
		}
		if !transitioned {
			result.Outcome = models.WebhookOutcomeDuplicate
			return recordEvent(ctx, tx, event, payload, result.Outcome)
		}

		reason := models.LedgerKindPurchase + ":" + current.PackID
		if _, errCredit := accounts.AdjustBalanceTx(ctx, tx, current.AccountID, current.CreditsRequested, reason); errCredit != nil {
			return errCredit
		}
		if p.referrals != nil {
			paid, errPayout := p.referrals.CreditReferrerForPurchaseTx(ctx, tx, current.AccountID)
			if errPayout != nil {
				return errPayout
			}
			payouts = paid
		}
		result.Outcome = models.WebhookOutcomeApplied
		result.Credited = current.CreditsRequested
		return recordEvent(ctx, tx, event, payload, result.Outcome)
	})
	if errTx != nil {
		entry.WithError(errTx).Error("webhook: applying completion failed, transaction left pending")
		return Result{}, errs.Storage(errTx)
	}

	if result.Outcome == models.WebhookOutcomeApplied {
		entry.WithField("credits", result.Credited).Info("webhook: purchase credited")
	}
	if payouts > 0 {
		metrics.ReferralPayouts.Add(float64(payouts))
		entry.WithField("payouts", payouts).Info("webhook: referrer payout credited")
	}
	return result, nil
}

// recordBestEffort writes the audit row for outcomes that mutate nothing else.
func (p *Processor) recordBestEffort(ctx context.Context, event Event, payload []byte, outcome string) {
	if errRecord := recordEvent(ctx, p.db, event, payload, outcome); errRecord != nil {
		log.WithError(errRecord).WithField("event_id", event.ID).Warn("webhook: audit record failed")
	}
}

// recordEvent inserts the audit row; a redelivered event keeps its first outcome.
func recordEvent(ctx context.Context, db *gorm.DB, event Event, payload []byte, outcome string) error {
	row := models.WebhookEvent{
		EventID:           event.ID,
		Type:              event.Type,
		ExternalPaymentID: event.Data.PaymentID,
		Outcome:           outcome,
		Payload:           datatypes.JSON(payload),
		ReceivedAt:        time.Now().UTC(),
	}
	if errCreate := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&row).Error; errCreate != nil {
		return fmt.Errorf("webhook: record event: %w", errCreate)
	}
	return nil
}
