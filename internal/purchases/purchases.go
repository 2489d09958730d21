// Package purchases tracks credit pack purchases from creation to their terminal status.
package purchases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prepwise/creditcore/internal/accounts"
	"github.com/prepwise/creditcore/internal/billing"
	dbpkg "github.com/prepwise/creditcore/internal/db"
	"github.com/prepwise/creditcore/internal/errs"
	"github.com/prepwise/creditcore/internal/models"
	"gorm.io/gorm"
)

// Transaction tracker errors.
var (
	ErrAlreadyFinalized    = errors.New("transaction already finalized")
	ErrAlreadyBound        = errors.New("transaction already bound to another payment")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// maxFailureReasonLength bounds stored failure reasons.
const maxFailureReasonLength = 500

// Tracker manages purchase transactions.
type Tracker struct {
	db      *gorm.DB
	catalog *billing.Catalog
}

// NewTracker returns a Tracker. catalog may be nil when StartPurchase is not used.
func NewTracker(db *gorm.DB, catalog *billing.Catalog) *Tracker {
	return &Tracker{db: db, catalog: catalog}
}

// CreatePending records a new pending purchase.
func (t *Tracker) CreatePending(ctx context.Context, accountID uint64, packID string, creditsRequested, amountPaidMinor int64, currency string) (*models.Transaction, error) {
	var created *models.Transaction
	errTx := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, errCreate := createPendingTx(ctx, tx, accountID, packID, creditsRequested, amountPaidMinor, currency, "")
		if errCreate != nil {
			return errCreate
		}
		created = txn
		return nil
	})
	if errTx != nil {
		return nil, wrapStorage(errTx)
	}
	return created, nil
}

// StartPurchase prices packID from the catalog and records a pending transaction,
// bound to externalPaymentID when one is already known.
func (t *Tracker) StartPurchase(ctx context.Context, accountID uint64, packID, externalPaymentID string) (*models.Transaction, error) {
	pack, errLookup := t.catalog.Lookup(packID)
	if errLookup != nil {
		return nil, errs.Invalid("pack_id", errLookup.Error())
	}
	var created *models.Transaction
	errTx := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, errCreate := createPendingTx(ctx, tx, accountID, pack.ID, pack.Credits, pack.PriceMinor, pack.Currency, externalPaymentID)
		if errCreate != nil {
			return errCreate
		}
		created = txn
		return nil
	})
	if errTx != nil {
		return nil, wrapStorage(errTx)
	}
	return created, nil
}

func createPendingTx(ctx context.Context, tx *gorm.DB, accountID uint64, packID string, creditsRequested, amountPaidMinor int64, currency, externalPaymentID string) (*models.Transaction, error) {
	packID = strings.TrimSpace(packID)
	currency = billing.NormalizeCurrency(currency)
	switch {
	case packID == "":
		return nil, errs.Invalid("pack_id", "is required")
	case creditsRequested <= 0:
		return nil, errs.Invalid("credits_requested", "must be positive")
	case amountPaidMinor < 0:
		return nil, errs.Invalid("amount_paid_minor_units", "must not be negative")
	case currency == "":
		return nil, errs.Invalid("currency", "is required")
	}

	var count int64
	if errCount := tx.WithContext(ctx).Model(&models.Account{}).Where("id = ?", accountID).Count(&count).Error; errCount != nil {
		return nil, fmt.Errorf("purchases: check account: %w", errCount)
	}
	if count == 0 {
		return nil, accounts.ErrAccountNotFound
	}

	txn := models.Transaction{
		AccountID:            accountID,
		PackID:               packID,
		CreditsRequested:     creditsRequested,
		AmountPaidMinorUnits: amountPaidMinor,
		Currency:             currency,
		Status:               models.TransactionStatusPending,
	}
	if id := strings.TrimSpace(externalPaymentID); id != "" {
		txn.ExternalPaymentID = &id
	}
	if errCreate := tx.WithContext(ctx).Create(&txn).Error; errCreate != nil {
		if dbpkg.IsUniqueViolation(errCreate) {
			return nil, ErrAlreadyBound
		}
		return nil, fmt.Errorf("purchases: create: %w", errCreate)
	}
	return &txn, nil
}

// BindExternalID attaches the provider payment id to a pending transaction.
// Binding the same id again is a no-op.
func (t *Tracker) BindExternalID(ctx context.Context, transactionID uint64, externalPaymentID string) (*models.Transaction, error) {
	externalPaymentID = strings.TrimSpace(externalPaymentID)
	if externalPaymentID == "" {
		return nil, errs.Invalid("external_payment_id", "is required")
	}

	var bound *models.Transaction
	errTx := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Transaction{}).
			Where("id = ? AND external_payment_id IS NULL AND status = ?", transactionID, models.TransactionStatusPending).
			Updates(map[string]any{
				"external_payment_id": externalPaymentID,
				"updated_at":          time.Now().UTC(),
			})
		if res.Error != nil {
			if dbpkg.IsUniqueViolation(res.Error) {
				return ErrAlreadyBound
			}
			return fmt.Errorf("purchases: bind: %w", res.Error)
		}

		current, errFind := findByID(ctx, tx, transactionID)
		if errFind != nil {
			return errFind
		}
		if res.RowsAffected == 1 {
			bound = current
			return nil
		}
		switch {
		case current.ExternalPaymentID != nil && *current.ExternalPaymentID == externalPaymentID:
			bound = current
			return nil
		case current.ExternalPaymentID != nil:
			return ErrAlreadyBound
		default:
			return ErrAlreadyFinalized
		}
	})
	if errTx != nil {
		return nil, wrapStorage(errTx)
	}
	return bound, nil
}

// FindByExternalID returns the transaction bound to externalPaymentID.
func (t *Tracker) FindByExternalID(ctx context.Context, externalPaymentID string) (*models.Transaction, error) {
	externalPaymentID = strings.TrimSpace(externalPaymentID)
	if externalPaymentID == "" {
		return nil, errs.Invalid("external_payment_id", "is required")
	}
	var txn models.Transaction
	if errFind := t.db.WithContext(ctx).Where("external_payment_id = ?", externalPaymentID).First(&txn).Error; errFind != nil {
		return nil, mapFindError(errFind)
	}
	return &txn, nil
}

// FindByID returns the transaction with id.
func (t *Tracker) FindByID(ctx context.Context, id uint64) (*models.Transaction, error) {
	return findByID(ctx, t.db, id)
}

// Complete moves a pending transaction to completed. Completing a completed
// transaction returns it unchanged.
func (t *Tracker) Complete(ctx context.Context, transactionID uint64) (*models.Transaction, error) {
	var completed *models.Transaction
	errTx := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, _, errComplete := CompleteTx(ctx, tx, transactionID)
		if errComplete != nil {
			return errComplete
		}
		completed = txn
		return nil
	})
	if errTx != nil {
		return nil, wrapStorage(errTx)
	}
	return completed, nil
}

// CompleteTx completes the transaction on tx. The returned flag is true only for the
// call whose conditional update moved the row out of pending.
func CompleteTx(ctx context.Context, tx *gorm.DB, transactionID uint64) (*models.Transaction, bool, error) {
	now := time.Now().UTC()
	res := tx.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", transactionID, models.TransactionStatusPending).
		Updates(map[string]any{
			"status":       models.TransactionStatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return nil, false, fmt.Errorf("purchases: complete: %w", res.Error)
	}
	current, errFind := findByID(ctx, tx, transactionID)
	if errFind != nil {
		return nil, false, errFind
	}
	if res.RowsAffected == 1 {
		return current, true, nil
	}
	switch current.Status {
	case models.TransactionStatusCompleted:
		return current, false, nil
	case models.TransactionStatusFailed:
		return current, false, ErrAlreadyFinalized
	default:
		return nil, false, fmt.Errorf("purchases: complete: transaction %d left in status %s", transactionID, current.Status)
	}
}

// Fail moves a pending transaction to failed. Failing a failed transaction is a no-op.
func (t *Tracker) Fail(ctx context.Context, transactionID uint64, reason string) (*models.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if runes := []rune(reason); len(runes) > maxFailureReasonLength {
		reason = string(runes[:maxFailureReasonLength])
	}

	var failed *models.Transaction
	errTx := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&models.Transaction{}).
			Where("id = ? AND status = ?", transactionID, models.TransactionStatusPending).
			Updates(map[string]any{
				"status":         models.TransactionStatusFailed,
				"failure_reason": reason,
				"failed_at":      now,
				"updated_at":     now,
			})
		if res.Error != nil {
			return fmt.Errorf("purchases: fail: %w", res.Error)
		}
		current, errFind := findByID(ctx, tx, transactionID)
		if errFind != nil {
			return errFind
		}
		if res.RowsAffected == 0 && current.Status == models.TransactionStatusCompleted {
			return ErrAlreadyFinalized
		}
		failed = current
		return nil
	})
	if errTx != nil {
		return nil, wrapStorage(errTx)
	}
	return failed, nil
}

func findByID(ctx context.Context, db *gorm.DB, id uint64) (*models.Transaction, error) {
	var txn models.Transaction
	if errFind := db.WithContext(ctx).Where("id = ?", id).First(&txn).Error; errFind != nil {
		return nil, mapFindError(errFind)
	}
	return &txn, nil
}

func mapFindError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTransactionNotFound
	}
	return errs.Storage(fmt.Errorf("purchases: find: %w", err))
}

// wrapStorage passes business errors through and marks everything else as a storage failure.
func wrapStorage(err error) error {
	switch {
	case errors.Is(err, ErrAlreadyFinalized),
		errors.Is(err, ErrAlreadyBound),
		errors.Is(err, ErrTransactionNotFound),
		errors.Is(err, accounts.ErrAccountNotFound),
		errs.IsValidation(err):
		return err
	default:
		return errs.Storage(err)
	}
}
