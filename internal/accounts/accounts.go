// Package accounts owns account identity and the cached credit balance.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"time"

	dbpkg "github.com/prepwise/creditcore/internal/db"
	"github.com/prepwise/creditcore/internal/errs"
	"github.com/prepwise/creditcore/internal/ledger"
	"github.com/prepwise/creditcore/internal/metrics"
	"github.com/prepwise/creditcore/internal/models"
	"github.com/prepwise/creditcore/internal/security"
	"gorm.io/gorm"
)

// Account store errors.
var (
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountNotFound     = errors.New("account not found")
	ErrBalanceMismatch     = errors.New("balance does not match ledger")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrAccountDisabled     = errors.New("account disabled")
)

// maxEmailLength bounds stored addresses.
const maxEmailLength = 254

// Store reads and mutates accounts.
type Store struct {
	db *gorm.DB
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// NormalizeEmail validates email and returns its lookup form.
func NormalizeEmail(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "", errs.Invalid("email", "is required")
	}
	if len(trimmed) > maxEmailLength {
		return "", errs.Invalid("email", "is too long")
	}
	addr, errParse := mail.ParseAddress(trimmed)
	if errParse != nil || addr.Address != trimmed {
		return "", errs.Invalid("email", "is malformed")
	}
	return strings.ToLower(trimmed), nil
}

// Create registers an account. An empty password creates an externally-authenticated account.
// Uniqueness is enforced by the email index, so concurrent signups cannot both succeed.
func (s *Store) Create(ctx context.Context, email, password string) (*models.Account, error) {
	normalized, errEmail := NormalizeEmail(email)
	if errEmail != nil {
		return nil, errEmail
	}
	var hash string
	if password != "" {
		if errWeak := security.ValidatePassword(password); errWeak != nil {
			return nil, errs.Invalid("password", errWeak.Error())
		}
		hashed, errHash := security.HashPassword(password)
		if errHash != nil {
			return nil, fmt.Errorf("accounts: hash password: %w", errHash)
		}
		hash = hashed
	}

	account := models.Account{
		Email:           strings.TrimSpace(email),
		EmailNormalized: normalized,
		PasswordHash:    hash,
	}
	if errCreate := s.db.WithContext(ctx).Create(&account).Error; errCreate != nil {
		if dbpkg.IsUniqueViolation(errCreate) {
			return nil, ErrDuplicateEmail
		}
		return nil, errs.Storage(fmt.Errorf("accounts: create: %w", errCreate))
	}
	return &account, nil
}

// FindByEmail looks an account up by case-insensitive email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	normalized, errEmail := NormalizeEmail(email)
	if errEmail != nil {
		return nil, errEmail
	}
	var account models.Account
	if errFind := s.db.WithContext(ctx).Where("email_normalized = ?", normalized).First(&account).Error; errFind != nil {
		return nil, mapFindError(errFind)
	}
	return &account, nil
}

// FindByID looks an account up by primary key.
func (s *Store) FindByID(ctx context.Context, id uint64) (*models.Account, error) {
	return findByID(ctx, s.db, id)
}

// Authenticate checks a password login.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	account, errFind := s.FindByEmail(ctx, email)
	if errFind != nil {
		if errors.Is(errFind, ErrAccountNotFound) || errs.IsValidation(errFind) {
			return nil, ErrInvalidCredentials
		}
		return nil, errFind
	}
	if !security.CheckPassword(account.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if account.Disabled {
		return nil, ErrAccountDisabled
	}
	return account, nil
}

// AdjustBalance applies delta and appends the matching ledger entry in one database transaction.
func (s *Store) AdjustBalance(ctx context.Context, accountID uint64, delta int64, reason string) (*models.Account, error) {
	kind, errKind := ledger.KindOf(reason)
	if errKind != nil {
		return nil, errKind
	}
	var updated *models.Account
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, errAdjust := AdjustBalanceTx(ctx, tx, accountID, delta, reason)
		if errAdjust != nil {
			return errAdjust
		}
		updated = account
		return nil
	})
	if errTx != nil {
		if isBusinessError(errTx) {
			metrics.BalanceAdjustments.WithLabelValues(kind, metrics.OutcomeRejected).Inc()
			return nil, errTx
		}
		metrics.BalanceAdjustments.WithLabelValues(kind, metrics.OutcomeError).Inc()
		return nil, errs.Storage(errTx)
	}
	metrics.BalanceAdjustments.WithLabelValues(kind, metrics.OutcomeOK).Inc()
	return updated, nil
}

// AdjustBalanceTx applies delta on tx, the caller's open transaction.
// The balance predicate is part of the UPDATE itself; when it fails no ledger entry is written.
func AdjustBalanceTx(ctx context.Context, tx *gorm.DB, accountID uint64, delta int64, reason string) (*models.Account, error) {
	if delta == 0 {
		return nil, errs.Invalid("delta", "must not be zero")
	}
	if _, errKind := ledger.KindOf(reason); errKind != nil {
		return nil, errKind
	}

	// Credits are capped at MaxInt64 instead of floored at zero; balance + delta is
	// never evaluated for them.
	query := tx.WithContext(ctx).Model(&models.Account{})
	if delta > 0 {
		query = query.Where("id = ? AND balance <= ?", accountID, math.MaxInt64-delta)
	} else {
		query = query.Where("id = ? AND balance + ? >= 0", accountID, delta)
	}
	res := query.Updates(map[string]any{
		"balance":    gorm.Expr("balance + ?", delta),
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return nil, fmt.Errorf("accounts: adjust balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if errCount := tx.WithContext(ctx).Model(&models.Account{}).Where("id = ?", accountID).Count(&count).Error; errCount != nil {
			return nil, fmt.Errorf("accounts: adjust balance: %w", errCount)
		}
		if count == 0 {
			return nil, ErrAccountNotFound
		}
		if delta > 0 {
			return nil, errs.Invalid("delta", "would overflow the balance")
		}
		return nil, ErrInsufficientBalance
	}

	if _, errAppend := ledger.Append(ctx, tx, accountID, delta, reason); errAppend != nil {
		return nil, errAppend
	}
	return findByID(ctx, tx, accountID)
}

// Debit spends one credit for reason. Callers must not perform the paid work when it fails.
func (s *Store) Debit(ctx context.Context, accountID uint64, reason string) (*models.Account, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errs.Invalid("reason", "is required")
	}
	return s.AdjustBalance(ctx, accountID, -1, models.LedgerKindSpend+":"+reason)
}

// Credit grants amount credits for reason.
func (s *Store) Credit(ctx context.Context, accountID uint64, amount int64, reason string) (*models.Account, error) {
	if amount <= 0 {
		return nil, errs.Invalid("amount", "must be positive")
	}
	return s.AdjustBalance(ctx, accountID, amount, reason)
}

// Verification compares the cached balance with the ledger.
type Verification struct {
	AccountID uint64 `json:"account_id"`
	Balance   int64  `json:"balance"`
	LedgerSum int64  `json:"ledger_sum"`
}

// Verify reads the cached balance and the ledger sum in a single statement.
// It returns ErrBalanceMismatch, alongside the values read, when they differ.
func (s *Store) Verify(ctx context.Context, accountID uint64) (Verification, error) {
	result := Verification{AccountID: accountID}
	var rows []Verification
	errScan := s.db.WithContext(ctx).Raw(
		`SELECT a.id AS account_id, a.balance AS balance,
			COALESCE((SELECT SUM(l.delta) FROM ledger_entries l WHERE l.account_id = a.id), 0) AS ledger_sum
		FROM accounts a WHERE a.id = ?`, accountID).
		Scan(&rows).Error
	if errScan != nil {
		return result, errs.Storage(fmt.Errorf("accounts: verify: %w", errScan))
	}
	if len(rows) == 0 {
		return result, ErrAccountNotFound
	}
	result = rows[0]
	if result.Balance != result.LedgerSum {
		return result, fmt.Errorf("%w: account %d cached %d, ledger %d", ErrBalanceMismatch, accountID, result.Balance, result.LedgerSum)
	}
	return result, nil
}

func findByID(ctx context.Context, db *gorm.DB, id uint64) (*models.Account, error) {
	var account models.Account
	if errFind := db.WithContext(ctx).Where("id = ?", id).First(&account).Error; errFind != nil {
		return nil, mapFindError(errFind)
	}
	return &account, nil
}

func mapFindError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAccountNotFound
	}
	return errs.Storage(fmt.Errorf("accounts: find: %w", err))
}

// isBusinessError reports errors that must reach the caller unwrapped.
func isBusinessError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrAccountNotFound) ||
		errs.IsValidation(err)
}

// SetDisabled blocks or re-allows sign-in for an account.
func (s *Store) SetDisabled(ctx context.Context, accountID uint64, disabled bool) (*models.Account, error) {
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{"disabled": disabled, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, errs.Storage(fmt.Errorf("accounts: set disabled: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, ErrAccountNotFound
	}
	return s.FindByID(ctx, accountID)
}
