// Package referrals issues single-use referral codes and applies their bonuses.
package referrals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prepwise/creditcore/internal/accounts"
	"github.com/prepwise/creditcore/internal/config"
	dbpkg "github.com/prepwise/creditcore/internal/db"
	"github.com/prepwise/creditcore/internal/errs"
	"github.com/prepwise/creditcore/internal/metrics"
	"github.com/prepwise/creditcore/internal/models"
	"github.com/prepwise/creditcore/internal/security"
	"github.com/prepwise/creditcore/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Referral errors.
var (
	ErrCodeNotFound          = errors.New("referral code not found")
	ErrAlreadyRedeemed       = errors.New("referral code already redeemed")
	ErrSelfReferral          = errors.New("cannot redeem your own referral code")
	ErrDuplicateReferrerPair = errors.New("a code from this referrer was already redeemed by this account")
	ErrNotRedeemed           = errors.New("referral code not redeemed")
	ErrCodeGeneration        = errors.New("could not generate a unique referral code")
)

// defaultGenerateAttempts bounds regeneration after code collisions.
const defaultGenerateAttempts = 5

// Policy is the effective referral configuration.
type Policy struct {
	SignupBonus   int64  `json:"signup_bonus"`
	PayoutCredits int64  `json:"payout_credits"`
	PayoutTrigger string `json:"payout_trigger"`
}

// Service issues and redeems referral codes.
type Service struct {
	db       *gorm.DB
	defaults config.ReferralConfig
	generate func() (string, error)
	attempts int
}

// NewService returns a Service. defaults apply when no DB setting overrides them.
func NewService(db *gorm.DB, defaults config.ReferralConfig) *Service {
	return &Service{
		db:       db,
		defaults: defaults,
		generate: security.GenerateReferralCode,
		attempts: defaultGenerateAttempts,
	}
}

// Policy returns the current referral amounts and payout trigger.
func (s *Service) Policy() Policy {
	p := Policy{
		SignupBonus:   settings.Int(settings.ReferralSignupBonusKey, s.defaults.SignupBonus),
		PayoutCredits: settings.Int(settings.ReferralPayoutCreditsKey, s.defaults.PayoutCredits),
		PayoutTrigger: settings.String(settings.ReferralPayoutTriggerKey, s.defaults.PayoutTrigger),
	}
	if p.SignupBonus < 0 {
		p.SignupBonus = 0
	}
	if p.PayoutCredits < 0 {
		p.PayoutCredits = 0
	}
	switch p.PayoutTrigger {
	case settings.PayoutTriggerFirstPurchase, settings.PayoutTriggerManual:
	default:
		p.PayoutTrigger = settings.PayoutTriggerFirstPurchase
	}
	return p
}

// NormalizeCode upper-cases and trims a user-supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateCode issues a new code owned by accountID.
func (s *Service) GenerateCode(ctx context.Context, accountID uint64) (*models.ReferralCode, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", accountID).Count(&count).Error; errCount != nil {
		return nil, errs.Storage(fmt.Errorf("referrals: check account: %w", errCount))
	}
	if count == 0 {
		return nil, accounts.ErrAccountNotFound
	}

	for attempt := 1; attempt <= s.attempts; attempt++ {
		code, errGenerate := s.generate()
		if errGenerate != nil {
			return nil, fmt.Errorf("referrals: %w", errGenerate)
		}
		rc := models.ReferralCode{Code: NormalizeCode(code), ReferrerAccountID: accountID}
		errCreate := s.db.WithContext(ctx).Create(&rc).Error
		if errCreate == nil {
			return &rc, nil
		}
		if !dbpkg.IsUniqueViolation(errCreate) {
			return nil, errs.Storage(fmt.Errorf("referrals: create code: %w", errCreate))
		}
		log.WithField("attempt", attempt).Warn("referrals: code collision, regenerating")
	}
	return nil, ErrCodeGeneration
}

// ListCodes returns the codes issued by accountID, newest first.
func (s *Service) ListCodes(ctx context.Context, accountID uint64) ([]models.ReferralCode, error) {
	var codes []models.ReferralCode
	if errFind := s.db.WithContext(ctx).
		Where("referrer_account_id = ?", accountID).
		Order("id DESC").
		Find(&codes).Error; errFind != nil {
		return nil, errs.Storage(fmt.Errorf("referrals: list codes: %w", errFind))
	}
	return codes, nil
}

// Redeem links code to newAccountID and grants the signup bonus, all in one transaction.
func (s *Service) Redeem(ctx context.Context, code string, newAccountID uint64) (*models.ReferralCode, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, errs.Invalid("referral_code", "is required")
	}
	policy := s.Policy()

	var redeemed *models.ReferralCode
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rc models.ReferralCode
		if errFind := tx.Where("code = ?", code).First(&rc).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrCodeNotFound
			}
			return fmt.Errorf("referrals: find code: %w", errFind)
		}
		if rc.Redeemed() {
			return ErrAlreadyRedeemed
		}
		if rc.ReferrerAccountID == newAccountID {
			return ErrSelfReferral
		}

		var redeemers int64
		if errCount := tx.Model(&models.Account{}).Where("id = ?", newAccountID).Count(&redeemers).Error; errCount != nil {
			return fmt.Errorf("referrals: check account: %w", errCount)
		}
		if redeemers == 0 {
			return accounts.ErrAccountNotFound
		}

		var pairs int64
		if errCount := tx.Model(&models.ReferralCode{}).
			Where("referrer_account_id = ? AND referred_account_id = ?", rc.ReferrerAccountID, newAccountID).
			Count(&pairs).Error; errCount != nil {
			return fmt.Errorf("referrals: check pair: %w", errCount)
		}
		if pairs > 0 {
			return ErrDuplicateReferrerPair
		}

		now := time.Now().UTC()
		res := tx.Model(&models.ReferralCode{}).
			Where("id = ? AND referred_account_id IS NULL", rc.ID).
			Updates(map[string]any{
				"referred_account_id":  newAccountID,
				"used_at":              now,
				"signup_bonus_granted": policy.SignupBonus > 0,
				"referrer_credited":    false,
			})
		if res.Error != nil {
			if dbpkg.IsUniqueViolation(res.Error) {
				return ErrDuplicateReferrerPair
			}
			return fmt.Errorf("referrals: redeem: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyRedeemed
		}

		if policy.SignupBonus > 0 {
			if _, errBonus := accounts.AdjustBalanceTx(ctx, tx, newAccountID, policy.SignupBonus, models.LedgerKindReferralBonus); errBonus != nil {
				return errBonus
			}
		}

		if errReload := tx.Where("id = ?", rc.ID).First(&rc).Error; errReload != nil {
			return fmt.Errorf("referrals: reload code: %w", errReload)
		}
		redeemed = &rc
		return nil
	})
	if errTx != nil {
		metrics.ReferralRedemptions.WithLabelValues(redemptionResult(errTx)).Inc()
		return nil, wrapStorage(errTx)
	}
	metrics.ReferralRedemptions.WithLabelValues("redeemed").Inc()
	return redeemed, nil
}

// CreditReferrer pays the referrer of a redeemed code. It pays at most once per code;
// later calls return the code with paid set to false.
func (s *Service) CreditReferrer(ctx context.Context, referralID uint64) (*models.ReferralCode, bool, error) {
	var (
		rc   *models.ReferralCode
		paid bool
	)
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var errCredit error
		rc, paid, errCredit = s.CreditReferrerTx(ctx, tx, referralID)
		return errCredit
	})
	if errTx != nil {
		return nil, false, wrapStorage(errTx)
	}
	if paid {
		metrics.ReferralPayouts.Inc()
	}
	return rc, paid, nil
}

// CreditReferrerTx is CreditReferrer on the caller's transaction.
func (s *Service) CreditReferrerTx(ctx context.Context, tx *gorm.DB, referralID uint64) (*models.ReferralCode, bool, error) {
	payout := s.Policy().PayoutCredits
	now := time.Now().UTC()
	res := tx.WithContext(ctx).Model(&models.ReferralCode{}).
		Where("id = ? AND referrer_credited = ? AND referred_account_id IS NOT NULL", referralID, false).
		Updates(map[string]any{
			"referrer_credited":    true,
			"referrer_credited_at": now,
		})
	if res.Error != nil {
		return nil, false, fmt.Errorf("referrals: credit referrer: %w", res.Error)
	}

	var rc models.ReferralCode
	if errFind := tx.WithContext(ctx).Where("id = ?", referralID).First(&rc).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, false, ErrCodeNotFound
		}
		return nil, false, fmt.Errorf("referrals: find code: %w", errFind)
	}
	if res.RowsAffected == 0 {
		if !rc.Redeemed() {
			return nil, false, ErrNotRedeemed
		}
		return &rc, false, nil
	}

	if payout > 0 {
		if _, errPay := accounts.AdjustBalanceTx(ctx, tx, rc.ReferrerAccountID, payout, models.LedgerKindReferralPayout); errPay != nil {
			return nil, false, errPay
		}
	}
	return &rc, true, nil
}

// CreditReferrerForPurchaseTx pays every still-unpaid referrer of accountID when the
// payout trigger is first_purchase. It runs on the transaction that completes a purchase.
func (s *Service) CreditReferrerForPurchaseTx(ctx context.Context, tx *gorm.DB, accountID uint64) (int, error) {
	if s.Policy().PayoutTrigger != settings.PayoutTriggerFirstPurchase {
		return 0, nil
	}
	var pending []models.ReferralCode
	if errFind := tx.WithContext(ctx).
		Select("id").
		Where("referred_account_id = ? AND referrer_credited = ?", accountID, false).
		Order("id ASC").
		Find(&pending).Error; errFind != nil {
		return 0, fmt.Errorf("referrals: find unpaid referrals: %w", errFind)
	}
	paidCount := 0
	for _, rc := range pending {
		_, paid, errCredit := s.CreditReferrerTx(ctx, tx, rc.ID)
		if errCredit != nil {
			return paidCount, errCredit
		}
		if paid {
			paidCount++
		}
	}
	return paidCount, nil
}

func redemptionResult(err error) string {
	switch {
	case errors.Is(err, ErrCodeNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyRedeemed):
		return "already_redeemed"
	case errors.Is(err, ErrSelfReferral):
		return "self_referral"
	case errors.Is(err, ErrDuplicateReferrerPair):
		return "duplicate_pair"
	default:
		return "error"
	}
}

// wrapStorage passes business errors through and marks everything else as a storage failure.
func wrapStorage(err error) error {
	switch {
	case errors.Is(err, ErrCodeNotFound),
		errors.Is(err, ErrAlreadyRedeemed),
		errors.Is(err, ErrSelfReferral),
		errors.Is(err, ErrDuplicateReferrerPair),
		errors.Is(err, ErrNotRedeemed),
		errors.Is(err, accounts.ErrAccountNotFound),
		errs.IsValidation(err):
		return err
	default:
		return errs.Storage(err)
	}
}
