// Package ledger stores the append-only history of balance changes.
package ledger

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/prepwise/creditcore/internal/errs"
	"github.com/prepwise/creditcore/internal/models"
	"gorm.io/gorm"
)

// PageSize is the number of rows fetched per History query.
const PageSize = 100

// KindOf returns the ledger kind encoded in reason.
// Purchase and spend reasons must carry a detail after the colon, e.g. "spend:analyze-answer".
func KindOf(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	kind, detail, hasDetail := strings.Cut(reason, ":")
	switch kind {
	case models.LedgerKindPurchase, models.LedgerKindSpend:
		if !hasDetail || strings.TrimSpace(detail) == "" {
			return "", errs.Invalid("reason", fmt.Sprintf("%s reason requires a detail", kind))
		}
		return kind, nil
	case models.LedgerKindReferralBonus, models.LedgerKindReferralPayout, models.LedgerKindAdminAdjustment:
		return kind, nil
	default:
		return "", errs.Invalid("reason", fmt.Sprintf("unknown ledger reason %q", reason))
	}
}

// Append writes one entry. It must run on the transaction that changed the account balance.
func Append(ctx context.Context, tx *gorm.DB, accountID uint64, delta int64, reason string) (*models.LedgerEntry, error) {
	if tx == nil {
		return nil, fmt.Errorf("ledger: nil transaction")
	}
	if delta == 0 {
		return nil, errs.Invalid("delta", "must not be zero")
	}
	kind, errKind := KindOf(reason)
	if errKind != nil {
		return nil, errKind
	}
	entry := models.LedgerEntry{
		AccountID: accountID,
		Delta:     delta,
		Kind:      kind,
		Reason:    strings.TrimSpace(reason),
	}
	if errCreate := tx.WithContext(ctx).Create(&entry).Error; errCreate != nil {
		return nil, fmt.Errorf("ledger: append: %w", errCreate)
	}
	return &entry, nil
}

// History yields an account's entries newest first, at most limit of them (all when limit <= 0).
// Rows are fetched lazily in keyset pages; every range starts again from the newest entry.
// A query failure is yielded once as a storage error and ends the sequence.
func History(ctx context.Context, db *gorm.DB, accountID uint64, limit int) iter.Seq2[models.LedgerEntry, error] {
	return func(yield func(models.LedgerEntry, error) bool) {
		var cursor uint64
		emitted := 0
		for {
			size := PageSize
			if limit > 0 && limit-emitted < size {
				size = limit - emitted
			}
			if size <= 0 {
				return
			}

			q := db.WithContext(ctx).Where("account_id = ?", accountID)
			if cursor > 0 {
				q = q.Where("id < ?", cursor)
			}
			var page []models.LedgerEntry
			if errFind := q.Order("id DESC").Limit(size).Find(&page).Error; errFind != nil {
				yield(models.LedgerEntry{}, errs.Storage(fmt.Errorf("ledger: history: %w", errFind)))
				return
			}
			for _, entry := range page {
				if !yield(entry, nil) {
					return
				}
				emitted++
			}
			if len(page) < size {
				return
			}
			cursor = page[len(page)-1].ID
		}
	}
}

// Sum returns the total of all deltas recorded for an account.
func Sum(ctx context.Context, db *gorm.DB, accountID uint64) (int64, error) {
	var total int64
	if errSum := db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&total).Error; errSum != nil {
		return 0, errs.Storage(fmt.Errorf("ledger: sum: %w", errSum))
	}
	return total, nil
}
