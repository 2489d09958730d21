package accounts

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"

	dbpkg "github.com/prepwise/creditcore/internal/db"
	"github.com/prepwise/creditcore/internal/errs"
	"github.com/prepwise/creditcore/internal/ledger"
	"github.com/prepwise/creditcore/internal/models"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, errOpen := dbpkg.Open(filepath.Join(t.TempDir(), "accounts.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	t.Cleanup(func() { _ = dbpkg.Close(conn) })
	return NewStore(conn)
}

func mustCreate(t *testing.T, store *Store, email string) *models.Account {
	t.Helper()
	account, errCreate := store.Create(context.Background(), email, "")
	if errCreate != nil {
		t.Fatalf("create %s: %v", email, errCreate)
	}
	return account
}

func mustVerify(t *testing.T, store *Store, accountID uint64) Verification {
	t.Helper()
	v, errVerify := store.Verify(context.Background(), accountID)
	if errVerify != nil {
		t.Fatalf("verify account %d: %v", accountID, errVerify)
	}
	return v
}

func ledgerCount(t *testing.T, store *Store, accountID uint64) int64 {
	t.Helper()
	var count int64
	if errCount := store.DB().Model(&models.LedgerEntry{}).Where("account_id = ?", accountID).Count(&count).Error; errCount != nil {
		t.Fatalf("count ledger: %v", errCount)
	}
	return count
}

func TestCreateRejectsCaseInsensitiveDuplicate(t *testing.T) {
	store := newTestStore(t)
	mustCreate(t, store, "Alice@Example.com")

	_, errCreate := store.Create(context.Background(), "alice@example.COM", "")
	if !errors.Is(errCreate, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", errCreate)
	}

	found, errFind := store.FindByEmail(context.Background(), "ALICE@example.com")
	if errFind != nil {
		t.Fatalf("find by email: %v", errFind)
	}
	if found.Email != "Alice@Example.com" {
		t.Fatalf("expected email as given, got %s", found.Email)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	store := newTestStore(t)
	for _, email := range []string{"", "not-an-email", "Bob <bob@example.com>"} {
		if _, errCreate := store.Create(context.Background(), email, ""); !errs.IsValidation(errCreate) {
			t.Fatalf("email %q: expected validation error, got %v", email, errCreate)
		}
	}
	if _, errCreate := store.Create(context.Background(), "short@example.com", "abc"); !errs.IsValidation(errCreate) {
		t.Fatalf("expected weak password to fail validation, got %v", errCreate)
	}
}

func TestFindByIDMissing(t *testing.T) {
	store := newTestStore(t)
	if _, errFind := store.FindByID(context.Background(), 42); !errors.Is(errFind, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", errFind)
	}
}

func TestAdjustBalanceAppendsLedgerEntry(t *testing.T) {
	store := newTestStore(t)
	account := mustCreate(t, store, "credit@example.com")

	updated, errCredit := store.Credit(context.Background(), account.ID, 10, "purchase:10-credits")
	if errCredit != nil {
		t.Fatalf("credit: %v", errCredit)
	}
	if updated.Balance != 10 {
		t.Fatalf("expected balance 10, got %d", updated.Balance)
	}
	updated, errDebit := store.Debit(context.Background(), account.ID, "analyze-answer")
	if errDebit != nil {
		t.Fatalf("debit: %v", errDebit)
	}
	if updated.Balance != 9 {
		t.Fatalf("expected balance 9, got %d", updated.Balance)
	}

	var entries []models.LedgerEntry
	for entry, errHistory := range ledger.History(context.Background(), store.DB(), account.ID, 0) {
		if errHistory != nil {
			t.Fatalf("history: %v", errHistory)
		}
		entries = append(entries, entry)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Delta != -1 || entries[0].Kind != models.LedgerKindSpend || entries[0].Reason != "spend:analyze-answer" {
		t.Fatalf("unexpected newest entry: %+v", entries[0])
	}
	if entries[1].Delta != 10 || entries[1].Kind != models.LedgerKindPurchase {
		t.Fatalf("unexpected oldest entry: %+v", entries[1])
	}
	mustVerify(t, store, account.ID)
}

func TestDebitWithoutBalanceWritesNothing(t *testing.T) {
	store := newTestStore(t)
	account := mustCreate(t, store, "empty@example.com")

	_, errDebit := store.Debit(context.Background(), account.ID, "analyze-answer")
	if !errors.Is(errDebit, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", errDebit)
	}
	if count := ledgerCount(t, store, account.ID); count != 0 {
		t.Fatalf("expected no ledger entries, got %d", count)
	}
	if v := mustVerify(t, store, account.ID); v.Balance != 0 {
		t.Fatalf("expected balance 0, got %d", v.Balance)
	}
}

func TestAdjustBalanceErrors(t *testing.T) {
	store := newTestStore(t)
	account := mustCreate(t, store, "errors@example.com")
	ctx := context.Background()

	if _, err := store.AdjustBalance(ctx, 999, 5, "admin-adjustment"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := store.AdjustBalance(ctx, account.ID, 0, "admin-adjustment"); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for zero delta, got %v", err)
	}
	if _, err := store.AdjustBalance(ctx, account.ID, 5, "gift"); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for unknown reason, got %v", err)
	}
	if _, err := store.Credit(ctx, account.ID, -5, "admin-adjustment"); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for negative credit, got %v", err)
	}
	if _, err := store.Debit(ctx, account.ID, "  "); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for empty spend reason, got %v", err)
	}
}

func TestCreditPastInt64CeilingIsRejected(t *testing.T) {
	store := newTestStore(t)
	account := mustCreate(t, store, "ceiling@example.com")
	ctx := context.Background()

	if _, err := store.AdjustBalance(ctx, account.ID, math.MaxInt64, "admin-adjustment"); err != nil {
		t.Fatalf("credit to ceiling: %v", err)
	}
	_, err := store.AdjustBalance(ctx, account.ID, 1, "admin-adjustment")
	if !errs.IsValidation(err) {
		t.Fatalf("expected validation error on overflow, got %v", err)
	}
	if errors.Is(err, errs.ErrStorageUnavailable) {
		t.Fatalf("overflow must not be reported as a storage failure: %v", err)
	}

	v := mustVerify(t, store, account.ID)
	if v.Balance != math.MaxInt64 {
		t.Fatalf("expected balance to stay at the ceiling, got %d", v.Balance)
	}
	if got := ledgerCount(t, store, account.ID); got != 1 {
		t.Fatalf("expected one ledger entry, got %d", got)
	}
	if _, err := store.AdjustBalance(ctx, account.ID, -1, "admin-adjustment"); err != nil {
		t.Fatalf("debit from ceiling: %v", err)
	}
}

func TestConcurrentDebitsOfLastCredit(t *testing.T) {
	store := newTestStore(t)
	account := mustCreate(t, store, "d@example.com")
	if _, errCredit := store.Credit(context.Background(), account.ID, 1, "admin-adjustment"); errCredit != nil {
		t.Fatalf("seed credit: %v", errCredit)
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = store.Debit(context.Background(), account.ID, "analyze-answer")
		}(i)
	}
	wg.Wait()

	successes, insufficient := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || insufficient != 1 {
		t.Fatalf("expected one success and one ErrInsufficientBalance, got %d and %d", successes, insufficient)
	}

	var spends int64
	if errCount := store.DB().Model(&models.LedgerEntry{}).
		Where("account_id = ? AND delta = ?", account.ID, -1).
		Count(&spends).Error; errCount != nil {
		t.Fatalf("count spends: %v", errCount)
	}
	if spends != 1 {
		t.Fatalf("expected exactly one -1 entry, got %d", spends)
	}
	if v := mustVerify(t, store, account.ID); v.Balance != 0 {
		t.Fatalf("expected final balance 0, got %d", v.Balance)
	}
}

func TestManyConcurrentDebitsNeverOverspend(t *testing.T) {
	store := newTestStore(t)
	account := mustCreate(t, store, "many@example.com")
	if _, errCredit := store.Credit(context.Background(), account.ID, 5, "admin-adjustment"); errCredit != nil {
		t.Fatalf("seed credit: %v", errCredit)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Debit(context.Background(), account.ID, "generate-question"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 5 {
		t.Fatalf("expected 5 successful debits, got %d", successes)
	}
	if v := mustVerify(t, store, account.ID); v.Balance != 0 || v.LedgerSum != 0 {
		t.Fatalf("unexpected verification: %+v", v)
	}
}

func TestAdjustBalanceTxRollsBackWithCaller(t *testing.T) {
	store := newTestStore(t)
	account := mustCreate(t, store, "rollback@example.com")
	rollback := errors.New("caller failed")

	errTx := store.DB().Transaction(func(tx *gorm.DB) error {
		if _, err := AdjustBalanceTx(context.Background(), tx, account.ID, 3, "referral-bonus"); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(errTx, rollback) {
		t.Fatalf("expected caller error, got %v", errTx)
	}
	if v := mustVerify(t, store, account.ID); v.Balance != 0 {
		t.Fatalf("expected rolled-back balance 0, got %d", v.Balance)
	}
	if count := ledgerCount(t, store, account.ID); count != 0 {
		t.Fatalf("expected no ledger entries after rollback, got %d", count)
	}
}

func TestVerifyDetectsMismatch(t *testing.T) {
	store := newTestStore(t)
	account := mustCreate(t, store, "drift@example.com")
	if _, errCredit := store.Credit(context.Background(), account.ID, 4, "admin-adjustment"); errCredit != nil {
		t.Fatalf("credit: %v", errCredit)
	}
	if errUpdate := store.DB().Model(&models.Account{}).Where("id = ?", account.ID).Update("balance", 7).Error; errUpdate != nil {
		t.Fatalf("tamper balance: %v", errUpdate)
	}

	v, errVerify := store.Verify(context.Background(), account.ID)
	if !errors.Is(errVerify, ErrBalanceMismatch) {
		t.Fatalf("expected ErrBalanceMismatch, got %v", errVerify)
	}
	if v.Balance != 7 || v.LedgerSum != 4 {
		t.Fatalf("unexpected verification values: %+v", v)
	}
	if _, errMissing := store.Verify(context.Background(), 12345); !errors.Is(errMissing, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", errMissing)
	}
}

func TestAuthenticate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, errCreate := store.Create(ctx, "login@example.com", "correct horse"); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	external := mustCreate(t, store, "sso@example.com")

	if _, err := store.Authenticate(ctx, "LOGIN@example.com", "correct horse"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := store.Authenticate(ctx, "login@example.com", "wrong horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := store.Authenticate(ctx, "nobody@example.com", "whatever1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
	if _, err := store.Authenticate(ctx, external.Email, ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("external accounts must not log in with a password, got %v", err)
	}
}

func TestSetDisabledBlocksAuthentication(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account, errCreate := store.Create(ctx, "blocked@example.com", "correct horse")
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	disabled, errSet := store.SetDisabled(ctx, account.ID, true)
	if errSet != nil || !disabled.Disabled {
		t.Fatalf("disable: %+v, %v", disabled, errSet)
	}
	if _, err := store.Authenticate(ctx, account.Email, "correct horse"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
	if _, errSet := store.SetDisabled(ctx, account.ID, false); errSet != nil {
		t.Fatalf("enable: %v", errSet)
	}
	if _, err := store.Authenticate(ctx, account.Email, "correct horse"); err != nil {
		t.Fatalf("authenticate after enable: %v", err)
	}
	if _, errSet := store.SetDisabled(ctx, 9999, true); !errors.Is(errSet, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", errSet)
	}
}
