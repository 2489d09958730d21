package purchases

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prepwise/creditcore/internal/accounts"
	"github.com/prepwise/creditcore/internal/billing"
	"github.com/prepwise/creditcore/internal/config"
	dbpkg "github.com/prepwise/creditcore/internal/db"
	"github.com/prepwise/creditcore/internal/errs"
	"github.com/prepwise/creditcore/internal/models"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	tracker *Tracker
	account *models.Account
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn, errOpen := dbpkg.Open(filepath.Join(t.TempDir(), "purchases.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	t.Cleanup(func() { _ = dbpkg.Close(conn) })

	catalog, errCatalog := billing.NewCatalog([]config.PackConfig{
		{ID: "10-credits", Credits: 10, PriceMinor: 499, Currency: "usd"},
	})
	if errCatalog != nil {
		t.Fatalf("catalog: %v", errCatalog)
	}
	account, errCreate := accounts.NewStore(conn).Create(context.Background(), "buyer@example.com", "")
	if errCreate != nil {
		t.Fatalf("create account: %v", errCreate)
	}
	return fixture{db: conn, tracker: NewTracker(conn, catalog), account: account}
}

func (f fixture) pending(t *testing.T) *models.Transaction {
	t.Helper()
	txn, err := f.tracker.CreatePending(context.Background(), f.account.ID, "10-credits", 10, 499, "USD")
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	return txn
}

func TestCreatePending(t *testing.T) {
	f := newFixture(t)
	txn := f.pending(t)
	if txn.Status != models.TransactionStatusPending || txn.ExternalPaymentID != nil || txn.Currency != "usd" {
		t.Fatalf("unexpected transaction: %+v", txn)
	}

	ctx := context.Background()
	if _, err := f.tracker.CreatePending(ctx, f.account.ID, "", 10, 499, "usd"); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for empty pack, got %v", err)
	}
	if _, err := f.tracker.CreatePending(ctx, f.account.ID, "10-credits", 0, 499, "usd"); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for zero credits, got %v", err)
	}
	if _, err := f.tracker.CreatePending(ctx, 999, "10-credits", 10, 499, "usd"); !errors.Is(err, accounts.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestBindExternalID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn := f.pending(t)

	bound, err := f.tracker.BindExternalID(ctx, txn.ID, "pi_123")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if bound.ExternalPaymentID == nil || *bound.ExternalPaymentID != "pi_123" {
		t.Fatalf("unexpected binding: %+v", bound)
	}
	if _, err = f.tracker.BindExternalID(ctx, txn.ID, "pi_123"); err != nil {
		t.Fatalf("rebinding the same id must be a no-op, got %v", err)
	}
	if _, err = f.tracker.BindExternalID(ctx, txn.ID, "pi_999"); !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("expected ErrAlreadyBound for a different id, got %v", err)
	}

	other := f.pending(t)
	if _, err = f.tracker.BindExternalID(ctx, other.ID, "pi_123"); !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("expected ErrAlreadyBound for an id used elsewhere, got %v", err)
	}
	if _, err = f.tracker.BindExternalID(ctx, 999, "pi_x"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}

	found, err := f.tracker.FindByExternalID(ctx, "pi_123")
	if err != nil || found.ID != txn.ID {
		t.Fatalf("find by external id: %+v, %v", found, err)
	}
	if _, err = f.tracker.FindByExternalID(ctx, "pi_unknown"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn := f.pending(t)

	first, err := f.tracker.Complete(ctx, txn.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if first.Status != models.TransactionStatusCompleted || first.CompletedAt == nil {
		t.Fatalf("unexpected completed transaction: %+v", first)
	}
	second, err := f.tracker.Complete(ctx, txn.ID)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Fatalf("second complete changed the record: %v vs %v", second.CompletedAt, first.CompletedAt)
	}

	if _, err = f.tracker.Fail(ctx, txn.ID, "card declined"); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized when failing a completed transaction, got %v", err)
	}
	if _, err = f.tracker.BindExternalID(ctx, txn.ID, "pi_late"); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized when binding a completed transaction, got %v", err)
	}
}

func TestCompleteTxReportsTransition(t *testing.T) {
	f := newFixture(t)
	txn := f.pending(t)

	for i, want := range []bool{true, false} {
		var transitioned bool
		errTx := f.db.Transaction(func(tx *gorm.DB) error {
			var err error
			_, transitioned, err = CompleteTx(context.Background(), tx, txn.ID)
			return err
		})
		if errTx != nil {
			t.Fatalf("call %d: %v", i, errTx)
		}
		if transitioned != want {
			t.Fatalf("call %d: expected transitioned=%v", i, want)
		}
	}
}

func TestFail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn := f.pending(t)

	failed, err := f.tracker.Fail(ctx, txn.ID, "card declined")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if failed.Status != models.TransactionStatusFailed || failed.FailureReason != "card declined" || failed.FailedAt == nil {
		t.Fatalf("unexpected failed transaction: %+v", failed)
	}
	if _, err = f.tracker.Fail(ctx, txn.ID, "again"); err != nil {
		t.Fatalf("failing twice must be a no-op, got %v", err)
	}
	if _, err = f.tracker.Complete(ctx, txn.ID); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized when completing a failed transaction, got %v", err)
	}
	if _, err = f.tracker.Fail(ctx, 999, "x"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestStartPurchaseUsesCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn, err := f.tracker.StartPurchase(ctx, f.account.ID, "10-credits", "pi_abc")
	if err != nil {
		t.Fatalf("start purchase: %v", err)
	}
	if txn.CreditsRequested != 10 || txn.AmountPaidMinorUnits != 499 || txn.ExternalPaymentID == nil {
		t.Fatalf("unexpected transaction: %+v", txn)
	}
	if _, err = f.tracker.StartPurchase(ctx, f.account.ID, "10-credits", "pi_abc"); !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("expected ErrAlreadyBound for reused payment id, got %v", err)
	}
	if _, err = f.tracker.StartPurchase(ctx, f.account.ID, "999-credits", ""); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for unknown pack, got %v", err)
	}
}
