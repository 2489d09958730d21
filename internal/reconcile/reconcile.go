// Package reconcile checks every cached balance against its ledger on a schedule.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prepwise/creditcore/internal/accounts"
	"github.com/prepwise/creditcore/internal/errs"
	"github.com/prepwise/creditcore/internal/metrics"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Report summarises one reconciliation run.
type Report struct {
	Checked    int64                   `json:"checked"`
	Mismatches []accounts.Verification `json:"mismatches"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
}

// Reconciler compares cached balances with ledger sums. It reports and never repairs.
type Reconciler struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Reconciler {
	return &Reconciler{db: db}
}

// RunOnce verifies every account and publishes the mismatch gauge.
func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	report := Report{StartedAt: time.Now().UTC()}

	if errCount := r.db.WithContext(ctx).Table("accounts").Count(&report.Checked).Error; errCount != nil {
		return report, errs.Storage(fmt.Errorf("reconcile: count accounts: %w", errCount))
	}
	errScan := r.db.WithContext(ctx).Raw(`
		SELECT a.id AS account_id, a.balance AS balance, COALESCE(SUM(l.delta), 0) AS ledger_sum
		FROM accounts a
		LEFT JOIN ledger_entries l ON l.account_id = a.id
		GROUP BY a.id, a.balance
		HAVING a.balance <> COALESCE(SUM(l.delta), 0)
		ORDER BY a.id ASC
	`).Scan(&report.Mismatches).Error
	if errScan != nil {
		return report, errs.Storage(fmt.Errorf("reconcile: scan ledger: %w", errScan))
	}
	report.FinishedAt = time.Now().UTC()

	metrics.ReconcileMismatches.Set(float64(len(report.Mismatches)))
	metrics.ReconcileLastRun.Set(float64(report.FinishedAt.Unix()))
	for _, m := range report.Mismatches {
		log.WithFields(log.Fields{
			"account_id": m.AccountID,
			"balance":    m.Balance,
			"ledger_sum": m.LedgerSum,
		}).Error("reconcile: cached balance differs from ledger")
	}
	log.Infof("reconcile: checked %d accounts, %d mismatched (%s)", report.Checked, len(report.Mismatches), report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

// Scheduler runs the reconciler on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	reconciler *Reconciler
	timeout    time.Duration
}

// NewScheduler parses schedule, which accepts standard five-field expressions and
// descriptors such as "@every 1h".
func NewScheduler(reconciler *Reconciler, schedule string) (*Scheduler, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return nil, fmt.Errorf("reconcile: empty schedule")
	}
	cronLogger := cron.PrintfLogger(log.StandardLogger())
	s := &Scheduler{
		cron:       cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		reconciler: reconciler,
		timeout:    10 * time.Minute,
	}
	if _, errAdd := s.cron.AddFunc(schedule, s.run); errAdd != nil {
		return nil, fmt.Errorf("reconcile: schedule %q: %w", schedule, errAdd)
	}
	return s, nil
}

// Start begins scheduling in the background and stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.cron.Start()
	log.Info("reconcile scheduler started")
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		log.Info("reconcile scheduler stopped")
	}()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, errRun := s.reconciler.RunOnce(ctx); errRun != nil {
		log.WithError(errRun).Warn("reconcile: run failed")
	}
}
