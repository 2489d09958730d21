package webhook

import (
	"context"
	"time"

	"github.com/prepwise/creditcore/internal/config"
	"github.com/prepwise/creditcore/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultRetentionInterval = 6 * time.Hour
	defaultDeleteBatchSize   = 5000
	maxDeleteBatchesPerRun   = 2000
)

// RetentionCleaner periodically deletes old rows from the webhook_events table.
type RetentionCleaner struct {
	db        *gorm.DB
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewRetentionCleaner returns a cleaner, or nil when db is nil.
func NewRetentionCleaner(db *gorm.DB, cfg config.RetentionConfig) *RetentionCleaner {
	if db == nil {
		return nil
	}
	c := &RetentionCleaner{
		db:        db,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		now:       time.Now,
	}
	if c.interval <= 0 {
		c.interval = defaultRetentionInterval
	}
	if c.batchSize <= 0 {
		c.batchSize = defaultDeleteBatchSize
	}
	return c
}

// Start launches the cleanup loop in a background goroutine.
func (c *RetentionCleaner) Start(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go c.run(ctx)
	log.Infof("webhook events retention cleaner started (interval=%s)", c.interval)
}

func (c *RetentionCleaner) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.cleanupOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// cleanupOnce deletes expired rows in batches and returns how many were removed.
func (c *RetentionCleaner) cleanupOnce(ctx context.Context) int64 {
	retentionDays := settings.Int(settings.WebhookEventsRetentionDaysKey, settings.DefaultWebhookEventsRetentionDays)
	if retentionDays <= 0 {
		return 0
	}
	cutoff := c.now().UTC().AddDate(0, 0, -int(retentionDays))

	deletedTotal := int64(0)
	for i := 0; i < maxDeleteBatchesPerRun; i++ {
		if ctx.Err() != nil {
			break
		}
		n, err := c.deleteBatch(ctx, cutoff)
		if err != nil {
			log.WithError(err).Warn("webhook events retention cleaner: delete batch failed")
			break
		}
		if n <= 0 {
			break
		}
		deletedTotal += n
	}

	if deletedTotal > 0 {
		log.Infof("webhook events retention cleaner: deleted %d rows (cutoff=%s retention_days=%d)", deletedTotal, cutoff.Format(time.RFC3339), retentionDays)
	}
	return deletedTotal
}

func (c *RetentionCleaner) deleteBatch(ctx context.Context, cutoff time.Time) (int64, error) {
	// A limited subquery keeps each statement short.
	res := c.db.WithContext(ctx).Exec(`
		DELETE FROM webhook_events
		WHERE id IN (
			SELECT id FROM webhook_events
			WHERE received_at < ?
			ORDER BY received_at ASC
			LIMIT ?
		)
	`, cutoff, c.batchSize)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
