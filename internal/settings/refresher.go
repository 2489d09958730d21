package settings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const refreshTimeout = 10 * time.Second

// Refresher reloads the snapshot on a cron schedule so overrides written by other
// instances sharing the database take effect here too.
type Refresher struct {
	cron *cron.Cron
	db   *gorm.DB
}

// NewRefresher parses schedule. An empty schedule returns a nil Refresher, whose Start is a no-op.
func NewRefresher(db *gorm.DB, schedule string) (*Refresher, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return nil, nil
	}
	if db == nil {
		return nil, fmt.Errorf("settings: nil db")
	}
	cronLogger := cron.PrintfLogger(log.StandardLogger())
	r := &Refresher{
		cron: cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		db:   db,
	}
	if _, errAdd := r.cron.AddFunc(schedule, r.run); errAdd != nil {
		return nil, fmt.Errorf("settings: refresh schedule %q: %w", schedule, errAdd)
	}
	return r, nil
}

// Start begins scheduling in the background and stops when ctx is done.
func (r *Refresher) Start(ctx context.Context) {
	if r == nil {
		return
	}
	r.cron.Start()
	go func() {
		<-ctx.Done()
		<-r.cron.Stop().Done()
	}()
}

func (r *Refresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if errRefresh := RefreshDBConfigSnapshot(ctx, r.db); errRefresh != nil {
		log.WithError(errRefresh).Warn("settings: periodic refresh failed, keeping previous snapshot")
	}
}
