package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prepwise/creditcore/internal/accounts"
	"github.com/prepwise/creditcore/internal/billing"
	"github.com/prepwise/creditcore/internal/cache"
	"github.com/prepwise/creditcore/internal/config"
	"github.com/prepwise/creditcore/internal/db"
	corehttp "github.com/prepwise/creditcore/internal/http"
	"github.com/prepwise/creditcore/internal/http/api/admin"
	"github.com/prepwise/creditcore/internal/http/api/front"
	"github.com/prepwise/creditcore/internal/http/api/webhooks"
	"github.com/prepwise/creditcore/internal/logging"
	"github.com/prepwise/creditcore/internal/purchases"
	"github.com/prepwise/creditcore/internal/reconcile"
	"github.com/prepwise/creditcore/internal/referrals"
	"github.com/prepwise/creditcore/internal/security"
	"github.com/prepwise/creditcore/internal/settings"
	"github.com/prepwise/creditcore/internal/webhook"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrBalanceMismatch is returned by Reconcile when at least one account disagrees with its ledger.
var ErrBalanceMismatch = errors.New("reconcile found mismatched balances")

const limiterCleanupInterval = time.Minute

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(conn) }()
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	log.Info("migrations applied")
	return nil
}

// RunServer boots the HTTP API and the background jobs, and blocks until ctx is done.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logCloser, err := logging.Setup(conf.Logging)
	if err != nil {
		return err
	}
	defer closeQuietly("log output", logCloser)

	conn, err := db.Open(conf.Database.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(conn) }()
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return errRefresh
	}

	profiles, err := cache.New(ctx, conf.Cache)
	if err != nil {
		return err
	}
	defer closeQuietly("profile cache", profiles)

	engine, err := buildEngine(ctx, conn, conf, profiles)
	if err != nil {
		return err
	}

	refresher, errRefresher := settings.NewRefresher(conn, conf.Settings.RefreshSchedule)
	if errRefresher != nil {
		return errRefresher
	}
	refresher.Start(ctx)

	webhook.NewRetentionCleaner(conn, conf.Retention).Start(ctx)
	if conf.Reconcile.Enabled {
		scheduler, errScheduler := reconcile.NewScheduler(reconcile.New(conn), conf.Reconcile.Schedule)
		if errScheduler != nil {
			return errScheduler
		}
		scheduler.Start(ctx)
	}

	server := &http.Server{
		Addr:         conf.Server.Addr,
		Handler:      engine,
		ReadTimeout:  conf.Server.ReadTimeout,
		WriteTimeout: conf.Server.WriteTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Infof("creditcore listening on %s (config=%s)", conf.Server.Addr, configPath)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			serveErr <- errServe
		}
		close(serveErr)
	}()

	select {
	case errServe := <-serveErr:
		if errServe != nil {
			return fmt.Errorf("http server: %w", errServe)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownGrace)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("http shutdown: %w", errShutdown)
	}
	return nil
}

// buildEngine wires every service into the gin engine.
func buildEngine(ctx context.Context, conn *gorm.DB, conf config.Config, profiles cache.ProfileCache) (*gin.Engine, error) {
	engine, err := corehttp.NewEngine(conf.Server)
	if err != nil {
		return nil, err
	}

	store := accounts.NewStore(conn)
	catalog, err := billing.NewCatalog(conf.Packs)
	if err != nil {
		return nil, err
	}
	tracker := purchases.NewTracker(conn, catalog)
	referralService := referrals.NewService(conn, conf.Referral)
	processor := webhook.NewProcessor(conn, tracker, referralService, conf.Webhook)

	limiter := corehttp.NewRateLimiter(conf.RateLimit)
	limiter.StartCleanup(ctx, limiterCleanupInterval)

	front.RegisterFrontRoutes(engine, front.Dependencies{
		Accounts:  store,
		Purchases: tracker,
		Referrals: referralService,
		Catalog:   catalog,
		Profiles:  profiles,
		JWT:       conf.JWT,
		Limiter:   limiter,
	})
	admin.RegisterAdminRoutes(engine, admin.Dependencies{
		Accounts:  store,
		Purchases: tracker,
		Referrals: referralService,
		Profiles:  profiles,
		JWT:       conf.JWT,
	})
	webhooks.RegisterWebhookRoutes(engine, processor)
	engine.GET("/readyz", corehttp.ReadinessHandler(conn))
	return engine, nil
}

// Reconcile runs one balance verification pass.
func Reconcile(ctx context.Context, cfg config.AppConfig) (reconcile.Report, error) {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return reconcile.Report{}, err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return reconcile.Report{}, err
	}
	defer func() { _ = db.Close(conn) }()

	report, err := reconcile.New(conn).RunOnce(ctx)
	if err != nil {
		return report, err
	}
	if len(report.Mismatches) > 0 {
		return report, fmt.Errorf("%w: %d account(s)", ErrBalanceMismatch, len(report.Mismatches))
	}
	return report, nil
}

// IssueAdminToken signs an operator token with the configured secret and admin expiry.
func IssueAdminToken(cfg config.AppConfig, adminID uint64) (string, error) {
	if adminID == 0 {
		return "", fmt.Errorf("admin id must be positive")
	}
	conf, err := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return "", err
	}
	return security.GenerateAdminToken(conf.JWT.Secret, adminID, conf.JWT.AdminExpiry)
}

func closeQuietly(name string, closer io.Closer) {
	if closer == nil {
		return
	}
	if errClose := closer.Close(); errClose != nil {
		log.WithError(errClose).Warnf("close %s", name)
	}
}
