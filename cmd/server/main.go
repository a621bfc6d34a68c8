package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/approval"
	"github.com/retailcore/pos-approval/internal/cart"
	"github.com/retailcore/pos-approval/internal/config"
	httpserver "github.com/retailcore/pos-approval/internal/interfaces/http"
	"github.com/retailcore/pos-approval/internal/notify"
	"github.com/retailcore/pos-approval/internal/policy"
	"github.com/retailcore/pos-approval/internal/report"
	"github.com/retailcore/pos-approval/internal/repository"
	"github.com/retailcore/pos-approval/internal/store"
	"github.com/retailcore/pos-approval/internal/worker"
	"github.com/retailcore/pos-approval/migrations"
	"github.com/retailcore/pos-approval/pkg/database"
	"github.com/retailcore/pos-approval/pkg/logging"
	"github.com/retailcore/pos-approval/pkg/metrics"
)

func main() {
	// Local development credentials come from .env when present
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting POS override authorization service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(migrations.FS); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	tierRepo := repository.NewTierRepository(db.DB, logger)
	ruleRepo := repository.NewRuleRepository(db.DB, logger)
	requestRepo := repository.NewRequestRepository(db.DB, logger)
	auditRepo := repository.NewAuditRepository(db.DB, logger)

	// Configuration snapshot
	configStore := store.New(tierRepo, ruleRepo, logger)
	if err := configStore.Load(context.Background()); err != nil {
		logger.Fatal("Failed to load authorization configuration", zap.Error(err))
	}

	// Decision pipeline
	resolver := policy.NewResolver(logger)
	decider := policy.NewDecider(configStore, resolver, cfg.Approval.DefaultTimeoutSeconds, logger)

	// Approver notification channel
	var notifier approval.Notifier
	if cfg.Lark.AppID != "" {
		notifier = notify.NewLarkNotifier(notify.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
			ChatID:    cfg.Lark.ChatID,
		}, logger)
		logger.Info("Lark approver notifications enabled")
	} else {
		notifier = notify.NewLogNotifier(logger)
		logger.Warn("No approver channel configured, notifications are log only")
	}

	collector := metrics.NewCollector()
	consumer := cart.NewConsumer(logger)

	engine := approval.NewEngine(requestRepo, auditRepo, notifier, consumer, collector, logger)

	exporter := report.NewExporter(requestRepo, logger)

	// Background workers
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := worker.NewManager(logger)
	manager.Register(worker.NewTimeoutPoller(engine, cfg.Approval.PollInterval, cfg.Approval.PollBatchSize, logger))
	if err := manager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, decider, engine, configStore, auditRepo, exporter, collector, logger)

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server exited with error", zap.Error(err))
	}

	manager.StopAll()
	logger.Info("Server exited successfully")
}
