package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"truck_notify_bot/internal/config"
	"truck_notify_bot/internal/dispatch"
	"truck_notify_bot/internal/domain"
	"truck_notify_bot/internal/feature/admin"
	"truck_notify_bot/internal/feature/user"
	"truck_notify_bot/internal/health"
	"truck_notify_bot/internal/logging"
	"truck_notify_bot/internal/mailer"
	"truck_notify_bot/internal/parser"
	"truck_notify_bot/internal/report"
	"truck_notify_bot/internal/sheets"
	"truck_notify_bot/internal/store"
	"truck_notify_bot/internal/telegram"
	"truck_notify_bot/internal/wizard"
)

const (
	mongoConnectTimeout     = 10 * time.Second
	mongoIndexTimeout       = 5 * time.Second
	mongoDisconnectTimeout  = 5 * time.Second
	adminBootstrapTimeout   = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
	healthShutdownTimeout   = 5 * time.Second
)

var processStart = time.Now()

type sessionStore interface {
	wizard.Store
	Count(ctx context.Context) (int64, error)
}

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":         "startup",
		"mongo_db":      cfg.MongoDB,
		"session_store": cfg.SessionStore,
		"smtp_enabled":  cfg.SMTPEnabled(),
	}).Info("configuration loaded")

	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	mongoManager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		fatal(logger, "mongo connection error", err)
	}

	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	if err := mongoManager.EnsureBaseIndexes(indexCtx); err != nil {
		cancelIndexes()
		fatal(logger, "mongo index setup error", err)
	}
	cancelIndexes()

	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

	adminRegistrar := admin.NewRegistrar(mongoManager.Users(), logger)
	adminCtx, cancelAdmin := context.WithTimeout(context.Background(), adminBootstrapTimeout)
	if err := adminRegistrar.EnsureAdmin(adminCtx, cfg.AdminChatID); err != nil {
		cancelAdmin()
		fatal(logger, "admin bootstrap error", err)
	}
	cancelAdmin()

	var sessions sessionStore
	if cfg.SessionStore == config.SessionStoreMemory {
		sessions = wizard.NewMemoryStore(cfg.WizardSessionTTL)
	} else {
		sessions = store.NewSessionStore(mongoManager.Sessions(), cfg.WizardSessionTTL)
	}

	sheetClient, err := sheets.New(cfg.ScriptURL, sheets.WithLogger(logger))
	if err != nil {
		fatal(logger, "sheets client setup error", err)
	}

	mail := mailer.New(mailer.Settings{
		Host:     cfg.SMTPServer,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.FromEmail,
	}, logger)
	if !mail.Enabled() {
		logger.WithField("event", "smtp_disabled").Warn("SMTP is not configured, reports will not be emailed")
	}

	tgClient, err := telegram.NewClient(cfg, logger,
		telegram.WithUserRegistrar(user.NewRegistrar(mongoManager.Users(), logger)),
	)
	if err != nil {
		fatal(logger, "telegram client setup error", err)
	}

	dispatcher, err := dispatch.New(dispatch.Deps{
		Sender:            tgClient,
		Parser:            parser.New(parser.WithDefaultTeam(cfg.DefaultTeam), parser.WithLogger(logger)),
		Wizard:            wizard.New(sessions, logger),
		Sheets:            sheetClient,
		Renderer:          report.NewRenderer(cfg.CompanyName),
		Mailer:            mail,
		Reports:           domain.NewReportRepository(mongoManager.Reports()),
		Users:             domain.NewUserRepository(mongoManager.Users()),
		Counts:            store.NewStatsProvider(mongoManager.Users(), mongoManager.Reports()),
		Sessions:          sessions,
		Stats:             dispatch.NewStats(processStart),
		AdminChatID:       cfg.AdminChatID,
		DefaultRecipients: cfg.DefaultRecipients,
		Logger:            logger,
	})
	if err != nil {
		fatal(logger, "dispatcher setup error", err)
	}
	tgClient.SetHandler(dispatcher)

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	healthServer := health.NewServer(cfg.HTTPPort, mongoManager, logger, health.WithSessionCounter(sessions))
	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithField("event", "health_error").WithError(err).Error("health server failed")
		}
	}()

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(healthCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelHealth()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	if err := mongoManager.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("mongo disconnect error")
	} else {
		logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
	}
	cancelShutdown()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}

func fatal(logger *logrus.Entry, msg string, err error) {
	logger.WithError(err).Error(msg)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
