package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"TwoDSentinel/internal/api"
	"TwoDSentinel/internal/collector"
	"TwoDSentinel/internal/config"
	"TwoDSentinel/internal/notifier"
	"TwoDSentinel/internal/recorder"
	"TwoDSentinel/internal/scheduler"
	"TwoDSentinel/internal/session"
)

func main() {
	logger := logrus.StandardLogger()
	logger.Info("TwoDSentinel starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config validation: %v", err)
	}
	setupLogger(logger, cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalf("%v", err)
	}
	clock := session.NewZoneClock(loc)

	// Init source
	source := newSource(cfg, loc, clock)
	logger.Infof("data source: %s", source.Name())

	// Init history
	history, err := recorder.Open(cfg.History.Backend, cfg.HistoryPath())
	if err != nil {
		logger.Warnf("init %s history failed, using memory: %v", cfg.History.Backend, err)
		history = recorder.NewMemoryRecorder()
	}
	defer history.Close()

	// Init session machine
	machine := session.NewMachine(source, history, clock,
		session.WithFetchTimeout(cfg.FetchTimeout()),
		session.WithLogger(logger),
	)
	if records, err := history.ReadAll(); err != nil {
		logger.Warnf("read history for restore: %v", err)
	} else {
		machine.Restore(records, clock.Now())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init Telegram notifier
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		tn.Logger = logger
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, machine, history, tn, logger, loc)
	if err := sched.RegisterAll(cfg.Schedule.Tick); err != nil {
		logger.Fatalf("register tick: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		logger.Info("Telegram polling started")
	}

	// Init HTTP API
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewHandler(machine, history, clock, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http server: %v", err)
			stop()
		}
	}()

	logger.Info("TwoDSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()

	logger.Info("shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
	logger.Info("TwoDSentinel stopped")
}

func setupLogger(logger *logrus.Logger, cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Log.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if level < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}

func newSource(cfg *config.Config, loc *time.Location, clock session.Clock) collector.Source {
	opts := []collector.Option{
		collector.WithTimeout(cfg.FetchTimeout()),
		collector.WithRateLimit(cfg.Source.RatePerSecond),
		collector.WithProxy(cfg.Proxy),
		collector.WithClock(clock.Now),
	}
	switch cfg.Source.Kind {
	case config.SourceYahoo:
		return collector.NewYahooSource(cfg.Source.URL, cfg.Source.Symbol, loc, opts...)
	case config.SourceStatic:
		return &collector.StaticSource{Set: cfg.Source.StaticSet, Value: cfg.Source.StaticValue, Now: clock.Now}
	default:
		return collector.NewSETSource(cfg.Source.URL, loc, opts...)
	}
}
