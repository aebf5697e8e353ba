package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/WarDekar/BB-Browser/internal/api"
	"github.com/WarDekar/BB-Browser/internal/browser"
	"github.com/WarDekar/BB-Browser/internal/config"
	"github.com/WarDekar/BB-Browser/internal/controller"
	"github.com/WarDekar/BB-Browser/internal/engine"
	"github.com/WarDekar/BB-Browser/internal/netutil"
	"github.com/WarDekar/BB-Browser/internal/notify"
	"github.com/WarDekar/BB-Browser/internal/session"
	"github.com/WarDekar/BB-Browser/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("agent config loaded",
		"bind_addr", cfg.BindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"engine", cfg.EngineBackend,
		"headless", cfg.Headless,
		"session_dir", cfg.SessionDir,
		"sites_file", cfg.SitesFile,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	eng, err := newEngine(cfg.EngineBackend)
	if err != nil {
		slog.Error("failed to start browser engine", "engine", cfg.EngineBackend, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Debug("engine close failed", "error", err)
		}
	}()

	sessions, err := session.NewStore(cfg.SessionDir)
	if err != nil {
		slog.Error("failed to create session store", "dir", cfg.SessionDir, "error", err)
		os.Exit(1)
	}

	instances := browser.NewRegistry(eng, sessions)
	notifier := notify.NewNotifier(cfg.NotifyEndpoint, nil)

	workflows := workflow.NewRegistry(workflow.Deps{
		Instances:    instances,
		Notifier:     notifier,
		PollInterval: cfg.LoginPollInterval(),
		PollTimeout:  cfg.LoginTimeout(),
	})
	workflows.Register("pinnacle", workflow.NewPinnacle)
	workflows.Register("generic", workflow.NewGeneric)

	sites := config.NewSiteStore(cfg.SitesFile, cfg.ProxiesFile)
	siteConfigs, err := sites.Sites()
	if err != nil {
		slog.Error("failed to load site configs", "file", cfg.SitesFile, "error", err)
		os.Exit(1)
	}
	for _, sc := range siteConfigs {
		if cfg.Headless {
			sc.Headless = true
		}
		if err := workflows.AddSite(sc); err != nil {
			slog.Warn("skipping invalid site config", "site", sc.ID, "error", err)
		}
	}
	slog.Info("sites loaded", "count", len(siteConfigs))

	svc := controller.NewService(instances, sessions, workflows, sites)
	h := api.NewServer(svc)

	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("agent listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("agent server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("agent shutdown failed", "error", err)
	}
	if err := workflows.CloseAll(ctx); err != nil {
		slog.Error("workflow shutdown failed", "error", err)
	}
}

func newEngine(backend string) (engine.Engine, error) {
	switch backend {
	case "chromedp":
		return engine.NewChromedp(), nil
	default:
		return engine.NewPlaywright()
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
