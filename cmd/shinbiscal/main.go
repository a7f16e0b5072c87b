package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sambabiba/shinbis-calendar/internal/app"
	"github.com/sambabiba/shinbis-calendar/internal/assist"
	"github.com/sambabiba/shinbis-calendar/internal/config"
	appLog "github.com/sambabiba/shinbis-calendar/internal/log"
	"github.com/sambabiba/shinbis-calendar/internal/store"
	"github.com/sambabiba/shinbis-calendar/internal/web"
)

// flagConfig holds CLI flag values; CLI flags override the config file.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool
}

func main() {
	appLog.Info("shinbiscal starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.debug {
		conf.LogLevel = "DEBUG"
	}
	appLog.SetLevel(appLog.Level(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"data_path", conf.DataPath,
		"static_dir", conf.StaticDir,
		"backup_cron", conf.BackupCron,
		"gemini_model", conf.Gemini.Model,
		"gemini_key_set", conf.Gemini.APIKey != "",
	)

	// Storage. A database that cannot be opened degrades to an in-memory
	// blob so the calendar stays usable; the state just will not survive
	// a restart.
	blob, err := store.OpenBolt(conf.DataPath)
	if err != nil {
		appLog.Error("failed to open data file, running in-memory only", err, "data_path", conf.DataPath)
		blob = store.NewMemoryBlob()
	}
	defer blob.Close()

	st := store.New(blob)
	assistant := assist.NewClient(conf.Gemini.BaseURL, conf.Gemini.Model, conf.Gemini.APIKey)
	ctrl := app.New(st, assistant, time.Now)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	// Scheduled JSON backups of the event index.
	var scheduler *cron.Cron
	if conf.BackupCron != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(conf.BackupCron, func() {
			if berr := st.Backup(conf.BackupPath); berr != nil {
				appLog.Error("scheduled backup failed", berr, "path", conf.BackupPath)
				return
			}
			appLog.Info("scheduled backup written", "path", conf.BackupPath)
		})
		if err != nil {
			appLog.Error("invalid backup_cron, backups disabled", err, "backup_cron", conf.BackupCron)
		} else {
			scheduler.Start()
			defer scheduler.Stop()
		}
	}

	// Run the HTTP server until it fails or the context is cancelled.
	errCh := make(chan error, 1)
	go func() {
		errCh <- web.StartServer(ctx, conf, ctrl)
	}()

	select {
	case err := <-errCh:
		appLog.Error("HTTP server exited", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	appLog.Info("shinbiscal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
