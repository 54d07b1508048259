package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sydlexius/walkup/internal/config"
	"github.com/sydlexius/walkup/internal/device"
	"github.com/sydlexius/walkup/internal/event"
	"github.com/sydlexius/walkup/internal/history"
	"github.com/sydlexius/walkup/internal/imaging"
	"github.com/sydlexius/walkup/internal/logging"
	"github.com/sydlexius/walkup/internal/output"
	"github.com/sydlexius/walkup/internal/scan"
	"github.com/sydlexius/walkup/internal/version"
	"github.com/sydlexius/walkup/internal/webhook"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(version.Version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := os.Getenv("WU_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logManager, logger := logging.NewManager(loggingConfig(cfg))
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Live logging reconfiguration on config file edits.
	go logging.WatchConfig(ctx, configPath, logger, func() {
		fresh, err := config.Load(configPath)
		if err != nil {
			logger.Warn("reloading config failed", "error", err)
			return
		}
		logManager.Reconfigure(loggingConfig(fresh))
	})

	db, err := history.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing history database", "error", err)
		}
	}()
	store := history.NewStore(db)

	bus := event.NewBus(logger, 64)
	go bus.Run(ctx)

	if len(cfg.Webhooks) > 0 {
		targets := make([]webhook.Target, 0, len(cfg.Webhooks))
		for _, w := range cfg.Webhooks {
			targets = append(targets, webhook.Target{Name: w.Name, URL: w.URL, Events: w.Events})
		}
		dispatcher := webhook.NewDispatcher(targets, logger)
		bus.Subscribe(event.ScanCompleted, dispatcher.HandleEvent)
		bus.Subscribe(event.ScanCanceled, dispatcher.HandleEvent)
	}

	client := device.New(cfg.Device.Host, cfg.Device.RequestsPerSecond, logger)
	caps, err := client.GetCapabilities(ctx)
	if err != nil {
		return fmt.Errorf("fetching device capabilities: %w", err)
	}
	logger.Info("device ready",
		slog.String("host", cfg.Device.Host),
		slog.Bool("multiItemPlaten", caps.MultiItemPlaten))

	repair := func(path string) (int, bool) {
		h, repaired, err := imaging.RepairHeight(path)
		if err != nil {
			logger.Warn("page repair failed", "path", path, "error", err)
			return 0, false
		}
		return h, repaired
	}

	listener := scan.NewListener(client, logger)
	listener.SetLongPollTimeout(cfg.Device.LongPollTimeout)
	driver := scan.NewDriver(client, repair, logger)
	session := scan.NewSession(client, listener, driver, *caps, scan.Options{
		OutputDir:   cfg.Output.Dir,
		TempDir:     cfg.Output.TempDir,
		FilePattern: cfg.Scan.FilePattern,
		Resolution:  cfg.Scan.Resolution,
		Width:       cfg.Scan.Width,
		Height:      cfg.Scan.Height,
		Duplex:      cfg.Scan.Duplex,
	}, logger)
	processor := output.NewProcessor(bus, cfg.Output.Thumbnails, cfg.Output.ThumbnailEdge, logger)

	mode := "serve"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	switch mode {
	case "single-scan":
		bus.Publish(event.ScanStarted, map[string]any{"mode": mode})
		res, err := session.SingleScan(ctx)
		if err != nil {
			return err
		}
		return finishSession(ctx, res, processor, store, logger)

	case "adf-scan":
		interval := time.Duration(cfg.Scan.AdfPollIntervalMs) * time.Millisecond
		delay := time.Duration(cfg.Scan.AdfStartDelayMs) * time.Millisecond
		for {
			if err := scan.WaitAdfLoaded(ctx, client, logger, interval, delay); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			bus.Publish(event.ScanStarted, map[string]any{"mode": mode})
			res, err := session.AdfAutoScan(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if err := finishSession(ctx, res, processor, store, logger); err != nil {
				logger.Error("post-processing failed", "error", err)
			}
		}

	case "serve":
		return serveWalkup(ctx, cfg, client, listener, session, processor, store, bus, logger)

	default:
		return fmt.Errorf("unknown command %q", mode)
	}
}

// serveWalkup registers this host as a walk-up destination and serves
// panel-initiated scans until the context is canceled.
func serveWalkup(ctx context.Context, cfg *config.Config, client *device.Client, listener *scan.Listener, session *scan.Session, processor *output.Processor, store *history.Store, bus *event.Bus, logger *slog.Logger) error {
	label := cfg.Device.Label
	if label == "" {
		label, _ = os.Hostname()
	}

	destRef, err := client.RegisterDestination(ctx, label)
	if err != nil {
		return fmt.Errorf("registering destination: %w", err)
	}
	logger.Info("waiting for walk-up scans", slog.String("destination", destRef))

	etag := ""
	for {
		ev, err := listener.WaitForScanEvent(ctx, destRef, etag)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down")
				return nil
			}
			return err
		}
		etag = ev.Etag

		if ev.CompletionRef != "" {
			proceed, err := listener.WaitScanRequest(ctx, ev.CompletionRef)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if !proceed {
				logger.Info("walk-up event needs no scan")
				continue
			}
		}

		bus.Publish(event.ScanStarted, map[string]any{"destination": destRef})
		res, err := session.WalkupScan(ctx, ev)
		if err != nil {
			if errors.Is(err, scan.ErrDestinationTimeout) {
				logger.Warn("destination selection timed out, session aborted")
				continue
			}
			var notFound *device.ErrNotFound
			if errors.As(err, &notFound) {
				// Device reboots forget registered destinations.
				logger.Warn("device dropped our destination, re-registering",
					slog.String("ref", notFound.Ref))
				destRef, err = client.RegisterDestination(ctx, label)
				if err != nil {
					return fmt.Errorf("re-registering destination: %w", err)
				}
				etag = ""
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		etag = res.ResumeTag

		if err := finishSession(ctx, res, processor, store, logger); err != nil {
			logger.Error("post-processing failed", "error", err)
		}
	}
}

func finishSession(ctx context.Context, res *scan.Result, processor *output.Processor, store *history.Store, logger *slog.Logger) error {
	outPath, err := processor.Process(res)
	if err != nil {
		return err
	}

	rec := history.SessionRecord{
		ID:          res.ID,
		StartedAt:   res.Date,
		FinishedAt:  time.Now(),
		InputSource: string(res.Source),
		Shortcut:    string(res.Shortcut),
		PageCount:   len(res.Pages),
		ToPDF:       res.ToPDF,
		OutputPath:  outPath,
	}
	for _, p := range res.Pages {
		rec.Pages = append(rec.Pages, history.PageRecord{
			PageNumber: p.PageNumber,
			Path:       p.Path,
			Width:      p.Width,
			Height:     p.Height,
		})
	}
	if err := store.Record(ctx, rec); err != nil {
		logger.Warn("recording scan history", "error", err)
	}
	return nil
}

func loggingConfig(cfg *config.Config) logging.Config {
	return logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FilePath:       cfg.Logging.FilePath,
		FileMaxSizeMB:  cfg.Logging.FileMaxSizeMB,
		FileMaxFiles:   cfg.Logging.FileMaxFiles,
		FileMaxAgeDays: cfg.Logging.FileMaxAgeDays,
	}
}
