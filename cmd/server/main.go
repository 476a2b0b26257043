package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/thereceipt/receipt-relay/internal/api"
	"github.com/thereceipt/receipt-relay/internal/command"
	"github.com/thereceipt/receipt-relay/internal/config"
	"github.com/thereceipt/receipt-relay/internal/logging"
	"github.com/thereceipt/receipt-relay/internal/printer"
	"github.com/thereceipt/receipt-relay/internal/renderer"
	"github.com/thereceipt/receipt-relay/internal/source"
	"github.com/thereceipt/receipt-relay/internal/tui"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	cfg, warnings, err := config.Load(config.Options{Args: os.Args[1:]})
	if errors.Is(err, pflag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "Usage of receipt-relay:\n%s", config.Usage())
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, warnings); err != nil {
		fmt.Fprintf(os.Stderr, "receipt-relay: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, warnings []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The dashboard owns the terminal: logs go to its panel, and to the
	// configured output only when that is a file.
	var sink *tui.LogSink
	var extra []io.Writer
	logCfg := cfg.Logging
	if cfg.TUI {
		sink = &tui.LogSink{}
		extra = append(extra, sink)
		if logCfg.Output == "" || logCfg.Output == "stdout" || logCfg.Output == "stderr" {
			logCfg.Output = "none"
		}
	}

	logger, err := logging.New(logCfg, extra...)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("receipt relay starting",
		zap.String("version", Version),
		zap.String("config", cfg.File),
		zap.String("device", cfg.Device.Path),
	)
	for _, w := range warnings {
		logger.Warn("config fallback", zap.String("detail", w))
	}

	link, err := printer.Open(cfg.Device.Path, cfg.Device.BaudRate, cfg.Device.Timeout, logger)
	if err != nil {
		return err
	}
	defer link.Close()

	store, err := source.NewStore(cfg.Image.BasePath, cfg.Source.MaxBytes, logger)
	if err != nil {
		return err
	}
	downloader, err := source.NewDownloader(source.DownloaderOptions{
		BaseDir:  cfg.Image.BasePath,
		BaseURL:  cfg.Source.BaseURL,
		Timeout:  cfg.Source.DownloadTimeout,
		MaxBytes: cfg.Source.MaxBytes,
	}, logger)
	if err != nil {
		return err
	}

	pre := renderer.NewPreprocessor(renderer.Options{
		MaxWidth:   cfg.Image.MaxWidth,
		Contrast:   cfg.Image.Contrast,
		Brightness: cfg.Image.Brightness,
		Dither:     cfg.Image.Dither,
	}, logger)

	service := printer.NewService(
		printer.NewEscposEncoder(link, cfg.Printer.FeedLines),
		source.NewResolver(store, downloader),
		pre,
		printer.ServiceOptions{
			TextMode: cfg.Printer.TextMode,
			CodeMode: cfg.Printer.CodeMode,
			FontPath: cfg.Printer.FontPath,
			FontSize: cfg.Printer.FontSize,
		},
		logger,
	)

	queueOpts := printer.DefaultQueueOptions()
	queueOpts.MaxRetries = cfg.Queue.MaxRetries
	queueOpts.PollInterval = cfg.Queue.PollInterval
	queueOpts.PrepareWorkers = cfg.Queue.PrepareWorkers
	queue := printer.NewPrintQueue(service, queueOpts, logger)
	defer queue.Stop()

	monitor := printer.NewMonitor(link, cfg.Device.Path, cfg.Device.MonitorInterval, logger)
	executor := command.NewExecutor(queue, link, monitor, printer.ListCandidates)

	server := api.NewServer(queue, link, monitor, store, executor, api.Options{
		Token:     cfg.Server.Token,
		ListPorts: printer.ListCandidates,
	}, logger)

	monitor.OnPrinterAdded(func(name string) {
		logger.Info("🟢 printer connected", zap.String("printer", name))
		server.BroadcastPrinterAdded(name)
	})
	monitor.OnPrinterRemoved(func(name string) {
		logger.Warn("🔴 printer disconnected", zap.String("printer", name))
		server.BroadcastPrinterRemoved(name)
	})
	monitor.Start()
	defer monitor.Stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run(ctx, cfg.Server.Listen)
	}()

	if sink == nil {
		err := <-serverErr
		logger.Info("🛑 shutting down")
		return err
	}

	dash := tui.NewTViewApp(queue, link, monitor, executor, tui.Options{
		Listen:     cfg.Server.Listen,
		DevicePath: cfg.Device.Path,
		ListPorts:  printer.ListCandidates,
	})
	sink.Attach(dash.LogWriter())

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- dash.Run(ctx)
	}()

	select {
	case err := <-serverErr:
		dash.App.Stop()
		return err
	case err := <-tuiDone:
		stop()
		if serr := <-serverErr; serr != nil {
			return serr
		}
		return err
	}
}
