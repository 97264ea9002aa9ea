package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/config"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/dedup"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/ingest"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/logger"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/printer"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/processor"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/queue"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/reporter"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/settings"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/status"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/supervisor"
)

const (
	appName    = "Perfect Menu Print Agent"
	appVersion = "2.0.0"

	queueOutBuffer     = 16
	queueHighWatermark = 1000
)

// --- Main ---

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "print-agent:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	discover := flag.Bool("discover", false, "scan the local network for raw-print printers and exit")
	flag.Parse()

	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Close()
	slog.SetDefault(log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *discover {
		return runDiscovery(ctx, cfg, log)
	}

	log.Info("starting", "app", appName, "version", appVersion, "origin", cfg.Origin.BaseURL)

	agent, err := build(cfg, log)
	if err != nil {
		return err
	}

	err = agent.tree.Serve(ctx)
	agent.queue.CloseIntake()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// --- Discovery ---

func runDiscovery(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	found, err := printer.Discover(ctx, printer.DiscoveryConfig{
		Subnet:      cfg.Discovery.Subnet,
		Port:        cfg.Discovery.Port,
		Workers:     cfg.Discovery.Workers,
		DialTimeout: cfg.Discovery.DialTimeout,
	}, log.Component("discovery"))
	if err != nil {
		return err
	}
	if len(found) == 0 {
		log.Warn("no printers found")
		return nil
	}
	for _, p := range found {
		log.Info("printer found", "name", p.Name, "ip", p.IP, "port", p.Port)
	}
	return nil
}

// --- Wiring ---

type agent struct {
	tree  *supervisor.Tree
	queue *queue.Queue
}

func build(cfg *config.Config, log *logger.Logger) (*agent, error) {
	hub := status.NewHub(log.Logger)

	// Live settings
	persist := settings.FileStore{Path: cfg.Settings.Path}
	initial, found, err := persist.Load(cfg.Settings.Defaults)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !found {
		log.Info("no saved settings, using defaults", "path", cfg.Settings.Path)
	}
	store, err := settings.NewStore(initial, persist)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	store.Watch(func(s model.Settings) {
		hub.Broadcast(status.MessageSettings, s)
	})

	// Intake
	commandLedger := dedup.New(cfg.Commands.LedgerCapacity, dedup.DefaultEvictFraction)
	orderLedger := dedup.New(cfg.Orders.LedgerCapacity, dedup.DefaultEvictFraction)
	jobs := queue.New(queueOutBuffer, queueHighWatermark, log.Logger)
	intake := ingest.NewIntake(commandLedger, orderLedger, jobs, processor.NewAutoPrint(store),
		ingest.IntakeOptions{PrintOrderSnapshots: cfg.Orders.PrintSnapshot}, log.Logger)

	notify := ingest.NotifierFunc(func(s ingest.Status) {
		hub.Broadcast(status.MessageChannel, s)
	})

	tree := supervisor.NewTree(log.Component("supervisor"), supervisor.DefaultTreeConfig())
	var trackers []*ingest.Tracker

	channels := []struct {
		source  ingest.Source
		cfg     config.ChannelConfig
		handler ingest.ItemHandler
	}{
		{ingest.CommandsSource, cfg.Commands, intake.Commands()},
		{ingest.OrdersSource, cfg.Orders, intake.Orders()},
	}
	for _, ch := range channels {
		if !ch.cfg.Enabled {
			log.Info("channel disabled", "source", ch.source.Name)
			continue
		}
		tracker := ingest.NewTracker(ch.source.Name, notify)
		trackers = append(trackers, tracker)

		streamURL, err := ingest.Endpoint(cfg.Origin.BaseURL, ch.cfg.StreamPath, cfg.Origin.Role, cfg.Origin.Pin)
		if err != nil {
			return nil, fmt.Errorf("%s stream url: %w", ch.source.Name, err)
		}
		tree.AddIngest(ingest.NewStream(ch.source, ingest.StreamConfig{
			URL:            streamURL,
			ReadTimeout:    cfg.Stream.ReadTimeout,
			InitialBackoff: cfg.Stream.InitialBackoff,
			MaxBackoff:     cfg.Stream.MaxBackoff,
		}, ch.handler, tracker, log.Logger))

		if ch.cfg.PollPath == "" {
			continue
		}
		pollURL, err := ingest.Endpoint(cfg.Origin.BaseURL, ch.cfg.PollPath, cfg.Origin.Role, cfg.Origin.Pin)
		if err != nil {
			return nil, fmt.Errorf("%s poll url: %w", ch.source.Name, err)
		}
		tree.AddIngest(ingest.NewPoller(ch.source, ingest.PollerConfig{
			URL:            pollURL,
			Interval:       ch.cfg.PollInterval,
			StaleAfter:     ch.cfg.StaleAfter,
			RequestTimeout: ch.cfg.PollTimeout,
		}, ch.handler, tracker, log.Logger))
	}

	// Processing
	rep := reporter.New(reporter.Config{
		URL:           cfg.Origin.BaseURL + cfg.Reporter.ConfirmPath,
		Role:          cfg.Origin.Role,
		Pin:           cfg.Origin.Pin,
		Timeout:       cfg.Reporter.Timeout,
		Workers:       cfg.Reporter.Workers,
		Buffer:        cfg.Reporter.Buffer,
		RatePerSecond: cfg.Reporter.Rate,
		Burst:         cfg.Reporter.Burst,
		DrainTimeout:  cfg.Reporter.DrainTimeout,
	}, log.Logger)

	sinks := printer.NewMux(log.Logger).
		Handle(printer.DriverESCPOS, printer.NewTCPSink(log.Logger)).
		Handle(printer.DriverFile, printer.FileSink{})

	proc := processor.New(jobs, store, sinks, rep, log.Logger,
		processor.WithObserver(func(r processor.Result) {
			hub.Broadcast(status.MessageJob, r)
		}))

	tree.AddProcessing(jobs)
	tree.AddProcessing(proc)
	tree.AddProcessing(rep)

	// Status surface
	tree.AddAPI(hub)
	if cfg.Status.Enabled {
		tree.AddAPI(status.NewServer(status.Config{
			Listen:         cfg.Status.Listen,
			CORSOrigins:    cfg.Status.CORSOrigins,
			RequestsPerMin: cfg.Status.RequestsPerMin,
		}, status.Deps{
			Trackers: trackers,
			Queue:    jobs,
			Ledgers: map[string]status.LedgerStats{
				"commands": commandLedger,
				"orders":   orderLedger,
			},
			Reporter: rep,
			Settings: store,
			Hub:      hub,
		}, log.Logger))
	}

	return &agent{tree: tree, queue: jobs}, nil
}
