package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/khrees2412/callscreen/internal/ai"
	"github.com/khrees2412/callscreen/internal/catalog"
	"github.com/khrees2412/callscreen/internal/config"
	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/internal/dialogue"
	"github.com/khrees2412/callscreen/internal/events"
	"github.com/khrees2412/callscreen/internal/intake"
	"github.com/khrees2412/callscreen/internal/meeting"
	"github.com/khrees2412/callscreen/internal/queue"
	"github.com/khrees2412/callscreen/internal/scheduling"
	"github.com/khrees2412/callscreen/internal/server"
	"github.com/khrees2412/callscreen/internal/telephony"
	"github.com/khrees2412/callscreen/internal/worker"
)

// App is the dependency container for the CLI and the HTTP server
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *database.Store
	Events    events.Publisher
	Catalog   *catalog.Catalog
	Ledger    *scheduling.Ledger
	Registry  *scheduling.Registry
	Scheduler *queue.Scheduler
	Extractor *ai.Extractor
	Machine   *dialogue.Machine
	Worker    *worker.Worker
	Intake    *intake.Service
	Linker    meeting.Linker
	Server    *server.Server

	closers []func() error
}

// NewApp initializes and returns a new App instance
func NewApp(ctx context.Context) (*App, error) {
	// Initialize config
	if err := config.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	return New(ctx, config.AppConfig)
}

// New wires every service from cfg
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	logger, closeLog, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	a.Logger = logger
	a.closers = append(a.closers, closeLog)

	loc, err := cfg.Location()
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := database.Open(cfg.DatabasePath, loc)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	a.Events = events.Noop{}
	if cfg.RabbitMQEnabled {
		publisher, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect event broker: %w", err)
		}
		a.Events = publisher
		a.closers = append(a.closers, publisher.Close)
	}

	// The model is optional: without one extraction fails softly and
	// semantic scoring falls back to the default score
	var completer ai.Completer
	client, err := ai.NewClient(cfg)
	switch {
	case err == nil:
		completer = client
	case errors.Is(err, ai.ErrNotConfigured):
		logger.Warn("language model unavailable", "error", err)
	default:
		a.Close()
		return nil, err
	}

	semantic, err := ai.NewSemanticScorer(completer, cfg.SemanticCacheSize, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Extractor = ai.NewExtractor(completer, logger)

	a.Catalog = catalog.New(store, logger)
	a.Ledger = scheduling.NewLedger(store, logger)
	a.Registry = scheduling.NewRegistry(store, a.Events, logger)
	a.Scheduler = queue.NewScheduler(store, queue.Options{
		MaxAttempts:  cfg.QueueMaxAttempts,
		RetryBackoff: cfg.QueueRetryBackoff,
	}, logger)

	a.Linker = meeting.NewGenerator(cfg.MeetingLinkPrefix)
	a.Machine = dialogue.NewMachine(store, a.Ledger, a.Registry, a.Extractor, a.Linker, logger)
	a.Intake = intake.NewService(store, a.Ledger, semantic, logger)

	a.Worker = worker.New(store, a.Scheduler, a.Ledger, a.Machine, newDialer(cfg, logger), worker.Options{
		Interval:      cfg.WorkerInterval,
		MaxConcurrent: cfg.WorkerMaxConcurrent,
	}, logger)

	a.Server = server.New(server.Deps{
		Store:     store,
		Catalog:   a.Catalog,
		Ledger:    a.Ledger,
		Registry:  a.Registry,
		Scheduler: a.Scheduler,
		Machine:   a.Machine,
		Worker:    a.Worker,
		Intake:    a.Intake,
		Linker:    a.Linker,
		Responder: telephony.NewResponder(cfg.IVRMaxRetries),
		Logger:    logger,
	})

	logger.Debug("application initialized", "database", cfg.DatabasePath, "timezone", loc.String(),
		"ai_provider", cfg.AIProvider, "events", cfg.RabbitMQEnabled)
	return a, nil
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newDialer returns the Twilio dialer, or one that fails every call when
// telephony is not configured so entries are retried once it is
func newDialer(cfg *config.Config, logger *slog.Logger) telephony.Dialer {
	d, err := telephony.NewTwilioDialer(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.PublicHost)
	if err != nil {
		logger.Warn("telephony unavailable, calls will fail", "error", err)
		return unavailableDialer{err: err}
	}
	return d
}

type unavailableDialer struct{ err error }

func (d unavailableDialer) Dial(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("telephony not configured: %w", d.err)
}
