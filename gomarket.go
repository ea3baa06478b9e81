// Package gomarket wires the cart store to its storage backend, persistence workers and
// event stream.
package gomarket

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"goflare.io/gomarket/cart"
	"goflare.io/gomarket/checkout"
	"goflare.io/gomarket/config"
	"goflare.io/gomarket/driver"
	"goflare.io/gomarket/event"
	"goflare.io/gomarket/metrics"
	"goflare.io/gomarket/storage"
)

type App struct {
	config   config.Config
	store    *cart.Store
	pool     *WorkerPool
	events   *EventManager
	provider cart.Provider
	logger   *zap.Logger
	closers  []func() error
}

// NewLogger builds the process logger at level ("debug", "info", ...).
func NewLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	var zcfg zap.Config
	if development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)

	return zcfg.Build()
}

// New connects the configured backend and event stream, then loads the cart.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := &App{config: cfg, logger: logger}

	kv, err := app.openStorage(ctx)
	if err != nil {
		app.closeAll()
		return nil, err
	}

	var publisher event.Publisher = event.NopPublisher{}
	if cfg.NATSURL != "" {
		nc, err := driver.ConnectNATS(cfg.NATSURL, logger)
		if err != nil {
			app.closeAll()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		app.closers = append(app.closers, nc.Drain)
		publisher = event.NewNATSPublisher(nc, cfg.NATSSubject, logger)
		app.events = NewEventManager(nc, cfg.NATSSubject, logger)
	}

	if err := app.start(ctx, kv, publisher, metrics.NewCartMetrics()); err != nil {
		app.closeAll()
		return nil, err
	}
	return app, nil
}

// NewWithStorage builds an App over an already opened key-value store and no event stream.
func NewWithStorage(ctx context.Context, cfg config.Config, kv storage.KeyValueStore, m *metrics.CartMetrics, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := &App{config: cfg, logger: logger}
	if err := app.start(ctx, kv, event.NopPublisher{}, m); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) start(ctx context.Context, kv storage.KeyValueStore, publisher event.Publisher, m *metrics.CartMetrics) error {
	a.pool = NewWorkerPool(a.config.Workers, a.config.PersistTimeout, a.logger.Named("persist"))
	a.store = cart.NewStore(kv, a.logger.Named("cart"),
		cart.WithNamespace(a.config.Namespace),
		cart.WithPersister(a.pool),
		cart.WithPublisher(publisher),
		cart.WithMetrics(m),
	)

	if err := a.store.Load(ctx); err != nil {
		a.pool.Shutdown()
		return err
	}

	a.provider.Set(a.store)
	a.logger.Info("Cart store ready",
		zap.String("backend", string(a.config.Backend)),
		zap.String("namespace", a.config.Namespace),
		zap.Int("products", a.store.Len()))
	return nil
}

func (a *App) openStorage(ctx context.Context) (storage.KeyValueStore, error) {
	switch a.config.Backend {
	case config.BackendRedis:
		client, err := driver.ConnectRedis(ctx, a.config.RedisAddr, a.config.RedisPassword, a.config.RedisDB, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return storage.NewRedisStore(client, a.logger.Named("redis")), nil

	case config.BackendPostgres:
		db, err := driver.ConnectSQL(ctx, a.config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() error {
			db.Pool.Close()
			return nil
		})
		pg := storage.NewPostgresStore(db.Pool, driver.NewTransactionManager(db.Pool, a.logger), a.logger.Named("postgres"))
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		return pg, nil

	default:
		return storage.NewMemoryStore(), nil
	}
}

// Store returns the cart.
func (a *App) Store() *cart.Store {
	return a.store
}

func (a *App) Provider() *cart.Provider {
	return &a.provider
}

// Events is nil when no NATS URL is configured.
func (a *App) Events() *EventManager {
	return a.events
}

func (a *App) Pool() *WorkerPool {
	return a.pool
}

// Context returns ctx inside the cart's provider scope.
func (a *App) Context(ctx context.Context) context.Context {
	return cart.NewContext(ctx, a.store)
}

func (a *App) Summary() checkout.Summary {
	return checkout.Summarize(a.store.Products(), a.config.Currency)
}

func (a *App) CheckoutSession(successURL, cancelURL string) (*stripe.CheckoutSessionParams, error) {
	return checkout.SessionParams(a.store.Products(), a.config.Currency, successURL, cancelURL)
}

// Close flushes pending writes, stops the workers and closes every connection.
func (a *App) Close(ctx context.Context) error {
	err := a.store.Close(ctx)
	a.pool.Shutdown()
	return errors.Join(err, a.closeAll())
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Failed to close connection", zap.Error(err))
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
