// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Shivanand-hulikatti/event-presale/internal/auth"
	"github.com/Shivanand-hulikatti/event-presale/internal/config"
	"github.com/Shivanand-hulikatti/event-presale/internal/database"
	"github.com/Shivanand-hulikatti/event-presale/internal/handler"
	"github.com/Shivanand-hulikatti/event-presale/internal/metrics"
	"github.com/Shivanand-hulikatti/event-presale/internal/model"
	"github.com/Shivanand-hulikatti/event-presale/internal/notify"
	"github.com/Shivanand-hulikatti/event-presale/internal/repository"
	"github.com/Shivanand-hulikatti/event-presale/internal/seed"
	"github.com/Shivanand-hulikatti/event-presale/internal/service"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

type repositories struct {
	events repository.EventRepository
	regs   repository.RegistrationRepository
	orders repository.OrderRepository
	fields repository.FormFieldRepository
	close  func()
}

// openRepositories selects the storage backend named by cfg.StoreDriver.
func openRepositories(ctx context.Context, cfg config.Config) (*repositories, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Str("host", cfg.Database.Host).Str("db", cfg.Database.DBName).Msg("connected to postgres")
		return &repositories{
			events: repository.NewPGEventRepository(pool),
			regs:   repository.NewPGRegistrationRepository(pool),
			orders: repository.NewPGOrderRepository(pool),
			fields: repository.NewPGFormFieldRepository(pool),
			close:  pool.Close,
		}, nil

	case config.StoreFile:
		eventStore, err := repository.OpenFileStore(filepath.Join(cfg.DataDir, "events.json"), repository.EventKey)
		if err != nil {
			return nil, err
		}
		regStore, err := repository.OpenFileStore(filepath.Join(cfg.DataDir, "registrations.json"), repository.RegistrationKey)
		if err != nil {
			return nil, err
		}
		orderStore, err := repository.OpenFileStore(filepath.Join(cfg.DataDir, "orders.json"), repository.OrderKey)
		if err != nil {
			return nil, err
		}
		fieldStore, err := repository.OpenFileStore(filepath.Join(cfg.DataDir, "form_fields.json"), repository.FormFieldKey)
		if err != nil {
			return nil, err
		}
		regs, err := repository.NewKVRegistrationRepository(ctx, regStore)
		if err != nil {
			return nil, err
		}
		log.Info().Str("dir", cfg.DataDir).Msg("using file store")
		return &repositories{
			events: repository.NewKVEventRepository(eventStore),
			regs:   regs,
			orders: repository.NewKVOrderRepository(orderStore),
			fields: repository.NewKVFormFieldRepository(fieldStore),
			close:  func() {},
		}, nil

	case config.StoreMemory:
		regs, err := repository.NewKVRegistrationRepository(ctx, repository.NewMemoryStore[model.Registration]())
		if err != nil {
			return nil, err
		}
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return &repositories{
			events: repository.NewKVEventRepository(repository.NewMemoryStore[model.Event]()),
			regs:   regs,
			orders: repository.NewKVOrderRepository(repository.NewMemoryStore[model.Order]()),
			fields: repository.NewKVFormFieldRepository(repository.NewMemoryStore[model.FormField]()),
			close:  func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

// connectRedis returns nil when rate limiting is off or Redis is unreachable.
func connectRedis(ctx context.Context, cfg config.Config) *redis.Client {
	if !cfg.RateLimit.Enabled || cfg.Redis.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, rate limiting disabled")
		_ = rdb.Close()
		return nil
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("rate limiting enabled")
	return rdb
}

func connectPublisher(cfg config.Config) notify.Publisher {
	if cfg.AMQPURL == "" {
		return notify.Noop{}
	}
	pub, err := notify.NewAMQPPublisher(cfg.AMQPURL)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq unreachable, notifications disabled")
		return notify.Noop{}
	}
	log.Info().Msg("publishing notifications to rabbitmq")
	return pub
}

func run(ctx context.Context, cfg config.Config) error {
	clk := clockwork.NewRealClock()

	// ── 1. Storage ────────────────────────────────────────────────────────
	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer repos.close()

	if cfg.SeedFile != "" {
		events, err := seed.LoadFile(cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		n, err := seed.Apply(ctx, repos.events, events, clk.Now())
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Info().Int("events", n).Str("file", cfg.SeedFile).Msg("seed applied")
	}

	// ── 2. Collaborators ──────────────────────────────────────────────────
	rdb := connectRedis(ctx, cfg)
	if rdb != nil {
		defer rdb.Close()
	}
	publisher := connectPublisher(cfg)
	defer publisher.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// ── 3. Wire up layers ─────────────────────────────────────────────────
	opts := service.Options{
		Publisher:          publisher,
		Metrics:            m,
		EnforceTimeWindows: cfg.EnforceTimeWindows,
	}
	eventSvc := service.NewEventService(repos.events, clk)
	presale := handler.NewPresaleHandler(
		service.NewLedger(repos.events, repos.regs, clk, opts),
		service.NewAdmission(repos.events, repos.regs, repos.orders, clk, opts),
		eventSvc, clk, !cfg.IsProduction(),
	)
	admin := handler.NewAdminHandler(
		eventSvc,
		service.NewAdminService(repos.events, repos.regs, repos.orders, clk),
		clk.Now, !cfg.IsProduction(),
	)
	forms := handler.NewFormFieldHandler(service.NewFormFieldService(repos.fields, clk), !cfg.IsProduction())
	router := handler.NewRouter(handler.RouterConfig{
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		Redis:       rdb,
		Issuer:      auth.NewIssuer(cfg.AdminSecret, clk.Now),
		Metrics:     m,
		Gatherer:    registry,
	}, presale, admin, forms)

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("store", cfg.StoreDriver).
			Bool("enforce_time_windows", cfg.EnforceTimeWindows).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
