package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/adapter"
	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/config"
	httptransport "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/lock"
	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/persistence/postgres"
	"github.com/example/room-booking/internal/persistence/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := pflag.NewFlagSet("bookingd", pflag.ExitOnError)
	flags := config.BindFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server encountered error", zap.Error(err))
		os.Exit(1)
	}
}

func loadConfig(flags *config.Flags) (config.Config, error) {
	if err := config.LoadEnvFile(flags.EnvFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	cfg = flags.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", zap.Error(err))
		}
	}()

	logger.Info("booking API listening",
		zap.String("addr", server.Addr),
		zap.String("role", cfg.ServiceRole),
		zap.String("storage", cfg.Storage),
		zap.String("lock_backend", cfg.LockBackend),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("booking API stopped")
	return nil
}

// app holds the wired handler and the resources to release on shutdown.
type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", zap.Error(cerr))
		}
	})

	locker, closeLocker, err := newLocker(ctx, cfg, store, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closeLocker != nil {
		a.closers = append(a.closers, closeLocker)
	}

	rooms := adapter.NewRoomRepository(store)
	bookings := adapter.NewBookingRepository(store)
	now := time.Now

	roomService := application.NewRoomServiceWithLogger(rooms, now, logger)
	bookingService := application.NewBookingServiceWithLogger(bookings, rooms, locker, uuid.NewString, now, logger)

	if cfg.RoomsFile != "" {
		inputs, err := config.LoadRooms(cfg.RoomsFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		if _, err := roomService.SeedRooms(ctx, inputs); err != nil {
			a.Close()
			return nil, fmt.Errorf("seed rooms: %w", err)
		}
	}

	routes := httptransport.RouterConfig{
		Health: httptransport.NewHealthHandler(cfg.ServiceRole, cfg.Storage, store, logger),
		Auth:   httptransport.RequirePrincipal(httptransport.HeaderPrincipalResolver{}, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
	}
	if cfg.ServiceRole == config.RoleAll || cfg.ServiceRole == config.RoleBookings {
		routes.Bookings = httptransport.NewBookingHandler(bookingService, logger)
	}
	if cfg.ServiceRole == config.RoleAll || cfg.ServiceRole == config.RoleRooms {
		routes.Rooms = httptransport.NewRoomHandler(roomService, logger)
	}
	a.handler = httptransport.NewRouter(routes)

	return a, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (persistence.Store, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return memory.New(), nil
	case config.StorageSQLite:
		store, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLitePath), logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage engine %q", cfg.Storage)
}

// newLocker returns the configured room locker and an optional release
// function for its resources.
func newLocker(ctx context.Context, cfg config.Config, store persistence.Store, logger *zap.Logger) (application.RoomLocker, func(), error) {
	switch cfg.LockBackend {
	case config.LockLocal:
		return lock.NewLocal(lock.WithLocalWait(cfg.LockWait)), nil, nil
	case config.LockRedis:
		client := lock.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		locker := lock.NewRedis(client, lock.RedisConfig{LeaseTTL: cfg.LockTTL, Wait: cfg.LockWait}, logger)
		if err := locker.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis lock backend: %w", err)
		}
		return locker, func() { _ = client.Close() }, nil
	case config.LockPostgres:
		pg, ok := store.(*postgres.Store)
		if !ok {
			return nil, nil, errors.New("postgres advisory locks require postgres storage")
		}
		return postgres.NewAdvisoryLocker(pg.Pool(), cfg.LockWait, logger), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
}
