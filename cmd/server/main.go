package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/maremotors/backoffice/internal/config"
	"github.com/maremotors/backoffice/internal/db"
	"github.com/maremotors/backoffice/internal/idempotency"
	"github.com/maremotors/backoffice/internal/logger"
	"github.com/maremotors/backoffice/internal/server"
	"github.com/maremotors/backoffice/internal/tracing"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
	migrationsDir   = flag.String("migrations", "migrations", "Directory of the SQL migrations")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.App.Env)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			log.Warn("tracing shutdown", "error", err.Error())
		}
	}()

	dbConn, err := db.Connect(cfg.Database, log)
	if err != nil {
		return err
	}

	if *migrateOnlyFlag {
		if err := migrateDB(dbConn, cfg, log); err != nil {
			return err
		}
		log.Info("migrations completed")
		return nil
	}
	if *seedOnlyFlag {
		if err := db.Seed(dbConn, seedOptions(cfg)); err != nil {
			return err
		}
		log.Info("seeding completed")
		return nil
	}

	if err := migrateDB(dbConn, cfg, log); err != nil {
		return err
	}
	if cfg.App.Seed {
		if err := db.Seed(dbConn, seedOptions(cfg)); err != nil {
			return err
		}
	}

	idem, closeIdem, err := idempotencyGateway(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeIdem()

	app := server.NewApp(server.Deps{
		DB:                dbConn,
		Log:               log,
		SessionSecret:     cfg.App.SessionSecret,
		SecureCookies:     !cfg.App.IsDevelopment(),
		Idempotency:       idem,
		LowStockThreshold: cfg.App.LowStockThreshold,
		LoginPerMinute:    cfg.App.LoginPerMinute,
		PhoneRegion:       cfg.App.PhoneRegion,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Server.Port, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutdown signal received")

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// migrateDB applies the SQL migrations when MIGRATIONS is set and AutoMigrate otherwise.
func migrateDB(dbConn *gorm.DB, cfg *config.Config, log *logger.Logger) error {
	if cfg.App.Migrations {
		log.Info("running sql migrations", "dir", *migrationsDir)
		return db.RunSQLMigrations(cfg.Database.URL(), *migrationsDir)
	}
	return db.Migrate(dbConn)
}

func seedOptions(cfg *config.Config) db.SeedOptions {
	return db.SeedOptions{
		AdminEmail:    cfg.App.AdminEmail,
		AdminPassword: cfg.App.AdminPassword,
		BaseCurrency:  cfg.App.BaseCurrency,
	}
}

// idempotencyGateway uses Redis when REDIS_URL is set and process memory otherwise.
func idempotencyGateway(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (idempotency.Gateway, func(), error) {
	if cfg.URL == "" {
		log.Info("idempotency keys kept in memory")
		return idempotency.NewMemory(cfg.IdempotencyTTL), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	gw := idempotency.NewRedis(client, cfg.IdempotencyTTL)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := gw.Ping(pctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	log.Info("idempotency keys kept in redis", "addr", opts.Addr)
	return gw, func() { _ = client.Close() }, nil
}
