package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelmondragon/storefront-core/api/controllers"
	"github.com/angelmondragon/storefront-core/api/routes"
	"github.com/angelmondragon/storefront-core/internal/assets"
	"github.com/angelmondragon/storefront-core/internal/cart"
	"github.com/angelmondragon/storefront-core/internal/entitystore"
	"github.com/angelmondragon/storefront-core/pkg/auth/session"
	"github.com/angelmondragon/storefront-core/pkg/blobstore"
	"github.com/angelmondragon/storefront-core/pkg/config"
	"github.com/angelmondragon/storefront-core/pkg/db"
	"github.com/angelmondragon/storefront-core/pkg/events"
	"github.com/angelmondragon/storefront-core/pkg/imaging"
	"github.com/angelmondragon/storefront-core/pkg/logger"
	"github.com/angelmondragon/storefront-core/pkg/memcache"
	"github.com/angelmondragon/storefront-core/pkg/metrics"
	"github.com/angelmondragon/storefront-core/pkg/migrate"
	"github.com/angelmondragon/storefront-core/pkg/pointer"
	"github.com/angelmondragon/storefront-core/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
)

const shutdownTimeout = 5 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefrontd"})

	token := flag.String("token", "", "access token to sign in with at boot (optional)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefrontd",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg, *token); err != nil {
		logg.Error(context.Background(), "storefrontd stopped with error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, token string) (err error) {
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.EnsureSchema(ctx, cfg.DB, logg, dbClient); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Pointer.Backend == config.PointerBackendRedis {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return fmt.Errorf("bootstrap redis: %w", err)
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
	}

	bus := events.NewBus()
	defer bus.Close()

	store := entitystore.New(dbClient, entitystore.Options{
		Logger:  logg,
		Metrics: metrics.NewEntityStoreMetrics(reg),
		Changes: bus,
	})

	cartService, err := cart.NewService(cart.NewRepository(store), store, logg)
	if err != nil {
		return fmt.Errorf("create cart service: %w", err)
	}

	pointers, err := pointer.Open(cfg.Pointer, redisClient)
	if err != nil {
		return fmt.Errorf("open pointer store: %w", err)
	}

	memory, err := memcache.New[string, *assets.Artifact](cfg.Cache.MemoryCapacity)
	if err != nil {
		return fmt.Errorf("create memory cache: %w", err)
	}

	holder := session.NewHolder(cfg.JWT)
	assetCache, err := assets.New(assets.Params{
		Session:      holder,
		Blobs:        blobstore.New(cfg.Blob.Dir),
		Memory:       memory,
		Pointers:     pointers,
		Metadata:     assets.NewMetadataRepository(store),
		Imaging:      imaging.JPEG{},
		MaxDimension: cfg.Blob.ImageMaxDimension,
		Quality:      cfg.Blob.ImageQuality,
		Logger:       logg,
		Metrics:      metrics.NewAssetCacheMetrics(reg),
	})
	if err != nil {
		return fmt.Errorf("create asset cache: %w", err)
	}

	if token != "" {
		warmProfileImage(ctx, logg, holder, assetCache, token)
	}

	changes, unsubscribe := store.Subscribe()
	defer unsubscribe()
	go watchCart(ctx, logg, changes, cartService)

	deps := map[string]controllers.Pinger{"db": dbClient}
	if redisClient != nil {
		deps["redis"] = redisClient
	}
	server := &http.Server{
		Addr:              cfg.App.DiagnosticsAddr,
		Handler:           routes.NewRouter(cfg, logg, reg, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", server.Addr), "diagnostics server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("diagnostics server: %w", err)
		}
	}

	logg.Info(context.Background(), "storefrontd shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// warmProfileImage signs in with token and pulls the user's profile image
// into the memory tier.
func warmProfileImage(ctx context.Context, logg *logger.Logger, holder *session.Holder, cache *assets.Cache, token string) {
	userID, err := holder.SignIn(token)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "session.sign_in.failed")
		return
	}
	ctx = logg.WithUserID(ctx, userID)
	art, err := cache.Load(ctx, userID)
	switch {
	case err != nil:
		logg.Error(ctx, "assets.warm.failed", err)
	case art == nil:
		logg.Info(ctx, "assets.warm.no_image")
	default:
		logg.Info(logg.WithField(ctx, "size_bytes", art.SizeBytes), "assets.warm.ok")
	}
}

// watchCart re-reads the cart whenever the store reports a change.
func watchCart(ctx context.Context, logg *logger.Logger, changes <-chan struct{}, svc cart.Service) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			total, err := svc.Count(ctx)
			if err != nil {
				logg.Error(ctx, "cart.refresh.failed", err)
				continue
			}
			logg.Info(logg.WithField(ctx, "cart_units", total), "cart.refreshed")
		}
	}
}
