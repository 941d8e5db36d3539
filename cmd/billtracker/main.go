package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"billtracker/internal/amqp"
	"billtracker/internal/auth"
	"billtracker/internal/cache"
	"billtracker/internal/cli"
	"billtracker/internal/core"
	apphttp "billtracker/internal/http"
	"billtracker/internal/log"
	"billtracker/internal/metrics"
	"billtracker/internal/secrets"
	"billtracker/internal/services"
)

const viewCacheSize = 1000

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentHTTP)

	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required to serve the API")
		os.Exit(1)
	}

	ctx := context.Background()
	be := cli.OpenBackend(ctx, logger, cfg, false)

	var sealer services.CredentialSealer
	if cfg.CredentialsKey != "" {
		key, err := cfg.CredentialsKeyBytes()
		if err == nil {
			sealer, err = secrets.NewSealer(key)
		}
		if err != nil {
			logger.Error("Failed to initialize credential sealer", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("CREDENTIALS_KEY not set, e-bill credentials cannot be stored")
	}

	m := metrics.New()
	views := cache.NewOwnerScoped[[]core.InstanceView](viewCacheSize, cfg.CacheTTL)
	caches := cache.NewManager()
	caches.Register(views)
	caches.StartCleanup(cfg.CacheTTL)

	profiles := services.NewProfileService(be.Store, be.Publisher())
	bills := services.NewBillService(be.Store, sealer, be.Publisher())
	instances := services.NewInstanceService(be.Store, be.Publisher(), m)
	profiles.SetViewCache(views)
	bills.SetViewCache(views)
	instances.SetViewCache(views)

	// Other processes write instances too; their events keep this
	// process's cached listings fresh.
	var invalidations *amqp.Client
	if be.Events != nil {
		sub, err := amqp.NewSubscriber(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Warn("Cache invalidation subscriber unavailable, listings refresh after CACHE_TTL", "error", err)
		} else {
			invalidations = sub
		}
	}

	opts := apphttp.DefaultOptions()
	opts.RateLimitPerMinute = cfg.RateLimitPerMinute
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Profiles:  profiles,
		Bills:     bills,
		Instances: instances,
		Tokens:    auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL),
		Logger:    logger,
		Metrics:   m,
		Ready:     be.Store.Ping,
	}, opts)
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if invalidations != nil {
			invalidations.Close()
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if invalidations != nil {
		go func() {
			err := invalidations.ConsumeInstanceEvents(ctx, services.NewViewInvalidator(views).Handle)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Cache invalidation consumer stopped", "error", err)
			}
		}()
	}

	logger.Info("Starting billtracker server",
		"port", cfg.Port,
		"driver", cfg.DBDriver,
		"events_enabled", be.Events != nil,
		"cache_invalidation", invalidations != nil,
		"cache_ttl", cfg.CacheTTL.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
