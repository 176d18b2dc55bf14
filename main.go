package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cordobacasas/casas/internal/cache"
	"github.com/cordobacasas/casas/internal/config"
	"github.com/cordobacasas/casas/internal/domain"
	"github.com/cordobacasas/casas/internal/events"
	"github.com/cordobacasas/casas/internal/handler"
	"github.com/cordobacasas/casas/internal/imagecodec"
	"github.com/cordobacasas/casas/internal/metrics"
	"github.com/cordobacasas/casas/internal/repository/sqlite"
	"github.com/cordobacasas/casas/internal/service"
	"github.com/cordobacasas/casas/internal/storage/s3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logOpts := &slog.HandlerOptions{Level: cfg.LogLevel}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	passwordHash := cfg.AdminPasswordHash
	if passwordHash == "" {
		passwordHash, err = service.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
		if err != nil {
			slog.Error("failed to hash ADMIN_PASSWORD", "error", err)
			os.Exit(1)
		}
		slog.Warn("ADMIN_PASSWORD is set in plain text; prefer ADMIN_PASSWORD_HASH")
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	if err := db.Migrate(startCtx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied")

	// Images go to the bucket when one is configured, otherwise into SQLite.
	var store domain.ObjectStore
	var files domain.FileReader
	if cfg.MinIO.Enabled() {
		bucket, err := s3.New(startCtx, s3.Config{
			Endpoint:      cfg.MinIO.Endpoint,
			AccessKey:     cfg.MinIO.AccessKey,
			SecretKey:     cfg.MinIO.SecretKey,
			Bucket:        cfg.MinIO.Bucket,
			UseSSL:        cfg.MinIO.UseSSL,
			PublicBaseURL: cfg.MinIO.PublicBaseURL,
			PublicRead:    cfg.MinIO.PublicRead,
		})
		if err != nil {
			slog.Error("failed to connect to object storage", "error", err)
			os.Exit(1)
		}
		store = bucket
		slog.Info("storing images in bucket", "endpoint", cfg.MinIO.Endpoint, "bucket", cfg.MinIO.Bucket)
	} else {
		fs := db.Files("/files/")
		store, files = fs, fs
		slog.Info("storing images in database")
	}

	var listingOpts []service.ListingServiceOption
	if cfg.RedisAddr != "" {
		lc, err := cache.NewListingCache(startCtx, cfg.RedisAddr, cfg.CacheTTL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer lc.Close()
		listingOpts = append(listingOpts, service.WithListingCache(lc))
		slog.Info("listing cache enabled", "addr", cfg.RedisAddr)
	}
	if cfg.NATSURL != "" {
		pub, err := events.NewPublisher(cfg.NATSURL)
		if err != nil {
			slog.Error("failed to connect to nats", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		listingOpts = append(listingOpts, service.WithEventPublisher(pub))
		slog.Info("listing events enabled", "url", cfg.NATSURL)
	}

	observer, err := metrics.NewObserver(prometheus.DefaultRegisterer)
	if err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	codec := imagecodec.New(cfg.ImageMaxWidth, cfg.ImageMaxHeight, cfg.ImageQuality)
	uploads := service.NewUploadPipeline(codec, store,
		service.WithConcurrency(cfg.UploadConcurrency),
		service.WithObserver(observer),
	)
	authService := service.NewAuthService(passwordHash, cfg.JWTSecret, cfg.SessionTTL)
	listingService := service.NewListingService(db.Listings(), listingOpts...)
	draftService := service.NewDraftService(uploads, listingService,
		service.WithMaxImages(cfg.MaxImages),
		service.WithDraftTTL(cfg.DraftTTL),
		service.WithSubmitObserver(observer),
	)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Dependencies{
		Auth:           authService,
		Listings:       listingService,
		Drafts:         draftService,
		Files:          files,
		LoginLimiter:   service.NewKeyedLimiter(10.0/60, 5),
		Metrics:        metrics.Handler(prometheus.DefaultGatherer),
		DB:             db,
		WhatsAppNumber: cfg.WhatsAppNumber,
		CookieSecure:   cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.SecurityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
