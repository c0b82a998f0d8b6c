package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nevc-media/vidstream/catalog/internal/audit"
	"github.com/nevc-media/vidstream/catalog/internal/blob"
	"github.com/nevc-media/vidstream/catalog/internal/config"
	"github.com/nevc-media/vidstream/catalog/internal/handlers"
	"github.com/nevc-media/vidstream/catalog/internal/middleware"
	"github.com/nevc-media/vidstream/catalog/internal/models"
	"github.com/nevc-media/vidstream/catalog/internal/ratelimit"
	"github.com/nevc-media/vidstream/catalog/internal/repository"
	"github.com/nevc-media/vidstream/catalog/internal/revocation"
	"github.com/nevc-media/vidstream/catalog/internal/server"
	"github.com/nevc-media/vidstream/catalog/internal/service"
	"github.com/nevc-media/vidstream/catalog/pkg/tokens"
	commonaudit "github.com/nevc-media/vidstream/common/audit"
	"github.com/nevc-media/vidstream/common/httputil"
	"github.com/nevc-media/vidstream/common/logging"
	"github.com/nevc-media/vidstream/common/messaging"
	natsclient "github.com/nevc-media/vidstream/common/messaging/nats"
	commonmw "github.com/nevc-media/vidstream/common/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("catalog"))
	logging.SetDefault(logger)

	slog.Info("Starting catalog service",
		slog.Int("port", cfg.Server.Port),
		slog.String("database", cfg.Database.Type),
		slog.String("storage", cfg.Storage.Backend),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Catalog service failed", logging.Error(err))
		os.Exit(1)
	}
	slog.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	repo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer repo.Close()

	var (
		store   tokens.RevocationStore
		limiter ratelimit.Limiter = ratelimit.NoOpLimiter{}
	)
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		redisStore := revocation.NewRedisStore(rdb)
		if err := redisStore.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("Connected to Redis", slog.String("addr", cfg.Redis.Addr))
		store = redisStore
		if cfg.RateLimit.Enabled {
			limiter = ratelimit.NewRedisLimiter(rdb, "login", cfg.RateLimit.Login, cfg.RateLimit.Window)
		}
	} else {
		slog.Warn("Redis disabled, revocations and rate limits are per instance")
		memStore := revocation.NewMemoryStore()
		go memStore.Run(ctx, cfg.Auth.RevocationSweepInterval)
		store = memStore
		if cfg.RateLimit.Enabled {
			local := ratelimit.NewLocalLimiter("login", cfg.RateLimit.Login, cfg.RateLimit.Window)
			go local.Run(ctx, cfg.RateLimit.Window)
			limiter = local
		}
	}

	authority, err := tokens.NewAuthority(cfg.Auth.JWTSecret, store, tokens.WithTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return fmt.Errorf("failed to create token authority: %w", err)
	}

	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.NATS.Enabled {
		natsCfg := natsclient.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.Name = "vidstream-catalog"
		client, err := natsclient.NewClient(natsCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer client.Drain()
		publisher = client
		slog.Info("Forwarding events to NATS", slog.String("url", cfg.NATS.URL))
	}

	blobs, err := openBlobStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	recorderOpts := []audit.RecorderOption{audit.WithPublisher(publisher)}
	if cfg.Auth.AuditSecret != "" {
		recorderOpts = append(recorderOpts, audit.WithSigner(commonaudit.NewEventSigner(cfg.Auth.AuditSecret)))
	} else {
		slog.Warn("auth.audit_secret not set, audit events are unsigned")
	}
	recorder := audit.NewRecorder(repo, recorderOpts...)

	defaultRole, _ := models.ParseRole(cfg.Auth.DefaultRole)
	authService := service.NewAuthService(repo, authority,
		service.WithDefaultRole(defaultRole),
		service.WithBcryptCost(cfg.Auth.BcryptCost))
	videoService := service.NewVideoService(repo, blobs, recorder, repo,
		service.WithNotifier(audit.NewNotifier(publisher)),
		service.WithAuditVerifier(recorder))

	cors := commonmw.DefaultCORSConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		cors.AllowedOrigins = cfg.Server.AllowedOrigins
	}
	trusted, err := httputil.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router := server.NewRouter(server.Options{
		Auth:         handlers.NewAuthHandler(authService),
		Videos:       handlers.NewVideoHandler(videoService, cfg.Server.MaxUploadBytes),
		Authn:        middleware.NewAuthMiddleware(authService),
		Health:       repo,
		LoginLimiter: limiter,
		RetryAfter:   cfg.RateLimit.Window,
		CORS:         cors,
		Proxies:      trusted,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Catalog service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) (repository.Repository, error) {
	if cfg.Type != "postgres" {
		slog.Warn("Using in-memory repository (development only)")
		return repository.NewInMemoryRepository(), nil
	}

	connString := cfg.Postgres.ConnString()
	slog.Info("Connecting to PostgreSQL",
		slog.String("host", cfg.Postgres.Host),
		slog.Int("port", cfg.Postgres.Port),
		slog.String("database", cfg.Postgres.Database),
	)

	version, err := repository.Migrate(ctx, cfg.Migrations, connString)
	if err != nil {
		return nil, err
	}
	slog.Info("Database migration complete", slog.Uint64("version", uint64(version)))

	repo, err := repository.NewPostgresRepository(ctx, connString)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func openBlobStore(ctx context.Context, cfg config.StorageConfig) (blob.Store, error) {
	switch cfg.Backend {
	case "s3":
		store, err := blob.NewS3Store(ctx, blob.S3Options{
			Bucket:   cfg.S3.Bucket,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
			Prefix:   cfg.S3.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure S3 storage: %w", err)
		}
		slog.Info("Using S3 blob storage", slog.String("bucket", cfg.S3.Bucket))
		return store, nil
	default:
		store, err := blob.NewFSStore(cfg.FS.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to open blob directory: %w", err)
		}
		slog.Info("Using filesystem blob storage", slog.String("root", store.Root()))
		return store, nil
	}
}
