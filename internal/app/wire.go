package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	s3blob "github.com/alanyoungcy/swaprouter/internal/blob/s3"
	"github.com/alanyoungcy/swaprouter/internal/cache/redis"
	"github.com/alanyoungcy/swaprouter/internal/config"
	"github.com/alanyoungcy/swaprouter/internal/crypto"
	"github.com/alanyoungcy/swaprouter/internal/domain"
	"github.com/alanyoungcy/swaprouter/internal/notify"
	"github.com/alanyoungcy/swaprouter/internal/store/postgres"
)

// Dependencies bundles the optional infrastructure the modes attach to the
// services. A nil field means the backing section is disabled and the
// services run local-only for that concern.
type Dependencies struct {
	// Stores
	CompilationStore domain.CompilationStore
	QuoteStore       domain.QuoteStore
	AuditStore       domain.AuditStore

	// Caches
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	QuoteCache  domain.QuoteCache
	SignalBus   domain.SignalBus

	// Blob storage
	Archiver domain.RoundArchiver

	// Signer is nil when no key is configured.
	Signer *crypto.Signer

	// Notifications
	Notifier *notify.Notifier

	// Checks are the health checks of every connected backend, by name.
	Checks map[string]func(context.Context) error
}

// CheckNames returns the registered health check names in a stable order.
func (d *Dependencies) CheckNames() []string {
	names := make([]string, 0, len(d.Checks))
	for name := range d.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Wire constructs the concrete dependency implementations enabled in cfg and
// returns them together with a cleanup function that should be called on
// shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: make(map[string]func(context.Context) error)}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.CompilationStore = postgres.NewCompilationStore(pool)
		deps.QuoteStore = postgres.NewQuoteStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pgClient.Ping
		logger.InfoContext(ctx, "wire: postgres connected")
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.QuoteCache = redis.NewQuoteCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Checks["redis"] = redisClient.HealthCheck
		logger.InfoContext(ctx, "wire: redis connected")
	}

	// --- S3 round archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewRoundArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client))
		deps.Checks["s3"] = s3Client.Health
		logger.InfoContext(ctx, "wire: s3 connected", slog.String("bucket", cfg.S3.Bucket))
	}

	// --- Signer ---
	if cfg.Signer.PrivateKey != "" || cfg.Signer.EncryptedKeyPath != "" {
		key, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Signer.PrivateKey,
			EncryptedKeyPath: cfg.Signer.EncryptedKeyPath,
			KeyPassword:      cfg.Signer.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
		signer, err := crypto.NewSigner(key)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
		deps.Signer = signer
		logger.InfoContext(ctx, "wire: signer loaded", slog.String("address", signer.Address().Hex()))
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}
