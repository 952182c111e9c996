package container

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	database "github.com/FACorreiaa/go-complaint-auth/app/db"
	appMiddleware "github.com/FACorreiaa/go-complaint-auth/app/middleware"
	"github.com/FACorreiaa/go-complaint-auth/app/observability/metrics"
	"github.com/FACorreiaa/go-complaint-auth/config"
	"github.com/FACorreiaa/go-complaint-auth/internal/api/auth"
	"github.com/FACorreiaa/go-complaint-auth/internal/api/geography"
	"github.com/FACorreiaa/go-complaint-auth/internal/cache"
	"github.com/FACorreiaa/go-complaint-auth/internal/notify"
	"github.com/FACorreiaa/go-complaint-auth/internal/tokens"
	"github.com/FACorreiaa/go-complaint-auth/internal/worker"
)

const (
	dispatchBuffer  = 256
	dispatchTimeout = 10 * time.Second
	cachePrefix     = "complaint-auth:"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *slog.Logger
	Pool         *pgxpool.Pool
	Codec        *tokens.Codec
	AuthService  *auth.AuthServiceImpl
	AuthHandler  *auth.AuthHandlerImpl
	Authenticate func(http.Handler) http.Handler
	CSRF         *appMiddleware.CSRF
	CleanupJob   *worker.CleanupJob
	dispatcher   *notify.Dispatcher
	auditQueue   *notify.Dispatcher
	redis        *redis.Client
	rabbit       *notify.RabbitMQClient
	kafka        *notify.KafkaAuditor
	memoryStore  *cache.MemoryStore
}

// NewContainer initializes and returns a new dependency container
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}
	c.Pool, err = database.Init(dbConfig, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	// Initialize repositories
	authRepo := auth.NewPostgresAuthRepo(c.Pool, logger)
	geoValidator := geography.NewPostgresValidator(c.Pool, logger)

	notifier, err := c.notifier()
	if err != nil {
		c.Close()
		return nil, err
	}
	// Notifications never queue behind audit publishes.
	c.dispatcher = notify.NewDispatcher(logger, dispatchBuffer, dispatchTimeout)
	c.auditQueue = notify.NewDispatcher(logger, dispatchBuffer, dispatchTimeout)

	var auditor notify.Auditor = notify.NopAuditor{}
	if len(cfg.Messaging.Kafka.Brokers) > 0 {
		c.kafka = notify.NewKafkaAuditor(cfg.Messaging.Kafka.Brokers, cfg.Messaging.Kafka.Topic)
		auditor = c.kafka
		logger.Info("Auth events published to Kafka", slog.String("topic", cfg.Messaging.Kafka.Topic))
	}

	metrics.InitAppMetrics()
	c.Codec = tokens.NewCodec(cfg.JWT)

	opts := []auth.ServiceOption{
		auth.WithGeography(geoValidator),
		auth.WithNotifier(notifier),
		auth.WithAuditor(auditor),
		auth.WithBackground(c.dispatcher),
		auth.WithAuditBackground(c.auditQueue),
		auth.WithMetrics(metrics.Get()),
	}
	if store := c.store(cfg.Auth.CacheDriver); store != nil {
		lookup := auth.NewCachedLookup(auth.NewStoreLookup(authRepo), store, cfg.Auth.UserCacheTTL, logger)
		opts = append(opts, auth.WithUserLookup(lookup))
		logger.Info("Login profile cache enabled", slog.String("driver", cfg.Auth.CacheDriver))
	}

	// Initialize services
	c.AuthService = auth.NewAuthService(authRepo, c.Codec, cfg, logger, opts...)

	// Initialize HandlerImpls
	c.AuthHandler = auth.NewAuthHandlerImpl(c.AuthService, logger)
	c.Authenticate = auth.Authenticate(logger, c.Codec)

	if cfg.Security.CSRF.Enabled {
		store := c.store(cfg.Security.CSRF.Store)
		if store == nil {
			store = c.store("memory")
		}
		c.CSRF = appMiddleware.NewCSRF(store, cfg.Security.CSRF.TTL, cfg.Mode != "development", logger)
	}

	if cfg.Cleanup.Enabled {
		c.CleanupJob = worker.NewCleanupJob(c.AuthService, cfg.Cleanup, logger)
	}

	return c, nil
}

func (c *Container) notifier() (notify.Notifier, error) {
	mq := c.Config.Messaging.RabbitMQ
	if mq.URL == "" {
		c.Logger.Warn("RabbitMQ not configured, notifications are only logged")
		return notify.NewLogNotifier(c.Logger), nil
	}
	client, err := notify.NewRabbitMQClient(mq.URL, mq.EmailQueue, mq.SMSQueue)
	if err != nil {
		c.Logger.Error("Failed to connect to RabbitMQ", slog.Any("error", err))
		return nil, fmt.Errorf("rabbitmq: %w", err)
	}
	c.rabbit = client
	return notify.NewQueueNotifier(client, mq.EmailQueue, mq.SMSQueue), nil
}

// store returns the cache backend for driver, or nil for "none". A redis
// driver without an address falls back to memory.
func (c *Container) store(driver string) cache.Store {
	switch driver {
	case "redis":
		rc := c.Config.Repositories.Redis
		if rc.Addr != "" {
			if c.redis == nil {
				c.redis = redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
			}
			return cache.NewRedisStore(c.redis, cachePrefix)
		}
		c.Logger.Warn("Redis cache requested without an address, using in-memory cache")
		fallthrough
	case "memory":
		if c.memoryStore == nil {
			c.memoryStore = cache.NewMemoryStore(c.Config.Auth.UserCacheTTL, 10*time.Minute)
		}
		return c.memoryStore
	}
	return nil
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.dispatcher != nil {
		c.dispatcher.Close()
	}
	if c.auditQueue != nil {
		c.auditQueue.Close()
	}
	if c.kafka != nil {
		if err := c.kafka.Close(); err != nil {
			c.Logger.Warn("Failed to close Kafka writer", slog.Any("error", err))
		}
	}
	if c.rabbit != nil {
		if err := c.rabbit.Close(); err != nil {
			c.Logger.Warn("Failed to close RabbitMQ connection", slog.Any("error", err))
		}
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}
