package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/DeliveryGo/internal/auth"
	"github.com/utafrali/DeliveryGo/internal/cache"
	"github.com/utafrali/DeliveryGo/internal/config"
	"github.com/utafrali/DeliveryGo/internal/event"
	handler "github.com/utafrali/DeliveryGo/internal/handler/http"
	"github.com/utafrali/DeliveryGo/internal/migrations"
	"github.com/utafrali/DeliveryGo/internal/repository/postgres"
	"github.com/utafrali/DeliveryGo/internal/service"
	"github.com/utafrali/DeliveryGo/pkg/database"
	"github.com/utafrali/DeliveryGo/pkg/health"
	pkgkafka "github.com/utafrali/DeliveryGo/pkg/kafka"
	"github.com/utafrali/DeliveryGo/pkg/middleware"
	"github.com/utafrali/DeliveryGo/pkg/tracing"
)

const serviceName = "delivery-api"

// App wires together all dependencies and runs the delivery API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(reg, pool, serviceName); err != nil {
		pool.Close()
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Redis backs the product cache only; the API keeps serving without it.
	var productCache service.ProductCache
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis unavailable, product cache disabled", slog.String("error", err.Error()))
	} else {
		productCache = cache.NewProductCache(redisClient, cfg.ProductCacheTTL, cache.DefaultBreakerConfig(), reg, logger)
		logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))
	}

	// Initialize Kafka producer.
	producer := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenExpiry)
	events := event.NewProducer(producer, logger)

	userService := service.NewUserService(postgres.NewUserRepository(pool), tokens, logger)
	productService := service.NewProductService(postgres.NewProductRepository(pool), productCache, events, logger)
	addressService := service.NewAddressService(postgres.NewAddressRepository(pool), logger)
	orderService := service.NewOrderService(postgres.NewOrderRepository(pool), events, service.NewOrderMetrics(reg), logger)

	created, err := userService.EnsureSuperuser(ctx, cfg.FirstSuperuser, cfg.FirstSuperuserPassword)
	if err != nil {
		closeQuietly(redisClient)
		pool.Close()
		return nil, fmt.Errorf("bootstrap superuser: %w", err)
	}
	if created {
		logger.Info("first superuser created", slog.String("email", cfg.FirstSuperuser))
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		Users:         userService,
		Products:      productService,
		Addresses:     addressService,
		Orders:        orderService,
		ValidateToken: tokens.Subject,
		TokenExpiry:   tokens.Expiry(),
		Health:        healthHandler,
		Metrics:       middleware.NewHTTPMetrics(reg, serviceName),
		Gatherer:      reg,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowCredentials: true,
		},
		LoginLimiter: middleware.NewRateLimiter(middleware.RateLimitConfig{
			Rate:    cfg.LoginRateLimit,
			Burst:   cfg.LoginRateBurst,
			IdleTTL: 10 * time.Minute,
		}),
		RequestTimeout: cfg.RequestTimeout,
		PprofEnabled:   cfg.PprofEnabled,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		Logger:         logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Redis client
// 5. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func closeQuietly(c *redis.Client) {
	if c != nil {
		_ = c.Close()
	}
}
