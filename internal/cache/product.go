// Package cache holds the Redis read-through cache for products. Redis is an
// optimisation only: every failure degrades to a miss, and a circuit breaker
// stops calling Redis after repeated errors.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/DeliveryGo/internal/domain"
)

const keyPrefix = "product:"

// BreakerConfig holds the circuit breaker settings guarding Redis.
type BreakerConfig struct {
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32
	// Interval clears the failure counts while closed. 0 never clears them.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns the settings used by the server.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

type metrics struct {
	requests     *prometheus.CounterVec
	breakerState prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "product_cache_requests_total",
			Help: "Product cache lookups by result (hit, miss, error, open).",
		}, []string{"result"}),
		breakerState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "product_cache_breaker_state",
			Help: "State of the product cache circuit breaker (0=closed, 1=half-open, 2=open).",
		}),
	}
}

// stateToFloat maps gobreaker states to prometheus gauge values.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// ProductCache caches products by ID in Redis.
type ProductCache struct {
	client  redis.Cmdable
	breaker *gobreaker.CircuitBreaker[[]byte]
	ttl     time.Duration
	metrics *metrics
	logger  *slog.Logger
}

// NewProductCache creates a product cache. Metrics are registered on reg.
func NewProductCache(client redis.Cmdable, ttl time.Duration, cfg BreakerConfig, reg prometheus.Registerer, logger *slog.Logger) *ProductCache {
	m := newMetrics(reg)

	settings := gobreaker.Settings{
		Name:        "product-cache",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			m.breakerState.Set(stateToFloat(to))
		},
	}
	m.breakerState.Set(0)

	return &ProductCache{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		ttl:     ttl,
		metrics: m,
		logger:  logger,
	}
}

// Get returns the cached product. Misses, Redis errors and an open breaker
// all report false.
func (c *ProductCache) Get(ctx context.Context, id string) (*domain.Product, bool) {
	data, err := c.breaker.Execute(func() ([]byte, error) {
		b, err := c.client.Get(ctx, keyPrefix+id).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return b, err
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.requests.WithLabelValues("open").Inc()
		return nil, false
	case err != nil:
		c.metrics.requests.WithLabelValues("error").Inc()
		c.logger.WarnContext(ctx, "product cache get failed",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
		return nil, false
	case data == nil:
		c.metrics.requests.WithLabelValues("miss").Inc()
		return nil, false
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		c.metrics.requests.WithLabelValues("error").Inc()
		c.logger.WarnContext(ctx, "discarding undecodable cached product",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
		c.Invalidate(ctx, id)
		return nil, false
	}
	c.metrics.requests.WithLabelValues("hit").Inc()
	return &p, true
}

// Set stores p with the configured TTL.
func (c *ProductCache) Set(ctx context.Context, p *domain.Product) {
	data, err := json.Marshal(p)
	if err != nil {
		c.logger.ErrorContext(ctx, "marshal product for cache", slog.String("error", err.Error()))
		return
	}
	c.exec(ctx, "set", p.ID, func() error {
		return c.client.Set(ctx, keyPrefix+p.ID, data, c.ttl).Err()
	})
}

// Invalidate drops the cached product.
func (c *ProductCache) Invalidate(ctx context.Context, id string) {
	c.exec(ctx, "del", id, func() error {
		return c.client.Del(ctx, keyPrefix+id).Err()
	})
}

// State returns the current breaker state.
func (c *ProductCache) State() gobreaker.State {
	return c.breaker.State()
}

// Ping checks Redis directly, bypassing the breaker.
func (c *ProductCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (c *ProductCache) exec(ctx context.Context, op, id string, fn func() error) {
	_, err := c.breaker.Execute(func() ([]byte, error) {
		return nil, fn()
	})
	if err != nil && !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.WarnContext(ctx, "product cache write failed",
			slog.String("op", op),
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}
}
