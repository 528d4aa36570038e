package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/DeliveryGo/internal/service"
	"github.com/utafrali/DeliveryGo/pkg/health"
	"github.com/utafrali/DeliveryGo/pkg/middleware"
)

const serviceName = "delivery-api"

// RouterConfig holds everything NewRouter wires together.
type RouterConfig struct {
	Users     *service.UserService
	Products  *service.ProductService
	Addresses *service.AddressService
	Orders    *service.OrderService

	// ValidateToken resolves a bearer token to its subject.
	ValidateToken middleware.TokenValidator
	TokenExpiry   time.Duration

	Health   *health.Handler
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer

	CORS           middleware.CORSConfig
	LoginLimiter   *middleware.RateLimiter
	RequestTimeout time.Duration

	PprofEnabled bool
	PprofCIDRs   []string

	Logger *slog.Logger
}

// NewRouter creates a chi router with all delivery API routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(chimw.Compress(5))
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	if cfg.PprofEnabled {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	authHandler := NewAuthHandler(cfg.Users, cfg.TokenExpiry, logger)
	userHandler := NewUserHandler(cfg.Users, logger)
	productHandler := NewProductHandler(cfg.Products, logger)
	addressHandler := NewAddressHandler(cfg.Addresses, logger)
	orderHandler := NewOrderHandler(cfg.Orders, cfg.Addresses, logger)

	authenticated := func(r chi.Router) {
		r.Use(middleware.Authenticate(cfg.ValidateToken))
		r.Use(CurrentUser(cfg.Users, logger))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/login", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if cfg.LoginLimiter != nil {
					r.Use(cfg.LoginLimiter.Middleware)
				}
				r.Post("/access-token", authHandler.Login)
			})
			r.Group(func(r chi.Router) {
				authenticated(r)
				r.Post("/test-token", authHandler.TestToken)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Route("/users", func(r chi.Router) {
				r.Post("/", userHandler.Register)
				r.Group(func(r chi.Router) {
					authenticated(r)
					r.Get("/", userHandler.ListUsers)
					r.Get("/me", userHandler.GetMe)
					r.Put("/me", userHandler.UpdateMe)
					r.Get("/{id}", userHandler.GetUser)
					r.Put("/{id}", userHandler.UpdateUser)
					r.Delete("/{id}", userHandler.DeleteUser)
				})
			})

			r.Route("/products", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(middleware.CacheControl(30))
					r.Get("/", productHandler.ListProducts)
					r.Get("/{id}", productHandler.GetProduct)
				})
				r.Group(func(r chi.Router) {
					authenticated(r)
					r.Post("/", productHandler.CreateProduct)
					r.Put("/{id}", productHandler.UpdateProduct)
					r.Delete("/{id}", productHandler.DeleteProduct)
					r.Patch("/{id}/stock", productHandler.UpdateStock)
				})
			})

			r.Route("/addresses", func(r chi.Router) {
				authenticated(r)
				r.Get("/", addressHandler.ListAddresses)
				r.Post("/", addressHandler.CreateAddress)
				r.Get("/default", addressHandler.GetDefaultAddress)
				r.Get("/{id}", addressHandler.GetAddress)
				r.Put("/{id}", addressHandler.UpdateAddress)
				r.Delete("/{id}", addressHandler.DeleteAddress)
				r.Post("/{id}/default", addressHandler.SetDefaultAddress)
			})

			r.Route("/orders", func(r chi.Router) {
				authenticated(r)
				r.Get("/", orderHandler.ListOrders)
				r.Post("/", orderHandler.CreateOrder)
				r.Get("/{id}", orderHandler.GetOrder)
				r.Put("/{id}", orderHandler.UpdateOrder)
				r.Patch("/{id}/status", orderHandler.UpdateOrderStatus)
				r.Delete("/{id}", orderHandler.CancelOrder)
			})
		})
	})

	return r
}
