package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/cache"
	"storefront/internal/config"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	store  *repository.Store
	redis  *redis.Client
}

// NewServer assembles the router. The server owns store and redisClient and
// releases them in Close. redisClient may be nil, which disables the cart
// cache and rate limiting.
func NewServer(cfg *config.Config, logger *zap.Logger, store *repository.Store, redisClient *redis.Client) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := custommiddleware.NewMetrics(registry)

	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(metrics.Handler)
	router.Use(middleware.Recoverer)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, !cfg.IsProduction()))

	router.Get("/health", healthHandler(store, redisClient))
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Initialize repositories
	carts := store.Carts
	if cfg.Cache.Enabled && redisClient != nil {
		carts = cache.NewRedisCartRepository(carts, redisClient, cfg.Cache.TTL, logger)
		logger.Info("Cart cache enabled", zap.Duration("ttl", cfg.Cache.TTL))
	}

	// Initialize services
	catalogService := service.NewCatalogService(store.Products, cfg.Server.BasePath+"/products")
	cartService := service.NewCartService(carts, store.Products, service.CartServiceOptions{
		OptimisticLocking: cfg.Cart.OptimisticLocking,
	})

	// Initialize handlers
	productHandler := transport.NewProductHandler(catalogService, logger)
	cartHandler := transport.NewCartHandler(cartService, logger)

	// Register routes
	api := chi.NewRouter()
	if cfg.RateLimit.Enabled && redisClient != nil {
		api.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "rate_limit",
		}, logger))
	}
	productHandler.RegisterRoutes(api)
	cartHandler.RegisterRoutes(api)

	basePath := cfg.Server.BasePath
	if basePath == "" {
		basePath = "/"
	}
	router.Mount(basePath, api)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		store:  store,
		redis:  redisClient,
	}

	return server
}

func healthHandler(store *repository.Store, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		report := map[string]interface{}{}

		storage := store.Health(r.Context())
		report["storage"] = storage
		if storage["status"] != "up" {
			status = http.StatusServiceUnavailable
		}

		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				// Redis only backs optional features, so it degrades rather than fails
				report["redis"] = map[string]string{"status": "down", "error": err.Error()}
			} else {
				report["redis"] = map[string]string{"status": "up"}
			}
		}

		report["status"] = "ok"
		if status != http.StatusOK {
			report["status"] = "unavailable"
		}

		custommiddleware.RespondWithJSON(w, status, report)
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close storage connection
	if s.store != nil && s.store.Close != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("Failed to close storage", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
