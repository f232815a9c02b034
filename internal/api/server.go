package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/aezzeldin/storefront-api/internal/cache"
	"github.com/aezzeldin/storefront-api/internal/clients"
	"github.com/aezzeldin/storefront-api/internal/config"
	"github.com/aezzeldin/storefront-api/internal/database"
	"github.com/aezzeldin/storefront-api/internal/handlers"
	"github.com/aezzeldin/storefront-api/internal/outbox"
	"github.com/aezzeldin/storefront-api/internal/repository"
	"github.com/aezzeldin/storefront-api/internal/service"
	"github.com/aezzeldin/storefront-api/pkg/kafka"
	"github.com/aezzeldin/storefront-api/pkg/logger"
	"github.com/aezzeldin/storefront-api/pkg/middleware"
	"github.com/aezzeldin/storefront-api/pkg/retry"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	router     *mux.Router
	httpServer *http.Server
	db         *database.Database

	orderRepo      *repository.OrderRepository
	productRepo    *repository.ProductRepository
	promoRepo      *repository.PromoRepository
	ambassadorRepo *repository.AmbassadorRepository
	outboxRepo     *repository.OutboxRepository
	dlqRepo        *repository.DeadLetterRepository

	policyCache      *cache.PolicyCache
	couponService    *service.CouponService
	orderService     *service.OrderService
	inventoryService *service.InventoryService

	adminClient   *clients.AdminClient
	adminHandler  *outbox.AdminHandler
	kafkaProducer *kafka.Producer
	kafkaConsumer *kafka.Consumer

	outboxProcessor     *outbox.Processor
	deadLetterProcessor *outbox.DeadLetterProcessor

	rateLimiter     *middleware.RateLimiterMiddleware
	endpointLimiter *middleware.EndpointRateLimiterMiddleware
	degradation     *middleware.GracefulDegradation
}

// NewServer wires the full service: storage, cache, event delivery and HTTP
// surface.
func NewServer(cfg *config.Config, logger logger.Logger) (*Server, error) {
	r := mux.NewRouter()

	db, err := database.New(cfg, logger)

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	orderRepo := repository.NewOrderRepository(db, logger)
	productRepo := repository.NewProductRepository(db, logger)
	promoRepo := repository.NewPromoRepository(db, logger)
	ambassadorRepo := repository.NewAmbassadorRepository(db, logger)
	outboxRepo := repository.NewOutboxRepository(db, logger)
	dlqRepo := repository.NewDeadLetterRepository(db, logger)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	policyCache := cache.NewPolicyCache(redisClient, cfg.Redis.TTL, logger)

	couponService := service.NewCouponService(promoRepo, ambassadorRepo, policyCache, logger)
	orderService := service.NewOrderService(orderRepo, promoRepo, ambassadorRepo, outboxRepo, couponService, policyCache, logger)
	inventoryService := service.NewInventoryService(orderRepo, productRepo, logger)

	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, logger)

	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	adminClient := clients.NewAdminClient(cfg.Admin.BaseURL, cfg.Admin.Timeout, logger)
	adminHandler := outbox.NewAdminHandler(adminClient, logger)
	kafkaHandler := outbox.NewKafkaHandler(kafkaProducer, cfg.Kafka.OrdersTopic, logger)

	processorConfig := &outbox.ProcessorConfig{
		PollingInterval: cfg.Outbox.PollingInterval,
		BatchSize:       cfg.Outbox.BatchSize,
		MaxRetries:      cfg.Outbox.MaxRetries,
	}
	outboxProcessor := outbox.NewProcessor(outboxRepo, dlqRepo, processorConfig, logger)

	dlqProcessorConfig := &outbox.DeadLetterProcessorConfig{
		PollingInterval: 30 * time.Second,
		BatchSize:       5,
		MaxRetries:      5,
		BackoffStrategy: &retry.ExponentialBackoff{
			InitialInterval: 1 * time.Second,
			MaxInterval:     2 * time.Minute,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		},
	}
	deadLetterProcessor := outbox.NewDeadLetterProcessor(dlqRepo, dlqProcessorConfig, logger)

	for _, eventType := range []string{"order_created", "order_status_changed"} {
		outboxProcessor.RegisterHandler(eventType, kafkaHandler)
		deadLetterProcessor.RegisterHandler(eventType, kafkaHandler)
	}

	for _, eventType := range []string{"redemption_recorded", "ambassador_stats_updated"} {
		outboxProcessor.RegisterHandler(eventType, adminHandler)
		deadLetterProcessor.RegisterHandler(eventType, adminHandler)
	}

	// unrouted event types are logged and completed rather than dead-lettered
	outboxProcessor.RegisterFallbackHandler(outbox.NewLoggingHandler(logger))

	consumerConfig := &kafka.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topics:        []string{cfg.Kafka.OrdersTopic},
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
	}

	kafkaConsumer, err := kafka.NewConsumer(consumerConfig, logger)

	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	orderEventsHandler := handlers.NewOrderEventsHandler(inventoryService, logger)
	kafkaConsumer.RegisterHandler(cfg.Kafka.OrdersTopic, orderEventsHandler)

	rateLimiter := middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{
		GlobalMaxTokens:   100,
		GlobalRefillRate:  50,
		IPMaxTokens:       20,
		IPRefillRate:      10,
		TrustForwardedFor: true,
	}, logger)

	endpointLimiter := middleware.NewEndpointRateLimiterMiddleware(50, 25, logger)
	endpointLimiter.SetLimit("POST:/api/v1/orders", 10, 5)
	endpointLimiter.SetLimit("POST:/api/v1/coupon/validate", 20, 10)

	degradation := middleware.NewGracefulDegradation(logger)

	server := &Server{
		config: cfg,
		logger: logger,
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		db:                  db,
		orderRepo:           orderRepo,
		productRepo:         productRepo,
		promoRepo:           promoRepo,
		ambassadorRepo:      ambassadorRepo,
		outboxRepo:          outboxRepo,
		dlqRepo:             dlqRepo,
		policyCache:         policyCache,
		couponService:       couponService,
		orderService:        orderService,
		inventoryService:    inventoryService,
		adminClient:         adminClient,
		adminHandler:        adminHandler,
		kafkaProducer:       kafkaProducer,
		kafkaConsumer:       kafkaConsumer,
		outboxProcessor:     outboxProcessor,
		deadLetterProcessor: deadLetterProcessor,
		rateLimiter:         rateLimiter,
		endpointLimiter:     endpointLimiter,
		degradation:         degradation,
	}

	server.setupRoutes()

	outboxProcessor.Start()
	deadLetterProcessor.Start()

	if err := kafkaConsumer.Start(); err != nil {
		logger.Error("Failed to start Kafka consumer", "error", err)
		// Non-fatal, orders can still be reconciled via the sync endpoints
	}

	return server, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.outboxProcessor.Stop()
	s.deadLetterProcessor.Stop()
	s.rateLimiter.Stop()

	if s.kafkaConsumer != nil {
		if err := s.kafkaConsumer.Stop(); err != nil {
			s.logger.Error("Error stopping Kafka consumer", "error", err)
		}
	}

	if s.kafkaProducer != nil {
		if err := s.kafkaProducer.Close(); err != nil {
			s.logger.Error("Error closing Kafka producer", "error", err)
		}
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Error closing database connection", "error", err)
	}

	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all the routes for the API
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.rateLimiter.Middleware)
	s.router.Use(s.degradation.Middleware)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.endpointLimiter.Middleware)

	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	// Orders
	api.HandleFunc("/orders", s.getOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.createOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", s.getOrderByIDHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/update", s.updateOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/items/update", s.updateOrderItemHandler).Methods(http.MethodPost)

	// Inventory reconciliation
	api.HandleFunc("/inventory/update-from-order", s.updateInventoryFromOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/inventory/sync-all-orders", s.syncAllOrdersHandler).Methods(http.MethodPost)

	// Product stock
	api.HandleFunc("/products/{id}/inventory", s.getProductInventoryHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}/inventory", s.setProductInventoryHandler).Methods(http.MethodPut)
	api.HandleFunc("/products/{id}/reduce-inventory", s.reduceProductInventoryHandler).Methods(http.MethodPost)

	// Discount codes. Both spellings are served: promocodes/validate is the
	// storefront's legacy POST path, coupon/validate the current one.
	api.HandleFunc("/promocodes/validate", s.validateCouponHandler).Methods(http.MethodPost)
	api.HandleFunc("/coupon/validate", s.validateCouponHandler).Methods(http.MethodPost)
	api.HandleFunc("/coupon/validate", s.validateCouponQueryHandler).Methods(http.MethodGet)
	api.HandleFunc("/coupon/redeem", s.redeemCouponHandler).Methods(http.MethodPost)

	// Admin API for monitoring and management
	admin := s.router.PathPrefix("/api/v1/admin").Subrouter()
	admin.HandleFunc("/dead-letters", s.getDeadLettersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/dead-letters/{id}/retry", s.retryDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/dead-letters/{id}/discard", s.discardDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/circuit-breaker", s.getCircuitBreakerHandler).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breaker/reset", s.resetCircuitBreakerHandler).Methods(http.MethodPost)
	admin.HandleFunc("/rate-limits", s.getRateLimitsHandler).Methods(http.MethodGet)
}

// loggingMiddleware logs each processed request
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}
