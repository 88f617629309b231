package server

import (
	"fmt"
	"net/http"
	"time"

	"giftlist/internal/config"
	"giftlist/internal/database"
	"giftlist/internal/giftlist"
	"giftlist/internal/logger"
	custommiddleware "giftlist/internal/middleware"
	"giftlist/internal/repository"
	"giftlist/internal/service"
	"giftlist/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

func NewServer(cfg *config.Config, log *zap.Logger, db database.Service) *Server {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack(25 * time.Second) {
		router.Use(mw)
	}
	router.Use(custommiddleware.CORSMiddleware(cfg.Server))
	router.Use(custommiddleware.LoggingMiddleware(logger.Component(log, "http")))
	router.Use(custommiddleware.ErrorHandlingMiddleware(log))

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "gifts:addr",
			KeyFunc:           custommiddleware.AddressKey,
		}, log))
	}

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health()
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})

	sqlDB := db.DB()

	// Initialize repositories
	userRepo := repository.NewUserRepository(sqlDB)
	refreshTokenRepo := repository.NewRefreshTokenRepository(sqlDB)
	itemRepo := repository.NewItemRepository(sqlDB)

	// Initialize services
	userService := service.NewUserService(userRepo, refreshTokenRepo, service.TokenSettings{
		Secret:        cfg.JWT.Secret,
		AccessExpiry:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
	})
	orderService := service.NewOrderService(sqlDB, logger.Component(log, "orders"))

	giftLog := logger.Component(log, "giftlist")
	registry := giftlist.NewRegistry(giftLog)
	registry.Register(giftlist.VariantPersistent, giftlist.SQLConstructor(sqlDB, giftLog))

	// Initialize handlers
	userHandler := transport.NewUserHandler(userService, log)
	giftHandler := transport.NewGiftHandler(registry, cfg.GiftList.Variant, log)
	storeHandler := transport.NewStoreHandler(itemRepo, orderService, log)

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, log)
	if redisClient != nil {
		// Authenticated callers get their own quota on top of the per-address one.
		userLimit := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "gifts",
		}, log)
		authenticate := authMiddleware
		authMiddleware = func(next http.Handler) http.Handler {
			return authenticate(userLimit(next))
		}
	}
	adminMiddleware := custommiddleware.RequireAdmin(log)

	// Register routes
	userHandler.RegisterRoutes(router, authMiddleware)
	giftHandler.RegisterRoutes(router, authMiddleware)
	storeHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: log,
		db:     db,
		redis:  redisClient,
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
