package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"shuttle-market/internal/agent"
	"shuttle-market/internal/config"
	"shuttle-market/internal/database"
	applogger "shuttle-market/internal/logger"
	custommiddleware "shuttle-market/internal/middleware"
	"shuttle-market/internal/media"
	"shuttle-market/internal/repository"
	"shuttle-market/internal/service"
	"shuttle-market/internal/session"
	"shuttle-market/internal/transport"
	"shuttle-market/internal/whatsapp"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	sessionBackendRedis = "redis"
	sweepInterval       = time.Minute
)

type Server struct {
	*http.Server
	config      *config.Config
	logger      *zap.Logger
	db          database.Service
	redis       *redis.Client
	webhook     *transport.WebhookHandler
	stopSweeper context.CancelFunc
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service) (*Server, error) {
	s := &Server{config: cfg, logger: logger, db: db}

	if cfg.Agent.SessionBackend == sessionBackendRedis {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	// Outbound messaging and media
	waClient := whatsapp.NewClient(whatsapp.ClientConfig{
		APIBase:       cfg.WhatsApp.APIBase,
		Token:         cfg.WhatsApp.Token,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		Timeout:       cfg.WhatsApp.HTTPTimeout,
	}, nil, applogger.Component(logger, "whatsapp"))

	host, localRoot, err := newMediaHost(cfg.Media)
	if err != nil {
		return nil, err
	}
	gateway := media.NewGateway(waClient, host, applogger.Component(logger, "media"))

	// Initialize repositories
	sellerRepo := repository.NewSellerRepository(db.DB())
	productRepo := repository.NewProductRepository(db.DB())

	// Initialize services
	catalog := service.NewCatalogService(sellerRepo, productRepo, gateway, applogger.Component(logger, "catalog"))
	sellerAdmin := service.NewSellerAdminService(sellerRepo, productRepo, gateway, waClient, applogger.Component(logger, "seller_admin"))

	// Conversation agent
	states, targets, seen := s.sessionStores()
	inventoryAgent := agent.New(agent.Deps{
		Catalog:    catalog,
		Media:      gateway,
		States:     states,
		Targets:    targets,
		Seen:       seen,
		Dispatcher: agent.NewDispatcher(waClient, applogger.Component(logger, "dispatcher")),
	}, agentConfig(cfg.Agent), agent.Options{}, applogger.Component(logger, "agent"))

	// Initialize handlers
	s.webhook = transport.NewWebhookHandler(inventoryAgent, cfg.WhatsApp.VerifyToken, cfg.Agent.ProcessTimeout, applogger.Component(logger, "webhook"))
	debugHandler := transport.NewDebugHandler(inventoryAgent, logger)
	adminHandler := transport.NewAdminHandler(sellerAdmin, logger)

	// Create router
	router := chi.NewRouter()
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	router.Get("/health", transport.HealthHandler(db))

	s.webhook.RegisterRoutes(router, custommiddleware.VerifySignature(cfg.WhatsApp.AppSecret, transport.MaxWebhookBody, logger))

	if localRoot != "" {
		router.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(localRoot))))
	}

	operatorGuards := []func(http.Handler) http.Handler{
		middleware.Compress(5),
		custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.Env == "development"),
		custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger),
		custommiddleware.RequireAdmin(logger),
		custommiddleware.RateLimitMiddleware(s.rateLimitCounter(), custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit:operator",
		}, logger),
	}
	debugHandler.RegisterRoutes(router, operatorGuards...)
	adminHandler.RegisterRoutes(router, operatorGuards...)

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, nil
}

func (s *Server) sessionStores() (session.Store[agent.State], session.Store[agent.MediaTarget], session.Store[bool]) {
	if s.redis != nil {
		s.logger.Info("Using Redis session backend")
		return session.NewRedisStore[agent.State](s.redis, "agent:state:"),
			session.NewRedisStore[agent.MediaTarget](s.redis, "agent:target:"),
			session.NewRedisStore[bool](s.redis, "agent:seen:")
	}

	states := session.NewMemoryStore[agent.State](nil)
	targets := session.NewMemoryStore[agent.MediaTarget](nil)
	seen := session.NewMemoryStore[bool](nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.stopSweeper = cancel
	go session.RunSweeper(ctx, sweepInterval, applogger.Component(s.logger, "session"), states, targets, seen)

	s.logger.Info("Using in-memory session backend")
	return states, targets, seen
}

func (s *Server) rateLimitCounter() custommiddleware.Counter {
	if s.redis != nil {
		return custommiddleware.NewRedisCounter(s.redis)
	}
	return custommiddleware.NewMemoryCounter(nil)
}

func newMediaHost(cfg config.MediaConfig) (media.Host, string, error) {
	if cfg.UsesS3() {
		host, err := media.NewS3Host(cfg)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create s3 media host: %w", err)
		}
		return host, "", nil
	}

	host, err := media.NewLocalHost(cfg.LocalDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, "", err
	}
	return host, host.Root(), nil
}

func agentConfig(cfg config.AgentConfig) agent.Config {
	out := agent.DefaultConfig()
	if cfg.StateTimeout > 0 {
		out.StateTimeout = cfg.StateTimeout
	}
	if cfg.MediaTargetTTL > 0 {
		out.MediaTargetTTL = cfg.MediaTargetTTL
	}
	if cfg.Debounce > 0 {
		out.Debounce = cfg.Debounce
	}
	if cfg.ProcessTimeout > 0 {
		out.ProcessTimeout = cfg.ProcessTimeout
	}
	if cfg.ImageMaxBytes > 0 {
		out.ImageMaxBytes = cfg.ImageMaxBytes
	}
	if cfg.VideoMaxBytes > 0 {
		out.VideoMaxBytes = cfg.VideoMaxBytes
	}
	if cfg.VideoMaxSecs > 0 {
		out.VideoMaxSeconds = cfg.VideoMaxSecs
	}
	return out
}

// Shutdown stops accepting requests, then waits for background webhook work
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.Server.Shutdown(ctx); err != nil {
		return err
	}
	return s.webhook.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.stopSweeper != nil {
		s.stopSweeper()
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}
