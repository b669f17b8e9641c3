package server

import (
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"paygate/internal/config"
	"paygate/internal/database"
	"paygate/internal/detect"
	"paygate/internal/drivers"
	"paygate/internal/events"
	"paygate/internal/gateway"
	"paygate/internal/healthmonitor"
	"paygate/internal/redis"
	"paygate/internal/webhooks"
	"paygate/internal/workers"
)

type Server struct {
	cfg           *config.Config
	db            database.Service
	redisService  *redis.Service
	factory       *drivers.Factory
	manager       *gateway.Manager
	detector      *detect.Detector
	dispatcher    *events.Dispatcher
	healthMonitor *healthmonitor.Monitor
	workerPool    *workers.WebhookWorkerPool
	log           *zap.Logger
}

func NewServer(log *zap.Logger) (*http.Server, *Server) {
	cfg := config.Load()

	dbService := database.New()

	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost"
	}
	redisPort := os.Getenv("REDIS_PORT")
	if redisPort == "" {
		redisPort = "6379"
	}

	redisClient := redis.NewClient(redis.Config{
		Host:     redisHost,
		Port:     redisPort,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	redisService := redis.NewService(redisClient, redis.Options{
		HealthTTL:    cfg.HealthCheckTTL,
		MaxRetries:   cfg.WebhookMaxRetries,
		RetryBackoff: cfg.WebhookRetryBackoff,
	})

	factory := drivers.NewFactory(cfg, log)
	manager := gateway.NewManager(cfg, factory, redisService, log)

	detector := detect.NewDetector()
	for _, name := range cfg.ProviderNames() {
		if pc, ok := cfg.Provider(name); ok {
			detector.Register(pc.Prefix(), pc.Name)
		}
	}

	dispatcher := events.NewDispatcher(log)
	processor := webhooks.NewProcessor(cfg, manager, dbService, dispatcher, log)

	workerPool := workers.NewWebhookWorkerPool(4, redisService, processor, log)
	workerPool.Start()

	var healthMonitor *healthmonitor.Monitor
	if cfg.HealthCheckEnabled {
		healthMonitor = healthmonitor.NewMonitor(cfg, manager, redisService, healthmonitor.Options{}, log)
		healthMonitor.Start()
	}

	appServer := &Server{
		cfg:           cfg,
		db:            dbService,
		redisService:  redisService,
		factory:       factory,
		manager:       manager,
		detector:      detector,
		dispatcher:    dispatcher,
		healthMonitor: healthMonitor,
		workerPool:    workerPool,
		log:           log,
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  30 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return httpServer, appServer
}

// Dispatcher exposes the event bus so callers can attach observers before
// traffic starts.
func (s *Server) Dispatcher() *events.Dispatcher {
	return s.dispatcher
}

func (s *Server) Shutdown() {
	if s.healthMonitor != nil {
		s.healthMonitor.Stop()
	}
	if s.workerPool != nil {
		s.workerPool.Stop()
	}
	if s.redisService != nil {
		s.redisService.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}
