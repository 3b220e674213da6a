package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bag-service/config"
	"bag-service/internal/api"
	"bag-service/internal/broker"
	"bag-service/internal/catalog"
	"bag-service/internal/order"
	"bag-service/internal/promo"
	"bag-service/internal/redisclient"
	"bag-service/internal/service"
	"bag-service/internal/store"
	"bag-service/internal/util"
	"bag-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting bag service")

	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint, cfg.Observ.TraceSampleRatio)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				log.Printf("Error shutting down tracer: %v", err)
			}
		}()
	}

	backend, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to open %s storage: %v", cfg.Storage.Backend, err)
	}
	defer backend.Close()
	logger.Info("Storage ready", zap.String("backend", cfg.Storage.Backend))

	artworks, err := catalog.Load(cfg.Bag.CatalogPath)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	logger.Info("Catalog loaded", zap.Int("artworks", artworks.Len()))

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var publisher service.EventPublisher = broker.NopPublisher{}
	var receiptWorker *worker.ReceiptWorker
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		log.Println("Kafka producer initialized")

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		receiptWorker = worker.NewReceiptWorker(consumer, store.WithPrefix(backend, "receipts:"))
		go func() {
			if err := receiptWorker.Start(workerCtx); err != nil && err != context.Canceled {
				log.Printf("Receipt worker error: %v", err)
			}
		}()
	}

	hub := api.NewHub(cfg.Server.AllowedOrigins)
	sessions := service.NewManager(backend, service.Config{
		Catalog:         artworks,
		Promos:          promo.NewDefaultEngine(promo.WithCapAtSubtotal(cfg.Bag.CapPromoAtSubtotal)),
		Publisher:       publisher,
		Notifier:        hub,
		ConvenienceFee:  cfg.Bag.ConvenienceFee,
		Currency:        cfg.Bag.Currency,
		AllowDuplicates: cfg.Bag.AllowDuplicates,
		OrderOptions: []order.Option{
			order.WithDelay(cfg.Bag.OrderDelay),
			order.WithDeliveryDays(cfg.Bag.DeliveryDays),
		},
	}, service.WithIdleTimeout(cfg.Session.IdleTimeout))
	if cfg.Session.IdleTimeout > 0 {
		go sessions.Run(workerCtx, cfg.Session.ReapInterval)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(sessions, artworks, hub, backend)
	handler.SetupRoutes(router, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	sessions.CloseAll()

	workerCancel()
	if receiptWorker != nil {
		if err := receiptWorker.Stop(); err != nil {
			log.Printf("Error stopping receipt worker: %v", err)
		}
	}

	log.Println("Server exited")
}

func openStorage(cfg *config.Config) (store.Storage, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return store.NewMemory(), nil
	case config.BackendBolt:
		return store.NewBolt(cfg.Storage.BoltPath)
	case config.BackendRedis:
		return redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	case config.BackendPostgres:
		return store.NewPostgres(cfg.Storage.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
