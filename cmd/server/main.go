package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/holydev/shopsphere/internal/broker"
	"github.com/holydev/shopsphere/internal/config"
	"github.com/holydev/shopsphere/internal/logger"
	"github.com/holydev/shopsphere/internal/model"
	"github.com/holydev/shopsphere/internal/payment"
	"github.com/holydev/shopsphere/internal/repo"
	"github.com/holydev/shopsphere/internal/saga"
	"github.com/holydev/shopsphere/internal/service"
	httptransport "github.com/holydev/shopsphere/internal/transport/http"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(
		&model.User{}, &model.Product{}, &model.Inventory{},
		&model.CartItem{}, &model.Order{}, &model.OrderItem{},
		&model.Review{}, &model.OutboxEvent{}, &model.ProcessedEvent{},
	); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 5. kafka: writer for outbox writes, consumer group for the saga
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	defer kw.Close()
	bus := broker.NewKafkaBroker(kw)

	kr := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer kr.Close()
	consumer := broker.NewKafkaConsumer(kr, log)

	// 6. repo, services, saga
	repository := repo.NewRepository(gdb, rdb, bus, log)

	limit, err := decimal.NewFromString(cfg.Payment.ChargeLimit)
	if err != nil {
		log.Fatalf("parse payment charge_limit: %v", err)
	}
	gateway := payment.NewSimulator(limit, log)
	orchestrator := saga.NewOrchestrator(repository, bus, gateway, log)
	orchestrator.Register(consumer)

	go func() {
		if err := consumer.Run(context.Background()); err != nil {
			log.Fatalf("saga consumer: %v", err)
		}
	}()

	svc := httptransport.Services{
		Orders:   service.NewOrderService(repository, log),
		Users:    service.NewUserService(repository, log),
		Products: service.NewProductService(repository, log),
		Carts:    service.NewCartService(repository, log),
		Reviews:  service.NewReviewService(repository, log),
	}

	// 7. gin router
	router := httptransport.NewRouter(svc, cfg.RateLimit, log)

	// 8. serve
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("shopsphere-server listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
