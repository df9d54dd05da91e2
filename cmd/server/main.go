package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cosrent/internal/config"
	"cosrent/internal/model"
	"cosrent/internal/queue"
	"cosrent/internal/router"
	"cosrent/internal/service"
	"cosrent/pkg/logging"
)

func main() {
	// 1. Configuration: .env is optional, env vars win.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.MustNewLogger("cosrent-api", cfg.Env)
	defer logger.Sync()

	// 2. SQLite + schema migration.
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.Comment{},
		&model.EventLog{},
	); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	// 3. Redis backs the rate limiter, callback dedup, payment state cache and
	// the event outbox stream.
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})

	outbox := queue.NewOutbox(rdb, cfg.OrderEventStream, logger)

	// 4. Services.
	orders := service.NewOrderService(db, logger, outbox)
	payments := service.NewPaymentService(db, logger, orders, cfg.Payment, rdb, cfg.PaymentStateTTL, outbox)
	comments := service.NewCommentService(db, logger)

	// 5. HTTP.
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	router.Setup(r, router.Deps{
		DB:       db,
		Redis:    rdb,
		Orders:   orders,
		Payments: payments,
		Comments: comments,
		Log:      logger,
	}, cfg)

	logger.Info("server starting", zap.String("addr", cfg.HTTPAddr))
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
