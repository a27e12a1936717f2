package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RTChat/global"
	"RTChat/logger"
	"RTChat/middleware"
	"RTChat/module/admin"
	"RTChat/service/broker"
	"RTChat/service/broker/kafkabroker"
	"RTChat/service/broker/natsbroker"
	"RTChat/service/broker/redisbroker"
	"RTChat/service/chat"
	"RTChat/service/storage"
	"RTChat/service/storage/pg"
	"RTChat/service/storage/sessionlog"
	"RTChat/tools/ids"
	"RTChat/tools/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		logger.Error("gateway exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run() error {
	cfg, err := global.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ids.SetNodeID(cfg.NodeID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := pg.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("membership store: %w", err)
	}
	defer store.Close()

	var audit storage.SessionLogger
	if cfg.MongoURI != "" {
		sink, err := sessionlog.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return fmt.Errorf("session audit sink: %w", err)
		}
		defer func() { _ = sink.Close(context.Background()) }()
		audit = sink
	}

	brk, err := newBroker(cfg)
	if err != nil {
		return fmt.Errorf("broker (%s): %w", cfg.Broker, err)
	}
	defer func() { _ = brk.Close() }()

	jwtOpts := security.DefaultOptions([]byte(cfg.JWTSecret))
	verifier := chat.VerifierFunc(func(token string) (string, error) {
		return security.VerifyUser(jwtOpts, token)
	})

	srv := chat.NewServer(chat.Config{
		GatewayID:      cfg.GatewayID,
		TopicPrefix:    cfg.TopicPrefix,
		SendQueueSize:  cfg.SendQueueSize,
		WriteDeadline:  cfg.WriteDeadline,
		PublishTimeout: cfg.PublishTimeout,
	}, store, verifier, brk, audit)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}
	defer srv.Stop()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.AccessLog(), middleware.CORS())

	r.GET("/ws", srv.HandleWS)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	adminGroup := r.Group("/admin", middleware.BearerAuth(jwtOpts))
	admin.NewHandler(srv).Register(adminGroup)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("gateway_id", cfg.GatewayID),
			zap.String("broker", cfg.Broker))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}

func newBroker(cfg *global.AppConfig) (broker.Broker, error) {
	switch cfg.Broker {
	case "redis":
		return redisbroker.New(redisbroker.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case "nats":
		return natsbroker.New(natsbroker.Config{
			Servers: cfg.NatsServers,
			Name:    cfg.GatewayID,
		})
	case "kafka":
		return kafkabroker.New(kafkabroker.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.GatewayID,
		})
	default:
		return nil, fmt.Errorf("unknown broker %q (use redis, nats or kafka)", cfg.Broker)
	}
}
