package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpServer "OpenCollab/api/http"
	"OpenCollab/internal/config"
	"OpenCollab/internal/initial"
	"OpenCollab/internal/modules/notification"
	"OpenCollab/internal/modules/notification/infrastructure/mq/kafka"
	"OpenCollab/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()
	defer zlog.Sync()
	gin.SetMode(gin.ReleaseMode)

	// 2. 基础设施
	db, err := initial.NewGormDB(conf.MysqlConfig)
	if err != nil {
		zlog.Fatal("mysql init failed", zap.Error(err))
	}
	rdb, err := initial.NewRedisClient(conf.RedisConfig)
	if err != nil {
		zlog.Fatal("redis init failed", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := notification.New(conf.NotificationConfig, db, rdb, reg)
	if err != nil {
		zlog.Fatal("notification module init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 后台任务
	if m.Janitor != nil {
		if err := m.Janitor.Start(conf.NotificationConfig.TokenPurgeSpec); err != nil {
			zlog.Fatal("token janitor start failed", zap.Error(err))
		}
		defer m.Janitor.Stop()
	}
	if len(conf.KafkaConfig.Brokers) > 0 {
		go runDomainEventConsumer(ctx, conf.KafkaConfig, m)
	} else {
		zlog.Info("kafka brokers not configured, domain event listeners disabled")
	}

	// 4. 启动 HTTP 服务
	addr := fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.NewEngine(conf, m, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zlog.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server start failed", zap.Error(err))
		}
	}()

	// 5. 优雅关闭
	<-ctx.Done()
	zlog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server shutdown failed", zap.Error(err))
	}
	for _, c := range m.Hub.Snapshot() {
		c.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	zlog.Info("server stopped")
}

func runDomainEventConsumer(ctx context.Context, conf config.KafkaConfig, m *notification.Module) {
	admin := kafka.TopicAdminConfig{Brokers: conf.Brokers, ClientID: conf.ClientID}
	if err := kafka.EnsureTopic(admin, conf.DomainEventTopic, conf.Partitions, conf.Replication); err != nil {
		zlog.Warn("ensure domain event topic failed", zap.String("topic", conf.DomainEventTopic), zap.Error(err))
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:  conf.Brokers,
		GroupID:  conf.ConsumerGroupID,
		Topics:   []string{conf.DomainEventTopic},
		ClientID: conf.ClientID,
	})
	if err != nil {
		zlog.Error("kafka consumer init failed", zap.Error(err))
		return
	}
	defer consumer.Close()

	zlog.Info("domain event consumer started", zap.String("topic", conf.DomainEventTopic))
	if err := consumer.Run(ctx, m.DomainEvents); err != nil && !errors.Is(err, context.Canceled) {
		zlog.Error("domain event consumer stopped", zap.Error(err))
	}
}
