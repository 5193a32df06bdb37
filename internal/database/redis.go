package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fluxori-systems/fluxori-sub001/internal/config"
	"github.com/fluxori-systems/fluxori-sub001/internal/logger"
)

var RedisClient *redis.Client

// InitRedis 初始化Redis连接。Redis承载功能开关与额度余额缓存，
// 不可用时由调用方降级，不阻止服务启动。
func InitRedis() (*redis.Client, error) {
	cfg := config.AppConfig
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	// 启动时探活，连接问题尽早暴露
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	RedisClient = rdb
	logger.Info("Redis connected",
		zap.String("addr", fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port)),
		zap.Int("db", cfg.Redis.DB))
	return rdb, nil
}

// CloseRedis 关闭Redis连接
func CloseRedis() error {
	if RedisClient == nil {
		return nil
	}
	return RedisClient.Close()
}
