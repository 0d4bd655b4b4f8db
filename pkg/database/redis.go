package database

import (
	"context"
	"mangrat-go/internal/config"
	"mangrat-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// RDB 为 nil 表示未配置 Redis，依赖它的功能会自动降级。
var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接
func InitRedis(cfg config.RedisConfig) {
	if cfg.Addr == "" {
		log.Info("Redis 未配置，统计与 Kafka 重试计数将被禁用")
		return
	}
	RDB = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	if err := RDB.Ping(context.Background()).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
}
