package database

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/platform/config"
	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 2 * time.Second

// OpenRedis 初始化与Redis的连接，并用Ping命令测试连接是否成功
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("无法连接到Redis: %w", err)
	}

	logger.Success("Redis 连接成功！(%s)", cfg.Address)
	return rdb, nil
}
