package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"todo_app/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// NewClient builds a Redis client from config. REDIS_URL wins over the
// host/port pieces when both are set.
func NewClient(redisCfg *config.RedisConfig) (*redis.Client, error) {
	if redisCfg.URL != "" {
		opts, err := redis.ParseURL(redisCfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return redis.NewClient(opts), nil
	}

	db, err := strconv.Atoi(redisCfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis DB number: %w", err)
	}

	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", redisCfg.Host, redisCfg.Port),
		Password: redisCfg.RedisPassword,
		DB:       db,
	}), nil
}

func SetupRedis(redisCfg *config.RedisConfig) *redis.Client {
	rdb, err := NewClient(redisCfg)
	if err != nil {
		logrus.Fatalf("Failed to configure Redis: %v", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}

	return rdb
}
