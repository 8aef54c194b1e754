package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL  = 5 * time.Minute
	redisDialTimeout = 3 * time.Second
	redisOpTimeout   = time.Second
	redisPingTimeout = 5 * time.Second
)

// dialRedis connects and pings. Forecast reads fall back to computing on a
// cache error, so operation timeouts are kept short.
func dialRedis(cfg config.CacheConfig) (*redis.Client, time.Duration, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, 0, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, 0, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	return client, forecastTTL(cfg), nil
}

func forecastTTL(cfg config.CacheConfig) time.Duration {
	if cfg.ForecastTTLSeconds <= 0 {
		return defaultCacheTTL
	}
	return time.Duration(cfg.ForecastTTLSeconds) * time.Second
}

func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.RedisURL != "" {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		host, port := cfg.RedisHost, cfg.RedisPort
		if host == "" {
			host = "127.0.0.1"
		}
		if port == "" {
			port = "6379"
		}
		opts = &redis.Options{
			Addr:     net.JoinHostPort(host, port),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}

	opts.DialTimeout = redisDialTimeout
	opts.ReadTimeout = redisOpTimeout
	opts.WriteTimeout = redisOpTimeout
	return opts, nil
}

// unlinkPrefixes removes every key under the given prefixes. Matches are
// collected with SCAN and unlinked in pipelined batches.
func unlinkPrefixes(ctx context.Context, client *redis.Client, batch int64, prefixes ...string) error {
	for _, prefix := range prefixes {
		iter := client.Scan(ctx, 0, prefix+"*", batch).Iterator()
		keys := make([]string, 0, batch)
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
			if int64(len(keys)) >= batch {
				if err := unlinkBatch(ctx, client, keys); err != nil {
					return err
				}
				keys = keys[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("redis scan %s: %w", prefix, err)
		}
		if err := unlinkBatch(ctx, client, keys); err != nil {
			return err
		}
	}
	return nil
}

func unlinkBatch(ctx context.Context, client *redis.Client, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Unlink(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis unlink: %w", err)
	}
	return nil
}
