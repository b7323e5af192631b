package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultIOTimeout   = 3 * time.Second
)

// Config holds Redis connection configuration. Zero timeouts take the
// package defaults.
type Config struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	PoolSize    int
	MinIdleConn int
	DialTimeout time.Duration
	IOTimeout   time.Duration
}

func (c Config) options() *redis.Options {
	dial, io := c.DialTimeout, c.IOTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}
	if io <= 0 {
		io = defaultIOTimeout
	}
	return &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		MaxRetries:   c.MaxRetries,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConn,
		DialTimeout:  dial,
		ReadTimeout:  io,
		WriteTimeout: io,
		PoolTimeout:  io + time.Second,
	}
}

// Client is the shared connection pool behind the user cache, the rate
// limiter and the readiness probe.
type Client struct {
	*redis.Client
	log *zap.Logger
}

// NewClient opens the pool and pings it once. An unreachable server is an
// error so that a misconfigured deployment fails at startup.
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	opts := cfg.options()
	c := &Client{Client: redis.NewClient(opts), log: log}

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	if err := c.Check(pingCtx); err != nil {
		_ = c.Client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	log.Info("redis connected",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.Int("pool_size", opts.PoolSize),
	)
	return c, nil
}

// Check pings the server.
func (c *Client) Check(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Close releases the pool, logging its lifetime counters.
func (c *Client) Close() error {
	st := c.PoolStats()
	c.log.Info("closing redis connection",
		zap.Uint32("hits", st.Hits),
		zap.Uint32("misses", st.Misses),
		zap.Uint32("timeouts", st.Timeouts),
		zap.Uint32("total_conns", st.TotalConns),
	)
	return c.Client.Close()
}
