package middleware

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"user-crud-service/pkg/logger"
)

const (
	keyPrefix     = "ratelimit:tb:"
	minBucketTTL  = 60 // seconds
	tokensPerCall = 1
)

// tokenBucket refills at ARGV[1] tokens per second up to ARGV[2] and tries to
// take ARGV[4] tokens. ARGV[3] is the caller's clock in fractional seconds.
// Returns 1 when the tokens were taken, 0 otherwise.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local bucket = redis.call('HMGET', key, 'last_refill', 'tokens')
local last_refill = tonumber(bucket[1]) or now
local tokens = tonumber(bucket[2]) or capacity

local elapsed = math.max(0, now - last_refill)
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
if tokens >= requested then
	tokens = tokens - requested
	allowed = 1
end

redis.call('HSET', key, 'last_refill', tostring(now), 'tokens', tostring(tokens))
redis.call('EXPIRE', key, ttl)
return allowed
`)

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	RequestsPerSecond float64 // Bucket refill rate
	BurstCapacity     int     // Bucket size
	Enabled           bool
}

// RateLimiter is a Redis backed token bucket shared by the gRPC and HTTP
// transports. Redis errors fail open.
type RateLimiter struct {
	client *redis.Client
	config RateLimiterConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(client *redis.Client, config RateLimiterConfig, log *zap.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
		log:    log,
		now:    time.Now,
	}
}

// Enabled reports whether requests are being limited at all.
func (rl *RateLimiter) Enabled() bool {
	return rl != nil && rl.config.Enabled && rl.client != nil
}

// Allow takes one token from the bucket identified by key.
// It reports true when the request may proceed.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if !rl.Enabled() {
		return true, nil
	}

	t := rl.now()
	now := float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)

	allowed, err := tokenBucket.Run(ctx, rl.client, []string{keyPrefix + key},
		rl.config.RequestsPerSecond,
		rl.config.BurstCapacity,
		now,
		tokensPerCall,
		rl.bucketTTL(),
	).Int64()
	if err != nil {
		logger.WithContext(ctx, rl.log).Warn("rate limiter redis error, allowing request",
			zap.String("key", key),
			zap.Error(err),
		)
		return true, err
	}

	if allowed == 0 {
		logger.WithContext(ctx, rl.log).Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Float64("limit", rl.config.RequestsPerSecond),
			zap.Int("burst", rl.config.BurstCapacity),
		)
		return false, nil
	}

	return true, nil
}

// Describe renders the configured limit for error messages.
func (rl *RateLimiter) Describe() string {
	return fmt.Sprintf("%.2f requests/second (burst capacity: %d)", rl.config.RequestsPerSecond, rl.config.BurstCapacity)
}

// bucketTTL keeps an idle bucket around at least until it would have refilled.
func (rl *RateLimiter) bucketTTL() int {
	refill := math.Ceil(float64(rl.config.BurstCapacity) / rl.config.RequestsPerSecond)
	if math.IsInf(refill, 0) || math.IsNaN(refill) || refill < minBucketTTL {
		return minBucketTTL
	}
	if refill > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(refill)
}

// UnaryInterceptor returns a gRPC unary interceptor for rate limiting.
func (rl *RateLimiter) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if !rl.Enabled() {
			return handler(ctx, req)
		}

		key := fmt.Sprintf("grpc:%s:%s", info.FullMethod, clientIP(ctx))

		allowed, _ := rl.Allow(ctx, key)
		if !allowed {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded: %s", rl.Describe())
		}

		return handler(ctx, req)
	}
}

// clientIP extracts the client IP address from the gRPC context.
func clientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if xff := md.Get("x-forwarded-for"); len(xff) > 0 {
			return xff[0]
		}
		if xri := md.Get("x-real-ip"); len(xri) > 0 {
			return xri[0]
		}
	}

	if p, ok := peer.FromContext(ctx); ok {
		return p.Addr.String()
	}

	return "unknown"
}
