package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// RateLimitConfig содержит настройки rate limiting
type RateLimitConfig struct {
	// MaxRequests — максимальное количество запросов за Window
	MaxRequests int
	// Window — временное окно для подсчёта запросов
	Window time.Duration
	// KeyPrefix — префикс для ключей в Redis
	KeyPrefix string
}

// StrictAuthRateLimitConfig — строгий лимит для login/register (защита от brute-force)
func StrictAuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 5,
		Window:      1 * time.Minute,
		KeyPrefix:   "rl:auth:strict",
	}
}

// CreateChallengeRateLimitConfig — лимит на создание челленджей: защищает от
// спама invite-кодами и холостых вставок в пул
func CreateChallengeRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 10,
		Window:      1 * time.Minute,
		KeyPrefix:   "rl:challenge:create",
	}
}

// MutateChallengeRateLimitConfig — общий лимит на мутации жизненного цикла
// (accept/start/score/rematch/delete). Реванш, в частности, создаёт
// спекулятивную строку на каждый вызов, поэтому мутации не могут быть безлимитными.
func MutateChallengeRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 30,
		Window:      1 * time.Minute,
		KeyPrefix:   "rl:challenge:mutate",
	}
}

// limitStore — минимальный срез Redis-команд, нужный лимитеру.
// В тестах подменяется счётчиком в памяти.
type limitStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, window time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// redisLimitStore адаптирует go-redis клиент к limitStore
type redisLimitStore struct {
	client redis.UniversalClient
}

func (s redisLimitStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s redisLimitStore) Expire(ctx context.Context, key string, window time.Duration) error {
	return s.client.Expire(ctx, key, window).Err()
}

func (s redisLimitStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.client.TTL(ctx, key).Result()
}

// RateLimiter создаёт middleware для rate limiting на основе Redis
type RateLimiter struct {
	store limitStore
}

// NewRateLimiter создает новый RateLimiter
func NewRateLimiter(redisClient redis.UniversalClient) *RateLimiter {
	return &RateLimiter{store: redisLimitStore{client: redisClient}}
}

// LimitByIP ограничивает количество запросов по IP + route path
func (rl *RateLimiter) LimitByIP(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := fmt.Sprintf("%s:%s:%s", cfg.KeyPrefix, c.ClientIP(), path)
		rl.applyLimit(c, cfg, key)
	}
}

// LimitByUser ограничивает запросы по аутентифицированному пользователю.
// Должен применяться после RequireAuth; без user_id в контексте откатывается к IP.
func (rl *RateLimiter) LimitByUser(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var key string
		if userID, exists := c.Get("user_id"); exists {
			key = fmt.Sprintf("%s:u:%d", cfg.KeyPrefix, userID.(uint))
		} else {
			key = fmt.Sprintf("%s:ip:%s", cfg.KeyPrefix, c.ClientIP())
		}
		rl.applyLimit(c, cfg, key)
	}
}

// applyLimit — общая логика: INCR + EXPIRE на первом запросе окна.
// При недоступном Redis запрос пропускается (fail-open).
func (rl *RateLimiter) applyLimit(c *gin.Context, cfg RateLimitConfig, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := rl.store.Incr(ctx, key)
	if err != nil {
		log.Printf("[RateLimiter] Redis error for key %s: %v. Allowing request (fail-open).", key, err)
		c.Next()
		return
	}

	// Первый запрос в окне — устанавливаем TTL
	if count == 1 {
		if err := rl.store.Expire(ctx, key, cfg.Window); err != nil {
			log.Printf("[RateLimiter] Failed to set TTL for key %s: %v", key, err)
		}
	}

	remaining := cfg.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	ttl, _ := rl.store.TTL(ctx, key)
	retryAfter := int(ttl.Seconds())
	if retryAfter < 0 {
		retryAfter = int(cfg.Window.Seconds())
	}

	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.MaxRequests))
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
	c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", retryAfter))

	if int(count) > cfg.MaxRequests {
		log.Printf("[RateLimiter] Rate limit exceeded for key=%s. Count=%d, Limit=%d", key, count, cfg.MaxRequests)
		c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "Too many requests. Please try again later.",
			"error_type":  "rate_limited",
			"retry_after": retryAfter,
		})
		return
	}

	c.Next()
}
