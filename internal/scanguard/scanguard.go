// Package scanguard отсекает повторные считывания одного жетона сканером.
package scanguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCooldown задаёт окно, в течение которого повторный скан того же жетона отклоняется.
const DefaultCooldown = 3 * time.Second

const keyPrefix = "playhouse:scan:"

// RedisGuard хранит отметку о последнем скане жетона в Redis с ограниченным временем жизни.
type RedisGuard struct {
	client   *redis.Client
	cooldown time.Duration
}

// NewRedisGuard создаёт защиту от повторных сканов.
func NewRedisGuard(client *redis.Client, cooldown time.Duration) *RedisGuard {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &RedisGuard{client: client, cooldown: cooldown}
}

// Allow сообщает, можно ли обработать скан жетона. Первый скан в окне cooldown
// возвращает true, все последующие до истечения окна получают false.
func (g *RedisGuard) Allow(ctx context.Context, token string) (bool, error) {
	if g == nil || g.client == nil {
		return false, errors.New("scanguard: redis client not configured")
	}

	ok, err := g.client.SetNX(ctx, keyPrefix+token, time.Now().UnixMilli(), g.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("scanguard: set marker: %w", err)
	}
	return ok, nil
}

// Reset снимает отметку скана, например после неуспешной обработки.
func (g *RedisGuard) Reset(ctx context.Context, token string) error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Del(ctx, keyPrefix+token).Err()
}
