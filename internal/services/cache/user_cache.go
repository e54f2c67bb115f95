package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vedreal/airdrop_backend/internal/models"
)

const (
	keyPrefix = "user:tg:"
	userTTL   = 5 * time.Minute
)

// UserCache — Redis-кэш строк пользователей. Любая ошибка Redis трактуется
// как промах: API работает и с лежащим Redis, просто ходит в базу.
type UserCache struct {
	client *redis.Client
}

func NewUserCache(client *redis.Client) *UserCache {
	return &UserCache{client: client}
}

func (c *UserCache) Get(ctx context.Context, telegramID string) (*models.User, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, keyPrefix+telegramID).Bytes()
	if err != nil {
		return nil, false
	}
	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, false
	}
	return &user, true
}

func (c *UserCache) Set(ctx context.Context, user *models.User) {
	if c == nil || c.client == nil || user == nil {
		return
	}
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+user.TelegramID, data, userTTL).Err(); err != nil {
		log.Printf("❌ Не удалось закэшировать пользователя %s: %v", user.TelegramID, err)
	}
}

func (c *UserCache) Invalidate(ctx context.Context, telegramID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, keyPrefix+telegramID).Err(); err != nil {
		log.Printf("❌ Не удалось сбросить кэш пользователя %s: %v", telegramID, err)
	}
}
