package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jobmatch/credits/internal/models"
)

// ErrCacheMiss is returned when no cached balance exists for an account.
var ErrCacheMiss = errors.New("balance not cached")

const balanceKeyPrefix = "credits:balance:"

// BalanceCache holds display-only copies of balances.
type BalanceCache interface {
	Get(ctx context.Context, accountID string) (*models.CachedBalance, error)
	Set(ctx context.Context, balance models.CachedBalance) error
	Invalidate(ctx context.Context, accountID string) error
}

func balanceKey(accountID string) string {
	return balanceKeyPrefix + accountID
}

type RedisBalanceCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisBalanceCache(client *redis.Client, ttl time.Duration) *RedisBalanceCache {
	return &RedisBalanceCache{
		redis: client,
		ttl:   ttl,
	}
}

func (c *RedisBalanceCache) Get(ctx context.Context, accountID string) (*models.CachedBalance, error) {
	data, err := c.redis.Get(ctx, balanceKey(accountID)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get cached balance: %w", err)
	}

	var cached models.CachedBalance
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("decode cached balance: %w", err)
	}
	return &cached, nil
}

func (c *RedisBalanceCache) Set(ctx context.Context, balance models.CachedBalance) error {
	data, err := json.Marshal(balance)
	if err != nil {
		return err
	}
	if err := c.redis.Set(ctx, balanceKey(balance.AccountID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached balance: %w", err)
	}
	return nil
}

func (c *RedisBalanceCache) Invalidate(ctx context.Context, accountID string) error {
	if err := c.redis.Del(ctx, balanceKey(accountID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached balance: %w", err)
	}
	return nil
}

// MemoryBalanceCache is used when Redis is not reachable at startup.
type MemoryBalanceCache struct {
	mu      sync.RWMutex
	entries map[string]memoryBalance
	ttl     time.Duration
	now     func() time.Time
}

type memoryBalance struct {
	balance   models.CachedBalance
	expiresAt time.Time
}

func NewMemoryBalanceCache(ttl time.Duration) *MemoryBalanceCache {
	return &MemoryBalanceCache{
		entries: make(map[string]memoryBalance),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryBalanceCache) Get(_ context.Context, accountID string) (*models.CachedBalance, error) {
	c.mu.RLock()
	entry, ok := c.entries[accountID]
	c.mu.RUnlock()

	if !ok || (c.ttl > 0 && c.now().After(entry.expiresAt)) {
		return nil, ErrCacheMiss
	}
	balance := entry.balance
	return &balance, nil
}

func (c *MemoryBalanceCache) Set(_ context.Context, balance models.CachedBalance) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[balance.AccountID] = memoryBalance{
		balance:   balance,
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

func (c *MemoryBalanceCache) Invalidate(_ context.Context, accountID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, accountID)
	return nil
}
