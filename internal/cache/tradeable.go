package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	tradeablePrefix = "slotswap:tradeable"
	generationKey   = tradeablePrefix + ":gen"
)

// TradeableCache хранит витрину tradeable слотов в Redis с коротким TTL.
// Витрина лежит под ключом текущего поколения; Invalidate увеличивает поколение,
// поэтому запись, начатая до сброса, уходит в ключ, который больше никто не читает.
type TradeableCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewTradeableCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *TradeableCache {
	return &TradeableCache{rdb: rdb, ttl: ttl, logger: logger}
}

// Connect поднимает клиента Redis. Пустой адрес означает что кэш выключен.
func Connect(ctx context.Context, addr string, logger *zap.Logger) (*redis.Client, error) {
	if addr == "" {
		logger.Warn("REDIS_ADDR is not set, tradeable cache disabled")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	logger.Info("Connected to Redis", zap.String("addr", addr))
	return rdb, nil
}

func entryKey(gen int64) string {
	return fmt.Sprintf("%s:%d", tradeablePrefix, gen)
}

// Generation текущее поколение витрины; 0 пока не было ни одного сброса
func (c *TradeableCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

// Get возвращает витрину поколения gen; ok=false при промахе
func (c *TradeableCache) Get(ctx context.Context, gen int64) ([]*model.Slot, bool, error) {
	data, err := c.rdb.Get(ctx, entryKey(gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var slots []*model.Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		c.logger.Warn("Dropping malformed tradeable cache entry", zap.Int64("generation", gen), zap.Error(err))
		return nil, false, nil
	}
	return slots, true, nil
}

// Set кладёт витрину под поколением gen
func (c *TradeableCache) Set(ctx context.Context, gen int64, slots []*model.Slot) error {
	if slots == nil {
		slots = []*model.Slot{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("marshal tradeable slots: %w", err)
	}
	if err := c.rdb.Set(ctx, entryKey(gen), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate сбрасывает витрину переходом на новое поколение
func (c *TradeableCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("redis incr generation: %w", err)
	}
	return nil
}
