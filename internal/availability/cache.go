package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"branchbooker/internal/models"
	"branchbooker/internal/timeutil"
)

// Cache stores week availability keyed by branch and week start.
type Cache interface {
	Get(ctx context.Context, key string) (models.WeekAvailability, bool, error)
	Set(ctx context.Context, key string, week models.WeekAvailability, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(redisAddr string) (*RedisCache, error) {
	const op = "availability.NewRedisCache"

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisCache{client: client}, nil
}

type cachedSlot struct {
	Start  timeutil.Minutes  `json:"start"`
	End    timeutil.Minutes  `json:"end"`
	Status models.SlotStatus `json:"status"`
}

func (r *RedisCache) Get(ctx context.Context, key string) (models.WeekAvailability, bool, error) {
	const op = "availability.RedisCache.Get"

	raw, err := r.client.Get(ctx, cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	var stored map[string][]cachedSlot
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	week := make(models.WeekAvailability, len(stored))
	for date, slots := range stored {
		out := make([]models.Timeslot, 0, len(slots))
		for _, s := range slots {
			out = append(out, models.Timeslot{Start: s.Start, End: s.End, Status: s.Status})
		}
		week[date] = out
	}

	return week, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, week models.WeekAvailability, ttl time.Duration) error {
	const op = "availability.RedisCache.Set"

	stored := make(map[string][]cachedSlot, len(week))
	for date, slots := range week {
		out := make([]cachedSlot, 0, len(slots))
		for _, s := range slots {
			out = append(out, cachedSlot{Start: s.Start, End: s.End, Status: s.Status})
		}
		stored[date] = out
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.client.Set(ctx, cacheKey(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisCache) Del(ctx context.Context, key string) error {
	const op = "availability.RedisCache.Del"

	if err := r.client.Del(ctx, cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func cacheKey(key string) string {
	return fmt.Sprintf("avail:%s", key)
}
