package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	availableKeyPrefix = "stock:available:"
	alertKeyPrefix     = "stock:alerted:"

	// availableTTL bounds staleness if a mirror write is ever missed.
	availableTTL = 24 * time.Hour

	// alertDedupTTL is how long a low-stock alert for a key is suppressed.
	alertDedupTTL = time.Hour
)

// RedisAdapter mirrors ledger availability into Redis so read-heavy
// consumers can check stock without hitting the service, and dedupes
// low-stock alerts across sweeps.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func availableKey(productID, warehouseID string) string {
	return fmt.Sprintf("%s%s:%s", availableKeyPrefix, productID, warehouseID)
}

func (r *RedisAdapter) SetAvailable(ctx context.Context, productID, warehouseID string, quantity int) error {
	return r.client.Set(ctx, availableKey(productID, warehouseID), quantity, availableTTL).Err()
}

func (r *RedisAdapter) GetAvailable(ctx context.Context, productID, warehouseID string) (int, bool, error) {
	quantity, err := r.client.Get(ctx, availableKey(productID, warehouseID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return quantity, true, nil
}

// MarkAlerted returns true exactly once per dedup window for a key.
func (r *RedisAdapter) MarkAlerted(ctx context.Context, productID, warehouseID string) (bool, error) {
	key := fmt.Sprintf("%s%s:%s", alertKeyPrefix, productID, warehouseID)
	return r.client.SetNX(ctx, key, 1, alertDedupTTL).Result()
}
