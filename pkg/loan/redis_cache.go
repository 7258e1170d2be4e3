package loan

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"loanwatch.io/pkg/price"
)

const (
	redisLastPriceKey  = "loanwatch:last_price"
	redisAlertClaimTTL = 48 * time.Hour
)

// RedisCache gives the dashboard and any secondary process a fast,
// cross-process read of the last price, and gives the alert engine an
// atomic claim primitive so a trigger is only acted on once even if two
// goroutines race to process the same update. Grounded on the teacher's
// RedisSubscriptionManager (pkg/alert/redis_manager.go), which uses the
// same client for a JSON detail blob plus SETNX-based once-only gating.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client so the caller controls pooling
// and connection options.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// SetLastPrice caches update as JSON with no expiry; it is overwritten
// on every oracle tick.
func (c *RedisCache) SetLastPrice(ctx context.Context, update price.Update) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisLastPriceKey, data, 0).Err()
}

// GetLastPrice returns the cached price, if any.
func (c *RedisCache) GetLastPrice(ctx context.Context) (price.Update, bool) {
	data, err := c.client.Get(ctx, redisLastPriceKey).Bytes()
	if err != nil {
		return price.Update{}, false
	}
	var update price.Update
	if err := json.Unmarshal(data, &update); err != nil {
		return price.Update{}, false
	}
	return update, true
}

// claimKey namespaces an alert's one-shot claim record.
func claimKey(alertID string) string {
	return "loanwatch:alert:claimed:" + alertID
}

// ClaimTrigger atomically claims alertID for firing, returning true the
// first time it is called for a given ID and false on every subsequent
// call (including across process restarts, within redisAlertClaimTTL).
// It is a belt-and-suspenders guard alongside Store's triggered flag:
// the flag is the system of record, this just protects the narrow
// window between the crossing check and the flag write under
// concurrent delivery.
func (c *RedisCache) ClaimTrigger(ctx context.Context, alertID string) (bool, error) {
	ok, err := c.client.SetNX(ctx, claimKey(alertID), "1", redisAlertClaimTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
