package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/panelbio/riskserver/pkg/common/logger"
	"github.com/panelbio/riskserver/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// ComparisonCache is a read-through cache for comparison query results. The
// underlying reference data is immutable for the process lifetime, so a TTL
// only bounds memory, not staleness.
type ComparisonCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewComparisonCache(client *redis.Client, ttl time.Duration) *ComparisonCache {
	return &ComparisonCache{client: client, ttl: ttl}
}

// Key derives a stable cache key from the canonicalized request parts. The
// caller passes already-canonical model and disease lists.
func (c *ComparisonCache) Key(base string, addons, diseases []string) string {
	return fmt.Sprintf("comparison:%s:%s:%s", base, strings.Join(addons, ","), strings.Join(diseases, ","))
}

func (c *ComparisonCache) Get(ctx context.Context, key string) (*models.ComparisonResponse, bool) {
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.WithError(err).WithField("key", key).Debug("Comparison cache read failed")
		}
		return nil, false
	}
	var resp models.ComparisonResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("Dropping undecodable comparison cache entry")
		return nil, false
	}
	return &resp, true
}

func (c *ComparisonCache) Set(ctx context.Context, key string, resp *models.ComparisonResponse) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to marshal comparison response for cache")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).WithField("key", key).Debug("Comparison cache write failed")
	}
}
