package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"binarymlm/internal/metrics"
	"binarymlm/internal/models"
)

// Redis shares wallet snapshots between processes. Redis failures degrade to
// reading through the loader.
type Redis struct {
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	metrics *metrics.Collectors
	gens    *generations
}

func NewRedis(client *redis.Client, ttl time.Duration, m *metrics.Collectors) *Redis {
	return &Redis{
		client:  client,
		ttl:     ttl,
		prefix:  "wallet:",
		metrics: m,
		gens:    newGenerations(),
	}
}

func (c *Redis) key(userID uint) string {
	return fmt.Sprintf("%s%d", c.prefix, userID)
}

func (c *Redis) Fetch(ctx context.Context, userID uint, load Loader) (*models.Wallet, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	switch {
	case err == nil:
		var w models.Wallet
		if err := json.Unmarshal(data, &w); err == nil {
			c.metrics.ObserveCacheLookup(true)
			return &w, nil
		}
		log.Warn().Uint("user_id", userID).Msg("discarding undecodable cached wallet")
	case errors.Is(err, redis.Nil):
	default:
		log.Warn().Err(err).Uint("user_id", userID).Msg("wallet cache read failed")
	}
	c.metrics.ObserveCacheLookup(false)

	gen := c.gens.current(userID)
	w, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if c.gens.current(userID) != gen {
		return w, nil
	}

	data, err = json.Marshal(w)
	if err != nil {
		return w, nil
	}
	if err := c.client.Set(ctx, c.key(userID), data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Msg("wallet cache write failed")
		return w, nil
	}
	// An invalidation may have landed between the check and the write.
	if c.gens.current(userID) != gen {
		c.client.Del(context.WithoutCancel(ctx), c.key(userID))
	}
	return w, nil
}

func (c *Redis) Invalidate(ctx context.Context, userIDs ...uint) {
	if len(userIDs) == 0 {
		return
	}
	c.gens.bump(userIDs...)
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, c.key(id))
	}
	if err := c.client.Del(context.WithoutCancel(ctx), keys...).Err(); err != nil {
		log.Error().Err(err).Uints("users", userIDs).Msg("wallet cache invalidation failed")
	}
}
