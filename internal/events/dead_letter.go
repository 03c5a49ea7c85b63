package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"transaction-engine/internal/domain"
)

// RedisDeadLetter keeps unpublished events in Redis keyed by correlation id.
type RedisDeadLetter struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
}

var _ DeadLetter = (*RedisDeadLetter)(nil)

func NewRedisDeadLetter(client *redis.Client, logger *zap.Logger) *RedisDeadLetter {
	return &RedisDeadLetter{client: client, logger: logger, keyPrefix: "unpublished-event"}
}

func (r *RedisDeadLetter) Stash(ctx context.Context, event domain.TransferEvent) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s:%s", r.keyPrefix, event.CorrelationID)
	if err := r.client.Set(ctx, key, jsonData, 0).Err(); err != nil {
		return err
	}

	r.logger.Info("stashed unpublished transfer event", zap.String("key", key))
	return nil
}

// Connect connects to the redis server and returns the client.
func Connect(ctx context.Context, uri, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     uri,
		Password: password,
		DB:       0,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, err
	}
	return rdb, nil
}
