package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/appointment-lifecycle/internal/ringlog"
)

const notificationLogKey = "notifications:log"

func notificationKey(id string) string {
	return "notification:" + id
}

// RedisRepository stores each notification as a JSON string and keeps a
// capped list of ids, newest at the head. Ids trimmed off the tail have
// their values deleted.
type RedisRepository struct {
	rdb      *redis.Client
	capacity int64
	logger   *slog.Logger
}

func NewRedisRepository(rdb *redis.Client, logger *slog.Logger) *RedisRepository {
	return &RedisRepository{
		rdb:      rdb,
		capacity: ringlog.DefaultCapacity,
		logger:   logger,
	}
}

func (r *RedisRepository) CreateNotification(ctx context.Context, n Notification) (*Notification, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}

	var overflow *redis.StringSliceCmd
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, notificationKey(n.ID), data, 0)
		pipe.LPush(ctx, notificationLogKey, n.ID)
		overflow = pipe.LRange(ctx, notificationLogKey, r.capacity, -1)
		pipe.LTrim(ctx, notificationLogKey, 0, r.capacity-1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}

	if evicted := overflow.Val(); len(evicted) > 0 {
		keys := make([]string, len(evicted))
		for i, id := range evicted {
			keys[i] = notificationKey(id)
		}
		// the id is already out of the log, a stale value is unreachable
		// through ListNotifications
		if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
			r.logger.Warn("failed to delete evicted notifications", "count", len(keys), "error", err)
		}
	}

	out := n.clone()
	return &out, nil
}

func (r *RedisRepository) GetNotificationByID(ctx context.Context, id string) (*Notification, error) {
	data, err := r.rdb.Get(ctx, notificationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}

	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode notification %s: %w", id, err)
	}
	return &n, nil
}

func (r *RedisRepository) ListNotifications(ctx context.Context, f Filter) ([]Notification, error) {
	ids, err := r.rdb.LRange(ctx, notificationLogKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read notification log: %w", err)
	}
	result := []Notification{}
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = notificationKey(id)
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}

	// the log is newest first
	for i := len(values) - 1; i >= 0; i-- {
		raw, ok := values[i].(string)
		if !ok {
			continue
		}
		var n Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			r.logger.Warn("skipping undecodable notification", "id", ids[i], "error", err)
			continue
		}
		if f.Matches(n) {
			result = append(result, n)
		}
	}
	return result, nil
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
