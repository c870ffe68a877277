package whiteboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultBoardTTL = 24 * time.Hour

// RedisStore keeps the stroke log as a redis list and the config as a json
// string, so boards survive a signaling server restart. Every write refreshes
// the expiry of both keys so an active board never loses half of itself.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

func NewRedisStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultBoardTTL
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (r *RedisStore) configKey(classID string) string {
	return fmt.Sprintf("%sboard:%s:config", r.keyPrefix, classID)
}

func (r *RedisStore) strokesKey(classID string) string {
	return fmt.Sprintf("%sboard:%s:strokes", r.keyPrefix, classID)
}

func (r *RedisStore) Get(ctx context.Context, classID string) (*Board, error) {
	board := emptyBoard()

	raw, err := r.client.Get(ctx, r.configKey(classID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("redis: get board config for class %s: %w", classID, err)
	default:
		var config DrawConfig
		if err := json.Unmarshal(raw, &config); err != nil {
			return nil, fmt.Errorf("redis: decode board config for class %s: %w", classID, err)
		}
		board.Config = &config
	}

	strokes, err := r.client.LRange(ctx, r.strokesKey(classID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get strokes for class %s: %w", classID, err)
	}
	for _, s := range strokes {
		var segment Segment
		if err := json.Unmarshal([]byte(s), &segment); err != nil {
			return nil, fmt.Errorf("redis: decode stroke for class %s: %w", classID, err)
		}
		board.Data = append(board.Data, segment)
	}
	return board, nil
}

func (r *RedisStore) SetConfig(ctx context.Context, classID string, config DrawConfig) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.configKey(classID), raw, r.ttl)
		pipe.Expire(ctx, r.strokesKey(classID), r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set board config for class %s: %w", classID, err)
	}
	return nil
}

func (r *RedisStore) Append(ctx context.Context, classID string, segment Segment) error {
	raw, err := json.Marshal(segment)
	if err != nil {
		return err
	}
	key := r.strokesKey(classID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, raw)
		pipe.Expire(ctx, key, r.ttl)
		pipe.Expire(ctx, r.configKey(classID), r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: append stroke for class %s: %w", classID, err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, classID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.strokesKey(classID))
		pipe.Expire(ctx, r.configKey(classID), r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: clear strokes for class %s: %w", classID, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, classID string) error {
	if err := r.client.Del(ctx, r.configKey(classID), r.strokesKey(classID)).Err(); err != nil {
		return fmt.Errorf("redis: delete board for class %s: %w", classID, err)
	}
	return nil
}
