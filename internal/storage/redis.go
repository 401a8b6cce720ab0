package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type changeMessage struct {
	Key     string `json:"key"`
	Origin  string `json:"origin"`
	Removed bool   `json:"removed,omitempty"`
}

// RedisStore keeps a profile's items in Redis so several machines can share one
// cart. Writes are announced on a per-profile pub/sub channel tagged with the
// writer's origin id. The client is owned by the caller.
type RedisStore struct {
	client  *redis.Client
	profile string
	origin  string
	log     zerolog.Logger
	hub     *hub

	mu     sync.Mutex
	pubsub *redis.PubSub
	closed bool
	wg     sync.WaitGroup
}

func NewRedisStore(client *redis.Client, profile string, log zerolog.Logger) *RedisStore {
	return &RedisStore{
		client:  client,
		profile: profile,
		origin:  uuid.NewString(),
		log:     log.With().Str("component", "redis-storage").Str("profile", profile).Logger(),
		hub:     newHub(),
	}
}

func (r *RedisStore) itemKey(key string) string {
	return fmt.Sprintf("shopsphere:%s:%s", r.profile, key)
}

func (r *RedisStore) channel() string {
	return fmt.Sprintf("shopsphere:%s:changes", r.profile)
}

func (r *RedisStore) GetItem(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.itemKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

func (r *RedisStore) SetItem(ctx context.Context, key, value string) error {
	msg, err := r.message(key, false)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.itemKey(key), value, 0)
		pipe.Publish(ctx, r.channel(), msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) RemoveItem(ctx context.Context, key string) error {
	n, err := r.client.Del(ctx, r.itemKey(key)).Result()
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	if n == 0 {
		return nil
	}
	msg, err := r.message(key, true)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel(), msg).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

func (r *RedisStore) message(key string, removed bool) (string, error) {
	data, err := json.Marshal(changeMessage{Key: key, Origin: r.origin, Removed: removed})
	if err != nil {
		return "", fmt.Errorf("marshal change failed: %w", err)
	}
	return string(data), nil
}

// Watch subscribes to the profile channel on first use.
func (r *RedisStore) Watch(ctx context.Context) (<-chan Change, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if r.pubsub == nil {
		ps := r.client.Subscribe(ctx, r.channel())
		if _, err := ps.Receive(ctx); err != nil {
			r.mu.Unlock()
			ps.Close()
			return nil, fmt.Errorf("redis subscribe failed: %w", err)
		}
		r.pubsub = ps
		r.wg.Add(1)
		go r.receive(ps.Channel())
	}
	r.mu.Unlock()

	return r.hub.subscribe(ctx)
}

func (r *RedisStore) receive(messages <-chan *redis.Message) {
	defer r.wg.Done()
	for m := range messages {
		var msg changeMessage
		if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
			r.log.Warn().Err(err).Msg("malformed change message")
			continue
		}
		if msg.Origin == r.origin {
			continue
		}
		r.hub.publish(Change{Key: msg.Key, Removed: msg.Removed})
	}
}

func (r *RedisStore) Close() error {
	r.mu.Lock()
	ps := r.pubsub
	r.pubsub = nil
	r.closed = true
	r.mu.Unlock()

	var err error
	if ps != nil {
		err = ps.Close()
		r.wg.Wait()
	}
	r.hub.close()
	return err
}
