package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	roomKeyPrefix = "classroom:room:"
	connKeyPrefix = "classroom:conn:"
	maxTxRetries  = 8
)

// RedisStore shares room state between server instances. Each room is a JSON document and each
// connection has a reverse key; both carry a TTL so a crashed instance cannot pin rooms forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. ttl <= 0 disables expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func roomKey(roomID string) string { return roomKeyPrefix + roomID }
func connKey(connID string) string { return connKeyPrefix + connID }

func (s *RedisStore) Room(ctx context.Context, roomID string) (*Room, error) {
	return loadRoom(ctx, s.client, roomID)
}

func (s *RedisStore) Membership(ctx context.Context, connID string) (*Membership, error) {
	b, err := s.client.Get(ctx, connKey(connID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	var m Membership
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode membership: %w", err)
	}
	return &m, nil
}

// Mutate runs fn inside a WATCH/MULTI transaction on the room key and retries when another
// instance changed the room concurrently.
func (s *RedisStore) Mutate(ctx context.Context, roomID string, fn func(room *Room) error) error {
	key := roomKey(roomID)
	txf := func(tx *redis.Tx) error {
		before, err := loadRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		work := &Room{ID: roomID}
		if before != nil {
			work = before.clone()
		}
		if err := fn(work); err != nil {
			return err
		}

		_, removed := diffMembers(before, work)
		var roomBody []byte
		members := make(map[string][]byte, len(work.Participants))
		if len(work.Participants) > 0 {
			if roomBody, err = json.Marshal(work); err != nil {
				return fmt.Errorf("encode room: %w", err)
			}
			for _, p := range work.Participants {
				b, err := json.Marshal(Membership{ConnID: p.ID, RoomID: roomID, DisplayName: p.DisplayName})
				if err != nil {
					return fmt.Errorf("encode membership: %w", err)
				}
				members[p.ID] = b
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, id := range removed {
				pipe.Del(ctx, connKey(id))
			}
			if roomBody == nil {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, roomBody, s.ttl)
			// Refresh every reverse key so they expire together with the room.
			for id, b := range members {
				pipe.Set(ctx, connKey(id), b, s.ttl)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func loadRoom(ctx context.Context, c stringGetter, roomID string) (*Room, error) {
	b, err := c.Get(ctx, roomKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	var r Room
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	return &r, nil
}
