package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisChannel = "reconline:realtime"

// redisMessage is the wire format fanned out between processes.
type redisMessage struct {
	Origin  string                 `json:"origin"`
	Path    string                 `json:"path"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
	Deleted bool                   `json:"deleted,omitempty"`
}

// RedisStore is the cross-process variant of the Hub: local subscriptions are
// served by an embedded Hub, and writes are fanned out over Redis pub/sub so
// every process converges on the same state.
type RedisStore struct {
	hub    *Hub
	rdb    *redis.Client
	origin string
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore starts the fanout subscriber and returns the store. Close
// must be called to stop it.
func NewRedisStore(rdb *redis.Client, hub *Hub) (*RedisStore, error) {
	ctx, cancel := context.WithCancel(context.Background())

	sub := rdb.Subscribe(ctx, redisChannel)
	// force the subscription to be established before any write fans out
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		return nil, errors.Wrap(err, "subscribing to realtime channel")
	}

	s := &RedisStore{
		hub:    hub,
		rdb:    rdb,
		origin: uuid.New().String(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				s.apply(msg.Payload)
			}
		}
	}()

	return s, nil
}

func (s *RedisStore) apply(payload string) {
	var m redisMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return
	}
	if m.Origin == s.origin {
		// already applied locally on publish
		return
	}
	if m.Deleted {
		_ = s.hub.Delete(m.Path)
		return
	}
	_ = s.hub.Set(m.Path, m.Fields)
}

// Set applies the write locally and fans it out to the other processes.
func (s *RedisStore) Set(ctx context.Context, path string, fields map[string]interface{}) error {
	if err := s.hub.Set(path, fields); err != nil {
		return err
	}
	return s.publish(ctx, redisMessage{Origin: s.origin, Path: path, Fields: fields})
}

// Delete removes the document locally and fans the removal out.
func (s *RedisStore) Delete(ctx context.Context, path string) error {
	if err := s.hub.Delete(path); err != nil {
		return err
	}
	return s.publish(ctx, redisMessage{Origin: s.origin, Path: path, Deleted: true})
}

func (s *RedisStore) publish(ctx context.Context, m redisMessage) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encoding realtime message")
	}
	if err := s.rdb.Publish(ctx, redisChannel, payload).Err(); err != nil {
		return errors.Wrap(err, "publishing realtime message")
	}
	return nil
}

func (s *RedisStore) WatchDoc(ref DocRef, fn func(DocEvent)) Unsubscribe {
	return s.hub.WatchDoc(ref, fn)
}

func (s *RedisStore) WatchQuery(q Query, fn func(QueryEvent)) Unsubscribe {
	return s.hub.WatchQuery(q, fn)
}

// Close stops the fanout subscriber and waits for it to drain.
func (s *RedisStore) Close() error {
	s.cancel()
	<-s.done
	return nil
}
