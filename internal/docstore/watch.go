package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	redis "github.com/redis/go-redis/v9"
)

// watchBuffer is the per-subscription event buffer. A subscriber that stalls
// longer than this loses its subscription rather than blocking the pump.
const watchBuffer = 64

// Watch subscribes to changes of a single document. The current snapshot (if
// the document exists) is delivered first, followed by every committed write
// and a tombstone on deletion. The returned cancel function tears the
// subscription down synchronously and is safe to call more than once.
func (s *RedisStore) Watch(ctx context.Context, collection, id string) (<-chan Event, func(), error) {
	ps := s.rdb.Subscribe(ctx, docChannel(collection, id))
	// Confirm the subscription before reading the initial snapshot so no
	// write can slip between the read and the stream.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("docstore watch %s/%s: %w", collection, id, err)
	}

	var initial *Event
	data, err := s.rdb.Get(ctx, docKey(collection, id)).Bytes()
	if err == nil {
		initial = &Event{Collection: collection, ID: id, Data: data}
	} else if !errors.Is(err, redis.Nil) {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("docstore watch %s/%s: %w", collection, id, err)
	}

	return s.pump(ctx, ps, initial)
}

// WatchCollection subscribes to every committed write in a collection.
// No initial snapshot is delivered; callers that need current state should
// Query after the subscription is established.
func (s *RedisStore) WatchCollection(ctx context.Context, collection string) (<-chan Event, func(), error) {
	ps := s.rdb.Subscribe(ctx, collectionChannel(collection))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("docstore watch collection %s: %w", collection, err)
	}
	return s.pump(ctx, ps, nil)
}

// pump forwards pubsub messages to an event channel until the subscription is
// closed or the context ends.
func (s *RedisStore) pump(ctx context.Context, ps *redis.PubSub, initial *Event) (<-chan Event, func(), error) {
	events := make(chan Event, watchBuffer)
	stop := make(chan struct{})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			// stop unblocks a pump parked on a full events buffer;
			// closing ps ends ps.Channel() for the normal path.
			close(stop)
			_ = ps.Close()
		})
	}

	go func() {
		defer close(events)
		if initial != nil {
			select {
			case events <- *initial:
			case <-stop:
				return
			case <-ctx.Done():
				cancel()
				return
			}
		}
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			select {
			case events <- ev:
			case <-stop:
				return
			case <-ctx.Done():
				cancel()
				return
			}
		}
	}()

	return events, cancel, nil
}
