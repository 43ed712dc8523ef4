package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when the requested document does not exist.
var ErrNotFound = errors.New("document not found")

// maxTxRetries bounds the optimistic-transaction retry loop for
// read-modify-write mutations under concurrent writers.
const maxTxRetries = 20

// Event describes a committed change to a document. Data carries the full
// document snapshot after the write; it is nil for deletions.
type Event struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Deleted    bool            `json:"deleted,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Query selects documents from a collection. Filter matches top-level fields
// by equality; OrderBy sorts by a top-level field (RFC3339 timestamps sort
// correctly as strings); Limit of 0 means no limit.
type Query struct {
	Filter  map[string]any
	OrderBy string
	Desc    bool
	Limit   int
}

// Store is a document store with point reads/writes, array-union/array-remove
// mutations, filtered queries and push-based change subscriptions.
//
// Every committed write publishes the new document snapshot to the document's
// channel and to its collection channel, so watchers never need to re-read.
// There are no cross-document transactions: multi-document consistency is the
// caller's responsibility (best-effort sequential, idempotent re-application).
type Store interface {
	Get(ctx context.Context, collection, id string, dest any) error
	Set(ctx context.Context, collection, id string, doc any) error
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Mutate(ctx context.Context, collection, id string, fn MutateFunc) error
	ArrayUnion(ctx context.Context, collection, id, field string, elems ...any) error
	ArrayRemove(ctx context.Context, collection, id, field string, elems ...any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]json.RawMessage, error)
	Watch(ctx context.Context, collection, id string) (<-chan Event, func(), error)
	WatchCollection(ctx context.Context, collection string) (<-chan Event, func(), error)
	Close() error
}

// MutateFunc transforms the current document (nil when absent) into its next
// state. Returning a nil document with a nil error aborts the mutation
// without writing.
type MutateFunc func(current json.RawMessage) (any, error)

// RedisStore implements Store on top of a single redis instance.
// Documents are JSON blobs at doc:<collection>:<id>; each collection keeps a
// set of its document ids for queries.
type RedisStore struct {
	rdb *redis.Client
}

// New creates a document store backed by the given redis client.
func New(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func docKey(collection, id string) string {
	return fmt.Sprintf("doc:%s:%s", collection, id)
}

func idsKey(collection string) string {
	return fmt.Sprintf("ids:%s", collection)
}

func docChannel(collection, id string) string {
	return fmt.Sprintf("docs:%s:%s", collection, id)
}

func collectionChannel(collection string) string {
	return fmt.Sprintf("docs:%s", collection)
}

// Get reads a document into dest. Returns ErrNotFound when absent.
func (s *RedisStore) Get(ctx context.Context, collection, id string, dest any) error {
	data, err := s.rdb.Get(ctx, docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("docstore get %s/%s: %w", collection, id, err)
	}
	return json.Unmarshal(data, dest)
}

// Set writes (or overwrites) a document and publishes the new snapshot.
func (s *RedisStore) Set(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore set %s/%s: %w", collection, id, err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, docKey(collection, id), data, 0)
	pipe.SAdd(ctx, idsKey(collection), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("docstore set %s/%s: %w", collection, id, err)
	}
	s.publish(ctx, Event{Collection: collection, ID: id, Data: data})
	return nil
}

// Mutate applies fn to the current document under an optimistic transaction
// (WATCH/MULTI) and retries on conflict with concurrent writers.
func (s *RedisStore) Mutate(ctx context.Context, collection, id string, fn MutateFunc) error {
	key := docKey(collection, id)
	var committed []byte

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			committed = nil
			return nil
		}

		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, idsKey(collection), id)
			return nil
		})
		if err == nil {
			committed = data
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue // another writer won the race, replay on fresh state
		}
		if err != nil {
			return fmt.Errorf("docstore mutate %s/%s: %w", collection, id, err)
		}
		if committed != nil {
			s.publish(ctx, Event{Collection: collection, ID: id, Data: committed})
		}
		return nil
	}
	return fmt.Errorf("docstore mutate %s/%s: too many conflicts", collection, id)
}

// Update merges the given top-level fields into an existing document.
func (s *RedisStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.Mutate(ctx, collection, id, func(current json.RawMessage) (any, error) {
		if current == nil {
			return nil, ErrNotFound
		}
		var doc map[string]any
		if err := json.Unmarshal(current, &doc); err != nil {
			return nil, err
		}
		for k, v := range fields {
			doc[k] = v
		}
		return doc, nil
	})
}

// ArrayUnion appends each element to the named array field unless an equal
// element is already present. Creates the document or field when absent.
func (s *RedisStore) ArrayUnion(ctx context.Context, collection, id, field string, elems ...any) error {
	return s.Mutate(ctx, collection, id, func(current json.RawMessage) (any, error) {
		doc := map[string]any{}
		if current != nil {
			if err := json.Unmarshal(current, &doc); err != nil {
				return nil, err
			}
		}
		arr, err := asArray(doc[field])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		for _, e := range elems {
			norm, err := normalize(e)
			if err != nil {
				return nil, err
			}
			if !containsJSONEqual(arr, norm) {
				arr = append(arr, norm)
			}
		}
		doc[field] = arr
		return doc, nil
	})
}

// ArrayRemove removes every element JSON-equal to one of elems from the named
// array field. A missing document or field is a no-op.
func (s *RedisStore) ArrayRemove(ctx context.Context, collection, id, field string, elems ...any) error {
	return s.Mutate(ctx, collection, id, func(current json.RawMessage) (any, error) {
		if current == nil {
			return nil, nil
		}
		var doc map[string]any
		if err := json.Unmarshal(current, &doc); err != nil {
			return nil, err
		}
		arr, err := asArray(doc[field])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		removed := make([]any, 0, len(elems))
		for _, e := range elems {
			norm, err := normalize(e)
			if err != nil {
				return nil, err
			}
			removed = append(removed, norm)
		}
		kept := arr[:0]
		for _, item := range arr {
			if !containsJSONEqual(removed, item) {
				kept = append(kept, item)
			}
		}
		doc[field] = kept
		return doc, nil
	})
}

// Delete removes a document and publishes a tombstone event.
// Deleting an absent document is a no-op.
func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	pipe := s.rdb.TxPipeline()
	del := pipe.Del(ctx, docKey(collection, id))
	pipe.SRem(ctx, idsKey(collection), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("docstore delete %s/%s: %w", collection, id, err)
	}
	if del.Val() > 0 {
		s.publish(ctx, Event{Collection: collection, ID: id, Deleted: true})
	}
	return nil
}

// Close releases the underlying redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.rdb.Publish(ctx, docChannel(ev.Collection, ev.ID), payload)
	s.rdb.Publish(ctx, collectionChannel(ev.Collection), payload)
}

// normalize round-trips a value through JSON so that comparisons in array
// mutations see the same representation the store persists.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func asArray(v any) ([]any, error) {
	if v == nil {
		return []any{}, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, errors.New("not an array")
	}
	return arr, nil
}

func containsJSONEqual(arr []any, v any) bool {
	target, err := json.Marshal(v)
	if err != nil {
		return false
	}
	for _, item := range arr {
		data, err := json.Marshal(item)
		if err != nil {
			continue
		}
		if string(data) == string(target) {
			return true
		}
	}
	return false
}
