package docstore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb)
}

type testDoc struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Tags []string `json:"tags"`
	Rank int      `json:"rank"`
}

func TestStore_SetGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("roundtrip", func(t *testing.T) {
		in := testDoc{ID: "d1", Name: "padel", Tags: []string{"a"}, Rank: 3}
		require.NoError(t, store.Set(ctx, "things", "d1", in))

		var out testDoc
		require.NoError(t, store.Get(ctx, "things", "d1", &out))
		assert.Equal(t, in, out)
	})

	t.Run("missing document", func(t *testing.T) {
		var out testDoc
		err := store.Get(ctx, "things", "nope", &out)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_Update(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "things", "d1", testDoc{ID: "d1", Name: "old"}))
	require.NoError(t, store.Update(ctx, "things", "d1", map[string]any{"name": "new"}))

	var out testDoc
	require.NoError(t, store.Get(ctx, "things", "d1", &out))
	assert.Equal(t, "new", out.Name)
	assert.Equal(t, "d1", out.ID)

	err := store.Update(ctx, "things", "ghost", map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ArrayUnionRemove(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "things", "d1", testDoc{ID: "d1", Tags: []string{"x"}}))

	t.Run("union adds missing elements only", func(t *testing.T) {
		require.NoError(t, store.ArrayUnion(ctx, "things", "d1", "tags", "x", "y"))
		require.NoError(t, store.ArrayUnion(ctx, "things", "d1", "tags", "y"))

		var out testDoc
		require.NoError(t, store.Get(ctx, "things", "d1", &out))
		assert.Equal(t, []string{"x", "y"}, out.Tags)
	})

	t.Run("remove drops matching elements", func(t *testing.T) {
		require.NoError(t, store.ArrayRemove(ctx, "things", "d1", "tags", "x"))

		var out testDoc
		require.NoError(t, store.Get(ctx, "things", "d1", &out))
		assert.Equal(t, []string{"y"}, out.Tags)
	})

	t.Run("remove on absent document is a no-op", func(t *testing.T) {
		assert.NoError(t, store.ArrayRemove(ctx, "things", "ghost", "tags", "x"))
	})
}

func TestStore_Mutate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "things", "d1", testDoc{ID: "d1", Rank: 0}))

	t.Run("concurrent increments all land", func(t *testing.T) {
		const n = 10
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.Mutate(ctx, "things", "d1", func(current json.RawMessage) (any, error) {
					var d testDoc
					if err := json.Unmarshal(current, &d); err != nil {
						return nil, err
					}
					d.Rank++
					return d, nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		var out testDoc
		require.NoError(t, store.Get(ctx, "things", "d1", &out))
		assert.Equal(t, n, out.Rank)
	})

	t.Run("nil result aborts without writing", func(t *testing.T) {
		before := readRaw(t, store, "things", "d1")
		err := store.Mutate(ctx, "things", "d1", func(current json.RawMessage) (any, error) {
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equal(t, before, readRaw(t, store, "things", "d1"))
	})
}

func TestStore_Query(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	docs := []testDoc{
		{ID: "a", Name: "padel", Rank: 2},
		{ID: "b", Name: "padel", Rank: 5},
		{ID: "c", Name: "tennis", Rank: 1},
	}
	for _, d := range docs {
		require.NoError(t, store.Set(ctx, "things", d.ID, d))
	}

	t.Run("filter and order desc", func(t *testing.T) {
		raws, err := store.Query(ctx, "things", Query{
			Filter:  map[string]any{"name": "padel"},
			OrderBy: "rank",
			Desc:    true,
		})
		require.NoError(t, err)
		require.Len(t, raws, 2)

		var first testDoc
		require.NoError(t, json.Unmarshal(raws[0], &first))
		assert.Equal(t, "b", first.ID)
	})

	t.Run("limit", func(t *testing.T) {
		raws, err := store.Query(ctx, "things", Query{OrderBy: "rank", Limit: 1})
		require.NoError(t, err)
		assert.Len(t, raws, 1)
	})

	t.Run("deleted documents disappear from results", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "things", "c"))
		raws, err := store.Query(ctx, "things", Query{})
		require.NoError(t, err)
		assert.Len(t, raws, 2)
	})
}

func TestStore_Watch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "things", "d1", testDoc{ID: "d1", Name: "before"}))

	events, cancel, err := store.Watch(ctx, "things", "d1")
	require.NoError(t, err)
	defer cancel()

	t.Run("initial snapshot arrives first", func(t *testing.T) {
		ev := waitEvent(t, events)
		var d testDoc
		require.NoError(t, json.Unmarshal(ev.Data, &d))
		assert.Equal(t, "before", d.Name)
	})

	t.Run("committed writes are pushed", func(t *testing.T) {
		require.NoError(t, store.Update(ctx, "things", "d1", map[string]any{"name": "after"}))
		ev := waitEvent(t, events)
		var d testDoc
		require.NoError(t, json.Unmarshal(ev.Data, &d))
		assert.Equal(t, "after", d.Name)
	})

	t.Run("delete delivers tombstone", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "things", "d1"))
		ev := waitEvent(t, events)
		assert.True(t, ev.Deleted)
		assert.Nil(t, ev.Data)
	})

	t.Run("cancel closes the stream", func(t *testing.T) {
		cancel()
		cancel() // second call must be safe
		_, ok := <-events
		assert.False(t, ok)
	})
}

func TestStore_WatchCollection(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	events, cancel, err := store.WatchCollection(ctx, "things")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, store.Set(ctx, "things", "d1", testDoc{ID: "d1"}))
	require.NoError(t, store.Set(ctx, "things", "d2", testDoc{ID: "d2"}))

	got := map[string]bool{}
	got[waitEvent(t, events).ID] = true
	got[waitEvent(t, events).ID] = true
	assert.True(t, got["d1"])
	assert.True(t, got["d2"])
}

func readRaw(t *testing.T, store *RedisStore, collection, id string) string {
	t.Helper()
	var doc map[string]any
	require.NoError(t, store.Get(context.Background(), collection, id, &doc))
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(data)
}

func waitEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestStore_WatchCancelWithFullBuffer(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	events, cancel, err := store.WatchCollection(ctx, "things")
	require.NoError(t, err)

	// Fill the subscription buffer and park the pump on its next send.
	for i := 0; i < watchBuffer+8; i++ {
		require.NoError(t, store.Set(ctx, "things", "d1", testDoc{ID: "d1", Rank: i}))
	}
	require.Eventually(t, func() bool { return len(events) == watchBuffer },
		2*time.Second, 10*time.Millisecond)

	cancel()

	// The pump must abandon the blocked send once cancelled; the stream
	// closes with only the already-buffered events left to read.
	got := 0
	for {
		select {
		case _, ok := <-events:
			if !ok {
				assert.Equal(t, watchBuffer, got)
				return
			}
			got++
		case <-time.After(2 * time.Second):
			t.Fatal("event stream not closed after cancel")
		}
	}
}
