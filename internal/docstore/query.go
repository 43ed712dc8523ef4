package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Query returns the documents of a collection matching q, as raw JSON.
// Filtering and ordering happen client-side over the collection's id set;
// collections here are small (one user's invitations, one group's messages),
// so a scan is acceptable.
func (s *RedisStore) Query(ctx context.Context, collection string, q Query) ([]json.RawMessage, error) {
	ids, err := s.rdb.SMembers(ctx, idsKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("docstore query %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(collection, id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("docstore query %s: %w", collection, err)
	}

	type entry struct {
		raw json.RawMessage
		doc map[string]any
	}
	var matched []entry
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // id set can briefly lag behind a delete
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(str), &doc); err != nil {
			continue
		}
		if !matchesFilter(doc, q.Filter) {
			continue
		}
		matched = append(matched, entry{raw: json.RawMessage(str), doc: doc})
	}

	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			less := lessValue(matched[i].doc[q.OrderBy], matched[j].doc[q.OrderBy])
			if q.Desc {
				return !less && !jsonEqual(matched[i].doc[q.OrderBy], matched[j].doc[q.OrderBy])
			}
			return less
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]json.RawMessage, len(matched))
	for i, e := range matched {
		out[i] = e.raw
	}
	return out, nil
}

// MatchesFilter reports whether a decoded document satisfies the equality
// filter. Exposed so collection watchers can reuse the same matching rules.
func MatchesFilter(doc map[string]any, filter map[string]any) bool {
	return matchesFilter(doc, filter)
}

func matchesFilter(doc map[string]any, filter map[string]any) bool {
	for field, want := range filter {
		norm, err := normalize(want)
		if err != nil {
			return false
		}
		if !jsonEqual(doc[field], norm) {
			return false
		}
	}
	return true
}

func jsonEqual(a, b any) bool {
	da, err := json.Marshal(a)
	if err != nil {
		return false
	}
	db, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(da) == string(db)
}

func lessValue(a, b any) bool {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av < bv
	case string:
		bv, ok := b.(string)
		return ok && av < bv
	case bool:
		bv, ok := b.(bool)
		return ok && !av && bv
	default:
		return false
	}
}
