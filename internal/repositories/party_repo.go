package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/squadup/squadup/internal/apperrors"
	"github.com/squadup/squadup/internal/docstore"
	"github.com/squadup/squadup/internal/models"
)

// PartyRepository 搭子小队仓储（文档库，以队长 uid 为键）
type PartyRepository struct {
	store docstore.Store
}

// NewPartyRepository 创建搭子小队仓储实例
func NewPartyRepository(store docstore.Store) *PartyRepository {
	return &PartyRepository{store: store}
}

// Get 根据队长 uid 获取小队
func (r *PartyRepository) Get(ctx context.Context, leaderUID string) (*models.SearchParty, error) {
	var p models.SearchParty
	if err := r.store.Get(ctx, ColParties, leaderUID, &p); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Join 将成员加入队长的小队，小队不存在时顺带创建
func (r *PartyRepository) Join(ctx context.Context, leaderUID, leaderName string, m models.Member) error {
	return r.store.Mutate(ctx, ColParties, leaderUID, func(current json.RawMessage) (any, error) {
		p := models.SearchParty{
			LeaderUID:  leaderUID,
			LeaderName: leaderName,
			CreatedAt:  time.Now().UTC(),
		}
		if current != nil {
			if err := json.Unmarshal(current, &p); err != nil {
				return nil, err
			}
		}
		if p.HasMember(m.UID) {
			return nil, nil
		}
		p.Members = append(p.Members, m)
		return p, nil
	})
}

// Delete 解散小队（不存在时无操作）
func (r *PartyRepository) Delete(ctx context.Context, leaderUID string) error {
	return r.store.Delete(ctx, ColParties, leaderUID)
}

// RemoveEverywhere 把 uid 从所有小队里摘掉：自己带队的小队直接解散，
// 参加的小队移除该成员。入队成功后调用，队伍成员资格取代搭子关系。
func (r *PartyRepository) RemoveEverywhere(ctx context.Context, uid string) error {
	if err := r.Delete(ctx, uid); err != nil {
		return err
	}

	raws, err := r.store.Query(ctx, ColParties, docstore.Query{})
	if err != nil {
		return err
	}
	for _, raw := range raws {
		var p models.SearchParty
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		if !p.HasMember(uid) {
			continue
		}
		err := r.store.Mutate(ctx, ColParties, p.LeaderUID, func(current json.RawMessage) (any, error) {
			if current == nil {
				return nil, nil
			}
			var cur models.SearchParty
			if err := json.Unmarshal(current, &cur); err != nil {
				return nil, err
			}
			kept := cur.Members[:0]
			for _, m := range cur.Members {
				if m.UID != uid {
					kept = append(kept, m)
				}
			}
			cur.Members = kept
			return cur, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
