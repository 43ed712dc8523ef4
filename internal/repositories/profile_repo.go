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

// ProfileRepository 用户档案仓储（文档库）
type ProfileRepository struct {
	store docstore.Store
}

// NewProfileRepository 创建用户档案仓储实例
func NewProfileRepository(store docstore.Store) *ProfileRepository {
	return &ProfileRepository{store: store}
}

// Get 根据 uid 获取档案
func (r *ProfileRepository) Get(ctx context.Context, uid string) (*models.Profile, error) {
	var p models.Profile
	if err := r.store.Get(ctx, ColProfiles, uid, &p); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Put 写入档案
func (r *ProfileRepository) Put(ctx context.Context, p *models.Profile) error {
	p.UpdatedAt = time.Now().UTC()
	return r.store.Set(ctx, ColProfiles, p.UID, p)
}

// Mutate 在乐观事务内修改档案（档案不存在时以空档案起步）
func (r *ProfileRepository) Mutate(ctx context.Context, uid string, fn func(p *models.Profile) error) error {
	return r.store.Mutate(ctx, ColProfiles, uid, func(current json.RawMessage) (any, error) {
		p := models.Profile{UID: uid}
		if current != nil {
			if err := json.Unmarshal(current, &p); err != nil {
				return nil, err
			}
		}
		if err := fn(&p); err != nil {
			return nil, err
		}
		p.UpdatedAt = time.Now().UTC()
		return p, nil
	})
}

// AddMembership 在档案上追加队伍成员记录（按 group_id 幂等，重放安全）
func (r *ProfileRepository) AddMembership(ctx context.Context, uid string, m models.Membership) error {
	return r.Mutate(ctx, uid, func(p *models.Profile) error {
		if p.HasMembership(m.GroupID) {
			return nil
		}
		p.Memberships = append(p.Memberships, m)
		return nil
	})
}

// RemoveMembership 摘除档案上的队伍成员记录（不存在时无操作）
func (r *ProfileRepository) RemoveMembership(ctx context.Context, uid, groupID string) error {
	return r.Mutate(ctx, uid, func(p *models.Profile) error {
		p.RemoveMembership(groupID)
		return nil
	})
}

// AddFriend 互相写入好友关系
func (r *ProfileRepository) AddFriend(ctx context.Context, uid, friendUID string) error {
	if err := r.store.ArrayUnion(ctx, ColProfiles, uid, "friend_uids", friendUID); err != nil {
		return err
	}
	return r.store.ArrayUnion(ctx, ColProfiles, friendUID, "friend_uids", uid)
}

// SetPartyFlags 更新搭子小队的队长/成员标记
func (r *ProfileRepository) SetPartyFlags(ctx context.Context, uid string, leader, member bool) error {
	return r.Mutate(ctx, uid, func(p *models.Profile) error {
		p.IsPartyLeader = leader
		p.IsPartyMember = member
		return nil
	})
}
