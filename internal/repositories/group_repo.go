package repositories

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/squadup/squadup/internal/apperrors"
	"github.com/squadup/squadup/internal/docstore"
	"github.com/squadup/squadup/internal/models"
)

// GroupRepository 队伍仓储（文档库）
type GroupRepository struct {
	store docstore.Store
}

// NewGroupRepository 创建队伍仓储实例
func NewGroupRepository(store docstore.Store) *GroupRepository {
	return &GroupRepository{store: store}
}

// Get 根据ID获取队伍
func (r *GroupRepository) Get(ctx context.Context, id string) (*models.Group, error) {
	var g models.Group
	if err := r.store.Get(ctx, ColGroups, id, &g); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// Create 创建队伍（落库前恢复不变式）
func (r *GroupRepository) Create(ctx context.Context, g *models.Group) error {
	g.Normalize()
	return r.store.Set(ctx, ColGroups, g.ID, g)
}

// Mutate 在乐观事务内修改队伍。每次提交前都会执行 Normalize，
// 所以 member_uids 投影、报名/成员互斥和满员下架这些不变式
// 对任何写入方都成立，不依赖调用方自觉。
func (r *GroupRepository) Mutate(ctx context.Context, id string, fn func(g *models.Group) error) (*models.Group, error) {
	var result models.Group
	err := r.store.Mutate(ctx, ColGroups, id, func(current json.RawMessage) (any, error) {
		if current == nil {
			return nil, apperrors.ErrNotFound
		}
		var g models.Group
		if err := json.Unmarshal(current, &g); err != nil {
			return nil, err
		}
		if err := fn(&g); err != nil {
			return nil, err
		}
		g.Normalize()
		result = g
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete 删除队伍（不存在时无操作）
func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, ColGroups, id)
}

// Watch 订阅单个队伍文档的推送
func (r *GroupRepository) Watch(ctx context.Context, id string) (<-chan docstore.Event, func(), error) {
	return r.store.Watch(ctx, ColGroups, id)
}
