package repositories

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/squadup/squadup/internal/docstore"
	"github.com/squadup/squadup/internal/models"
)

// NotificationRepository 通知仓储（文档库，只追加的通知流）
type NotificationRepository struct {
	store docstore.Store
}

// NewNotificationRepository 创建通知仓储实例
func NewNotificationRepository(store docstore.Store) *NotificationRepository {
	return &NotificationRepository{store: store}
}

// Put 写入通知。调用方对扇出通知使用确定性 ID（如 disband:<group>:<uid>），
// 重放同一扇出只会覆盖同一文档，不会产生重复通知。
func (r *NotificationRepository) Put(ctx context.Context, n *models.Notification) error {
	return r.store.Set(ctx, ColNotifications, n.ID, n)
}

// UnreadFor 查询某用户的未读通知（按创建时间降序）
func (r *NotificationRepository) UnreadFor(ctx context.Context, uid string) ([]models.Notification, error) {
	raws, err := r.store.Query(ctx, ColNotifications, docstore.Query{
		Filter:  map[string]any{"recipient_uid": uid, "read": false},
		OrderBy: "created_at",
		Desc:    true,
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(raws))
	for _, raw := range raws {
		var n models.Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// MarkRead 将通知标记为已读。按 ID 幂等：重复标记或通知已不存在都不算错误。
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	err := r.store.Update(ctx, ColNotifications, id, map[string]any{"read": true})
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	return err
}
