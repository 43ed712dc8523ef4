package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/squadup/squadup/internal/docstore"
	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/utils/snowflake"
)

// ChatRepository 聊天频道仓储（文档库）。这里只负责频道成员集合
// 和系统消息，消息流的渲染不在本服务范围内。
type ChatRepository struct {
	store docstore.Store
	ids   *snowflake.Generator
}

// NewChatRepository 创建聊天频道仓储实例
func NewChatRepository(store docstore.Store, ids *snowflake.Generator) *ChatRepository {
	return &ChatRepository{store: store, ids: ids}
}

// EnsureChannel 创建队伍的聊天频道并写入初始参与者（已存在时只补参与者）
func (r *ChatRepository) EnsureChannel(ctx context.Context, groupID string, participantUIDs ...string) error {
	err := r.store.Mutate(ctx, ColChatChannels, groupID, func(current json.RawMessage) (any, error) {
		if current != nil {
			return nil, nil
		}
		return models.ChatChannel{
			GroupID:   groupID,
			CreatedAt: time.Now().UTC(),
		}, nil
	})
	if err != nil {
		return err
	}
	return r.AddParticipants(ctx, groupID, participantUIDs...)
}

// AddParticipants 将 uid 并入频道参与者集合（重复并入无副作用）
func (r *ChatRepository) AddParticipants(ctx context.Context, groupID string, uids ...string) error {
	if len(uids) == 0 {
		return nil
	}
	elems := make([]any, len(uids))
	for i, uid := range uids {
		elems[i] = uid
	}
	return r.store.ArrayUnion(ctx, ColChatChannels, groupID, "participant_uids", elems...)
}

// RemoveParticipant 将 uid 移出频道参与者集合
func (r *ChatRepository) RemoveParticipant(ctx context.Context, groupID, uid string) error {
	return r.store.ArrayRemove(ctx, ColChatChannels, groupID, "participant_uids", uid)
}

// GetChannel 获取频道
func (r *ChatRepository) GetChannel(ctx context.Context, groupID string) (*models.ChatChannel, error) {
	var c models.ChatChannel
	if err := r.store.Get(ctx, ColChatChannels, groupID, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// AppendSystemMessage 向频道追加一条系统消息（成员离开等事件的公告）
func (r *ChatRepository) AppendSystemMessage(ctx context.Context, groupID, content string) error {
	id, err := r.ids.NextID()
	if err != nil {
		return err
	}
	msg := models.ChatMessage{
		ID:        id,
		GroupID:   groupID,
		Kind:      models.ChatMessageSystem,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	return r.store.Set(ctx, ColChatMessages, fmt.Sprintf("%d", id), msg)
}

// DeleteHistory 删除频道及其全部消息（解散队伍时调用，重复删除安全）
func (r *ChatRepository) DeleteHistory(ctx context.Context, groupID string) error {
	raws, err := r.store.Query(ctx, ColChatMessages, docstore.Query{
		Filter: map[string]any{"group_id": groupID},
	})
	if err != nil {
		return err
	}
	for _, raw := range raws {
		var msg models.ChatMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if err := r.store.Delete(ctx, ColChatMessages, fmt.Sprintf("%d", msg.ID)); err != nil {
			return err
		}
	}
	return r.store.Delete(ctx, ColChatChannels, groupID)
}
