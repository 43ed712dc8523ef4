package models

import (
	"time"
)

// 消息类型
const (
	ChatMessageUser   = "user"
	ChatMessageSystem = "system"
)

// ChatChannel 队伍聊天频道文档（以 group_id 为键），这里只管理参与者集合
type ChatChannel struct {
	GroupID         string    `json:"group_id"`
	ParticipantUIDs []string  `json:"participant_uids"`
	CreatedAt       time.Time `json:"created_at"`
}

// HasParticipant 判断 uid 是否已在频道中
func (c *ChatChannel) HasParticipant(uid string) bool {
	for _, p := range c.ParticipantUIDs {
		if p == uid {
			return true
		}
	}
	return false
}

// ChatMessage 频道消息文档，ID 使用 snowflake 保证有序
type ChatMessage struct {
	ID        int64     `json:"id"`
	GroupID   string    `json:"group_id"`
	SenderUID string    `json:"sender_uid,omitempty"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
