package models

import (
	"time"
)

// 通知类型
const (
	NotifyDisband = "group_disband" // 队伍解散
	NotifyRemoved = "removed"       // 被移出队伍
	NotifyInvite  = "invite"        // 收到邀请
)

// Notification 通知文档，只追加，读过即标记
type Notification struct {
	ID           string    `json:"id"`
	RecipientUID string    `json:"recipient_uid"`
	Type         string    `json:"type"`
	GroupID      string    `json:"group_id,omitempty"`
	Message      string    `json:"message"`
	Read         bool      `json:"read"`
	CreatedAt    time.Time `json:"created_at"`
}
