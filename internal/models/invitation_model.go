package models

import (
	"time"
)

// 邀请状态（单程：pending 只能走到 accepted/declined）
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
)

// 邀请类型
const (
	InviteKindGroup  = "group"  // 入队邀请
	InviteKindParty  = "party"  // 搭子邀请
	InviteKindFriend = "friend" // 好友请求
)

// Invitation 邀请文档（三种类型共用一个集合，按 kind 区分）
type Invitation struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	SenderUID   string `json:"sender_uid"`
	SenderName  string `json:"sender_name"`
	ReceiverUID string `json:"receiver_uid"`

	// 入队邀请的队伍快照
	GroupID    string   `json:"group_id,omitempty"`
	GroupTitle string   `json:"group_title,omitempty"`
	CoInvitees []Member `json:"co_invitees,omitempty"` // 随邀请一起入队的搭子成员

	// 搭子邀请的队长快照
	PartyLeaderUID  string `json:"party_leader_uid,omitempty"`
	PartyLeaderName string `json:"party_leader_name,omitempty"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Pending 是否仍待处理
func (i *Invitation) Pending() bool {
	return i.Status == InviteStatusPending
}
