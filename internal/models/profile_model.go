package models

import (
	"time"
)

// 成员关系状态
const (
	MembershipActive = "active"
)

// Membership 用户档案上的队伍成员记录（一个用户可同时持有多条）
type Membership struct {
	GroupID  string    `json:"group_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
	Status   string    `json:"status"`
}

// Profile 用户档案文档（实时库），账号信息在 postgres 的 users 表
type Profile struct {
	UID           string       `json:"uid"`
	FirstName     string       `json:"first_name"`
	LastName      string       `json:"last_name"`
	Gender        string       `json:"gender,omitempty"`
	Age           int          `json:"age,omitempty"`
	SkillLevel    int          `json:"skill_level"`
	Verified      bool         `json:"verified"`
	Memberships   []Membership `json:"memberships"`
	FriendUIDs    []string     `json:"friend_uids"`
	IsPartyLeader bool         `json:"is_party_leader"`
	IsPartyMember bool         `json:"is_party_member"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// HasMembership 判断档案上是否有某队伍的成员记录
func (p *Profile) HasMembership(groupID string) bool {
	for _, m := range p.Memberships {
		if m.GroupID == groupID {
			return true
		}
	}
	return false
}

// RemoveMembership 摘除某队伍的成员记录（不存在时无操作）
func (p *Profile) RemoveMembership(groupID string) {
	kept := p.Memberships[:0]
	for _, m := range p.Memberships {
		if m.GroupID != groupID {
			kept = append(kept, m)
		}
	}
	p.Memberships = kept
}

// SearchParty 搭子小队：入队前的轻量预组队，生命周期独立于 Group
type SearchParty struct {
	LeaderUID  string    `json:"leader_uid"`
	LeaderName string    `json:"leader_name"`
	Members    []Member  `json:"members"`
	CreatedAt  time.Time `json:"created_at"`
}

// HasMember 判断 uid 是否在小队中（含队长）
func (p *SearchParty) HasMember(uid string) bool {
	if p.LeaderUID == uid {
		return true
	}
	for _, m := range p.Members {
		if m.UID == uid {
			return true
		}
	}
	return false
}
