package models

import (
	"time"
)

// 成员角色
const (
	RoleLeader = "leader"
	RoleMember = "member"
)

// Member 队伍成员
type Member struct {
	UID        string `json:"uid"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	SkillLevel int    `json:"skill_level"`
	Role       string `json:"role"`
}

// Applicant 报名者（可携带预组队的搭子成员）
type Applicant struct {
	UID        string   `json:"uid"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	SkillLevel int      `json:"skill_level"`
	Note       string   `json:"note,omitempty"`
	SubMembers []Member `json:"sub_members,omitempty"`
}

// GroupFilters 队伍的可见性/报名条件
type GroupFilters struct {
	Gender       string `json:"gender,omitempty"`
	MinAge       int    `json:"min_age,omitempty"`
	MaxAge       int    `json:"max_age,omitempty"`
	IgnoreSkill  bool   `json:"ignore_skill,omitempty"`
	FriendsOnly  bool   `json:"friends_only,omitempty"`
	AutoAccept   bool   `json:"auto_accept,omitempty"`
	VerifiedOnly bool   `json:"verified_only,omitempty"`
}

// Group 活动队伍文档
type Group struct {
	ID          string       `json:"id"`
	Activity    string       `json:"activity"`
	Title       string       `json:"title"`
	Location    string       `json:"location"`
	StartsAt    time.Time    `json:"starts_at"`
	EndsAt      time.Time    `json:"ends_at"`
	MemberLimit int          `json:"member_limit"`
	Details     string       `json:"details,omitempty"`
	Filters     GroupFilters `json:"filters"`
	IsDelisted  bool         `json:"is_delisted"`
	CreatedBy   string       `json:"created_by"`
	Members     []Member     `json:"members"`
	MemberUIDs  []string     `json:"member_uids"`
	Applicants  []Applicant  `json:"applicants"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// HasMember 判断 uid 是否已是成员
func (g *Group) HasMember(uid string) bool {
	for _, m := range g.Members {
		if m.UID == uid {
			return true
		}
	}
	return false
}

// HasApplicant 判断 uid 是否已在报名列表中
func (g *Group) HasApplicant(uid string) bool {
	for _, a := range g.Applicants {
		if a.UID == uid {
			return true
		}
	}
	return false
}

// AtCapacity 是否已满员
func (g *Group) AtCapacity() bool {
	return g.MemberLimit > 0 && len(g.Members) >= g.MemberLimit
}

// AddMember 追加成员（按 uid 幂等）
func (g *Group) AddMember(m Member) {
	if g.HasMember(m.UID) {
		return
	}
	g.Members = append(g.Members, m)
}

// RemoveMember 按 uid 移除成员
func (g *Group) RemoveMember(uid string) {
	kept := g.Members[:0]
	for _, m := range g.Members {
		if m.UID != uid {
			kept = append(kept, m)
		}
	}
	g.Members = kept
}

// RemoveApplicant 按 uid 移除报名者
func (g *Group) RemoveApplicant(uid string) {
	kept := g.Applicants[:0]
	for _, a := range g.Applicants {
		if a.UID != uid {
			kept = append(kept, a)
		}
	}
	g.Applicants = kept
}

// Normalize 在每次落库前恢复队伍不变式：
// member_uids 始终等于 members 的 uid 投影；
// 报名列表与成员列表互斥（入队后自动清掉自己的报名）；
// 满员即自动下架。与成员变更同一次提交生效，不存在满员但仍在架的窗口。
func (g *Group) Normalize() {
	uids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		uids = append(uids, m.UID)
	}
	g.MemberUIDs = uids

	kept := g.Applicants[:0]
	for _, a := range g.Applicants {
		if !g.HasMember(a.UID) {
			kept = append(kept, a)
		}
	}
	g.Applicants = kept

	if g.AtCapacity() {
		g.IsDelisted = true
	}
	g.UpdatedAt = time.Now().UTC()
}
