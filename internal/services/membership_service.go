package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/squadup/squadup/internal/apperrors"
	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/push"
	"github.com/squadup/squadup/internal/repositories"
	"github.com/squadup/squadup/internal/saga"
	"github.com/squadup/squadup/internal/utils"
)

// delistConfirmTTL 下架/重新上架确认令牌的有效期
const delistConfirmTTL = time.Minute

// MembershipService 队伍生命周期服务：建队、报名、邀请、退出、移人、解散、上下架
type MembershipService struct {
	groups   *repositories.GroupRepository
	profiles *repositories.ProfileRepository
	chats    *repositories.ChatRepository
	parties  *repositories.PartyRepository
	notifs   *repositories.NotificationRepository
	invites  *repositories.InvitationRepository
	sagas    *saga.Runner
	pusher   push.Sender
	pool     *utils.WorkerPool
	log      *zap.Logger

	mu       sync.Mutex
	confirms map[string]delistConfirm // 待确认的上下架手势
}

type delistConfirm struct {
	groupID   string
	leaderUID string
	expires   time.Time
}

// NewMembershipService 创建队伍生命周期服务实例
func NewMembershipService(
	groups *repositories.GroupRepository,
	profiles *repositories.ProfileRepository,
	chats *repositories.ChatRepository,
	parties *repositories.PartyRepository,
	notifs *repositories.NotificationRepository,
	invites *repositories.InvitationRepository,
	sagas *saga.Runner,
	pusher push.Sender,
	pool *utils.WorkerPool,
	log *zap.Logger,
) *MembershipService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MembershipService{
		groups:   groups,
		profiles: profiles,
		chats:    chats,
		parties:  parties,
		notifs:   notifs,
		invites:  invites,
		sagas:    sagas,
		pusher:   pusher,
		pool:     pool,
		log:      log,
		confirms: make(map[string]delistConfirm),
	}
}

// CreateGroupRequest 建队请求
type CreateGroupRequest struct {
	Activity    string              `json:"activity" binding:"required"`
	Title       string              `json:"title" binding:"required"`
	Location    string              `json:"location" binding:"required"`
	StartsAt    time.Time           `json:"starts_at" binding:"required"`
	EndsAt      time.Time           `json:"ends_at"`
	MemberLimit int                 `json:"member_limit" binding:"required"`
	Details     string              `json:"details"`
	Filters     models.GroupFilters `json:"filters"`
}

// CreateGroup 建队。队长本人计入 members/member_uids（统一口径：
// 队长就是第一个成员，满员计数包含队长），报名列表从空开始。
func (s *MembershipService) CreateGroup(ctx context.Context, leaderUID string, req *CreateGroupRequest) (*models.Group, error) {
	if req.MemberLimit < 1 {
		return nil, errors.New("member limit must be at least 1")
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Activity) == "" {
		return nil, errors.New("activity and title are required")
	}

	leader, err := s.memberFromProfile(ctx, leaderUID, models.RoleLeader)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	g := &models.Group{
		ID:          uuid.New().String(),
		Activity:    req.Activity,
		Title:       req.Title,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		MemberLimit: req.MemberLimit,
		Details:     req.Details,
		Filters:     req.Filters,
		CreatedBy:   leaderUID,
		Members:     []models.Member{*leader},
		Applicants:  []models.Applicant{},
		CreatedAt:   now,
	}
	if err := s.groups.Create(ctx, g); err != nil {
		return nil, err
	}

	if err := s.profiles.AddMembership(ctx, leaderUID, models.Membership{
		GroupID:  g.ID,
		Role:     models.RoleLeader,
		JoinedAt: now,
		Status:   models.MembershipActive,
	}); err != nil {
		return nil, err
	}
	if err := s.chats.EnsureChannel(ctx, g.ID, leaderUID); err != nil {
		return nil, err
	}
	return g, nil
}

// ApplyRequest 报名请求
type ApplyRequest struct {
	Note       string          `json:"note"`
	SubMembers []models.Member `json:"sub_members"`
}

// Apply 用户报名加入队伍。只追加报名记录，绝不直接改成员列表。
func (s *MembershipService) Apply(ctx context.Context, groupID, uid string, req *ApplyRequest) error {
	profile, err := s.profiles.Get(ctx, uid)
	if err != nil {
		return err
	}

	_, err = s.groups.Mutate(ctx, groupID, func(g *models.Group) error {
		if g.HasMember(uid) {
			return apperrors.ErrAlreadyMember
		}
		if g.AtCapacity() {
			return apperrors.ErrGroupFull
		}
		if err := checkEligibility(g, profile); err != nil {
			return err
		}
		if g.HasApplicant(uid) {
			return nil // 重复报名无副作用
		}
		g.Applicants = append(g.Applicants, models.Applicant{
			UID:        uid,
			FirstName:  profile.FirstName,
			LastName:   profile.LastName,
			SkillLevel: profile.SkillLevel,
			Note:       req.Note,
			SubMembers: req.SubMembers,
		})
		return nil
	})
	return err
}

// InviteApplicant 队长邀请报名者入队：登记报名记录并发出入队邀请，
// 入队本身发生在对方接受邀请时（见 InvitationCoordinator）。
func (s *MembershipService) InviteApplicant(ctx context.Context, groupID, leaderUID string, applicant models.Applicant) (*models.Invitation, error) {
	g, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.CreatedBy != leaderUID {
		return nil, apperrors.ErrNotLeader
	}

	_, err = s.groups.Mutate(ctx, groupID, func(g *models.Group) error {
		if g.HasMember(applicant.UID) {
			return apperrors.ErrAlreadyMember
		}
		if !g.HasApplicant(applicant.UID) {
			g.Applicants = append(g.Applicants, applicant)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	leader, err := s.memberFromProfile(ctx, leaderUID, models.RoleLeader)
	if err != nil {
		return nil, err
	}
	inv := &models.Invitation{
		ID:          uuid.New().String(),
		Kind:        models.InviteKindGroup,
		SenderUID:   leaderUID,
		SenderName:  memberName(leader),
		ReceiverUID: applicant.UID,
		GroupID:     g.ID,
		GroupTitle:  g.Title,
		CoInvitees:  applicant.SubMembers,
		Status:      models.InviteStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.invites.Create(ctx, inv); err != nil {
		return nil, err
	}
	s.pushAsync(ctx, applicant.UID, "Group invitation", fmt.Sprintf("%s invited you to %s", inv.SenderName, g.Title))
	return inv, nil
}

// Leave 主动退出队伍。调用方必须先在会话状态容器上 MarkSelfDeparture，
// 再发起这次变更，监听回调才能把成员缺失归因为主动退出。
func (s *MembershipService) Leave(ctx context.Context, groupID, uid string) error {
	var departed *models.Member
	_, err := s.groups.Mutate(ctx, groupID, func(g *models.Group) error {
		for i := range g.Members {
			if g.Members[i].UID == uid {
				m := g.Members[i]
				departed = &m
				break
			}
		}
		if departed == nil {
			return apperrors.ErrNotFound
		}
		g.RemoveMember(uid)
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.profiles.RemoveMembership(ctx, uid, groupID); err != nil {
		return err
	}
	if err := s.chats.RemoveParticipant(ctx, groupID, uid); err != nil {
		return err
	}
	return s.chats.AppendSystemMessage(ctx, groupID, fmt.Sprintf("%s left the group", memberName(departed)))
}

// RemoveMember 队长将他人移出队伍。队长专属操作，
// 变更顺序与 Leave 一致，另给被移出者追加一条通知。
func (s *MembershipService) RemoveMember(ctx context.Context, groupID, actorUID, targetUID string) error {
	g, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if g.CreatedBy != actorUID {
		return apperrors.ErrNotLeader
	}
	if actorUID == targetUID {
		return errors.New("leader cannot remove self, disband instead")
	}

	if err := s.Leave(ctx, groupID, targetUID); err != nil {
		return err
	}

	n := &models.Notification{
		ID:           fmt.Sprintf("removed:%s:%s", groupID, targetUID),
		RecipientUID: targetUID,
		Type:         models.NotifyRemoved,
		GroupID:      groupID,
		Message:      fmt.Sprintf("You were removed from %s", g.Title),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.notifs.Put(ctx, n); err != nil {
		return err
	}
	s.pushAsync(ctx, targetUID, "Removed from group", n.Message)
	return nil
}

// Disband 解散队伍。跨 group/profile/chat/notification 的扇出按命名步骤
// 顺序执行：先通知并清理每个成员，最后才删队伍文档，保证不会在
// 依赖写入还在途时就删掉队伍。对已删除的队伍重放是安全的无操作；
// 重放造成的重复通知因确定性 ID 只会覆盖同一文档。
func (s *MembershipService) Disband(ctx context.Context, groupID, leaderUID string) error {
	g, err := s.groups.Get(ctx, groupID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if g.CreatedBy != leaderUID {
		return apperrors.ErrNotLeader
	}

	return s.sagas.Run(ctx, saga.Saga{
		Name: "disband-group",
		Steps: []saga.Step{
			{Name: "notify-members", Run: func(ctx context.Context) error {
				for _, m := range g.Members {
					if m.UID == leaderUID {
						continue
					}
					n := &models.Notification{
						ID:           fmt.Sprintf("disband:%s:%s", groupID, m.UID),
						RecipientUID: m.UID,
						Type:         models.NotifyDisband,
						GroupID:      groupID,
						Message:      fmt.Sprintf("%s was disbanded by the leader", g.Title),
						CreatedAt:    time.Now().UTC(),
					}
					if err := s.notifs.Put(ctx, n); err != nil {
						return err
					}
					s.pushAsync(ctx, m.UID, "Group disbanded", n.Message)
				}
				return nil
			}},
			{Name: "clear-leader-party", Run: func(ctx context.Context) error {
				if err := s.parties.Delete(ctx, leaderUID); err != nil {
					return err
				}
				return s.profiles.SetPartyFlags(ctx, leaderUID, false, false)
			}},
			{Name: "strip-memberships", Run: func(ctx context.Context) error {
				for _, m := range g.Members {
					if err := s.profiles.RemoveMembership(ctx, m.UID, groupID); err != nil {
						return err
					}
				}
				return nil
			}},
			{Name: "delete-chat", Run: func(ctx context.Context) error {
				return s.chats.DeleteHistory(ctx, groupID)
			}},
			{Name: "delete-group", Run: func(ctx context.Context) error {
				return s.groups.Delete(ctx, groupID)
			}},
		},
	})
}

// RequestDelistToggle 上下架是一个两步的确认手势，防止误触：
// 第一步返回确认令牌，第二步携带令牌真正执行。
func (s *MembershipService) RequestDelistToggle(ctx context.Context, groupID, leaderUID string) (string, error) {
	g, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return "", err
	}
	if g.CreatedBy != leaderUID {
		return "", apperrors.ErrNotLeader
	}

	token := uuid.New().String()
	s.mu.Lock()
	s.confirms[token] = delistConfirm{groupID: groupID, leaderUID: leaderUID, expires: time.Now().Add(delistConfirmTTL)}
	s.mu.Unlock()
	return token, nil
}

// ConfirmDelistToggle 消费确认令牌并切换上下架状态
func (s *MembershipService) ConfirmDelistToggle(ctx context.Context, token string) (*models.Group, error) {
	s.mu.Lock()
	c, ok := s.confirms[token]
	delete(s.confirms, token)
	s.mu.Unlock()
	if !ok || time.Now().After(c.expires) {
		return nil, apperrors.ErrNotFound
	}

	return s.groups.Mutate(ctx, c.groupID, func(g *models.Group) error {
		if g.CreatedBy != c.leaderUID {
			return apperrors.ErrNotLeader
		}
		if g.IsDelisted && g.AtCapacity() {
			return apperrors.ErrGroupFull // 满员的队伍不能重新上架
		}
		g.IsDelisted = !g.IsDelisted
		return nil
	})
}

func (s *MembershipService) memberFromProfile(ctx context.Context, uid, role string) (*models.Member, error) {
	p, err := s.profiles.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &models.Member{
		UID:        p.UID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		SkillLevel: p.SkillLevel,
		Role:       role,
	}, nil
}

// pushAsync 推送提醒走协程池，失败只记日志，不影响主流程
func (s *MembershipService) pushAsync(ctx context.Context, uid, title, body string) {
	if s.pusher == nil {
		return
	}
	send := func() {
		if err := s.pusher.Send(context.WithoutCancel(ctx), uid, title, body); err != nil {
			s.log.Warn("push send failed", zap.String("uid", uid), zap.Error(err))
		}
	}
	if s.pool != nil {
		s.pool.Submit(send)
		return
	}
	send()
}

// checkEligibility 按队伍的报名条件过滤报名者
func checkEligibility(g *models.Group, p *models.Profile) error {
	f := g.Filters
	if f.VerifiedOnly && !p.Verified {
		return apperrors.ErrNotEligible
	}
	if f.Gender != "" && p.Gender != "" && f.Gender != p.Gender {
		return apperrors.ErrNotEligible
	}
	if f.MinAge > 0 && p.Age > 0 && p.Age < f.MinAge {
		return apperrors.ErrNotEligible
	}
	if f.MaxAge > 0 && p.Age > 0 && p.Age > f.MaxAge {
		return apperrors.ErrNotEligible
	}
	if f.FriendsOnly {
		leaderIsFriend := false
		for _, fr := range p.FriendUIDs {
			if fr == g.CreatedBy {
				leaderIsFriend = true
				break
			}
		}
		if !leaderIsFriend {
			return apperrors.ErrNotEligible
		}
	}
	return nil
}

func memberName(m *models.Member) string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}
