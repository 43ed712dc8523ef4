package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/squadup/squadup/internal/apperrors"
	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/push"
	"github.com/squadup/squadup/internal/repositories"
	"github.com/squadup/squadup/internal/saga"
)

// InvitationCoordinator 邀请协调服务：维护入队/搭子/好友三路独立的
// 待处理邀请订阅，并执行接受/拒绝的状态流转（含入队的跨实体扇出）。
type InvitationCoordinator struct {
	invites  *repositories.InvitationRepository
	groups   *repositories.GroupRepository
	profiles *repositories.ProfileRepository
	chats    *repositories.ChatRepository
	parties  *repositories.PartyRepository
	sagas    *saga.Runner
	pusher   push.Sender
	log      *zap.Logger

	// partyTimeout 搭子邀请弹窗的自动拒绝时间（默认 10 秒）
	partyTimeout time.Duration
}

// NewInvitationCoordinator 创建邀请协调服务实例
func NewInvitationCoordinator(
	invites *repositories.InvitationRepository,
	groups *repositories.GroupRepository,
	profiles *repositories.ProfileRepository,
	chats *repositories.ChatRepository,
	parties *repositories.PartyRepository,
	sagas *saga.Runner,
	pusher push.Sender,
	log *zap.Logger,
	partyTimeout time.Duration,
) *InvitationCoordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if partyTimeout <= 0 {
		partyTimeout = 10 * time.Second
	}
	return &InvitationCoordinator{
		invites:      invites,
		groups:       groups,
		profiles:     profiles,
		chats:        chats,
		parties:      parties,
		sagas:        sagas,
		pusher:       pusher,
		log:          log,
		partyTimeout: partyTimeout,
	}
}

// Session 一个用户会话的三路邀请订阅。
// GroupInvites 同一时刻只推一条"活跃"的入队邀请（先到先活跃），
// 前一条处理完才推下一条；PartyPrompts 每条都带超时自动拒绝；
// FriendRequests 每条到达都推（前端做 toast 展示并累积成列表）。
type Session struct {
	GroupInvites   <-chan models.Invitation
	PartyPrompts   <-chan models.Invitation
	FriendRequests <-chan models.Invitation

	cancels []func()
	once    sync.Once
}

// Close 拆除三路订阅，可重复调用
func (s *Session) Close() {
	s.once.Do(func() {
		for _, c := range s.cancels {
			c()
		}
	})
}

// OpenSession 为 uid 建立三路待处理邀请的订阅
func (c *InvitationCoordinator) OpenSession(ctx context.Context, uid string) (*Session, error) {
	groupCh, cancelGroup, err := c.invites.WatchPending(ctx, uid, models.InviteKindGroup)
	if err != nil {
		return nil, err
	}
	partyCh, cancelParty, err := c.invites.WatchPending(ctx, uid, models.InviteKindParty)
	if err != nil {
		cancelGroup()
		return nil, err
	}
	friendCh, cancelFriend, err := c.invites.WatchPending(ctx, uid, models.InviteKindFriend)
	if err != nil {
		cancelGroup()
		cancelParty()
		return nil, err
	}

	sess := &Session{
		GroupInvites:   c.runGroupQueue(ctx, groupCh),
		PartyPrompts:   c.runPartyPrompts(ctx, partyCh),
		FriendRequests: c.runFriendToasts(ctx, friendCh),
		cancels:        []func(){cancelGroup, cancelParty, cancelFriend},
	}
	return sess, nil
}

// runGroupQueue 串行化入队邀请：始终只暴露第一条待处理的，
// 它终态后再暴露下一条
func (c *InvitationCoordinator) runGroupQueue(ctx context.Context, in <-chan models.Invitation) <-chan models.Invitation {
	out := make(chan models.Invitation, 4)
	go func() {
		defer close(out)
		var activeID string
		queue := make([]models.Invitation, 0, 4)

		emitNext := func() {
			for len(queue) > 0 {
				next := queue[0]
				queue = queue[1:]
				activeID = next.ID
				select {
				case out <- next:
				case <-ctx.Done():
				}
				return
			}
			activeID = ""
		}

		for inv := range in {
			if !inv.Pending() {
				if inv.ID == activeID {
					emitNext()
				} else {
					// 排队中的邀请在别处被处理掉了
					for i, q := range queue {
						if q.ID == inv.ID {
							queue = append(queue[:i], queue[i+1:]...)
							break
						}
					}
				}
				continue
			}
			if activeID == "" {
				activeID = inv.ID
				select {
				case out <- inv:
				case <-ctx.Done():
					return
				}
			} else if inv.ID != activeID {
				queue = append(queue, inv)
			}
		}
	}()
	return out
}

// runPartyPrompts 搭子邀请弹窗：到达即推，超时未响应自动拒绝
func (c *InvitationCoordinator) runPartyPrompts(ctx context.Context, in <-chan models.Invitation) <-chan models.Invitation {
	out := make(chan models.Invitation, 4)
	go func() {
		defer close(out)
		timers := make(map[string]*time.Timer)
		defer func() {
			for _, t := range timers {
				t.Stop()
			}
		}()

		for inv := range in {
			if !inv.Pending() {
				if t, ok := timers[inv.ID]; ok {
					t.Stop()
					delete(timers, inv.ID)
				}
				continue
			}
			id, receiver := inv.ID, inv.ReceiverUID
			timers[id] = time.AfterFunc(c.partyTimeout, func() {
				err := c.RespondToPartyInvitation(context.WithoutCancel(ctx), id, receiver, false)
				if err != nil && !errors.Is(err, apperrors.ErrAlreadyResponded) {
					c.log.Warn("party invite auto-decline failed", zap.String("invite_id", id), zap.Error(err))
				}
			})
			select {
			case out <- inv:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// runFriendToasts 好友请求每条到达都透传
func (c *InvitationCoordinator) runFriendToasts(ctx context.Context, in <-chan models.Invitation) <-chan models.Invitation {
	out := make(chan models.Invitation, 8)
	go func() {
		defer close(out)
		for inv := range in {
			if !inv.Pending() {
				continue
			}
			select {
			case out <- inv:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Pending 返回某用户某类待处理邀请的列表（好友请求的累积列表等）
func (c *InvitationCoordinator) Pending(ctx context.Context, uid, kind string) ([]models.Invitation, error) {
	return c.invites.PendingForReceiver(ctx, uid, kind)
}

// SendPartyInvitation 发出搭子邀请
func (c *InvitationCoordinator) SendPartyInvitation(ctx context.Context, senderUID, receiverUID string) (*models.Invitation, error) {
	sender, err := c.profiles.Get(ctx, senderUID)
	if err != nil {
		return nil, err
	}
	inv := &models.Invitation{
		ID:              uuid.New().String(),
		Kind:            models.InviteKindParty,
		SenderUID:       senderUID,
		SenderName:      profileName(sender),
		ReceiverUID:     receiverUID,
		PartyLeaderUID:  senderUID,
		PartyLeaderName: profileName(sender),
		Status:          models.InviteStatusPending,
		CreatedAt:       time.Now().UTC(),
	}
	if err := c.invites.Create(ctx, inv); err != nil {
		return nil, err
	}
	c.push(ctx, receiverUID, "Party invitation", fmt.Sprintf("%s wants to team up with you", inv.SenderName))
	return inv, nil
}

// SendFriendRequest 发出好友请求
func (c *InvitationCoordinator) SendFriendRequest(ctx context.Context, senderUID, receiverUID string) (*models.Invitation, error) {
	sender, err := c.profiles.Get(ctx, senderUID)
	if err != nil {
		return nil, err
	}
	inv := &models.Invitation{
		ID:          uuid.New().String(),
		Kind:        models.InviteKindFriend,
		SenderUID:   senderUID,
		SenderName:  profileName(sender),
		ReceiverUID: receiverUID,
		Status:      models.InviteStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.invites.Create(ctx, inv); err != nil {
		return nil, err
	}
	c.push(ctx, receiverUID, "Friend request", fmt.Sprintf("%s sent you a friend request", inv.SenderName))
	return inv, nil
}

// RespondToGroupInvitation 处理入队邀请。邀请是单程的：
// 先落终态（重复处理会被 CAS 拒掉），接受时再按命名步骤执行扇出。
// 扇出中途失败返回 PartialFailureError，各步骤幂等，可整体重放。
// 只有邀请的接收人可以应答。
func (c *InvitationCoordinator) RespondToGroupInvitation(ctx context.Context, id, callerUID string, accept bool) error {
	if err := c.authorizeReceiver(ctx, id, callerUID); err != nil {
		return err
	}
	inv, err := c.invites.MarkResponded(ctx, id, accept)
	if err != nil {
		return err
	}
	if !accept {
		return nil // 拒绝只需要终态，别无副作用
	}
	return c.applyGroupAccept(ctx, inv)
}

// RetryGroupAccept 重放一次已接受邀请的扇出（部分失败后的恢复路径）
func (c *InvitationCoordinator) RetryGroupAccept(ctx context.Context, id, callerUID string) error {
	inv, err := c.invites.Get(ctx, id)
	if err != nil {
		return err
	}
	if inv.ReceiverUID != callerUID {
		return apperrors.ErrNotReceiver
	}
	if inv.Status != models.InviteStatusAccepted {
		return apperrors.ErrNotFound
	}
	return c.applyGroupAccept(ctx, inv)
}

// authorizeReceiver 校验应答人就是邀请的接收人
func (c *InvitationCoordinator) authorizeReceiver(ctx context.Context, id, callerUID string) error {
	inv, err := c.invites.Get(ctx, id)
	if err != nil {
		return err
	}
	if inv.ReceiverUID != callerUID {
		return apperrors.ErrNotReceiver
	}
	return nil
}

func (c *InvitationCoordinator) applyGroupAccept(ctx context.Context, inv *models.Invitation) error {
	receiver, err := c.profiles.Get(ctx, inv.ReceiverUID)
	if err != nil {
		return err
	}

	// 接受者本人加上随行的搭子成员一起入队
	joining := make([]models.Member, 0, 1+len(inv.CoInvitees))
	joining = append(joining, models.Member{
		UID:        receiver.UID,
		FirstName:  receiver.FirstName,
		LastName:   receiver.LastName,
		SkillLevel: receiver.SkillLevel,
		Role:       models.RoleMember,
	})
	for _, m := range inv.CoInvitees {
		m.Role = models.RoleMember
		joining = append(joining, m)
	}

	now := time.Now().UTC()
	joinedUIDs := make([]string, len(joining))
	for i, m := range joining {
		joinedUIDs[i] = m.UID
	}

	return c.sagas.Run(ctx, saga.Saga{
		Name: "accept-group-invitation",
		Steps: []saga.Step{
			// 入队、报名记录清理和满员下架在同一次提交里生效，
			// 不存在"满员但仍在架"的可见窗口
			{Name: "join-group", Run: func(ctx context.Context) error {
				_, err := c.groups.Mutate(ctx, inv.GroupID, func(g *models.Group) error {
					incoming := 0
					for _, m := range joining {
						if !g.HasMember(m.UID) {
							incoming++
						}
					}
					if g.MemberLimit > 0 && len(g.Members)+incoming > g.MemberLimit {
						return apperrors.ErrGroupFull
					}
					for _, m := range joining {
						g.AddMember(m)
					}
					return nil
				})
				return err
			}},
			{Name: "join-chat", Run: func(ctx context.Context) error {
				return c.chats.AddParticipants(ctx, inv.GroupID, joinedUIDs...)
			}},
			{Name: "record-memberships", Run: func(ctx context.Context) error {
				for _, uid := range joinedUIDs {
					err := c.profiles.AddMembership(ctx, uid, models.Membership{
						GroupID:  inv.GroupID,
						Role:     models.RoleMember,
						JoinedAt: now,
						Status:   models.MembershipActive,
					})
					if err != nil {
						return err
					}
				}
				return nil
			}},
			// 入队后搭子关系失效：自己带的小队解散，参加的小队退出
			{Name: "dissolve-party", Run: func(ctx context.Context) error {
				if err := c.parties.RemoveEverywhere(ctx, inv.ReceiverUID); err != nil {
					return err
				}
				return c.profiles.SetPartyFlags(ctx, inv.ReceiverUID, false, false)
			}},
		},
	})
}

// RespondToPartyInvitation 处理搭子邀请：接受时把自己加进对方的小队
// （小队不存在就创建），并更新双方档案上的小队标记。
func (c *InvitationCoordinator) RespondToPartyInvitation(ctx context.Context, id, callerUID string, accept bool) error {
	if err := c.authorizeReceiver(ctx, id, callerUID); err != nil {
		return err
	}
	inv, err := c.invites.MarkResponded(ctx, id, accept)
	if err != nil {
		return err
	}
	if !accept {
		return nil
	}

	receiver, err := c.profiles.Get(ctx, inv.ReceiverUID)
	if err != nil {
		return err
	}
	err = c.parties.Join(ctx, inv.PartyLeaderUID, inv.PartyLeaderName, models.Member{
		UID:        receiver.UID,
		FirstName:  receiver.FirstName,
		LastName:   receiver.LastName,
		SkillLevel: receiver.SkillLevel,
		Role:       models.RoleMember,
	})
	if err != nil {
		return err
	}

	if err := c.profiles.Mutate(ctx, inv.ReceiverUID, func(p *models.Profile) error {
		p.IsPartyMember = true
		return nil
	}); err != nil {
		return err
	}
	return c.profiles.Mutate(ctx, inv.PartyLeaderUID, func(p *models.Profile) error {
		p.IsPartyLeader = true
		return nil
	})
}

// RespondToFriendRequest 处理好友请求：接受时互写好友关系
func (c *InvitationCoordinator) RespondToFriendRequest(ctx context.Context, id, callerUID string, accept bool) error {
	if err := c.authorizeReceiver(ctx, id, callerUID); err != nil {
		return err
	}
	inv, err := c.invites.MarkResponded(ctx, id, accept)
	if err != nil {
		return err
	}
	if !accept {
		return nil
	}
	return c.profiles.AddFriend(ctx, inv.ReceiverUID, inv.SenderUID)
}

func (c *InvitationCoordinator) push(ctx context.Context, uid, title, body string) {
	if c.pusher == nil {
		return
	}
	if err := c.pusher.Send(ctx, uid, title, body); err != nil {
		c.log.Warn("push send failed", zap.String("uid", uid), zap.Error(err))
	}
}

func profileName(p *models.Profile) string {
	name := p.FirstName
	if p.LastName != "" {
		name += " " + p.LastName
	}
	return name
}
