package state

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/squadup/squadup/internal/apperrors"
	"github.com/squadup/squadup/internal/docstore"
	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/repositories"
)

// 状态更新类型
const (
	UpdateGroup   = "group"   // 当前队伍快照变更
	UpdateCleared = "cleared" // 本地状态已清空（主动退出或队伍删除）
	UpdateRemoved = "removed" // 被他人移出队伍
)

// 导航指令
const (
	NavGroupSelect = "group_select" // 队伍选择页
	NavDiscover    = "discover"     // 发现/广场页
)

// Update 推送给网关层的状态变更
type Update struct {
	Kind     string        `json:"kind"`
	Group    *models.Group `json:"group,omitempty"`
	Navigate string        `json:"navigate,omitempty"`
}

// GroupStore 持有单个会话的"当前队伍"视图。
// 同一时刻至多一个远端订阅；切换队伍先同步拆掉旧监听再挂新监听。
// 每个会话一个实例，通过 Manager 创建，不使用包级全局量。
type GroupStore struct {
	uid      string
	groups   *repositories.GroupRepository
	log      *zap.Logger
	tokenTTL time.Duration

	// transMu 串行化订阅的挂载与拆除。拆除要等监听协程退出，
	// 等待期间不能放开 mu 让并发 Subscribe 插进来挂新监听
	transMu sync.Mutex

	mu          sync.Mutex
	currentID   string
	current     *models.Group
	cancelWatch func()
	watchDone   chan struct{}
	departure   time.Time // 零值表示没有待消费的主动退出标记

	updates chan Update
}

// NewGroupStore 创建某用户会话的队伍状态容器
func NewGroupStore(uid string, groups *repositories.GroupRepository, log *zap.Logger, tokenTTL time.Duration) *GroupStore {
	if log == nil {
		log = zap.NewNop()
	}
	if tokenTTL <= 0 {
		tokenTTL = 15 * time.Second
	}
	return &GroupStore{
		uid:      uid,
		groups:   groups,
		log:      log,
		tokenTTL: tokenTTL,
		updates:  make(chan Update, 16),
	}
}

// Updates 返回推送通道，由网关层消费
func (s *GroupStore) Updates() <-chan Update {
	return s.updates
}

// Current 返回当前队伍快照（可能为 nil）
func (s *GroupStore) Current() (string, *models.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID, s.current
}

// Subscribe 订阅 groupID 的远端推送。已有订阅时先同步拆除，
// 保证不会出现两个监听争写同一份缓存。
func (s *GroupStore) Subscribe(ctx context.Context, groupID string) error {
	s.transMu.Lock()
	defer s.transMu.Unlock()

	s.teardown()

	events, cancel, err := s.groups.Watch(ctx, groupID)
	if err != nil {
		return err
	}
	done := make(chan struct{})
	s.mu.Lock()
	s.currentID = groupID
	s.current = nil
	s.cancelWatch = cancel
	s.watchDone = done
	s.mu.Unlock()

	go s.watchLoop(groupID, events, cancel, done)
	return nil
}

// Unsubscribe 拆除当前订阅并清空本地状态
func (s *GroupStore) Unsubscribe() {
	s.transMu.Lock()
	defer s.transMu.Unlock()
	s.teardown()
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
}

// SetGroup 直接写入本地缓存（乐观更新等场景）
func (s *GroupStore) SetGroup(g *models.Group) {
	s.mu.Lock()
	s.current = g
	if g != nil {
		s.currentID = g.ID
	}
	s.mu.Unlock()
	s.emit(Update{Kind: UpdateGroup, Group: g})
}

// ClearGroup 清空本地缓存
func (s *GroupStore) ClearGroup() {
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
	s.emit(Update{Kind: UpdateCleared})
}

// MarkSelfDeparture 在发起主动退出的变更之前调用。
// 标记是一次性的且带有效期：监听回调看到自己不在成员里时消费掉它，
// 不再弹"被移除"提示；过期未消费则按被移除处理。
func (s *GroupStore) MarkSelfDeparture() {
	s.mu.Lock()
	s.departure = time.Now().Add(s.tokenTTL)
	s.mu.Unlock()
}

// Close 关闭状态容器（登出/断连时调用），保证监听不泄漏
func (s *GroupStore) Close() {
	s.transMu.Lock()
	defer s.transMu.Unlock()
	s.teardown()
}

// watchLoop 消费单个队伍的推送流，直到订阅被拆除或成员资格终止
func (s *GroupStore) watchLoop(groupID string, events <-chan docstore.Event, cancel func(), done chan struct{}) {
	defer close(done)
	defer cancel()

	for ev := range events {
		if ev.Deleted {
			// 队伍已删除（解散）。解散提示走通知流，这里只清状态。
			s.mu.Lock()
			s.clearLocked()
			s.mu.Unlock()
			s.emit(Update{Kind: UpdateCleared, Navigate: NavGroupSelect})
			return
		}

		g, verr := decodeGroup(ev.Data)
		if verr != nil {
			// 多步事务中途的半成品文档：记日志丢弃，绝不发布给下游
			s.log.Warn("dropping invalid group snapshot",
				zap.String("group_id", groupID),
				zap.String("uid", s.uid),
				zap.Error(verr))
			continue
		}

		if !containsUID(g.MemberUIDs, s.uid) {
			selfInitiated := s.consumeDeparture()
			s.mu.Lock()
			s.clearLocked()
			s.mu.Unlock()
			if selfInitiated {
				// 自己发起的退出，静默清空即可
				s.emit(Update{Kind: UpdateCleared, Navigate: NavGroupSelect})
			} else {
				// 外因导致的成员资格终止，只提示这一次
				s.emit(Update{Kind: UpdateRemoved, Navigate: NavGroupSelect})
			}
			return
		}

		s.mu.Lock()
		if s.currentID != groupID {
			// 订阅已切换，本条快照作废
			s.mu.Unlock()
			return
		}
		s.current = g
		s.mu.Unlock()
		s.emit(Update{Kind: UpdateGroup, Group: g})
	}
}

// teardown 同步拆除当前监听并等待监听协程退出。调用方须持有 transMu；
// 等待期间不占 mu，监听协程收尾写状态时仍能取到锁
func (s *GroupStore) teardown() {
	s.mu.Lock()
	cancel, done := s.cancelWatch, s.watchDone
	s.cancelWatch = nil
	s.watchDone = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *GroupStore) clearLocked() {
	s.current = nil
	s.currentID = ""
}

func (s *GroupStore) consumeDeparture() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.departure.IsZero() {
		return false
	}
	valid := time.Now().Before(s.departure)
	s.departure = time.Time{}
	return valid
}

func (s *GroupStore) emit(u Update) {
	select {
	case s.updates <- u:
	default:
		// 消费方积压时丢弃最旧的一条，保住最新状态
		select {
		case <-s.updates:
		default:
		}
		select {
		case s.updates <- u:
		default:
		}
	}
}

// decodeGroup 按必填字段校验远端快照
func decodeGroup(data json.RawMessage) (*models.Group, error) {
	var g models.Group
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, &apperrors.ValidationError{Collection: repositories.ColGroups, Fields: []string{"(malformed json)"}}
	}
	var missing []string
	if g.ID == "" {
		missing = append(missing, "id")
	}
	if g.Activity == "" {
		missing = append(missing, "activity")
	}
	if g.Title == "" {
		missing = append(missing, "title")
	}
	if g.MemberLimit <= 0 {
		missing = append(missing, "member_limit")
	}
	if g.CreatedBy == "" {
		missing = append(missing, "created_by")
	}
	if g.MemberUIDs == nil {
		missing = append(missing, "member_uids")
	}
	if len(g.Members) != len(g.MemberUIDs) {
		missing = append(missing, "members")
	}
	if len(missing) > 0 {
		return nil, &apperrors.ValidationError{Collection: repositories.ColGroups, ID: g.ID, Fields: missing}
	}
	return &g, nil
}

func containsUID(uids []string, uid string) bool {
	for _, u := range uids {
		if u == uid {
			return true
		}
	}
	return false
}
