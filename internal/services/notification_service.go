package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/repositories"
	"github.com/squadup/squadup/internal/state"
)

// 提示展示形态
const (
	PromptModal = "modal" // 单条弹窗
	PromptList  = "list"  // 多条同类通知合并成列表
)

// Prompt 待展示给用户的通知提示
type Prompt struct {
	Style         string                `json:"style"` // modal / list
	Title         string                `json:"title"`
	Notifications []models.Notification `json:"notifications"`
}

// Dismissal 关闭提示后的落点
type Dismissal struct {
	Navigate string `json:"navigate"` // group_select / discover
}

// NotificationDispatcher 通知分发服务：读取未读通知流，决定提示形态
// 与关闭后的导航落点。
type NotificationDispatcher struct {
	notifs   *repositories.NotificationRepository
	profiles *repositories.ProfileRepository
	log      *zap.Logger
}

// NewNotificationDispatcher 创建通知分发服务实例
func NewNotificationDispatcher(
	notifs *repositories.NotificationRepository,
	profiles *repositories.ProfileRepository,
	log *zap.Logger,
) *NotificationDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationDispatcher{notifs: notifs, profiles: profiles, log: log}
}

// Prompt 取用户当前应看到的提示。默认取最新一条未读做弹窗；
// 多条同时到达的解散通知合并成一个列表提示。没有未读返回 nil。
func (d *NotificationDispatcher) Prompt(ctx context.Context, uid string) (*Prompt, error) {
	unread, err := d.notifs.UnreadFor(ctx, uid)
	if err != nil {
		return nil, err
	}
	if len(unread) == 0 {
		return nil, nil
	}

	newest := unread[0]
	if newest.Type == models.NotifyDisband {
		batch := make([]models.Notification, 0, len(unread))
		for _, n := range unread {
			if n.Type == models.NotifyDisband {
				batch = append(batch, n)
			}
		}
		if len(batch) > 1 {
			return &Prompt{
				Style:         PromptList,
				Title:         fmt.Sprintf("%d of your groups were disbanded", len(batch)),
				Notifications: batch,
			}, nil
		}
	}
	return &Prompt{
		Style:         PromptModal,
		Title:         newest.Message,
		Notifications: []models.Notification{newest},
	}, nil
}

// Dismiss 逐条标记已读（按 ID 幂等），并根据剩余队伍成员身份给出落点：
// 还在任何队伍里回队伍选择页，否则回发现页。
func (d *NotificationDispatcher) Dismiss(ctx context.Context, uid string, ids []string) (*Dismissal, error) {
	for _, id := range ids {
		if err := d.notifs.MarkRead(ctx, id); err != nil {
			return nil, err
		}
	}

	profile, err := d.profiles.Get(ctx, uid)
	if err != nil {
		// 没有档案视同没有队伍
		d.log.Debug("dismiss: profile lookup failed, defaulting to discover",
			zap.String("uid", uid), zap.Error(err))
		return &Dismissal{Navigate: state.NavDiscover}, nil
	}
	if len(profile.Memberships) > 0 {
		return &Dismissal{Navigate: state.NavGroupSelect}, nil
	}
	return &Dismissal{Navigate: state.NavDiscover}, nil
}
