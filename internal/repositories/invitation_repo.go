package repositories

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/squadup/squadup/internal/apperrors"
	"github.com/squadup/squadup/internal/docstore"
	"github.com/squadup/squadup/internal/models"
)

// InvitationRepository 邀请仓储（文档库）
type InvitationRepository struct {
	store docstore.Store
}

// NewInvitationRepository 创建邀请仓储实例
func NewInvitationRepository(store docstore.Store) *InvitationRepository {
	return &InvitationRepository{store: store}
}

// Create 创建邀请
func (r *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	return r.store.Set(ctx, ColInvitations, inv.ID, inv)
}

// Get 根据ID获取邀请
func (r *InvitationRepository) Get(ctx context.Context, id string) (*models.Invitation, error) {
	var inv models.Invitation
	if err := r.store.Get(ctx, ColInvitations, id, &inv); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// MarkResponded 将邀请置为终态。邀请是单程的：
// 已经接受或拒绝过的邀请再次处理会返回 ErrAlreadyResponded。
func (r *InvitationRepository) MarkResponded(ctx context.Context, id string, accepted bool) (*models.Invitation, error) {
	var result models.Invitation
	err := r.store.Mutate(ctx, ColInvitations, id, func(current json.RawMessage) (any, error) {
		if current == nil {
			return nil, apperrors.ErrNotFound
		}
		var inv models.Invitation
		if err := json.Unmarshal(current, &inv); err != nil {
			return nil, err
		}
		if !inv.Pending() {
			return nil, apperrors.ErrAlreadyResponded
		}
		if accepted {
			inv.Status = models.InviteStatusAccepted
		} else {
			inv.Status = models.InviteStatusDeclined
		}
		result = inv
		return inv, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PendingForReceiver 查询某用户待处理的邀请（按创建时间升序，先到先显示）
func (r *InvitationRepository) PendingForReceiver(ctx context.Context, uid, kind string) ([]models.Invitation, error) {
	raws, err := r.store.Query(ctx, ColInvitations, docstore.Query{
		Filter:  pendingFilter(uid, kind),
		OrderBy: "created_at",
	})
	if err != nil {
		return nil, err
	}
	return decodeInvitations(raws)
}

// WatchPending 订阅某用户某类邀请的到达。先建立订阅再补发当前待处理的快照，
// 不会漏掉订阅期间到达的邀请；终态变更也会推送（status 不再是 pending）。
func (r *InvitationRepository) WatchPending(ctx context.Context, uid, kind string) (<-chan models.Invitation, func(), error) {
	events, cancel, err := r.store.WatchCollection(ctx, ColInvitations)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan models.Invitation, 16)
	go func() {
		defer close(out)

		backlog, err := r.PendingForReceiver(ctx, uid, kind)
		if err == nil {
			for _, inv := range backlog {
				select {
				case out <- inv:
				case <-ctx.Done():
					cancel()
					return
				}
			}
		}

		seen := make(map[string]bool, len(backlog))
		for _, inv := range backlog {
			seen[inv.ID] = true
		}

		for ev := range events {
			if ev.Deleted {
				continue
			}
			var inv models.Invitation
			if err := json.Unmarshal(ev.Data, &inv); err != nil {
				continue
			}
			if inv.ReceiverUID != uid || inv.Kind != kind {
				continue
			}
			if inv.Pending() && seen[inv.ID] {
				continue // already delivered from the backlog
			}
			seen[inv.ID] = inv.Pending()
			select {
			case out <- inv:
			case <-ctx.Done():
				cancel()
				return
			}
		}
	}()
	return out, cancel, nil
}

func pendingFilter(uid, kind string) map[string]any {
	return map[string]any{
		"receiver_uid": uid,
		"kind":         kind,
		"status":       models.InviteStatusPending,
	}
}

func decodeInvitations(raws []json.RawMessage) ([]models.Invitation, error) {
	out := make([]models.Invitation, 0, len(raws))
	for _, raw := range raws {
		var inv models.Invitation
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}
