package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadup/squadup/internal/apperrors"
	"github.com/squadup/squadup/internal/docstore"
	"github.com/squadup/squadup/internal/models"
)

func setupInvitationRepo(t *testing.T) *InvitationRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := docstore.New(client)
	t.Cleanup(func() { store.Close() })
	return NewInvitationRepository(store)
}

func pendingInvite(id, receiver, kind string, age time.Duration) *models.Invitation {
	return &models.Invitation{
		ID:          id,
		Kind:        kind,
		SenderUID:   "sender",
		SenderName:  "Sender",
		ReceiverUID: receiver,
		Status:      models.InviteStatusPending,
		CreatedAt:   time.Now().UTC().Add(-age),
	}
}

func TestMarkRespondedIsOneWay(t *testing.T) {
	repo := setupInvitationRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, pendingInvite("i1", "amy", models.InviteKindGroup, 0)))

	inv, err := repo.MarkResponded(ctx, "i1", true)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusAccepted, inv.Status)

	_, err = repo.MarkResponded(ctx, "i1", false)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyResponded)

	_, err = repo.MarkResponded(ctx, "missing", true)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPendingForReceiverOrdersOldestFirst(t *testing.T) {
	repo := setupInvitationRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, pendingInvite("new", "amy", models.InviteKindGroup, time.Minute)))
	require.NoError(t, repo.Create(ctx, pendingInvite("old", "amy", models.InviteKindGroup, time.Hour)))
	require.NoError(t, repo.Create(ctx, pendingInvite("other-kind", "amy", models.InviteKindParty, 0)))
	require.NoError(t, repo.Create(ctx, pendingInvite("other-user", "bob", models.InviteKindGroup, 0)))

	pending, err := repo.PendingForReceiver(ctx, "amy", models.InviteKindGroup)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "old", pending[0].ID)
	assert.Equal(t, "new", pending[1].ID)
}

func TestWatchPendingBacklogThenLive(t *testing.T) {
	repo := setupInvitationRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, repo.Create(ctx, pendingInvite("backlog", "amy", models.InviteKindGroup, time.Minute)))

	ch, stop, err := repo.WatchPending(ctx, "amy", models.InviteKindGroup)
	require.NoError(t, err)
	defer stop()

	// 积压的先补发
	inv := waitInv(t, ch)
	assert.Equal(t, "backlog", inv.ID)

	// 新到的跟着推，无关的被过滤
	require.NoError(t, repo.Create(ctx, pendingInvite("noise", "bob", models.InviteKindGroup, 0)))
	require.NoError(t, repo.Create(ctx, pendingInvite("live", "amy", models.InviteKindGroup, 0)))

	inv = waitInv(t, ch)
	assert.Equal(t, "live", inv.ID)

	// 终态变更也推送
	_, err = repo.MarkResponded(ctx, "backlog", false)
	require.NoError(t, err)

	inv = waitInv(t, ch)
	assert.Equal(t, "backlog", inv.ID)
	assert.Equal(t, models.InviteStatusDeclined, inv.Status)
}

func waitInv(t *testing.T, ch <-chan models.Invitation) models.Invitation {
	t.Helper()
	select {
	case inv := <-ch:
		return inv
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for invitation")
		return models.Invitation{}
	}
}
