package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-gate-backend/internal/features/membership/models"
)

const (
	testChatID    int64 = -100200
	testChannelID int64 = -100300
	testAdminID   int64 = -100400
)

func newTestManager(tg *fakeTelegram, repo *fakeUserRepo) *UserManager {
	notifier := NewAdminNotifier(tg, testAdminID)
	return NewUserManager(tg, repo, notifier, testChatID, testChannelID)
}

func TestBanRemovesFromBothChatsAndPersists(t *testing.T) {
	tg := newFakeTelegram()
	user := &models.User{TelegramID: 42, Username: "holder", Wallet: "EQwallet", Balance: 900, State: models.StateActive}
	repo := newFakeUserRepo(user)
	manager := newTestManager(tg, repo)

	entry := models.NewHistoryEntry(user.ID, -600, 0.5, user.Wallet)
	updated, err := manager.Ban(context.Background(), user, entry, NotifyBan)
	require.NoError(t, err)

	assert.Equal(t, models.StateBanned, updated.State)
	assert.Nil(t, updated.InviteLink)
	assert.Nil(t, updated.ChannelInviteLink)
	assert.Equal(t, []int64{42}, tg.banned[testChatID])
	assert.Equal(t, []int64{42}, tg.banned[testChannelID])

	stored, err := repo.GetByTelegramID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, models.StateBanned, stored.State)
	require.Len(t, repo.history, 1)
	assert.Equal(t, int64(-600), repo.history[0].BalanceDelta)
}

func TestBanKeepsBlacklistedState(t *testing.T) {
	tg := newFakeTelegram()
	user := &models.User{TelegramID: 42, Username: "banned_guy", State: models.StateBlacklisted}
	repo := newFakeUserRepo(user)
	manager := newTestManager(tg, repo)

	updated, err := manager.Ban(context.Background(), user, models.NewHistoryEntry(user.ID, 0, 0, ""), NotifyBlacklist)
	require.NoError(t, err)
	assert.Equal(t, models.StateBlacklisted, updated.State)
}

func TestBanRevokesLiveLinks(t *testing.T) {
	tg := newFakeTelegram()
	user := &models.User{
		TelegramID:        42,
		State:             models.StateActive,
		InviteLink:        strPtr("https://t.me/+old1"),
		ChannelInviteLink: strPtr("https://t.me/+old2"),
	}
	repo := newFakeUserRepo(user)
	manager := newTestManager(tg, repo)

	_, err := manager.Ban(context.Background(), user, models.NewHistoryEntry(user.ID, 0, 0, ""), NotifyBan)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://t.me/+old1", "https://t.me/+old2"}, tg.revoked)
}

func TestBanPlatformFailureDoesNotPersist(t *testing.T) {
	tg := newFakeTelegram()
	tg.banErr = errors.New("telegram down")
	user := &models.User{TelegramID: 42, State: models.StateActive}
	repo := newFakeUserRepo(user)
	manager := newTestManager(tg, repo)

	_, err := manager.Ban(context.Background(), user, models.NewHistoryEntry(user.ID, 0, 0, ""), NotifyBan)
	require.Error(t, err)

	stored, err := repo.GetByTelegramID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, models.StateActive, stored.State)
	assert.Empty(t, repo.history)
}

func TestUnbanIssuesTwoDistinctLinks(t *testing.T) {
	tg := newFakeTelegram()
	user := &models.User{TelegramID: 42, Username: "holder", Wallet: "EQwallet", State: models.StateBanned}
	repo := newFakeUserRepo(user)
	manager := newTestManager(tg, repo)

	updated, err := manager.Unban(context.Background(), user, models.NewHistoryEntry(user.ID, 700, 0.5, user.Wallet))
	require.NoError(t, err)

	assert.Equal(t, models.StateActive, updated.State)
	require.NotNil(t, updated.InviteLink)
	require.NotNil(t, updated.ChannelInviteLink)
	assert.NotEqual(t, *updated.InviteLink, *updated.ChannelInviteLink)
	assert.Equal(t, []int64{42}, tg.unbanned[testChatID])
	assert.Equal(t, []int64{42}, tg.unbanned[testChannelID])
	assert.Len(t, tg.created, 2)
}

func TestUnbanDropsOldLinksBeforeIssuingNew(t *testing.T) {
	tg := newFakeTelegram()
	user := &models.User{
		TelegramID:        42,
		State:             models.StateBanned,
		InviteLink:        strPtr("https://t.me/+stale1"),
		ChannelInviteLink: strPtr("https://t.me/+stale2"),
	}
	repo := newFakeUserRepo(user)
	manager := newTestManager(tg, repo)

	updated, err := manager.Unban(context.Background(), user, models.NewHistoryEntry(user.ID, 0, 0, ""))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"https://t.me/+stale1", "https://t.me/+stale2"}, tg.revoked)
	assert.NotEqual(t, "https://t.me/+stale1", *updated.InviteLink)
}

func TestUnbanLinkCreationFailureDoesNotPersist(t *testing.T) {
	tg := newFakeTelegram()
	tg.createErr = errors.New("rights revoked")
	user := &models.User{TelegramID: 42, State: models.StateBanned}
	repo := newFakeUserRepo(user)
	manager := newTestManager(tg, repo)

	_, err := manager.Unban(context.Background(), user, models.NewHistoryEntry(user.ID, 0, 0, ""))
	require.Error(t, err)

	stored, err := repo.GetByTelegramID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, models.StateBanned, stored.State)
}

func TestRevokeStaleLinksOnlyAfterJoin(t *testing.T) {
	tg := newFakeTelegram()
	user := &models.User{
		TelegramID:        42,
		State:             models.StateActive,
		InviteLink:        strPtr("https://t.me/+chat"),
		ChannelInviteLink: strPtr("https://t.me/+channel"),
	}
	repo := newFakeUserRepo(user)
	manager := newTestManager(tg, repo)

	// Not a member anywhere yet: links stay.
	updated, err := manager.RevokeStaleLinks(context.Background(), user)
	require.NoError(t, err)
	assert.NotNil(t, updated.InviteLink)
	assert.NotNil(t, updated.ChannelInviteLink)
	assert.Empty(t, tg.revoked)

	// Joined the chat but not the channel: only the chat link goes.
	tg.setMember(testChatID, 42)
	updated, err = manager.RevokeStaleLinks(context.Background(), user)
	require.NoError(t, err)
	assert.Nil(t, updated.InviteLink)
	assert.NotNil(t, updated.ChannelInviteLink)
	assert.Equal(t, []string{"https://t.me/+chat"}, tg.revoked)

	stored, err := repo.GetByTelegramID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, stored.InviteLink)
}

func TestRevokeStaleLinksNoLinksIsNoOp(t *testing.T) {
	tg := newFakeTelegram()
	user := &models.User{TelegramID: 42, State: models.StateActive}
	repo := newFakeUserRepo(user)
	manager := newTestManager(tg, repo)

	_, err := manager.RevokeStaleLinks(context.Background(), user)
	require.NoError(t, err)
	assert.Empty(t, tg.revoked)
	assert.Empty(t, repo.history)
}

func TestIssueInviteLinks(t *testing.T) {
	tg := newFakeTelegram()
	user := &models.User{TelegramID: 42, Username: "newcomer", State: models.StateActive}
	manager := newTestManager(tg, newFakeUserRepo())

	updated, err := manager.IssueInviteLinks(context.Background(), user)
	require.NoError(t, err)
	require.NotNil(t, updated.InviteLink)
	require.NotNil(t, updated.ChannelInviteLink)
	assert.Len(t, tg.created, 2)
}
