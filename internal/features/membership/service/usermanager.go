package service

import (
	"context"
	"fmt"
	"time"

	"token-gate-backend/internal/common/logger"
	"token-gate-backend/internal/features/membership/models"
	"token-gate-backend/internal/features/membership/repository"
)

// inviteLinkTTL bounds the lifetime of issued invite links.
const inviteLinkTTL = 24 * time.Hour

// UserManager applies membership side effects against Telegram and the user
// store. All operations are idempotent at the effect level: banning an
// already banned member and revoking a consumed link are tolerated, so a
// transition interrupted between the platform call and the store write is
// simply re-applied on the next pass.
type UserManager struct {
	tg       TelegramAPI
	repo     repository.UserRepository
	notifier *AdminNotifier

	chatID    int64
	channelID int64

	now func() time.Time
}

func NewUserManager(tg TelegramAPI, repo repository.UserRepository, notifier *AdminNotifier, chatID, channelID int64) *UserManager {
	return &UserManager{
		tg:        tg,
		repo:      repo,
		notifier:  notifier,
		chatID:    chatID,
		channelID: channelID,
		now:       time.Now,
	}
}

// Ban removes the user from both gated chats, revokes any live invite links
// and persists the user together with the history entry. notifyType selects
// the admin audit message (ban or blacklist).
func (m *UserManager) Ban(ctx context.Context, user *models.User, entry *models.HistoryEntry, notifyType string) (*models.User, error) {
	if err := m.tg.BanChatMember(ctx, m.chatID, user.TelegramID); err != nil {
		return nil, fmt.Errorf("ban in chat: %w", err)
	}
	if err := m.tg.BanChatMember(ctx, m.channelID, user.TelegramID); err != nil {
		return nil, fmt.Errorf("ban in channel: %w", err)
	}
	m.revokeLink(ctx, m.chatID, user.InviteLink)
	m.revokeLink(ctx, m.channelID, user.ChannelInviteLink)

	if !user.IsBlacklisted() {
		user.State = models.StateBanned
	}
	user.InviteLink = nil
	user.ChannelInviteLink = nil

	if err := m.repo.Update(ctx, user, entry); err != nil {
		return nil, fmt.Errorf("persist ban: %w", err)
	}

	m.notifier.Notify(ctx, notifyType, user, 0)
	return user, nil
}

// Unban lifts the ban in both gated chats, issues fresh single-use invite
// links and persists the user together with the history entry.
func (m *UserManager) Unban(ctx context.Context, user *models.User, entry *models.HistoryEntry) (*models.User, error) {
	if err := m.tg.UnbanChatMember(ctx, m.chatID, user.TelegramID); err != nil {
		return nil, fmt.Errorf("unban in chat: %w", err)
	}
	if err := m.tg.UnbanChatMember(ctx, m.channelID, user.TelegramID); err != nil {
		return nil, fmt.Errorf("unban in channel: %w", err)
	}

	// Issued tokens are never reused: drop whatever the user still holds
	// and request fresh ones.
	m.revokeLink(ctx, m.chatID, user.InviteLink)
	m.revokeLink(ctx, m.channelID, user.ChannelInviteLink)
	user.InviteLink = nil
	user.ChannelInviteLink = nil

	expireAt := m.now().Add(inviteLinkTTL)
	chatLink, err := m.tg.CreateChatInviteLink(ctx, m.chatID, user.Username, 1, expireAt)
	if err != nil {
		return nil, fmt.Errorf("create chat invite link: %w", err)
	}
	channelLink, err := m.tg.CreateChatInviteLink(ctx, m.channelID, user.Username, 1, expireAt)
	if err != nil {
		return nil, fmt.Errorf("create channel invite link: %w", err)
	}

	user.State = models.StateActive
	user.InviteLink = &chatLink
	user.ChannelInviteLink = &channelLink

	if err := m.repo.Update(ctx, user, entry); err != nil {
		return nil, fmt.Errorf("persist unban: %w", err)
	}

	m.notifier.Notify(ctx, NotifyUnban, user, 0)
	return user, nil
}

// RevokeStaleLinks drops invite link references the user no longer needs:
// a link is stale once the user has actually joined the chat it points to.
// No history entry and no admin notification are produced.
func (m *UserManager) RevokeStaleLinks(ctx context.Context, user *models.User) (*models.User, error) {
	changed := false

	if user.InviteLink != nil {
		member, err := m.tg.IsChatMember(ctx, m.chatID, user.TelegramID)
		if err != nil {
			return nil, fmt.Errorf("check chat membership: %w", err)
		}
		if member {
			m.revokeLink(ctx, m.chatID, user.InviteLink)
			user.InviteLink = nil
			changed = true
		}
	}
	if user.ChannelInviteLink != nil {
		member, err := m.tg.IsChatMember(ctx, m.channelID, user.TelegramID)
		if err != nil {
			return nil, fmt.Errorf("check channel membership: %w", err)
		}
		if member {
			m.revokeLink(ctx, m.channelID, user.ChannelInviteLink)
			user.ChannelInviteLink = nil
			changed = true
		}
	}

	if changed {
		if err := m.repo.Update(ctx, user, nil); err != nil {
			return nil, fmt.Errorf("persist link revocation: %w", err)
		}
	}
	return user, nil
}

// IssueInviteLinks creates fresh single-use links for both gated chats
// without touching membership state. Used by the connect flow.
func (m *UserManager) IssueInviteLinks(ctx context.Context, user *models.User) (*models.User, error) {
	expireAt := m.now().Add(inviteLinkTTL)
	chatLink, err := m.tg.CreateChatInviteLink(ctx, m.chatID, user.Username, 1, expireAt)
	if err != nil {
		return nil, fmt.Errorf("create chat invite link: %w", err)
	}
	channelLink, err := m.tg.CreateChatInviteLink(ctx, m.channelID, user.Username, 1, expireAt)
	if err != nil {
		return nil, fmt.Errorf("create channel invite link: %w", err)
	}
	user.InviteLink = &chatLink
	user.ChannelInviteLink = &channelLink
	return user, nil
}

// revokeLink is a tolerated no-op for nil links and already revoked tokens.
func (m *UserManager) revokeLink(ctx context.Context, chatID int64, link *string) {
	if link == nil || *link == "" {
		return
	}
	if err := m.tg.RevokeChatInviteLink(ctx, chatID, *link); err != nil {
		logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to revoke invite link")
	}
}
