package service

import (
	"context"
	"time"

	"token-gate-backend/internal/platform/telegram"
)

// TelegramAPI is the messaging platform surface used by the gate.
// *telegram.Client satisfies it; tests substitute fakes.
type TelegramAPI interface {
	SendMessage(ctx context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) error
	BanChatMember(ctx context.Context, chatID, userID int64) error
	UnbanChatMember(ctx context.Context, chatID, userID int64) error
	CreateChatInviteLink(ctx context.Context, chatID int64, name string, memberLimit int, expireAt time.Time) (string, error)
	RevokeChatInviteLink(ctx context.Context, chatID int64, inviteLink string) error
	IsChatMember(ctx context.Context, chatID, userID int64) (bool, error)
}

// BalanceFetcher reads the combined jetton balance of a wallet. A transient
// oracle failure surfaces as tonbalance.ErrUnavailable, never as zero.
type BalanceFetcher interface {
	CombinedBalance(ctx context.Context, walletAddress, jettonMaster, lpJettonMaster string) (int64, error)
}

// PriceFetcher reads the jetton spot price, once per reconciliation pass.
type PriceFetcher interface {
	SpotPrice(ctx context.Context, jettonAddr string) (float64, error)
}

// ListChecker answers allow-list and deny-list membership for a username.
type ListChecker interface {
	IsOG(username string) bool
	IsBlacklisted(username string) bool
}
