package service

import (
	"context"
	"fmt"

	"token-gate-backend/internal/common/logger"
	"token-gate-backend/internal/features/membership/models"
)

// Notification event types.
const (
	NotifyConnect          = "connect"
	NotifyChangeWalletLow  = "change_wallet_low"
	NotifyChangeWalletHigh = "change_wallet_high"
	NotifyBan              = "ban"
	NotifyUnban            = "unban"
	NotifyBuy              = "buy"
	NotifySell             = "sell"
	NotifyBlacklist        = "blacklist"
)

// selfNotifyID is the operator account whose own transitions are not echoed
// back to the admin channel.
const selfNotifyID = 123671021

var notifyTitles = map[string]string{
	NotifyConnect:          "🔗 ПОДКЛЮЧЕНИЕ",
	NotifyChangeWalletLow:  "🔄❌ ЗАМЕНА КОШЕЛЬКА",
	NotifyChangeWalletHigh: "🔄✅ ЗАМЕНА КОШЕЛЬКА",
	NotifyBan:              "❌ БАН",
	NotifyUnban:            "✅ РАЗБАН",
	NotifyBuy:              "🟢 ПОКУПКА",
	NotifySell:             "🔴 ПРОДАЖА",
	NotifyBlacklist:        "🚫 ЧС",
}

// AdminNotifier formats and sends the audit message for every externally
// visible transition. Sends are best effort: a failure is logged and
// swallowed, never propagated into the reconciliation of a user.
type AdminNotifier struct {
	tg             TelegramAPI
	adminChannelID int64
}

func NewAdminNotifier(tg TelegramAPI, adminChannelID int64) *AdminNotifier {
	return &AdminNotifier{tg: tg, adminChannelID: adminChannelID}
}

// Notify sends the audit message for eventType. amount is only rendered for
// buy/sell events.
func (n *AdminNotifier) Notify(ctx context.Context, eventType string, user *models.User, amount int64) {
	if user.TelegramID == selfNotifyID {
		return
	}

	title, ok := notifyTitles[eventType]
	if !ok {
		logger.Warn().Str("type", eventType).Msg("Unknown admin notification type")
		return
	}

	boolSwitch := map[bool]string{true: "➕", false: "➖"}
	sumLine := ""
	if eventType == NotifyBuy || eventType == NotifySell {
		sumLine = fmt.Sprintf("Сумма: %d WON", amount)
	}
	text := fmt.Sprintf(
		"%s \n\n"+
			"C пресейла: %s\n"+
			"В ЧС: %s\n"+
			"Пользователь: @%s\n"+
			"Кошелек: <code>%s</code>\n"+
			"Баланс: %d WON\n"+
			"%s",
		title,
		boolSwitch[user.OG],
		boolSwitch[user.IsBlacklisted()],
		user.Username,
		user.Wallet,
		user.Balance,
		sumLine,
	)

	if err := n.tg.SendMessage(ctx, n.adminChannelID, text, nil); err != nil {
		logger.Error().Err(err).
			Str("type", eventType).
			Int64("tg_user_id", user.TelegramID).
			Msg("Failed to send admin notification")
	}
}
