package handler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"token-gate-backend/internal/common/logger"
	"token-gate-backend/internal/features/connect/service"
	"token-gate-backend/internal/platform/telegram"
)

const pollTimeout = 30 * time.Second

// Handler long-polls bot updates and drives the connect conversation.
// It is thin presentation: all decisions live in the connect service and
// the membership core.
type Handler struct {
	tg         *telegram.Client
	svc        *service.Service
	webAppBase string
}

func NewHandler(tg *telegram.Client, svc *service.Service, webAppBase string) *Handler {
	return &Handler{tg: tg, svc: svc, webAppBase: webAppBase}
}

// Run polls updates until the context is cancelled.
func (h *Handler) Run(ctx context.Context) {
	logger.Info().Msg("Starting bot update loop")
	var offset int64

	for {
		if ctx.Err() != nil {
			logger.Info().Msg("Bot update loop stopped")
			return
		}

		updates, err := h.tg.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Failed to get updates")
			time.Sleep(time.Second)
			continue
		}

		for _, upd := range updates {
			offset = upd.UpdateID + 1
			h.dispatch(ctx, upd)
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, upd telegram.Update) {
	switch {
	case upd.Message != nil && upd.Message.Chat.Type == "private":
		h.onMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		h.onCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) onMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil || msg.Text != "/start" {
		return
	}
	h.sendConnectPrompt(ctx, msg.From.ID)
}

func (h *Handler) onCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if err := h.tg.AnswerCallbackQuery(ctx, cb.ID); err != nil {
		logger.Warn().Err(err).Msg("Failed to answer callback query")
	}
	if cb.Data == "reconnect" {
		h.sendConnectPrompt(ctx, cb.From.ID)
	}
}

func (h *Handler) sendConnectPrompt(ctx context.Context, userID int64) {
	payload, err := h.svc.GeneratePayload(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Int64("tg_user_id", userID).Msg("Failed to generate connect payload")
		return
	}

	text := "Подключите кошелек, чтобы подтвердить баланс WON."
	var kb *telegram.InlineKeyboardMarkup
	if h.webAppBase != "" {
		connectURL := fmt.Sprintf("%s?user_id=%d&payload=%s", h.webAppBase, userID, url.QueryEscape(payload))
		kb = &telegram.InlineKeyboardMarkup{
			InlineKeyboard: [][]telegram.InlineKeyboardButton{
				{{Text: "Подключить кошелек", URL: connectURL}},
			},
		}
	} else {
		text += fmt.Sprintf("\n\nКод подтверждения: <code>%s</code>", payload)
	}

	if err := h.tg.SendMessage(ctx, userID, text, kb); err != nil {
		logger.Error().Err(err).Int64("tg_user_id", userID).Msg("Failed to send connect prompt")
	}
}
