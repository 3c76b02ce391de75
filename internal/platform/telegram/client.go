package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Client provides the Telegram Bot API operations used by the gate:
// messaging, ban/unban, invite link lifecycle and long polling.
type Client struct {
	httpClient *http.Client
	apiBase    string
	token      string
}

func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 35 * time.Second},
		apiBase:    defaultAPIBase,
		token:      token,
	}
}

// NewClientWithBase overrides the API base URL, used in tests.
func NewClientWithBase(token, base string) *Client {
	c := NewClient(token)
	c.apiBase = strings.TrimRight(base, "/")
	return c
}

// APIError представляет ошибку Telegram Bot API
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error %d: %s", e.Code, e.Description)
}

// AsAPIError возвращает APIError, если ошибка пришла от Telegram API
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

type tgResponse[T any] struct {
	Ok          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Result      T      `json:"result"`
}

type chatInviteLink struct {
	InviteLink string `json:"invite_link"`
	IsRevoked  bool   `json:"is_revoked"`
}

type chatMember struct {
	Status string `json:"status"`
	User   User   `json:"user"`
}

// User is the Telegram user object subset used by the bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message"`
	Data    string   `json:"data"`
}

type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

// InlineKeyboardButton is a button of an inline keyboard. Exactly one of
// URL or CallbackData must be set.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// SendMessage sends an HTML-formatted message, optionally with an inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, kb *InlineKeyboardMarkup) error {
	params := url.Values{
		"chat_id":    {strconv.FormatInt(chatID, 10)},
		"text":       {text},
		"parse_mode": {"HTML"},
	}
	if kb != nil {
		data, err := json.Marshal(kb)
		if err != nil {
			return fmt.Errorf("marshal keyboard: %w", err)
		}
		params.Set("reply_markup", string(data))
	}
	if _, err := call[Message](ctx, c, "sendMessage", params); err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	return nil
}

// BanChatMember removes the user from the chat and prevents rejoining.
// Banning an already banned member is a no-op on the Telegram side.
func (c *Client) BanChatMember(ctx context.Context, chatID, userID int64) error {
	params := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"user_id": {strconv.FormatInt(userID, 10)},
	}
	if _, err := call[bool](ctx, c, "banChatMember", params); err != nil {
		return fmt.Errorf("banChatMember: %w", err)
	}
	return nil
}

// UnbanChatMember lifts a ban. only_if_banned keeps the call idempotent:
// a present member is not kicked by the unban.
func (c *Client) UnbanChatMember(ctx context.Context, chatID, userID int64) error {
	params := url.Values{
		"chat_id":        {strconv.FormatInt(chatID, 10)},
		"user_id":        {strconv.FormatInt(userID, 10)},
		"only_if_banned": {"true"},
	}
	if _, err := call[bool](ctx, c, "unbanChatMember", params); err != nil {
		return fmt.Errorf("unbanChatMember: %w", err)
	}
	return nil
}

// CreateChatInviteLink issues a fresh invite link. memberLimit=1 makes the
// link single-use; expireAt bounds its lifetime.
func (c *Client) CreateChatInviteLink(ctx context.Context, chatID int64, name string, memberLimit int, expireAt time.Time) (string, error) {
	params := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
	}
	if name != "" {
		params.Set("name", name)
	}
	if memberLimit > 0 {
		params.Set("member_limit", strconv.Itoa(memberLimit))
	}
	if !expireAt.IsZero() {
		params.Set("expire_date", strconv.FormatInt(expireAt.Unix(), 10))
	}
	link, err := call[chatInviteLink](ctx, c, "createChatInviteLink", params)
	if err != nil {
		return "", fmt.Errorf("createChatInviteLink: %w", err)
	}
	return link.InviteLink, nil
}

// RevokeChatInviteLink revokes a previously issued invite link.
func (c *Client) RevokeChatInviteLink(ctx context.Context, chatID int64, inviteLink string) error {
	params := url.Values{
		"chat_id":     {strconv.FormatInt(chatID, 10)},
		"invite_link": {inviteLink},
	}
	if _, err := call[chatInviteLink](ctx, c, "revokeChatInviteLink", params); err != nil {
		return fmt.Errorf("revokeChatInviteLink: %w", err)
	}
	return nil
}

// IsChatMember reports whether the user currently participates in the chat.
func (c *Client) IsChatMember(ctx context.Context, chatID, userID int64) (bool, error) {
	params := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"user_id": {strconv.FormatInt(userID, 10)},
	}
	member, err := call[chatMember](ctx, c, "getChatMember", params)
	if err != nil {
		return false, fmt.Errorf("getChatMember: %w", err)
	}
	switch member.Status {
	case "creator", "administrator", "member":
		return true, nil
	}
	return false, nil
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := url.Values{
		"offset":  {strconv.FormatInt(offset, 10)},
		"timeout": {strconv.Itoa(int(timeout.Seconds()))},
	}
	updates, err := call[[]Update](ctx, c, "getUpdates", params)
	if err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}
	return updates, nil
}

// AnswerCallbackQuery acknowledges a callback query.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error {
	params := url.Values{"callback_query_id": {callbackQueryID}}
	if _, err := call[bool](ctx, c, "answerCallbackQuery", params); err != nil {
		return fmt.Errorf("answerCallbackQuery: %w", err)
	}
	return nil
}

func call[T any](ctx context.Context, c *Client, method string, data url.Values) (T, error) {
	var zero T
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return zero, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	var result tgResponse[T]
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return zero, fmt.Errorf("decode response: %w", err)
	}
	if !result.Ok {
		return zero, &APIError{Code: result.ErrorCode, Description: result.Description}
	}
	return result.Result, nil
}
