package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"token-gate-backend/internal/features/membership/models"
	"token-gate-backend/internal/features/membership/repository"
	"token-gate-backend/internal/platform/telegram"
)

type sentMessage struct {
	chatID   int64
	text     string
	keyboard *telegram.InlineKeyboardMarkup
}

// fakeTelegram records every platform call and lets tests inject failures
// per method.
type fakeTelegram struct {
	mu sync.Mutex

	messages    []sentMessage
	banned      map[int64][]int64 // chatID -> userIDs
	unbanned    map[int64][]int64
	created     []string
	revoked     []string
	members     map[string]bool // "chatID:userID"
	linkCounter int

	sendErr   error
	banErr    error
	unbanErr  error
	createErr error
	revokeErr error
	memberErr error
}

func newFakeTelegram() *fakeTelegram {
	return &fakeTelegram{
		banned:   make(map[int64][]int64),
		unbanned: make(map[int64][]int64),
		members:  make(map[string]bool),
	}
}

func (f *fakeTelegram) SendMessage(_ context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages = append(f.messages, sentMessage{chatID: chatID, text: text, keyboard: kb})
	return nil
}

func (f *fakeTelegram) BanChatMember(_ context.Context, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.banErr != nil {
		return f.banErr
	}
	f.banned[chatID] = append(f.banned[chatID], userID)
	return nil
}

func (f *fakeTelegram) UnbanChatMember(_ context.Context, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unbanErr != nil {
		return f.unbanErr
	}
	f.unbanned[chatID] = append(f.unbanned[chatID], userID)
	return nil
}

func (f *fakeTelegram) CreateChatInviteLink(_ context.Context, chatID int64, _ string, _ int, _ time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.linkCounter++
	link := fmt.Sprintf("https://t.me/+link%d_%d", chatID, f.linkCounter)
	f.created = append(f.created, link)
	return link, nil
}

func (f *fakeTelegram) RevokeChatInviteLink(_ context.Context, _ int64, inviteLink string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revoked = append(f.revoked, inviteLink)
	return nil
}

func (f *fakeTelegram) IsChatMember(_ context.Context, chatID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memberErr != nil {
		return false, f.memberErr
	}
	return f.members[fmt.Sprintf("%d:%d", chatID, userID)], nil
}

func (f *fakeTelegram) setMember(chatID, userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[fmt.Sprintf("%d:%d", chatID, userID)] = true
}

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	mu sync.Mutex

	users   map[int64]*models.User // keyed by TelegramID
	history []models.HistoryEntry
	nextID  int64

	listErr   error
	updateErr error
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[int64]*models.User), nextID: 1}
	for _, u := range users {
		if u.ID == 0 {
			u.ID = r.nextID
			r.nextID++
		}
		r.users[u.TelegramID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = r.nextID
	r.nextID++
	copied := *user
	r.users[user.TelegramID] = &copied
	return user.ID, nil
}

func (r *fakeUserRepo) GetByTelegramID(_ context.Context, tgUserID int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[tgUserID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) List(_ context.Context) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *models.User, entry *models.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	copied := *user
	r.users[user.TelegramID] = &copied
	if entry != nil {
		r.history = append(r.history, *entry)
	}
	return nil
}

// fakeLists is a static ListChecker.
type fakeLists struct {
	ogs       map[string]bool
	blacklist map[string]bool
}

func (l *fakeLists) IsOG(username string) bool          { return l.ogs[username] }
func (l *fakeLists) IsBlacklisted(username string) bool { return l.blacklist[username] }

// fakeBalance maps wallet address to a fixed balance or error.
type fakeBalance struct {
	balances map[string]int64
	errs     map[string]error
	calls    int
}

func (b *fakeBalance) CombinedBalance(_ context.Context, wallet, _, _ string) (int64, error) {
	b.calls++
	if err, ok := b.errs[wallet]; ok {
		return -1, err
	}
	return b.balances[wallet], nil
}

// fakePrice returns a fixed spot price or error.
type fakePrice struct {
	price float64
	err   error
	calls int
}

func (p *fakePrice) SpotPrice(context.Context, string) (float64, error) {
	p.calls++
	if p.err != nil {
		return 0, p.err
	}
	return p.price, nil
}
