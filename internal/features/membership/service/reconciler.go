package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"token-gate-backend/internal/common/logger"
	"token-gate-backend/internal/features/membership/models"
	"token-gate-backend/internal/features/membership/repository"
	"token-gate-backend/internal/service/tonbalance"
)

const (
	// pacingEvery / pacingDelay throttle balance oracle calls: after every
	// 99 processed users the pass sleeps for a second.
	pacingEvery = 99
	pacingDelay = time.Second
)

// RunStats describes the outcome of one reconciliation pass.
type RunStats struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Price      float64   `json:"price"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
}

// Reconciler drives the periodic balance-gated membership pass: load all
// users, take one price snapshot, then walk users sequentially applying the
// state machine and its side effects. A failure of a single user never
// aborts the pass; a failure to load users or price the pass aborts it.
type Reconciler struct {
	repo     repository.UserRepository
	balance  BalanceFetcher
	price    PriceFetcher
	lists    ListChecker
	machine  *StateMachine
	manager  *UserManager
	notifier *AdminNotifier
	tg       TelegramAPI

	jettonAddr   string
	lpJettonAddr string
	interval     time.Duration

	// running guards against overlapping passes: a tick that fires while a
	// pass is in flight is skipped, not queued.
	running atomic.Bool

	sleep func(ctx context.Context, d time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	lastRun *RunStats
}

func NewReconciler(
	repo repository.UserRepository,
	balance BalanceFetcher,
	price PriceFetcher,
	lists ListChecker,
	machine *StateMachine,
	manager *UserManager,
	notifier *AdminNotifier,
	tg TelegramAPI,
	jettonAddr, lpJettonAddr string,
	interval time.Duration,
) *Reconciler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		repo:         repo,
		balance:      balance,
		price:        price,
		lists:        lists,
		machine:      machine,
		manager:      manager,
		notifier:     notifier,
		tg:           tg,
		jettonAddr:   jettonAddr,
		lpJettonAddr: lpJettonAddr,
		interval:     interval,
		sleep:        sleepCtx,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the periodic reconciliation ticker.
func (r *Reconciler) Start() {
	logger.Info().Dur("interval", r.interval).Msg("Starting membership reconciler")
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if !r.running.CompareAndSwap(false, true) {
					logger.Warn().Msg("Previous reconciliation pass still running, skipping tick")
					continue
				}
				if err := r.RunOnce(r.ctx); err != nil {
					logger.Error().Err(err).Msg("Reconciliation pass aborted")
				}
				r.running.Store(false)
			case <-r.ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the ticker and waits for an in-flight pass to finish.
func (r *Reconciler) Stop() {
	logger.Info().Msg("Stopping membership reconciler")
	r.cancel()
	r.wg.Wait()
	logger.Info().Msg("Membership reconciler stopped")
}

// LastRun returns stats of the most recently finished pass.
func (r *Reconciler) LastRun() (RunStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastRun == nil {
		return RunStats{}, false
	}
	return *r.lastRun, true
}

// RunOnce executes a single reconciliation pass over all known users.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	stats := RunStats{RunID: uuid.NewString(), StartedAt: time.Now()}
	defer func() {
		stats.FinishedAt = time.Now()
		r.mu.Lock()
		r.lastRun = &stats
		r.mu.Unlock()
	}()

	users, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	// One shared snapshot keeps all deltas within a pass comparable and
	// bounds price oracle load.
	price, err := r.price.SpotPrice(ctx, r.jettonAddr)
	if err != nil {
		return fmt.Errorf("fetch price: %w", err)
	}
	stats.Price = price

	logger.Debug().
		Str("run_id", stats.RunID).
		Int("users", len(users)).
		Float64("price", price).
		Msg("Reconciliation pass started")

	counter := 0
	for i := range users {
		user := &users[i]

		processed, err := r.processUser(ctx, stats.RunID, user, price)
		switch {
		case err != nil:
			stats.Failed++
			logger.Error().Err(err).
				Str("run_id", stats.RunID).
				Int64("tg_user_id", user.TelegramID).
				Str("username", user.Username).
				Msg("Failed to reconcile user")
		case processed:
			stats.Processed++
		default:
			stats.Skipped++
		}

		if processed {
			counter++
			if counter%pacingEvery == 0 {
				if err := r.sleep(ctx, pacingDelay); err != nil {
					return err
				}
			}
		}
	}

	logger.Info().
		Str("run_id", stats.RunID).
		Int("processed", stats.Processed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Reconciliation pass finished")
	return nil
}

// processUser applies the transition table to one user. The returned bool
// reports whether the user counted against the oracle pacing budget.
func (r *Reconciler) processUser(ctx context.Context, runID string, user *models.User, price float64) (bool, error) {
	facts := Facts{
		Blacklisted: r.lists.IsBlacklisted(user.Username),
		OG:          r.lists.IsOG(user.Username),
	}
	user.OG = facts.OG

	// The deny-list outcomes are decidable before touching the balance
	// oracle, so evaluate the table once without balance facts first.
	switch d := r.machine.Decide(user, facts); d.Kind {
	case ActionSkipBlacklisted:
		return false, nil
	case ActionBlacklist:
		user.State = models.StateBlacklisted
		entry := models.NewHistoryEntry(user.ID, 0, 0, user.Wallet)
		if _, err := r.manager.Ban(ctx, user, entry, NotifyBlacklist); err != nil {
			return false, err
		}
		return false, nil
	}

	balance, err := r.balance.CombinedBalance(ctx, user.Wallet, r.jettonAddr, r.lpJettonAddr)
	switch {
	case errors.Is(err, tonbalance.ErrUnavailable):
		logger.Debug().
			Str("run_id", runID).
			Int64("tg_user_id", user.TelegramID).
			Msg("Balance unavailable, deferring user to next pass")
	case err != nil:
		return false, fmt.Errorf("fetch balance: %w", err)
	default:
		facts.BalanceKnown = true
		facts.Balance = balance
	}

	d := r.machine.Decide(user, facts)
	entry := models.NewHistoryEntry(user.ID, d.Delta, price, user.Wallet)

	switch d.Kind {
	case ActionSkipUnknownBalance:
		return false, nil

	case ActionBan:
		user.Balance = facts.Balance
		if _, err := r.manager.Ban(ctx, user, entry, NotifyBan); err != nil {
			return true, err
		}
		text := fmt.Sprintf(
			"Мало WON на кошельке <code>%s</code>\n\n"+
				"Убрали вас из коммьюнити.\n\n"+
				"Пополните баланс чтобы вернуться. Надо не меньше <code>%d</code> WON",
			user.Wallet, d.Threshold)
		if err := r.tg.SendMessage(ctx, user.TelegramID, text, BuyKeyboard(r.jettonAddr, d.Threshold, price)); err != nil {
			return true, fmt.Errorf("notify banned user: %w", err)
		}
		return true, nil

	case ActionUnban:
		user.Balance = facts.Balance
		if _, err := r.manager.Unban(ctx, user, entry); err != nil {
			return true, err
		}
		text := fmt.Sprintf(
			"Кошелек <code>%s</code> пополнен, вы можете вернуться в коммьюнити!\n\n"+
				"Ссылка для вступления в чат: %s\n\n"+
				"Ссылка для подписки на канал: %s",
			user.Wallet, *user.InviteLink, *user.ChannelInviteLink)
		if err := r.tg.SendMessage(ctx, user.TelegramID, text, nil); err != nil {
			return true, fmt.Errorf("notify unbanned user: %w", err)
		}
		return true, nil

	case ActionRecordChange:
		user.Balance = facts.Balance
		eventType := NotifyBuy
		if d.Delta < 0 {
			eventType = NotifySell
		}
		r.notifier.Notify(ctx, eventType, user, d.Delta)
		if err := r.repo.Update(ctx, user, entry); err != nil {
			return true, fmt.Errorf("persist balance change: %w", err)
		}
		return true, nil

	case ActionRevokeStaleLinks:
		if _, err := r.manager.RevokeStaleLinks(ctx, user); err != nil {
			return true, err
		}
		return true, nil

	default:
		return true, nil
	}
}
