package service

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/xssnick/tonutils-go/address"

	"token-gate-backend/internal/common/logger"
	"token-gate-backend/internal/features/connect/models"
	"token-gate-backend/internal/features/connect/repository"
	memmodels "token-gate-backend/internal/features/membership/models"
	memrepo "token-gate-backend/internal/features/membership/repository"
	memservice "token-gate-backend/internal/features/membership/service"
	"token-gate-backend/internal/service/tonbalance"
)

// proofMaxAge bounds how old a signed proof may be.
const proofMaxAge = 300 * time.Second

var (
	ErrInvalidProof       = errors.New("invalid proof")
	ErrBalanceUnavailable = errors.New("balance oracle unavailable")
)

// Service runs the wallet connect flow: challenge issuance, proof
// verification and user onboarding or wallet rebinding.
type Service struct {
	payloads repository.Repository
	users    memrepo.UserRepository
	balance  memservice.BalanceFetcher
	price    memservice.PriceFetcher
	lists    memservice.ListChecker
	manager  *memservice.UserManager
	notifier *memservice.AdminNotifier
	tg       memservice.TelegramAPI

	manifestDomain string
	chatID         int64

	jettonAddr   string
	lpJettonAddr string

	threshold   int64
	ogThreshold int64
}

func NewService(
	payloads repository.Repository,
	users memrepo.UserRepository,
	balance memservice.BalanceFetcher,
	price memservice.PriceFetcher,
	lists memservice.ListChecker,
	manager *memservice.UserManager,
	notifier *memservice.AdminNotifier,
	tg memservice.TelegramAPI,
	manifestDomain string,
	chatID int64,
	jettonAddr, lpJettonAddr string,
	threshold, ogThreshold int64,
) *Service {
	return &Service{
		payloads:       payloads,
		users:          users,
		balance:        balance,
		price:          price,
		lists:          lists,
		manager:        manager,
		notifier:       notifier,
		tg:             tg,
		manifestDomain: manifestDomain,
		chatID:         chatID,
		jettonAddr:     jettonAddr,
		lpJettonAddr:   lpJettonAddr,
		threshold:      threshold,
		ogThreshold:    ogThreshold,
	}
}

// GeneratePayload issues a fresh signing challenge for the user.
func (s *Service) GeneratePayload(ctx context.Context, userID int64) (string, error) {
	payload, err := s.payloads.GeneratePayload(ctx, userID)
	if err != nil {
		return "", err
	}
	return payload.Payload, nil
}

// VerifyAndRegister validates the wallet proof and either creates the user
// record (first connect) or rebinds the wallet of an existing user.
func (s *Service) VerifyAndRegister(ctx context.Context, userID int64, username string, req *models.ProofRequest) (*models.ConnectResult, error) {
	if err := s.verifyProof(ctx, userID, req); err != nil {
		return nil, err
	}
	_ = s.payloads.DeletePayload(ctx, userID)

	wallet, err := normalizeWallet(req.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: bad address: %v", ErrInvalidProof, err)
	}

	balance, err := s.balance.CombinedBalance(ctx, wallet, s.jettonAddr, s.lpJettonAddr)
	if errors.Is(err, tonbalance.ErrUnavailable) {
		return nil, ErrBalanceUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("fetch balance: %w", err)
	}

	threshold := s.threshold
	if s.lists.IsOG(username) {
		threshold = s.ogThreshold
	}

	user, err := s.users.GetByTelegramID(ctx, userID)
	switch {
	case err == nil:
		return s.rebindWallet(ctx, user, wallet, balance, threshold)
	case errors.Is(err, memrepo.ErrUserNotFound):
		return s.register(ctx, userID, username, wallet, balance, threshold)
	default:
		return nil, fmt.Errorf("lookup user: %w", err)
	}
}

// rebindWallet records a wallet change for an already known user. The
// persisted balance is left untouched; the history row is a zero-delta
// marker with a non-market price.
func (s *Service) rebindWallet(ctx context.Context, user *memmodels.User, wallet string, balance, threshold int64) (*models.ConnectResult, error) {
	user.Wallet = wallet
	entry := memmodels.NewWalletRebindEntry(user.ID, wallet)
	if err := s.users.Update(ctx, user, entry); err != nil {
		return nil, fmt.Errorf("persist wallet rebind: %w", err)
	}

	eventType := memservice.NotifyChangeWalletLow
	if balance >= threshold {
		eventType = memservice.NotifyChangeWalletHigh
	}
	s.notifier.Notify(ctx, eventType, user, 0)

	return &models.ConnectResult{
		Wallet:  wallet,
		Balance: balance,
		Message: fmt.Sprintf("Кошелек <code>%s</code> привязан.\n\nБаланс: %d WON", wallet, balance),
	}, nil
}

// register onboards a first-time user. A user below the threshold is not
// persisted; they are invited to top up and reconnect.
func (s *Service) register(ctx context.Context, userID int64, username, wallet string, balance, threshold int64) (*models.ConnectResult, error) {
	member, err := s.tg.IsChatMember(ctx, s.chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}

	if balance < threshold {
		msg := fmt.Sprintf("Мало WON на балансе для вступления в чат. Надо не меньше %d", threshold)
		price, err := s.price.SpotPrice(ctx, s.jettonAddr)
		if err != nil {
			price = 0
		}
		if err := s.tg.SendMessage(ctx, userID, msg, memservice.BuyKeyboard(s.jettonAddr, threshold, price)); err != nil {
			logger.Warn().Err(err).Int64("tg_user_id", userID).Msg("Failed to send top-up prompt")
		}
		return &models.ConnectResult{
			Wallet:  wallet,
			Balance: balance,
			Message: msg,
		}, nil
	}

	user := &memmodels.User{
		TelegramID:   userID,
		Username:     username,
		Wallet:       wallet,
		Balance:      balance,
		EntryBalance: balance,
		OG:           threshold == s.ogThreshold,
		State:        memmodels.StateActive,
	}

	message := "Вы уже вступили в чат"
	if !member {
		if _, err := s.manager.IssueInviteLinks(ctx, user); err != nil {
			return nil, err
		}
		message = fmt.Sprintf("Вступить в чат: %s\n\nПодписаться на канал: %s",
			*user.InviteLink, *user.ChannelInviteLink)
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.notifier.Notify(ctx, memservice.NotifyConnect, user, 0)

	return &models.ConnectResult{
		Wallet:  wallet,
		Balance: balance,
		Message: message,
	}, nil
}

func (s *Service) verifyProof(ctx context.Context, userID int64, req *models.ProofRequest) error {
	if req.Proof.Domain.Value != s.manifestDomain {
		return fmt.Errorf("%w: wrong domain %q", ErrInvalidProof, req.Proof.Domain.Value)
	}
	if time.Now().Unix() > req.Proof.Timestamp+int64(proofMaxAge.Seconds()) {
		return fmt.Errorf("%w: proof expired", ErrInvalidProof)
	}

	stored, err := s.payloads.GetPayload(ctx, userID)
	if err != nil {
		return err
	}
	if stored == nil || stored.Payload != req.Proof.Payload {
		return fmt.Errorf("%w: unknown payload", ErrInvalidProof)
	}

	message := fmt.Sprintf("%s:%d:%s", req.Proof.Domain.Value, req.Proof.Timestamp, req.Proof.Payload)

	pubKey, err := base64.StdEncoding.DecodeString(req.PublicKey)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: bad public key", ErrInvalidProof)
	}
	signature, err := base64.StdEncoding.DecodeString(req.Proof.Signature)
	if err != nil {
		return fmt.Errorf("%w: bad signature encoding", ErrInvalidProof)
	}
	if !ed25519.Verify(pubKey, []byte(message), signature) {
		return fmt.Errorf("%w: signature verification failed", ErrInvalidProof)
	}
	return nil
}

func normalizeWallet(raw string) (string, error) {
	addr, err := address.ParseRawAddr(raw)
	if err != nil {
		if addr, err = address.ParseAddr(raw); err != nil {
			return "", err
		}
	}
	return addr.String(), nil
}
