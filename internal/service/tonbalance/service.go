package tonbalance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/xssnick/tonutils-go/address"
)

// ErrUnavailable signals a transient TonAPI failure (network error, rate
// limit, upstream outage). Callers must not treat it as a zero balance.
var ErrUnavailable = errors.New("tonapi unavailable")

// Service implements jetton balance checks via TonAPI HTTP.
type Service struct {
	tonapiBase  string
	tonapiToken string
	httpClient  *http.Client
}

// NewService initializes TonAPI-based service.
func NewService(baseURL, apiToken string) *Service {
	if baseURL == "" {
		baseURL = "https://tonapi.io"
	}
	return &Service{
		tonapiBase:  strings.TrimRight(baseURL, "/"),
		tonapiToken: apiToken,
		httpClient:  &http.Client{Timeout: 8 * time.Second},
	}
}

type jettonItem struct {
	Balance string `json:"balance"`
	Jetton  struct {
		Address  string `json:"address"`
		Decimals int    `json:"decimals"`
	} `json:"jetton"`
}

// GetJettonBalance returns the held amount of the given jetton for the owner
// wallet, normalized to whole tokens. A wallet that does not hold the jetton
// at all has a genuine zero balance.
func (s *Service) GetJettonBalance(ctx context.Context, walletAddress, jettonMaster string) (int64, error) {
	var out struct {
		Balances []jettonItem `json:"balances"`
	}
	url := s.tonapiBase + "/v2/accounts/" + walletAddress + "/jettons"
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	req.Header.Set("Accept", "application/json")
	if s.tonapiToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.tonapiToken)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return 0, fmt.Errorf("%w: tonapi http %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("tonapi http %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}

	want := normalizeAddr(jettonMaster)
	for _, b := range out.Balances {
		if normalizeAddr(b.Jetton.Address) != want {
			continue
		}
		return wholeTokens(b.Balance, b.Jetton.Decimals)
	}
	return 0, nil
}

// CombinedBalance returns the sum of the primary jetton balance and its
// LP-wrapped counterpart. A failure of either query yields ErrUnavailable;
// the combined value is only reported when both reads succeeded.
func (s *Service) CombinedBalance(ctx context.Context, walletAddress, jettonMaster, lpJettonMaster string) (int64, error) {
	lpBalance, err := s.GetJettonBalance(ctx, walletAddress, lpJettonMaster)
	if err != nil {
		return 0, err
	}
	balance, err := s.GetJettonBalance(ctx, walletAddress, jettonMaster)
	if err != nil {
		return 0, err
	}
	return balance + lpBalance, nil
}

// normalizeAddr brings an address to its canonical form so bounceable and
// raw spellings of the same jetton master compare equal.
func normalizeAddr(s string) string {
	addr, err := address.ParseAddr(s)
	if err != nil {
		if addr, err = address.ParseRawAddr(s); err != nil {
			return strings.ToLower(s)
		}
	}
	return addr.String()
}

func wholeTokens(raw string, decimals int) (int64, error) {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return 0, fmt.Errorf("invalid jetton balance format: %q", raw)
	}
	if decimals > 0 {
		div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
		n.Quo(n, div)
	}
	if !n.IsInt64() {
		return 0, fmt.Errorf("jetton balance out of range: %q", raw)
	}
	return n.Int64(), nil
}
