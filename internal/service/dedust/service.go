package dedust

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"token-gate-backend/internal/common/logger"
)

// ErrPriceUnavailable is returned when the transient-failure retry budget is
// exhausted without a successful read.
var ErrPriceUnavailable = errors.New("dedust price unavailable")

// Service reads the jetton spot price from the DeDust pool API. The price is
// fetched once per reconciliation pass, not once per user.
type Service struct {
	dedustBase string
	httpClient *http.Client

	maxRetries int
	retryDelay time.Duration
}

func NewService(baseURL string, maxRetries int) *Service {
	if baseURL == "" {
		baseURL = "https://api.dedust.io"
	}
	if maxRetries <= 0 {
		maxRetries = 30
	}
	return &Service{
		dedustBase: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 8 * time.Second},
		maxRetries: maxRetries,
		retryDelay: time.Second,
	}
}

type poolAsset struct {
	Type    string `json:"type"` // "native" or "jetton"
	Address string `json:"address,omitempty"`
}

type pool struct {
	Address  string      `json:"address"`
	Type     string      `json:"type"` // "volatile" or "stable"
	Assets   []poolAsset `json:"assets"`
	Reserves []string    `json:"reserves"`
}

// SpotPrice returns the price of one whole jetton in TON from the volatile
// TON pool. Transient provider failures are retried with a fixed delay up to
// the configured cap; exhausting the cap returns ErrPriceUnavailable.
// A non-transient failure (no pool, malformed payload) yields a terminal
// zero price instead of an error, matching the "unpriced" policy.
func (s *Service) SpotPrice(ctx context.Context, jettonAddr string) (float64, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}

		price, transient, err := s.fetchPrice(ctx, jettonAddr)
		if err == nil {
			return price, nil
		}
		if !transient {
			logger.Error().Err(err).Str("jetton", jettonAddr).Msg("DeDust: 0 price")
			return 0, nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("%w: %v", ErrPriceUnavailable, lastErr)
}

// fetchPrice performs one read. The second return value reports whether the
// failure is transient and worth retrying.
func (s *Service) fetchPrice(ctx context.Context, jettonAddr string) (float64, bool, error) {
	url := s.dedustBase + "/v2/pools"
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return 0, true, fmt.Errorf("dedust http %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("dedust http %d", resp.StatusCode)
	}

	var pools []pool
	if err := json.NewDecoder(resp.Body).Decode(&pools); err != nil {
		return 0, true, fmt.Errorf("decode pools: %w", err)
	}

	target := strings.ToLower(jettonAddr)
	for _, p := range pools {
		if p.Type != "volatile" || len(p.Assets) != 2 || len(p.Reserves) != 2 {
			continue
		}
		nativeIdx, jettonIdx := -1, -1
		for i, a := range p.Assets {
			switch {
			case a.Type == "native":
				nativeIdx = i
			case a.Type == "jetton" && strings.ToLower(a.Address) == target:
				jettonIdx = i
			}
		}
		if nativeIdx < 0 || jettonIdx < 0 {
			continue
		}
		return reserveRatio(p.Reserves[nativeIdx], p.Reserves[jettonIdx])
	}
	return 0, false, fmt.Errorf("no volatile TON pool for jetton %s", jettonAddr)
}

// reserveRatio computes native/jetton from raw reserve strings. Both sides
// of the WON pool carry 9 decimals, so the raw ratio is the unit price.
func reserveRatio(native, jetton string) (float64, bool, error) {
	n, ok := new(big.Float).SetString(native)
	if !ok {
		return 0, false, fmt.Errorf("invalid native reserve %q", native)
	}
	j, ok := new(big.Float).SetString(jetton)
	if !ok {
		return 0, false, fmt.Errorf("invalid jetton reserve %q", jetton)
	}
	if j.Sign() == 0 {
		return 0, false, errors.New("empty jetton reserve")
	}
	price, _ := new(big.Float).Quo(n, j).Float64()
	return price, false, nil
}
