package tonbalance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	wonAddr   = "EQCQcABXSG_K-yGWe4arNrYH2Sk4mDSE2dtJauyi8kf3rmVP"
	wonLPAddr = "EQAPjQSi95mNaLCShW_IBNemdNCvjLn255FqcA_V0PM3oBjy"
)

func jettonsJSON(items ...string) string {
	out := "{\"balances\":["
	for i, it := range items {
		if i > 0 {
			out += ","
		}
		out += it
	}
	return out + "]}"
}

func jettonItemJSON(addr, balance string, decimals int) string {
	return fmt.Sprintf(`{"balance":"%s","jetton":{"address":"%s","decimals":%d}}`, balance, addr, decimals)
}

func TestGetJettonBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/accounts/EQowner/jettons", r.URL.Path)
		assert.Equal(t, "Bearer token123", r.Header.Get("Authorization"))
		fmt.Fprint(w, jettonsJSON(
			jettonItemJSON(wonAddr, "5500000000000", 9),
			jettonItemJSON("EQother", "99000000000", 9),
		))
	}))
	defer srv.Close()

	svc := NewService(srv.URL, "token123")
	balance, err := svc.GetJettonBalance(context.Background(), "EQowner", wonAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(5500), balance)
}

func TestGetJettonBalanceNotHeld(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, jettonsJSON(jettonItemJSON("EQother", "100", 0)))
	}))
	defer srv.Close()

	svc := NewService(srv.URL, "")
	balance, err := svc.GetJettonBalance(context.Background(), "EQowner", wonAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestGetJettonBalanceTransientFailures(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway} {
		t.Run(fmt.Sprintf("http %d", status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
			}))
			defer srv.Close()

			svc := NewService(srv.URL, "")
			_, err := svc.GetJettonBalance(context.Background(), "EQowner", wonAddr)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestGetJettonBalanceClientErrorIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	svc := NewService(srv.URL, "")
	_, err := svc.GetJettonBalance(context.Background(), "EQowner", wonAddr)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestGetJettonBalanceNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	svc := NewService(srv.URL, "")
	_, err := svc.GetJettonBalance(context.Background(), "EQowner", wonAddr)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCombinedBalanceSumsPrimaryAndLP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, jettonsJSON(
			jettonItemJSON(wonAddr, "3000000000000", 9),
			jettonItemJSON(wonLPAddr, "2000000000000", 9),
		))
	}))
	defer srv.Close()

	svc := NewService(srv.URL, "")
	balance, err := svc.CombinedBalance(context.Background(), "EQowner", wonAddr, wonLPAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)
}

func TestCombinedBalanceEitherFailureWins(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, jettonsJSON(jettonItemJSON(wonLPAddr, "1000", 0)))
	}))
	defer srv.Close()

	svc := NewService(srv.URL, "")
	_, err := svc.CombinedBalance(context.Background(), "EQowner", wonAddr, wonLPAddr)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestWholeTokens(t *testing.T) {
	tests := []struct {
		raw      string
		decimals int
		want     int64
	}{
		{"5500000000000", 9, 5500},
		{"999999999", 9, 0},
		{"1000000001", 9, 1},
		{"42", 0, 42},
		{"0", 9, 0},
	}
	for _, tt := range tests {
		got, err := wholeTokens(tt.raw, tt.decimals)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "raw=%s decimals=%d", tt.raw, tt.decimals)
	}

	_, err := wholeTokens("not-a-number", 9)
	assert.Error(t, err)
}
