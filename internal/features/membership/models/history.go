package models

import "time"

// NonMarketPrice marks history rows written for wallet rebinds and other
// corrections that do not correspond to a market event.
const NonMarketPrice = -1.0

// HistoryEntry is one append-only audit row. Rows are never updated or
// deleted and are not read back by the reconciler.
type HistoryEntry struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	BalanceDelta int64     `json:"balance_delta"`
	Price        float64   `json:"price"`
	Wallet       string    `json:"wallet"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewHistoryEntry builds a history row for a balance observation.
func NewHistoryEntry(userID, delta int64, price float64, wallet string) *HistoryEntry {
	return &HistoryEntry{
		UserID:       userID,
		BalanceDelta: delta,
		Price:        price,
		Wallet:       wallet,
	}
}

// NewWalletRebindEntry builds the zero-delta marker row written when a user
// rebinds their wallet outside of a market event.
func NewWalletRebindEntry(userID int64, wallet string) *HistoryEntry {
	return &HistoryEntry{
		UserID:       userID,
		BalanceDelta: 0,
		Price:        NonMarketPrice,
		Wallet:       wallet,
	}
}
