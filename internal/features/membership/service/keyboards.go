package service

import (
	"fmt"

	"token-gate-backend/internal/platform/telegram"
)

// BuyKeyboard builds the inline keyboard with a DeDust swap link pre-filled
// with roughly the TON amount needed to reach the threshold.
func BuyKeyboard(jettonAddr string, threshold int64, price float64) *telegram.InlineKeyboardMarkup {
	amount := int64(float64(threshold) * price * 1e9)
	buyURL := fmt.Sprintf("https://dedust.io/swap/TON/%s?amount=%d", jettonAddr, amount)
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "Купить WON", URL: buyURL}},
		},
	}
}
