package models

import "time"

// ConnectPayload is the challenge a wallet must sign to prove ownership.
// Payloads are short-lived and single-use.
type ConnectPayload struct {
	UserID    int64     `json:"user_id"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// ProofRequest carries a TON wallet ownership proof submitted after the
// wallet signed the challenge.
type ProofRequest struct {
	Address   string `json:"address"` // raw form, "0:<hex>"
	Network   string `json:"network"` // "-239" mainnet
	PublicKey string `json:"public_key"`
	Proof     Proof  `json:"proof"`
}

type Proof struct {
	Timestamp int64       `json:"timestamp"`
	Domain    ProofDomain `json:"domain"`
	Payload   string      `json:"payload"`
	Signature string      `json:"signature"`
}

type ProofDomain struct {
	LengthBytes int    `json:"lengthBytes"`
	Value       string `json:"value"`
}

// ConnectResult is what the connect flow reports back to the user.
type ConnectResult struct {
	Wallet  string `json:"wallet"`
	Balance int64  `json:"balance"`
	Message string `json:"message"`
}
