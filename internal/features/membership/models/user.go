package models

import "time"

// State is the membership state of a user. Blacklist is sticky: once a user
// is blacklisted no balance observation moves them out of it.
type State string

const (
	StateActive      State = "active"
	StateBanned      State = "banned"
	StateBlacklisted State = "blacklisted"
)

// User is one gated community member keyed by Telegram identity.
type User struct {
	ID         int64  `json:"id"`
	TelegramID int64  `json:"tg_user_id"`
	Username   string `json:"username"`

	// Wallet is the TON address currently bound to this identity.
	// Rebinding it is itself an audited event.
	Wallet string `json:"wallet"`

	// Balance is the last observed combined jetton balance in whole tokens.
	// It only changes together with a history entry.
	Balance int64 `json:"balance"`

	// EntryBalance is the balance recorded at first connection, kept as an
	// audit baseline and never updated afterwards.
	EntryBalance int64 `json:"entry_balance"`

	// OG marks the privileged threshold tier, recomputed from the OG list
	// on every reconciliation pass.
	OG bool `json:"og"`

	State State `json:"state"`

	// At most one live single-use invite link per gated chat. Nil when the
	// user is banned or the link has been consumed and revoked.
	InviteLink        *string `json:"invite_link,omitempty"`
	ChannelInviteLink *string `json:"channel_invite_link,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsBanned() bool {
	return u.State == StateBanned || u.State == StateBlacklisted
}

func (u *User) IsBlacklisted() bool {
	return u.State == StateBlacklisted
}

// HasLinks reports whether the user still holds any invite link reference.
func (u *User) HasLinks() bool {
	return u.InviteLink != nil || u.ChannelInviteLink != nil
}
