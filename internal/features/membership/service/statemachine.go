package service

import "token-gate-backend/internal/features/membership/models"

// Facts are the freshly observed inputs for one user in one pass.
type Facts struct {
	// Blacklisted is the deny-list verdict for the username.
	Blacklisted bool
	// OG selects the privileged threshold tier.
	OG bool
	// BalanceKnown is false when the balance oracle failed transiently.
	// An unknown balance is never conflated with a genuine zero.
	BalanceKnown bool
	// Balance is the combined jetton balance in whole tokens, valid only
	// when BalanceKnown.
	Balance int64
}

type ActionKind int

const (
	// ActionNone: nothing to do for this user this pass.
	ActionNone ActionKind = iota
	// ActionSkipBlacklisted: user is already blacklisted, skip entirely.
	ActionSkipBlacklisted
	// ActionSkipUnknownBalance: balance oracle failed, defer to next pass
	// without mutating anything.
	ActionSkipUnknownBalance
	// ActionBlacklist: deny-list hit, mark blacklisted and ban.
	ActionBlacklist
	// ActionBan: balance below threshold, remove from the community.
	ActionBan
	// ActionUnban: balance recovered, readmit with fresh invite links.
	ActionUnban
	// ActionRecordChange: balance moved without crossing the threshold.
	ActionRecordChange
	// ActionRevokeStaleLinks: admitted user still holds link references
	// that may have outlived their purpose.
	ActionRevokeStaleLinks
)

// Decision is the computed transition plus the values that side effects need.
type Decision struct {
	Kind      ActionKind
	Threshold int64
	// Delta is observed balance minus the persisted one, valid whenever
	// the balance was known.
	Delta int64
}

// StateMachine evaluates the membership transition table. It is pure: no
// I/O, no mutation of the user.
type StateMachine struct {
	threshold   int64
	ogThreshold int64
}

func NewStateMachine(threshold, ogThreshold int64) *StateMachine {
	return &StateMachine{threshold: threshold, ogThreshold: ogThreshold}
}

// Decide returns the first matching transition in priority order. Blacklist
// dominates everything and is sticky; the unknown-balance guard keeps a
// transient oracle hiccup from reading as "balance dropped to zero".
func (m *StateMachine) Decide(u *models.User, f Facts) Decision {
	threshold := m.threshold
	if f.OG {
		threshold = m.ogThreshold
	}
	d := Decision{Threshold: threshold}

	switch {
	case u.IsBlacklisted():
		d.Kind = ActionSkipBlacklisted
	case f.Blacklisted:
		d.Kind = ActionBlacklist
	case !f.BalanceKnown:
		d.Kind = ActionSkipUnknownBalance
	default:
		d.Delta = f.Balance - u.Balance
		switch {
		case f.Balance < threshold && !u.IsBanned():
			d.Kind = ActionBan
		case u.IsBanned() && f.Balance >= threshold:
			d.Kind = ActionUnban
		case f.Balance != u.Balance && !u.IsBanned():
			d.Kind = ActionRecordChange
		case !u.IsBanned() && f.Balance >= threshold && u.HasLinks():
			d.Kind = ActionRevokeStaleLinks
		default:
			d.Kind = ActionNone
		}
	}

	return d
}
