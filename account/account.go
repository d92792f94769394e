// Package account holds per-client balances and the primitives that mutate
// them. An account never touches another account; the engine guarantees a
// single writer per client.
package account

import (
	"errors"

	"ledgerflow/amount"
)

// ClientID addresses one account. The id space is small and stable.
type ClientID uint16

var (
	// ErrInsufficientFunds signals a debit larger than the available balance.
	ErrInsufficientFunds = errors.New("account: insufficient funds")
	// ErrLocked signals a deposit or withdrawal against a charged-back
	// account. The lock is terminal; there is no unlock path.
	ErrLocked = errors.New("account: locked")
)

// Account is one client's balance pair plus the chargeback lock.
// Total is always recomputed from available+held, never stored.
type Account struct {
	available amount.Amount
	held      amount.Amount
	locked    bool
}

// New returns an empty, unlocked account.
func New() *Account {
	return &Account{}
}

// Available reports the funds the client may withdraw. It can be negative
// after disputing a deposit that was already partly withdrawn.
func (a *Account) Available() amount.Amount { return a.available }

// Held reports the funds frozen pending dispute resolution.
func (a *Account) Held() amount.Amount { return a.held }

// Total reports available+held. Both sides were produced by checked
// arithmetic on the same net sum, so the addition cannot overflow.
func (a *Account) Total() amount.Amount {
	sum, _ := amount.CheckedAdd(a.available, a.held)
	return sum
}

// Locked reports whether a chargeback has frozen the account.
func (a *Account) Locked() bool { return a.locked }

// Lock freezes the account permanently.
func (a *Account) Lock() { a.locked = true }

// CreditAvailable adds amt to the available balance.
func (a *Account) CreditAvailable(amt amount.Amount) error {
	next, err := amount.CheckedAdd(a.available, amt)
	if err != nil {
		return err
	}
	a.available = next
	return nil
}

// DebitAvailable removes amt from the available balance. The balance must
// cover the debit.
func (a *Account) DebitAvailable(amt amount.Amount) error {
	if a.available < amt {
		return ErrInsufficientFunds
	}
	next, err := amount.CheckedSub(a.available, amt)
	if err != nil {
		return err
	}
	a.available = next
	return nil
}

// MoveAvailableToHeld freezes amt for an opened dispute. Available is
// allowed to go negative here: the disputed amount was a prior deposit, but
// a withdrawal since then may have spent part of it.
func (a *Account) MoveAvailableToHeld(amt amount.Amount) error {
	nextAvail, err := amount.CheckedSub(a.available, amt)
	if err != nil {
		return err
	}
	nextHeld, err := amount.CheckedAdd(a.held, amt)
	if err != nil {
		return err
	}
	a.available = nextAvail
	a.held = nextHeld
	return nil
}

// MoveHeldToAvailable releases amt back after a resolved dispute.
func (a *Account) MoveHeldToAvailable(amt amount.Amount) error {
	nextHeld, err := amount.CheckedSub(a.held, amt)
	if err != nil {
		return err
	}
	nextAvail, err := amount.CheckedAdd(a.available, amt)
	if err != nil {
		return err
	}
	a.held = nextHeld
	a.available = nextAvail
	return nil
}

// RemoveHeld withdraws amt from the held balance on a chargeback. The
// caller locks the account afterwards.
func (a *Account) RemoveHeld(amt amount.Amount) error {
	next, err := amount.CheckedSub(a.held, amt)
	if err != nil {
		return err
	}
	a.held = next
	return nil
}
