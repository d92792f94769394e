// Package engine interprets financial actions against accounts and the
// transaction record store, and dispatches them so that each client's
// actions run in strict input order while clients progress independently.
package engine

import (
	"context"
	"errors"
	"fmt"

	"ledgerflow/account"
	"ledgerflow/amount"
	"ledgerflow/ledger"
)

// ErrIllegalAmount signals a deposit or withdrawal with a non-positive
// amount.
var ErrIllegalAmount = errors.New("engine: illegal amount")

// Processor applies one action at a time to an account. It holds no
// per-client state, so a single Processor serves every worker.
type Processor struct {
	store ledger.Store
}

// NewProcessor returns a processor backed by the given record store.
func NewProcessor(store ledger.Store) *Processor {
	return &Processor{store: store}
}

// Apply runs one action against its account. Rejections are returned as
// errors and leave both the account and the store untouched; they are never
// fatal to the run.
func (p *Processor) Apply(ctx context.Context, acct *account.Account, act Action) error {
	switch act.Kind {
	case ActionDeposit:
		return p.deposit(ctx, acct, act)
	case ActionWithdrawal:
		return p.withdraw(ctx, acct, act)
	case ActionDispute:
		return p.dispute(ctx, acct, act)
	case ActionResolve:
		return p.resolve(ctx, acct, act)
	case ActionChargeback:
		return p.chargeback(ctx, acct, act)
	default:
		return fmt.Errorf("engine: unknown action kind %q", act.Kind)
	}
}

// deposit credits available funds and records the transaction. The store
// insert is the first-wins reservation of the process-wide tx id, and the
// store is append-only, so every other check runs before the id is burned.
func (p *Processor) deposit(ctx context.Context, acct *account.Account, act Action) error {
	if act.Amount <= amount.Zero {
		return fmt.Errorf("engine: deposit tx %d: %w", act.Tx, ErrIllegalAmount)
	}
	if acct.Locked() {
		return fmt.Errorf("engine: deposit tx %d: %w", act.Tx, account.ErrLocked)
	}
	if _, err := amount.CheckedAdd(acct.Available(), act.Amount); err != nil {
		return fmt.Errorf("engine: deposit tx %d: %w", act.Tx, err)
	}
	err := p.store.InsertNew(ctx, ledger.Record{
		Tx:     act.Tx,
		Client: act.Client,
		Kind:   ledger.KindDeposit,
		Amount: act.Amount,
	})
	if err != nil {
		return err
	}
	return acct.CreditAvailable(act.Amount)
}

func (p *Processor) withdraw(ctx context.Context, acct *account.Account, act Action) error {
	if act.Amount <= amount.Zero {
		return fmt.Errorf("engine: withdrawal tx %d: %w", act.Tx, ErrIllegalAmount)
	}
	if acct.Locked() {
		return fmt.Errorf("engine: withdrawal tx %d: %w", act.Tx, account.ErrLocked)
	}
	if acct.Available() < act.Amount {
		return fmt.Errorf("engine: withdrawal tx %d: %w", act.Tx, account.ErrInsufficientFunds)
	}
	err := p.store.InsertNew(ctx, ledger.Record{
		Tx:     act.Tx,
		Client: act.Client,
		Kind:   ledger.KindWithdrawal,
		Amount: act.Amount,
	})
	if err != nil {
		return err
	}
	return acct.DebitAvailable(act.Amount)
}

// dispute freezes the amount of a prior deposit. Disputes remain permitted
// on locked accounts.
func (p *Processor) dispute(ctx context.Context, acct *account.Account, act Action) error {
	rec, err := p.store.GetDisputable(ctx, act.Tx, act.Client)
	if err != nil {
		return err
	}
	if rec.State != ledger.DisputeNone {
		return fmt.Errorf("engine: dispute tx %d in state %s: %w", act.Tx, rec.State, ledger.ErrInvalidTransaction)
	}
	// Both sides of the move must be representable before the record is
	// advanced; a half-applied dispute would let a later resolve drive
	// held negative.
	if _, err := amount.CheckedAdd(acct.Held(), rec.Amount); err != nil {
		return fmt.Errorf("engine: dispute tx %d: %w", act.Tx, err)
	}
	if _, err := amount.CheckedSub(acct.Available(), rec.Amount); err != nil {
		return fmt.Errorf("engine: dispute tx %d: %w", act.Tx, err)
	}
	if err := p.store.AdvanceState(ctx, act.Tx, ledger.DisputeNone, ledger.DisputeOpen); err != nil {
		return err
	}
	return acct.MoveAvailableToHeld(rec.Amount)
}

func (p *Processor) resolve(ctx context.Context, acct *account.Account, act Action) error {
	rec, err := p.store.GetDisputable(ctx, act.Tx, act.Client)
	if err != nil {
		return err
	}
	if rec.State != ledger.DisputeOpen {
		return fmt.Errorf("engine: resolve tx %d without open dispute: %w", act.Tx, ledger.ErrInvalidTransaction)
	}
	if _, err := amount.CheckedAdd(acct.Available(), rec.Amount); err != nil {
		return fmt.Errorf("engine: resolve tx %d: %w", act.Tx, err)
	}
	if err := p.store.AdvanceState(ctx, act.Tx, ledger.DisputeOpen, ledger.DisputeNone); err != nil {
		return err
	}
	return acct.MoveHeldToAvailable(rec.Amount)
}

// chargeback removes the held amount and freezes the account for good.
func (p *Processor) chargeback(ctx context.Context, acct *account.Account, act Action) error {
	rec, err := p.store.GetDisputable(ctx, act.Tx, act.Client)
	if err != nil {
		return err
	}
	if rec.State != ledger.DisputeOpen {
		return fmt.Errorf("engine: chargeback tx %d without open dispute: %w", act.Tx, ledger.ErrInvalidTransaction)
	}
	if err := p.store.AdvanceState(ctx, act.Tx, ledger.DisputeOpen, ledger.DisputeChargedBack); err != nil {
		return err
	}
	if err := acct.RemoveHeld(rec.Amount); err != nil {
		return err
	}
	acct.Lock()
	return nil
}
