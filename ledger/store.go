// Package ledger stores the transaction records the dispute lifecycle runs
// against. Two implementations share one interface: an in-memory map for
// the default pipeline and a Postgres repository.
package ledger

import (
	"context"
	"errors"

	"ledgerflow/account"
)

var (
	// ErrDuplicateTransaction signals a deposit/withdrawal reusing an
	// already-reserved transaction id.
	ErrDuplicateTransaction = errors.New("ledger: duplicate transaction id")
	// ErrInvalidTransaction signals a dispute/resolve/chargeback referencing
	// an unknown, wrong-owner, withdrawal-kind, or state-incompatible
	// transaction.
	ErrInvalidTransaction = errors.New("ledger: invalid transaction id")
)

// Store is the append-only transaction record store. The transaction id
// space is shared across all clients, so InsertNew is the first-wins
// reservation point for an id; records are never removed or overwritten.
type Store interface {
	// InsertNew reserves rec.Tx and stores the record with its dispute
	// state forced to DisputeNone. A taken id yields
	// ErrDuplicateTransaction and leaves the existing record untouched.
	InsertNew(ctx context.Context, rec Record) error

	// GetDisputable returns the record a dispute/resolve/chargeback from
	// client may act on. Unknown ids, withdrawal-kind records, and records
	// owned by another client all yield ErrInvalidTransaction.
	GetDisputable(ctx context.Context, tx TxID, client account.ClientID) (Record, error)

	// AdvanceState moves the record's dispute state from → to. A stale
	// from or an illegal transition yields ErrInvalidTransaction and
	// changes nothing.
	AdvanceState(ctx context.Context, tx TxID, from, to DisputeState) error
}
