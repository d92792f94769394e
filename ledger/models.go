package ledger

import (
	"ledgerflow/account"
	"ledgerflow/amount"
)

// TxID identifies one deposit or withdrawal. Ids are process-wide and
// write-once: a reused id is rejected, never overwritten.
type TxID uint32

// Kind tags the transaction a record was created for.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

// DisputeState is the record's position in the dispute lifecycle. Only
// deposit-kind records ever leave DisputeNone.
type DisputeState string

const (
	DisputeNone        DisputeState = "none"
	DisputeOpen        DisputeState = "open"
	DisputeChargedBack DisputeState = "charged_back"
)

// legalTransition reports whether the dispute lifecycle permits from → to.
// Charged-back is terminal.
func legalTransition(from, to DisputeState) bool {
	switch {
	case from == DisputeNone && to == DisputeOpen:
		return true
	case from == DisputeOpen && to == DisputeNone:
		return true
	case from == DisputeOpen && to == DisputeChargedBack:
		return true
	}
	return false
}

// Record is one successfully applied deposit or withdrawal. Everything but
// State is immutable after insert.
type Record struct {
	ID     string // row identity, assigned on insert
	Tx     TxID
	Client account.ClientID
	Kind   Kind
	Amount amount.Amount
	State  DisputeState
}
