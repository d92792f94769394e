package engine

import (
	"ledgerflow/account"
	"ledgerflow/amount"
	"ledgerflow/ledger"
)

// ActionKind enumerates the five financial actions the engine interprets.
type ActionKind string

const (
	ActionDeposit    ActionKind = "deposit"
	ActionWithdrawal ActionKind = "withdrawal"
	ActionDispute    ActionKind = "dispute"
	ActionResolve    ActionKind = "resolve"
	ActionChargeback ActionKind = "chargeback"
)

// Action is one validated input record. Amount is meaningful only for
// deposits and withdrawals; dispute-family actions reference the amount of
// the recorded transaction instead.
type Action struct {
	Kind   ActionKind
	Client account.ClientID
	Tx     ledger.TxID
	Amount amount.Amount
}

// Outcome reports how one submitted action fared. A nil Err means the
// action was applied; otherwise Err classifies the rejection.
type Outcome struct {
	Action Action
	Err    error
}

// Snapshot is one client's final account row.
type Snapshot struct {
	Client    account.ClientID
	Available amount.Amount
	Held      amount.Amount
	Total     amount.Amount
	Locked    bool
}
