// Package ingest turns line-oriented CSV input into validated engine
// actions. Malformed rows are dropped before they reach the engine; the
// engine never aborts because of bad input.
package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"ledgerflow/account"
	"ledgerflow/amount"
	"ledgerflow/engine"
	"ledgerflow/ledger"
)

// Reader yields one validated action per well-formed input row. Rows are
// `type, client, tx[, amount]` with optional padding whitespace; the type
// token is case-insensitive. A header row starting with "type" is skipped.
type Reader struct {
	csv     *csv.Reader
	log     zerolog.Logger
	started bool
	dropped int
}

// NewReader wraps r. log receives one debug line per dropped row.
func NewReader(r io.Reader, log zerolog.Logger) *Reader {
	c := csv.NewReader(r)
	c.FieldsPerRecord = -1
	c.TrimLeadingSpace = true
	return &Reader{csv: c, log: log}
}

// Next returns the next valid action, io.EOF at end of input, or the
// underlying read error. Rows failing validation are dropped and counted,
// never returned.
func (r *Reader) Next() (engine.Action, error) {
	for {
		fields, err := r.csv.Read()
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				r.drop(fields, "unparseable row")
				continue
			}
			return engine.Action{}, err
		}
		if !r.started {
			r.started = true
			if strings.EqualFold(strings.TrimSpace(fields[0]), "type") {
				continue
			}
		}
		act, ok := r.parse(fields)
		if !ok {
			r.drop(fields, "malformed row")
			continue
		}
		return act, nil
	}
}

// Dropped reports how many rows were discarded so far.
func (r *Reader) Dropped() int {
	return r.dropped
}

func (r *Reader) drop(fields []string, reason string) {
	r.dropped++
	r.log.Debug().Strs("fields", fields).Msg("ingest: dropping " + reason)
}

func (r *Reader) parse(fields []string) (engine.Action, bool) {
	if len(fields) < 3 || len(fields) > 4 {
		return engine.Action{}, false
	}

	client, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 16)
	if err != nil {
		return engine.Action{}, false
	}
	tx, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
	if err != nil {
		return engine.Action{}, false
	}

	act := engine.Action{
		Client: account.ClientID(client),
		Tx:     ledger.TxID(tx),
	}

	switch strings.ToLower(strings.TrimSpace(fields[0])) {
	case "deposit":
		act.Kind = engine.ActionDeposit
	case "withdrawal":
		act.Kind = engine.ActionWithdrawal
	case "dispute":
		act.Kind = engine.ActionDispute
	case "resolve":
		act.Kind = engine.ActionResolve
	case "chargeback":
		act.Kind = engine.ActionChargeback
	default:
		return engine.Action{}, false
	}

	switch act.Kind {
	case engine.ActionDeposit, engine.ActionWithdrawal:
		if len(fields) != 4 {
			return engine.Action{}, false
		}
		amt, err := amount.Parse(strings.TrimSpace(fields[3]))
		if err != nil {
			return engine.Action{}, false
		}
		act.Amount = amt
	default:
		// Fixture files often pad dispute rows with a trailing empty
		// amount column; anything non-empty there is an extra field.
		if len(fields) == 4 && strings.TrimSpace(fields[3]) != "" {
			return engine.Action{}, false
		}
	}

	return act, true
}
