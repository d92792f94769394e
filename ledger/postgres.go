package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledgerflow/account"
	"ledgerflow/amount"
)

// PostgresStore persists transaction records in a single transactions
// table. Amounts are stored as raw 1/10000 units, so round-tripping is
// exact.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS transactions (
    record_id     uuid PRIMARY KEY,
    tx_id         bigint NOT NULL UNIQUE,
    client_id     integer NOT NULL,
    kind          text NOT NULL,
    amount        bigint NOT NULL,
    dispute_state text NOT NULL DEFAULT 'none'
)`

// EnsureSchema creates the transactions table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ledger: ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertNew(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO transactions (record_id, tx_id, client_id, kind, amount, dispute_state)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tx_id) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, query,
		rec.ID, int64(rec.Tx), int32(rec.Client), string(rec.Kind), int64(rec.Amount), string(DisputeNone))
	if err != nil {
		return fmt.Errorf("ledger: insert tx %d: %w", rec.Tx, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger: insert tx %d: %w", rec.Tx, ErrDuplicateTransaction)
	}
	return nil
}

func (s *PostgresStore) GetDisputable(ctx context.Context, tx TxID, client account.ClientID) (Record, error) {
	const query = `
		SELECT record_id, tx_id, client_id, kind, amount, dispute_state
		FROM transactions
		WHERE tx_id = $1
	`
	var (
		rec      Record
		txID     int64
		clientID int32
		kind     string
		units    int64
		state    string
	)
	err := s.pool.QueryRow(ctx, query, int64(tx)).
		Scan(&rec.ID, &txID, &clientID, &kind, &units, &state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("ledger: tx %d unknown: %w", tx, ErrInvalidTransaction)
		}
		return Record{}, fmt.Errorf("ledger: fetch tx %d: %w", tx, err)
	}
	rec.Tx = TxID(txID)
	rec.Client = account.ClientID(clientID)
	rec.Kind = Kind(kind)
	rec.Amount = amount.Amount(units)
	rec.State = DisputeState(state)

	if rec.Kind != KindDeposit {
		return Record{}, fmt.Errorf("ledger: tx %d is a withdrawal: %w", tx, ErrInvalidTransaction)
	}
	if rec.Client != client {
		return Record{}, fmt.Errorf("ledger: tx %d owned by another client: %w", tx, ErrInvalidTransaction)
	}
	return rec, nil
}

func (s *PostgresStore) AdvanceState(ctx context.Context, tx TxID, from, to DisputeState) error {
	if !legalTransition(from, to) {
		return fmt.Errorf("ledger: tx %d: cannot move %s -> %s: %w", tx, from, to, ErrInvalidTransaction)
	}
	const query = `
		UPDATE transactions
		SET dispute_state = $3
		WHERE tx_id = $1 AND dispute_state = $2
	`
	tag, err := s.pool.Exec(ctx, query, int64(tx), string(from), string(to))
	if err != nil {
		return fmt.Errorf("ledger: advance tx %d: %w", tx, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger: tx %d not in state %s: %w", tx, from, ErrInvalidTransaction)
	}
	return nil
}
