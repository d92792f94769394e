package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"ledgerflow/account"
)

// MemoryStore keeps transaction records in a mutex-guarded map. The mutex
// covers the process-wide id space; per-record state is only ever mutated
// by the owning client's worker, but the map itself is shared.
type MemoryStore struct {
	mu      sync.Mutex
	records map[TxID]Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[TxID]Record)}
}

func (s *MemoryStore) InsertNew(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.records[rec.Tx]; taken {
		return fmt.Errorf("ledger: insert tx %d: %w", rec.Tx, ErrDuplicateTransaction)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.State = DisputeNone
	s.records[rec.Tx] = rec
	return nil
}

func (s *MemoryStore) GetDisputable(_ context.Context, tx TxID, client account.ClientID) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[tx]
	if !ok {
		return Record{}, fmt.Errorf("ledger: tx %d unknown: %w", tx, ErrInvalidTransaction)
	}
	if rec.Kind != KindDeposit {
		return Record{}, fmt.Errorf("ledger: tx %d is a withdrawal: %w", tx, ErrInvalidTransaction)
	}
	if rec.Client != client {
		return Record{}, fmt.Errorf("ledger: tx %d owned by another client: %w", tx, ErrInvalidTransaction)
	}
	return rec, nil
}

func (s *MemoryStore) AdvanceState(_ context.Context, tx TxID, from, to DisputeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[tx]
	if !ok {
		return fmt.Errorf("ledger: tx %d unknown: %w", tx, ErrInvalidTransaction)
	}
	if rec.State != from || !legalTransition(from, to) {
		return fmt.Errorf("ledger: tx %d state %s, cannot move %s -> %s: %w", tx, rec.State, from, to, ErrInvalidTransaction)
	}
	rec.State = to
	s.records[tx] = rec
	return nil
}
