// Package memory implements the ledger repositories in process memory. Row
// locks are per-key semaphores with a bounded wait; writes made inside a
// transaction are staged and become visible together on Commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/usecase"
)

// DefaultLockTimeout bounds the wait for a row lock.
const DefaultLockTimeout = 2 * time.Second

var errNotMemoryTx = errors.New("memory: transaction was not started by this store")

// Store holds every custody, record, outbox event and audit row.
type Store struct {
	mu        sync.RWMutex
	custodies map[string]*domain.Custody
	records   map[string]*domain.TransactionRecord
	events    []*domain.OutboxEvent
	audits    []*domain.AuditLog

	lockMu      sync.Mutex
	locks       map[string]chan struct{}
	lockTimeout time.Duration
}

// NewStore creates an empty store. A non-positive lockTimeout selects
// DefaultLockTimeout.
func NewStore(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{
		custodies:   make(map[string]*domain.Custody),
		records:     make(map[string]*domain.TransactionRecord),
		locks:       make(map[string]chan struct{}),
		lockTimeout: lockTimeout,
	}
}

func (s *Store) semaphore(key string) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	sem, ok := s.locks[key]
	if !ok {
		sem = make(chan struct{}, 1)
		s.locks[key] = sem
	}
	return sem
}

// Tx is a store transaction. It owns the row locks it has taken and the
// writes it has staged.
type Tx struct {
	store *Store

	mu     sync.Mutex
	held   map[string]chan struct{}
	staged []func()
	done   bool
}

// lock takes the row lock for key, waiting at most the store lock timeout.
// Locks already held by t are not taken twice.
func (t *Tx) lock(ctx context.Context, key, custodyID string) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return errors.New("memory: transaction already finished")
	}
	if _, ok := t.held[key]; ok {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	sem := t.store.semaphore(key)

	timer := time.NewTimer(t.store.lockTimeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
	case <-timer.C:
		return domain.NewBusyError(custodyID, fmt.Errorf("lock wait exceeded %s", t.store.lockTimeout))
	case <-ctx.Done():
		return domain.NewBusyError(custodyID, fmt.Errorf("acquire lock %s: %w", key, ctx.Err()))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		<-sem
		return errors.New("memory: transaction already finished")
	}
	t.held[key] = sem
	return nil
}

func (t *Tx) stage(op func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errors.New("memory: transaction already finished")
	}
	t.staged = append(t.staged, op)
	return nil
}

// Commit applies staged writes atomically and releases every lock.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errors.New("memory: transaction already finished")
	}

	if err := ctx.Err(); err != nil {
		t.finish()
		return fmt.Errorf("commit: %w", err)
	}

	t.store.mu.Lock()
	for _, op := range t.staged {
		op()
	}
	t.store.mu.Unlock()

	t.finish()
	return nil
}

// Rollback discards staged writes and releases every lock. It is a no-op
// after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *Tx) finish() {
	t.staged = nil
	for key, sem := range t.held {
		<-sem
		delete(t.held, key)
	}
	t.done = true
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, errNotMemoryTx
	}
	return t, nil
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{store: m.store, held: make(map[string]chan struct{})}, nil
}

var _ usecase.TransactionManager = (*TxManager)(nil)
