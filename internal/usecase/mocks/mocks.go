package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/custodyledger/internal/domain"
	"github.com/iho/custodyledger/internal/usecase"
)

// MockCustodyRepository is a mock implementation of CustodyRepository.
type MockCustodyRepository struct {
	mu        sync.RWMutex
	custodies map[string]*domain.Custody

	CreateFunc           func(ctx context.Context, tx usecase.Transaction, custody *domain.Custody) error
	GetByIDFunc          func(ctx context.Context, id string) (*domain.Custody, error)
	GetByIDForUpdateFunc func(ctx context.Context, tx usecase.Transaction, id string) (*domain.Custody, error)
	UpdateRemainingFunc  func(ctx context.Context, tx usecase.Transaction, id string, remaining decimal.Decimal, updatedAt time.Time) error
	UpdateBudgetFunc     func(ctx context.Context, tx usecase.Transaction, id string, budget, remaining decimal.Decimal, updatedAt time.Time) error
	UpdateStatusFunc     func(ctx context.Context, tx usecase.Transaction, id string, status domain.CustodyStatus, updatedAt time.Time) error
	ListFunc             func(ctx context.Context, limit, offset int) ([]*domain.Custody, error)
}

func NewMockCustodyRepository(custodies ...*domain.Custody) *MockCustodyRepository {
	m := &MockCustodyRepository{
		custodies: make(map[string]*domain.Custody),
	}
	for _, c := range custodies {
		m.custodies[c.ID] = c
	}
	return m
}

func (m *MockCustodyRepository) Create(ctx context.Context, tx usecase.Transaction, custody *domain.Custody) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, custody)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *custody
	m.custodies[custody.ID] = &c
	return nil
}

func (m *MockCustodyRepository) GetByID(ctx context.Context, id string) (*domain.Custody, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.custodies[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrCustodyNotFound.WithCustody(id)
}

func (m *MockCustodyRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Custody, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockCustodyRepository) UpdateRemaining(ctx context.Context, tx usecase.Transaction, id string, remaining decimal.Decimal, updatedAt time.Time) error {
	if m.UpdateRemainingFunc != nil {
		return m.UpdateRemainingFunc(ctx, tx, id, remaining, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.custodies[id]; ok {
		c.Commit(remaining, updatedAt)
	}
	return nil
}

func (m *MockCustodyRepository) UpdateBudget(ctx context.Context, tx usecase.Transaction, id string, budget, remaining decimal.Decimal, updatedAt time.Time) error {
	if m.UpdateBudgetFunc != nil {
		return m.UpdateBudgetFunc(ctx, tx, id, budget, remaining, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.custodies[id]; ok {
		c.Budget = budget
		c.Commit(remaining, updatedAt)
	}
	return nil
}

func (m *MockCustodyRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.CustodyStatus, updatedAt time.Time) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, id, status, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.custodies[id]; ok {
		c.Status = status
		c.Version++
		c.UpdatedAt = updatedAt
	}
	return nil
}

func (m *MockCustodyRepository) List(ctx context.Context, limit, offset int) ([]*domain.Custody, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var custodies []*domain.Custody
	for _, c := range m.custodies {
		cp := *c
		custodies = append(custodies, &cp)
	}
	sort.Slice(custodies, func(i, j int) bool { return custodies[i].ID < custodies[j].ID })
	if offset >= len(custodies) {
		return nil, nil
	}
	custodies = custodies[offset:]
	if len(custodies) > limit {
		custodies = custodies[:limit]
	}
	return custodies, nil
}

// MockTransactionRecordRepository is a mock implementation of TransactionRecordRepository.
type MockTransactionRecordRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.TransactionRecord

	CreateFunc           func(ctx context.Context, tx usecase.Transaction, record *domain.TransactionRecord) error
	GetByIDFunc          func(ctx context.Context, id string) (*domain.TransactionRecord, error)
	GetByIDForUpdateFunc func(ctx context.Context, tx usecase.Transaction, id string) (*domain.TransactionRecord, error)
	UpdateFunc           func(ctx context.Context, tx usecase.Transaction, record *domain.TransactionRecord) error
	MarkReversedFunc     func(ctx context.Context, tx usecase.Transaction, id string, reversedAt time.Time) error
	SumEffectsFunc       func(ctx context.Context, custodyID string) (decimal.Decimal, error)
}

func NewMockTransactionRecordRepository(records ...*domain.TransactionRecord) *MockTransactionRecordRepository {
	m := &MockTransactionRecordRepository{
		records: make(map[string]*domain.TransactionRecord),
	}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return m
}

func (m *MockTransactionRecordRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.TransactionRecord) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *record
	m.records[record.ID] = &r
	return nil
}

func (m *MockTransactionRecordRepository) GetByID(ctx context.Context, id string) (*domain.TransactionRecord, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.records[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, domain.ErrTransactionNotFound.WithTransaction(id)
}

func (m *MockTransactionRecordRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.TransactionRecord, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockTransactionRecordRepository) Update(ctx context.Context, tx usecase.Transaction, record *domain.TransactionRecord) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *record
	m.records[record.ID] = &r
	return nil
}

func (m *MockTransactionRecordRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id string, reversedAt time.Time) error {
	if m.MarkReversedFunc != nil {
		return m.MarkReversedFunc(ctx, tx, id, reversedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		r.Status = domain.TransactionStatusReversed
		r.ReversedAt = &reversedAt
	}
	return nil
}

func (m *MockTransactionRecordRepository) ListByCustody(ctx context.Context, custodyID string, limit, offset int) ([]*domain.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []*domain.TransactionRecord
	for _, r := range m.records {
		if r.CustodyID == custodyID && !r.IsReversed() {
			cp := *r
			records = append(records, &cp)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID > records[j].ID })
	if offset >= len(records) {
		return nil, nil
	}
	records = records[offset:]
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MockTransactionRecordRepository) SumEffects(ctx context.Context, custodyID string) (decimal.Decimal, error) {
	if m.SumEffectsFunc != nil {
		return m.SumEffectsFunc(ctx, custodyID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := decimal.Zero
	for _, r := range m.records {
		if r.CustodyID == custodyID && !r.IsReversed() {
			sum = sum.Add(r.Effect)
		}
	}
	return sum, nil
}

// MockOutboxRepository is a mock implementation of OutboxRepository that keeps
// every event it is given.
type MockOutboxRepository struct {
	mu     sync.Mutex
	Events []*domain.OutboxEvent

	CreateFunc func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var events []*domain.OutboxEvent
	for _, e := range m.Events {
		if !e.Published && len(events) < limit {
			events = append(events, e)
		}
	}
	return events, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
		}
	}
	return nil
}

func (m *MockOutboxRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var events []*domain.OutboxEvent
	for _, e := range m.Events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			events = append(events, e)
		}
	}
	return events, nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	return nil
}

// MockAuditRepository is a mock implementation of AuditRepository.
type MockAuditRepository struct {
	mu   sync.Mutex
	Logs []*domain.AuditLog

	CreateTxFunc func(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, log)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, log)
	return nil
}

func (m *MockAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var logs []*domain.AuditLog
	for _, l := range m.Logs {
		if filter.CustodyID == "" || l.CustodyID == filter.CustodyID {
			logs = append(logs, l)
		}
	}
	return logs, nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("mock-id-%d", m.counter)
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
	ReleaseFunc     func(ctx context.Context, key string) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Get returns the stored value for key.
func (m *MockIdempotencyStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}
