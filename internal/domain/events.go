package domain

import "time"

// Event types
const (
	EventTypeCustodyCreated       = "custody.created"
	EventTypeCustodyToppedUp      = "custody.topped_up"
	EventTypeCustodyStatusChanged = "custody.status_changed"
	EventTypeTransactionApplied   = "transaction.applied"
	EventTypeTransactionAmended   = "transaction.amended"
	EventTypeTransactionReversed  = "transaction.reversed"
	EventTypePayrollRunApplied    = "payroll_run.applied"
)

// Aggregate types
const (
	AggregateTypeCustody     = "custody"
	AggregateTypeTransaction = "transaction"
	AggregateTypePayrollRun  = "payroll_run"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// BalanceEventPayload builds the payload shared by all balance-moving events.
func BalanceEventPayload(custody *Custody, record *TransactionRecord, delta string) map[string]any {
	payload := map[string]any{
		"custody_id": custody.ID,
		"remaining":  custody.Remaining.String(),
		"budget":     custody.Budget.String(),
		"delta":      delta,
	}
	if record != nil {
		payload["transaction_id"] = record.ID
		payload["kind"] = string(record.Kind)
		payload["amount"] = record.Amount.String()
	}
	return payload
}
