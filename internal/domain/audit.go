package domain

import (
	"encoding/json"
	"time"
)

// AuditLog represents an audit trail entry for compliance and debugging
type AuditLog struct {
	ID           string
	UserID       string // Who performed the action
	Action       string // What action (transaction.apply, custody.top_up, etc.)
	ResourceType string // Type of resource (custody, transaction, payroll_run)
	ResourceID   string // ID of the resource
	CustodyID    string // Owning custody
	RequestID    string // Request ID for tracing
	BeforeState  JSON   // State before the action
	AfterState   JSON   // State after the action
	Status       string // success, failure
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	AuditActionCustodyCreate      AuditAction = "custody.create"
	AuditActionCustodyTopUp       AuditAction = "custody.top_up"
	AuditActionCustodyStatus      AuditAction = "custody.status"
	AuditActionTransactionApply   AuditAction = "transaction.apply"
	AuditActionTransactionAmend   AuditAction = "transaction.amend"
	AuditActionTransactionReverse AuditAction = "transaction.reverse"
	AuditActionPayrollRunApply    AuditAction = "payroll_run.apply"
)

// AuditStatus represents the status of an audited action. Audit rows are
// written inside the mutation's transaction, so only committed actions are
// logged.
type AuditStatus string

const AuditStatusSuccess AuditStatus = "success"

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

// AuditFilter defines filters for querying audit logs
type AuditFilter struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	CustodyID    string
	Limit        int
	Offset       int
}
