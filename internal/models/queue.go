package models

import (
	"encoding/json"
	"time"
)

// OperationKind represents the kind of a queued mutation.
type OperationKind string

const (
	OperationCreate OperationKind = "create"
	OperationUpdate OperationKind = "update"
	OperationDelete OperationKind = "delete"
)

// MaxOperationRetries is the cap on automatic replay attempts for a single
// queued operation. Once reached the operation is retained but no longer
// retried automatically.
const MaxOperationRetries = 3

// QueuedOperation is a pending mutation that could not reach the server when
// it was issued. Operations are replayed oldest-first once connectivity
// returns and removed only after confirmed remote success.
type QueuedOperation struct {
	ID         string          `json:"id"`
	Kind       OperationKind   `json:"type"`
	Entity     string          `json:"entity"`
	Data       json.RawMessage `json:"data,omitempty"`
	RetryCount int             `json:"retry_count"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Exhausted reports whether the operation has used up its automatic retries.
func (op *QueuedOperation) Exhausted() bool {
	return op.RetryCount >= MaxOperationRetries
}

// OperationResult is the per-operation outcome reported by the batch sync
// endpoint.
type OperationResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
