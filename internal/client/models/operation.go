package models

import (
	"fmt"
	"net/http"
	"time"
)

// OperationKind selects the HTTP verb used when an operation is replayed.
type OperationKind string

const (
	OperationCreate OperationKind = "create"
	OperationUpdate OperationKind = "update"
	OperationDelete OperationKind = "delete"
)

// Method maps the kind to its HTTP verb.
func (k OperationKind) Method() (string, error) {
	switch k {
	case OperationCreate:
		return http.MethodPost, nil
	case OperationUpdate:
		return http.MethodPut, nil
	case OperationDelete:
		return http.MethodDelete, nil
	default:
		return "", fmt.Errorf("unknown operation kind %q", string(k))
	}
}

// Priority orders the queue: high before normal before low.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Rank returns the sort rank of p; lower drains first. Unknown values sort
// with normal.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// QueuedOperation is a mutation waiting to be replayed against the remote API.
type QueuedOperation struct {
	ID       string
	UserID   string
	Kind     OperationKind
	Endpoint string
	Payload  []byte

	EnqueuedAt time.Time
	RetryCount int
	MaxRetries int
	// RetryDelay is advisory: drains never sleep, it only feeds NextAttemptAt.
	RetryDelay time.Duration
	Priority   Priority
	DependsOn  []string

	LastAttemptAt time.Time
	LastError     string
}

// NextAttemptAt is the earliest time a retry is advised.
func (o *QueuedOperation) NextAttemptAt() time.Time {
	if o.LastAttemptAt.IsZero() {
		return o.EnqueuedAt
	}
	return o.LastAttemptAt.Add(o.RetryDelay)
}

// Exhausted reports whether one more failure would push RetryCount past MaxRetries.
func (o *QueuedOperation) Exhausted() bool {
	return o.RetryCount+1 > o.MaxRetries
}

// DeadLetter holds an operation that used up its retry budget.
type DeadLetter struct {
	Operation QueuedOperation
	Reason    string
	FailedAt  time.Time
}
