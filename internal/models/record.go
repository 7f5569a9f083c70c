package models

import "time"

// QueryStatus is the lifecycle state of a query record. Transitions are
// monotone: pending may become completed or failed, nothing ever reverts.
type QueryStatus string

const (
	StatusPending   QueryStatus = "pending"
	StatusCompleted QueryStatus = "completed"
	StatusFailed    QueryStatus = "failed"
)

// QueryRecord is one persisted question/answer exchange.
type QueryRecord struct {
	ID        string      `json:"id"`
	Question  string      `json:"question"`
	Answer    string      `json:"answer"`
	Status    QueryStatus `json:"status"`
	CreatedAt time.Time   `json:"timestamp"`
}
