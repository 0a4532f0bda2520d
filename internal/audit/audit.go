// Package audit records ingestion actions for the external audit trail.
// Recording is fire-and-forget: a failing recorder must never abort the
// operation being audited.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one audited action.
type Event struct {
	ID       string            `json:"id"`
	UserID   string            `json:"user_id"`
	Action   string            `json:"action"`
	Resource string            `json:"resource"`
	Result   string            `json:"result"`
	Details  map[string]string `json:"details,omitempty"`
	Time     time.Time         `json:"time"`
}

// Action and result constants used by the ingestion worker.
const (
	ActionIngest     = "ingest"
	ActionQuarantine = "quarantine"

	ResultStored     = "stored"
	ResultDuplicate  = "duplicate"
	ResultRejected   = "rejected"
	ResultQuarantine = "quarantined"
)

// Recorder accepts audit events. Implementations must be non-blocking or
// bounded; errors are handled internally.
type Recorder interface {
	Record(ctx context.Context, ev Event)
	Close() error
}

// NewEvent fills in the generated ID and timestamp.
func NewEvent(userID, action, resource, result string, details map[string]string) Event {
	return Event{
		ID:       uuid.New().String(),
		UserID:   userID,
		Action:   action,
		Resource: resource,
		Result:   result,
		Details:  details,
		Time:     time.Now().UTC(),
	}
}

// Noop discards all events. Used when auditing is disabled and in tests.
type Noop struct{}

func (Noop) Record(ctx context.Context, ev Event) {}
func (Noop) Close() error                         { return nil }
