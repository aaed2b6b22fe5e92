// Package event defines the closed set of domain notification types and the
// immutable Event value handed to the router by the feedback CRUD layer.
package event

import (
	"encoding/json"
	"fmt"
)

// Type identifies a feedback lifecycle notification.
type Type string

const (
	// TypeNewFeedback is sent to an employee when a manager submits feedback for them.
	TypeNewFeedback Type = "new_feedback"
	// TypeFeedbackCreated is sent to the manager for their own dashboard update.
	TypeFeedbackCreated Type = "feedback_created"
	// TypeFeedbackUpdated is sent to both parties when feedback is edited.
	TypeFeedbackUpdated Type = "feedback_updated"
	// TypeFeedbackDeleted is sent to both parties when feedback is removed.
	TypeFeedbackDeleted Type = "feedback_deleted"
	// TypeFeedbackAcknowledged is sent to both parties when an employee acknowledges feedback.
	TypeFeedbackAcknowledged Type = "feedback_acknowledged"
)

var knownTypes = map[Type]struct{}{
	TypeNewFeedback:          {},
	TypeFeedbackCreated:      {},
	TypeFeedbackUpdated:      {},
	TypeFeedbackDeleted:      {},
	TypeFeedbackAcknowledged: {},
}

// ParseType converts a wire string into a Type, rejecting anything outside
// the closed set. Unknown strings are a caller bug, not a routing outcome.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if _, ok := knownTypes[t]; !ok {
		return "", fmt.Errorf("unknown event type %q", s)
	}
	return t, nil
}

func (t Type) String() string {
	return string(t)
}

// Valid reports whether t belongs to the closed set of event types.
func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Event is one domain notification with its ordered target list. Duplicated
// targets are delivered independently. The payload is opaque to the delivery
// subsystem and already serialized by the caller.
type Event struct {
	Type    Type
	Targets []string
	Payload json.RawMessage
}

// New builds an Event. The target slice is copied so callers cannot mutate
// the event after dispatch has started.
func New(t Type, targets []string, payload json.RawMessage) Event {
	copied := make([]string, len(targets))
	copy(copied, targets)
	return Event{Type: t, Targets: copied, Payload: payload}
}
