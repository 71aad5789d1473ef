// Package tasks implements the deterministic task-dispatch substrate
// of spec §4.8: stable task names per logical event, an OIDC identity
// token minted by the dispatching role and verified by the worker role,
// and the dispatch client that posts to the managed queue.
package tasks

import (
	"context"
	"fmt"
)

// ExpireHoldTaskID returns the deterministic task name for an expire-
// hold task, so repeated scheduling of the same hold collapses into
// one queue entry (spec §4.8: "a name already exists response from
// the queue is success").
func ExpireHoldTaskID(holdID string) string {
	return fmt.Sprintf("expire-hold:%s", holdID)
}

// StripeTaskID returns the deterministic task name for a Stripe event
// handling task.
func StripeTaskID(eventID string) string {
	return fmt.Sprintf("stripe:%s", eventID)
}

// SendResponseTaskID returns the deterministic task name for a
// WhatsApp send-response task.
func SendResponseTaskID(outboxEventID string) string {
	return fmt.Sprintf("send-response:%s", outboxEventID)
}

// InboundMessageTaskID returns the deterministic task name for
// handling one inbound WhatsApp message, keyed on the same
// (property, channel, external id) triple the processed_events dedupe
// uses so a re-delivered webhook collapses onto the same task.
func InboundMessageTaskID(propertyID, channel, externalID string) string {
	return fmt.Sprintf("inbound-message:%s:%s:%s", propertyID, channel, externalID)
}

// Outcome classifies how a task's dispatch attempt should be reported
// to the caller queuing it — only used by the dispatch client's
// "already exists" short circuit, not by the worker handler (which
// returns an HTTP status directly per spec §4.8).
type Outcome int

const (
	OutcomeEnqueued Outcome = iota
	OutcomeAlreadyExists
)

// Enqueuer posts a task to the managed queue. Implementations must
// treat a "name already exists" response from the queue as success,
// not an error (spec §4.8).
type Enqueuer interface {
	Enqueue(ctx context.Context, taskID, targetURL string, payload []byte) (Outcome, error)
}
