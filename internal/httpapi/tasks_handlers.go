package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/idempotency"
	"github.com/hotelly/hotelly/internal/intent"
	"github.com/hotelly/hotelly/internal/reservation"
	"github.com/hotelly/hotelly/internal/store"
	"github.com/hotelly/hotelly/internal/tasks"
	"github.com/hotelly/hotelly/internal/whatsapp"
)

// taskHandlers implements the worker role's /tasks/* surface (spec
// §4.8): every handler here maps its outcome onto the 500/200/200-
// already_sent retry contract instead of letting a panic or a raw
// error reach the queue.
type taskHandlers struct {
	deps *Deps
}

func newTaskHandlers(deps *Deps) *taskHandlers {
	return &taskHandlers{deps: deps}
}

// writeTaskResult maps err onto the contract: nil -> 200, a terminal
// apperr -> 200 with terminal:true (the queue must not retry), anything
// else -> 500 (retry).
func writeTaskResult(w http.ResponseWriter, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	var ae *apperr.Error
	if apperr.IsTerminal(err) && errors.As(err, &ae) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "terminal": true, "error": ae.Code})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": apperr.CodeTransientFailure})
}

type expireHoldTask struct {
	PropertyID string `json:"property_id"`
	HoldID     string `json:"hold_id"`
}

// handleExpireHold implements the expire-hold task (spec §4.4): the
// queue's own scheduling delay is what makes this fire at expires_at,
// and the task's own task_id receipt is claimed as the first durable
// effect before ExpireHold runs, so the handler honors the same
// dedupe gate as every other worker task even though ExpireHold's own
// status check is already idempotent on its own.
func (h *taskHandlers) handleExpireHold(w http.ResponseWriter, r *http.Request) {
	var in expireHoldTask
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeTaskResult(w, apperr.Permanent(apperr.CodeSchemaMismatch, "malformed expire-hold task body"))
		return
	}

	taskID := tasks.ExpireHoldTaskID(in.HoldID)
	claimed, err := h.deps.Idempotency.MarkProcessed(r.Context(), in.PropertyID, "tasks", taskID)
	if err != nil {
		writeTaskResult(w, err)
		return
	}
	if !claimed {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "already_processed": true})
		return
	}

	err = h.deps.Inventory.ExpireHold(r.Context(), in.PropertyID, in.HoldID)
	writeTaskResult(w, err)
}

// sendResponseTask is the body of a send-response task: which outbox
// event to deliver and where, resolved once at enqueue time.
type sendResponseTask struct {
	PropertyID     string `json:"property_id"`
	OutboxEventID  string `json:"outbox_event_id"`
	ConversationID string `json:"conversation_id"`
	ContactHash    string `json:"contact_hash"`
	Channel        string `json:"channel"`
}

// handleStripeTask implements the stripe task (spec §4.4, §4.5): claim
// the (stripe, event_id) receipt as the first durable effect so task
// redelivery can never run the conversion twice, retrieve the full
// event, convert the hold if it's a completed checkout, and fan out a
// send-response task carrying the reservation.confirmed outbox event
// Convert itself emitted — never a freshly minted one.
func (h *taskHandlers) handleStripeTask(w http.ResponseWriter, r *http.Request) {
	var in stripeEventTask
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeTaskResult(w, apperr.Permanent(apperr.CodeSchemaMismatch, "malformed stripe task body"))
		return
	}

	claimed, err := h.deps.Idempotency.MarkProcessed(r.Context(), in.PropertyID, "stripe", in.EventID)
	if err != nil {
		writeTaskResult(w, err)
		return
	}
	if !claimed {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "already_processed": true})
		return
	}

	provider, ok := h.deps.Payments.Get("stripe")
	if !ok {
		writeTaskResult(w, apperr.Permanent(apperr.CodeMissingConfig, "stripe provider not configured"))
		return
	}

	event, err := provider.RetrieveEvent(r.Context(), in.EventID)
	if err != nil {
		writeTaskResult(w, err)
		return
	}

	if event.Type != "checkout.session.completed" && event.Type != "payment_intent.succeeded" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ignored_event_type": event.Type})
		return
	}

	var obj struct {
		AmountTotal     int64  `json:"amount_total"`
		Currency        string `json:"currency"`
		PaymentIntent   string `json:"payment_intent"`
		CustomerDetails struct {
			Name  string  `json:"name"`
			Email *string `json:"email"`
			Phone *string `json:"phone"`
		} `json:"customer_details"`
	}
	_ = json.Unmarshal(event.Raw, &obj)

	providerObjectID := obj.PaymentIntent
	if providerObjectID == "" {
		providerObjectID = event.ID
	}

	outcome, err := h.deps.Reservations.Convert(r.Context(), reservation.ConvertInput{
		PropertyID:       event.PropertyID,
		HoldID:           event.HoldID,
		ProviderObjectID: providerObjectID,
		AmountCents:      obj.AmountTotal,
		Currency:         obj.Currency,
		GuestEmail:       obj.CustomerDetails.Email,
		GuestPhone:       obj.CustomerDetails.Phone,
		GuestName:        obj.CustomerDetails.Name,
	})
	if err != nil {
		writeTaskResult(w, err)
		return
	}

	switch {
	case outcome.ConversationID == nil:
		// No conversation to notify (e.g. a manually created reservation
		// paid outside the chat flow).
	case outcome.NeedsManual:
		if err := h.enqueueReply(r.Context(), event.PropertyID, *outcome.ConversationID, "reservation_needs_manual_review", map[string]any{}); err != nil {
			writeTaskResult(w, err)
			return
		}
	case outcome.ConfirmedOutboxEventID != nil:
		// Convert performed the conversion just now and already emitted
		// reservation.confirmed; carry that same outbox event forward
		// instead of minting a second one for this single conversion.
		if err := h.dispatchSendResponse(r.Context(), event.PropertyID, *outcome.ConversationID, *outcome.ConfirmedOutboxEventID); err != nil {
			writeTaskResult(w, err)
			return
		}
	default:
		// Hold was already converted by an earlier delivery of this same
		// event: the reservation.confirmed reply for it was already
		// dispatched then, so a redelivery here is a pure no-op.
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "reservation_id": outcome.ReservationID})
}

// enqueueReply emits a PII-free outbox event and dispatches the
// send-response task for it. Use this when the caller hasn't already
// emitted the event it wants delivered; callers that already emitted
// one as part of their own domain transaction (e.g. Convert's
// reservation.confirmed) should call dispatchSendResponse directly
// with that event's id instead of emitting a second one here.
func (h *taskHandlers) enqueueReply(ctx context.Context, propertyID, conversationID, kind string, fields map[string]any) error {
	var outboxID string
	err := h.deps.Store.WithTx(ctx, func(tx pgx.Tx) error {
		id, err := idempotency.Emit(ctx, tx, propertyID, kind, fields)
		if err != nil {
			return err
		}
		outboxID = id
		return nil
	})
	if err != nil {
		return err
	}
	return h.dispatchSendResponse(ctx, propertyID, conversationID, outboxID)
}

// dispatchSendResponse queues the send-response task for an outbox
// event that already exists, resolving channel and contact hash from
// the conversation id (channel:contact_hash, the same shape the
// inbound webhook synthesizes it in).
func (h *taskHandlers) dispatchSendResponse(ctx context.Context, propertyID, conversationID, outboxID string) error {
	channel, contactHash := splitConversationID(conversationID)

	body, err := json.Marshal(sendResponseTask{
		PropertyID:     propertyID,
		OutboxEventID:  outboxID,
		ConversationID: conversationID,
		ContactHash:    contactHash,
		Channel:        channel,
	})
	if err != nil {
		return apperr.Permanent(apperr.CodeSchemaMismatch, "send-response task payload marshal failed")
	}
	taskID := tasks.SendResponseTaskID(outboxID)
	_, err = h.deps.TaskClient.Enqueue(ctx, taskID, h.deps.Cfg.TaskAudience+"/tasks/send-response", body)
	return err
}

// handleSendResponse implements the send-response task (spec §4.9):
// it reads back the structured event it's delivering, renders the
// canned text for its kind, and hands off to the channel provider.
func (h *taskHandlers) handleSendResponse(w http.ResponseWriter, r *http.Request) {
	var in sendResponseTask
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeTaskResult(w, apperr.Permanent(apperr.CodeSchemaMismatch, "malformed send-response task body"))
		return
	}

	var kind string
	var payload json.RawMessage
	err := h.deps.Store.Pool.QueryRow(r.Context(), `SELECT kind, payload FROM outbox_events WHERE property_id = $1 AND id = $2`,
		in.PropertyID, in.OutboxEventID).Scan(&kind, &payload)
	if err != nil {
		if store.IsNoRows(err) {
			writeTaskResult(w, apperr.Permanent(apperr.CodeNotFound, "outbox event not found"))
			return
		}
		writeTaskResult(w, apperr.Transient(apperr.CodeTransientFailure, "outbox event lookup failed", err))
		return
	}

	outcome, err := h.deps.SendResponse.Send(r.Context(), whatsapp.SendResponseInput{
		PropertyID:     in.PropertyID,
		OutboxEventID:  in.OutboxEventID,
		ConversationID: in.ConversationID,
		ContactHash:    in.ContactHash,
		Channel:        in.Channel,
		Body:           whatsapp.RenderTemplate(kind, payload),
	})
	if err != nil {
		writeTaskResult(w, err)
		return
	}
	if outcome.AlreadySent {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "already_sent": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleInboundMessage implements the inbound-message task: classify
// the message, route it to the matching domain action, and queue a
// reply. Anything the deterministic core can't resolve from the
// classifier's slots alone degrades to a human handoff rather than
// guessing.
func (h *taskHandlers) handleInboundMessage(w http.ResponseWriter, r *http.Request) {
	var in inboundMessageTask
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeTaskResult(w, apperr.Permanent(apperr.CodeSchemaMismatch, "malformed inbound-message task body"))
		return
	}

	conversationID := in.Provider + ":" + in.ContactHash
	classification := h.deps.Classifier.Classify(r.Context(), in.Body)

	var err error
	switch classification.Intent {
	case intent.IntentQuoteRequest:
		err = h.replyQuote(r.Context(), in.PropertyID, conversationID, classification)
	case intent.IntentCheckoutRequest, intent.IntentCancelRequest:
		err = h.enqueueReply(r.Context(), in.PropertyID, conversationID, "human_handoff_requested", map[string]any{})
	default:
		err = h.enqueueReply(r.Context(), in.PropertyID, conversationID, "human_handoff_requested", map[string]any{})
	}
	writeTaskResult(w, err)
}

// replyQuote queues a human handoff when the classifier did not resolve
// checkin, checkout and adult count; otherwise it replies
// quote_unavailable with reason room_type_not_specified. It does not
// call the quote engine: no room type is tracked per conversation.
func (h *taskHandlers) replyQuote(ctx context.Context, propertyID, conversationID string, c intent.Classification) error {
	if c.Entities.Checkin == nil || c.Entities.Checkout == nil || c.Entities.AdultCount == nil {
		return h.enqueueReply(ctx, propertyID, conversationID, "human_handoff_requested", map[string]any{})
	}
	return h.enqueueReply(ctx, propertyID, conversationID, "quote_unavailable", map[string]any{"reason": "room_type_not_specified"})
}

func splitConversationID(conversationID string) (channel, contactHash string) {
	for i := 0; i < len(conversationID); i++ {
		if conversationID[i] == ':' {
			return conversationID[:i], conversationID[i+1:]
		}
	}
	return "", conversationID
}
