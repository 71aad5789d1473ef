package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/idempotency"
	"github.com/hotelly/hotelly/internal/identity"
	"github.com/hotelly/hotelly/internal/redisclient"
)

// SendResponseInput is the body of a send-response task (spec §4.9):
// which outbox event is being delivered, to whom, and with what text.
type SendResponseInput struct {
	PropertyID     string
	OutboxEventID  string
	ConversationID string
	ContactHash    string
	Channel        string // "meta" | "evolution"
	Body           string
}

// Handler implements the send-response task handler: it takes the
// delivery lease, resolves the recipient's routable id out of the
// contact vault, calls the configured provider, and records the
// outcome — returning a classified error the HTTP layer maps onto the
// 500/200 contract of spec §4.8.
type Handler struct {
	pool     *pgxpool.Pool
	vault    *identity.Vault
	registry *Registry
	cache    *redisclient.Client // optional fast-path lease check, nil-safe
}

func NewHandler(pool *pgxpool.Pool, vault *identity.Vault, registry *Registry, cache *redisclient.Client) *Handler {
	return &Handler{pool: pool, vault: vault, registry: registry, cache: cache}
}

const deliveryLeaseCachePrefix = "outbox-lease:"

// leaseCacheKey matches the (property_id, outbox_event_id) granularity
// the DB-row lease already uses (spec §4.9's 60-second freshness
// window).
func leaseCacheKey(propertyID, outboxEventID string) string {
	return deliveryLeaseCachePrefix + propertyID + ":" + outboxEventID
}

// SendOutcome mirrors the task contract's three cases directly so the
// HTTP layer doesn't need to inspect error classes to pick a status.
type SendOutcome struct {
	AlreadySent bool
}

func (h *Handler) Send(ctx context.Context, in SendResponseInput) (*SendOutcome, error) {
	if h.cache != nil {
		won, err := h.cache.SetNX(ctx, leaseCacheKey(in.PropertyID, in.OutboxEventID), 60*time.Second)
		if err == nil && !won {
			return nil, apperr.Transient(apperr.CodeTransientFailure, "delivery lease held by another attempt (cache fast path)", nil)
		}
	}

	lease, err := idempotency.AcquireDeliveryLease(ctx, h.pool, in.PropertyID, in.OutboxEventID)
	if err != nil {
		return nil, err
	}
	switch lease {
	case idempotency.LeaseAlreadySent:
		return &SendOutcome{AlreadySent: true}, nil
	case idempotency.LeaseHeldByOther:
		return nil, apperr.Transient(apperr.CodeTransientFailure, "delivery lease held by another attempt", nil)
	}

	routableID, err := h.vault.Read(ctx, in.PropertyID, in.Channel, in.ContactHash)
	if err != nil {
		h.recordFailure(ctx, in, err)
		return nil, err
	}

	provider, ok := h.registry.Get(in.Channel)
	if !ok {
		failErr := apperr.Permanent(apperr.CodeMissingConfig, "no whatsapp provider configured for channel "+in.Channel)
		h.recordFailure(ctx, in, failErr)
		return nil, failErr
	}

	_, sendErr := provider.Send(ctx, SendInput{
		PropertyID:     in.PropertyID,
		RoutableID:     routableID,
		Body:           in.Body,
		ConversationID: in.ConversationID,
	})
	if sendErr != nil {
		h.recordFailure(ctx, in, sendErr)
		return nil, sendErr
	}

	if err := idempotency.MarkDeliverySent(ctx, h.pool, in.PropertyID, in.OutboxEventID); err != nil {
		return nil, err
	}
	return &SendOutcome{}, nil
}

// recordFailure updates the delivery row with a sanitized (no
// recipient, no message body) error string, and best-effort records
// it — a failure to record must not mask the original error.
func (h *Handler) recordFailure(ctx context.Context, in SendResponseInput, cause error) {
	sanitized := sanitizeErrorForLog(cause)
	if apperr.IsTerminal(cause) {
		_ = idempotency.MarkDeliveryFailedPermanent(ctx, h.pool, in.PropertyID, in.OutboxEventID, sanitized)
		return
	}
	_ = idempotency.RecordDeliveryTransientError(ctx, h.pool, in.PropertyID, in.OutboxEventID, sanitized)
}

// sanitizeErrorForLog keeps only the stable error code, never the
// underlying message (which may embed a phone number or provider echo
// of the message body).
func sanitizeErrorForLog(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		b, marshalErr := json.Marshal(struct {
			Code string `json:"code"`
		}{Code: ae.Code})
		if marshalErr == nil {
			return string(b)
		}
	}
	return "unclassified_error"
}
