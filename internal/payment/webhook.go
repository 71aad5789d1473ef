package payment

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/idempotency"
)

// ReceiveWebhook implements spec §4.5's ingress-side contract: verify
// the signature, dedupe on processed_events, and hand back whether a
// task should be enqueued. It never calls the provider API or mutates
// domain state — that is entirely the worker's job.
type ReceiptOutcome struct {
	EventID   string
	Duplicate bool
}

func ReceiveWebhook(ctx context.Context, pool *pgxpool.Pool, provider Provider, propertyID string, payload []byte, sigHeader string) (*ReceiptOutcome, error) {
	eventID, err := provider.VerifySignature(payload, sigHeader)
	if err != nil {
		return nil, err // already a ClassPermanent apperr.Error, no side effect
	}

	idem := idempotency.New(pool)
	claimed, err := idem.MarkProcessed(ctx, propertyID, "stripe", eventID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return &ReceiptOutcome{EventID: eventID, Duplicate: true}, nil
	}
	return &ReceiptOutcome{EventID: eventID, Duplicate: false}, nil
}

// CreateCheckout wraps Provider.CreateCheckoutSession and persists the
// resulting session id into payments with status "created" (spec
// §4.5 "Checkout session creation").
func CreateCheckout(ctx context.Context, pool *pgxpool.Pool, provider Provider, in CheckoutSessionInput) (*CheckoutSession, error) {
	sess, err := provider.CreateCheckoutSession(ctx, in)
	if err != nil {
		return nil, err
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO payments (property_id, provider, provider_object_id, hold_id, status, amount_cents, currency, created_at)
		VALUES ($1, 'stripe', $2, $3, 'created', $4, $5, now())
		ON CONFLICT (property_id, provider, provider_object_id) DO NOTHING`,
		in.PropertyID, sess.ID, in.HoldID, in.AmountCents, in.Currency)
	if err != nil {
		return nil, apperr.Transient(apperr.CodeTransientFailure, "payments insert failed", err)
	}
	return sess, nil
}
