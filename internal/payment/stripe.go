package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/event"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/hotelly/hotelly/internal/apperr"
)

// StripeProvider adapts stripe-go/v81 to the Provider interface.
type StripeProvider struct {
	webhookSecret string
}

// NewStripeProvider configures the adapter. apiKey is set on the
// package-global stripe.Key once at process start, matching the
// stripe-go client convention.
func NewStripeProvider(apiKey, webhookSecret string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{webhookSecret: webhookSecret}
}

// VerifySignature validates the Stripe-Signature header and returns
// only the event id — the ingress webhook never inspects the full
// event body (spec §4.5).
func (p *StripeProvider) VerifySignature(payload []byte, sigHeader string) (string, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, p.webhookSecret)
	if err != nil {
		return "", apperr.Permanent(apperr.CodeSignatureInvalid, "stripe signature verification failed: "+err.Error())
	}
	return event.ID, nil
}

// RetrieveEvent fetches the full event by id, for the worker only.
func (p *StripeProvider) RetrieveEvent(ctx context.Context, eventID string) (*Event, error) {
	ev, err := event.Get(eventID, nil)
	if err != nil {
		return nil, classifyStripeErr(err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type), Raw: ev.Data.Raw}

	var obj struct {
		Metadata struct {
			HoldID         string `json:"hold_id"`
			PropertyID     string `json:"property_id"`
			ConversationID string `json:"conversation_id"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(ev.Data.Raw, &obj); err == nil {
		out.HoldID = obj.Metadata.HoldID
		out.PropertyID = obj.Metadata.PropertyID
		out.ConversationID = obj.Metadata.ConversationID
	}
	return out, nil
}

// CreateCheckoutSession creates a Stripe Checkout Session carrying the
// mandatory {hold_id, property_id, conversation_id} metadata and a
// per-call idempotency key (spec §4.5).
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(in.Currency),
					UnitAmount: stripe.Int64(in.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Reservation hold %s", in.HoldID)),
					},
				},
			},
		},
		Metadata: map[string]string{
			"hold_id":         in.HoldID,
			"property_id":     in.PropertyID,
			"conversation_id": in.ConversationID,
		},
	}
	params.IdempotencyKey = stripe.String(in.IdempotencyKey)

	sess, err := session.New(params)
	if err != nil {
		return nil, classifyStripeErr(err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// classifyStripeErr maps a stripe-go error onto apperr's taxonomy
// (spec §7): 429/5xx and non-Stripe errors are transient, every other
// 4xx is permanent. The classified error is returned to the caller; no
// retry is made in this package.
func classifyStripeErr(err error) error {
	var stripeErr *stripe.Error
	if se, ok := err.(*stripe.Error); ok {
		stripeErr = se
	}
	if stripeErr == nil {
		return apperr.Transient(apperr.CodeTransientFailure, "stripe request failed", err)
	}
	if stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == 429 {
		return apperr.Transient(apperr.CodeTransientFailure, "stripe transient error", err)
	}
	return apperr.Permanent(apperr.CodeProviderRejected, "stripe rejected request: "+stripeErr.Msg)
}
