// Package payment implements the payment protocol of spec §4.5: a
// thin provider-capability interface (grounded on the same
// capability-interface + registry shape Hotelly's WhatsApp package
// uses), a Stripe adapter behind it, webhook receipt handling, and
// checkout-session creation. The convert-hold-to-reservation
// transaction itself lives in internal/reservation, since its
// authoritative output is a reservation row; this package only gets
// the verified event and the checkout session in and out of Stripe.
package payment

import "context"

// Event is the provider event payload Hotelly needs after retrieval:
// just enough to drive the convert transaction, never logged in full.
type Event struct {
	ID         string
	Type       string
	HoldID     string
	PropertyID string
	ConversationID string
	Raw        []byte
}

// CheckoutSessionInput carries the mandatory metadata spec §4.5
// requires on every checkout session: hold_id, property_id,
// conversation_id, plus a per-call idempotency key.
type CheckoutSessionInput struct {
	PropertyID     string
	HoldID         string
	ConversationID string
	AmountCents    int64
	Currency       string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// CheckoutSession is the provider-side session Hotelly persists into
// payments with status "created".
type CheckoutSession struct {
	ID  string
	URL string
}

// Provider is the narrow capability interface every payment provider
// implements. Hotelly ships one concrete variant (Stripe) plus a fake
// for tests; the shape itself is grounded on the WhatsApp package's
// identical narrow-interface-plus-registry pattern.
type Provider interface {
	// VerifySignature checks the provider's signature header against
	// the configured webhook secret and returns the event id without
	// decoding the full event body. Signature failure must produce no
	// side effect (spec §4.5).
	VerifySignature(payload []byte, sigHeader string) (eventID string, err error)

	// RetrieveEvent fetches the full event by id. Only the worker calls
	// this — the ingress webhook never does (spec §4.5).
	RetrieveEvent(ctx context.Context, eventID string) (*Event, error)

	// CreateCheckoutSession creates a provider-side checkout session
	// carrying the mandatory metadata.
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error)
}

// Registry resolves a provider by name. Hotelly configures exactly one
// active payment provider per deployment, but the registry shape keeps
// ingress and worker decoupled from the concrete Stripe type.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(name string, p Provider) {
	r.providers[name] = p
}

func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
