package payment

import (
	"context"

	"github.com/hotelly/hotelly/internal/apperr"
)

// FakeProvider is an in-memory Provider used by tests — mirrors the
// teacher's pattern of keeping a trivial stub implementation of its
// Provider interface alongside the real connectors.
type FakeProvider struct {
	Events   map[string]*Event
	Sessions map[string]*CheckoutSession
	SigValid bool
	SigEvent string
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Events:   make(map[string]*Event),
		Sessions: make(map[string]*CheckoutSession),
		SigValid: true,
	}
}

func (f *FakeProvider) VerifySignature(payload []byte, sigHeader string) (string, error) {
	if !f.SigValid {
		return "", apperr.Permanent(apperr.CodeSignatureInvalid, "fake signature invalid")
	}
	return f.SigEvent, nil
}

func (f *FakeProvider) RetrieveEvent(ctx context.Context, eventID string) (*Event, error) {
	ev, ok := f.Events[eventID]
	if !ok {
		return nil, apperr.Permanent(apperr.CodeNotFound, "fake event not found")
	}
	return ev, nil
}

func (f *FakeProvider) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	sess := &CheckoutSession{ID: "cs_test_" + in.HoldID, URL: "https://checkout.test/" + in.HoldID}
	f.Sessions[sess.ID] = sess
	return sess, nil
}
