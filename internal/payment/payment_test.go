package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	fake := NewFakeProvider()
	reg.Register("stripe", fake)

	got, ok := reg.Get("stripe")
	assert.True(t, ok)
	assert.Same(t, fake, got)

	_, ok = reg.Get("unknown")
	assert.False(t, ok)
}

func TestFakeProviderVerifySignatureRejectsInvalid(t *testing.T) {
	fake := NewFakeProvider()
	fake.SigValid = false

	_, err := fake.VerifySignature([]byte("payload"), "bad-sig")
	require.Error(t, err)
}

func TestFakeProviderCreateCheckoutSession(t *testing.T) {
	fake := NewFakeProvider()
	sess, err := fake.CreateCheckoutSession(context.Background(), CheckoutSessionInput{
		PropertyID: "p1", HoldID: "h1", ConversationID: "c1", AmountCents: 30000, Currency: "brl",
	})
	require.NoError(t, err)
	assert.Contains(t, sess.ID, "h1")
	assert.Contains(t, fake.Sessions, sess.ID)
}

func TestFakeProviderRetrieveEventNotFound(t *testing.T) {
	fake := NewFakeProvider()
	_, err := fake.RetrieveEvent(context.Background(), "evt_missing")
	require.Error(t, err)
}
