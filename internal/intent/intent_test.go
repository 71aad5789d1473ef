package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackParseExtractsDatesAndAdults(t *testing.T) {
	c := FallbackParse("quero reservar de 2026-08-10 a 2026-08-12 para 2 adultos")
	require.NotNil(t, c.Entities.Checkin)
	require.NotNil(t, c.Entities.Checkout)
	assert.Equal(t, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), *c.Entities.Checkin)
	assert.Equal(t, time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC), *c.Entities.Checkout)
	require.NotNil(t, c.Entities.AdultCount)
	assert.Equal(t, 2, *c.Entities.AdultCount)
	assert.Equal(t, IntentQuoteRequest, c.Intent)
	assert.Equal(t, "fallback", c.Source)
}

func TestFallbackParseDetectsCancelIntent(t *testing.T) {
	c := FallbackParse("I want to cancel my reservation")
	assert.Equal(t, IntentCancelRequest, c.Intent)
}

func TestFallbackParseDetectsCheckoutIntent(t *testing.T) {
	c := FallbackParse("I'm ready to pay now")
	assert.Equal(t, IntentCheckoutRequest, c.Intent)
}

func TestFallbackParseUnknownWhenNoPattern(t *testing.T) {
	c := FallbackParse("hello there")
	assert.Equal(t, IntentUnknown, c.Intent)
	assert.Nil(t, c.Entities.Checkin)
}

func TestClassificationValidRejectsUnknownIntent(t *testing.T) {
	c := Classification{Intent: "not_a_real_intent", Confidence: 0.9}
	assert.False(t, c.Valid())
}

func TestClassificationValidRejectsOutOfRangeConfidence(t *testing.T) {
	c := Classification{Intent: IntentQuoteRequest, Confidence: 1.5}
	assert.False(t, c.Valid())
}

func TestClassificationValidAcceptsWellFormed(t *testing.T) {
	c := Classification{Intent: IntentHumanHandoff, Confidence: 0.42}
	assert.True(t, c.Valid())
}

func TestRedactMasksEmailPhoneAndName(t *testing.T) {
	got := Redact("I'm Jane Smith, call me at +15551234567 or jane@example.com")
	assert.Contains(t, got, "[redacted-name]")
	assert.Contains(t, got, "[redacted-phone]")
	assert.Contains(t, got, "[redacted-email]")
	assert.NotContains(t, got, "jane@example.com")
}

func TestSlotsCoherentRejectsCheckoutBeforeCheckin(t *testing.T) {
	checkin := time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)
	checkout := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	assert.False(t, slotsCoherent(Entities{Checkin: &checkin, Checkout: &checkout}))
}

func TestSlotsCoherentRejectsImplausibleAdultCount(t *testing.T) {
	n := 99
	assert.False(t, slotsCoherent(Entities{AdultCount: &n}))
}
