package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConvertOutcomeNeedsManualIsExplicit(t *testing.T) {
	outcome := ConvertOutcome{ReservationID: "r1"}
	assert.False(t, outcome.NeedsManual)

	late := ConvertOutcome{NeedsManual: true}
	assert.Empty(t, late.ReservationID)
}

func TestNightCountMatchesCheckinCheckoutSpan(t *testing.T) {
	checkin := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	checkout := time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)
	nightCount := int(checkout.Sub(checkin).Hours() / 24)
	assert.Equal(t, 3, nightCount)
}
