package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckInDateGateUsesPropertyLocalToday(t *testing.T) {
	checkin := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	onDay := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, before.Before(checkin))
	assert.False(t, onDay.Before(checkin))
}

func TestConfirmManualRejectsEmptyJustification(t *testing.T) {
	e := &Engine{}
	err := e.ConfirmManual(nil, "p1", "r1", "manager-1", "")
	assert.Error(t, err)
}
