package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNightsEnumeratesHalfOpenRange(t *testing.T) {
	got := nights(date("2026-04-10"), date("2026-04-13"))
	want := []time.Time{date("2026-04-10"), date("2026-04-11"), date("2026-04-12")}
	assert.Equal(t, want, got)
}

func TestNightsSingleNight(t *testing.T) {
	got := nights(date("2026-04-10"), date("2026-04-11"))
	assert.Equal(t, []time.Time{date("2026-04-10")}, got)
}

func TestNightsEmptyWhenCheckinEqualsCheckout(t *testing.T) {
	got := nights(date("2026-04-10"), date("2026-04-10"))
	assert.Empty(t, got)
}
