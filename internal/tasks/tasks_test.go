package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpireHoldTaskID(t *testing.T) {
	assert.Equal(t, "expire-hold:h1", ExpireHoldTaskID("h1"))
}

func TestStripeTaskID(t *testing.T) {
	assert.Equal(t, "stripe:evt_1", StripeTaskID("evt_1"))
}

func TestSendResponseTaskID(t *testing.T) {
	assert.Equal(t, "send-response:oe1", SendResponseTaskID("oe1"))
}

func TestAudienceMatchesExact(t *testing.T) {
	assert.True(t, audienceMatches([]string{"https://worker.example.com"}, "https://worker.example.com"))
	assert.False(t, audienceMatches([]string{"https://other.example.com"}, "https://worker.example.com"))
	assert.False(t, audienceMatches(nil, "https://worker.example.com"))
}
