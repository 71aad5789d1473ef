package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetentionWindowsMatchSpec(t *testing.T) {
	assert.Equal(t, 90*24*time.Hour, processedEventsRetention)
	assert.Equal(t, 180*24*time.Hour, outboxEventsRetention)
	assert.Equal(t, 30*24*time.Hour, idempotencyKeysRetention)
}
