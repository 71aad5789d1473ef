package idempotency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLeaseFreshnessWindow(t *testing.T) {
	assert.Equal(t, 60*time.Second, leaseFreshness)
}

func TestDeliveryStatusConstants(t *testing.T) {
	assert.Equal(t, DeliveryStatus("sending"), DeliverySending)
	assert.Equal(t, DeliveryStatus("sent"), DeliverySent)
	assert.Equal(t, DeliveryStatus("failed_permanent"), DeliveryFailedPermanent)
}
