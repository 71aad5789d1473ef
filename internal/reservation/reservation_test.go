package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusStringsPreservesOrder(t *testing.T) {
	got := statusStrings([]Status{StatusPendingPayment, StatusConfirmed, StatusInHouse})
	assert.Equal(t, []string{"pending_payment", "confirmed", "in_house"}, got)
}

func TestOperationalStatusesExcludesCancelled(t *testing.T) {
	for _, s := range operationalStatuses {
		assert.NotEqual(t, StatusCancelled, s)
	}
	assert.Contains(t, operationalStatuses, StatusPendingPayment)
	assert.Contains(t, operationalStatuses, StatusConfirmed)
	assert.Contains(t, operationalStatuses, StatusInHouse)
	assert.Contains(t, operationalStatuses, StatusCheckedOut)
}
