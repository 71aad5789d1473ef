package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampAvailableNormal(t *testing.T) {
	available, overbooked := clampAvailable(10, 3, 2)
	assert.Equal(t, 5, available)
	assert.False(t, overbooked)
}

func TestClampAvailableNegativeClampsToZero(t *testing.T) {
	available, overbooked := clampAvailable(1, 1, 1)
	assert.Equal(t, 0, available)
	assert.True(t, overbooked)
}

func TestClampAvailableExactlyZero(t *testing.T) {
	available, overbooked := clampAvailable(2, 1, 1)
	assert.Equal(t, 0, available)
	assert.False(t, overbooked)
}

func TestOperationalStatusNamesIncludesAllOccupyingStatuses(t *testing.T) {
	names := operationalStatusNames()
	assert.Contains(t, names, "pending_payment")
	assert.Contains(t, names, "confirmed")
	assert.Contains(t, names, "in_house")
	assert.Contains(t, names, "checked_out")
	assert.NotContains(t, names, "cancelled")
}
