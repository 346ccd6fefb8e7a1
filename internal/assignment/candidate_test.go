package assignment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/deskwise/deskwise/pkg/models"
)

func TestWithinServiceWindowDefaultsToAlwaysOpen(t *testing.T) {
	assert.True(t, withinServiceWindow(nil, time.Now()))
	assert.True(t, withinServiceWindow(&models.VisitorAssignmentRule{}, time.Now()))
}

func TestWithinServiceWindowHonorsNormalRange(t *testing.T) {
	rule := &models.VisitorAssignmentRule{
		Timezone:         "UTC",
		ServiceStartTime: "09:00",
		ServiceEndTime:   "18:00",
	}
	inside := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)  // Monday
	outside := time.Date(2026, 1, 5, 22, 0, 0, 0, time.UTC) // Monday night

	assert.True(t, withinServiceWindow(rule, inside))
	assert.False(t, withinServiceWindow(rule, outside))
}

func TestWithinServiceWindowHonorsOvernightRange(t *testing.T) {
	rule := &models.VisitorAssignmentRule{
		Timezone:         "UTC",
		ServiceStartTime: "22:00",
		ServiceEndTime:   "06:00",
	}
	lateNight := time.Date(2026, 1, 5, 23, 0, 0, 0, time.UTC)
	earlyMorning := time.Date(2026, 1, 5, 5, 0, 0, 0, time.UTC)
	midday := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

	assert.True(t, withinServiceWindow(rule, lateNight))
	assert.True(t, withinServiceWindow(rule, earlyMorning))
	assert.False(t, withinServiceWindow(rule, midday))
}

func TestWithinServiceWindowHonorsWeekdays(t *testing.T) {
	rule := &models.VisitorAssignmentRule{
		Timezone:        "UTC",
		ServiceWeekdays: []int{1, 2, 3, 4, 5}, // Mon-Fri
	}
	monday := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC)

	assert.True(t, withinServiceWindow(rule, monday))
	assert.False(t, withinServiceWindow(rule, sunday))
}

func TestLoadBalancePicksLowestCountThenLowestID(t *testing.T) {
	candidates := []candidate{
		{staff: models.Staff{ID: "b"}, chatCount: 2},
		{staff: models.Staff{ID: "a"}, chatCount: 2},
		{staff: models.Staff{ID: "c"}, chatCount: 1},
	}
	assert.Equal(t, "c", loadBalance(candidates))
}

func TestLoadBalanceEmptyReturnsEmptyString(t *testing.T) {
	assert.Equal(t, "", loadBalance(nil))
}

func TestLastOperatorAffinityOnlyMatchesWithinCandidates(t *testing.T) {
	candidates := []candidate{{staff: models.Staff{ID: "a"}}, {staff: models.Staff{ID: "b"}}}
	assert.Equal(t, "a", lastOperatorAffinity("a", candidates))
	assert.Equal(t, "", lastOperatorAffinity("z", candidates))
	assert.Equal(t, "", lastOperatorAffinity("", candidates))
}
