package phase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

func testSchedule() Schedule {
	return DefaultSchedule(time.UTC)
}

func TestScheduledManager_ClosedOnWeekend(t *testing.T) {
	m := NewScheduledManager(testSchedule())
	saturday := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC) // a Saturday
	state := m.State(saturday)
	assert.Equal(t, types.Closed, state.PhaseType)
	assert.False(t, state.AllowSubmit)
}

func TestScheduledManager_PreOpenBeforeMarketOpens(t *testing.T) {
	m := NewScheduledManager(testSchedule())
	monday := time.Date(2026, 8, 3, 9, 20, 0, 0, time.UTC) // Monday, 9:20, 10 min before open
	state := m.State(monday)
	assert.Equal(t, types.PreOpen, state.PhaseType)
	assert.True(t, state.AllowSubmit)
	assert.False(t, state.AllowMatch)
}

func TestScheduledManager_OpeningAuctionAtOpen(t *testing.T) {
	m := NewScheduledManager(testSchedule())
	monday := time.Date(2026, 8, 3, 9, 30, 30, 0, time.UTC)
	state := m.State(monday)
	assert.Equal(t, types.OpeningAuction, state.PhaseType)
	assert.False(t, state.AllowSubmit)
	assert.Equal(t, types.ExecutionBatch, state.ExecutionStyle)
}

func TestScheduledManager_ContinuousDuringSession(t *testing.T) {
	m := NewScheduledManager(testSchedule())
	monday := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	state := m.State(monday)
	assert.Equal(t, types.Continuous, state.PhaseType)
	assert.True(t, state.AllowSubmit)
	assert.True(t, state.AllowMatch)
}

func TestScheduledManager_ClosedAfterMarketCloses(t *testing.T) {
	m := NewScheduledManager(testSchedule())
	monday := time.Date(2026, 8, 3, 15, 30, 0, 0, time.UTC)
	state := m.State(monday)
	assert.Equal(t, types.Closed, state.PhaseType)
}

func TestAlwaysContinuousManager_IgnoresTime(t *testing.T) {
	var m AlwaysContinuousManager
	state := m.State(time.Date(2000, 1, 1, 3, 0, 0, 0, time.UTC))
	assert.Equal(t, types.Continuous, state.PhaseType)
	assert.True(t, state.AllowSubmit)
	assert.True(t, state.AllowCancel)
	assert.True(t, state.AllowMatch)
}
