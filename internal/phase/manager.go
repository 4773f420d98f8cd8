// Package phase maps wall-clock time to the exchange's current market
// phase via a declarative weekly schedule. It performs no book or
// order mutations — callers re-query it on every submission and every
// pipeline tick.
package phase

import (
	"time"

	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

// Manager is the capability interface the venue and pipeline depend
// on; AlwaysContinuousManager below is the test double.
type Manager interface {
	State(now time.Time) types.PhaseState
}

// Session describes one trading day's open/close window, how long
// before open the pre-open phase begins, and how long the opening
// auction window lasts once the session opens.
type Session struct {
	Weekday         time.Weekday
	Open            time.Time // time-of-day, date components ignored
	Close           time.Time // time-of-day, date components ignored
	PreOpenMinutes  int
	AuctionDuration time.Duration
}

// Schedule is a finite list of trading sessions; days not present are
// closed all day.
type Schedule struct {
	Sessions []Session
	Location *time.Location
}

// DefaultSchedule mirrors a standard single-session equity-style
// calendar: Monday-Friday, 9:30am-3:00pm, with a 15-minute pre-open.
func DefaultSchedule(loc *time.Location) Schedule {
	open := time.Date(0, 1, 1, 9, 30, 0, 0, time.UTC)
	close := time.Date(0, 1, 1, 15, 0, 0, 0, time.UTC)
	sessions := make([]Session, 0, 5)
	for _, d := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday} {
		sessions = append(sessions, Session{
			Weekday: d, Open: open, Close: close,
			PreOpenMinutes: 15, AuctionDuration: time.Minute,
		})
	}
	if loc == nil {
		loc = time.UTC
	}
	return Schedule{Sessions: sessions, Location: loc}
}

// ScheduledManager is the production Manager: a pure function of wall
// time over a Schedule.
type ScheduledManager struct {
	schedule Schedule
}

// NewScheduledManager constructs a Manager bound to schedule.
func NewScheduledManager(schedule Schedule) *ScheduledManager {
	return &ScheduledManager{schedule: schedule}
}

// State reports the phase active at now.
func (m *ScheduledManager) State(now time.Time) types.PhaseState {
	loc := m.schedule.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)

	for _, s := range m.schedule.Sessions {
		if s.Weekday != local.Weekday() {
			continue
		}
		open := onDate(local, s.Open)
		closeT := onDate(local, s.Close)
		preOpen := open.Add(-time.Duration(s.PreOpenMinutes) * time.Minute)
		auctionEnd := open.Add(s.AuctionDuration)

		switch {
		case local.Before(preOpen) || !local.Before(closeT):
			continue // outside this session entirely; keep scanning other sessions
		case local.Before(open):
			return types.PhaseStateFor(types.PreOpen)
		case local.Before(auctionEnd):
			return types.PhaseStateFor(types.OpeningAuction)
		default:
			return types.PhaseStateFor(types.Continuous)
		}
	}
	return types.PhaseStateFor(types.Closed)
}

// onDate combines local's calendar date with timeOfDay's clock time.
func onDate(local time.Time, timeOfDay time.Time) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(),
		timeOfDay.Hour(), timeOfDay.Minute(), timeOfDay.Second(), 0, local.Location())
}

// AlwaysContinuousManager is a test double that always reports the
// continuous phase, letting integration tests submit and match orders
// without being gated by wall-clock market hours.
type AlwaysContinuousManager struct{}

// State always returns the continuous phase's capability set.
func (AlwaysContinuousManager) State(time.Time) types.PhaseState {
	return types.PhaseStateFor(types.Continuous)
}
