// Package timer tracks how long a user works on each daily action. All
// durations are whole seconds.
package timer

import (
	"time"

	"dailyvision/internal/domain"
)

type Phase string

const (
	Idle    Phase = "idle"
	Running Phase = "running"
	Stopped Phase = "stopped"
)

// Start opens a session for actionID, closing any session already active for
// the same action.
func Start(sessions []domain.TimingSession, actionID string, now time.Time) ([]domain.TimingSession, domain.TimingSession) {
	out := closeActive(sessions, actionID, now)
	s := domain.TimingSession{ActionID: actionID, StartedAt: now, IsActive: true}
	return append(out, s), s
}

// Stop closes the active session for actionID. The returned bool is false
// when nothing was running.
func Stop(sessions []domain.TimingSession, actionID string, now time.Time) ([]domain.TimingSession, domain.TimingSession, bool) {
	out := make([]domain.TimingSession, len(sessions))
	copy(out, sessions)
	for i := range out {
		if out[i].ActionID == actionID && out[i].IsActive {
			out[i] = closeSession(out[i], now)
			return out, out[i], true
		}
	}
	return out, domain.TimingSession{}, false
}

// PhaseOf reports the timer phase of one action.
func PhaseOf(sessions []domain.TimingSession, actionID string) Phase {
	phase := Idle
	for _, s := range sessions {
		if s.ActionID != actionID {
			continue
		}
		if s.IsActive {
			return Running
		}
		phase = Stopped
	}
	return phase
}

// TotalSeconds sums finished sessions and the elapsed part of a running one.
func TotalSeconds(sessions []domain.TimingSession, actionID string, now time.Time) int {
	total := 0
	for _, s := range sessions {
		if s.ActionID != actionID {
			continue
		}
		switch {
		case s.IsActive:
			total += elapsed(s.StartedAt, now)
		case s.DurationSeconds != nil:
			total += *s.DurationSeconds
		}
	}
	return total
}

func closeActive(sessions []domain.TimingSession, actionID string, now time.Time) []domain.TimingSession {
	out := make([]domain.TimingSession, len(sessions), len(sessions)+1)
	copy(out, sessions)
	for i := range out {
		if out[i].ActionID == actionID && out[i].IsActive {
			out[i] = closeSession(out[i], now)
		}
	}
	return out
}

func closeSession(s domain.TimingSession, now time.Time) domain.TimingSession {
	ended := now
	d := elapsed(s.StartedAt, now)
	s.EndedAt = &ended
	s.DurationSeconds = &d
	s.IsActive = false
	return s
}

func elapsed(from, to time.Time) int {
	d := int(to.Sub(from) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}
