// Package model defines shared data structures.
package model

import "time"

// MaxAttempts is the number of login attempts per lockout cycle.
const MaxAttempts = 3

// VectorLen is the number of timed keystrokes the backend scores.
const VectorLen = 4

// Config defines runtime settings for the lock screen.
type Config struct {
	BackendURL string
	Timeout    time.Duration
	Pacing     time.Duration
	History    bool
	LogFile    string
}

// KeyEvent is one captured keystroke. UpTime is zero until the key is released.
type KeyEvent struct {
	Key      string
	DownTime time.Time
	UpTime   time.Time
}

// Released reports whether the key-up was recorded.
func (e KeyEvent) Released() bool {
	return !e.UpTime.IsZero()
}

// TimingVector holds hold and flight durations in seconds.
// Both slices are empty when the capture did not produce exactly VectorLen pairs.
type TimingVector struct {
	Hold   []float64
	Flight []float64
}

// Valid reports whether the vector carries a full feature set.
func (v TimingVector) Valid() bool {
	return len(v.Hold) == VectorLen && len(v.Flight) == VectorLen
}

// SessionState is the lock-screen lifecycle state.
type SessionState int

const (
	// StateLoggedOut means the login screen is active.
	StateLoggedOut SessionState = iota
	// StateFrozen means attempts are exhausted and the overlay is shown.
	StateFrozen
	// StateDone means no window is left (successful login or bypass).
	StateDone
)

func (s SessionState) String() string {
	switch s {
	case StateLoggedOut:
		return "logged-out"
	case StateFrozen:
		return "frozen"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// OutcomeStatus is the wire value reported by the login flow.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeAnomaly OutcomeStatus = "anomaly"
	OutcomeFailed  OutcomeStatus = "failed"
)

// LoginOutcome is the interpreted result of one login attempt.
type LoginOutcome struct {
	Status           OutcomeStatus
	KeystrokeAnomaly bool
	TimeAnomaly      bool
}

// UnlockResult is sent back to the frozen screen after a passcode attempt.
type UnlockResult struct {
	OK  bool
	Msg string
}

// EventKind classifies a history entry.
type EventKind string

const (
	EventLogin    EventKind = "login"
	EventLockout  EventKind = "lockout"
	EventUnlock   EventKind = "unlock"
	EventBypass   EventKind = "bypass"
	EventPasscode EventKind = "passcode-mismatch"
)

// AttemptRecord is one persisted history entry. Credentials are never stored.
type AttemptRecord struct {
	ID                string
	CycleID           string
	At                time.Time
	Kind              EventKind
	Status            OutcomeStatus
	Username          string
	AttemptsRemaining int
	VectorValid       bool
}

// HistoryConfig defines filters for history output.
type HistoryConfig struct {
	Since *time.Time
	Last  int
}

// OutcomeAggregate counts history entries per kind and status.
type OutcomeAggregate struct {
	Kind   EventKind
	Status OutcomeStatus
	Count  int
}
