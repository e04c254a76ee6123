// Package logic turns debounced button state into user actions.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/button-sensor/internal/button"
)

// State represents the logical state of the button.
type State string

const (
	StatePressed  State = "PRESSED"
	StateReleased State = "RELEASED"
)

// EventType represents a user action derived from the button.
type EventType string

const (
	EventClick   EventType = "CLICK"
	EventHold    EventType = "HOLD"
	EventRelease EventType = "RELEASE"
)

// Event represents a user action to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     State
	Phase     button.Phase
	// HoldTicks is the button's hold counter when the event fired.
	HoldTicks uint8
	// PressTicks is the number of ticks the press lasted (RELEASE only).
	PressTicks int
	// Held reports whether the press reached the hold threshold (RELEASE only).
	Held bool
}

// Input represents a single poll of the button line.
type Input struct {
	Pressed bool // true = pressed (already inverted from raw GPIO)
	Time    time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Click   int
	Hold    int
	Release int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Ticks     uint64
	Counts    EventCounts
}
