// Package button implements a debounced push button polled once per loop tick.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time).
// The caller reads the pin and passes the logical pressed level to Update.
package button

import (
	"errors"
	"fmt"
	"math"
)

// DefaultHoldThreshold is the hold threshold, in ticks, most callers pass to IsHeld.
const DefaultHoldThreshold = 10

// MinThreshold is the smallest accepted debounce threshold. With a threshold
// of 1 the clicked tick drops straight to released, so a held button would
// click on every other tick.
const MinThreshold = 2

// ErrThresholdTooLow is returned by New when the debounce threshold is below MinThreshold.
var ErrThresholdTooLow = errors.New("button: debounce threshold must be at least 2")

// Phase is the logical phase derived from the state counter.
type Phase string

const (
	PhaseReleased   Phase = "RELEASED"
	PhaseDebouncing Phase = "DEBOUNCING"
	PhaseClicked    Phase = "CLICKED"
)

// Config selects the debounce threshold and whether hold duration is tracked.
type Config struct {
	// Threshold is the number of ticks a press occupies before the button
	// can read as released again. Immutable after New.
	Threshold uint8
	// TrackHold enables the hold counter and IsHeld.
	TrackHold bool
}

// DefaultConfig returns the hold-tracking configuration with a threshold of 3.
func DefaultConfig() Config {
	return Config{Threshold: 3, TrackHold: true}
}

// SimpleConfig returns the configuration without hold tracking, threshold 5.
func SimpleConfig() Config {
	return Config{Threshold: 5, TrackHold: false}
}

// Validate reports whether the configuration can build a Button.
func (c Config) Validate() error {
	if c.Threshold < MinThreshold {
		return fmt.Errorf("%w (got %d)", ErrThresholdTooLow, c.Threshold)
	}
	return nil
}

// Button is a debounced button state machine.
//
// The state counter is 0 when released, equals the threshold on the single
// clicked tick, and sits in between while pressed or releasing. A press is
// accepted on the first pressed read; clearing it takes sustained released
// reads.
type Button struct {
	threshold uint8
	trackHold bool
	state     uint8
	hold      uint8
}

// New creates a released Button.
func New(cfg Config) (*Button, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Button{
		threshold: cfg.Threshold,
		trackHold: cfg.TrackHold,
	}, nil
}

// MustNew is like New but panics on an invalid config.
func MustNew(cfg Config) *Button {
	b, err := New(cfg)
	if err != nil {
		panic(fmt.Sprintf("button.MustNew: %v", err))
	}
	return b
}

// Update advances the state machine by one tick.
// pressed is the logical level (already inverted from the pull-up pin).
func (b *Button) Update(pressed bool) {
	switch {
	case b.state == b.threshold:
		// Clicked lasts exactly one tick.
		b.state--
	case b.state > 0:
		if pressed {
			if b.trackHold {
				b.hold = satAdd(b.hold, 1)
			}
			return
		}
		b.state--
		if b.state == 0 {
			b.hold = 0
		}
	default:
		if pressed {
			b.state = b.threshold
		}
	}
}

// IsClicked reports whether this is the single tick following a new press.
func (b *Button) IsClicked() bool {
	return b.state == b.threshold
}

// IsPressed reports whether a press is in progress, including the clicked tick.
func (b *Button) IsPressed() bool {
	return b.state > 0
}

// IsReleased reports whether the button is fully released.
func (b *Button) IsReleased() bool {
	return b.state == 0
}

// IsHeld reports whether the button has stayed pressed for at least
// threshold ticks after the click. Always false without hold tracking.
func (b *Button) IsHeld(threshold uint8) bool {
	if !b.trackHold {
		return false
	}
	return b.hold >= threshold
}

// Threshold returns the configured debounce threshold.
func (b *Button) Threshold() uint8 { return b.threshold }

// TrackHold reports whether hold duration is tracked.
func (b *Button) TrackHold() bool { return b.trackHold }

// State returns the raw state counter, in [0, Threshold()].
func (b *Button) State() uint8 { return b.state }

// HoldTicks returns the saturating hold counter.
func (b *Button) HoldTicks() uint8 { return b.hold }

// Phase returns the logical phase for the current state counter.
func (b *Button) Phase() Phase {
	switch {
	case b.state == 0:
		return PhaseReleased
	case b.state == b.threshold:
		return PhaseClicked
	default:
		return PhaseDebouncing
	}
}

// Reset returns the button to the released phase and clears the hold counter.
func (b *Button) Reset() {
	b.state = 0
	b.hold = 0
}

func satAdd(a, n uint8) uint8 {
	if a > math.MaxUint8-n {
		return math.MaxUint8
	}
	return a + n
}
