package logic

import (
	"time"

	"github.com/sweeney/button-sensor/internal/button"
)

// Detector owns a debounced button and reports the actions it sees.
type Detector struct {
	btn           *button.Button
	holdThreshold uint8

	ticks        uint64
	wasPressed   bool
	holdReported bool
	pressTicks   int

	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewDetector creates a detector around btn. holdThreshold is the number of
// ticks after the click before a press counts as held.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(btn *button.Button, holdThreshold uint8, startTime time.Time) *Detector {
	return &Detector{
		btn:           btn,
		holdThreshold: holdThreshold,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process updates the button with one sample and returns any actions.
// At most one event of each type is returned, in the order CLICK, HOLD, RELEASE.
func (d *Detector) Process(input Input) []Event {
	d.btn.Update(input.Pressed)
	d.ticks++

	pressed := d.btn.IsPressed()
	if pressed {
		d.pressTicks++
	}

	var events []Event

	if d.btn.IsClicked() {
		d.holdReported = false
		events = append(events, d.event(EventClick, input.Time))
	}

	// HOLD fires once per press, on the tick IsHeld first turns true.
	if pressed && !d.holdReported && d.btn.IsHeld(d.holdThreshold) {
		d.holdReported = true
		events = append(events, d.event(EventHold, input.Time))
	}

	if d.wasPressed && !pressed {
		e := d.event(EventRelease, input.Time)
		e.PressTicks = d.pressTicks
		e.Held = d.holdReported
		events = append(events, e)

		d.pressTicks = 0
		d.holdReported = false
	}
	d.wasPressed = pressed

	for _, e := range events {
		switch e.Type {
		case EventClick:
			d.eventCounts.Click++
		case EventHold:
			d.eventCounts.Hold++
		case EventRelease:
			d.eventCounts.Release++
		}
	}

	return events
}

func (d *Detector) event(t EventType, now time.Time) Event {
	return Event{
		Timestamp: now,
		Type:      t,
		State:     d.CurrentState(),
		Phase:     d.btn.Phase(),
		HoldTicks: d.btn.HoldTicks(),
	}
}

// Ready reports whether at least one sample has been processed.
func (d *Detector) Ready() bool {
	return d.ticks > 0
}

// Ticks returns the number of samples processed.
func (d *Detector) Ticks() uint64 {
	return d.ticks
}

// CurrentState returns the debounced button state.
func (d *Detector) CurrentState() State {
	if d.btn.IsPressed() {
		return StatePressed
	}
	return StateReleased
}

// Phase returns the button's current phase.
func (d *Detector) Phase() button.Phase {
	return d.btn.Phase()
}

// HoldTicks returns the button's hold counter.
func (d *Detector) HoldTicks() uint8 {
	return d.btn.HoldTicks()
}

// HoldThreshold returns the hold threshold in ticks.
func (d *Detector) HoldThreshold() uint8 {
	return d.holdThreshold
}

// SetHoldThreshold changes the hold threshold. A press already reported as
// held is not reported again.
func (d *Detector) SetHoldThreshold(ticks uint8) {
	d.holdThreshold = ticks
}

// EventCountsSnapshot returns a copy of the event counters.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if no sample has been processed,
// if the interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.Ready() {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Ticks:     d.ticks,
		Counts:    d.eventCounts,
	}
}
