package logic

import (
	"testing"
	"time"

	"github.com/sweeney/button-sensor/internal/button"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestDetector(t *testing.T, holdThreshold uint8) *Detector {
	t.Helper()
	btn, err := button.New(button.DefaultConfig())
	if err != nil {
		t.Fatalf("button.New: %v", err)
	}
	return NewDetector(btn, holdThreshold, t0)
}

// run feeds reads at 10ms intervals and returns all events emitted.
func run(d *Detector, reads ...bool) []Event {
	var all []Event
	for i, r := range reads {
		all = append(all, d.Process(Input{Pressed: r, Time: t0.Add(time.Duration(i) * 10 * time.Millisecond)})...)
	}
	return all
}

func TestNewDetector(t *testing.T) {
	d := newTestDetector(t, 10)
	if d.Ready() {
		t.Error("new detector should not be ready")
	}
	if d.CurrentState() != StateReleased {
		t.Errorf("expected RELEASED, got %s", d.CurrentState())
	}
	if d.HoldThreshold() != 10 {
		t.Errorf("expected hold threshold 10, got %d", d.HoldThreshold())
	}
	if !d.lastHeartbeat.Equal(t0) {
		t.Errorf("expected lastHeartbeat %v, got %v", t0, d.lastHeartbeat)
	}
}

func TestNoEventsWhileReleased(t *testing.T) {
	d := newTestDetector(t, 10)
	events := run(d, false, false, false, false)
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
	if !d.Ready() {
		t.Error("should be ready after first sample")
	}
	if d.Ticks() != 4 {
		t.Errorf("expected 4 ticks, got %d", d.Ticks())
	}
}

func TestClickOnFirstPressedRead(t *testing.T) {
	d := newTestDetector(t, 10)
	run(d, false)

	now := t0.Add(time.Second)
	events := d.Process(Input{Pressed: true, Time: now})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Type != EventClick {
		t.Errorf("expected CLICK, got %s", e.Type)
	}
	if e.State != StatePressed {
		t.Errorf("expected PRESSED, got %s", e.State)
	}
	if e.Phase != button.PhaseClicked {
		t.Errorf("expected phase CLICKED, got %s", e.Phase)
	}
	if !e.Timestamp.Equal(now) {
		t.Errorf("unexpected timestamp: %v", e.Timestamp)
	}
}

func TestClickHoldRelease(t *testing.T) {
	d := newTestDetector(t, 2)

	type tick struct {
		read bool
		want []EventType
	}
	ticks := []tick{
		{false, nil},
		{true, []EventType{EventClick}},
		{true, nil},
		{true, nil},
		{true, []EventType{EventHold}},
		{true, nil},
		{false, nil},
		{false, []EventType{EventRelease}},
		{false, nil},
	}

	var release Event
	for i, tk := range ticks {
		events := d.Process(Input{Pressed: tk.read, Time: t0.Add(time.Duration(i) * 10 * time.Millisecond)})
		if len(events) != len(tk.want) {
			t.Fatalf("tick %d: expected %v, got %d events", i, tk.want, len(events))
		}
		for j, w := range tk.want {
			if events[j].Type != w {
				t.Errorf("tick %d: expected %s, got %s", i, w, events[j].Type)
			}
			if w == EventRelease {
				release = events[j]
			}
		}
	}

	if release.PressTicks != 6 {
		t.Errorf("expected press of 6 ticks, got %d", release.PressTicks)
	}
	if !release.Held {
		t.Error("expected release to report held")
	}
	if release.State != StateReleased {
		t.Errorf("expected RELEASED, got %s", release.State)
	}

	counts := d.EventCountsSnapshot()
	if counts.Click != 1 || counts.Hold != 1 || counts.Release != 1 {
		t.Errorf("unexpected counts: %+v", counts)
	}
}

func TestShortPressNotHeld(t *testing.T) {
	d := newTestDetector(t, button.DefaultHoldThreshold)
	events := run(d, true, true, false, false, false)

	if len(events) != 2 {
		t.Fatalf("expected CLICK and RELEASE, got %d events", len(events))
	}
	if events[0].Type != EventClick || events[1].Type != EventRelease {
		t.Errorf("unexpected events: %s, %s", events[0].Type, events[1].Type)
	}
	if events[1].Held {
		t.Error("short press should not be held")
	}
	// clicked, confirmed, then release needs two reads
	if events[1].PressTicks != 3 {
		t.Errorf("expected press of 3 ticks, got %d", events[1].PressTicks)
	}
}

func TestHoldReportedOncePerPress(t *testing.T) {
	d := newTestDetector(t, 3)
	reads := []bool{true, true}
	for i := 0; i < 50; i++ {
		reads = append(reads, true)
	}
	// partial release and re-press must not re-arm HOLD
	reads = append(reads, false, true, true, true)

	holds := 0
	for _, e := range run(d, reads...) {
		if e.Type == EventHold {
			holds++
		}
	}
	if holds != 1 {
		t.Errorf("expected 1 HOLD, got %d", holds)
	}
}

func TestBounceDuringReleaseIsOnePress(t *testing.T) {
	d := newTestDetector(t, 10)
	events := run(d, true, true, false, true, false, false, false)

	clicks, releases := 0, 0
	for _, e := range events {
		switch e.Type {
		case EventClick:
			clicks++
		case EventRelease:
			releases++
		}
	}
	if clicks != 1 || releases != 1 {
		t.Errorf("expected 1 click and 1 release, got %d and %d", clicks, releases)
	}
}

func TestSecondPressClicksAgain(t *testing.T) {
	d := newTestDetector(t, 10)
	events := run(d, true, false, false, false, true)

	var types []EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	want := []EventType{EventClick, EventRelease, EventClick}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], types[i])
		}
	}
}

func TestSetHoldThreshold(t *testing.T) {
	d := newTestDetector(t, 100)
	run(d, true, true, true, true, true)

	d.SetHoldThreshold(3)
	events := d.Process(Input{Pressed: true, Time: t0.Add(time.Second)})
	if len(events) != 1 || events[0].Type != EventHold {
		t.Fatalf("expected HOLD after lowering threshold, got %v", events)
	}
	if d.HoldThreshold() != 3 {
		t.Errorf("expected threshold 3, got %d", d.HoldThreshold())
	}
}

func TestSimpleButtonNeverHolds(t *testing.T) {
	btn := button.MustNew(button.SimpleConfig())
	d := NewDetector(btn, 1, t0)

	reads := make([]bool, 40)
	for i := range reads {
		reads[i] = true
	}
	for _, e := range run(d, reads...) {
		if e.Type == EventHold {
			t.Fatal("button without hold tracking emitted HOLD")
		}
	}
}

func TestHeartbeatDisabled(t *testing.T) {
	d := newTestDetector(t, 10)
	run(d, false)
	if hb := d.CheckHeartbeat(t0.Add(time.Hour), 0); hb != nil {
		t.Error("expected nil heartbeat when interval is 0")
	}
	if hb := d.CheckHeartbeat(t0.Add(time.Hour), -time.Minute); hb != nil {
		t.Error("expected nil heartbeat when interval is negative")
	}
}

func TestHeartbeatNotBeforeFirstSample(t *testing.T) {
	d := newTestDetector(t, 10)
	if hb := d.CheckHeartbeat(t0.Add(time.Hour), time.Minute); hb != nil {
		t.Error("expected nil heartbeat before first sample")
	}
}

func TestHeartbeatInterval(t *testing.T) {
	d := newTestDetector(t, 10)
	run(d, true, false, false, false)

	if hb := d.CheckHeartbeat(t0.Add(14*time.Minute), 15*time.Minute); hb != nil {
		t.Error("heartbeat fired early")
	}

	hb := d.CheckHeartbeat(t0.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat")
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("expected uptime 15m, got %v", hb.Uptime)
	}
	if hb.Ticks != 4 {
		t.Errorf("expected 4 ticks, got %d", hb.Ticks)
	}
	if hb.Counts.Click != 1 || hb.Counts.Release != 1 {
		t.Errorf("unexpected counts: %+v", hb.Counts)
	}

	if hb := d.CheckHeartbeat(t0.Add(20*time.Minute), 15*time.Minute); hb != nil {
		t.Error("heartbeat fired again before interval elapsed")
	}
	if hb := d.CheckHeartbeat(t0.Add(30*time.Minute), 15*time.Minute); hb == nil {
		t.Error("expected second heartbeat")
	}
}
