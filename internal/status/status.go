// Package status provides a thread-safe status tracker for the button-sensor daemon.
// It is read by HTTP handlers and by the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/button-sensor/internal/button"
	"github.com/sweeney/button-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// HostInfo contains host resource usage.
type HostInfo struct {
	CPUPercent float64
	MemPercent float64
}

// Config contains daemon configuration for display.
type Config struct {
	Name              string
	Driver            string
	Pin               int
	PollMs            int64
	DebounceThreshold uint8
	TrackHold         bool
	HoldThreshold     uint8
	HeartbeatMs       int64
	Broker            string
	HTTPAddr          string
}

// ButtonState is the detector's view of the button at the last tick.
type ButtonState struct {
	State     logic.State
	Phase     button.Phase
	HoldTicks uint8
	Ready     bool
	Ticks     uint64
	Counts    logic.EventCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Button        ButtonState
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	MQTTBuffered  int
	MQTTDropped   uint64
	Network       *NetworkInfo
	Host          *HostInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update sets the button state. Called from runLoop on every tick.
func (t *Tracker) Update(b ButtonState) {
	t.mu.Lock()
	t.snap.Button = b
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetMQTTQueue sets the offline queue length and total evictions.
func (t *Tracker) SetMQTTQueue(buffered int, dropped uint64) {
	t.mu.Lock()
	t.snap.MQTTBuffered = buffered
	t.snap.MQTTDropped = dropped
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// SetHost sets the host resource usage.
func (t *Tracker) SetHost(info *HostInfo) {
	t.mu.Lock()
	t.snap.Host = info
	t.mu.Unlock()
}

// SetHoldThreshold records a reloaded hold threshold.
func (t *Tracker) SetHoldThreshold(ticks uint8) {
	t.mu.Lock()
	t.snap.Config.HoldThreshold = ticks
	t.mu.Unlock()
}

// SetHeartbeat records a reloaded heartbeat interval.
func (t *Tracker) SetHeartbeat(d time.Duration) {
	t.mu.Lock()
	t.snap.Config.HeartbeatMs = d.Milliseconds()
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
