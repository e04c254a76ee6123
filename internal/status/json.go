package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Button        ButtonJSON   `json:"button"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Host          *HostJSON    `json:"host,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ButtonJSON is the JSON representation of the button state.
type ButtonJSON struct {
	State     string `json:"state"`
	Phase     string `json:"phase"`
	HoldTicks uint8  `json:"hold_ticks"`
	Ticks     uint64 `json:"ticks"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Buffered  int    `json:"buffered"`
	Dropped   uint64 `json:"dropped"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Click   int `json:"click"`
	Hold    int `json:"hold"`
	Release int `json:"release"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// HostJSON is the JSON representation of host resource usage.
type HostJSON struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"mem_percent"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Name              string `json:"name"`
	Driver            string `json:"driver"`
	Pin               int    `json:"pin"`
	PollMs            int64  `json:"poll_ms"`
	DebounceThreshold uint8  `json:"debounce_threshold"`
	TrackHold         bool   `json:"track_hold"`
	HoldThreshold     uint8  `json:"hold_threshold"`
	HeartbeatMs       int64  `json:"heartbeat_ms"`
	Broker            string `json:"broker"`
	HTTPAddr          string `json:"http_addr"`
}

// StateOrUnknown returns s, or "UNKNOWN" before the first tick.
func StateOrUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func buildInner(snap Snapshot) StatusInner {
	b := snap.Button
	inner := StatusInner{
		Button: ButtonJSON{
			State:     StateOrUnknown(string(b.State)),
			Phase:     StateOrUnknown(string(b.Phase)),
			HoldTicks: b.HoldTicks,
			Ticks:     b.Ticks,
		},
		Ready:         b.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Buffered:  snap.MQTTBuffered,
			Dropped:   snap.MQTTDropped,
		},
		Counts: CountsJSON{
			Click:   b.Counts.Click,
			Hold:    b.Counts.Hold,
			Release: b.Counts.Release,
		},
		Config: ConfigJSON{
			Name:              snap.Config.Name,
			Driver:            snap.Config.Driver,
			Pin:               snap.Config.Pin,
			PollMs:            snap.Config.PollMs,
			DebounceThreshold: snap.Config.DebounceThreshold,
			TrackHold:         snap.Config.TrackHold,
			HoldThreshold:     snap.Config.HoldThreshold,
			HeartbeatMs:       snap.Config.HeartbeatMs,
			Broker:            snap.Config.Broker,
			HTTPAddr:          snap.Config.HTTPAddr,
		},
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	if snap.Host != nil {
		inner.Host = &HostJSON{
			CPUPercent: snap.Host.CPUPercent,
			MemPercent: snap.Host.MemPercent,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
