package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/button-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": status.StateOrUnknown,
	"stateClass": func(s string) string {
		switch s {
		case "PRESSED":
			return "pressed"
		case "RELEASED":
			return "released"
		default:
			return "unknown"
		}
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Button Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.pressed { color: green; font-weight: bold; }
.released { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Button Sensor{{if .Config.Name}}: {{.Config.Name}}{{end}}</h1>

{{$state := stateOrUnknown (printf "%s" .Button.State)}}
<h2>Button</h2>
<table>
<tr><th>State</th><td id="state" class="{{stateClass $state}}">{{$state}}</td></tr>
<tr><th>Phase</th><td>{{stateOrUnknown (printf "%s" .Button.Phase)}}</td></tr>
<tr><th>Hold ticks</th><td>{{.Button.HoldTicks}}</td></tr>
<tr><th>Ticks</th><td>{{.Button.Ticks}}</td></tr>
<tr><th>Ready</th><td>{{if .Button.Ready}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Click</th><td>{{.Button.Counts.Click}}</td></tr>
<tr><th>Hold</th><td>{{.Button.Counts.Hold}}</td></tr>
<tr><th>Release</th><td>{{.Button.Counts.Release}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Queued</th><td>{{.MQTTBuffered}}{{if .MQTTDropped}} <span class="disconnected">({{.MQTTDropped}} dropped)</span>{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{if .Host}}<tr><th>CPU</th><td>{{printf "%.1f" .Host.CPUPercent}}%</td></tr>
<tr><th>Memory</th><td>{{printf "%.1f" .Host.MemPercent}}%</td></tr>{{end}}
<tr><th>GPIO</th><td>{{.Config.Driver}} pin {{.Config.Pin}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceThreshold}} ticks</td></tr>
<tr><th>Hold</th><td>{{if .Config.TrackHold}}{{.Config.HoldThreshold}} ticks{{else}}disabled{{end}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
