package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/fitzterra/battery-capacity-meter/internal/status"
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Battery Capacity Meter</title>
<style>
body { font-family: monospace; max-width: 800px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 30%; }
.connected { color: green; }
.disconnected { color: red; }
.bc-CHARGE, .bc-DISCHARGE { color: green; font-weight: bold; }
.bc-FAULT { color: red; font-weight: bold; }
.bc-DISABLED { color: #888; }
</style>
</head>
<body>
<h1>Battery Capacity Meter</h1>

<h2>Channels</h2>
<table>
<tr><th>#</th><th>BC state</th><th>SoC state</th><th>Battery ID</th><th>Cycle</th><th>Faults</th></tr>
{{range $i, $ch := .Channels}}<tr>
<td>{{$i}}</td>
<td class="bc-{{$ch.BCState}}">{{$ch.BCState}}</td>
<td>{{$ch.SoCState}}</td>
<td>{{if $ch.BatteryID}}{{$ch.BatteryID}}{{else}}&mdash;{{end}}</td>
<td>{{$ch.NumCycles}}/{{$ch.MaxCycles}}</td>
<td>{{$ch.Faults}}</td>
</tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sample interval</th><td>{{.Config.SampleIntervalMs}}ms</td></tr>
<tr><th>Rest duration</th><td>{{.Config.RestS}}s</td></tr>
<tr><th>Max cycles</th><td>{{.Config.MaxCycles}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
