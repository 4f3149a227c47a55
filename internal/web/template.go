package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/envnode/internal/status"
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
	"celsius": func(v float32) string { return fmt.Sprintf("%.1f °C", v) },
	"percent": func(v float32) string { return fmt.Sprintf("%.1f %%", v) },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>envnode {{.Config.DeviceID}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ok { color: green; font-weight: bold; }
.warn { color: red; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>envnode {{.Config.DeviceID}}</h1>

<h2>Environment</h2>
<table>
{{if .Reading.Valid}}<tr><th>Temperature</th><td id="temperature">{{celsius .Reading.Temperature}}</td></tr>
<tr><th>Humidity</th><td id="humidity">{{percent .Reading.Humidity}}</td></tr>
<tr><th>Measured</th><td>{{.ReadingAt.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{else}}<tr><th>Reading</th><td class="unknown">none yet</td></tr>{{end}}
<tr><th>Warnings</th><td id="warnings" class="{{if eq .Mask.String "OK"}}ok{{else if eq .Mask.String "NONE_REPORTED"}}unknown{{else}}warn{{end}}">{{.Mask}}</td></tr>
<tr><th>Sensor failures</th><td>{{.SensorFailures}}</td></tr>
</table>

<h2>Wake cycle</h2>
<table>
<tr><th>Cycles</th><td>{{.Cycles}}</td></tr>
<tr><th>Counter</th><td>{{.CycleCount}} / {{.Config.Cadence.PublishEvery}}</td></tr>
{{if .Cycles}}<tr><th>Last cause</th><td>{{.LastCause}}</td></tr>
<tr><th>Last action</th><td>{{.LastAction}}</td></tr>{{end}}
<tr><th>Sequence</th><td>{{.Sequence}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

{{if .ProvisioningOpen}}<h2>Provisioning</h2>
<form method="post" action="/provision">
<p><label>SSID <input name="ssid" maxlength="32"></label></p>
<p><label>Password <input name="password" type="password" maxlength="63"></label></p>
<p><button type="submit">Save</button></p>
</form>
{{end}}
<h2>System</h2>
<table>
<tr><th>Version</th><td>{{.Config.Version}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Wake interval</th><td>{{.Config.WakeIntervalMs}}ms</td></tr>
<tr><th>Keep-alive</th><td>{{if eq .Config.Cadence.KeepAliveEvery 0}}disabled{{else}}every {{.Config.Cadence.KeepAliveEvery}} wakes{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
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
