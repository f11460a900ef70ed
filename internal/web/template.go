package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/step-tracker/internal/status"
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
	"percent": func(steps, goal int64) int64 {
		if goal <= 0 {
			return 0
		}
		p := steps * 100 / goal
		if p > 100 {
			p = 100
		}
		if p < 0 {
			p = 0
		}
		return p
	},
	"rfc3339": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format(time.RFC3339)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Step Tracker</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.big { font-size: 2em; font-weight: bold; }
.paused { color: darkorange; font-weight: bold; }
.active { color: green; font-weight: bold; }
.reached { color: green; }
.bar { background: #eee; height: 12px; border-radius: 6px; overflow: hidden; }
.fill { background: #4a90d9; height: 100%; }
.muted { color: #888; }
</style>
</head>
<body>
<h1>Step Tracker</h1>

{{if .HasReading}}
<p class="big">{{.TodaySteps}} <span class="muted">/ {{.Goal}} steps</span></p>
<div class="bar"><div class="fill" style="width: {{percent .TodaySteps .Goal}}%"></div></div>
{{if .GoalReached}}<p class="reached">Daily goal reached.</p>{{end}}
{{else}}
<p class="muted">No step data yet.</p>
{{end}}

<table>
<tr><th>Tracking</th><td>{{if .Paused}}<span class="paused">PAUSED</span>{{else}}<span class="active">ACTIVE</span>{{end}}</td></tr>
<tr><th>Total since boot</th><td>{{.TotalSinceBoot}}</td></tr>
<tr><th>Last persisted</th><td>{{.LastPersistedSteps}} at {{rfc3339 .LastPersistTime}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>MQTT</th><td>{{if .MQTTConnected}}connected{{else}}disconnected{{end}} ({{.Config.Broker}})</td></tr>
</table>

<table>
<tr><th>Persists</th><td>{{.Counts.Persists}}</td></tr>
<tr><th>Persist failures</th><td>{{.Counts.PersistFailures}}</td></tr>
<tr><th>Invalid readings</th><td>{{.Counts.InvalidReadings}}</td></tr>
<tr><th>Pauses / resumes</th><td>{{.Counts.Pauses}} / {{.Counts.Resumes}}</td></tr>
</table>

<table>
<tr><th>Database</th><td>{{.Config.DBPath}}</td></tr>
<tr><th>Batch delay</th><td>{{.Config.BatchDelayMs}} ms</td></tr>
<tr><th>Pulse pin</th><td>{{.Config.Pin}}</td></tr>
</table>

<p class="muted"><a href="/index.json">index.json</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	if err := indexTmpl.Execute(w, snap); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
