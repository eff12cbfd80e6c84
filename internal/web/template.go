package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/bomb-prop/internal/logic"
	"github.com/sweeney/bomb-prop/internal/status"
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
	"remaining": status.FormatRemaining,
	"stateName": func(s logic.State) string {
		if s == "" {
			return "STARTING"
		}
		return string(s)
	},
	"stateClass": func(s logic.State) string {
		switch s {
		case logic.StateArmed:
			return "armed"
		case logic.StateWon:
			return "won"
		case logic.StateLost:
			return "lost"
		}
		return ""
	},
	"slotOf": func(slots []int, channel int) int {
		for i, c := range slots {
			if c == channel {
				return i + 1
			}
		}
		return 0
	},
	"inc": func(i int) int { return i + 1 },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Bomb Prop</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.clock { font-size: 2.4em; letter-spacing: 0.1em; }
.blink { animation: blink 1s step-start infinite; }
@keyframes blink { 50% { opacity: 0; } }
.armed { color: #c60; font-weight: bold; }
.won { color: green; font-weight: bold; }
.lost { color: red; font-weight: bold; }
.cut { color: red; }
.intact { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Bomb Prop</h1>

<p id="clock" class="clock{{if .DisplayBlink}} blink{{end}}">{{.Display}}</p>

<h2>Round</h2>
<table>
<tr><th>State</th><td id="state" class="{{stateClass .Round.State}}">{{stateName .Round.State}}</td></tr>
<tr><th>Game</th><td>{{.Round.Game}} ({{.Variant}})</td></tr>
<tr><th>Length</th><td>{{.Round.Minutes}} min</td></tr>
<tr><th>Remaining</th><td id="remaining">{{remaining .Round.RemainingSeconds}}</td></tr>
<tr><th>Cuts</th><td>{{.Round.Cuts}}</td></tr>
<tr><th>Mistakes</th><td>{{.Round.Mistakes}}</td></tr>
{{if .Round.DisplayCode}}<tr><th>Code</th><td id="code">{{.Round.DisplayCode}}</td></tr>{{end}}
<tr><th>Button</th><td>{{if .Round.ButtonDown}}down{{else}}up{{end}}</td></tr>
<tr><th>Buzzer</th><td>{{.Audio}}</td></tr>
</table>

<h2>Wires</h2>
<table>
{{range $i, $cut := .Round.WiresCut}}<tr><th>Wire {{inc $i}}</th><td class="{{if $cut}}cut{{else}}intact{{end}}">{{if $cut}}cut{{with slotOf $.Round.Slots (inc $i)}} (slot {{.}}){{end}}{{else}}intact{{end}}</td></tr>
{{end}}</table>

<h2>Rounds</h2>
<table>
<tr><th>Armed</th><td>{{.Counts.Armed}}</td></tr>
<tr><th>Won</th><td>{{.Counts.Won}}</td></tr>
<tr><th>Lost</th><td>{{.Counts.Lost}}</td></tr>
</table>
{{if .Recent}}
<table>
<tr><th>Ended</th><th>Outcome</th><th>Cuts / Mistakes</th></tr>
{{range .Recent}}<tr><td>{{.EndedAt.UTC.Format "2006-01-02 15:04"}}</td><td class="{{if eq .Outcome "WON"}}won{{else}}lost{{end}}">{{.Outcome}}</td><td>{{.Cuts}} / {{.Mistakes}}</td></tr>
{{end}}</table>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Long press</th><td>{{.Config.LongPressMs}}ms</td></tr>
<tr><th>Tie-break</th><td>{{.Config.TieBreak}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Variant string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Variant:  logic.Variant(snap.Round.Game).String(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
