package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/hoist/internal/schedule"
	"github.com/sweeney/hoist/internal/status"
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
	"position": func(ms int64) string {
		if ms < 0 {
			return "unknown"
		}
		return fmt.Sprintf("%dms", ms)
	},
	"clock": schedule.FormatSeconds,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Hoist</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
form { display: inline; }
button { font-family: monospace; margin: 2px; padding: 6px 10px; }
.stop { background: #c00; color: white; font-weight: bold; }
.IDLE { color: green; }
.UP, .DOWN, .CALIB { color: #06c; font-weight: bold; }
.ERROR { color: red; font-weight: bold; }
.UNKNOWN { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Hoist<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>State</h2>
<table>
<tr><th>State</th><td id="state" class="{{.Hoist.State}}">{{.Hoist.State}}</td></tr>
<tr><th>Position</th><td id="position">{{position .Hoist.PositionMs}}</td></tr>
<tr><th>Target</th><td id="target">{{.Hoist.TargetMs}}ms</td></tr>
<tr><th>Fault</th><td id="fault">{{if .Hoist.Fault}}{{.Hoist.Fault}}{{else}}none{{end}}</td></tr>
{{if .LastError}}<tr><th>Last rejected</th><td>{{.LastError}}</td></tr>{{end}}
</table>

<p>
<form method="post" action="/command"><input type="hidden" name="cmd" value="go_top"><button>Top</button></form>
<form method="post" action="/command"><input type="hidden" name="cmd" value="go_middle"><button>Middle</button></form>
<form method="post" action="/command"><input type="hidden" name="cmd" value="go_bottom"><button>Bottom</button></form>
<form method="post" action="/command"><input type="hidden" name="cmd" value="emergency_stop"><button class="stop">STOP</button></form>
{{if eq (printf "%s" .Hoist.State) "ERROR"}}<form method="post" action="/command"><input type="hidden" name="cmd" value="acknowledge_fault"><button>Acknowledge fault</button></form>{{end}}
</p>

<h2>Maintenance</h2>
<table>
<tr><th>Last full run</th><td id="last-run">{{.Maintenance.LastRunMs}}ms</td></tr>
<tr><th>Trend</th><td id="slope">{{printf "%.2f" .Maintenance.Slope}}ms/run</td></tr>
<tr><th>History</th><td>{{range $i, $v := .Maintenance.History}}{{if $i}}, {{end}}{{$v}}{{else}}none{{end}}</td></tr>
</table>

<h2>Schedule</h2>
<table>
<tr><th>Up</th><td>{{clock .Schedule.Up}}</td></tr>
<tr><th>Down</th><td>{{clock .Schedule.Down}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topics</th><td>{{.Config.TopicPrefix}}/#</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Sensor</th><td>{{.Config.Sensor}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var stateEl = document.getElementById("state");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() { setDot("err", "offline"); setTimeout(connect, 5000); };
    ws.onmessage = function(e) {
      try {
        var msg = JSON.parse(e.data);
        if (!msg.status) return;
        var h = msg.status.hoist;
        stateEl.textContent = h.state;
        stateEl.className = h.state;
        document.getElementById("position").textContent = h.position_ms < 0 ? "unknown" : h.position_ms + "ms";
        document.getElementById("target").textContent = h.target_ms + "ms";
        document.getElementById("fault").textContent = h.fault || "none";
        document.getElementById("last-run").textContent = msg.status.maintenance.last_run_ms + "ms";
        document.getElementById("slope").textContent = msg.status.maintenance.slope.toFixed(2) + "ms/run";
      } catch (err) {}
    };
  }
  connect();
})();
</script>
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
