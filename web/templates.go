package web

import (
	"html/template"
	"net/http"

	"plotstation/utils"
)

const htmlTemplate = `
<!DOCTYPE html>
<html>
<head>
    <title>Plot station</title>
    <meta charset="utf-8">
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; background-color: #f5f5f5; }
        .container { max-width: 960px; margin: 0 auto; }
        .card { background: white; padding: 20px; margin: 10px 0; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .ready { color: #4CAF50; font-weight: bold; }
        .busy { color: #FF9800; font-weight: bold; }
        .failed { color: #f44336; font-weight: bold; }
        button { background-color: #2196F3; color: white; border: none; padding: 10px 20px; margin: 5px; border-radius: 4px; cursor: pointer; }
        button:hover { background-color: #1976D2; }
        input { padding: 8px; margin: 5px; border: 1px solid #ddd; border-radius: 4px; width: 60%; }
        .response { background-color: #f0f0f0; padding: 10px; margin: 10px 0; border-radius: 4px; min-height: 20px; }
        .log { height: 240px; overflow-y: scroll; background-color: #000; color: #0f0; padding: 10px; font-family: monospace; font-size: 12px; }
        h1 { color: #333; text-align: center; }
        h2 { color: #555; border-bottom: 2px solid #2196F3; padding-bottom: 5px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>🖊️ Plot station</h1>

        <div class="card">
            <h2>📊 Plotter</h2>
            <p>State: <span id="state" class="{{state .Busy}}">{{state .Busy}}</span>
               <span id="label">{{.Label}}</span></p>
            <p>Port: <span id="port">{{if .Simulated}}simulated{{else}}{{.Port}}{{end}}</span></p>
            <p>Last job: <span id="last">{{with .LastJob}}{{.Label}} {{.Status}} ({{.Lines}} lines){{else}}-{{end}}</span></p>
        </div>

        <div class="card">
            <h2>📤 Submit</h2>
            <input type="text" id="path" placeholder="exports/drawing_0.gcode">
            <button onclick="submitJob()">Plot</button>
            <div id="response" class="response"></div>
        </div>

        <div class="card">
            <h2>📝 Log</h2>
            <div id="system-log" class="log"></div>
        </div>
    </div>

    <script>
        function render(data) {
            const state = document.getElementById('state');
            state.textContent = data.busy ? 'busy' : 'ready';
            state.className = data.busy ? 'busy' : 'ready';
            document.getElementById('label').textContent = data.label || '';
            document.getElementById('port').textContent = data.simulated ? 'simulated' : data.port;
            const last = data.last_job;
            const el = document.getElementById('last');
            el.textContent = last ? last.label + ' ' + last.status + ' (' + last.lines + ' lines)' + (last.error ? ': ' + last.error : '') : '-';
            el.className = last && last.status === 'failed' ? 'failed' : '';
        }

        function connectStatus() {
            const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
            ws.onmessage = function(event) { render(JSON.parse(event.data)); };
            ws.onclose = function() { setTimeout(connectStatus, 5000); };
        }

        function connectToLogs() {
            const eventSource = new EventSource('/logs/stream');
            eventSource.onmessage = function(event) {
                const logData = JSON.parse(event.data);
                addLogToDisplay(logData.time, logData.message, logData.type);
            };
            eventSource.onerror = function() {
                eventSource.close();
                setTimeout(connectToLogs, 5000);
            };
        }

        function addLogToDisplay(time, message, type) {
            const log = document.getElementById('system-log');
            const colorMap = { 'grbl': '#00ff00', 'worker': '#ffff00', 'web': '#00ffff', 'system': '#ffffff' };
            const entry = document.createElement('div');
            entry.style.color = colorMap[type] || '#ffffff';
            entry.textContent = '[' + time + '] [' + type.toUpperCase() + '] ' + message;
            log.appendChild(entry);
            log.scrollTop = log.scrollHeight;
            while (log.children.length > 1000) {
                log.removeChild(log.firstChild);
            }
        }

        function submitJob() {
            const path = document.getElementById('path').value;
            fetch('/jobs', {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify({path: path})
            })
            .then(response => response.text().then(text => ({status: response.status, text: text})))
            .then(res => {
                let msg = res.text;
                if (res.status === 202) msg = 'Saved for printing! ' + JSON.parse(res.text).label;
                if (res.status === 409) msg = 'Plotter busy with ' + JSON.parse(res.text).label;
                document.getElementById('response').textContent = msg;
            })
            .catch(err => {
                document.getElementById('response').textContent = 'Error: ' + err;
            });
        }

        connectStatus();
        connectToLogs();
    </script>
</body>
</html>
`

var indexTemplate = template.Must(template.New("index").Funcs(template.FuncMap{
	"state": utils.BoolToString,
}).Parse(htmlTemplate))

func indexHandler(w http.ResponseWriter, r *http.Request, state *AppState) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	indexTemplate.Execute(w, state.Status())
}
