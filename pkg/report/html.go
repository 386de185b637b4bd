package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	OutputPath string // Path to write the HTML file (default: <dir>/report.html)
	Title      string // Report title (default: "Gesture Report")
}

// GenerateHTML renders the report in dir as a standalone HTML page and
// returns the path written.
func GenerateHTML(dir string, cfg HTMLConfig) (string, error) {
	r, err := Load(dir)
	if err != nil {
		return "", err
	}

	if cfg.Title == "" {
		cfg.Title = "Gesture Report"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(dir, "report.html")
	}

	html, err := renderHTML(buildHTMLData(r, cfg))
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	if err := os.WriteFile(cfg.OutputPath, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("write html: %w", err)
	}
	return cfg.OutputPath, nil
}

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	Title         string
	GeneratedAt   string
	Report        *Report
	TotalDuration string
	PassRate      float64
}

func buildHTMLData(r *Report, cfg HTMLConfig) HTMLData {
	var passRate float64
	if r.Summary.Total > 0 {
		passRate = float64(r.Summary.Passed+r.Summary.Warned) / float64(r.Summary.Total) * 100
	}
	return HTMLData{
		Title:         cfg.Title,
		GeneratedAt:   time.Now().Format(time.RFC3339),
		Report:        r,
		TotalDuration: formatDuration(r.EndTime.Sub(r.StartTime).Milliseconds()),
		PassRate:      passRate,
	}
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", ms)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

var htmlFuncs = template.FuncMap{
	"duration": formatDuration,
}

func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Funcs(htmlFuncs).Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, sans-serif; margin: 2rem; color: #111827; }
table { border-collapse: collapse; margin: 0.5rem 0 1.5rem; }
td, th { padding: 0.2rem 0.6rem; border-bottom: 1px solid #e5e7eb; text-align: left; font-size: 0.9rem; }
.passed { color: #059669; } .warned { color: #d97706; } .skipped { color: #6b7280; }
.failed, .errored { color: #dc2626; }
details { margin-bottom: 1rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="{{.Report.Status}}">{{.Report.Status}}: {{.Report.Summary.Passed}} passed, {{.Report.Summary.Warned}} warned,
{{.Report.Summary.Failed}} failed, {{.Report.Summary.Skipped}} skipped of {{.Report.Summary.Total}}
({{printf "%.0f" .PassRate}}%) in {{.TotalDuration}}</p>
<p>Generated {{.GeneratedAt}}</p>
{{range .Report.Flows}}
<details{{if ne .Status "passed"}} open{{end}}>
<summary><span class="{{.Status}}">{{.Status}}</span> {{.Name}} <small>{{.SourceFile}} {{duration .Duration}}</small></summary>
{{if .Error}}<p class="failed">{{.Error}}</p>{{end}}
<table>
<tr><th>#</th><th>Step</th><th>Status</th><th>Duration</th><th>Events</th><th>Error</th></tr>
{{range .Steps}}<tr><td>{{.Index}}</td><td>{{.YAML}}</td><td class="{{.Status}}">{{.Status}}</td><td>{{duration .Duration}}</td><td>{{.Events}}</td><td>{{with .Error}}{{.Type}}: {{.Message}}{{end}}</td></tr>
{{end}}</table>
{{if .Events}}<table>
<tr><th>At</th><th>Event</th><th>X</th><th>Y</th><th>Target</th></tr>
{{range .Events}}<tr><td>{{.At}}ms</td><td>{{.Name}}</td><td>{{.X}}</td><td>{{.Y}}</td><td>{{.Target}}</td></tr>
{{end}}</table>{{end}}
</details>
{{end}}
</body>
</html>
`
