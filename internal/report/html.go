// Package report provides HTML report generation.
package report

import (
	"fmt"
	"html/template"
	"io"
	"time"
)

// HTMLGenerator renders a Report as a single self-contained HTML page.
type HTMLGenerator struct {
	template *template.Template
}

// NewHTMLGenerator creates the default HTML generator.
func NewHTMLGenerator() *HTMLGenerator {
	tmpl := template.Must(template.New("report").Funcs(template.FuncMap{
		"severityClass": func(s Severity) string {
			switch s {
			case SeverityCrash:
				return "critical"
			case SeverityHang:
				return "medium"
			default:
				return "low"
			}
		},
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05")
		},
		"formatDuration": func(d time.Duration) string {
			return d.String()
		},
		"truncate": func(s string, n int) string {
			if len(s) <= n {
				return s
			}
			return s[:n] + "..."
		},
	}).Parse(htmlTemplate))

	return &HTMLGenerator{template: tmpl}
}

// Generate renders report into w as HTML.
func (g *HTMLGenerator) Generate(report *Report, w io.Writer) error {
	return g.template.Execute(w, report)
}

// Extension returns the file extension.
func (g *HTMLGenerator) Extension() string {
	return "html"
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - corefuzz Report</title>
    <style>
        :root {
            --bg-dark: #0D0D0D;
            --bg-panel: #1A1A2E;
            --bg-header: #16213E;
            --text-primary: #E0E0E0;
            --text-dim: #666666;
            --cyan: #00FFFF;
            --magenta: #FF00FF;
            --green: #00FF00;
            --yellow: #FFFF00;
            --red: #FF0055;
            --orange: #FF8800;
        }

        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        body {
            font-family: 'Segoe UI', 'Roboto', 'Helvetica Neue', sans-serif;
            background: var(--bg-dark);
            color: var(--text-primary);
            line-height: 1.6;
            min-height: 100vh;
        }

        .container {
            max-width: 1200px;
            margin: 0 auto;
            padding: 20px;
        }

        header {
            background: var(--bg-header);
            padding: 30px;
            border-radius: 10px;
            margin-bottom: 30px;
            border: 1px solid var(--cyan);
        }

        h1 {
            color: var(--cyan);
            font-size: 2.5em;
            margin-bottom: 10px;
            text-shadow: 0 0 10px var(--cyan);
        }

        .meta {
            color: var(--text-dim);
            font-size: 0.9em;
        }

        .meta span {
            margin-right: 20px;
        }

        .section {
            background: var(--bg-panel);
            border-radius: 10px;
            padding: 20px;
            margin-bottom: 20px;
            border: 1px solid var(--magenta);
        }

        h2 {
            color: var(--magenta);
            margin-bottom: 20px;
            font-size: 1.5em;
        }

        .stats-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 20px;
        }

        .stat-card {
            background: var(--bg-header);
            padding: 20px;
            border-radius: 8px;
            text-align: center;
            border: 1px solid var(--cyan);
        }

        .stat-value {
            font-size: 2em;
            font-weight: bold;
            color: var(--cyan);
        }

        .stat-label {
            color: var(--text-dim);
            font-size: 0.9em;
            margin-top: 5px;
        }

        .badge {
            padding: 5px 15px;
            border-radius: 20px;
            font-weight: bold;
            font-size: 0.9em;
        }

        .badge.critical { background: var(--red); color: white; }
        .badge.medium { background: var(--yellow); color: black; }
        .badge.low { background: var(--green); color: black; }

        .crash-list {
            list-style: none;
        }

        .crash-item {
            background: var(--bg-header);
            padding: 15px;
            margin-bottom: 15px;
            border-radius: 8px;
            border-left: 4px solid var(--cyan);
        }

        .crash-item.critical { border-left-color: var(--red); }
        .crash-item.medium { border-left-color: var(--yellow); }
        .crash-item.low { border-left-color: var(--green); }

        .crash-header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            margin-bottom: 10px;
        }

        .crash-title {
            font-weight: bold;
            color: var(--text-primary);
        }

        .crash-details {
            font-size: 0.9em;
        }

        .crash-details code {
            background: var(--bg-dark);
            padding: 2px 6px;
            border-radius: 4px;
            font-family: 'Fira Code', 'Consolas', monospace;
            color: var(--cyan);
        }

        .no-crashes {
            text-align: center;
            padding: 40px;
            color: var(--green);
            font-size: 1.2em;
        }

        footer {
            text-align: center;
            color: var(--text-dim);
            padding: 20px;
            font-size: 0.9em;
        }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>{{.Title}}</h1>
            <div class="meta">
                <span>target: <strong>{{.TargetPath}}</strong></span>
                <span>generated: {{formatTime .GeneratedAt}}</span>
                <span>version: {{.Version}}</span>
            </div>
        </header>

        <section class="section">
            <h2>statistics</h2>
            <div class="stats-grid">
                <div class="stat-card">
                    <div class="stat-value">{{.Statistics.Executions}}</div>
                    <div class="stat-label">Executions</div>
                </div>
                <div class="stat-card">
                    <div class="stat-value">{{.Statistics.Crashes}}</div>
                    <div class="stat-label">Crashes</div>
                </div>
                <div class="stat-card">
                    <div class="stat-value">{{.Statistics.Hangs}}</div>
                    <div class="stat-label">Hangs</div>
                </div>
                <div class="stat-card">
                    <div class="stat-value">{{.Statistics.InterestingInputs}}</div>
                    <div class="stat-label">Interesting Inputs</div>
                </div>
                <div class="stat-card">
                    <div class="stat-value">{{printf "%.1f" .Statistics.ExecsPerSec}}</div>
                    <div class="stat-label">Execs/sec</div>
                </div>
                <div class="stat-card">
                    <div class="stat-value">{{printf "%.2f" .Statistics.CoveragePercent}}%</div>
                    <div class="stat-label">Coverage</div>
                </div>
            </div>
        </section>

        <section class="section">
            <h2>crash clusters ({{len .Crashes}})</h2>

            {{if .Crashes}}
            <ul class="crash-list">
                {{range .Crashes}}
                <li class="crash-item {{severityClass .Severity}}">
                    <div class="crash-header">
                        <span class="crash-title">cluster #{{.ID}}</span>
                        <span class="badge {{severityClass .Severity}}">{{.Severity}}</span>
                    </div>
                    <div class="crash-details">
                        <p><strong>representative:</strong> <code>{{.Representative}}</code></p>
                        <p><strong>members:</strong> {{.MemberCount}}</p>
                    </div>
                </li>
                {{end}}
            </ul>
            {{else}}
            <div class="no-crashes">
                no crashes recorded
            </div>
            {{end}}
        </section>

        <footer>
            generated by corefuzz
        </footer>
    </div>
</body>
</html>`

// SetTemplate overrides the generator's template.
func (g *HTMLGenerator) SetTemplate(tmpl *template.Template) {
	g.template = tmpl
}

// GetDefaultTemplate returns the built-in template string.
func GetDefaultTemplate() string {
	return htmlTemplate
}

// CustomHTMLGenerator builds a generator from a caller-supplied template.
func CustomHTMLGenerator(templateStr string) (*HTMLGenerator, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"severityClass": func(s Severity) string {
			switch s {
			case SeverityCrash:
				return "critical"
			case SeverityHang:
				return "medium"
			default:
				return "low"
			}
		},
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05")
		},
		"formatDuration": func(d time.Duration) string {
			return d.String()
		},
		"truncate": func(s string, n int) string {
			if len(s) <= n {
				return s
			}
			return s[:n] + "..."
		},
	}).Parse(templateStr)

	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &HTMLGenerator{template: tmpl}, nil
}
