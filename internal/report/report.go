// Package report renders a fuzzing run's monitor/cluster state into
// exportable artifacts: JSON records, an HTML crash rollup, a markdown
// summary, and a coverage-growth CSV curve.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Severity buckets a crash cluster for the HTML/markdown rollups, derived
// from its representative run's exit status rather than anything the
// target itself reports.
type Severity string

const (
	SeverityCrash Severity = "crash"
	SeverityHang  Severity = "hang"
	SeverityError Severity = "error"
)

// CrashRecord is one deduplicated crash cluster, as surfaced by
// internal/monitor.Clusterer.
type CrashRecord struct {
	ID             int      `json:"id"`
	Severity       Severity `json:"severity"`
	Representative string   `json:"representative"`
	Members        []string `json:"members"`
	MemberCount    int      `json:"member_count"`
}

// Statistics is the run-level counters pulled from internal/monitor.Stats at
// report time.
type Statistics struct {
	Executions        int64         `json:"executions"`
	Crashes           int64         `json:"crashes"`
	Hangs             int64         `json:"hangs"`
	Errors            int64         `json:"errors"`
	InterestingInputs int64         `json:"interesting_inputs"`
	AvgExecTime       time.Duration `json:"-"`
	ExecsPerSec       float64       `json:"execs_per_sec"`
	CoveragePercent   float64       `json:"coverage_percent"`
	Duration          time.Duration `json:"-"`
}

// MarshalJSON renders the duration fields as human-readable strings rather
// than raw nanosecond counts.
func (s Statistics) MarshalJSON() ([]byte, error) {
	type alias Statistics
	return json.Marshal(&struct {
		alias
		AvgExecTime string `json:"avg_exec_time"`
		Duration    string `json:"duration"`
	}{
		alias:       alias(s),
		AvgExecTime: s.AvgExecTime.String(),
		Duration:    s.Duration.String(),
	})
}

// Report is a single fuzzing run's exportable snapshot.
type Report struct {
	Title       string    `json:"title"`
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
	TargetPath  string    `json:"target_path"`

	Statistics Statistics    `json:"statistics"`
	Crashes    []CrashRecord `json:"crashes"`
}

// NewReport creates an empty report for targetPath.
func NewReport(title, targetPath string) *Report {
	return &Report{
		Title:       title,
		Version:     "1.0",
		GeneratedAt: time.Now(),
		TargetPath:  targetPath,
		Crashes:     make([]CrashRecord, 0),
	}
}

// SetStatistics sets the run's counters.
func (r *Report) SetStatistics(stats Statistics) {
	r.Statistics = stats
}

// AddCrash appends one crash cluster to the report.
func (r *Report) AddCrash(c CrashRecord) {
	r.Crashes = append(r.Crashes, c)
}

// CrashCount returns the total number of distinct crash clusters.
func (r *Report) CrashCount() int {
	return len(r.Crashes)
}

// Generator is the interface for report renderers.
type Generator interface {
	Generate(report *Report, w io.Writer) error
	Extension() string
}

// Manager dispatches report generation across registered formats.
type Manager struct {
	generators map[string]Generator
	outputDir  string
}

// NewManager creates a Manager with JSON, HTML, and markdown generators
// pre-registered.
func NewManager(outputDir string) *Manager {
	m := &Manager{
		generators: make(map[string]Generator),
		outputDir:  outputDir,
	}

	m.RegisterGenerator("json", &JSONGenerator{Indent: true})
	m.RegisterGenerator("html", NewHTMLGenerator())
	m.RegisterGenerator("markdown", &MarkdownGenerator{})
	m.RegisterGenerator("md", &MarkdownGenerator{})

	return m
}

// RegisterGenerator registers a generator under format.
func (m *Manager) RegisterGenerator(format string, gen Generator) {
	m.generators[format] = gen
}

// GetGenerator returns a registered generator by format.
func (m *Manager) GetGenerator(format string) (Generator, bool) {
	gen, ok := m.generators[format]
	return gen, ok
}

// Generate writes a report file of the given format under the manager's
// output directory and returns its path.
func (m *Manager) Generate(report *Report, format string) (string, error) {
	gen, ok := m.generators[format]
	if !ok {
		return "", fmt.Errorf("unknown report format: %s", format)
	}

	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("report_%s.%s", timestamp, gen.Extension())
	path := filepath.Join(m.outputDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := gen.Generate(report, f); err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	return path, nil
}

// GenerateAll renders a report in every registered format, skipping
// duplicate extensions (md and markdown both produce .md).
func (m *Manager) GenerateAll(report *Report) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)

	for format, gen := range m.generators {
		ext := gen.Extension()
		if seen[ext] {
			continue
		}
		seen[ext] = true

		path, err := m.Generate(report, format)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	return paths, nil
}

// WriteToWriter renders a report directly to w instead of a file.
func (m *Manager) WriteToWriter(report *Report, format string, w io.Writer) error {
	gen, ok := m.generators[format]
	if !ok {
		return fmt.Errorf("unknown report format: %s", format)
	}

	return gen.Generate(report, w)
}
