package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fluxfuzzer/corefuzz/internal/monitor"
)

func TestNewReport(t *testing.T) {
	r := NewReport("Test Report", "/bin/target")

	if r == nil {
		t.Fatal("NewReport returned nil")
	}
	if r.Title != "Test Report" {
		t.Errorf("Expected title 'Test Report', got '%s'", r.Title)
	}
	if r.TargetPath != "/bin/target" {
		t.Errorf("Expected target '/bin/target', got '%s'", r.TargetPath)
	}
	if r.Version != "1.0" {
		t.Errorf("Expected version '1.0', got '%s'", r.Version)
	}
}

func TestReport_AddCrash(t *testing.T) {
	r := NewReport("Test", "/bin/target")

	r.AddCrash(CrashRecord{
		ID:             1,
		Severity:       SeverityCrash,
		Representative: "crashes/0001",
		MemberCount:    3,
	})

	if r.CrashCount() != 1 {
		t.Errorf("Expected 1 crash, got %d", r.CrashCount())
	}
	if r.Crashes[0].MemberCount != 3 {
		t.Errorf("Expected member count 3, got %d", r.Crashes[0].MemberCount)
	}
}

func TestJSONGenerator(t *testing.T) {
	r := NewReport("Test Report", "/bin/target")
	r.SetStatistics(Statistics{
		Executions:  1000,
		Crashes:     5,
		ExecsPerSec: 16.67,
	})
	r.AddCrash(CrashRecord{ID: 1, Severity: SeverityCrash, Representative: "crashes/0001"})

	gen := &JSONGenerator{Indent: true}

	var buf bytes.Buffer
	if err := gen.Generate(r, &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if parsed["title"] != "Test Report" {
		t.Errorf("Expected title 'Test Report' in JSON")
	}
}

func TestJSONGenerator_Extension(t *testing.T) {
	gen := &JSONGenerator{}
	if gen.Extension() != "json" {
		t.Errorf("Expected extension 'json', got '%s'", gen.Extension())
	}
}

func TestMarkdownGenerator(t *testing.T) {
	r := NewReport("Test Report", "/bin/target")
	r.SetStatistics(Statistics{Executions: 1000, Crashes: 1, ExecsPerSec: 16.67})
	r.AddCrash(CrashRecord{ID: 1, Severity: SeverityCrash, Representative: "crashes/0001", MemberCount: 2})

	gen := &MarkdownGenerator{IncludeDetails: true}

	var buf bytes.Buffer
	if err := gen.Generate(r, &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "# Test Report") {
		t.Error("Expected title in Markdown output")
	}
	if !strings.Contains(output, "## statistics") {
		t.Error("Expected statistics section in Markdown output")
	}
	if !strings.Contains(output, "cluster #1") {
		t.Error("Expected crash cluster section in Markdown output")
	}
}

func TestMarkdownGenerator_NoCrashes(t *testing.T) {
	r := NewReport("Clean Report", "/bin/target")

	gen := &MarkdownGenerator{}

	var buf bytes.Buffer
	if err := gen.Generate(r, &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !strings.Contains(buf.String(), "no crashes recorded") {
		t.Error("Expected 'no crashes recorded' message")
	}
}

func TestHTMLGenerator(t *testing.T) {
	r := NewReport("Test Report", "/bin/target")
	r.SetStatistics(Statistics{Executions: 1000, Crashes: 1, ExecsPerSec: 16.67})
	r.AddCrash(CrashRecord{ID: 1, Severity: SeverityCrash, Representative: "crashes/0001"})

	gen := NewHTMLGenerator()

	var buf bytes.Buffer
	if err := gen.Generate(r, &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "<!DOCTYPE html>") {
		t.Error("Expected DOCTYPE in HTML output")
	}
	if !strings.Contains(output, "Test Report") {
		t.Error("Expected title in HTML output")
	}
	if !strings.Contains(output, "statistics") {
		t.Error("Expected statistics section in HTML output")
	}
	if !strings.Contains(output, "crash clusters") {
		t.Error("Expected crash clusters section in HTML output")
	}
}

func TestHTMLGenerator_Extension(t *testing.T) {
	gen := NewHTMLGenerator()
	if gen.Extension() != "html" {
		t.Errorf("Expected extension 'html', got '%s'", gen.Extension())
	}
}

func TestManager(t *testing.T) {
	tmpDir := t.TempDir()
	m := NewManager(tmpDir)

	if _, ok := m.GetGenerator("json"); !ok {
		t.Error("Expected json generator to be registered")
	}
	if _, ok := m.GetGenerator("html"); !ok {
		t.Error("Expected html generator to be registered")
	}
	if _, ok := m.GetGenerator("markdown"); !ok {
		t.Error("Expected markdown generator to be registered")
	}
}

func TestManager_Generate(t *testing.T) {
	tmpDir := t.TempDir()
	m := NewManager(tmpDir)

	r := NewReport("Test", "/bin/target")
	r.AddCrash(CrashRecord{ID: 1, Severity: SeverityHang, Representative: "crashes/0001"})

	path, err := m.Generate(r, "json")
	if err != nil {
		t.Fatalf("Generate JSON failed: %v", err)
	}
	if !strings.HasSuffix(path, ".json") {
		t.Errorf("Expected .json extension, got %s", path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Report file was not created: %s", path)
	}
}

func TestManager_Generate_UnknownFormat(t *testing.T) {
	tmpDir := t.TempDir()
	m := NewManager(tmpDir)

	r := NewReport("Test", "/bin/target")

	if _, err := m.Generate(r, "unknown"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestManager_GenerateAll(t *testing.T) {
	tmpDir := t.TempDir()
	m := NewManager(tmpDir)

	r := NewReport("Test", "/bin/target")

	paths, err := m.GenerateAll(r)
	if err != nil {
		t.Fatalf("GenerateAll failed: %v", err)
	}
	if len(paths) < 3 {
		t.Errorf("Expected at least 3 files, got %d", len(paths))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			t.Errorf("Report file was not created: %s", p)
		}
	}
}

func TestManager_WriteToWriter(t *testing.T) {
	m := NewManager("")

	r := NewReport("Test", "/bin/target")

	var buf bytes.Buffer
	if err := m.WriteToWriter(r, "json", &buf); err != nil {
		t.Fatalf("WriteToWriter failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Expected non-empty output")
	}
}

func TestWriteCoverageCurve(t *testing.T) {
	samples := []monitor.GrowthPoint{
		{Elapsed: 0, Popcount: 10},
		{Elapsed: time.Second, Popcount: 25},
		{Elapsed: 2 * time.Second, Popcount: 40},
	}

	var buf bytes.Buffer
	if err := WriteCoverageCurve(&buf, samples); err != nil {
		t.Fatalf("WriteCoverageCurve failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 { // header + 3 rows
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[0] != "elapsed_seconds,popcount" {
		t.Errorf("unexpected header: %q", lines[0])
	}
}

func createTestReport(numCrashes int) *Report {
	r := NewReport("Benchmark Report", "/bin/target")
	r.SetStatistics(Statistics{
		Executions:  10000,
		Crashes:     int64(numCrashes),
		ExecsPerSec: 16.67,
	})

	severities := []Severity{SeverityCrash, SeverityHang, SeverityError}
	for i := 0; i < numCrashes; i++ {
		r.AddCrash(CrashRecord{
			ID:             i,
			Severity:       severities[i%len(severities)],
			Representative: filepath.Join("crashes", strings.Repeat("0", 3)+string(rune('A'+i%26))),
			MemberCount:    i % 5,
		})
	}
	return r
}

func BenchmarkJSONGenerator(b *testing.B) {
	r := createTestReport(100)
	gen := &JSONGenerator{Indent: false}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		gen.Generate(r, &buf)
	}
}

func BenchmarkMarkdownGenerator(b *testing.B) {
	r := createTestReport(100)
	gen := &MarkdownGenerator{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		gen.Generate(r, &buf)
	}
}

func BenchmarkHTMLGenerator(b *testing.B) {
	r := createTestReport(100)
	gen := NewHTMLGenerator()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		gen.Generate(r, &buf)
	}
}

func TestIntegration_FullWorkflow(t *testing.T) {
	tmpDir := t.TempDir()

	r := NewReport("Integration Test", "/bin/target")
	r.SetStatistics(Statistics{
		Executions:        5000,
		Crashes:           2,
		Hangs:             1,
		InterestingInputs: 40,
		ExecsPerSec:       16.67,
		CoveragePercent:   12.5,
	})

	r.AddCrash(CrashRecord{ID: 1, Severity: SeverityCrash, Representative: "crashes/0001", MemberCount: 2})
	r.AddCrash(CrashRecord{ID: 2, Severity: SeverityHang, Representative: "crashes/0002", MemberCount: 1})

	m := NewManager(tmpDir)
	paths, err := m.GenerateAll(r)
	if err != nil {
		t.Fatalf("GenerateAll failed: %v", err)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			t.Errorf("File not created: %s", p)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("File is empty: %s", p)
		}
		ext := filepath.Ext(p)
		if ext != ".json" && ext != ".html" && ext != ".md" {
			t.Errorf("Unexpected file extension: %s", ext)
		}
	}
}
