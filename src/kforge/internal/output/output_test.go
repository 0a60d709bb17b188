package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"table", "json", "yaml", ""} {
		if _, err := ParseFormat(in); err != nil {
			t.Errorf("ParseFormat(%q) unexpected error: %v", in, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestPrintJSON_Struct(t *testing.T) {
	type run struct {
		ID      string `json:"id"`
		Variant string `json:"variant"`
	}
	var buf bytes.Buffer
	if err := PrintJSON(&buf, run{ID: "abc", Variant: "debug"}); err != nil {
		t.Fatalf("PrintJSON error: %v", err)
	}
	var got run
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if got.Variant != "debug" {
		t.Errorf("expected variant debug, got %q", got.Variant)
	}
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintYAML(&buf, map[string]int{"port": 1234}); err != nil {
		t.Fatalf("PrintYAML error: %v", err)
	}
	var got map[string]int
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid YAML output: %v", err)
	}
	if got["port"] != 1234 {
		t.Errorf("expected port 1234, got %v", got)
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, []string{"STAGE", "STATUS"}, [][]string{{"assemble", "completed"}, {"link", "failed"}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "STAGE") || !strings.Contains(lines[2], "failed") {
		t.Errorf("unexpected table output: %q", buf.String())
	}
}

func TestPrint_TableCallback(t *testing.T) {
	called := false
	if err := Print(&bytes.Buffer{}, FormatTable, nil, func() { called = true }); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("expected table callback to run")
	}
}
