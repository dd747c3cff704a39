package pipeline

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	content := `name: triage
description: summarize then mitigate

stages:
  - id: mitigate
    instruction: "Recommend mitigation steps."
    depends_on: [summarize]
    expected_output: A numbered list.
  - id: summarize
    persona: You are a Tier 1 SOC analyst.
    instruction: "Summarize: {{ .Alert }}"
    capabilities: [check_ip_reputation]
    model: offline
`
	path := filepath.Join(t.TempDir(), "triage.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	p, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if p.Name() != "triage" || p.Description() != "summarize then mitigate" {
		t.Fatalf("unexpected metadata %q %q", p.Name(), p.Description())
	}
	if !reflect.DeepEqual(p.Order(), []string{"summarize", "mitigate"}) {
		t.Fatalf("order = %v", p.Order())
	}
	s, _ := p.Stage("summarize")
	if s.Model != "offline" || !reflect.DeepEqual(s.Capabilities, []string{"check_ip_reputation"}) {
		t.Fatalf("stage fields not decoded: %+v", s)
	}
	m, _ := p.Stage("mitigate")
	if m.ExpectedOutput != "A numbered list." {
		t.Fatalf("expected_output not decoded: %+v", m)
	}
}

func TestManifestExplicitTerminal(t *testing.T) {
	content := `name: fan
terminal: report
stages:
  - id: summary
    instruction: s
  - id: report
    instruction: r
    depends_on: [summary]
  - id: notes
    instruction: n
`
	p, err := ParseManifest([]byte(content))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Terminal() != "report" {
		t.Fatalf("terminal = %q", p.Terminal())
	}
}

func TestManifestTerminalMustBeSink(t *testing.T) {
	content := `name: bad
terminal: summary
stages:
  - id: summary
    instruction: s
  - id: report
    instruction: r
    depends_on: [summary]
`
	if _, err := ParseManifest([]byte(content)); err == nil {
		t.Fatal("expected error for terminal with dependents")
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	if _, err := LoadManifest(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error")
	}
}
