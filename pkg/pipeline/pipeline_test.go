package pipeline

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func chain() []*Stage {
	return []*Stage{
		{ID: "c", Instruction: "Report on {{ .Alert }}", DependsOn: []string{"b"}},
		{ID: "a", Instruction: "Summarize {{ .Alert }}"},
		{ID: "b", Instruction: "Mitigate", DependsOn: []string{"a"}},
	}
}

func TestOrderFollowsDependencies(t *testing.T) {
	p, err := New("chain", chain()...)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got, want := p.Order(), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if p.Terminal() != "c" {
		t.Fatalf("terminal = %q, want c", p.Terminal())
	}
}

func TestOrderIsStableForIndependentStages(t *testing.T) {
	p, err := New("fan",
		&Stage{ID: "report", Instruction: "r", DependsOn: []string{"intel", "summary"}},
		&Stage{ID: "summary", Instruction: "s"},
		&Stage{ID: "intel", Instruction: "i"},
		&Stage{ID: "mitigate", Instruction: "m", DependsOn: []string{"summary"}},
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	want := []string{"summary", "intel", "report", "mitigate"}
	for i := 0; i < 5; i++ {
		if got := p.Order(); !reflect.DeepEqual(got, want) {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSelfDependencyIsCycle(t *testing.T) {
	_, err := New("self", &Stage{ID: "x", Instruction: "x", DependsOn: []string{"x"}})
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if !reflect.DeepEqual(cycle.Path, []string{"x", "x"}) {
		t.Fatalf("unexpected path %v", cycle.Path)
	}
}

func TestTransitiveCycle(t *testing.T) {
	_, err := New("loop",
		&Stage{ID: "root", Instruction: "r"},
		&Stage{ID: "a", Instruction: "a", DependsOn: []string{"root", "c"}},
		&Stage{ID: "b", Instruction: "b", DependsOn: []string{"a"}},
		&Stage{ID: "c", Instruction: "c", DependsOn: []string{"b"}},
	)
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if got := strings.Join(cycle.Path, "->"); got != "a->c->b->a" {
		t.Fatalf("unexpected cycle path %s", got)
	}
}

func TestUnknownDependency(t *testing.T) {
	_, err := New("bad", &Stage{ID: "a", Instruction: "a", DependsOn: []string{"ghost"}})
	var unknown *UnknownDependencyError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownDependencyError, got %v", err)
	}
	if unknown.Stage != "a" || unknown.Dependency != "ghost" {
		t.Fatalf("unexpected error fields %+v", unknown)
	}
}

func TestDuplicateStage(t *testing.T) {
	_, err := New("dup", &Stage{ID: "a", Instruction: "a"}, &Stage{ID: "a", Instruction: "b"})
	var dup *DuplicateStageError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateStageError, got %v", err)
	}
}

func TestNewRejectsInvalidStages(t *testing.T) {
	cases := map[string][]*Stage{
		"no stages":       nil,
		"empty id":        {{Instruction: "x"}},
		"no instruction":  {{ID: "a"}},
		"bad template":    {{ID: "a", Instruction: "{{ .Alert "}},
		"nil stage entry": {nil},
	}
	for name, stages := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := New("p", stages...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPipelineCopiesStages(t *testing.T) {
	stages := chain()
	p, err := New("chain", stages...)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	stages[0].DependsOn[0] = "mutated"

	c, ok := p.Stage("c")
	if !ok || c.DependsOn[0] != "b" {
		t.Fatalf("pipeline should not observe caller mutation, got %+v", c)
	}
	c.DependsOn[0] = "again"
	c2, _ := p.Stage("c")
	if c2.DependsOn[0] != "b" {
		t.Fatalf("Stage should return a copy")
	}
}

func TestAssemble(t *testing.T) {
	stage := &Stage{
		ID:             "report",
		Persona:        "You are a SOC analyst.",
		Instruction:    "Write a report for: {{ .Alert }}",
		DependsOn:      []string{"summary", "intel"},
		ExpectedOutput: "A markdown report.",
	}
	outputs := map[string]StageOutput{
		"intel":   {StageID: "intel", Text: "IP is malicious"},
		"summary": {StageID: "summary", Text: "Brute force on SSH"},
	}

	prompt, err := Assemble(stage, "ALERT-1", outputs)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	want := "You are a SOC analyst.\n\nWrite a report for: ALERT-1" +
		"\n\n### Context from summary\nBrute force on SSH" +
		"\n\n### Context from intel\nIP is malicious" +
		"\n\nExpected output: A markdown report."
	if prompt != want {
		t.Fatalf("prompt mismatch\n got: %q\nwant: %q", prompt, want)
	}
}

func TestAssembleMissingDependency(t *testing.T) {
	stage := &Stage{ID: "b", Instruction: "x", DependsOn: []string{"a"}}
	_, err := Assemble(stage, "alert", map[string]StageOutput{})
	var missing *MissingDependencyOutputError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingDependencyOutputError, got %v", err)
	}
	if missing.Dependency != "a" {
		t.Fatalf("unexpected dependency %q", missing.Dependency)
	}
}

func TestAssembleUnknownTemplateField(t *testing.T) {
	stage := &Stage{ID: "a", Instruction: "{{ .Nope }}"}
	if _, err := Assemble(stage, "alert", nil); err == nil {
		t.Fatal("expected render error")
	}
}
