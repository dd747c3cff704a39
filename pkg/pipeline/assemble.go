package pipeline

import (
	"fmt"
	"strings"
	"text/template"
)

type promptData struct {
	Alert string
}

// Assemble builds the prompt for stage: the optional persona, the rendered
// instruction, one labeled block per dependency in declaration order, and the
// expected output description when set.
func Assemble(stage *Stage, alert string, outputs map[string]StageOutput) (string, error) {
	tmpl, err := template.New(stage.ID).Option("missingkey=error").Parse(stage.Instruction)
	if err != nil {
		return "", fmt.Errorf("stage %s: parse instruction: %w", stage.ID, err)
	}
	return assemble(tmpl, stage, alert, outputs)
}

func assemble(tmpl *template.Template, stage *Stage, alert string, outputs map[string]StageOutput) (string, error) {
	var sb strings.Builder
	if stage.Persona != "" {
		sb.WriteString(stage.Persona)
		sb.WriteString("\n\n")
	}
	if err := tmpl.Execute(&sb, promptData{Alert: alert}); err != nil {
		return "", fmt.Errorf("stage %s: render instruction: %w", stage.ID, err)
	}

	for _, dep := range stage.DependsOn {
		out, ok := outputs[dep]
		if !ok {
			return "", &MissingDependencyOutputError{Stage: stage.ID, Dependency: dep}
		}
		fmt.Fprintf(&sb, "\n\n### Context from %s\n%s", dep, out.Text)
	}

	if stage.ExpectedOutput != "" {
		fmt.Fprintf(&sb, "\n\nExpected output: %s", stage.ExpectedOutput)
	}
	return sb.String(), nil
}
