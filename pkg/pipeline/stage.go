package pipeline

// Stage represents a single step in a pipeline.
// A stage is declarative: the runner gives it behavior.
type Stage struct {
	ID string `yaml:"id"`
	// Persona is an optional role description placed before the instruction.
	Persona string `yaml:"persona,omitempty"`
	// Instruction is a text/template rendered with {{ .Alert }}.
	Instruction string `yaml:"instruction"`
	// DependsOn lists upstream stage IDs in the order their outputs are
	// appended to the prompt.
	DependsOn []string `yaml:"depends_on,omitempty"`
	// ExpectedOutput documents the desired result. It is appended to the
	// prompt but never enforced.
	ExpectedOutput string `yaml:"expected_output,omitempty"`
	// Capabilities names the registry entries the stage may invoke.
	Capabilities []string `yaml:"capabilities,omitempty"`
	// Model overrides the runner's default model selector.
	Model string `yaml:"model,omitempty"`
}

func (s *Stage) clone() *Stage {
	c := *s
	c.DependsOn = append([]string(nil), s.DependsOn...)
	c.Capabilities = append([]string(nil), s.Capabilities...)
	return &c
}
