package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the YAML form of a pipeline.
type Manifest struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Terminal    string   `yaml:"terminal,omitempty"`
	Stages      []*Stage `yaml:"stages"`
}

// LoadManifest reads a pipeline definition from a YAML file.
func LoadManifest(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParseManifest decodes and validates a YAML pipeline definition.
func ParseManifest(data []byte) (*Pipeline, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return m.Build()
}

// Build validates the manifest and returns the pipeline.
func (m *Manifest) Build() (*Pipeline, error) {
	return build(m.Name, m.Description, m.Terminal, m.Stages)
}
