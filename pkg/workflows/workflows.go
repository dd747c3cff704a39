// Package workflows ships the built-in SOC pipelines as embedded manifests.
package workflows

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/zen-systems/socflow/pkg/pipeline"
)

//go:embed manifests/*.yaml
var manifests embed.FS

// Default is the pipeline used when none is requested.
const Default = "threat"

// Names returns the built-in pipeline names in sorted order.
func Names() []string {
	entries, err := fs.ReadDir(manifests, "manifests")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Source returns the raw manifest for a built-in pipeline.
func Source(name string) ([]byte, error) {
	data, err := manifests.ReadFile(path.Join("manifests", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("unknown pipeline %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return data, nil
}

// Load builds a built-in pipeline by name.
func Load(name string) (*pipeline.Pipeline, error) {
	data, err := Source(name)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("built-in pipeline %s: %w", name, err)
	}
	return p, nil
}
