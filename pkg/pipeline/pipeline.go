package pipeline

import (
	"fmt"
	"strings"
	"text/template"
)

// Pipeline is a validated DAG of stages. It is read-only after construction
// and may be shared by concurrent runs.
type Pipeline struct {
	name        string
	description string
	terminal    string
	stages      []*Stage
	index       map[string]int
	order       []string
	templates   map[string]*template.Template
}

// New validates the stages and computes their execution order.
// Stages are copied; later changes to the arguments do not affect the pipeline.
func New(name string, stages ...*Stage) (*Pipeline, error) {
	return build(name, "", "", stages)
}

func build(name, description, terminal string, stages []*Stage) (*Pipeline, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("pipeline name is required")
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("pipeline %s must define at least one stage", name)
	}

	p := &Pipeline{
		name:        name,
		description: description,
		index:       make(map[string]int, len(stages)),
		templates:   make(map[string]*template.Template, len(stages)),
	}

	for i, s := range stages {
		if s == nil {
			return nil, fmt.Errorf("stage %d is nil", i)
		}
		if strings.TrimSpace(s.ID) == "" {
			return nil, fmt.Errorf("stage %d: id is required", i)
		}
		if _, ok := p.index[s.ID]; ok {
			return nil, &DuplicateStageError{Stage: s.ID}
		}
		if strings.TrimSpace(s.Instruction) == "" {
			return nil, fmt.Errorf("stage %s must have an instruction", s.ID)
		}
		p.index[s.ID] = i
		p.stages = append(p.stages, s.clone())
	}

	for _, s := range p.stages {
		for _, dep := range s.DependsOn {
			if _, ok := p.index[dep]; !ok {
				return nil, &UnknownDependencyError{Stage: s.ID, Dependency: dep}
			}
		}
	}

	order, err := p.topoOrder()
	if err != nil {
		return nil, err
	}
	p.order = order

	for _, s := range p.stages {
		tmpl, err := template.New(s.ID).Option("missingkey=error").Parse(s.Instruction)
		if err != nil {
			return nil, fmt.Errorf("stage %s: parse instruction: %w", s.ID, err)
		}
		p.templates[s.ID] = tmpl
	}

	if terminal == "" {
		terminal = order[len(order)-1]
	}
	if _, ok := p.index[terminal]; !ok {
		return nil, fmt.Errorf("terminal stage %s is not defined", terminal)
	}
	for _, s := range p.stages {
		for _, dep := range s.DependsOn {
			if dep == terminal {
				return nil, fmt.Errorf("terminal stage %s must not be a dependency of %s", terminal, s.ID)
			}
		}
	}
	p.terminal = terminal

	return p, nil
}

// topoOrder runs Kahn's algorithm, always taking the ready stage declared
// first so equivalent orderings resolve the same way every time.
func (p *Pipeline) topoOrder() ([]string, error) {
	n := len(p.stages)
	indegree := make([]int, n)
	dependents := make([][]int, n)
	for i, s := range p.stages {
		seen := make(map[string]bool, len(s.DependsOn))
		for _, dep := range s.DependsOn {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			j := p.index[dep]
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	done := make([]bool, n)
	order := make([]string, 0, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, &CycleError{Path: p.findCycle(done)}
		}
		done[next] = true
		order = append(order, p.stages[next].ID)
		for _, d := range dependents[next] {
			indegree[d]--
		}
	}
	return order, nil
}

// findCycle walks dependencies among the unscheduled stages until one repeats.
func (p *Pipeline) findCycle(done []bool) []string {
	start := -1
	for i := range p.stages {
		if !done[i] {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	pos := make(map[int]int)
	var path []int
	cur := start
	for {
		if at, ok := pos[cur]; ok {
			cycle := make([]string, 0, len(path)-at+1)
			for _, i := range path[at:] {
				cycle = append(cycle, p.stages[i].ID)
			}
			return append(cycle, p.stages[cur].ID)
		}
		pos[cur] = len(path)
		path = append(path, cur)

		next := -1
		for _, dep := range p.stages[cur].DependsOn {
			if j := p.index[dep]; !done[j] {
				next = j
				break
			}
		}
		if next < 0 {
			return nil
		}
		cur = next
	}
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Description returns the manifest description, if any.
func (p *Pipeline) Description() string { return p.description }

// Order returns stage IDs in execution order.
func (p *Pipeline) Order() []string {
	return append([]string(nil), p.order...)
}

// Terminal returns the ID of the stage whose output is the final report.
func (p *Pipeline) Terminal() string { return p.terminal }

// Stage returns a copy of the stage with the given ID.
func (p *Pipeline) Stage(id string) (*Stage, bool) {
	i, ok := p.index[id]
	if !ok {
		return nil, false
	}
	return p.stages[i].clone(), true
}

// Stages returns copies of the stages in declaration order.
func (p *Pipeline) Stages() []*Stage {
	out := make([]*Stage, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.clone()
	}
	return out
}

func (p *Pipeline) stage(id string) *Stage {
	return p.stages[p.index[id]]
}
