// Package router picks a pipeline for an alert from trigger phrases, for
// callers that ask for the "auto" pipeline.
package router

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/zen-systems/socflow/pkg/capability"
)

// Auto is the pipeline name that requests routing.
const Auto = "auto"

// Route binds trigger phrases to a pipeline.
type Route struct {
	Pipeline string   `koanf:"pipeline" yaml:"pipeline"`
	Triggers []string `koanf:"triggers" yaml:"triggers"`
}

// Signal triggers are synthesized from the alert shape rather than its words.
const (
	SignalIPv4    = "<ipv4 address>"
	SignalLogPath = "<log file path>"
)

var logPath = regexp.MustCompile(`^\S+\.(log|txt)(\.\d+)?$`)

// DefaultRoutes covers the built-in pipelines.
func DefaultRoutes() []Route {
	return []Route{
		{Pipeline: "logs", Triggers: []string{SignalLogPath, "log file", "syslog", "/var/log"}},
		{Pipeline: "threat", Triggers: []string{SignalIPv4, "source ip", "brute force", "port scan", "c2", "malicious ip", "ssh"}},
		{Pipeline: "incident", Triggers: []string{"ransomware", "exfiltration", "breach", "privilege escalation", "malware", "compromised"}},
		{Pipeline: "triage", Triggers: []string{"phishing", "suspicious", "failed login", "anomaly", "policy violation"}},
	}
}

// Router scores routes against alerts.
type Router struct {
	routes   []Route
	fallback string
}

// New creates a router. Routes with an empty pipeline or an empty trigger are
// rejected; fallback is used when no trigger matches.
func New(routes []Route, fallback string) (*Router, error) {
	if fallback == "" {
		return nil, fmt.Errorf("fallback pipeline is required")
	}
	for i, r := range routes {
		if r.Pipeline == "" {
			return nil, fmt.Errorf("route %d has no pipeline", i)
		}
		if r.Pipeline == Auto {
			return nil, fmt.Errorf("route %d cannot target %q", i, Auto)
		}
		for _, trigger := range r.Triggers {
			if strings.TrimSpace(trigger) == "" {
				return nil, fmt.Errorf("route %d has an empty trigger", i)
			}
		}
	}
	return &Router{routes: routes, fallback: fallback}, nil
}

// Routes returns the configured routes.
func (r *Router) Routes() []Route {
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// Route picks a pipeline for alert.
func (r *Router) Route(alert string) *Decision {
	alertLower := strings.ToLower(alert)
	trimmed := strings.TrimSpace(alert)

	var candidates []Candidate
	for _, route := range r.routes {
		var matched []string
		for _, trig := range route.Triggers {
			if matchTrigger(alertLower, trimmed, trig) {
				matched = append(matched, trig)
			}
		}
		if len(matched) == 0 {
			continue
		}
		candidates = append(candidates, Candidate{Pipeline: route.Pipeline, Score: len(matched), Triggers: matched})
	}

	if len(candidates) == 0 {
		return &Decision{
			Pipeline: r.fallback,
			Reasons:  []string{"no triggers matched; using default"},
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}

	top := candidates[0].Score
	second := 0
	if len(candidates) > 1 {
		second = candidates[1].Score
	}
	margin := float64(top-second) / float64(max(top, 1))
	strength := float64(min(top, 5)) / 5.0
	confidence := 0.75*margin + 0.25*strength
	if top >= 2 && second == 0 {
		confidence = max(confidence, 0.9)
	}
	if top >= 3 {
		confidence = min(confidence+0.15, 1.0)
	}

	return &Decision{
		Pipeline:   candidates[0].Pipeline,
		Confidence: confidence,
		Reasons:    []string{fmt.Sprintf("top_score=%d second_score=%d", top, second)},
		Candidates: candidates,
	}
}

func matchTrigger(alertLower, trimmed, trigger string) bool {
	switch trigger {
	case SignalIPv4:
		return capability.FirstIPv4(trimmed) != ""
	case SignalLogPath:
		return logPath.MatchString(trimmed)
	default:
		return containsTrigger(alertLower, strings.ToLower(trigger))
	}
}

// containsTrigger reports whether trigger occurs in text on word boundaries.
func containsTrigger(text, trigger string) bool {
	for offset := 0; ; {
		idx := strings.Index(text[offset:], trigger)
		if idx == -1 {
			return false
		}
		start := offset + idx
		end := start + len(trigger)
		if (start == 0 || !isWordChar(text[start-1])) && (end == len(text) || !isWordChar(text[end])) {
			return true
		}
		offset = start + 1
	}
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}
