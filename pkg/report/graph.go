package report

import (
	"regexp"
	"strings"

	"github.com/emicklei/dot"

	"github.com/zen-systems/socflow/pkg/capability"
)

// Graph defaults used when an alert does not name a value.
const (
	DefaultSourceIP   = "Unknown"
	DefaultTarget     = "Corporate_Server_01"
	DefaultAttackType = "Brute Force"
)

// GraphInput names the three parties of a threat graph.
type GraphInput struct {
	SourceIP   string
	Target     string
	AttackType string
}

var (
	targetLine = regexp.MustCompile(`(?im)^\s*(?:-\s*)?target\s*:\s*(.+?)\s*$`)
	typeLine   = regexp.MustCompile(`(?im)^\s*(?:-\s*)?(?:vector/type|attack type|type)\s*:\s*(.+?)\s*$`)
)

// GraphInputFromAlert extracts the first IPv4 address and any "Target:" or
// "Type:" lines from an alert, falling back to the defaults.
func GraphInputFromAlert(alert string) GraphInput {
	in := GraphInput{SourceIP: DefaultSourceIP, Target: DefaultTarget, AttackType: DefaultAttackType}
	if ip := capability.FirstIPv4(alert); ip != "" {
		in.SourceIP = ip
	}
	if m := targetLine.FindStringSubmatch(alert); m != nil {
		in.Target = m[1]
	}
	if m := typeLine.FindStringSubmatch(alert); m != nil {
		in.AttackType = m[1]
	}
	return in
}

// ThreatGraph renders attacker, gateway and target as a left-to-right DOT graph.
func ThreatGraph(in GraphInput) string {
	if in.SourceIP == "" {
		in.SourceIP = DefaultSourceIP
	}
	if in.Target == "" {
		in.Target = DefaultTarget
	}
	if in.AttackType == "" {
		in.AttackType = DefaultAttackType
	}

	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "LR")
	g.Attr("bgcolor", "#0E1117")

	attacker := node(g, "A", label("Attacker", in.SourceIP), "#FF4B4B", "white")
	gateway := node(g, "B", label("Firewall/IPS"), "#FFA500", "black")
	target := node(g, "C", label("Target", in.Target), "#00CC96", "black")

	g.Edge(attacker, gateway).Attr("label", label(in.AttackType)).Attr("color", "white").Attr("fontcolor", "white")
	g.Edge(gateway, target).Attr("label", label("Allowed/Blocked")).Attr("color", "white").Attr("fontcolor", "white")

	return g.String()
}

func node(g *dot.Graph, id string, text dot.Literal, fill, font string) dot.Node {
	return g.Node(id).
		Attr("label", text).
		Attr("shape", "box").
		Attr("style", "filled").
		Attr("color", "white").
		Attr("fontname", "Courier").
		Attr("fillcolor", fill).
		Attr("fontcolor", font)
}

// label quotes lines for DOT, joined by the \n line break escape.
func label(lines ...string) dot.Literal {
	escaped := make([]string, len(lines))
	for i, l := range lines {
		l = strings.ReplaceAll(l, `\`, `\\`)
		escaped[i] = strings.ReplaceAll(l, `"`, `\"`)
	}
	return dot.Literal(`"` + strings.Join(escaped, `\n`) + `"`)
}
