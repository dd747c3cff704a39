package router

import (
	"testing"
)

func TestRoute(t *testing.T) {
	r, err := New(DefaultRoutes(), "triage")
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	tests := []struct {
		name     string
		alert    string
		expected string
	}{
		{
			name:     "ip and brute force",
			alert:    "Multiple failed SSH login attempts. Source IP: 45.12.34.7",
			expected: "threat",
		},
		{
			name:     "log file path",
			alert:    "sample_logs.log",
			expected: "logs",
		},
		{
			name:     "rotated log path",
			alert:    "/var/log/auth.log.1",
			expected: "logs",
		},
		{
			name:     "ransomware",
			alert:    "EDR: ransomware behaviour, possible data exfiltration from FILESRV",
			expected: "incident",
		},
		{
			name:     "phishing",
			alert:    "User reported a phishing email with a suspicious attachment",
			expected: "triage",
		},
		{
			name:     "no trigger falls back",
			alert:    "Disk usage at 91%",
			expected: "triage",
		},
		{
			name:     "trigger inside word does not match",
			alert:    "sshd restarted by operator",
			expected: "triage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.Route(tt.alert)
			if d.Pipeline != tt.expected {
				t.Errorf("Route(%q) = %s, want %s (candidates %+v)", tt.alert, d.Pipeline, tt.expected, d.Candidates)
			}
		})
	}
}

func TestRouteConfidence(t *testing.T) {
	r, err := New(DefaultRoutes(), "triage")
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	d := r.Route("SSH brute force from 45.12.34.7, source IP flagged")
	if d.Pipeline != "threat" {
		t.Fatalf("pipeline = %s", d.Pipeline)
	}
	if d.Confidence < 0.9 {
		t.Errorf("expected high confidence for unopposed matches, got %v", d.Confidence)
	}
	if len(d.Candidates) != 1 || d.Candidates[0].Score != 4 {
		t.Errorf("unexpected candidates %+v", d.Candidates)
	}

	d = r.Route("nothing here")
	if d.Confidence != 0 || len(d.Reasons) == 0 {
		t.Errorf("fallback decision should carry zero confidence and a reason: %+v", d)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, ""); err == nil {
		t.Error("expected error for missing fallback")
	}
	if _, err := New([]Route{{Triggers: []string{"x"}}}, "triage"); err == nil {
		t.Error("expected error for route without pipeline")
	}
	if _, err := New([]Route{{Pipeline: Auto}}, "triage"); err == nil {
		t.Error("expected error for route targeting auto")
	}
	if _, err := New([]Route{{Pipeline: "summary", Triggers: []string{"disk", "  "}}}, "triage"); err == nil {
		t.Error("expected error for empty trigger")
	}
}

func TestContainsTrigger(t *testing.T) {
	cases := map[string]bool{
		"ssh login":     true,
		"openssh login": false,
		"sshd; ssh":     true,
		"c2 beacon":     true,
	}
	for text, want := range cases {
		trigger := "ssh"
		if text == "c2 beacon" {
			trigger = "c2"
		}
		if got := containsTrigger(text, trigger); got != want {
			t.Errorf("containsTrigger(%q, %q) = %v, want %v", text, trigger, got, want)
		}
	}
}
