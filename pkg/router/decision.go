package router

// Candidate is a pipeline whose triggers matched an alert.
type Candidate struct {
	Pipeline string   `json:"pipeline"`
	Score    int      `json:"score"`
	Triggers []string `json:"triggers,omitempty"`
}

// Decision captures why a pipeline was picked for an alert.
type Decision struct {
	Pipeline   string      `json:"pipeline"`
	Confidence float64     `json:"confidence"`
	Reasons    []string    `json:"reasons,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
}
