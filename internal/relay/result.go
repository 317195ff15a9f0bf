package relay

// DecisionResult is the shape the client expects to find in the
// vendor's completion text. It is documented here as a contract: the
// server forwards the vendor body without validating it, and the
// client applies defensive parsing.
type DecisionResult struct {
	Title            string           `json:"title"`
	Summary          string           `json:"summary"`
	Recommendation   string           `json:"recommendation"`
	Options          []DecisionOption `json:"options"`
	HiddenViewpoints []string         `json:"hidden_viewpoints,omitempty"`
}

// DecisionOption is one weighted choice in a decision result
type DecisionOption struct {
	Label      string   `json:"label"`
	Emoji      string   `json:"emoji,omitempty"`
	Pros       []string `json:"pros"`
	Cons       []string `json:"cons"`
	Likelihood int      `json:"likelihood"`
}
