package secrets

// Result is the outcome of scrubbing one piece of content.
type Result struct {
	// Original is the input. Never serialized.
	Original string `json:"-"`

	// Scrubbed is the input with every finding replaced by Mask.
	Scrubbed string `json:"scrubbed"`

	// Findings describe what matched. They carry positions only, never
	// the matched value.
	Findings []Finding `json:"findings,omitempty"`

	// TotalFindings is the number of matches.
	TotalFindings int `json:"total_findings"`

	// ByRule maps rule IDs to match counts.
	ByRule map[string]int `json:"by_rule,omitempty"`
}

// Finding is a single detected secret.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	StartIndex  int    `json:"start_index"`
	EndIndex    int    `json:"end_index"`
	Line        int    `json:"line,omitempty"`
}

// HasFindings reports whether anything matched.
func (r *Result) HasFindings() bool {
	return r.TotalFindings > 0
}

// RuleIDs returns the rule IDs that matched.
func (r *Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.ByRule))
	for id := range r.ByRule {
		ids = append(ids, id)
	}
	return ids
}
