package domain

// StepResult is what a step executor returns.
type StepResult struct {
	// Output is step-specific content: free text, or a structured object carrying a decision.
	Output any `json:"output,omitempty"`
	// Update holds the State fields the step writes, keyed by their json names.
	Update map[string]any `json:"update,omitempty"`
}
