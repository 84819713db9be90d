package domain

// Decision is the normalized "what's next" signal of a step: either a known token or nothing.
type Decision struct {
	token string
}

// Known wraps a non-empty token. An empty token yields Unknown.
func Known(token string) Decision {
	return Decision{token: token}
}

// Unknown is the absence of a usable decision.
func Unknown() Decision {
	return Decision{}
}

// Token returns the decision token and whether one exists.
func (d Decision) Token() (string, bool) {
	return d.token, d.token != ""
}

// IsKnown reports whether the decision carries a token.
func (d Decision) IsKnown() bool {
	return d.token != ""
}

// String returns the token, or "" when unknown.
func (d Decision) String() string {
	return d.token
}
