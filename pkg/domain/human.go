package domain

import (
	"strconv"
	"strings"
)

// Human decision tokens.
const (
	ChoiceRegenerate = "regenerate"
	ChoiceContinue   = "continue"
	ChoiceRevise     = "revise"
	ChoiceFinish     = "finish"
)

// Choice is one option offered at a human-decision step.
type Choice struct {
	Value   string   `json:"value"`
	Label   string   `json:"label"`
	Aliases []string `json:"aliases,omitempty"`
}

// Prompt describes what a human-decision step is asking.
type Prompt struct {
	Step    StepID   `json:"step"`
	Text    string   `json:"text"`
	Choices []Choice `json:"choices"`
}

// HumanDecision is the answer supplied when resuming a suspended session.
// Text carries free-form guidance, e.g. which parts of the hypothesis to change.
type HumanDecision struct {
	Choice string `json:"choice"`
	Text   string `json:"text,omitempty"`
}

var prompts = map[StepID]Prompt{
	StepHumanChoice: {
		Step: StepHumanChoice,
		Text: "Please choose the next step:",
		Choices: []Choice{
			{Value: ChoiceRegenerate, Label: "Regenerate hypothesis", Aliases: []string{"regen"}},
			{Value: ChoiceContinue, Label: "Continue the research process", Aliases: []string{"yes"}},
		},
	},
	StepHumanReview: {
		Step: StepHumanReview,
		Text: "Is additional analysis needed?",
		Choices: []Choice{
			{Value: ChoiceRevise, Label: "Yes, continue the analysis", Aliases: []string{"yes", "y"}},
			{Value: ChoiceFinish, Label: "No, finish the research", Aliases: []string{"no", "n", "end"}},
		},
	},
}

// PromptFor returns the prompt of a human-decision step.
func PromptFor(step StepID) (Prompt, bool) {
	p, ok := prompts[step]
	return p, ok
}

// Resolve matches input against the choice values, their aliases or their 1-based position.
func (p Prompt) Resolve(input string) (Choice, bool) {
	clean := strings.ToLower(strings.TrimSpace(input))
	clean = strings.TrimSuffix(clean, ".")
	if clean == "" {
		return Choice{}, false
	}
	if n, err := strconv.Atoi(clean); err == nil {
		if n >= 1 && n <= len(p.Choices) {
			return p.Choices[n-1], true
		}
		return Choice{}, false
	}
	for _, c := range p.Choices {
		if clean == c.Value {
			return c, true
		}
		for _, a := range c.Aliases {
			if clean == a {
				return c, true
			}
		}
	}
	return Choice{}, false
}

// Values lists the canonical choice tokens.
func (p Prompt) Values() []string {
	out := make([]string, 0, len(p.Choices))
	for _, c := range p.Choices {
		out = append(out, c.Value)
	}
	return out
}

// Render formats the prompt as numbered lines.
func (p Prompt) Render() string {
	var b strings.Builder
	b.WriteString(p.Text)
	for i, c := range p.Choices {
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(c.Label)
	}
	return b.String()
}
