package decision

import (
	"fmt"
	"testing"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

type plannerOutput struct {
	Next string `mapstructure:"next"`
	Task string `mapstructure:"task"`
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"plain string", "Coder", "Coder"},
		{"padded string", "  Coder.\n", "Coder"},
		{"mapping", map[string]any{"next": "Coder", "task": "write script"}, "Coder"},
		{"string mapping", map[string]string{"next_step": "Search"}, "Search"},
		{"json literal", `{"next": "Coder", "task": "write script"}`, "Coder"},
		{"single-quoted literal", `{'next': 'Visualization'}`, "Visualization"},
		{"yaml literal", "next: Report\ntask: draft intro", "Report"},
		{"decorated text", "After reviewing the data I decided. next = 'Coder' because we need a model", "Coder"},
		{"decorated next_step", `Decision -> "next_step": "Search"`, "Search"},
		{"finish", "FINISH", "FINISH"},
		{"struct", plannerOutput{Next: "Coder", Task: "x"}, "Coder"},
		{"struct pointer", &plannerOutput{Next: "Report"}, "Report"},
		{"bytes", []byte(`{"next":"Search"}`), "Search"},
		{"decision", domain.Known("Coder"), "Coder"},
		{"step id", domain.StepSearch, "Search"},
		{"nil", nil, ""},
		{"empty", "   ", ""},
		{"mapping without next", map[string]any{"task": "x"}, ""},
		{"number", 42, ""},
		{"slice", []string{"Coder"}, ""},
		{"broken literal", `{'next': 'Coder'`, "Coder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.raw))
		})
	}
}

func TestParse(t *testing.T) {
	d := Parse(`{"next": "Coder"}`)
	token, ok := d.Token()
	assert.True(t, ok)
	assert.Equal(t, "Coder", token)

	assert.False(t, Parse("").IsKnown())
	assert.False(t, Parse(map[string]any{"task": "x"}).IsKnown())
}

func TestField(t *testing.T) {
	assert.Equal(t, "write script", Field(`{"next": "Coder", "task": "write script"}`, "task"))
	assert.Equal(t, "fix labels", Field(map[string]any{"feedback": "fix labels"}, "feedback"))
	assert.Equal(t, "x", Field(plannerOutput{Task: "x"}, "task"))
	assert.Empty(t, Field("just text", "task"))
	assert.Empty(t, Field(nil, "task"))
}

func TestExtract_NeverPanics(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.String().Draw(rt, "raw")
		assert.NotPanics(rt, func() {
			_ = Extract(s)
			_ = Field(s, "task")
		})
	})
}

func TestExtract_EquivalentShapes(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		token := rapid.StringMatching(`[A-Z][a-z]{2,10}`).Draw(rt, "token")

		shapes := []any{
			token,
			map[string]any{"next": token},
			map[string]string{"next": token},
			fmt.Sprintf(`{"next": "%s"}`, token),
			fmt.Sprintf(`{'next': '%s'}`, token),
			fmt.Sprintf("Reasoning done; next: %s", token),
		}
		for _, raw := range shapes {
			if got := Extract(raw); got != token {
				rt.Fatalf("Extract(%#v) = %q, want %q", raw, got, token)
			}
		}
	})
}
