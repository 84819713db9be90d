package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Partial update keys accepted from step executors.
const (
	KeyMessages           = "messages"
	KeyReplaceMessages    = "replace_messages"
	KeyCurrentInstruction = "current_instruction"
	KeyNextStepHint       = "next_step_hint"
	KeyTodoList           = "todo_list"
	KeyCompletedTasks     = "completed_tasks"
	KeyHypothesis         = "hypothesis"
	KeySearchArtifacts    = "search_artifacts"
	KeyVizArtifacts       = "viz_artifacts"
	KeyCodeArtifacts      = "code_artifacts"
	KeyReportArtifacts    = "report_artifacts"
	KeyQualityFeedback    = "quality_feedback"
	KeyNeedsRevision      = "needs_revision"
	KeyHumanChoice        = "human_choice"
)

// Update is a typed partial update. Nil fields are absent and leave the record untouched.
type Update struct {
	Messages           []Message `mapstructure:"messages"`
	ReplaceMessages    bool      `mapstructure:"replace_messages"`
	CurrentInstruction *string   `mapstructure:"current_instruction"`
	NextStepHint       *string   `mapstructure:"next_step_hint"`
	TodoList           []string  `mapstructure:"todo_list"`
	CompletedTasks     []string  `mapstructure:"completed_tasks"`
	Hypothesis         *string   `mapstructure:"hypothesis"`
	SearchArtifacts    Artifacts `mapstructure:"search_artifacts"`
	VizArtifacts       Artifacts `mapstructure:"viz_artifacts"`
	CodeArtifacts      Artifacts `mapstructure:"code_artifacts"`
	ReportArtifacts    Artifacts `mapstructure:"report_artifacts"`
	QualityFeedback    *string   `mapstructure:"quality_feedback"`
	NeedsRevision      *bool     `mapstructure:"needs_revision"`
	HumanChoice        *string   `mapstructure:"human_choice"`
}

// DecodeUpdate converts a loosely typed partial update into an Update.
func DecodeUpdate(raw map[string]any) (Update, error) {
	var u Update
	if len(raw) == 0 {
		return u, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &u,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return u, fmt.Errorf("failed to build update decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return u, fmt.Errorf("failed to decode update: %w", err)
	}
	return u, nil
}

// String returns a pointer to s, for building Updates in code.
func String(s string) *string {
	return &s
}

// Bool returns a pointer to b, for building Updates in code.
func Bool(b bool) *bool {
	return &b
}

// Apply merges u, produced by step, into the record.
//
// Artifact maps are unions, scalars overwrite and messages append. Only the Compression
// step may replace the message trace.
func (s *State) Apply(step StepID, u Update) {
	s.Normalize()

	if u.Messages != nil {
		if u.ReplaceMessages && step == StepCompression {
			s.Messages = append([]Message{}, u.Messages...)
		} else {
			s.Messages = append(s.Messages, u.Messages...)
		}
	}

	assign(&s.CurrentInstruction, u.CurrentInstruction)
	assign(&s.NextStepHint, u.NextStepHint)
	assign(&s.Hypothesis, u.Hypothesis)
	assign(&s.QualityFeedback, u.QualityFeedback)
	assign(&s.HumanChoice, u.HumanChoice)
	if u.TodoList != nil {
		s.TodoList = append([]string(nil), u.TodoList...)
	}
	if u.CompletedTasks != nil {
		s.CompletedTasks = append([]string(nil), u.CompletedTasks...)
	}

	s.SearchArtifacts.Merge(u.SearchArtifacts)
	s.VizArtifacts.Merge(u.VizArtifacts)
	s.CodeArtifacts.Merge(u.CodeArtifacts)
	s.ReportArtifacts.Merge(u.ReportArtifacts)

	if u.NeedsRevision != nil {
		s.applyRevision(step, *u.NeedsRevision, u.QualityFeedback != nil)
	}

	s.LastActiveStep = step
	if step.IsWorker() {
		s.LastWorker = step
	}
}

// applyRevision keeps revision_count in step with needs_revision: a failed quality check
// counts one more attempt, and passing resets the count and drops the old feedback.
func (s *State) applyRevision(step StepID, needs, keepFeedback bool) {
	was := s.NeedsRevision
	s.NeedsRevision = needs
	switch {
	case needs && step == StepQualityReview:
		s.RevisionCount++
	case !needs && was:
		s.RevisionCount = 0
		if !keepFeedback {
			s.QualityFeedback = ""
		}
	}
}

func assign(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
