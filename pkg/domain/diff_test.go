package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestDiff(t *testing.T) {
	active := StatusActive
	planning := StepPlanning

	base := func() *State {
		s := NewState("sess-1", "topic: X")
		s.NextStep = StepPlanning
		return s
	}

	tests := []struct {
		name     string
		old      *State
		new      func() *State
		wantDiff *StateDiff // nil means we expect no diff
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new:  base,
			wantDiff: &StateDiff{
				SessionID: "sess-1",
				NextStep:  &planning,
				Status:    &active,
				Messages:  []Message{{Role: RoleUser, Author: AuthorHuman, Content: "topic: X"}},
			},
		},
		{
			name:     "No Changes",
			old:      base(),
			new:      base,
			wantDiff: nil,
		},
		{
			name: "Message Append",
			old:  base(),
			new: func() *State {
				s := base()
				s.Messages = append(s.Messages, Message{Role: RoleAssistant, Author: "Planning", Content: "plan"})
				return s
			},
			wantDiff: &StateDiff{
				SessionID: "sess-1",
				Messages:  []Message{{Role: RoleAssistant, Author: "Planning", Content: "plan"}},
			},
		},
		{
			name: "Messages Compressed",
			old: func() *State {
				s := base()
				s.Messages = append(s.Messages, Message{Content: "a"}, Message{Content: "b"})
				return s
			}(),
			new: func() *State {
				s := base()
				s.Messages = []Message{{Content: "summary"}}
				return s
			},
			wantDiff: &StateDiff{
				SessionID:        "sess-1",
				Messages:         []Message{{Content: "summary"}},
				MessagesReplaced: true,
			},
		},
		{
			name: "Artifacts Added",
			old:  base(),
			new: func() *State {
				s := base()
				s.CodeArtifacts["analysis.py"] = "regression script"
				return s
			},
			wantDiff: &StateDiff{
				SessionID: "sess-1",
				Artifacts: map[string]Artifacts{KeyCodeArtifacts: {"analysis.py": "regression script"}},
			},
		},
		{
			name: "Scalar Fields",
			old:  base(),
			new: func() *State {
				s := base()
				s.Hypothesis = "H"
				s.NeedsRevision = true
				return s
			},
			wantDiff: &StateDiff{
				SessionID: "sess-1",
				Fields:    map[string]any{KeyHypothesis: "H", KeyNeedsRevision: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new())
			if tt.wantDiff == nil {
				if got != nil {
					t.Errorf("Diff() = %+v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Fatalf("Diff() = nil, want %+v", tt.wantDiff)
			}

			if got.SessionID != tt.wantDiff.SessionID {
				t.Errorf("Diff().SessionID = %v, want %v", got.SessionID, tt.wantDiff.SessionID)
			}
			if !reflect.DeepEqual(got.Messages, tt.wantDiff.Messages) {
				t.Errorf("Diff().Messages = %v, want %v", got.Messages, tt.wantDiff.Messages)
			}
			if got.MessagesReplaced != tt.wantDiff.MessagesReplaced {
				t.Errorf("Diff().MessagesReplaced = %v, want %v", got.MessagesReplaced, tt.wantDiff.MessagesReplaced)
			}
			if !reflect.DeepEqual(got.Artifacts, tt.wantDiff.Artifacts) {
				t.Errorf("Diff().Artifacts = %v, want %v", got.Artifacts, tt.wantDiff.Artifacts)
			}
			if !reflect.DeepEqual(got.Fields, tt.wantDiff.Fields) {
				t.Errorf("Diff().Fields = %v, want %v", got.Fields, tt.wantDiff.Fields)
			}
			if !equalPtr(got.NextStep, tt.wantDiff.NextStep) {
				t.Errorf("Diff().NextStep = %v, want %v", got.NextStep, tt.wantDiff.NextStep)
			}
			if !equalPtr(got.Status, tt.wantDiff.Status) {
				t.Errorf("Diff().Status = %v, want %v", got.Status, tt.wantDiff.Status)
			}
		})
	}
}

func TestDiff_StepCountOnly(t *testing.T) {
	old := NewState("sess-1", "")
	cur := old.Clone()
	cur.StepCount++

	diff := Diff(old, cur)
	if diff == nil {
		t.Fatal("Expected diff for a new step, got nil")
	}
	if diff.StepCount != 1 {
		t.Errorf("Diff().StepCount = %d, want 1", diff.StepCount)
	}
}

func TestDiffJSONSerialization(t *testing.T) {
	t.Run("Empty Sections Omitted", func(t *testing.T) {
		s1 := NewState("sess-1", "")
		s2 := s1.Clone()
		s2.Hypothesis = "H"
		diff := Diff(s1, s2)
		if diff == nil {
			t.Fatal("Expected diff, got nil")
		}

		bytes, _ := json.Marshal(diff)
		if strings.Contains(string(bytes), `"artifacts"`) {
			t.Errorf("JSON should not contain 'artifacts' when empty, got: %s", string(bytes))
		}
		if !strings.Contains(string(bytes), `"hypothesis":"H"`) {
			t.Errorf("JSON should contain the changed hypothesis, got: %s", string(bytes))
		}
	})
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
