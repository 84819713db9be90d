package domain

// StateDiff represents the changes between two snapshots of a session.
// It is designed to be serialized to JSON for incremental updates on the client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`
	StepCount int    `json:"step_count"`

	NextStep       *StepID `json:"next_step,omitempty"`
	Status         *Status `json:"status,omitempty"`
	LastActiveStep *StepID `json:"last_active_step,omitempty"`

	// Messages holds messages appended since the old snapshot. When MessagesReplaced is set,
	// the trace was compressed and Messages is the full new trace.
	Messages         []Message `json:"messages,omitempty"`
	MessagesReplaced bool      `json:"messages_replaced,omitempty"`

	// Artifacts holds added or changed entries, grouped by artifact map name.
	Artifacts map[string]Artifacts `json:"artifacts,omitempty"`

	// Fields holds changed scalar fields keyed by their json name.
	Fields map[string]any `json:"fields,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// It returns nil when nothing changed, including the step counter.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{
		SessionID: newState.SessionID,
		StepCount: newState.StepCount,
	}

	if oldState == nil || oldState.NextStep != newState.NextStep {
		diff.NextStep = &newState.NextStep
	}
	if oldState == nil || oldState.Status != newState.Status {
		diff.Status = &newState.Status
	}
	if oldState == nil || oldState.LastActiveStep != newState.LastActiveStep {
		diff.LastActiveStep = &newState.LastActiveStep
	}

	diff.Messages, diff.MessagesReplaced = diffMessages(oldState, newState)
	diff.Artifacts = diffArtifacts(oldState, newState)
	diff.Fields = diffFields(oldState, newState)

	if diff.IsEmpty() && oldState != nil && oldState.StepCount == newState.StepCount {
		return nil
	}
	return diff
}

// diffMessages assumes append-only behavior unless the trace shrank or its prefix changed.
func diffMessages(old, cur *State) ([]Message, bool) {
	if old == nil {
		if len(cur.Messages) == 0 {
			return nil, false
		}
		return cur.Messages, false
	}
	if len(cur.Messages) < len(old.Messages) {
		return cur.Messages, true
	}
	for i := range old.Messages {
		if old.Messages[i] != cur.Messages[i] {
			return cur.Messages, true
		}
	}
	if len(cur.Messages) == len(old.Messages) {
		return nil, false
	}
	return cur.Messages[len(old.Messages):], false
}

func diffArtifacts(old, cur *State) map[string]Artifacts {
	pairs := []struct {
		name     string
		old, cur Artifacts
	}{
		{KeySearchArtifacts, nil, cur.SearchArtifacts},
		{KeyVizArtifacts, nil, cur.VizArtifacts},
		{KeyCodeArtifacts, nil, cur.CodeArtifacts},
		{KeyReportArtifacts, nil, cur.ReportArtifacts},
	}
	if old != nil {
		pairs[0].old = old.SearchArtifacts
		pairs[1].old = old.VizArtifacts
		pairs[2].old = old.CodeArtifacts
		pairs[3].old = old.ReportArtifacts
	}

	out := make(map[string]Artifacts)
	for _, p := range pairs {
		delta := Artifacts{}
		for k, v := range p.cur {
			if prev, ok := p.old[k]; !ok || prev != v {
				delta[k] = v
			}
		}
		if len(delta) > 0 {
			out[p.name] = delta
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func diffFields(old, cur *State) map[string]any {
	if old == nil {
		old = &State{}
	}
	fields := make(map[string]any)
	if old.CurrentInstruction != cur.CurrentInstruction {
		fields[KeyCurrentInstruction] = cur.CurrentInstruction
	}
	if old.NextStepHint != cur.NextStepHint {
		fields[KeyNextStepHint] = cur.NextStepHint
	}
	if old.Hypothesis != cur.Hypothesis {
		fields[KeyHypothesis] = cur.Hypothesis
	}
	if old.QualityFeedback != cur.QualityFeedback {
		fields[KeyQualityFeedback] = cur.QualityFeedback
	}
	if old.NeedsRevision != cur.NeedsRevision {
		fields[KeyNeedsRevision] = cur.NeedsRevision
	}
	if old.RevisionCount != cur.RevisionCount {
		fields["revision_count"] = cur.RevisionCount
	}
	if old.PendingDecision != cur.PendingDecision {
		fields["pending_decision"] = cur.PendingDecision
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.NextStep == nil &&
		d.Status == nil &&
		d.LastActiveStep == nil &&
		len(d.Messages) == 0 &&
		!d.MessagesReplaced &&
		len(d.Artifacts) == 0 &&
		len(d.Fields) == 0
}
