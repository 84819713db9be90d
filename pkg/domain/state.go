package domain

import "time"

// Status defines the lifecycle phase of a session.
type Status string

const (
	StatusActive    Status = "active"    // Steps are being executed
	StatusSuspended Status = "suspended" // Waiting on a human decision
	StatusCompleted Status = "completed" // END reached
)

// Role classifies a message in the conversational trace.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// AuthorHuman marks messages supplied by the person driving the session.
const AuthorHuman = "human"

// Message is one entry of the conversational trace.
type Message struct {
	Role    Role   `json:"role" mapstructure:"role"`
	Author  string `json:"author" mapstructure:"author"`
	Content string `json:"content" mapstructure:"content"`
}

// Artifacts maps an artifact location (file path, report section) to its description.
type Artifacts map[string]string

// Merge adds every entry of other. Repeated keys take the newer description.
func (a Artifacts) Merge(other Artifacts) {
	for k, v := range other {
		a[k] = v
	}
}

// Clone returns an independent copy.
func (a Artifacts) Clone() Artifacts {
	out := make(Artifacts, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// State is the canonical, serializable snapshot of pipeline progress for one session.
// Callers never mutate it directly; the engine applies Updates through Apply.
type State struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`

	// LastActiveStep is the step that most recently wrote state.
	LastActiveStep StepID `json:"last_active_step,omitempty"`
	// LastWorker is the worker that most recently produced output.
	LastWorker StepID `json:"last_worker,omitempty"`
	StepCount  int    `json:"step_count"`

	CurrentInstruction string   `json:"current_instruction,omitempty"`
	NextStepHint       string   `json:"next_step_hint,omitempty"`
	TodoList           []string `json:"todo_list,omitempty"`
	CompletedTasks     []string `json:"completed_tasks,omitempty"`
	Hypothesis         string   `json:"hypothesis,omitempty"`

	SearchArtifacts Artifacts `json:"search_artifacts"`
	VizArtifacts    Artifacts `json:"viz_artifacts"`
	CodeArtifacts   Artifacts `json:"code_artifacts"`
	ReportArtifacts Artifacts `json:"report_artifacts"`

	QualityFeedback string `json:"quality_feedback,omitempty"`
	NeedsRevision   bool   `json:"needs_revision"`
	RevisionCount   int    `json:"revision_count"`

	PendingDecision bool   `json:"pending_decision"`
	HumanChoice     string `json:"human_choice,omitempty"`
	SuspensionID    string `json:"suspension_id,omitempty"`

	// PlanningFailures counts consecutive planning rounds without a usable decision.
	PlanningFailures int `json:"planning_failures"`

	// NextStep is the step the engine runs next, or the step it waits on while suspended.
	NextStep StepID `json:"next_step"`
	Status   Status `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState creates the record for a fresh session. The input becomes the first message;
// every other field starts at its zero value.
func NewState(sessionID, input string) *State {
	now := time.Now().UTC()
	s := &State{
		SessionID:       sessionID,
		Messages:        []Message{},
		SearchArtifacts: Artifacts{},
		VizArtifacts:    Artifacts{},
		CodeArtifacts:   Artifacts{},
		ReportArtifacts: Artifacts{},
		Status:          StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if input != "" {
		s.Messages = append(s.Messages, Message{Role: RoleUser, Author: AuthorHuman, Content: input})
	}
	return s
}

// Suspended reports whether the engine's declared next step is a human decision it is waiting on.
func (s *State) Suspended() bool {
	return s.PendingDecision && s.NextStep.IsHuman()
}

// Completed reports whether the session reached END.
func (s *State) Completed() bool {
	return s.Status == StatusCompleted
}

// ArtifactCount returns the total number of artifact keys across all maps.
func (s *State) ArtifactCount() int {
	return len(s.SearchArtifacts) + len(s.VizArtifacts) + len(s.CodeArtifacts) + len(s.ReportArtifacts)
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	next := *s
	next.Messages = append([]Message(nil), s.Messages...)
	if next.Messages == nil {
		next.Messages = []Message{}
	}
	next.TodoList = append([]string(nil), s.TodoList...)
	next.CompletedTasks = append([]string(nil), s.CompletedTasks...)
	next.SearchArtifacts = s.SearchArtifacts.Clone()
	next.VizArtifacts = s.VizArtifacts.Clone()
	next.CodeArtifacts = s.CodeArtifacts.Clone()
	next.ReportArtifacts = s.ReportArtifacts.Clone()
	return &next
}

// Normalize restores empty collections after deserialization dropped them.
func (s *State) Normalize() *State {
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	if s.SearchArtifacts == nil {
		s.SearchArtifacts = Artifacts{}
	}
	if s.VizArtifacts == nil {
		s.VizArtifacts = Artifacts{}
	}
	if s.CodeArtifacts == nil {
		s.CodeArtifacts = Artifacts{}
	}
	if s.ReportArtifacts == nil {
		s.ReportArtifacts = Artifacts{}
	}
	return s
}
