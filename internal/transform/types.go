package transform

import (
	"fmt"
	"time"
)

// StepType discriminates the two kinds of transformation steps.
type StepType string

const (
	StepFindReplace     StepType = "find_replace"
	StepPromptTransform StepType = "prompt_transform"
)

// Status is the lifecycle state of a run or step-run.
// running is the only non-terminal state; completed and failed are final.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// FindReplaceStep replaces occurrences of FindText with ReplaceText.
// With UseRegex set, FindText is compiled as a regular expression and
// all matches are replaced.
type FindReplaceStep struct {
	FindText    string `json:"find_text"`
	ReplaceText string `json:"replace_text"`
	UseRegex    bool   `json:"use_regex"`
}

// PromptTransformStep sends the input through an LLM completion.
// Both prompt templates may contain the literal token {{input}}, which is
// replaced with the step's input in a single pass before dispatch.
type PromptTransformStep struct {
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
}

// Step is one stage of a Transformation. Exactly one of the variant
// pointers matching Type is set; the executor rejects anything else.
type Step struct {
	ID              string               `json:"id"`
	Type            StepType             `json:"type"`
	FindReplace     *FindReplaceStep     `json:"find_replace,omitempty"`
	PromptTransform *PromptTransformStep `json:"prompt_transform,omitempty"`
}

// Validate checks that the step carries exactly the variant its type names
// and that the variant is usable.
func (s Step) Validate() error {
	switch s.Type {
	case StepFindReplace:
		if s.FindReplace == nil {
			return fmt.Errorf("step %s: missing find_replace configuration", s.ID)
		}
		if s.PromptTransform != nil {
			return fmt.Errorf("step %s: find_replace step carries prompt_transform configuration", s.ID)
		}
		if s.FindReplace.FindText == "" {
			return fmt.Errorf("step %s: find_text must not be empty", s.ID)
		}
	case StepPromptTransform:
		if s.PromptTransform == nil {
			return fmt.Errorf("step %s: missing prompt_transform configuration", s.ID)
		}
		if s.FindReplace != nil {
			return fmt.Errorf("step %s: prompt_transform step carries find_replace configuration", s.ID)
		}
		if s.PromptTransform.Provider == "" || s.PromptTransform.Model == "" {
			return fmt.Errorf("step %s: provider and model must be set", s.ID)
		}
	default:
		return fmt.Errorf("step %s: unsupported step type %q", s.ID, s.Type)
	}
	return nil
}

// Transformation is a named, ordered pipeline definition. Step order is
// significant and fixed for the duration of a run.
type Transformation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Steps       []Step    `json:"steps"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StepRun records one step's execution within a run.
type StepRun struct {
	ID          string     `json:"id"`
	StepID      string     `json:"step_id"`
	Input       string     `json:"input"`
	Status      Status     `json:"status"`
	Output      string     `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Run is one execution of a Transformation against a snapshotted input.
// RecordingID is nil for ad hoc text runs. On completion Output equals the
// last step-run's output; on failure Error carries the failing step's error.
type Run struct {
	ID               string     `json:"id"`
	TransformationID string     `json:"transformation_id"`
	RecordingID      *string    `json:"recording_id,omitempty"`
	Input            string     `json:"input"`
	Status           Status     `json:"status"`
	Output           string     `json:"output,omitempty"`
	Error            string     `json:"error,omitempty"`
	StepRuns         []StepRun  `json:"step_runs"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// Recording is the slice of a stored recording the pipeline needs:
// its id and the transcribed text used as run input.
type Recording struct {
	ID              string
	TranscribedText string
}
