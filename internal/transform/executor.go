package transform

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/voxkit/dict-engine/internal/completion"
	"github.com/voxkit/dict-engine/internal/metrics"
)

// inputToken is the literal placeholder replaced in prompt templates.
const inputToken = "{{input}}"

// Executor runs a single transformation step against an input string.
// Step errors are user-displayable messages; the executor makes exactly
// one attempt per step and never retries.
type Executor struct {
	providers *completion.Registry
	apiKeys   map[string]string // provider name -> API key
}

// NewExecutor creates a step executor. apiKeys maps provider names to the
// caller-configured API keys handed to the completion gateway.
func NewExecutor(providers *completion.Registry, apiKeys map[string]string) *Executor {
	return &Executor{providers: providers, apiKeys: apiKeys}
}

// Execute runs one step over input and returns its output. Errors are
// step-level failures (bad regex, unknown provider, completion failure)
// suitable for recording on the step-run.
func (e *Executor) Execute(ctx context.Context, step Step, input string) (string, error) {
	switch step.Type {
	case StepFindReplace:
		if step.FindReplace == nil {
			return "", fmt.Errorf("step %s: missing find_replace configuration", step.ID)
		}
		return executeFindReplace(step.FindReplace, input)
	case StepPromptTransform:
		if step.PromptTransform == nil {
			return "", fmt.Errorf("step %s: missing prompt_transform configuration", step.ID)
		}
		return e.executePromptTransform(ctx, step.PromptTransform, input)
	default:
		return "", fmt.Errorf("unsupported step type %q", step.Type)
	}
}

// executeFindReplace performs a global literal or regex replacement.
// An invalid pattern aborts the step with no partial substitution.
func executeFindReplace(step *FindReplaceStep, input string) (string, error) {
	if !step.UseRegex {
		return strings.ReplaceAll(input, step.FindText, step.ReplaceText), nil
	}
	re, err := regexp.Compile(step.FindText)
	if err != nil {
		return "", fmt.Errorf("invalid regex pattern %q: %v", step.FindText, err)
	}
	return re.ReplaceAllString(input, step.ReplaceText), nil
}

// executePromptTransform substitutes {{input}} into both templates (single
// pass, not recursive) and dispatches to the step's completion provider.
// The completion text is returned verbatim.
func (e *Executor) executePromptTransform(ctx context.Context, step *PromptTransformStep, input string) (string, error) {
	provider, ok := e.providers.Get(step.Provider)
	if !ok {
		return "", fmt.Errorf("unsupported completion provider %q", step.Provider)
	}

	out, err := provider.Complete(ctx, completion.Request{
		APIKey:       e.apiKeys[step.Provider],
		Model:        step.Model,
		SystemPrompt: strings.ReplaceAll(step.SystemPrompt, inputToken, input),
		UserPrompt:   strings.ReplaceAll(step.UserPrompt, inputToken, input),
	})
	if err != nil {
		outcome := "error"
		var cerr *completion.Error
		if errors.As(err, &cerr) {
			outcome = string(cerr.Kind)
		}
		metrics.CompletionRequestsTotal.WithLabelValues(step.Provider, outcome).Inc()
		return "", err
	}
	metrics.CompletionRequestsTotal.WithLabelValues(step.Provider, "ok").Inc()
	return out, nil
}
