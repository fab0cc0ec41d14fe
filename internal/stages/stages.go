// Package stages contains the four pipeline stage executors: Outline,
// Section, Summarize, and Critic. Each is a pure orchestration of the
// prompt renderer, provider, schema validator, and state store; any
// step-level error is fatal to the run and nothing is partially
// committed.
package stages

import (
	"fmt"
	"path/filepath"

	"github.com/ayy-em/llm-storytell-sub000/internal/contextloader"
	"github.com/ayy-em/llm-storytell-sub000/internal/provider"
	"github.com/ayy-em/llm-storytell-sub000/internal/rundir"
	"github.com/ayy-em/llm-storytell-sub000/internal/schema"
	"github.com/ayy-em/llm-storytell-sub000/internal/state"
)

// Stage temperatures and timeouts.
const (
	draftTemperature     = 0.7
	summarizeTemperature = 0.5
	criticTimeout        = 300 // seconds

	OutlineArtifact      = "10_outline.json"
	FinalScriptArtifact  = "final_script.md"
	EditorReportArtifact = "editor_report.json"
)

// SectionArtifact returns the artifact basename for a 1-based section ID.
func SectionArtifact(sectionID int) string {
	return fmt.Sprintf("20_section_%02d.md", sectionID)
}

// Env bundles what every stage needs. The orchestrator builds one per run
// and stages reload state from disk on entry, so no in-memory state is
// shared between them.
type Env struct {
	RunDir    string
	Inputs    *state.Inputs
	Selection *contextloader.Selection
	Gen       provider.TextGenerator
	Validator *schema.Validator
	Log       *rundir.Logger
}

func (e *Env) artifactPath(name string) string {
	return filepath.Join(e.RunDir, rundir.ArtifactsDir, name)
}

func (e *Env) templatePath(name string) string {
	return filepath.Join(e.Inputs.PromptsDir, name)
}

// StepError wraps a stage failure with the stage name.
type StepError struct {
	Stage   string
	Message string
	Err     error
}

func (e *StepError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *StepError) Unwrap() error { return e.Err }

func stepErr(stage, message string, err error) *StepError {
	return &StepError{Stage: stage, Message: message, Err: err}
}

func stepErrf(stage string, format string, args ...any) *StepError {
	return &StepError{Stage: stage, Message: fmt.Sprintf(format, args...)}
}

func usageFromResult(step string, res *provider.TextResult) state.Usage {
	return state.Usage{
		Step:             step,
		Provider:         res.Provider,
		Model:            res.Model,
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		TotalTokens:      res.TotalTokens,
	}
}

func (e *Env) logUsage(u state.Usage) {
	e.Log.Info("token usage for %s: prompt=%d completion=%d total=%d (provider=%s model=%s)",
		u.Step, u.PromptTokens, u.CompletionTokens, u.TotalTokens, u.Provider, u.Model)
}
