// Package provider defines the vendor-neutral text-generation and speech
// synthesis interfaces the pipeline drives, plus the shared retry policy.
// The orchestrator never touches a vendor SDK directly; concrete adapters
// in this package bind SDKs behind the two interfaces.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TextResult is the outcome of one text-generation call.
type TextResult struct {
	Content          string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Raw              any
}

// SpeechResult is the outcome of one synthesis call. Providers that
// report no tokens leave the counts zero; InputCharacters is always set
// by the retry wrapper.
type SpeechResult struct {
	Audio            []byte
	Provider         string
	Model            string
	Voice            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	InputCharacters  int
	Raw              any
}

// GenerateOptions carries per-call generation knobs. Vendor-specific
// parameters ride in Extras.
type GenerateOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Extras      map[string]any
}

// SpeakOptions carries per-call synthesis knobs.
type SpeakOptions struct {
	Model  string
	Voice  string
	Extras map[string]any
}

// TextGenerator produces text from a prompt. step names the pipeline
// step for logging and usage attribution.
type TextGenerator interface {
	Name() string
	Generate(ctx context.Context, prompt, step string, opts GenerateOptions) (*TextResult, error)
}

// SpeechSynthesizer produces audio from text.
type SpeechSynthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string, opts SpeakOptions) (*SpeechResult, error)
}

// Error is the terminal provider failure, raised after retries are
// exhausted or for conditions retrying cannot fix.
type Error struct {
	Provider string
	Step     string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s failed (%d attempts, step %s): %v", e.Provider, e.Attempts, e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ModelNotFoundError marks a model the vendor does not recognize. It is
// never retried; the sentinel lets adapters classify vendor responses
// without string matching at every call site.
type ModelNotFoundError struct {
	Model string
	Err   error
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q not recognized by provider: %v", e.Model, e.Err)
}

func (e *ModelNotFoundError) Unwrap() error { return e.Err }

// modelNotFoundPatterns match vendor messages that indicate an unknown
// model identifier.
var modelNotFoundPatterns = []string{
	"model not found",
	"does not exist",
	"unknown model",
	"invalid model",
	"not_found_error",
}

// IsModelNotFoundMessage reports whether a vendor error message looks
// like a model-not-recognized condition.
func IsModelNotFoundMessage(msg string) bool {
	lower := strings.ToLower(msg)
	if !strings.Contains(lower, "model") {
		return false
	}
	for _, p := range modelNotFoundPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Content errors surfaced when a vendor response is structurally present
// but unusable.
var (
	ErrMissingContent = fmt.Errorf("assistant response has no content")
	ErrEmptyContent   = fmt.Errorf("assistant response content is empty")
	ErrEmptyAudio     = fmt.Errorf("synthesis returned no audio")
)

// DeriveTotals fills TotalTokens from the components when the vendor
// omitted it.
func DeriveTotals(r *TextResult) {
	if r.TotalTokens == 0 && (r.PromptTokens > 0 || r.CompletionTokens > 0) {
		r.TotalTokens = r.PromptTokens + r.CompletionTokens
	}
}
