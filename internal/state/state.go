// Package state holds the per-run inputs and state documents and the
// atomic store that persists them inside the run directory.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	StateFile  = "state.json"
	InputsFile = "inputs.json"
)

// TTSConfig is the resolved text-to-speech configuration snapshot.
type TTSConfig struct {
	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`
	Voice     string `json:"voice,omitempty"`
	Extension string `json:"extension"`
}

// Inputs is the immutable record of launch parameters, written once at
// run initialization.
type Inputs struct {
	App           string     `json:"app"`
	Seed          string     `json:"seed"`
	Beats         *int       `json:"beats"`
	WordCount     *int       `json:"word_count"`
	RunID         string     `json:"run_id"`
	Timestamp     string     `json:"timestamp"`
	ContextDir    string     `json:"context_dir"`
	PromptsDir    string     `json:"prompts_dir"`
	Model         string     `json:"model"`
	Language      string     `json:"language"`
	SectionLength string     `json:"section_length"`
	TTSConfig     *TTSConfig `json:"tts_config,omitempty"`
}

// Beat is one planned narrative unit from the Outline stage.
type Beat struct {
	BeatID  int    `json:"beat_id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// SelectedContext records the context files chosen for this run, basenames
// only so a run can be reproduced against the same context tree.
type SelectedContext struct {
	Location   *string  `json:"location"`
	Characters []string `json:"characters"`
	WorldFiles []string `json:"world_files"`
}

// SectionSummary is the per-section record appended by the Summarize stage.
type SectionSummary struct {
	SectionID         int               `json:"section_id"`
	Summary           string            `json:"summary"`
	ContinuityUpdates map[string]string `json:"continuity_updates"`
}

// Usage is one per-call token accounting record.
type Usage struct {
	Step             string `json:"step"`
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// TTSUsage extends Usage with the request text length, the authoritative
// unit for voice providers that report no tokens.
type TTSUsage struct {
	Usage
	InputCharacters int `json:"input_characters"`
}

// State is the mutable progress record for a run. All mutation goes
// through Update so readers never observe a partially written document.
type State struct {
	App              string            `json:"app"`
	Seed             string            `json:"seed"`
	SelectedContext  SelectedContext   `json:"selected_context"`
	Outline          []Beat            `json:"outline"`
	Sections         []map[string]any  `json:"sections"`
	Summaries        []SectionSummary  `json:"summaries"`
	ContinuityLedger map[string]string `json:"continuity_ledger"`
	TokenUsage       []Usage           `json:"token_usage"`
	TTSTokenUsage    []TTSUsage        `json:"tts_token_usage"`
	TTSConfig        *TTSConfig        `json:"tts_config,omitempty"`
	FinalScriptPath  string            `json:"final_script_path,omitempty"`
	EditorReportPath string            `json:"editor_report_path,omitempty"`
}

// New returns the initial state document for a run.
func New(app, seed string, tts *TTSConfig) *State {
	return &State{
		App:              app,
		Seed:             seed,
		SelectedContext:  SelectedContext{Characters: []string{}, WorldFiles: []string{}},
		Outline:          []Beat{},
		Sections:         []map[string]any{},
		Summaries:        []SectionSummary{},
		ContinuityLedger: map[string]string{},
		TokenUsage:       []Usage{},
		TTSTokenUsage:    []TTSUsage{},
		TTSConfig:        tts,
	}
}

// IOError wraps a state or inputs read/write failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("state %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Load reads and decodes state.json from the run directory.
func Load(runDir string) (*State, error) {
	path := filepath.Join(runDir, StateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, &IOError{Op: "decode", Path: path, Err: err}
	}
	if s.ContinuityLedger == nil {
		s.ContinuityLedger = map[string]string{}
	}
	return &s, nil
}

// LoadInputs reads and decodes inputs.json from the run directory.
func LoadInputs(runDir string) (*Inputs, error) {
	path := filepath.Join(runDir, InputsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	var in Inputs
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, &IOError{Op: "decode", Path: path, Err: err}
	}
	return &in, nil
}

// Update applies mutate to the current state and atomically replaces
// state.json. Readers observe either the prior or the new document.
func Update(runDir string, mutate func(*State) error) (*State, error) {
	s, err := Load(runDir)
	if err != nil {
		return nil, err
	}
	if err := mutate(s); err != nil {
		return nil, err
	}
	if err := Save(runDir, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Save serializes s and atomically renames it over state.json.
func Save(runDir string, s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return &IOError{Op: "encode", Path: filepath.Join(runDir, StateFile), Err: err}
	}
	return WriteFileAtomic(filepath.Join(runDir, StateFile), append(data, '\n'))
}

// SaveInputs writes inputs.json. Called exactly once, at run init.
func SaveInputs(runDir string, in *Inputs) error {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return &IOError{Op: "encode", Path: filepath.Join(runDir, InputsFile), Err: err}
	}
	return WriteFileAtomic(filepath.Join(runDir, InputsFile), append(data, '\n'))
}
