// Package rundir creates and locates per-run filesystem workspaces.
//
// A run directory is materialized by writing everything into a staging
// directory next to the final path and renaming it into place, so a
// half-initialized run is never observable under runs/.
package rundir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ayy-em/llm-storytell-sub000/internal/state"
)

const (
	RunsDir      = "runs"
	ArtifactsDir = "artifacts"
	LogFile      = "run.log"

	initAttempts       = 8
	initInitialBackoff = 50 * time.Millisecond
)

// InitError wraps filesystem contention, permission failures, and
// duplicate run IDs during run initialization.
type InitError struct {
	RunID string
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize run %s: %v", e.RunID, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// Params carries everything needed to initialize a run workspace.
type Params struct {
	App           string
	Seed          string
	ContextDir    string
	PromptsDir    string
	Beats         *int
	WordCount     *int
	RunID         string // optional; generated when empty
	BaseDir       string
	Model         string
	Language      string
	SectionLength string
	TTSConfig     *state.TTSConfig
}

// GenerateRunID returns the default run identifier for now (UTC).
func GenerateRunID(now time.Time) string {
	return "run-" + now.UTC().Format("20060102-150405")
}

// Path returns the final directory for a run ID under baseDir.
func Path(baseDir, runID string) string {
	return filepath.Join(baseDir, RunsDir, runID)
}

// Initialize creates runs/<run_id>/ with inputs.json, the initial
// state.json, run.log, and artifacts/, and returns the run directory path.
// The final path appears only via rename; on any failure the staging
// directory is removed and the final path is never created.
func Initialize(p Params) (string, error) {
	runID := p.RunID
	if runID == "" {
		runID = GenerateRunID(time.Now())
	}

	finalDir := Path(p.BaseDir, runID)
	if _, err := os.Stat(finalDir); err == nil {
		return "", &InitError{RunID: runID, Err: fmt.Errorf("run directory %s already exists", finalDir)}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", &InitError{RunID: runID, Err: err}
	}

	runsDir := filepath.Join(p.BaseDir, RunsDir)
	if err := withFSRetry(func() error { return os.MkdirAll(runsDir, 0o755) }); err != nil {
		return "", &InitError{RunID: runID, Err: err}
	}

	staging, err := os.MkdirTemp(runsDir, "."+runID+"-staging-")
	if err != nil {
		return "", &InitError{RunID: runID, Err: err}
	}
	cleanup := func() { os.RemoveAll(staging) }

	if err := populateStaging(staging, runID, p); err != nil {
		cleanup()
		return "", &InitError{RunID: runID, Err: err}
	}

	if err := withFSRetry(func() error { return os.Rename(staging, finalDir) }); err != nil {
		cleanup()
		return "", &InitError{RunID: runID, Err: err}
	}
	return finalDir, nil
}

func populateStaging(staging, runID string, p Params) error {
	if err := os.Mkdir(filepath.Join(staging, ArtifactsDir), 0o755); err != nil {
		return err
	}

	inputs := &state.Inputs{
		App:           p.App,
		Seed:          p.Seed,
		Beats:         p.Beats,
		WordCount:     p.WordCount,
		RunID:         runID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		ContextDir:    filepath.ToSlash(p.ContextDir),
		PromptsDir:    filepath.ToSlash(p.PromptsDir),
		Model:         p.Model,
		Language:      p.Language,
		SectionLength: p.SectionLength,
		TTSConfig:     p.TTSConfig,
	}
	if err := state.SaveInputs(staging, inputs); err != nil {
		return err
	}
	if err := state.Save(staging, state.New(p.App, p.Seed, p.TTSConfig)); err != nil {
		return err
	}

	log, err := OpenLogger(staging)
	if err != nil {
		return err
	}
	defer log.Close()
	log.Info("run %s initialized (app=%s, model=%s, language=%s)", runID, p.App, p.Model, p.Language)
	if p.Beats != nil {
		log.Info("requested beats: %d", *p.Beats)
	}
	if p.WordCount != nil {
		log.Info("requested word count: %d", *p.WordCount)
	}
	return nil
}

// withFSRetry retries fn with bounded exponential backoff on permission
// style errors, which transiently occur on some filesystems (virus
// scanners, network mounts) during directory churn.
func withFSRetry(fn func() error) error {
	backoff := initInitialBackoff
	var lastErr error
	for attempt := 0; attempt < initAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, fs.ErrPermission) {
			return lastErr
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return lastErr
}
