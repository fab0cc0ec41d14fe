// Package config resolves app configuration, credentials, and launch
// parameters before a run is initialized.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigError reports invalid or missing app, config, language, or range
// inputs. It is always raised before run initialization.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TTSSettings is the app-level speech synthesis block.
type TTSSettings struct {
	Provider string  `yaml:"provider"`
	Model    string  `yaml:"model"`
	Voice    string  `yaml:"voice"`
	Speed    float64 `yaml:"speed"`
	Pitch    float64 `yaml:"pitch"`
}

// ModelPricing is per-million-token pricing for the cost summary.
type ModelPricing struct {
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
}

// AppConfig is the merged view of apps/default_config.yaml and
// apps/<app>/app_config.yaml.
type AppConfig struct {
	Provider      string                  `yaml:"provider"`
	Model         string                  `yaml:"model"`
	Language      string                  `yaml:"language"`
	SectionLength string                  `yaml:"section_length"`
	ContextDir    string                  `yaml:"context_dir"`
	IncludeWorld  bool                    `yaml:"include_world"`
	TTS           TTSSettings             `yaml:"tts"`
	Pricing       map[string]ModelPricing `yaml:"pricing"`
}

func readYAMLMap(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// LoadAppConfig merges apps/default_config.yaml with the per-app
// app_config.yaml. The merge is shallow: a top-level key in the app file
// replaces the default's value wholesale, nested blocks included.
func LoadAppConfig(baseDir, app string) (*AppConfig, error) {
	if app == "" {
		return nil, &ConfigError{Field: "app", Message: "app name is required"}
	}

	merged := map[string]any{}
	defaults, err := readYAMLMap(filepath.Join(baseDir, "apps", "default_config.yaml"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &ConfigError{Field: "default_config", Message: "load defaults", Err: err}
	}
	for k, v := range defaults {
		merged[k] = v
	}

	appPath := filepath.Join(baseDir, "apps", app, "app_config.yaml")
	overrides, err := readYAMLMap(appPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigError{Field: "app", Message: fmt.Sprintf("unknown app %q: %s not found", app, appPath)}
		}
		return nil, &ConfigError{Field: "app_config", Message: "load app config", Err: err}
	}
	for k, v := range overrides {
		merged[k] = v
	}

	// Round-trip through YAML to project the merged map onto the struct.
	raw, err := yaml.Marshal(merged)
	if err != nil {
		return nil, &ConfigError{Field: "app_config", Message: "re-encode merged config", Err: err}
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, &ConfigError{Field: "app_config", Message: "decode merged config", Err: err}
	}
	return &cfg, nil
}

// ResolvePromptsDir returns apps/<app>/prompts when it holds all four
// stage templates, otherwise the shared prompts/app-defaults directory.
func ResolvePromptsDir(baseDir, app string) string {
	appDir := filepath.Join(baseDir, "apps", app, "prompts")
	for _, name := range []string{"10_outline.md", "20_section.md", "21_summarize.md", "30_critic.md"} {
		if _, err := os.Stat(filepath.Join(appDir, name)); err != nil {
			return filepath.Join(baseDir, "prompts", "app-defaults")
		}
	}
	return appDir
}

// ResolveContextDir returns the app's context directory: the configured
// path when set (relative paths resolve against the app directory),
// otherwise apps/<app>/context.
func ResolveContextDir(baseDir, app, configured string) string {
	if configured == "" {
		return filepath.Join(baseDir, "apps", app, "context")
	}
	if filepath.IsAbs(configured) {
		return configured
	}
	return filepath.Join(baseDir, "apps", app, configured)
}
