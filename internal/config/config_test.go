package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupApp(t *testing.T, defaults, appCfg string) string {
	t.Helper()
	base := t.TempDir()
	if defaults != "" {
		writeFile(t, filepath.Join(base, "apps", "default_config.yaml"), defaults)
	}
	writeFile(t, filepath.Join(base, "apps", "nightfall", "app_config.yaml"), appCfg)
	return base
}

func TestLoadAppConfigShallowMerge(t *testing.T) {
	base := setupApp(t,
		"model: claude-sonnet-4-5-20250929\nlanguage: en\nsection_length: \"700-900\"\ntts:\n  provider: elevenlabs\n  voice: default-voice\n",
		"language: de\ntts:\n  provider: google\n",
	)

	cfg, err := LoadAppConfig(base, "nightfall")
	require.NoError(t, err)
	// Untouched top-level keys come from defaults.
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Model)
	assert.Equal(t, "700-900", cfg.SectionLength)
	// Overridden top-level keys replace wholesale, so the default voice
	// inside the tts block does not survive.
	assert.Equal(t, "de", cfg.Language)
	assert.Equal(t, "google", cfg.TTS.Provider)
	assert.Empty(t, cfg.TTS.Voice)
}

func TestLoadAppConfigUnknownApp(t *testing.T) {
	base := setupApp(t, "model: m\n", "language: en\n")
	_, err := LoadAppConfig(base, "nope")
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "unknown app")
}

func TestLoadAppConfigWithoutDefaultsFile(t *testing.T) {
	base := setupApp(t, "", "model: solo-model\n")
	cfg, err := LoadAppConfig(base, "nightfall")
	require.NoError(t, err)
	assert.Equal(t, "solo-model", cfg.Model)
}

func TestResolvePromptsDirFallsBack(t *testing.T) {
	base := t.TempDir()
	assert.Equal(t, filepath.Join(base, "prompts", "app-defaults"), ResolvePromptsDir(base, "nightfall"))

	for _, name := range []string{"10_outline.md", "20_section.md", "21_summarize.md", "30_critic.md"} {
		writeFile(t, filepath.Join(base, "apps", "nightfall", "prompts", name), "x")
	}
	assert.Equal(t, filepath.Join(base, "apps", "nightfall", "prompts"), ResolvePromptsDir(base, "nightfall"))
}

func TestResolvePromptsDirRequiresAllFour(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "apps", "nightfall", "prompts", "10_outline.md"), "x")
	assert.Equal(t, filepath.Join(base, "prompts", "app-defaults"), ResolvePromptsDir(base, "nightfall"))
}

func TestLoadCreds(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "config", "creds.json"),
		`{"STORYTELL_TEST_KEY_A": "from-file", "STORYTELL_TEST_KEY_B": "ignored"}`)
	t.Setenv("STORYTELL_TEST_KEY_B", "from-env")
	os.Unsetenv("STORYTELL_TEST_KEY_A")
	t.Cleanup(func() { os.Unsetenv("STORYTELL_TEST_KEY_A") })

	exported, err := LoadCreds(base)
	require.NoError(t, err)
	assert.Equal(t, []string{"STORYTELL_TEST_KEY_A"}, exported)
	assert.Equal(t, "from-file", os.Getenv("STORYTELL_TEST_KEY_A"))
	assert.Equal(t, "from-env", os.Getenv("STORYTELL_TEST_KEY_B"))
}

func TestLoadCredsMissingFileIsFine(t *testing.T) {
	exported, err := LoadCreds(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, exported)
}
