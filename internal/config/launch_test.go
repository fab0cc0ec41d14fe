package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseOptions() Options {
	return Options{
		App:     "nightfall",
		Seed:    "A lighthouse keeper hears a voice in the fog.",
		BaseDir: "/tmp/storytell",
	}
}

func TestResolveBeatsOnly(t *testing.T) {
	opts := baseOptions()
	opts.Beats = 5
	launch, err := Resolve(opts, &AppConfig{Model: "m", Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, 5, launch.Beats)
	assert.Nil(t, launch.WordCount)
	assert.Equal(t, "700-900", launch.SectionLength)
	assert.Nil(t, launch.TTS)
}

func TestResolveWordCountDerivesBeats(t *testing.T) {
	opts := baseOptions()
	opts.WordCount = 5000
	launch, err := Resolve(opts, &AppConfig{SectionLength: "700-900"})
	require.NoError(t, err)
	// midpoint 800 -> round(5000/800) = 6 beats, per = 833.3
	assert.Equal(t, 6, launch.Beats)
	require.NotNil(t, launch.WordCount)
	assert.Equal(t, 5000, *launch.WordCount)
	assert.Equal(t, "666-1000", launch.SectionLength)
}

func TestResolveWordCountClampsBeats(t *testing.T) {
	opts := baseOptions()
	opts.WordCount = 14900
	launch, err := Resolve(opts, &AppConfig{SectionLength: "200"})
	require.NoError(t, err)
	assert.Equal(t, MaxBeats, launch.Beats)
}

func TestResolveBothValidatesQuotient(t *testing.T) {
	opts := baseOptions()
	opts.Beats = 2
	opts.WordCount = 5000
	_, err := Resolve(opts, &AppConfig{})
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "word_count/beats")

	opts.Beats = 6
	launch, err := Resolve(opts, &AppConfig{SectionLength: "100-200"})
	require.NoError(t, err)
	// The derived per-section range wins over the configured one.
	assert.Equal(t, "666-1000", launch.SectionLength)
}

func TestResolveRejectsOutOfRangeInputs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero beats and words", func(o *Options) {}},
		{"beats too high", func(o *Options) { o.Beats = 21 }},
		{"word count at floor", func(o *Options) { o.WordCount = 100 }},
		{"word count at ceiling", func(o *Options) { o.WordCount = 15000 }},
		{"missing seed", func(o *Options) { o.Beats = 3; o.Seed = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := baseOptions()
			tc.mutate(&opts)
			_, err := Resolve(opts, &AppConfig{})
			require.Error(t, err)
			var ce *ConfigError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestResolveValidatesLanguage(t *testing.T) {
	opts := baseOptions()
	opts.Beats = 3
	opts.Language = "english"
	_, err := Resolve(opts, &AppConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ISO 639-1")

	opts.Language = ""
	launch, err := Resolve(opts, &AppConfig{Language: "fr"})
	require.NoError(t, err)
	assert.Equal(t, "fr", launch.Language)
}

func TestResolveTTSConfig(t *testing.T) {
	opts := baseOptions()
	opts.Beats = 3
	opts.TTSEnabled = true
	opts.TTSVoice = "cli-voice"
	launch, err := Resolve(opts, &AppConfig{TTS: TTSSettings{Provider: "google", Voice: "cfg-voice", Model: "cfg-model"}})
	require.NoError(t, err)
	require.NotNil(t, launch.TTS)
	assert.Equal(t, "google", launch.TTS.Provider)
	assert.Equal(t, "cli-voice", launch.TTS.Voice)
	assert.Equal(t, "cfg-model", launch.TTS.Model)
	assert.Equal(t, "mp3", launch.TTS.Extension)
}

func TestSectionLengthMidpoint(t *testing.T) {
	mid, err := sectionLengthMidpoint("700-900")
	require.NoError(t, err)
	assert.Equal(t, 800.0, mid)

	mid, err = sectionLengthMidpoint("250")
	require.NoError(t, err)
	assert.Equal(t, 250.0, mid)

	for _, bad := range []string{"", "abc", "900-700", "-5", "0"} {
		_, err := sectionLengthMidpoint(bad)
		assert.Error(t, err, bad)
	}
}
