package config

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ayy-em/llm-storytell-sub000/internal/provider"
	"github.com/ayy-em/llm-storytell-sub000/internal/state"
)

// Launch parameter bounds. Beats are inclusive, word counts and the
// per-section quotient exclusive.
const (
	MinBeats      = 1
	MaxBeats      = 20
	MinWordCount  = 100
	MaxWordCount  = 15000
	MinPerSection = 100
	MaxPerSection = 1000

	defaultSectionLength = "700-900"
	defaultLanguage      = "en"
	defaultTextProvider  = "anthropic"
	defaultTTSProvider   = "elevenlabs"
)

var languageRe = regexp.MustCompile(`^[a-z]{2}$`)

// Options are the raw launch parameters from the CLI or wizard. Zero
// values mean "not provided".
type Options struct {
	App           string
	Seed          string
	Beats         int
	WordCount     int
	SectionLength string
	RunID         string
	Model         string
	Language      string
	TTSEnabled    bool
	TTSProvider   string
	TTSModel      string
	TTSVoice      string
	BaseDir       string
}

// Launch is the fully resolved, validated launch plan.
type Launch struct {
	App           string
	Seed          string
	Beats         int
	WordCount     *int
	SectionLength string
	RunID         string
	Provider      string
	Model         string
	Language      string
	ContextDir    string
	PromptsDir    string
	IncludeWorld  bool
	BaseDir       string
	TTS           *state.TTSConfig
	TTSSpeed      float64
	TTSPitch      float64
	Pricing       map[string]ModelPricing
}

// sectionLengthMidpoint parses "lo-hi" or a bare number and returns the
// midpoint.
func sectionLengthMidpoint(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		l, err1 := strconv.Atoi(strings.TrimSpace(lo))
		h, err2 := strconv.Atoi(strings.TrimSpace(hi))
		if err1 != nil || err2 != nil || l <= 0 || h < l {
			return 0, fmt.Errorf("invalid section length range %q", s)
		}
		return float64(l+h) / 2, nil
	}
	mid, err := strconv.Atoi(s)
	if err != nil || mid <= 0 {
		return 0, fmt.Errorf("invalid section length %q", s)
	}
	return float64(mid), nil
}

// deriveSectionLength computes floor(0.8*wc/beats)-floor(1.2*wc/beats)
// in integer arithmetic to dodge float boundary artifacts.
func deriveSectionLength(wordCount, beats int) string {
	return fmt.Sprintf("%d-%d", 4*wordCount/(5*beats), 6*wordCount/(5*beats))
}

func clampBeats(n int) int {
	if n < MinBeats {
		return MinBeats
	}
	if n > MaxBeats {
		return MaxBeats
	}
	return n
}

// Resolve merges CLI options with the app config and validates the
// result. All rejections happen here, before any run directory exists.
func Resolve(opts Options, cfg *AppConfig) (*Launch, error) {
	if opts.Seed == "" {
		return nil, &ConfigError{Field: "seed", Message: "seed is required"}
	}
	if opts.Beats == 0 && opts.WordCount == 0 {
		return nil, &ConfigError{Field: "beats", Message: "one of beats or word-count is required"}
	}
	if opts.Beats != 0 && (opts.Beats < MinBeats || opts.Beats > MaxBeats) {
		return nil, &ConfigError{Field: "beats", Message: fmt.Sprintf("beats must be in [%d, %d], got %d", MinBeats, MaxBeats, opts.Beats)}
	}
	if opts.WordCount != 0 && (opts.WordCount <= MinWordCount || opts.WordCount >= MaxWordCount) {
		return nil, &ConfigError{Field: "word_count", Message: fmt.Sprintf("word count must be between %d and %d exclusive, got %d", MinWordCount, MaxWordCount, opts.WordCount)}
	}

	language := firstNonEmpty(opts.Language, cfg.Language, defaultLanguage)
	if !languageRe.MatchString(language) {
		return nil, &ConfigError{Field: "language", Message: fmt.Sprintf("language must be a two-letter ISO 639-1 code, got %q", language)}
	}

	sectionLength := firstNonEmpty(opts.SectionLength, cfg.SectionLength, defaultSectionLength)

	beats := opts.Beats
	var wordCount *int
	switch {
	case opts.Beats != 0 && opts.WordCount != 0:
		per := float64(opts.WordCount) / float64(opts.Beats)
		if per <= MinPerSection || per >= MaxPerSection {
			return nil, &ConfigError{
				Field:   "word_count",
				Message: fmt.Sprintf("word_count/beats must be between %d and %d exclusive, got %.1f", MinPerSection, MaxPerSection, per),
			}
		}
		wc := opts.WordCount
		wordCount = &wc
		sectionLength = deriveSectionLength(wc, beats)
	case opts.WordCount != 0:
		mid, err := sectionLengthMidpoint(sectionLength)
		if err != nil {
			return nil, &ConfigError{Field: "section_length", Message: err.Error()}
		}
		beats = clampBeats(int(math.Round(float64(opts.WordCount) / mid)))
		wc := opts.WordCount
		wordCount = &wc
		sectionLength = deriveSectionLength(wc, beats)
	default:
		if _, err := sectionLengthMidpoint(sectionLength); err != nil {
			return nil, &ConfigError{Field: "section_length", Message: err.Error()}
		}
	}

	launch := &Launch{
		App:           opts.App,
		Seed:          opts.Seed,
		Beats:         beats,
		WordCount:     wordCount,
		SectionLength: sectionLength,
		RunID:         opts.RunID,
		Provider:      firstNonEmpty(cfg.Provider, defaultTextProvider),
		Model:         firstNonEmpty(opts.Model, cfg.Model),
		Language:      language,
		ContextDir:    ResolveContextDir(opts.BaseDir, opts.App, cfg.ContextDir),
		PromptsDir:    ResolvePromptsDir(opts.BaseDir, opts.App),
		IncludeWorld:  cfg.IncludeWorld,
		BaseDir:       opts.BaseDir,
		TTSSpeed:      cfg.TTS.Speed,
		TTSPitch:      cfg.TTS.Pitch,
		Pricing:       cfg.Pricing,
	}

	if opts.TTSEnabled {
		name := firstNonEmpty(opts.TTSProvider, cfg.TTS.Provider, defaultTTSProvider)
		launch.TTS = &state.TTSConfig{
			Provider:  name,
			Model:     firstNonEmpty(opts.TTSModel, cfg.TTS.Model),
			Voice:     firstNonEmpty(opts.TTSVoice, cfg.TTS.Voice),
			Extension: provider.OutputExtension(name),
		}
	}
	return launch, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
