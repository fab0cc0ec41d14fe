package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayy-em/llm-storytell-sub000/internal/config"
	"github.com/ayy-em/llm-storytell-sub000/internal/logging"
	"github.com/ayy-em/llm-storytell-sub000/internal/pipeline"
	"github.com/ayy-em/llm-storytell-sub000/internal/progress"
	"github.com/ayy-em/llm-storytell-sub000/internal/provider"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "storytell",
	Short: "Generate long-form narrated stories from a seed and curated context",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("storytell %s\n", Version)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full generation pipeline for an app",
	RunE:  runPipeline,
}

var listVoicesCmd = &cobra.Command{
	Use:   "list-voices",
	Short: "List available narration voices for all TTS providers",
	RunE:  runListVoices,
}

var (
	flagApp           string
	flagSeed          string
	flagBeats         int
	flagWordCount     int
	flagSectionLength string
	flagRunID         string
	flagModel         string
	flagLanguage      string
	flagTTS           bool
	flagTTSProvider   string
	flagTTSModel      string
	flagTTSVoice      string
	flagBaseDir       string
	flagVerbose       bool
	flagTUI           bool
)

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listVoicesCmd)

	runCmd.Flags().StringVarP(&flagApp, "app", "a", "", "App name under apps/ (required)")
	runCmd.Flags().StringVarP(&flagSeed, "seed", "s", "", "Natural-language story seed (required)")
	runCmd.Flags().IntVarP(&flagBeats, "beats", "b", 0, "Number of outline beats (1-20)")
	runCmd.Flags().IntVarP(&flagWordCount, "word-count", "w", 0, "Target total word count (101-14999); derives beats when set alone")
	runCmd.Flags().StringVar(&flagSectionLength, "section-length", "", "Per-section word range, e.g. 700-900 or a midpoint")
	runCmd.Flags().StringVar(&flagRunID, "run-id", "", "Run identifier override (default: timestamp-based)")
	runCmd.Flags().StringVarP(&flagModel, "model", "m", "", "Text generation model ID (default from app config)")
	runCmd.Flags().StringVarP(&flagLanguage, "language", "l", "", "ISO 639-1 language code (default from app config)")
	runCmd.Flags().BoolVarP(&flagTTS, "tts", "T", false, "Synthesize and mix narration audio after the script")
	runCmd.Flags().StringVar(&flagTTSProvider, "tts-provider", "", "TTS provider: elevenlabs, google, or polly")
	runCmd.Flags().StringVar(&flagTTSModel, "tts-model", "", "TTS model ID override")
	runCmd.Flags().StringVar(&flagTTSVoice, "tts-voice", "", "TTS voice ID override")
	runCmd.Flags().StringVar(&flagBaseDir, "base-dir", ".", "Workspace root holding apps/, prompts/, runs/")
	runCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Structured JSON diagnostics on stderr")
	runCmd.Flags().BoolVarP(&flagTUI, "tui", "t", false, "Interactive setup wizard for run parameters")
}

func Execute() error {
	return rootCmd.Execute()
}

func runPipeline(cmd *cobra.Command, args []string) error {
	logger := logging.New(flagVerbose)

	if flagTUI {
		if err := runInteractiveSetup(); err != nil {
			return err
		}
	}

	if flagApp == "" {
		return fmt.Errorf("--app (-a) is required")
	}
	if flagSeed == "" {
		return fmt.Errorf("--seed (-s) is required")
	}

	exported, err := config.LoadCreds(flagBaseDir)
	if err != nil {
		return err
	}
	if len(exported) > 0 {
		logger.Debug("exported credentials", "names", exported)
	}

	cfg, err := config.LoadAppConfig(flagBaseDir, flagApp)
	if err != nil {
		return err
	}

	launch, err := config.Resolve(config.Options{
		App:           flagApp,
		Seed:          flagSeed,
		Beats:         flagBeats,
		WordCount:     flagWordCount,
		SectionLength: flagSectionLength,
		RunID:         flagRunID,
		Model:         flagModel,
		Language:      flagLanguage,
		TTSEnabled:    flagTTS,
		TTSProvider:   flagTTSProvider,
		TTSModel:      flagTTSModel,
		TTSVoice:      flagTTSVoice,
		BaseDir:       flagBaseDir,
	}, cfg)
	if err != nil {
		return err
	}

	if err := checkAPIKeys(launch); err != nil {
		return err
	}
	if launch.TTS != nil {
		if err := checkFFmpeg(); err != nil {
			return err
		}
	}

	logger.Debug("launch resolved",
		"app", launch.App, "beats", launch.Beats,
		"section_length", launch.SectionLength, "model", launch.Model,
		"tts", launch.TTS != nil)

	deps := pipeline.Deps{}
	if !flagVerbose {
		r := progress.NewBarRenderer(os.Stdout)
		defer r.Finish()
		deps.Progress = r.Handle
	}

	summary, err := pipeline.Run(cmd.Context(), launch, deps)
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

func printSummary(s *pipeline.Summary) {
	fmt.Printf("\n  Tokens: %d prompt, %d output", s.PromptTokens, s.OutputTokens)
	if s.TTSCharacters > 0 {
		fmt.Printf("  |  TTS characters: %d", s.TTSCharacters)
	}
	if s.HasCost {
		fmt.Printf("  |  Estimated cost: $%.4f", s.CostUSD)
	}
	fmt.Println()
}

func runListVoices(cmd *cobra.Command, args []string) error {
	providers := []struct {
		name  string
		label string
	}{
		{"elevenlabs", "ELEVENLABS"},
		{"google", "GOOGLE CLOUD TTS"},
		{"polly", "AMAZON POLLY"},
	}

	fmt.Println("\nAvailable voices:")
	for _, p := range providers {
		voices, err := provider.AvailableVoices(p.name)
		if err != nil {
			return err
		}
		fmt.Printf("\n  %s\n", p.label)
		fmt.Printf("  %s\n", strings.Repeat("─", 50))
		fmt.Printf("  %-28s %-12s %s\n", "ID", "NAME", "DESCRIPTION")
		for _, v := range voices {
			def := ""
			if v.Default {
				def = " (default)"
			}
			fmt.Printf("  %-28s %-12s %s%s\n", v.ID, v.Name, v.Description, def)
		}
	}
	fmt.Println()
	return nil
}

func checkAPIKeys(launch *config.Launch) error {
	var needed []string

	switch launch.Provider {
	case "anthropic":
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			needed = append(needed, "ANTHROPIC_API_KEY")
		}
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			needed = append(needed, "OPENAI_API_KEY")
		}
	}

	if launch.TTS != nil {
		switch launch.TTS.Provider {
		case "elevenlabs":
			if os.Getenv("ELEVENLABS_API_KEY") == "" {
				needed = append(needed, "ELEVENLABS_API_KEY")
			}
		case "google":
			// Uses Application Default Credentials.
		case "polly":
			// Uses the default AWS credential chain.
		}
	}

	if len(needed) > 0 {
		return fmt.Errorf("missing required environment variable(s): %s\nSet them in the environment or in config/creds.json", strings.Join(needed, ", "))
	}
	return nil
}

func checkFFmpeg() error {
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("%s not found in PATH, audio output requires it", tool)
		}
	}
	return nil
}
