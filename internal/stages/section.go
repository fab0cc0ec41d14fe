package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayy-em/llm-storytell-sub000/internal/continuity"
	"github.com/ayy-em/llm-storytell-sub000/internal/prompt"
	"github.com/ayy-em/llm-storytell-sub000/internal/provider"
	"github.com/ayy-em/llm-storytell-sub000/internal/schema"
	"github.com/ayy-em/llm-storytell-sub000/internal/state"
)

const (
	sectionTemplate   = "20_section.md"
	summarizeTemplate = "21_summarize.md"
)

// Section drafts the prose for one outline beat. index is zero-based;
// the section ID is index+1.
func Section(ctx context.Context, env *Env, index int) error {
	sectionID := index + 1
	stage := fmt.Sprintf("section_%02d", sectionID)
	env.Log.Info("stage %s started", stage)

	s, err := state.Load(env.RunDir)
	if err != nil {
		return stepErr(stage, "load state", err)
	}
	if index >= len(s.Outline) {
		return stepErrf(stage, "no outline beat for section index %d", index)
	}

	beatJSON, err := json.MarshalIndent(s.Outline[index], "", "  ")
	if err != nil {
		return stepErr(stage, "encode outline beat", err)
	}

	rolling := continuity.BuildRollingSummary(s.Summaries, continuity.DefaultMinTokens, continuity.DefaultMaxTokens)
	ledgerContext := continuity.Context(s.ContinuityLedger)

	rendered, err := prompt.RenderFile(env.templatePath(sectionTemplate), map[string]any{
		"section_id":         sectionID,
		"section_index":      index,
		"seed":               env.Inputs.Seed,
		"outline_beat":       string(beatJSON),
		"rolling_summary":    rolling,
		"continuity_context": ledgerContext,
		"lore_bible":         env.Selection.LoreBible,
		"style_rules":        env.Selection.StyleRules,
		"location_context":   env.Selection.LocationContext,
		"character_context":  env.Selection.CharacterContext,
		"section_length":     env.Inputs.SectionLength,
	})
	if err != nil {
		return stepErr(stage, "render section prompt", err)
	}

	res, err := env.Gen.Generate(ctx, rendered, stage, provider.GenerateOptions{
		Model:       env.Inputs.Model,
		Temperature: draftTemperature,
	})
	if err != nil {
		return stepErr(stage, "generate section", err)
	}

	fm, body, err := splitFrontmatter(res.Content)
	if err != nil {
		return stepErr(stage, "parse section response", err)
	}
	fm["section_id"] = sectionID

	if err := env.Validator.Validate(fm, schema.Section); err != nil {
		env.Log.Error("section %d frontmatter validation failed: %v", sectionID, err)
		return stepErr(stage, "validate section frontmatter", err)
	}

	canonical, err := renderFrontmatter(fm, body)
	if err != nil {
		return stepErr(stage, "reconstruct section file", err)
	}
	if err := state.WriteFileAtomic(env.artifactPath(SectionArtifact(sectionID)), []byte(canonical)); err != nil {
		return stepErr(stage, "write section artifact", err)
	}

	usage := usageFromResult(stage, res)
	if _, err := state.Update(env.RunDir, func(st *state.State) error {
		st.Sections = append(st.Sections, fm)
		st.TokenUsage = append(st.TokenUsage, usage)
		return nil
	}); err != nil {
		return stepErr(stage, "commit section state", err)
	}

	env.logUsage(usage)
	env.Log.Info("stage %s finished", stage)
	return nil
}
