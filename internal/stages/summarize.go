package stages

import (
	"context"
	"fmt"
	"os"

	"github.com/ayy-em/llm-storytell-sub000/internal/continuity"
	"github.com/ayy-em/llm-storytell-sub000/internal/jsonx"
	"github.com/ayy-em/llm-storytell-sub000/internal/prompt"
	"github.com/ayy-em/llm-storytell-sub000/internal/provider"
	"github.com/ayy-em/llm-storytell-sub000/internal/schema"
	"github.com/ayy-em/llm-storytell-sub000/internal/state"
)

// Summarize digests the just-written section into a summary record and
// folds its continuity updates into the ledger.
func Summarize(ctx context.Context, env *Env, index int) error {
	sectionID := index + 1
	stage := fmt.Sprintf("summarize_%02d", sectionID)
	env.Log.Info("stage %s started", stage)

	raw, err := os.ReadFile(env.artifactPath(SectionArtifact(sectionID)))
	if err != nil {
		return stepErr(stage, "read section artifact", err)
	}
	body := stripFrontmatter(string(raw))

	rendered, err := prompt.RenderFile(env.templatePath(summarizeTemplate), map[string]any{
		"section_id":      sectionID,
		"section_content": body,
	})
	if err != nil {
		return stepErr(stage, "render summarize prompt", err)
	}

	res, err := env.Gen.Generate(ctx, rendered, stage, provider.GenerateOptions{
		Model:       env.Inputs.Model,
		Temperature: summarizeTemperature,
	})
	if err != nil {
		return stepErr(stage, "generate summary", err)
	}

	doc, err := jsonx.Decode(res.Content)
	if err != nil {
		return stepErr(stage, "parse summary response", err)
	}
	doc["section_id"] = sectionID

	if err := env.Validator.Validate(doc, schema.Summary); err != nil {
		env.Log.Error("summary %d validation failed: %v", sectionID, err)
		return stepErr(stage, "validate summary", err)
	}

	summaryText, _ := doc["summary"].(string)
	updates, err := stringMap(doc["continuity_updates"])
	if err != nil {
		return stepErr(stage, "decode continuity_updates", err)
	}

	usage := usageFromResult(stage, res)
	if _, err := state.Update(env.RunDir, func(s *state.State) error {
		s.Summaries = append(s.Summaries, state.SectionSummary{
			SectionID:         sectionID,
			Summary:           summaryText,
			ContinuityUpdates: updates,
		})
		s.ContinuityLedger = continuity.MergeUpdates(s.ContinuityLedger, updates)
		s.TokenUsage = append(s.TokenUsage, usage)
		return nil
	}); err != nil {
		return stepErr(stage, "commit summary state", err)
	}

	env.logUsage(usage)
	env.Log.Info("stage %s finished: %d continuity updates", stage, len(updates))
	return nil
}

// stringMap asserts that v is a mapping with string values.
func stringMap(v any) (map[string]string, error) {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("continuity_updates must be a mapping, got %T", v)
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("continuity_updates[%s] must be a string, got %T", k, val)
		}
		out[k] = s
	}
	return out, nil
}
