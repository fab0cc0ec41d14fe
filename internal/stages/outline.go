package stages

import (
	"context"
	"encoding/json"

	"github.com/ayy-em/llm-storytell-sub000/internal/jsonx"
	"github.com/ayy-em/llm-storytell-sub000/internal/prompt"
	"github.com/ayy-em/llm-storytell-sub000/internal/provider"
	"github.com/ayy-em/llm-storytell-sub000/internal/schema"
	"github.com/ayy-em/llm-storytell-sub000/internal/state"
)

const outlineTemplate = "10_outline.md"

// Outline plans the narrative: it asks the model for exactly
// inputs.beats beats and commits the validated outline document.
func Outline(ctx context.Context, env *Env) error {
	const stage = "outline"
	env.Log.Info("stage %s started", stage)

	if env.Inputs.Beats == nil {
		return stepErrf(stage, "beat count was not resolved before stage execution")
	}
	beats := *env.Inputs.Beats

	rendered, err := prompt.RenderFile(env.templatePath(outlineTemplate), map[string]any{
		"seed":              env.Inputs.Seed,
		"beats_count":       beats,
		"lore_bible":        env.Selection.LoreBible,
		"style_rules":       env.Selection.StyleRules,
		"location_context":  env.Selection.LocationContext,
		"character_context": env.Selection.CharacterContext,
	})
	if err != nil {
		return stepErr(stage, "render outline prompt", err)
	}

	res, err := env.Gen.Generate(ctx, rendered, stage, provider.GenerateOptions{
		Model:       env.Inputs.Model,
		Temperature: draftTemperature,
	})
	if err != nil {
		return stepErr(stage, "generate outline", err)
	}

	doc, err := jsonx.Decode(res.Content)
	if err != nil {
		return stepErr(stage, "parse outline response", err)
	}
	if err := env.Validator.Validate(doc, schema.Outline); err != nil {
		env.Log.Error("outline validation failed: %v", err)
		return stepErr(stage, "validate outline", err)
	}

	outline, err := decodeBeats(doc)
	if err != nil {
		return stepErr(stage, "decode outline beats", err)
	}
	if len(outline) != beats {
		env.Log.Error("outline has %d beats but %d were requested", len(outline), beats)
		return stepErrf(stage, "outline has %d beats but %d were requested", len(outline), beats)
	}

	artifact, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return stepErr(stage, "encode outline artifact", err)
	}
	if err := state.WriteFileAtomic(env.artifactPath(OutlineArtifact), append(artifact, '\n')); err != nil {
		return stepErr(stage, "write outline artifact", err)
	}

	usage := usageFromResult(stage, res)
	if _, err := state.Update(env.RunDir, func(s *state.State) error {
		s.Outline = outline
		s.TokenUsage = append(s.TokenUsage, usage)
		return nil
	}); err != nil {
		return stepErr(stage, "commit outline state", err)
	}

	env.logUsage(usage)
	env.Log.Info("stage %s finished: %d beats", stage, len(outline))
	return nil
}

// decodeBeats re-decodes the validated outline document into typed
// beats, asserting the per-beat key set the schema alone cannot pin
// down across recovery tiers.
func decodeBeats(doc map[string]any) ([]state.Beat, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Beats []state.Beat `json:"beats"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	for i, b := range parsed.Beats {
		if b.BeatID == 0 || b.Title == "" || b.Summary == "" {
			return nil, stepErrf("outline", "beat %d is missing beat_id, title, or summary", i+1)
		}
	}
	return parsed.Beats, nil
}
