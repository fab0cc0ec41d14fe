package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ayy-em/llm-storytell-sub000/internal/jsonx"
	"github.com/ayy-em/llm-storytell-sub000/internal/prompt"
	"github.com/ayy-em/llm-storytell-sub000/internal/provider"
	"github.com/ayy-em/llm-storytell-sub000/internal/rundir"
	"github.com/ayy-em/llm-storytell-sub000/internal/schema"
	"github.com/ayy-em/llm-storytell-sub000/internal/state"
)

const criticTemplate = "30_critic.md"

var sectionArtifactRe = regexp.MustCompile(`^20_section_(\d{2})\.md$`)

// Critic assembles the full draft, asks the model for the final script
// and an editor report, and finalizes the run's text artifacts.
func Critic(ctx context.Context, env *Env) error {
	const stage = "critic"
	env.Log.Info("stage %s started", stage)

	s, err := state.Load(env.RunDir)
	if err != nil {
		return stepErr(stage, "load state", err)
	}

	fullDraft, err := assembleDraft(env, len(s.Outline))
	if err != nil {
		return err
	}

	outlineJSON, err := json.MarshalIndent(s.Outline, "", "  ")
	if err != nil {
		return stepErr(stage, "encode outline", err)
	}

	rendered, err := prompt.RenderFile(env.templatePath(criticTemplate), map[string]any{
		"seed":              env.Inputs.Seed,
		"full_draft":        fullDraft,
		"lore_bible":        env.Selection.LoreBible,
		"style_rules":       env.Selection.StyleRules,
		"outline":           string(outlineJSON),
		"location_context":  env.Selection.LocationContext,
		"character_context": env.Selection.CharacterContext,
	})
	if err != nil {
		return stepErr(stage, "render critic prompt", err)
	}

	res, err := env.Gen.Generate(ctx, rendered, stage, provider.GenerateOptions{
		Model:       env.Inputs.Model,
		Temperature: draftTemperature,
		Timeout:     criticTimeout * time.Second,
	})
	if err != nil {
		return stepErr(stage, "generate critic response", err)
	}

	doc, repaired, err := jsonx.DecodeTolerant(res.Content)
	if err != nil {
		return stepErr(stage, "parse critic response", err)
	}
	if repaired {
		env.Log.Warn("critic response repaired: unescaped quotes were fixed before parsing")
	}

	finalScript, report, err := splitCriticDocument(doc)
	if err != nil {
		return stepErr(stage, "validate critic response shape", err)
	}
	if err := env.Validator.Validate(report, schema.CriticReport); err != nil {
		env.Log.Error("editor report validation failed: %v", err)
		return stepErr(stage, "validate editor report", err)
	}

	if err := state.WriteFileAtomic(env.artifactPath(FinalScriptArtifact),
		[]byte(strings.TrimRight(finalScript, "\n")+"\n")); err != nil {
		return stepErr(stage, "write final script", err)
	}
	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return stepErr(stage, "encode editor report", err)
	}
	if err := state.WriteFileAtomic(env.artifactPath(EditorReportArtifact), append(reportJSON, '\n')); err != nil {
		return stepErr(stage, "write editor report", err)
	}

	usage := usageFromResult(stage, res)
	if _, err := state.Update(env.RunDir, func(st *state.State) error {
		st.FinalScriptPath = path.Join(rundir.ArtifactsDir, FinalScriptArtifact)
		st.EditorReportPath = path.Join(rundir.ArtifactsDir, EditorReportArtifact)
		st.TokenUsage = append(st.TokenUsage, usage)
		return nil
	}); err != nil {
		return stepErr(stage, "commit critic state", err)
	}

	env.logUsage(usage)
	env.Log.Info("stage %s finished", stage)
	return nil
}

// assembleDraft loads every section artifact, verifies the ID set is
// dense over 1..beats, and concatenates the frontmatter-stripped bodies.
func assembleDraft(env *Env, beats int) (string, error) {
	const stage = "critic"

	entries, err := os.ReadDir(filepath.Join(env.RunDir, rundir.ArtifactsDir))
	if err != nil {
		return "", stepErr(stage, "list artifacts", err)
	}

	bodies := map[int]string{}
	for _, e := range entries {
		m := sectionArtifactRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		id, _ := strconv.Atoi(m[1])
		raw, err := os.ReadFile(env.artifactPath(e.Name()))
		if err != nil {
			return "", stepErr(stage, fmt.Sprintf("read %s", e.Name()), err)
		}
		bodies[id] = strings.TrimSpace(stripFrontmatter(string(raw)))
	}

	ids := make([]int, 0, len(bodies))
	for id := range bodies {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for want := 1; want <= beats; want++ {
		if _, ok := bodies[want]; !ok {
			return "", stepErrf(stage, "missing section artifact for section %d", want)
		}
	}

	parts := make([]string, 0, beats)
	for id := 1; id <= beats; id++ {
		parts = append(parts, bodies[id])
	}
	return strings.Join(parts, "\n\n"), nil
}

// splitCriticDocument enforces the exact two-key contract of the critic
// response: final_script (string) and editor_report (object).
func splitCriticDocument(doc map[string]any) (string, map[string]any, error) {
	var extras []string
	for k := range doc {
		if k != "final_script" && k != "editor_report" {
			extras = append(extras, k)
		}
	}
	if len(extras) > 0 {
		sort.Strings(extras)
		return "", nil, fmt.Errorf("critic response contains extra keys: %s", strings.Join(extras, ", "))
	}

	finalScript, ok := doc["final_script"].(string)
	if !ok {
		return "", nil, fmt.Errorf("critic response final_script must be a string")
	}
	if strings.TrimSpace(finalScript) == "" {
		return "", nil, fmt.Errorf("critic response final_script is empty")
	}
	report, ok := doc["editor_report"].(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("critic response editor_report must be an object")
	}
	return finalScript, report, nil
}
