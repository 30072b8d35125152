package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
)

// plotSystemPrompt pins the model to the JSON contract the pipeline
// consumes. The schema mirrors domain.Plot.
const plotSystemPrompt = `You are a screenwriter for 9:16 short-form videos.
Respond with a single JSON object and nothing else, using exactly this schema:
{"title": string, "bgm_prompt": string,
 "characters": [{"char_id": string, "name": string, "description": string}],
 "scenes": [{"scene_id": string, "image_prompt": string, "text": string,
 "speaker": string, "duration_ms": number}]}
Image prompts must reference characters through {{char:<char_id>}} tokens
instead of repeating their descriptions. Keep narration text short enough to
speak within each scene's duration.`

// LLMPlotExecutor asks the configured LLM for a plot and normalizes the
// response before accepting it as the artifact.
type LLMPlotExecutor struct {
	client ports.LLMClient
	logger *zap.Logger
}

// NewLLMPlotExecutor creates the LLM-backed plot executor.
func NewLLMPlotExecutor(client ports.LLMClient, logger *zap.Logger) *LLMPlotExecutor {
	return &LLMPlotExecutor{client: client, logger: logger}
}

// Stage (ports.StageExecutor interface)
func (e *LLMPlotExecutor) Stage() domain.Stage { return domain.StagePlot }

// Execute (ports.StageExecutor interface)
func (e *LLMPlotExecutor) Execute(ctx context.Context, run *domain.Run, reporter ports.StageReporter) error {
	if err := reporter.Report(ctx, 0.12, "requesting plot from model", nil); err != nil {
		return err
	}

	raw, err := e.client.GenerateJSON(ctx, plotSystemPrompt, buildPlotPrompt(&run.Spec))
	if err != nil {
		return fmt.Errorf("plot generation failed: %w", err)
	}

	var plot domain.Plot
	if err := json.Unmarshal(raw, &plot); err != nil {
		return fmt.Errorf("model returned malformed plot: %w", err)
	}
	if err := normalizePlot(&plot, &run.Spec, run.Generation); err != nil {
		return err
	}

	if err := reporter.Report(ctx, 0.18, fmt.Sprintf("writing %d scenes", len(plot.Scenes)), nil); err != nil {
		return err
	}

	return reporter.Report(ctx, domain.ProgressPlotDone, "plot ready", func(a *domain.Artifacts) {
		a.Plot = &plot
	})
}

// buildPlotPrompt renders the user request for the model.
func buildPlotPrompt(spec *domain.RunSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mode: %s\n", spec.Mode)
	fmt.Fprintf(&b, "Request: %s\n", spec.Prompt)
	fmt.Fprintf(&b, "Scenes: exactly %d\n", spec.NumCuts)
	fmt.Fprintf(&b, "Art style: %s\n", spec.ArtStyle)
	fmt.Fprintf(&b, "Music genre: %s\n", spec.MusicGenre)

	if len(spec.Characters) > 0 {
		b.WriteString("Cast:\n")
		for i, ch := range spec.Characters {
			fmt.Fprintf(&b, "- char_id c%d: %s", i+1, ch.Name)
			for _, part := range []string{ch.Gender, ch.Role, ch.Personality, ch.Appearance} {
				if part != "" {
					fmt.Fprintf(&b, ", %s", part)
				}
			}
			b.WriteString("\n")
		}
	} else if spec.NumCharacters > 0 {
		fmt.Fprintf(&b, "Invent %d characters with char_ids c1..c%d.\n", spec.NumCharacters, spec.NumCharacters)
	}
	return b.String()
}

// normalizePlot forces model output into pipeline invariants: exact scene
// count, canonical scene ids in array order, positive durations, character
// ids present. A response too short to salvage is an error.
func normalizePlot(plot *domain.Plot, spec *domain.RunSpec, generation int) error {
	if strings.TrimSpace(plot.Title) == "" {
		return fmt.Errorf("model returned plot without a title")
	}
	if len(plot.Scenes) == 0 {
		return fmt.Errorf("model returned plot without scenes")
	}
	if len(plot.Scenes) < spec.NumCuts {
		return fmt.Errorf("model returned %d scenes, need %d", len(plot.Scenes), spec.NumCuts)
	}
	plot.Scenes = plot.Scenes[:spec.NumCuts]

	for i := range plot.Scenes {
		scene := &plot.Scenes[i]
		scene.SceneID = domain.SceneID(i+1, generation)
		if scene.DurationMS <= 0 {
			scene.DurationMS = domain.DefaultSceneDurationMS
		}
	}

	for i := range plot.Characters {
		if plot.Characters[i].CharID == "" {
			plot.Characters[i].CharID = fmt.Sprintf("c%d", i+1)
		}
	}
	if plot.BGMPrompt == "" {
		plot.BGMPrompt = fmt.Sprintf("%s instrumental", spec.MusicGenre)
	}
	return nil
}
