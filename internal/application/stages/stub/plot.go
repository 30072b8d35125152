package stub

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
)

// PlotExecutor produces a deterministic plot from the run spec alone. It
// backs runs with the plot stub flag set and deployments without an LLM
// provider.
type PlotExecutor struct {
	logger *zap.Logger
}

// NewPlotExecutor creates the stub plot executor.
func NewPlotExecutor(logger *zap.Logger) *PlotExecutor {
	return &PlotExecutor{logger: logger}
}

// Stage (ports.StageExecutor interface)
func (e *PlotExecutor) Stage() domain.Stage { return domain.StagePlot }

// Execute (ports.StageExecutor interface)
func (e *PlotExecutor) Execute(ctx context.Context, run *domain.Run, reporter ports.StageReporter) error {
	if err := reporter.Report(ctx, 0.12, "analyzing prompt", nil); err != nil {
		return err
	}

	plot := BuildPlot(&run.Spec, run.Generation)

	if err := reporter.Report(ctx, 0.18, fmt.Sprintf("writing %d scenes", len(plot.Scenes)), nil); err != nil {
		return err
	}

	return reporter.Report(ctx, domain.ProgressPlotDone, "plot ready", func(a *domain.Artifacts) {
		a.Plot = plot
	})
}

// BuildPlot assembles the deterministic plot for a spec. Characters come
// from the roster when one is provided and are synthesized otherwise; scene
// prompts reference characters through substitution tokens so description
// edits reach every scene on the next generation.
func BuildPlot(spec *domain.RunSpec, generation int) *domain.Plot {
	plot := &domain.Plot{
		Title:     titleFromPrompt(spec.Prompt),
		BGMPrompt: fmt.Sprintf("%s instrumental, %s mood", spec.MusicGenre, spec.Mode),
	}

	for i := 0; i < spec.NumCharacters; i++ {
		ch := domain.Character{CharID: fmt.Sprintf("c%d", i+1)}
		if i < len(spec.Characters) {
			src := spec.Characters[i]
			ch.Name = src.Name
			ch.Description = characterDescription(src)
		} else {
			ch.Name = fmt.Sprintf("Character %d", i+1)
			ch.Description = fmt.Sprintf("%s protagonist %d of %q", spec.ArtStyle, i+1, plot.Title)
		}
		plot.Characters = append(plot.Characters, ch)
	}

	for i := 0; i < spec.NumCuts; i++ {
		scene := domain.Scene{
			SceneID:    domain.SceneID(i+1, generation),
			Text:       fmt.Sprintf("Scene %d of %s.", i+1, plot.Title),
			DurationMS: domain.DefaultSceneDurationMS,
		}
		prompt := fmt.Sprintf("%s, cut %d, %s", spec.Prompt, i+1, spec.ArtStyle)
		if len(plot.Characters) > 0 {
			ch := plot.Characters[i%len(plot.Characters)]
			scene.Speaker = ch.Name
			prompt = fmt.Sprintf("%s, featuring %s", prompt, domain.CharToken(ch.CharID))
		}
		scene.ImagePrompt = prompt
		plot.Scenes = append(plot.Scenes, scene)
	}

	return plot
}

// titleFromPrompt derives a short display title from the request prompt.
func titleFromPrompt(prompt string) string {
	title := strings.TrimSpace(prompt)
	if fields := strings.Fields(title); len(fields) > 6 {
		title = strings.Join(fields[:6], " ")
	}
	if runes := []rune(title); len(runes) > 60 {
		title = string(runes[:60])
	}
	if title == "" {
		title = "Untitled short"
	}
	return title
}

// characterDescription flattens a roster entry into one prompt-ready line.
func characterDescription(ch domain.CharacterSpec) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{ch.Appearance, ch.Personality, ch.Role, ch.Gender} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ch.Name
	}
	return fmt.Sprintf("%s (%s)", ch.Name, strings.Join(parts, ", "))
}
