package stages

import (
	"fmt"

	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
)

// Registry resolves the executor for each pipeline stage. The plot stage
// may carry a provider-backed executor; a run's stub flag forces the stub
// regardless. Media-producing stages always run the stubs.
type Registry struct {
	stubPlot ports.StageExecutor
	llmPlot  ports.StageExecutor
	assets   ports.StageExecutor
	render   ports.StageExecutor
	qa       ports.StageExecutor
}

// NewRegistry creates the stage registry. llmPlot may be nil when no LLM
// provider is configured.
func NewRegistry(stubPlot, llmPlot, assets, render, qa ports.StageExecutor) *Registry {
	return &Registry{
		stubPlot: stubPlot,
		llmPlot:  llmPlot,
		assets:   assets,
		render:   render,
		qa:       qa,
	}
}

// ExecutorFor (ports.ExecutorRegistry interface)
func (r *Registry) ExecutorFor(run *domain.Run, stage domain.Stage) (ports.StageExecutor, error) {
	switch stage {
	case domain.StagePlot:
		if r.llmPlot != nil && !run.Spec.Stubs.Plot {
			return r.llmPlot, nil
		}
		return r.stubPlot, nil
	case domain.StageAssets:
		return r.assets, nil
	case domain.StageRender:
		return r.render, nil
	case domain.StageQA:
		return r.qa, nil
	}
	return nil, fmt.Errorf("no executor for stage %q", stage)
}

// AssetGeneratorFor (ports.ExecutorRegistry interface)
func (r *Registry) AssetGeneratorFor(run *domain.Run) (ports.AssetGenerator, error) {
	if gen, ok := r.assets.(ports.AssetGenerator); ok {
		return gen, nil
	}
	return nil, fmt.Errorf("asset executor does not support single-asset regeneration")
}
